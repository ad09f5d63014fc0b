// Package player provides the local playback surface. It models the
// output element the rest of the application drives: it holds one
// track at a time, tracks elapsed position with wall-clock timers, and
// reports track end through events. Queue ordering lives elsewhere.
package player

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // No track loaded
	StatePlaying              // Track is playing
	StatePaused               // Track is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
