// Package queue owns the play queue: the ordered track list, the
// cursor pointing at the current track, and the shuffle/repeat policy
// that governs how the cursor moves. Every mutation is written through
// to the state store before it returns.
package queue

// RepeatMode controls what happens when the cursor reaches the end of
// the queue.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off" // Stop past the last track
	RepeatOne RepeatMode = "one" // Loop the current track
	RepeatAll RepeatMode = "all" // Wrap to the first track
)

// Valid reports whether the mode is one of the known values.
func (m RepeatMode) Valid() bool {
	switch m {
	case RepeatOff, RepeatOne, RepeatAll:
		return true
	}
	return false
}

// Cycle returns the next mode in the off -> all -> one -> off rotation.
func (m RepeatMode) Cycle() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}
