package queue

import "github.com/neobelieve/tonhub/internal/domain/track"

// EventType represents a queue event type.
type EventType int

const (
	EventPlay    EventType = iota // A new current track should be resolved and played
	EventStop                     // Playback should stop (queue ended or emptied)
	EventChanged                  // Queue contents or policy changed without a playback change
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventPlay:
		return "play"
	case EventStop:
		return "stop"
	case EventChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// Event represents a queue event.
type Event struct {
	Type   EventType
	Track  *track.Track // Current track for EventPlay, nil otherwise
	Cursor int
}
