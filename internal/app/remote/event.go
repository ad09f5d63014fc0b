package remote

import (
	"time"

	"github.com/neobelieve/tonhub/internal/domain/device"
	"github.com/neobelieve/tonhub/internal/domain/track"
)

// Mode tells which side owns the playback surface.
type Mode int

const (
	ModeLocal       Mode = iota // Local surface is authoritative
	ModeRemoteBound             // A paired device is authoritative
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeRemoteBound:
		return "remote"
	default:
		return "unknown"
	}
}

// Mirror is the locally mirrored view of the bound device's transport:
// what it is playing, how far along, and its current playlist. Visible
// is false while the device is unreachable or idle.
type Mirror struct {
	Visible   bool
	Snapshot  device.Snapshot
	Playlist  []track.Track
	UpdatedAt time.Time
}

// EventType represents a remote controller event type.
type EventType int

const (
	EventModeChanged   EventType = iota // Local/Remote-bound transition
	EventMirrorUpdated                  // A poll tick refreshed the mirror
	EventMirrorCleared                  // The mirror went dark (failure or idle device)
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventModeChanged:
		return "mode_changed"
	case EventMirrorUpdated:
		return "mirror_updated"
	case EventMirrorCleared:
		return "mirror_cleared"
	default:
		return "unknown"
	}
}

// Event represents a remote controller event.
type Event struct {
	Type   EventType
	Mode   Mode
	Mirror Mirror
}
