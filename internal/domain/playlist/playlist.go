// Package playlist provides the Playlist domain entity.
package playlist

import "github.com/neobelieve/tonhub/internal/domain/track"

// Playlist represents a named, user-managed track list stored on the
// backend. Unlike the play queue it has no cursor; loading one replaces
// the queue wholesale.
type Playlist struct {
	Name  string        // Unique playlist name
	Items []track.Track // Tracks in playlist order
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Items))
	for i, t := range p.Items {
		ids[i] = t.ID
	}
	return ids
}

// Contains reports whether the playlist already holds the given track ID.
func (p *Playlist) Contains(id string) bool {
	for _, t := range p.Items {
		if t.ID == id {
			return true
		}
	}
	return false
}

// TotalDuration returns the summed duration in seconds of tracks with a
// known duration.
func (p *Playlist) TotalDuration() int64 {
	var total int64
	for _, t := range p.Items {
		total += int64(t.Duration.Seconds())
	}
	return total
}
