// Package track provides the Track domain entity.
package track

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// Track represents a playable track known to the player.
type Track struct {
	ID        string        // Stable opaque identifier, see DeriveID
	Title     string        // Display title
	Artist    string        // Artist name(s), may be empty
	SourceURL string        // Original remote location (e.g. watch page), may be empty
	MediaURL  string        // Resolved playable location (server-relative), may be empty
	CoverURL  string        // Cover image URL, absolute or server-relative, may be empty
	Duration  time.Duration // Known duration, zero when unknown
}

var unsafeRunes = regexp.MustCompile(`[^a-zA-Z0-9\-_. ]+`)

// SanitizeTitle strips characters that are unsafe in file and path names.
// Falls back to "track" when nothing survives.
func SanitizeTitle(title string) string {
	s := strings.TrimSpace(unsafeRunes.ReplaceAllString(title, ""))
	if s == "" {
		return "track"
	}
	return s
}

// DeriveID computes the stable identifier for a track at ingestion time:
// the sanitized title suffixed with a short hash of the source URL. Tracks
// without a source URL are keyed by sanitized title alone, which matches
// how permanently downloaded files are addressed.
func DeriveID(sourceURL, title string) string {
	base := SanitizeTitle(title)
	if sourceURL == "" {
		return base
	}
	sum := sha256.Sum256([]byte(sourceURL))
	return base + "-" + hex.EncodeToString(sum[:])[:12]
}

// HasLocalMedia reports whether the track already carries a server-relative
// media path that can be played without any resolution round-trip.
func (t *Track) HasLocalMedia() bool {
	return strings.HasPrefix(t.MediaURL, "/")
}

// EnsureID fills in a derived ID when the track does not carry one.
func (t *Track) EnsureID() {
	if t.ID == "" {
		t.ID = DeriveID(t.SourceURL, t.Title)
	}
}
