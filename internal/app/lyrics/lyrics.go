// Package lyrics parses synced LRC lyrics and follows them against a
// playback position.
package lyrics

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrNoLyrics is returned when the backend has no lyrics for a track.
var ErrNoLyrics = errors.New("no lyrics available")

// Line is a single timed lyric line.
type Line struct {
	At   time.Duration
	Text string
}

// timestampRe matches LRC timestamps like [01:23.45] or [01:23].
var timestampRe = regexp.MustCompile(`\[(\d+):(\d{1,2})(?:[.:](\d{1,3}))?\]`)

// Parse turns an LRC document into lines sorted by timestamp. A line
// carrying several timestamps repeats for each. Metadata tags like
// [ar:...] and lines without timestamps are dropped.
func Parse(lrc string) []Line {
	var lines []Line

	for _, raw := range strings.Split(lrc, "\n") {
		raw = strings.TrimRight(raw, "\r")
		matches := timestampRe.FindAllStringSubmatchIndex(raw, -1)
		if len(matches) == 0 {
			continue
		}

		text := strings.TrimSpace(raw[matches[len(matches)-1][1]:])

		for _, m := range matches {
			min, _ := strconv.Atoi(raw[m[2]:m[3]])
			sec, _ := strconv.Atoi(raw[m[4]:m[5]])
			at := time.Duration(min)*time.Minute + time.Duration(sec)*time.Second
			if m[6] >= 0 {
				frac := raw[m[6]:m[7]]
				// Fractional part is centiseconds or milliseconds
				// depending on digit count.
				n, _ := strconv.Atoi(frac)
				switch len(frac) {
				case 1:
					at += time.Duration(n) * 100 * time.Millisecond
				case 2:
					at += time.Duration(n) * 10 * time.Millisecond
				default:
					at += time.Duration(n) * time.Millisecond
				}
			}
			lines = append(lines, Line{At: at, Text: text})
		}
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].At < lines[j].At })
	return lines
}

// Tracker follows parsed lyrics against a playback position.
type Tracker struct {
	lines []Line
}

// NewTracker creates a tracker over parsed lines.
func NewTracker(lines []Line) *Tracker {
	return &Tracker{lines: lines}
}

// Lines returns the tracked lines.
func (t *Tracker) Lines() []Line {
	return t.lines
}

// IndexAt returns the index of the line active at pos, or -1 before
// the first line.
func (t *Tracker) IndexAt(pos time.Duration) int {
	idx := sort.Search(len(t.lines), func(i int) bool {
		return t.lines[i].At > pos
	})
	return idx - 1
}

// LineAt returns the line active at pos.
func (t *Tracker) LineAt(pos time.Duration) (Line, bool) {
	idx := t.IndexAt(pos)
	if idx < 0 {
		return Line{}, false
	}
	return t.lines[idx], true
}

// Source fetches raw synced lyrics for a track.
type Source interface {
	Lyrics(ctx context.Context, title, artist string) (string, error)
}

// Fetch retrieves and parses lyrics for a track. An empty or fully
// untimed document maps to ErrNoLyrics.
func Fetch(ctx context.Context, src Source, title, artist string) (*Tracker, error) {
	raw, err := src.Lyrics(ctx, title, artist)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch lyrics")
	}

	lines := Parse(raw)
	if len(lines) == 0 {
		return nil, ErrNoLyrics
	}
	return NewTracker(lines), nil
}
