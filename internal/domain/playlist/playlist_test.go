package playlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/neobelieve/tonhub/internal/domain/track"
)

func TestPlaylist_TrackIDs(t *testing.T) {
	tests := []struct {
		name     string
		items    []track.Track
		expected []string
	}{
		{
			name:     "empty playlist",
			items:    []track.Track{},
			expected: []string{},
		},
		{
			name: "multiple tracks",
			items: []track.Track{
				{ID: "track-1"},
				{ID: "track-2"},
				{ID: "track-3"},
			},
			expected: []string{"track-1", "track-2", "track-3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Playlist{Name: "mix", Items: tt.items}
			assert.Equal(t, tt.expected, p.TrackIDs())
		})
	}
}

func TestPlaylist_Contains(t *testing.T) {
	p := &Playlist{Items: []track.Track{{ID: "a"}, {ID: "b"}}}
	assert.True(t, p.Contains("a"))
	assert.False(t, p.Contains("c"))
}

func TestPlaylist_TotalDuration(t *testing.T) {
	p := &Playlist{Items: []track.Track{
		{ID: "a", Duration: 2 * time.Minute},
		{ID: "b", Duration: 3*time.Minute + 30*time.Second},
		{ID: "c"}, // unknown duration contributes nothing
	}}
	assert.Equal(t, int64(330), p.TotalDuration())
}
