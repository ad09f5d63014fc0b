package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain title unchanged",
			input:    "Bohemian Rhapsody",
			expected: "Bohemian Rhapsody",
		},
		{
			name:     "path separators stripped",
			input:    "AC/DC - Back In Black",
			expected: "ACDC - Back In Black",
		},
		{
			name:     "quotes and question marks stripped",
			input:    `What's "Love"?`,
			expected: "Whats Love",
		},
		{
			name:     "empty falls back",
			input:    "",
			expected: "track",
		},
		{
			name:     "only unsafe runes falls back",
			input:    "???///",
			expected: "track",
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "  Song  ",
			expected: "Song",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeTitle(tt.input))
		})
	}
}

func TestDeriveID(t *testing.T) {
	// Same source URL and title always derive the same ID.
	a := DeriveID("https://example.com/watch?v=abc", "Song One")
	b := DeriveID("https://example.com/watch?v=abc", "Song One")
	assert.Equal(t, a, b)

	// Different source URLs disambiguate identical titles.
	c := DeriveID("https://example.com/watch?v=xyz", "Song One")
	assert.NotEqual(t, a, c)

	// The sanitized title is the readable prefix.
	assert.Contains(t, a, "Song One-")
	assert.Len(t, a, len("Song One-")+12)

	// No source URL keys by title alone.
	assert.Equal(t, "Song One", DeriveID("", "Song One"))
}

func TestTrack_HasLocalMedia(t *testing.T) {
	assert.True(t, (&Track{MediaURL: "/music/Song.mp3"}).HasLocalMedia())
	assert.False(t, (&Track{MediaURL: "https://cdn.example.com/a.mp3"}).HasLocalMedia())
	assert.False(t, (&Track{}).HasLocalMedia())
}

func TestTrack_EnsureID(t *testing.T) {
	tr := &Track{Title: "Song", SourceURL: "https://example.com/v"}
	tr.EnsureID()
	assert.Equal(t, DeriveID("https://example.com/v", "Song"), tr.ID)

	// An existing ID is kept.
	tr2 := &Track{ID: "fixed", Title: "Song"}
	tr2.EnsureID()
	assert.Equal(t, "fixed", tr2.ID)
}
