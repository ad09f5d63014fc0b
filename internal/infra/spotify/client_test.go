package spotify

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/zmb3/spotify/v2"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{ClientID: "id"})
	assert.Error(t, err)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "rate limit error with 429",
			err:      errors.New("Error 429: rate limit exceeded"),
			expected: true,
		},
		{
			name:     "server error",
			err:      errors.New("503 service unavailable"),
			expected: true,
		},
		{
			name:     "auth error",
			err:      errors.New("invalid client credentials"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryable(tt.err))
		})
	}
}

func TestCoverFromResult(t *testing.T) {
	assert.Equal(t, "", coverFromResult(nil))
	assert.Equal(t, "", coverFromResult(&spotify.SearchResult{}))

	result := &spotify.SearchResult{
		Tracks: &spotify.FullTrackPage{
			Tracks: []spotify.FullTrack{
				{
					Album: spotify.SimpleAlbum{
						Images: []spotify.Image{
							{URL: "https://i.scdn.co/image/large"},
							{URL: "https://i.scdn.co/image/small"},
						},
					},
				},
			},
		},
	}
	assert.Equal(t, "https://i.scdn.co/image/large", coverFromResult(result))
}

func TestCoverURLRequiresTitle(t *testing.T) {
	c := &Client{cache: make(map[string]string)}
	_, err := c.CoverURL(context.Background(), "  ", "")
	assert.Error(t, err)
}
