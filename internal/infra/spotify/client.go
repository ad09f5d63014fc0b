// Package spotify provides cover-art lookup via the Spotify API.
package spotify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Client is a Spotify API client used to find cover images for tracks
// that the media backend has no artwork for.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration

	mu    sync.Mutex
	cache map[string]string // search query -> cover URL
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
	)

	// The refresh token alone is enough; the oauth2 transport exchanges
	// it for access tokens as needed.
	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}

	httpClient := auth.Client(ctx, token)
	client := spotify.New(httpClient)

	market := cfg.Market
	if market == "" {
		market = "FR"
	}

	return &Client{
		client:     client,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
		cache:      make(map[string]string),
	}, nil
}

// CoverURL searches for a track and returns the largest album image
// URL. Results are cached per query for the lifetime of the client.
// Returns an empty string without error when no usable match exists.
func (c *Client) CoverURL(ctx context.Context, title, artist string) (string, error) {
	query := strings.TrimSpace(title)
	if query == "" {
		return "", errors.New("title is required")
	}
	if artist != "" {
		query += " artist:" + artist
	}

	c.mu.Lock()
	if url, ok := c.cache[query]; ok {
		c.mu.Unlock()
		return url, nil
	}
	c.mu.Unlock()

	var result *spotify.SearchResult
	err := c.retry(func() error {
		r, err := c.client.Search(ctx, query, spotify.SearchTypeTrack,
			spotify.Limit(1),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to search for cover")
	}

	url := coverFromResult(result)

	c.mu.Lock()
	c.cache[query] = url
	c.mu.Unlock()

	return url, nil
}

func coverFromResult(result *spotify.SearchResult) string {
	if result == nil || result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return ""
	}
	images := result.Tracks.Tracks[0].Album.Images
	if len(images) == 0 {
		return ""
	}
	// Spotify orders images largest first.
	return images[0].URL
}

// retry executes a function with exponential backoff for transient errors.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}
