// Package peer provides a client for paired remote-device endpoints.
//
// Peers are other player instances; their API is plain HTTP/JSON with
// the {ok, items|data, error} envelope. All calls carry a short timeout
// so a vanished device never wedges the transport.
package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/neobelieve/tonhub/internal/domain/device"
	"github.com/neobelieve/tonhub/internal/domain/track"
)

// Action is a transport command forwarded to a remote device.
type Action string

const (
	ActionPlayPause Action = "play_pause"
	ActionNext      Action = "next"
	ActionPrevious  Action = "previous"
)

// Client is a remote-device API client.
type Client struct {
	httpClient *http.Client
	playerID   string
}

// Config represents peer client configuration.
type Config struct {
	Timeout  time.Duration // Per-request timeout, default 2s
	PlayerID string        // This player's instance ID, sent with commands
}

// New creates a new peer client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		playerID:   cfg.PlayerID,
	}
}

// availability is the /neobelieve/available response. The deployed
// fleet includes devices answering with the misspelled field, so both
// are accepted.
type availability struct {
	OK         bool   `json:"ok"`
	Available  bool   `json:"available"`
	Avaliable  bool   `json:"avaliable"`
	DeviceType string `json:"device_type"`
	Name       string `json:"name"`
}

// Check probes a host for a pairable device and returns its descriptor.
// The canonical path is tried first, then the misspelled variant that
// older firmware still serves.
func (c *Client) Check(ctx context.Context, host string) (device.Device, error) {
	paths := []string{"/neobelieve/available", "/neobelieve/avaliable"}

	var lastErr error
	for _, path := range paths {
		var avail availability
		if err := c.getJSON(ctx, host, path, &avail); err != nil {
			lastErr = err
			continue
		}
		if !avail.OK || !(avail.Available || avail.Avaliable) {
			lastErr = errors.Newf("device at %s is not available", host)
			continue
		}

		name := avail.Name
		if name == "" {
			name = host
		}
		deviceType := avail.DeviceType
		if deviceType == "" {
			deviceType = "Unknown"
		}
		d := device.Device{ID: host, Name: name, Host: host, Type: deviceType}
		return d, nil
	}
	return device.Device{}, errors.Wrap(lastErr, "device check failed")
}

// syncData is the /api/music/sync payload.
type syncData struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
}

// Sync fetches the device's current playback snapshot.
func (c *Client) Sync(ctx context.Context, d device.Device) (device.Snapshot, error) {
	var env struct {
		OK    bool     `json:"ok"`
		Data  syncData `json:"data"`
		Error string   `json:"error"`
	}
	if err := c.getJSON(ctx, d.ID, "/api/music/sync", &env); err != nil {
		return device.Snapshot{}, err
	}
	if !env.OK {
		if env.Error != "" {
			return device.Snapshot{}, errors.Newf("device error: %s", env.Error)
		}
		return device.Snapshot{}, errors.New("device reported not ok")
	}

	status := device.PlayStatus(env.Data.Status)
	switch status {
	case device.StatusPlaying, device.StatusPaused, device.StatusStopped:
	default:
		status = device.StatusStopped
	}
	return device.Snapshot{
		TrackID:  env.Data.ID,
		Status:   status,
		Position: time.Duration(env.Data.CurrentTime * float64(time.Second)),
		Duration: time.Duration(env.Data.Duration * float64(time.Second)),
	}, nil
}

// wireItem is the peer playlist entry shape.
type wireItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Cover string `json:"image,omitempty"`
}

// Playlist fetches the device's current playlist.
func (c *Client) Playlist(ctx context.Context, d device.Device) ([]track.Track, error) {
	var env struct {
		OK    bool       `json:"ok"`
		Items []wireItem `json:"items"`
		Error string     `json:"error"`
	}
	if err := c.getJSON(ctx, d.ID, "/api/playlist", &env); err != nil {
		return nil, err
	}
	if !env.OK {
		return nil, errors.Newf("device error: %s", env.Error)
	}

	tracks := make([]track.Track, 0, len(env.Items))
	for _, it := range env.Items {
		tracks = append(tracks, track.Track{
			ID:       it.ID,
			Title:    it.Title,
			MediaURL: it.URL,
			CoverURL: it.Cover,
		})
	}
	return tracks, nil
}

// AddToPlaylist appends a track to the device's playlist.
func (c *Client) AddToPlaylist(ctx context.Context, d device.Device, t track.Track) error {
	return c.postJSON(ctx, d.ID, "/api/playlist/add", map[string]any{
		"id":    t.ID,
		"title": t.Title,
		"url":   t.MediaURL,
		"image": t.CoverURL,
	})
}

// RemoveFromPlaylist removes a track from the device's playlist by ID.
func (c *Client) RemoveFromPlaylist(ctx context.Context, d device.Device, trackID string) error {
	return c.postJSON(ctx, d.ID, "/api/playlist/remove", map[string]any{"id": trackID})
}

// SetVolume sets the device's output volume (0-100).
func (c *Client) SetVolume(ctx context.Context, d device.Device, volume int) error {
	return c.postJSON(ctx, d.ID, "/api/volume", map[string]any{"volume": volume})
}

// SendAction forwards a transport command. Fire-and-forget from the
// caller's point of view: the device queues the command and the next
// sync tick reflects the outcome.
func (c *Client) SendAction(ctx context.Context, d device.Device, action Action) error {
	return c.postJSON(ctx, d.ID, "/api/remote", map[string]any{"action": string(action)})
}

// Play starts playback of a specific track on the device.
func (c *Client) Play(ctx context.Context, d device.Device, t track.Track) error {
	return c.postJSON(ctx, d.ID, "/api/remote/play", map[string]any{
		"url":          t.MediaURL,
		"title":        t.Title,
		"image":        t.CoverURL,
		"original_url": t.SourceURL,
	})
}

func (c *Client) getJSON(ctx context.Context, host, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", "http://"+host+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to reach device")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read device response")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse device response")
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, host, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "http://"+host+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.playerID != "" {
		req.Header.Set("X-Player-ID", c.playerID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to reach device")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("device returned status %d", resp.StatusCode)
	}
	zlog.Debug().Msgf("peer: POST %s%s ok", host, path)
	return nil
}
