// Package backend provides a client for the media backend API.
//
// The backend speaks two conventions: newer endpoints under /api/ wrap
// responses in a {ok, items|data, error} envelope; the older download
// and image endpoints return bare JSON or plain text. Both are fixed
// external contracts.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/neobelieve/tonhub/internal/domain/playlist"
	"github.com/neobelieve/tonhub/internal/domain/track"
)

// Client is a media backend API client.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	searchClient *http.Client
}

// Config represents backend client configuration.
type Config struct {
	BaseURL       string
	Timeout       time.Duration // General request timeout
	SearchTimeout time.Duration // Search is slow (upstream scraping) and gets its own timeout
}

// New creates a new backend client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.SearchTimeout == 0 {
		cfg.SearchTimeout = 20 * time.Second
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		searchClient: &http.Client{Timeout: cfg.SearchTimeout},
	}, nil
}

// wireTrack is the backend's track item shape.
type wireTrack struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	URL     string `json:"url"`
	Cover   string `json:"cover"`
	FileURL string `json:"file_url"`
}

func (w wireTrack) toTrack() track.Track {
	t := track.Track{
		ID:        w.ID,
		Title:     w.Title,
		Artist:    w.Artist,
		SourceURL: w.URL,
		MediaURL:  w.FileURL,
		CoverURL:  w.Cover,
	}
	t.EnsureID()
	return t
}

func toWire(t track.Track) wireTrack {
	return wireTrack{
		ID:      t.ID,
		Title:   t.Title,
		Artist:  t.Artist,
		URL:     t.SourceURL,
		Cover:   t.CoverURL,
		FileURL: t.MediaURL,
	}
}

// envelope is the {ok, ...} wrapper used by /api/ endpoints.
type envelope struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error"`
	Items json.RawMessage `json:"items"`
	Data  json.RawMessage `json:"data"`
}

// Search queries the backend for tracks matching q.
func (c *Client) Search(ctx context.Context, q string) ([]track.Track, error) {
	if q == "" {
		return nil, errors.New("search query is required")
	}

	env, err := c.getEnvelope(ctx, c.searchClient, "/api/search?q="+url.QueryEscape(q))
	if err != nil {
		return nil, err
	}

	var items []wireTrack
	if err := json.Unmarshal(env.Items, &items); err != nil {
		return nil, errors.Wrap(err, "failed to parse search items")
	}

	tracks := make([]track.Track, 0, len(items))
	for _, it := range items {
		tracks = append(tracks, it.toTrack())
	}
	return tracks, nil
}

// Download materializes a track server-side and returns the resulting
// media path. cache selects temporary cache storage over the permanent
// library. Older endpoint: bare {path} or {error} body.
func (c *Client) Download(ctx context.Context, sourceURL, title string, cache bool) (string, error) {
	if sourceURL == "" {
		return "", errors.New("source URL is required")
	}
	cacheFlag := "0"
	if cache {
		cacheFlag = "1"
	}
	reqURL := c.baseURL + "/download?url=" + url.QueryEscape(sourceURL) +
		"&title=" + url.QueryEscape(title) + "&cache=" + cacheFlag

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response body")
	}

	var result struct {
		Path  string `json:"path"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", errors.Wrap(err, "failed to parse download response")
	}
	if result.Path == "" {
		if result.Error != "" {
			return "", errors.Newf("download failed: %s", result.Error)
		}
		return "", errors.New("download returned no path")
	}
	return result.Path, nil
}

// Probe checks whether a server-relative media path exists, without
// transferring the file.
func (c *Client) Probe(ctx context.Context, path string) bool {
	req, err := http.NewRequestWithContext(ctx, "HEAD", c.baseURL+path, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// LibraryPath returns the permanent library location for a title.
func (c *Client) LibraryPath(title string) string {
	return "/music/" + url.PathEscape(track.SanitizeTitle(title)) + ".mp3"
}

// CachePath returns the cache location for a title.
func (c *Client) CachePath(title string) string {
	return "/music_cache/" + url.PathEscape(track.SanitizeTitle(title)) + ".mp3"
}

// UpdateRecent records a played track into the backend's recent history.
func (c *Client) UpdateRecent(ctx context.Context, t track.Track) error {
	payload := map[string]any{
		"type":  "track",
		"id":    t.ID,
		"title": t.Title,
		"image": t.CoverURL,
		"url":   t.MediaURL,
	}
	return c.postJSON(ctx, "/update_recent", payload, nil)
}

// Recent returns the backend's recently played tracks, newest first.
func (c *Client) Recent(ctx context.Context) ([]track.Track, error) {
	env, err := c.getEnvelope(ctx, c.httpClient, "/recent")
	if err != nil {
		return nil, err
	}
	var items []wireTrack
	if err := json.Unmarshal(env.Items, &items); err != nil {
		return nil, errors.Wrap(err, "failed to parse recent items")
	}
	tracks := make([]track.Track, 0, len(items))
	for _, it := range items {
		tracks = append(tracks, it.toTrack())
	}
	return tracks, nil
}

// DownloadImage rewrites an external cover URL to a locally cached copy
// and returns the server-relative path. The endpoint answers with a
// plain-text body.
func (c *Client) DownloadImage(ctx context.Context, imageURL, title string) (string, error) {
	if imageURL == "" {
		return "", errors.New("image URL is required")
	}
	reqURL := c.baseURL + "/download_image?url=" + url.QueryEscape(imageURL) +
		"&title=" + url.QueryEscape(title)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("download_image returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response body")
	}
	return string(body), nil
}

// Playlists returns all backend playlists.
func (c *Client) Playlists(ctx context.Context) ([]playlist.Playlist, error) {
	env, err := c.getEnvelope(ctx, c.httpClient, "/api/playlists")
	if err != nil {
		return nil, err
	}

	var items []struct {
		Name  string      `json:"name"`
		Items []wireTrack `json:"items"`
	}
	if err := json.Unmarshal(env.Items, &items); err != nil {
		return nil, errors.Wrap(err, "failed to parse playlists")
	}

	playlists := make([]playlist.Playlist, 0, len(items))
	for _, it := range items {
		p := playlist.Playlist{Name: it.Name, Items: make([]track.Track, 0, len(it.Items))}
		for _, wt := range it.Items {
			p.Items = append(p.Items, wt.toTrack())
		}
		playlists = append(playlists, p)
	}
	return playlists, nil
}

// CreatePlaylist creates a new named playlist.
func (c *Client) CreatePlaylist(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("playlist name is required")
	}
	return c.postJSON(ctx, "/api/playlists/create", map[string]any{"name": name}, nil)
}

// AddToPlaylist adds a track to a named playlist.
func (c *Client) AddToPlaylist(ctx context.Context, name string, t track.Track) error {
	return c.postJSON(ctx, "/api/playlists/add", map[string]any{"name": name, "item": toWire(t)}, nil)
}

// RemoveFromPlaylist removes a track from a named playlist by ID.
func (c *Client) RemoveFromPlaylist(ctx context.Context, name, trackID string) error {
	return c.postJSON(ctx, "/api/playlists/remove", map[string]any{"name": name, "id": trackID}, nil)
}

// History returns the playback history, newest first.
func (c *Client) History(ctx context.Context) ([]track.Track, error) {
	env, err := c.getEnvelope(ctx, c.httpClient, "/api/history")
	if err != nil {
		return nil, err
	}
	var items []wireTrack
	if err := json.Unmarshal(env.Items, &items); err != nil {
		return nil, errors.Wrap(err, "failed to parse history items")
	}
	tracks := make([]track.Track, 0, len(items))
	for _, it := range items {
		tracks = append(tracks, it.toTrack())
	}
	return tracks, nil
}

// AddHistory records a played track into the backend history.
func (c *Client) AddHistory(ctx context.Context, t track.Track) error {
	return c.postJSON(ctx, "/api/history/add", map[string]any{"item": toWire(t)}, nil)
}

// Lyrics fetches synced lyrics for a track. The returned string is raw
// LRC text, possibly empty when the backend found nothing synced.
func (c *Client) Lyrics(ctx context.Context, title, artist string) (string, error) {
	if title == "" {
		return "", errors.New("title is required")
	}
	path := "/api/lyrics?title=" + url.QueryEscape(title) + "&artist=" + url.QueryEscape(artist)
	env, err := c.getEnvelope(ctx, c.httpClient, path)
	if err != nil {
		return "", err
	}

	var data struct {
		Synced string `json:"synced"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", errors.Wrap(err, "failed to parse lyrics data")
	}
	return data.Synced, nil
}

// CachePlay asks the backend to materialize a track into its cache,
// downloading on a miss, and returns the playable file URL. The
// response carries file_url at the top level rather than under data.
func (c *Client) CachePlay(ctx context.Context, t track.Track) (string, error) {
	if t.SourceURL == "" {
		return "", errors.New("source URL is required")
	}
	payload := map[string]any{
		"url":    t.SourceURL,
		"title":  t.Title,
		"artist": t.Artist,
		"cover":  t.CoverURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/cache/play", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response body")
	}

	var result struct {
		OK      bool   `json:"ok"`
		FileURL string `json:"file_url"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", errors.Wrap(err, "failed to parse cache play response")
	}
	if !result.OK || result.FileURL == "" {
		if result.Error != "" {
			return "", errors.Newf("cache play failed: %s", result.Error)
		}
		return "", errors.Newf("cache play returned status %d", resp.StatusCode)
	}
	return result.FileURL, nil
}

// DownloadList returns the permanent downloads. Entries not yet on disk
// come back without a media URL.
func (c *Client) DownloadList(ctx context.Context) ([]track.Track, error) {
	env, err := c.getEnvelope(ctx, c.httpClient, "/api/download/list")
	if err != nil {
		return nil, err
	}
	var items []wireTrack
	if err := json.Unmarshal(env.Items, &items); err != nil {
		return nil, errors.Wrap(err, "failed to parse download list")
	}
	tracks := make([]track.Track, 0, len(items))
	for _, it := range items {
		tracks = append(tracks, it.toTrack())
	}
	return tracks, nil
}

// Prefetch asks the backend to warm its cache for upcoming tracks.
func (c *Client) Prefetch(ctx context.Context, tracks []track.Track) error {
	items := make([]wireTrack, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, toWire(t))
	}
	return c.postJSON(ctx, "/api/cache/prefetch", map[string]any{"items": items}, nil)
}

// getEnvelope performs a GET and decodes the {ok,...} envelope,
// converting ok=false into an error.
func (c *Client) getEnvelope(ctx context.Context, client *http.Client, path string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}
	if !env.OK {
		if env.Error != "" {
			return nil, errors.Newf("backend error: %s", env.Error)
		}
		return nil, errors.Newf("backend returned status %d", resp.StatusCode)
	}
	return &env, nil
}

// postJSON performs a POST with a JSON body and checks the envelope.
// out, when non-nil, receives the decoded envelope for callers that
// need more than the ok flag.
func (c *Client) postJSON(ctx context.Context, path string, payload any, out *envelope) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		// The older endpoints answer {"status": "ok"} without the envelope.
		if resp.StatusCode == http.StatusOK {
			return nil
		}
		return errors.Wrap(err, "failed to parse response")
	}
	if !env.OK {
		// Same fallback for older endpoints on a 200.
		if env.Error == "" && resp.StatusCode == http.StatusOK {
			if out != nil {
				*out = env
			}
			return nil
		}
		if env.Error != "" {
			return errors.Newf("backend error: %s", env.Error)
		}
		return errors.Newf("backend returned status %d", resp.StatusCode)
	}
	if out != nil {
		*out = env
	}
	zlog.Debug().Msgf("backend: POST %s ok", path)
	return nil
}
