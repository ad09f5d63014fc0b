// Package httpapi exposes the player's peer-facing device API: the
// same endpoints this player consumes on other devices, so any two
// players can pair with each other.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/neobelieve/tonhub/internal/app/lyrics"
	"github.com/neobelieve/tonhub/internal/app/player"
	"github.com/neobelieve/tonhub/internal/app/queue"
	"github.com/neobelieve/tonhub/internal/app/service"
	"github.com/neobelieve/tonhub/internal/domain/track"
)

// Player is the slice of the orchestrator the API serves.
type Player interface {
	Status() service.Status
	PlayPause() error
	Next() error
	Previous() error
	PlayTrack(ctx context.Context, t track.Track) error
	Enqueue(t track.Track) error
	SetVolume(v int) error
	Volume() int
	Queue() *queue.Controller
}

// Handler serves the device API.
type Handler struct {
	player     Player
	lyrics     lyrics.Source
	instanceID string
	name       string
	deviceType string

	cmdMu    sync.Mutex
	commands []string // received transport commands, drained by /api/remote/next
}

// Config holds handler configuration.
type Config struct {
	Player     Player
	Lyrics     lyrics.Source // Optional, disables /api/lyrics when nil
	Name       string        // Advertised device name
	DeviceType string        // Advertised device type
	InstanceID string        // Generated when empty
}

// New creates a handler.
func New(cfg Config) *Handler {
	id := cfg.InstanceID
	if id == "" {
		id = uuid.New().String()
	}
	return &Handler{
		player:     cfg.Player,
		lyrics:     cfg.Lyrics,
		instanceID: id,
		name:       cfg.Name,
		deviceType: cfg.DeviceType,
	}
}

// InstanceID returns the ID this player advertises to peers.
func (h *Handler) InstanceID() string {
	return h.instanceID
}

// Routes registers all endpoints on a mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /neobelieve/available", h.handleAvailable)
	// Older firmware probes the misspelled path.
	mux.HandleFunc("GET /neobelieve/avaliable", h.handleAvailable)

	mux.HandleFunc("GET /api/music/sync", h.handleSync)
	mux.HandleFunc("GET /api/playback", h.handlePlayback)
	mux.HandleFunc("GET /api/lyrics", h.handleLyrics)

	mux.HandleFunc("POST /api/remote", h.handleRemote)
	mux.HandleFunc("GET /api/remote/next", h.handleRemoteNext)
	mux.HandleFunc("POST /api/remote/play", h.handleRemotePlay)

	mux.HandleFunc("GET /api/playlist", h.handlePlaylist)
	mux.HandleFunc("POST /api/playlist/add", h.handlePlaylistAdd)
	mux.HandleFunc("POST /api/playlist/remove", h.handlePlaylistRemove)

	mux.HandleFunc("GET /api/volume", h.handleVolumeGet)
	mux.HandleFunc("POST /api/volume", h.handleVolumeSet)

	return mux
}

func (h *Handler) handleAvailable(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"ok":          true,
		"available":   true,
		"avaliable":   true,
		"id":          h.instanceID,
		"name":        h.name,
		"device_type": h.deviceType,
	})
}

func (h *Handler) handleSync(w http.ResponseWriter, _ *http.Request) {
	st := h.player.Status()

	data := map[string]any{
		"id":          "",
		"status":      "stopped",
		"currentTime": 0.0,
		"duration":    0.0,
	}
	if st.Track != nil {
		data["id"] = st.Track.ID
		data["title"] = st.Track.Title
		data["image"] = st.Track.CoverURL
		data["status"] = statusString(st.State)
		data["currentTime"] = st.Position.Seconds()
		data["duration"] = st.Duration.Seconds()
	}
	writeOK(w, "data", data)
}

func (h *Handler) handlePlayback(w http.ResponseWriter, _ *http.Request) {
	st := h.player.Status()
	q := h.player.Queue()

	data := map[string]any{
		"state":        statusString(st.State),
		"position_sec": st.Position.Seconds(),
		"duration_sec": st.Duration.Seconds(),
		"volume":       st.Volume,
		"queue_length": q.Len(),
		"cursor":       q.Cursor(),
		"repeat":       string(q.Repeat()),
		"shuffle":      q.Shuffle(),
	}
	if st.Track != nil {
		data["track"] = trackPayload(*st.Track)
	}
	writeOK(w, "data", data)
}

func (h *Handler) handleLyrics(w http.ResponseWriter, r *http.Request) {
	if h.lyrics == nil {
		writeError(w, http.StatusNotFound, "lyrics not configured")
		return
	}
	st := h.player.Status()
	if st.Track == nil {
		writeError(w, http.StatusNotFound, "no current track")
		return
	}

	tr, err := lyrics.Fetch(r.Context(), h.lyrics, st.Track.Title, st.Track.Artist)
	if err != nil {
		if errors.Is(err, lyrics.ErrNoLyrics) {
			writeError(w, http.StatusNotFound, "no lyrics available")
			return
		}
		zlog.Warn().Msgf("httpapi: lyrics fetch failed: %v", err)
		writeError(w, http.StatusBadGateway, "lyrics fetch failed")
		return
	}

	lns := tr.Lines()
	items := make([]map[string]any, len(lns))
	for i, ln := range lns {
		items[i] = map[string]any{
			"at_sec": ln.At.Seconds(),
			"text":   ln.Text,
		}
	}
	writeOK(w, "data", map[string]any{
		"lines":   items,
		"current": tr.IndexAt(st.Position),
	})
}

func (h *Handler) handleRemote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	switch req.Action {
	case "play_pause":
		err = h.player.PlayPause()
	case "next":
		err = h.player.Next()
	case "previous":
		err = h.player.Previous()
	default:
		writeError(w, http.StatusBadRequest, "unknown action: "+req.Action)
		return
	}
	if err != nil {
		writeError(w, http.StatusOK, err.Error())
		return
	}

	h.pushCommand(req.Action)
	writeJSON(w, map[string]any{"ok": true})
}

func (h *Handler) handleRemoteNext(w http.ResponseWriter, _ *http.Request) {
	h.cmdMu.Lock()
	var action any
	if len(h.commands) > 0 {
		action = h.commands[0]
		h.commands = h.commands[1:]
	}
	h.cmdMu.Unlock()

	writeOK(w, "data", map[string]any{"action": action})
}

func (h *Handler) handleRemotePlay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		Image       string `json:"image"`
		OriginalURL string `json:"original_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" && req.OriginalURL == "" {
		writeError(w, http.StatusBadRequest, "url or original_url is required")
		return
	}

	t := track.Track{
		Title:     req.Title,
		MediaURL:  req.URL,
		CoverURL:  req.Image,
		SourceURL: req.OriginalURL,
	}
	if err := h.player.PlayTrack(r.Context(), t); err != nil {
		zlog.Warn().Msgf("httpapi: remote play failed: %v", err)
		writeError(w, http.StatusOK, err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (h *Handler) handlePlaylist(w http.ResponseWriter, _ *http.Request) {
	tracks := h.player.Queue().Tracks()
	items := make([]map[string]any, len(tracks))
	for i, t := range tracks {
		items[i] = trackPayload(t)
	}
	writeOK(w, "items", items)
}

func (h *Handler) handlePlaylistAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		URL   string `json:"url"`
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t := track.Track{ID: req.ID, Title: req.Title, MediaURL: req.URL, CoverURL: req.Image}
	if err := h.player.Enqueue(t); err != nil {
		writeError(w, http.StatusOK, err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (h *Handler) handlePlaylistRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	q := h.player.Queue()
	for i, t := range q.Tracks() {
		if t.ID == req.ID {
			if err := q.Remove(i); err != nil {
				writeError(w, http.StatusOK, err.Error())
				return
			}
			writeJSON(w, map[string]any{"ok": true})
			return
		}
	}
	writeError(w, http.StatusNotFound, "track not in queue")
}

func (h *Handler) handleVolumeGet(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, "data", map[string]any{"volume": h.player.Volume()})
}

func (h *Handler) handleVolumeSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume int `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.player.SetVolume(req.Volume); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (h *Handler) pushCommand(action string) {
	h.cmdMu.Lock()
	defer h.cmdMu.Unlock()
	h.commands = append(h.commands, action)
	// Bound memory when nothing drains the log.
	if len(h.commands) > 32 {
		h.commands = h.commands[len(h.commands)-32:]
	}
}

func statusString(s player.State) string {
	switch s {
	case player.StatePlaying:
		return "playing"
	case player.StatePaused:
		return "paused"
	default:
		return "stopped"
	}
}

func trackPayload(t track.Track) map[string]any {
	return map[string]any{
		"id":    t.ID,
		"title": t.Title,
		"url":   t.MediaURL,
		"image": t.CoverURL,
	}
}

func writeOK(w http.ResponseWriter, key string, value any) {
	writeJSON(w, map[string]any{"ok": true, key: value})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": msg})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
