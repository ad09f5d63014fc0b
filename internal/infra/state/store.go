// Package state provides durable persistence of player state.
//
// State is kept in a single versioned JSON file written atomically
// (tmp file + rename). Loading fails soft: missing or unparsable data
// yields a zero state and never an error to the caller.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/neobelieve/tonhub/internal/domain/device"
	"github.com/neobelieve/tonhub/internal/domain/track"
)

// SchemaVersion is the current on-disk schema version. Files with a
// higher version are discarded rather than misread.
const SchemaVersion = 1

// PersistedTrack is the on-disk representation of a queue entry.
type PersistedTrack struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist,omitempty"`
	SourceURL  string `json:"url,omitempty"`
	MediaURL   string `json:"media_url,omitempty"`
	CoverURL   string `json:"cover,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// PersistedDevice is the on-disk representation of a paired device.
type PersistedDevice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Host string `json:"host"`
	Port int    `json:"port"`
	Type string `json:"device_type,omitempty"`
}

// State is the full persisted player state.
type State struct {
	Version      int               `json:"version"`
	Queue        []PersistedTrack  `json:"queue"`
	Cursor       int               `json:"cursor"`
	Repeat       string            `json:"repeat"`
	Shuffle      bool              `json:"shuffle"`
	Devices      []PersistedDevice `json:"devices,omitempty"`
	ActiveDevice *PersistedDevice  `json:"active_device,omitempty"`
	Volume       int               `json:"volume"`
	CurrentMedia string            `json:"current_media,omitempty"`
	CurrentTitle string            `json:"current_title,omitempty"`
	CurrentCover string            `json:"current_cover,omitempty"`
	PositionSec  float64           `json:"position_sec,omitempty"`
}

// Zero returns the state used when nothing valid is on disk.
func Zero() State {
	return State{Version: SchemaVersion, Cursor: -1, Volume: 80}
}

// Store reads and writes the player state file.
type Store struct {
	mu   sync.Mutex
	path string
	cur  State
}

// NewStore creates a store backed by the given file path. The file and
// its parent directory are created on first save.
func NewStore(path string) *Store {
	return &Store{path: path, cur: Zero()}
}

// Load reads the state file. Missing files, unparsable JSON, and future
// schema versions all fall back to the zero state; the legacy
// unversioned shape is migrated in place.
func (s *Store) Load() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		s.cur = Zero()
		return s.cur
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		zlog.Warn().Msgf("state: discarding unparsable state file: %v", err)
		s.cur = Zero()
		return s.cur
	}

	if _, ok := raw["version"]; !ok {
		st, err := migrateLegacy(raw)
		if err != nil {
			zlog.Warn().Msgf("state: legacy migration failed, starting empty: %v", err)
			s.cur = Zero()
			return s.cur
		}
		zlog.Info().Msgf("state: migrated legacy state file: tracks=%d", len(st.Queue))
		s.cur = st
		return s.cur
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		zlog.Warn().Msgf("state: discarding malformed state file: %v", err)
		s.cur = Zero()
		return s.cur
	}
	if st.Version > SchemaVersion {
		zlog.Warn().Msgf("state: unknown schema version %d, starting empty", st.Version)
		s.cur = Zero()
		return s.cur
	}
	if len(st.Queue) == 0 && st.Cursor != -1 {
		st.Cursor = -1
	}
	s.cur = st
	return s.cur
}

// Current returns the last loaded or saved state.
func (s *Store) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Save persists the full state atomically.
func (s *Store) Save(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.Version = SchemaVersion
	if err := s.writeLocked(st); err != nil {
		return err
	}
	s.cur = st
	return nil
}

// Update applies fn to the current state and persists the result.
func (s *Store) Update(fn func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.cur
	fn(&st)
	st.Version = SchemaVersion
	if err := s.writeLocked(st); err != nil {
		return err
	}
	s.cur = st
	return nil
}

// SaveQueue persists the queue, cursor and playback mode in one write.
func (s *Store) SaveQueue(tracks []track.Track, cursor int, repeat string, shuffle bool) error {
	return s.Update(func(st *State) {
		st.Queue = ToPersisted(tracks)
		st.Cursor = cursor
		st.Repeat = repeat
		st.Shuffle = shuffle
	})
}

// SaveDevices persists the paired device set and the active device.
func (s *Store) SaveDevices(devices []device.Device, active *device.Device) error {
	return s.Update(func(st *State) {
		st.Devices = make([]PersistedDevice, len(devices))
		for i, d := range devices {
			st.Devices[i] = toPersistedDevice(d)
		}
		st.ActiveDevice = nil
		if active != nil {
			pd := toPersistedDevice(*active)
			st.ActiveDevice = &pd
		}
	})
}

// SavePlayback persists the transient transport position for restore on
// the next start.
func (s *Store) SavePlayback(mediaURL, title, cover string, position time.Duration, volume int) error {
	return s.Update(func(st *State) {
		st.CurrentMedia = mediaURL
		st.CurrentTitle = title
		st.CurrentCover = cover
		st.PositionSec = position.Seconds()
		st.Volume = volume
	})
}

func (s *Store) writeLocked(st State) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "failed to create state directory")
		}
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write state file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "failed to replace state file")
	}
	return nil
}

// ToPersisted converts domain tracks to their on-disk form.
func ToPersisted(tracks []track.Track) []PersistedTrack {
	out := make([]PersistedTrack, len(tracks))
	for i, t := range tracks {
		out[i] = PersistedTrack{
			ID:         t.ID,
			Title:      t.Title,
			Artist:     t.Artist,
			SourceURL:  t.SourceURL,
			MediaURL:   t.MediaURL,
			CoverURL:   t.CoverURL,
			DurationMs: t.Duration.Milliseconds(),
		}
	}
	return out
}

// ToTracks converts persisted entries back to domain tracks, deriving
// IDs for entries that predate stable IDs.
func ToTracks(entries []PersistedTrack) []track.Track {
	out := make([]track.Track, len(entries))
	for i, e := range entries {
		t := track.Track{
			ID:        e.ID,
			Title:     e.Title,
			Artist:    e.Artist,
			SourceURL: e.SourceURL,
			MediaURL:  e.MediaURL,
			CoverURL:  e.CoverURL,
			Duration:  time.Duration(e.DurationMs) * time.Millisecond,
		}
		t.EnsureID()
		out[i] = t
	}
	return out
}

// ToDevices converts persisted devices back to domain devices.
func ToDevices(entries []PersistedDevice) []device.Device {
	out := make([]device.Device, len(entries))
	for i, e := range entries {
		out[i] = device.Device{ID: e.ID, Name: e.Name, Host: e.Host, Port: e.Port, Type: e.Type}
	}
	return out
}

// ToDevice converts a single persisted device, or nil.
func ToDevice(e *PersistedDevice) *device.Device {
	if e == nil {
		return nil
	}
	d := device.Device{ID: e.ID, Name: e.Name, Host: e.Host, Port: e.Port, Type: e.Type}
	return &d
}

func toPersistedDevice(d device.Device) PersistedDevice {
	return PersistedDevice{ID: d.ID, Name: d.Name, Host: d.Host, Port: d.Port, Type: d.Type}
}
