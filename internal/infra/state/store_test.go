package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neobelieve/tonhub/internal/domain/device"
	"github.com/neobelieve/tonhub/internal/domain/track"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "state.json"))
}

func TestStore_RoundTrip(t *testing.T) {
	s := testStore(t)

	queue := []track.Track{
		{ID: "a-1", Title: "A", Artist: "X", SourceURL: "https://e/a", Duration: 3 * time.Minute},
		{ID: "b-2", Title: "B", MediaURL: "/music/B.mp3"},
	}
	require.NoError(t, s.SaveQueue(queue, 1, "all", true))

	// A fresh store against the same file sees the same values.
	s2 := NewStore(s.path)
	st := s2.Load()
	assert.Equal(t, SchemaVersion, st.Version)
	assert.Equal(t, 1, st.Cursor)
	assert.Equal(t, "all", st.Repeat)
	assert.True(t, st.Shuffle)
	assert.Equal(t, queue, ToTracks(st.Queue))
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := testStore(t)
	st := s.Load()
	assert.Empty(t, st.Queue)
	assert.Equal(t, -1, st.Cursor)
}

func TestStore_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	st := NewStore(path).Load()
	assert.Empty(t, st.Queue)
	assert.Equal(t, -1, st.Cursor)
}

func TestStore_LoadFutureVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99, "cursor": 5}`), 0644))

	st := NewStore(path).Load()
	assert.Equal(t, -1, st.Cursor)
	assert.Equal(t, SchemaVersion, st.Version)
}

func TestStore_MigratesLegacyShape(t *testing.T) {
	legacy := `{
		"queue": [
			{"Track Name": "Song One", "Artist Name(s)": "Artist A", "url": "https://e/1", "thumbnail": "https://img/1.jpg"},
			{"title": "Song Two", "url": "https://e/2"}
		],
		"currentQueueIndex": "1",
		"nbDevices": [{"host": "192.168.1.20", "port": 5050, "name": "Salon", "device_type": "LumaTV"}],
		"nbActiveDevice": {"host": "192.168.1.20", "port": 5050, "name": "Salon", "device_type": "LumaTV"},
		"currentTrack": "/music_cache/Song One.mp3",
		"currentTitle": "Song One",
		"currentTime": 42.5,
		"volume": 0.8
	}`
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	st := NewStore(path).Load()
	require.Len(t, st.Queue, 2)
	assert.Equal(t, 1, st.Cursor)
	assert.Equal(t, "Song One", st.Queue[0].Title)
	assert.Equal(t, "Artist A", st.Queue[0].Artist)
	assert.Equal(t, track.DeriveID("https://e/1", "Song One"), st.Queue[0].ID)
	assert.Equal(t, "Song Two", st.Queue[1].Title)
	assert.Equal(t, 80, st.Volume)
	assert.InDelta(t, 42.5, st.PositionSec, 1e-9)

	require.Len(t, st.Devices, 1)
	assert.Equal(t, "192.168.1.20:5050", st.Devices[0].ID)
	require.NotNil(t, st.ActiveDevice)
	assert.Equal(t, "LumaTV", st.ActiveDevice.Type)
}

func TestStore_MigrationClampsCursor(t *testing.T) {
	legacy := `{"queue": [{"title": "Only", "url": "https://e/1"}], "currentQueueIndex": 7}`
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	st := NewStore(path).Load()
	assert.Equal(t, 0, st.Cursor)
}

func TestStore_SaveDevices(t *testing.T) {
	s := testStore(t)
	d := device.New("Salon", "10.0.0.2", 5050, "LumaTV")
	require.NoError(t, s.SaveDevices([]device.Device{d}, &d))

	st := NewStore(s.path).Load()
	require.Len(t, st.Devices, 1)
	assert.Equal(t, []device.Device{d}, ToDevices(st.Devices))
	require.NotNil(t, st.ActiveDevice)
	assert.Equal(t, d, *ToDevice(st.ActiveDevice))
}

func TestStore_SavePlayback(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SavePlayback("/music/A.mp3", "A", "/cover/A.jpg", 90*time.Second, 65))

	st := NewStore(s.path).Load()
	assert.Equal(t, "/music/A.mp3", st.CurrentMedia)
	assert.Equal(t, "A", st.CurrentTitle)
	assert.InDelta(t, 90, st.PositionSec, 1e-9)
	assert.Equal(t, 65, st.Volume)
}

func TestStore_UpdatePreservesOtherFields(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveQueue([]track.Track{{ID: "a", Title: "A"}}, 0, "off", false))
	require.NoError(t, s.SavePlayback("/music/A.mp3", "A", "", 0, 50))

	st := NewStore(s.path).Load()
	assert.Len(t, st.Queue, 1)
	assert.Equal(t, "/music/A.mp3", st.CurrentMedia)
}
