package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neobelieve/tonhub/internal/domain/track"
)

type fakeBackend struct {
	mu sync.Mutex

	existing     map[string]bool // probe-able paths
	downloadPath string
	downloadErr  error
	imagePath    string
	imageErr     error
	recent       []track.Track
	recentErr    error

	downloads     []string // source URLs passed to Download
	recentUpdates []track.Track
	recentCh      chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		existing: make(map[string]bool),
		recentCh: make(chan struct{}, 10),
	}
}

func (f *fakeBackend) Probe(_ context.Context, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[path]
}

func (f *fakeBackend) LibraryPath(title string) string {
	return "/music/" + track.SanitizeTitle(title) + ".mp3"
}

func (f *fakeBackend) CachePath(title string) string {
	return "/music_cache/" + track.SanitizeTitle(title) + ".mp3"
}

func (f *fakeBackend) Download(_ context.Context, sourceURL, _ string, _ bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, sourceURL)
	return f.downloadPath, f.downloadErr
}

func (f *fakeBackend) UpdateRecent(_ context.Context, t track.Track) error {
	f.mu.Lock()
	f.recentUpdates = append(f.recentUpdates, t)
	f.mu.Unlock()
	f.recentCh <- struct{}{}
	return nil
}

func (f *fakeBackend) Recent(_ context.Context) ([]track.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recent, f.recentErr
}

func (f *fakeBackend) DownloadImage(_ context.Context, _, _ string) (string, error) {
	return f.imagePath, f.imageErr
}

func (f *fakeBackend) waitRecent(t *testing.T) {
	t.Helper()
	select {
	case <-f.recentCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for recent update")
	}
}

type fakeCovers struct {
	url string
	err error
}

func (f *fakeCovers) CoverURL(_ context.Context, _, _ string) (string, error) {
	return f.url, f.err
}

func TestResolveLocalMedia(t *testing.T) {
	backend := newFakeBackend()
	r := New(Config{Backend: backend})

	got, err := r.Resolve(context.Background(), track.Track{
		Title:    "Song",
		MediaURL: "/music/Song.mp3",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "/music/Song.mp3", got.MediaURL)
	assert.Empty(t, backend.downloads, "local media must not trigger a download")
}

func TestResolveFromLibrary(t *testing.T) {
	backend := newFakeBackend()
	backend.existing["/music/Song.mp3"] = true
	r := New(Config{Backend: backend})

	got, err := r.Resolve(context.Background(), track.Track{Title: "Song"}, false)
	require.NoError(t, err)
	assert.Equal(t, "/music/Song.mp3", got.MediaURL)
}

func TestResolveFromCache(t *testing.T) {
	backend := newFakeBackend()
	backend.existing["/music_cache/Song.mp3"] = true
	r := New(Config{Backend: backend})

	got, err := r.Resolve(context.Background(), track.Track{Title: "Song"}, false)
	require.NoError(t, err)
	assert.Equal(t, "/music_cache/Song.mp3", got.MediaURL)
}

func TestResolveDownloads(t *testing.T) {
	backend := newFakeBackend()
	backend.downloadPath = "/music_cache/Song.mp3"
	r := New(Config{Backend: backend})

	got, err := r.Resolve(context.Background(), track.Track{
		Title:     "Song",
		SourceURL: "https://example.com/watch?v=1",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "/music_cache/Song.mp3", got.MediaURL)
	assert.Equal(t, []string{"https://example.com/watch?v=1"}, backend.downloads)
}

func TestResolveDownloadError(t *testing.T) {
	backend := newFakeBackend()
	backend.downloadErr = errors.New("server exploded")
	r := New(Config{Backend: backend})

	_, err := r.Resolve(context.Background(), track.Track{
		Title:     "Song",
		SourceURL: "https://example.com/watch?v=1",
	}, false)
	assert.Error(t, err)
}

func TestResolveUnresolvable(t *testing.T) {
	backend := newFakeBackend()
	r := New(Config{Backend: backend})

	_, err := r.Resolve(context.Background(), track.Track{Title: "Song"}, false)
	assert.ErrorIs(t, err, ErrUnresolvable)
}

func TestResolveRecordsRecent(t *testing.T) {
	backend := newFakeBackend()
	backend.existing["/music/Song.mp3"] = true
	r := New(Config{Backend: backend})

	_, err := r.Resolve(context.Background(), track.Track{Title: "Song"}, false)
	require.NoError(t, err)

	backend.waitRecent(t)
	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.recentUpdates, 1)
	assert.Equal(t, "Song", backend.recentUpdates[0].Title)
}

func TestSinglePlayRefreshesQueue(t *testing.T) {
	backend := newFakeBackend()
	backend.existing["/music/Song.mp3"] = true
	backend.recent = []track.Track{{Title: "Song"}, {Title: "Other"}}

	gotCh := make(chan []track.Track, 1)
	r := New(Config{
		Backend:  backend,
		OnRecent: func(tracks []track.Track) { gotCh <- tracks },
	})

	_, err := r.Resolve(context.Background(), track.Track{Title: "Song"}, true)
	require.NoError(t, err)

	select {
	case got := <-gotCh:
		require.Len(t, got, 2)
		assert.Equal(t, "Other", got[1].Title)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for queue refresh")
	}
}

func TestPlaylistPlaySkipsQueueRefresh(t *testing.T) {
	backend := newFakeBackend()
	backend.existing["/music/Song.mp3"] = true
	backend.recent = []track.Track{{Title: "Song"}}

	called := make(chan struct{}, 1)
	r := New(Config{
		Backend:  backend,
		OnRecent: func([]track.Track) { called <- struct{}{} },
	})

	_, err := r.Resolve(context.Background(), track.Track{Title: "Song"}, false)
	require.NoError(t, err)

	backend.waitRecent(t)
	select {
	case <-called:
		t.Fatal("playlist play must not refresh the queue from recent history")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCoverExternalURLRewritten(t *testing.T) {
	backend := newFakeBackend()
	backend.existing["/music/Song.mp3"] = true
	backend.imagePath = "/cover/Song.jpg"
	r := New(Config{Backend: backend})

	got, err := r.Resolve(context.Background(), track.Track{
		Title:    "Song",
		CoverURL: "https://img.example.com/a.jpg",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "/cover/Song.jpg", got.CoverURL)
}

func TestCoverRewriteFailureKeepsExternal(t *testing.T) {
	backend := newFakeBackend()
	backend.existing["/music/Song.mp3"] = true
	backend.imageErr = errors.New("no disk")
	r := New(Config{Backend: backend})

	got, err := r.Resolve(context.Background(), track.Track{
		Title:    "Song",
		CoverURL: "https://img.example.com/a.jpg",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/a.jpg", got.CoverURL)
}

func TestCoverLocalPathKept(t *testing.T) {
	backend := newFakeBackend()
	backend.existing["/music/Song.mp3"] = true
	r := New(Config{Backend: backend})

	got, err := r.Resolve(context.Background(), track.Track{
		Title:    "Song",
		CoverURL: "/cover/Song.jpg",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "/cover/Song.jpg", got.CoverURL)
}

func TestCoverLookupFillsMissingArtwork(t *testing.T) {
	backend := newFakeBackend()
	backend.existing["/music/Song.mp3"] = true
	backend.imagePath = "/cover/Song.jpg"
	r := New(Config{
		Backend: backend,
		Covers:  &fakeCovers{url: "https://i.scdn.co/image/abc"},
	})

	got, err := r.Resolve(context.Background(), track.Track{Title: "Song"}, false)
	require.NoError(t, err)
	assert.Equal(t, "/cover/Song.jpg", got.CoverURL)
}

func TestCoverLookupFailureLeavesEmpty(t *testing.T) {
	backend := newFakeBackend()
	backend.existing["/music/Song.mp3"] = true
	r := New(Config{
		Backend: backend,
		Covers:  &fakeCovers{err: errors.New("rate limited")},
	})

	got, err := r.Resolve(context.Background(), track.Track{Title: "Song"}, false)
	require.NoError(t, err)
	assert.Empty(t, got.CoverURL)
}
