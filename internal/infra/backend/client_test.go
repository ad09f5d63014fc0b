package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neobelieve/tonhub/internal/domain/track"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(Config{BaseURL: server.URL})
	require.NoError(t, err)
	return client, server
}

func TestSearch(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/search", r.URL.Path)
		assert.Equal(t, "daft punk", r.URL.Query().Get("q"))

		fmt.Fprint(w, `{
			"ok": true,
			"items": [
				{"id": "abc", "title": "One More Time", "artist": "Daft Punk", "url": "https://e/1", "cover": "https://img/1.jpg"},
				{"id": "def", "title": "Around the World", "artist": "Daft Punk", "url": "https://e/2"}
			]
		}`)
	}))

	tracks, err := client.Search(context.Background(), "daft punk")
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "One More Time", tracks[0].Title)
	assert.Equal(t, "https://e/1", tracks[0].SourceURL)
	assert.Equal(t, "https://img/1.jpg", tracks[0].CoverURL)
}

func TestSearch_BackendError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok": false, "error": "offline"}`)
	}))

	_, err := client.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")
}

func TestDownload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/download", r.URL.Path)
		assert.Equal(t, "https://e/1", r.URL.Query().Get("url"))
		assert.Equal(t, "Song", r.URL.Query().Get("title"))
		assert.Equal(t, "1", r.URL.Query().Get("cache"))
		fmt.Fprint(w, `{"path": "/music_cache/Song.mp3"}`)
	}))

	path, err := client.Download(context.Background(), "https://e/1", "Song", true)
	require.NoError(t, err)
	assert.Equal(t, "/music_cache/Song.mp3", path)
}

func TestDownload_Error(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": "yt-dlp failed"}`)
	}))

	_, err := client.Download(context.Background(), "https://e/1", "Song", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yt-dlp failed")
}

func TestProbe(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "HEAD", r.Method)
		if r.URL.Path == "/music/Song.mp3" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	assert.True(t, client.Probe(context.Background(), "/music/Song.mp3"))
	assert.False(t, client.Probe(context.Background(), "/music_cache/Song.mp3"))
}

func TestLibraryAndCachePaths(t *testing.T) {
	client, err := New(Config{BaseURL: "http://localhost"})
	require.NoError(t, err)
	assert.Equal(t, "/music/My%20Song.mp3", client.LibraryPath("My Song?"))
	assert.Equal(t, "/music_cache/MySong.mp3", client.CachePath("My/Song"))
}

func TestUpdateRecent_LegacyStatusBody(t *testing.T) {
	var got map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/update_recent", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"status": "ok"}`)
	}))

	err := client.UpdateRecent(context.Background(), track.Track{
		ID: "a-1", Title: "A", MediaURL: "/music/A.mp3",
	})
	require.NoError(t, err)
	assert.Equal(t, "A", got["title"])
	assert.Equal(t, "track", got["type"])
}

func TestPlaylists(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"ok": true,
			"items": [
				{"name": "Road Trip", "items": [{"id": "a", "title": "A"}, {"id": "b", "title": "B"}]},
				{"name": "Empty", "items": []}
			]
		}`)
	}))

	playlists, err := client.Playlists(context.Background())
	require.NoError(t, err)
	require.Len(t, playlists, 2)
	assert.Equal(t, "Road Trip", playlists[0].Name)
	assert.Equal(t, []string{"a", "b"}, playlists[0].TrackIDs())
	assert.Empty(t, playlists[1].Items)
}

func TestAddToPlaylist(t *testing.T) {
	var got map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/playlists/add", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"ok": true}`)
	}))

	err := client.AddToPlaylist(context.Background(), "Road Trip", track.Track{ID: "a", Title: "A"})
	require.NoError(t, err)
	assert.Equal(t, "Road Trip", got["name"])
}

func TestHistory(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/history", r.URL.Path)
		fmt.Fprint(w, `{"ok": true, "items": [{"id": "a", "title": "A"}]}`)
	}))

	tracks, err := client.History(context.Background())
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "a", tracks[0].ID)
}

func TestLyrics(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Song", r.URL.Query().Get("title"))
		assert.Equal(t, "Artist", r.URL.Query().Get("artist"))
		fmt.Fprint(w, `{"ok": true, "data": {"title": "Song", "synced": "[00:01.00] hello"}}`)
	}))

	synced, err := client.Lyrics(context.Background(), "Song", "Artist")
	require.NoError(t, err)
	assert.Equal(t, "[00:01.00] hello", synced)
}

func TestDownloadImage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/download_image", r.URL.Path)
		fmt.Fprint(w, "/data/img/Song.jpg")
	}))

	path, err := client.DownloadImage(context.Background(), "https://img/x.jpg", "Song")
	require.NoError(t, err)
	assert.Equal(t, "/data/img/Song.jpg", path)
}

func TestGetEnvelope_MalformedJSON(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))

	_, err := client.History(context.Background())
	assert.Error(t, err)
}

func TestCachePlay(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/cache/play", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "https://e/1", payload["url"])
		assert.Equal(t, "One More Time", payload["title"])

		fmt.Fprint(w, `{"ok": true, "file_url": "/api/cache/file?key=one-more-time", "key": "one-more-time"}`)
	}))

	fileURL, err := client.CachePlay(context.Background(), track.Track{
		Title:     "One More Time",
		SourceURL: "https://e/1",
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/cache/file?key=one-more-time", fileURL)
}

func TestCachePlay_OfflineMiss(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok": false, "error": "offline and not cached"}`)
	}))

	_, err := client.CachePlay(context.Background(), track.Track{Title: "X", SourceURL: "https://e/x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline and not cached")
}

func TestCachePlay_RequiresSourceURL(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())

	_, err := client.CachePlay(context.Background(), track.Track{Title: "X"})
	require.Error(t, err)
}

func TestDownloadList(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/download/list", r.URL.Path)
		fmt.Fprint(w, `{
			"ok": true,
			"items": [
				{"title": "Kept", "file_url": "/api/download/file?title=Kept"},
				{"title": "Gone", "file_url": null}
			]
		}`)
	}))

	tracks, err := client.DownloadList(context.Background())
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "/api/download/file?title=Kept", tracks[0].MediaURL)
	assert.Empty(t, tracks[1].MediaURL)
}

func TestPrefetch(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/cache/prefetch", r.URL.Path)

		var payload struct {
			Items []map[string]any `json:"items"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Items, 2)

		fmt.Fprint(w, `{"ok": true}`)
	}))

	err := client.Prefetch(context.Background(), []track.Track{
		{Title: "A", SourceURL: "https://e/a"},
		{Title: "B", SourceURL: "https://e/b"},
	})
	require.NoError(t, err)
}
