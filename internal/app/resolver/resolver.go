// Package resolver turns track descriptors into playable media URLs.
//
// Resolution walks a fixed precedence: a local media path already on
// the descriptor, the permanent library, the cache, and finally a
// server-side download of the source URL. Each successful resolution
// also records the track into the backend's recent history.
package resolver

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/neobelieve/tonhub/internal/domain/track"
)

// ErrUnresolvable is returned when no tier can produce playable media.
var ErrUnresolvable = errors.New("no playable media found for track")

// Backend captures the media backend calls the resolver needs.
type Backend interface {
	Probe(ctx context.Context, path string) bool
	LibraryPath(title string) string
	CachePath(title string) string
	Download(ctx context.Context, sourceURL, title string, cache bool) (string, error)
	UpdateRecent(ctx context.Context, t track.Track) error
	Recent(ctx context.Context) ([]track.Track, error)
	DownloadImage(ctx context.Context, imageURL, title string) (string, error)
}

// CoverLookup finds artwork for tracks that carry none. Optional.
type CoverLookup interface {
	CoverURL(ctx context.Context, title, artist string) (string, error)
}

// Config holds resolver dependencies.
type Config struct {
	Backend Backend
	Covers  CoverLookup // nil disables the lookup tier

	// OnRecent receives the refreshed recent-history tracks after a
	// single-track play, so the queue can repopulate itself.
	OnRecent func(tracks []track.Track)

	// SideEffectTimeout bounds the asynchronous history update.
	SideEffectTimeout time.Duration
}

// Resolver resolves tracks to playable media.
type Resolver struct {
	backend  Backend
	covers   CoverLookup
	onRecent func([]track.Track)
	timeout  time.Duration
}

// New creates a resolver.
func New(cfg Config) *Resolver {
	timeout := cfg.SideEffectTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Resolver{
		backend:  cfg.Backend,
		covers:   cfg.Covers,
		onRecent: cfg.OnRecent,
		timeout:  timeout,
	}
}

// Resolve returns a copy of the track with MediaURL (and, best-effort,
// CoverURL) filled in. singlePlay marks a play that did not come from
// an explicit playlist load; it triggers the queue-refresh side effect.
//
// The recent-history update runs in the background and never delays or
// fails the resolution itself.
func (r *Resolver) Resolve(ctx context.Context, t track.Track, singlePlay bool) (track.Track, error) {
	t.EnsureID()

	media, err := r.resolveMedia(ctx, t)
	if err != nil {
		return track.Track{}, err
	}
	t.MediaURL = media
	t.CoverURL = r.resolveCover(ctx, t)

	go r.recordPlay(t, singlePlay)

	return t, nil
}

func (r *Resolver) resolveMedia(ctx context.Context, t track.Track) (string, error) {
	// Tier 1: descriptor already points at local media.
	if t.HasLocalMedia() {
		zlog.Debug().Msgf("resolver: using local media: track=%s path=%s", t.Title, t.MediaURL)
		return t.MediaURL, nil
	}

	// Tier 2: permanent library.
	if path := r.backend.LibraryPath(t.Title); r.backend.Probe(ctx, path) {
		zlog.Debug().Msgf("resolver: found in library: track=%s path=%s", t.Title, path)
		return path, nil
	}

	// Tier 3: cache.
	if path := r.backend.CachePath(t.Title); r.backend.Probe(ctx, path) {
		zlog.Debug().Msgf("resolver: found in cache: track=%s path=%s", t.Title, path)
		return path, nil
	}

	// Tier 4: materialize server-side from the source URL.
	if t.SourceURL != "" {
		path, err := r.backend.Download(ctx, t.SourceURL, t.Title, true)
		if err != nil {
			return "", errors.Wrapf(err, "download failed for %q", t.Title)
		}
		zlog.Info().Msgf("resolver: downloaded: track=%s path=%s", t.Title, path)
		return path, nil
	}

	return "", errors.Wrapf(ErrUnresolvable, "track %q", t.Title)
}

// resolveCover settles the track's artwork. External URLs are rewritten
// to a locally cached copy so they are fetched once; tracks without any
// artwork get a best-effort lookup. Failures leave whatever was there.
func (r *Resolver) resolveCover(ctx context.Context, t track.Track) string {
	cover := t.CoverURL

	if cover == "" && r.covers != nil {
		found, err := r.covers.CoverURL(ctx, t.Title, t.Artist)
		if err != nil {
			zlog.Debug().Msgf("resolver: cover lookup failed: track=%s error=%v", t.Title, err)
		} else {
			cover = found
		}
	}

	if isExternalURL(cover) {
		local, err := r.backend.DownloadImage(ctx, cover, t.Title)
		if err != nil {
			zlog.Debug().Msgf("resolver: cover rewrite failed, keeping external URL: track=%s error=%v", t.Title, err)
			return cover
		}
		return local
	}

	return cover
}

// recordPlay pushes the track into the backend's recent history and,
// for single-track plays, hands the refreshed history to the queue.
func (r *Resolver) recordPlay(t track.Track, singlePlay bool) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.backend.UpdateRecent(ctx, t); err != nil {
		zlog.Warn().Msgf("resolver: failed to record recent play: track=%s error=%v", t.Title, err)
		return
	}

	if !singlePlay || r.onRecent == nil {
		return
	}

	recent, err := r.backend.Recent(ctx)
	if err != nil {
		zlog.Warn().Msgf("resolver: failed to fetch recent history: error=%v", err)
		return
	}
	r.onRecent(recent)
}

func isExternalURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
