// Package service wires the player together: it pumps queue and
// surface events, routes transport commands to the local surface or
// the bound remote device, and keeps the persisted playback snapshot
// fresh.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/neobelieve/tonhub/internal/app/player"
	"github.com/neobelieve/tonhub/internal/app/queue"
	"github.com/neobelieve/tonhub/internal/domain/track"
	"github.com/neobelieve/tonhub/internal/infra/state"
)

// ErrNothingToPlay is returned when play is requested with an empty queue.
var ErrNothingToPlay = errors.New("nothing to play")

// Resolver resolves a track to playable media.
type Resolver interface {
	Resolve(ctx context.Context, t track.Track, singlePlay bool) (track.Track, error)
}

// Remote is the slice of the remote controller the service routes
// transport commands through while a device is bound.
type Remote interface {
	Bound() bool
	PlayPause() error
	Next() error
	Previous() error
	PlayTrack(t track.Track) error
	Enqueue(t track.Track) error
}

// Config holds service dependencies.
type Config struct {
	Queue    *queue.Controller
	Surface  *player.Surface
	Resolver Resolver
	Remote   Remote
	Store    *state.Store

	// ResolveTimeout bounds a single resolution. Downloads can be slow.
	ResolveTimeout time.Duration
	// PersistInterval is how often the playback snapshot is written.
	PersistInterval time.Duration
}

// Service is the player orchestrator.
type Service struct {
	queue    *queue.Controller
	surface  *player.Surface
	resolver Resolver
	remote   Remote
	store    *state.Store

	resolveTimeout  time.Duration
	persistInterval time.Duration

	mu      sync.Mutex
	volume  int
	playGen int // invalidates in-flight resolutions on newer plays

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the service.
func New(cfg Config) *Service {
	resolveTimeout := cfg.ResolveTimeout
	if resolveTimeout == 0 {
		resolveTimeout = 2 * time.Minute
	}
	persistInterval := cfg.PersistInterval
	if persistInterval == 0 {
		persistInterval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		queue:           cfg.Queue,
		surface:         cfg.Surface,
		resolver:        cfg.Resolver,
		remote:          cfg.Remote,
		store:           cfg.Store,
		resolveTimeout:  resolveTimeout,
		persistInterval: persistInterval,
		volume:          80,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Start restores persisted playback settings and begins pumping events.
func (s *Service) Start() {
	if s.store != nil {
		st := s.store.Current()
		s.mu.Lock()
		if st.Volume > 0 {
			s.volume = st.Volume
		}
		s.mu.Unlock()
	}
	s.surface.SetLoop(s.queue.Repeat() == queue.RepeatOne)

	s.wg.Add(2)
	go s.pump()
	go s.persistLoop()
}

// Close stops the event pump.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// PlayPause toggles playback. While a device is bound the toggle goes
// to the device; locally it pauses, resumes, or starts the current
// queue track.
func (s *Service) PlayPause() error {
	if s.remote != nil && s.remote.Bound() {
		return s.remote.PlayPause()
	}

	switch s.surface.State() {
	case player.StatePlaying:
		return s.surface.Pause()
	case player.StatePaused:
		return s.surface.Resume()
	default:
		t, ok := s.queue.Current()
		if !ok {
			return ErrNothingToPlay
		}
		s.startLocal(t, false)
		return nil
	}
}

// Next moves to the following track, or forwards the command to the
// bound device.
func (s *Service) Next() error {
	if s.remote != nil && s.remote.Bound() {
		return s.remote.Next()
	}
	return s.queue.Next()
}

// Previous moves to the preceding track, or forwards the command to
// the bound device.
func (s *Service) Previous() error {
	if s.remote != nil && s.remote.Bound() {
		return s.remote.Previous()
	}
	return s.queue.Previous()
}

// PlayTrack plays a single track immediately. Locally this resolves
// synchronously so the caller sees resolution failures; the queue then
// repopulates itself from recent history via the resolver side effect.
func (s *Service) PlayTrack(ctx context.Context, t track.Track) error {
	if s.remote != nil && s.remote.Bound() {
		return s.remote.PlayTrack(t)
	}

	resolved, err := s.resolver.Resolve(ctx, t, true)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.playGen++
	s.mu.Unlock()

	s.surface.Play(resolved, resolved.Duration)
	return nil
}

// Enqueue appends a track to the local queue or the bound device's
// playlist.
func (s *Service) Enqueue(t track.Track) error {
	if s.remote != nil && s.remote.Bound() {
		return s.remote.Enqueue(t)
	}
	s.queue.Add(t)
	return nil
}

// SetVolume sets and persists the output volume (0-100).
func (s *Service) SetVolume(v int) error {
	if v < 0 || v > 100 {
		return errors.Newf("volume out of range: %d", v)
	}

	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()

	if s.store != nil {
		return s.store.Update(func(st *state.State) {
			st.Volume = v
		})
	}
	return nil
}

// Volume returns the output volume.
func (s *Service) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Status is the transport snapshot served to peers.
type Status struct {
	Track    *track.Track
	State    player.State
	Position time.Duration
	Duration time.Duration
	Volume   int
}

// Status reports the local transport state.
func (s *Service) Status() Status {
	return Status{
		Track:    s.surface.Current(),
		State:    s.surface.State(),
		Position: s.surface.Position(),
		Duration: s.surface.Duration(),
		Volume:   s.Volume(),
	}
}

// Queue returns the queue controller for direct queue inspection.
func (s *Service) Queue() *queue.Controller {
	return s.queue
}

// pump is the event loop: queue decisions drive the surface, surface
// lifecycle drives the queue.
func (s *Service) pump() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case e := <-s.queue.Events():
			switch e.Type {
			case queue.EventPlay:
				s.startLocal(*e.Track, false)
			case queue.EventStop:
				s.surface.Stop()
			case queue.EventChanged:
				s.surface.SetLoop(s.queue.Repeat() == queue.RepeatOne)
			}

		case e := <-s.surface.Events():
			if e.Type == player.EventTrackEnded {
				s.queue.Advance()
			}
		}
	}
}

// startLocal resolves a track in the background and hands it to the
// surface. A newer play supersedes any still-resolving older one; the
// stale result is dropped when it arrives.
func (s *Service) startLocal(t track.Track, singlePlay bool) {
	s.mu.Lock()
	s.playGen++
	gen := s.playGen
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.resolveTimeout)
		defer cancel()

		resolved, err := s.resolver.Resolve(ctx, t, singlePlay)
		if err != nil {
			zlog.Error().Msgf("service: cannot play %q: %v", t.Title, err)
			return
		}

		s.mu.Lock()
		stale := gen != s.playGen
		s.mu.Unlock()
		if stale {
			zlog.Debug().Msgf("service: dropping stale resolution for %q", t.Title)
			return
		}

		s.surface.Play(resolved, resolved.Duration)
	}()
}

// persistLoop periodically snapshots the transport into the state
// file so a restart can show where playback left off.
func (s *Service) persistLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.persistInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			cur := s.surface.Current()
			if cur == nil || s.store == nil {
				continue
			}
			err := s.store.SavePlayback(cur.MediaURL, cur.Title, cur.CoverURL,
				s.surface.Position(), s.Volume())
			if err != nil {
				zlog.Warn().Err(err).Msg("service: failed to persist playback snapshot")
			}
		}
	}
}
