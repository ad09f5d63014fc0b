package player

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/neobelieve/tonhub/internal/domain/track"
)

// Errors
var (
	ErrNoTrack    = errors.New("no track loaded")
	ErrNotPlaying = errors.New("not playing")
	ErrNotPaused  = errors.New("not paused")
)

// Surface is the local playback output. It plays one track at a time
// and emits an event when the track runs out, so the queue layer can
// decide what happens next. A track with unknown (zero) duration plays
// until it is explicitly stopped or replaced.
type Surface struct {
	mu sync.RWMutex

	current       *track.Track
	state         State
	duration      time.Duration
	startTime     time.Time
	pausedAt      *time.Time
	pausedElapsed time.Duration
	loop          bool

	timerCancel func()

	eventCh chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new playback surface.
func New() *Surface {
	ctx, cancel := context.WithCancel(context.Background())
	return &Surface{
		state:   StateIdle,
		eventCh: make(chan Event, 10),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Events returns the event channel.
func (s *Surface) Events() <-chan Event {
	return s.eventCh
}

// Play loads a track and starts playing it from the beginning,
// replacing whatever was loaded before. duration zero means unknown:
// no end timer is armed and the track plays until stopped.
func (s *Surface) Play(t track.Track, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()

	s.current = &t
	s.duration = duration
	s.startTime = toWallTime(time.Now())
	s.pausedAt = nil
	s.pausedElapsed = 0
	s.state = StatePlaying

	if duration > 0 {
		s.startEndTimerLocked(duration)
	}

	zlog.Debug().Msgf("player: playing track=%s duration=%v", t.Title, duration)

	s.sendEventLocked(Event{
		Type:  EventTrackStarted,
		Track: s.current,
		State: s.state,
	})
}

// Pause pauses the current playback.
func (s *Surface) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ErrNoTrack
	}
	if s.state != StatePlaying {
		return ErrNotPlaying
	}

	s.stopTimerLocked()

	now := toWallTime(time.Now())
	s.pausedAt = &now
	s.state = StatePaused

	s.sendEventLocked(Event{
		Type:  EventStateChanged,
		Track: s.current,
		State: s.state,
	})
	return nil
}

// Resume resumes paused playback.
func (s *Surface) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ErrNoTrack
	}
	if s.state != StatePaused {
		return ErrNotPaused
	}

	if s.pausedAt != nil {
		s.pausedElapsed += toWallTime(time.Now()).Sub(*s.pausedAt)
	}
	s.pausedAt = nil
	s.state = StatePlaying

	if s.duration > 0 {
		remaining := s.remainingLocked()
		if remaining <= 0 {
			s.onTrackEndLocked()
			return nil
		}
		s.startEndTimerLocked(remaining)
	}

	s.sendEventLocked(Event{
		Type:  EventStateChanged,
		Track: s.current,
		State: s.state,
	})
	return nil
}

// Seek moves the playhead of the current track. Positions beyond a
// known duration end the track.
func (s *Surface) Seek(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ErrNoTrack
	}
	if pos < 0 {
		pos = 0
	}

	now := toWallTime(time.Now())
	s.startTime = now.Add(-pos)
	s.pausedElapsed = 0
	if s.pausedAt != nil {
		s.pausedAt = &now
	}

	if s.duration > 0 && s.state == StatePlaying {
		remaining := s.duration - pos
		if remaining <= 0 {
			s.onTrackEndLocked()
			return nil
		}
		s.startEndTimerLocked(remaining)
	}
	return nil
}

// SetLoop toggles single-track looping. When set, a track that runs
// out restarts from zero instead of ending.
func (s *Surface) SetLoop(loop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = loop
}

// Loop reports whether single-track looping is enabled.
func (s *Surface) Loop() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loop
}

// Stop unloads the current track and returns the surface to idle.
func (s *Surface) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return
	}

	s.stopTimerLocked()
	s.current = nil
	s.duration = 0
	s.pausedAt = nil
	s.pausedElapsed = 0
	s.state = StateIdle

	s.sendEventLocked(Event{
		Type:  EventStateChanged,
		State: s.state,
	})
}

// Current returns the loaded track, or nil when idle.
func (s *Surface) Current() *track.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	t := *s.current
	return &t
}

// State returns the current playback state.
func (s *Surface) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Position returns the current playhead position.
func (s *Surface) Position() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return 0
	}

	ref := toWallTime(time.Now())
	if s.pausedAt != nil {
		ref = *s.pausedAt
	}
	pos := ref.Sub(s.startTime) - s.pausedElapsed
	if pos < 0 {
		pos = 0
	}
	if s.duration > 0 && pos > s.duration {
		pos = s.duration
	}
	return pos
}

// Duration returns the announced duration of the loaded track, zero
// when unknown or idle.
func (s *Surface) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duration
}

// Close shuts down the surface and releases its timers.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	s.cancel()
}

func (s *Surface) remainingLocked() time.Duration {
	ref := toWallTime(time.Now())
	if s.pausedAt != nil {
		ref = *s.pausedAt
	}
	elapsed := ref.Sub(s.startTime) - s.pausedElapsed
	return s.duration - elapsed
}

func (s *Surface) onTrackEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTrackEndLocked()
}

func (s *Surface) onTrackEndLocked() {
	if s.current == nil {
		return
	}

	s.stopTimerLocked()

	if s.loop {
		// Restart from zero without surfacing an end event, like a
		// looping output element would.
		s.startTime = toWallTime(time.Now())
		s.pausedAt = nil
		s.pausedElapsed = 0
		s.state = StatePlaying
		s.startEndTimerLocked(s.duration)
		zlog.Debug().Msgf("player: looping track=%s", s.current.Title)
		return
	}

	ended := s.current
	s.current = nil
	s.duration = 0
	s.pausedAt = nil
	s.pausedElapsed = 0
	s.state = StateIdle

	s.sendEventLocked(Event{
		Type:  EventTrackEnded,
		Track: ended,
		State: s.state,
	})
}

func (s *Surface) stopTimerLocked() {
	if s.timerCancel != nil {
		s.timerCancel()
		s.timerCancel = nil
	}
}

func (s *Surface) startEndTimerLocked(d time.Duration) {
	s.stopTimerLocked()
	s.timerCancel = s.startWallClockTimer(d, func() {
		s.onTrackEnd()
	})
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (s *Surface) sendEventLocked(e Event) {
	select {
	case s.eventCh <- e:
	case <-s.ctx.Done():
	default:
		// Channel full, drop event
	}
}

// startWallClockTimer starts a timer that triggers callback after
// duration, measured against the wall clock. Returns a cancel function.
func (s *Surface) startWallClockTimer(duration time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		endTime := toWallTime(time.Now()).Add(duration)
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if toWallTime(time.Now()).After(endTime) {
					callback()
					return
				}
			}
		}
	}()

	return cancel
}

// toWallTime strips the monotonic clock reading so that time
// differences are computed against wall clock.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
