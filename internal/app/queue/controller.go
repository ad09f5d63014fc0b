package queue

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/neobelieve/tonhub/internal/domain/track"
	"github.com/neobelieve/tonhub/internal/infra/state"
)

// Errors
var (
	ErrQueueEmpty      = errors.New("queue is empty")
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Controller owns the queue, the cursor and the playback policy.
//
// The cursor is -1 when no track is current, and may sit at len(queue)
// after the queue runs out with repeat off. Consumers learn about
// playback decisions through the event channel; the controller never
// touches the playback surface directly.
type Controller struct {
	mu sync.RWMutex

	tracks  []track.Track
	cursor  int
	repeat  RepeatMode
	shuffle bool

	store *state.Store
	rng   *rand.Rand

	eventCh chan Event
}

// New creates a queue controller writing through to the given store.
func New(store *state.Store) *Controller {
	var seed int64
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	} else {
		seed = time.Now().UnixNano()
	}

	return &Controller{
		cursor:  -1,
		repeat:  RepeatOff,
		store:   store,
		rng:     rand.New(rand.NewSource(seed)),
		eventCh: make(chan Event, 10),
	}
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Load rehydrates the queue from the state store. Malformed or missing
// state comes back as an empty queue; Load never fails.
func (c *Controller) Load() {
	st := c.store.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.tracks = state.ToTracks(st.Queue)
	c.cursor = st.Cursor
	if c.cursor < -1 || c.cursor > len(c.tracks) {
		c.cursor = -1
	}
	c.repeat = RepeatMode(st.Repeat)
	if !c.repeat.Valid() {
		c.repeat = RepeatOff
	}
	c.shuffle = st.Shuffle

	zlog.Info().Msgf("queue: loaded %d tracks, cursor=%d repeat=%s shuffle=%v",
		len(c.tracks), c.cursor, c.repeat, c.shuffle)
}

// SetQueue replaces the queue wholesale, as when loading a playlist.
// With shuffle active the incoming tracks are permuted and the cursor
// reset to 0; otherwise the cursor lands on startIndex. The new
// current track, if any, is published for playback.
func (c *Controller) SetQueue(tracks []track.Track, startIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tracks = make([]track.Track, len(tracks))
	copy(c.tracks, tracks)
	for i := range c.tracks {
		c.tracks[i].EnsureID()
	}

	if c.shuffle && len(c.tracks) > 0 {
		c.shuffleLocked()
		c.cursor = 0
	} else {
		c.cursor = startIndex
		if c.cursor < -1 || c.cursor >= len(c.tracks) {
			c.cursor = -1
			if len(c.tracks) > 0 {
				c.cursor = 0
			}
		}
	}

	c.persistLocked()

	if t, ok := c.currentLocked(); ok {
		c.sendEventLocked(Event{Type: EventPlay, Track: &t, Cursor: c.cursor})
	} else {
		c.sendEventLocked(Event{Type: EventStop, Cursor: c.cursor})
	}
}

// Refill replaces the queue contents without starting playback, used
// when the queue repopulates itself from recent history behind an
// already-playing track. The cursor follows currentID when present,
// else rests on the first track.
func (c *Controller) Refill(tracks []track.Track, currentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tracks = make([]track.Track, len(tracks))
	copy(c.tracks, tracks)
	for i := range c.tracks {
		c.tracks[i].EnsureID()
	}

	c.cursor = -1
	if len(c.tracks) > 0 {
		c.cursor = 0
		for i, t := range c.tracks {
			if t.ID == currentID {
				c.cursor = i
				break
			}
		}
	}

	c.persistLocked()
	c.sendEventLocked(Event{Type: EventChanged, Cursor: c.cursor})
}

// Advance moves the cursor on natural track end. With repeat-one the
// surface loops on its own and the cursor stays put. Otherwise the
// cursor increments; at the end it wraps to 0 only under repeat-all,
// else it parks past the end and playback stops.
func (c *Controller) Advance() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.repeat == RepeatOne {
		return
	}
	if len(c.tracks) == 0 {
		return
	}

	c.cursor++
	if c.cursor >= len(c.tracks) {
		if c.repeat == RepeatAll {
			c.cursor = 0
		} else {
			// Parked past the end: not -1, so a later repeat-all
			// advance or an explicit next() can restart from a
			// well-defined place.
			c.cursor = len(c.tracks)
			c.persistLocked()
			c.sendEventLocked(Event{Type: EventStop, Cursor: c.cursor})
			return
		}
	}

	c.persistLocked()
	t := c.tracks[c.cursor]
	c.sendEventLocked(Event{Type: EventPlay, Track: &t, Cursor: c.cursor})
}

// Next moves to the following track, wrapping modulo queue length
// regardless of the repeat mode.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.tracks)
	if n == 0 {
		return ErrQueueEmpty
	}

	if c.cursor < 0 {
		c.cursor = 0
	} else {
		c.cursor = (c.cursor + 1) % n
	}

	c.persistLocked()
	t := c.tracks[c.cursor]
	c.sendEventLocked(Event{Type: EventPlay, Track: &t, Cursor: c.cursor})
	return nil
}

// Previous moves to the preceding track, wrapping modulo queue length
// regardless of the repeat mode.
func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.tracks)
	if n == 0 {
		return ErrQueueEmpty
	}

	if c.cursor < 0 {
		c.cursor = n - 1
	} else {
		c.cursor = (c.cursor - 1 + n) % n
	}

	c.persistLocked()
	t := c.tracks[c.cursor]
	c.sendEventLocked(Event{Type: EventPlay, Track: &t, Cursor: c.cursor})
	return nil
}

// JumpTo makes the track at index current and plays it.
func (c *Controller) JumpTo(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.tracks) {
		return ErrIndexOutOfRange
	}

	c.cursor = index
	c.persistLocked()
	t := c.tracks[c.cursor]
	c.sendEventLocked(Event{Type: EventPlay, Track: &t, Cursor: c.cursor})
	return nil
}

// Remove drops the track at index. Tracks before the cursor shift the
// cursor down with them. Removing the current track plays whatever
// lands at the (clamped) cursor, or stops when the queue empties.
func (c *Controller) Remove(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.tracks) {
		return ErrIndexOutOfRange
	}

	wasCurrent := index == c.cursor
	c.tracks = append(c.tracks[:index], c.tracks[index+1:]...)

	if index < c.cursor {
		c.cursor--
	}

	if wasCurrent {
		if len(c.tracks) == 0 {
			c.cursor = -1
			c.persistLocked()
			c.sendEventLocked(Event{Type: EventStop, Cursor: c.cursor})
			return nil
		}
		if c.cursor >= len(c.tracks) {
			c.cursor = len(c.tracks) - 1
		}
		c.persistLocked()
		t := c.tracks[c.cursor]
		c.sendEventLocked(Event{Type: EventPlay, Track: &t, Cursor: c.cursor})
		return nil
	}

	c.persistLocked()
	c.sendEventLocked(Event{Type: EventChanged, Cursor: c.cursor})
	return nil
}

// Add appends a track to the end of the queue.
func (c *Controller) Add(t track.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t.EnsureID()
	c.tracks = append(c.tracks, t)
	c.persistLocked()
	c.sendEventLocked(Event{Type: EventChanged, Cursor: c.cursor})
}

// SetRepeat sets the repeat mode. Unknown values fall back to off.
func (c *Controller) SetRepeat(mode RepeatMode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !mode.Valid() {
		mode = RepeatOff
	}
	c.repeat = mode
	c.persistLocked()
	c.sendEventLocked(Event{Type: EventChanged, Cursor: c.cursor})
}

// SetShuffle toggles shuffle mode. Turning it on permutes the tracks
// that are already queued and moves the cursor with the current track.
func (c *Controller) SetShuffle(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if on == c.shuffle {
		return
	}
	c.shuffle = on

	if on && len(c.tracks) > 1 {
		var currentID string
		if t, ok := c.currentLocked(); ok {
			currentID = t.ID
		}
		c.shuffleLocked()
		if currentID != "" {
			for i, t := range c.tracks {
				if t.ID == currentID {
					c.cursor = i
					break
				}
			}
		}
	}

	c.persistLocked()
	c.sendEventLocked(Event{Type: EventChanged, Cursor: c.cursor})
}

// Repeat returns the current repeat mode.
func (c *Controller) Repeat() RepeatMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repeat
}

// Shuffle reports whether shuffle mode is active.
func (c *Controller) Shuffle() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shuffle
}

// Cursor returns the current cursor position.
func (c *Controller) Cursor() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cursor
}

// Len returns the number of queued tracks.
func (c *Controller) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tracks)
}

// Tracks returns a copy of the queued tracks.
func (c *Controller) Tracks() []track.Track {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]track.Track, len(c.tracks))
	copy(out, c.tracks)
	return out
}

// Current returns the track under the cursor.
func (c *Controller) Current() (track.Track, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentLocked()
}

func (c *Controller) currentLocked() (track.Track, bool) {
	if c.cursor < 0 || c.cursor >= len(c.tracks) {
		return track.Track{}, false
	}
	return c.tracks[c.cursor], true
}

// shuffleLocked permutes the queue in place with Fisher-Yates.
// Must be called with lock held.
func (c *Controller) shuffleLocked() {
	for i := len(c.tracks) - 1; i > 0; i-- {
		j := c.rng.Intn(i + 1)
		c.tracks[i], c.tracks[j] = c.tracks[j], c.tracks[i]
	}
}

// persistLocked writes the queue through to the state store. A failed
// write is logged and playback carries on; the queue stays usable for
// the session even when the state file is not.
// Must be called with lock held.
func (c *Controller) persistLocked() {
	if c.store == nil {
		return
	}
	if err := c.store.SaveQueue(c.tracks, c.cursor, string(c.repeat), c.shuffle); err != nil {
		zlog.Warn().Err(err).Msg("queue: failed to persist state")
	}
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(e Event) {
	select {
	case c.eventCh <- e:
	default:
		// Channel full, drop event
	}
}
