// Package remote keeps local playback and a paired device mutually
// exclusive. While a device is bound the local surface stays paused,
// a fixed-interval poll mirrors the device's transport state, and
// transport commands are forwarded to the device instead of touching
// the local queue.
package remote

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/neobelieve/tonhub/internal/domain/device"
	"github.com/neobelieve/tonhub/internal/domain/track"
	"github.com/neobelieve/tonhub/internal/infra/peer"
	"github.com/neobelieve/tonhub/internal/infra/state"
)

// Errors
var (
	ErrNotBound      = errors.New("no device bound")
	ErrUnknownDevice = errors.New("unknown device")
)

// Peer captures the device calls the controller needs.
type Peer interface {
	Check(ctx context.Context, host string) (device.Device, error)
	Sync(ctx context.Context, d device.Device) (device.Snapshot, error)
	Playlist(ctx context.Context, d device.Device) ([]track.Track, error)
	SendAction(ctx context.Context, d device.Device, action peer.Action) error
	Play(ctx context.Context, d device.Device, t track.Track) error
	AddToPlaylist(ctx context.Context, d device.Device, t track.Track) error
}

// LocalSurface is the slice of the playback surface the controller
// needs: the ability to silence it when a device takes over.
type LocalSurface interface {
	Pause() error
}

// Config holds controller dependencies.
type Config struct {
	Peer         Peer
	Local        LocalSurface
	Store        *state.Store
	PollInterval time.Duration // default 1s
}

// Controller is the Local/Remote-bound state machine.
type Controller struct {
	mu sync.Mutex

	peer         Peer
	local        LocalSurface
	store        *state.Store
	pollInterval time.Duration

	devices []device.Device
	active  *device.Device
	mirror  Mirror

	pollCancel context.CancelFunc

	eventCh chan Event
}

// New creates a remote controller.
func New(cfg Config) *Controller {
	interval := cfg.PollInterval
	if interval == 0 {
		interval = time.Second
	}
	return &Controller{
		peer:         cfg.Peer,
		local:        cfg.Local,
		store:        cfg.Store,
		pollInterval: interval,
		eventCh:      make(chan Event, 10),
	}
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Load restores the device list from the state store and rebinds the
// active device, if one was bound when the player last ran.
func (c *Controller) Load() {
	st := c.store.Load()

	c.mu.Lock()
	c.devices = state.ToDevices(st.Devices)
	active := state.ToDevice(st.ActiveDevice)
	c.mu.Unlock()

	if active != nil {
		zlog.Info().Msgf("remote: restoring bound device: %s", active.Name)
		if err := c.Bind(active.ID); err != nil {
			zlog.Warn().Msgf("remote: failed to rebind device %s: %v", active.ID, err)
		}
	}
}

// Scan probes the given hosts for pairable devices and adds the ones
// that answer to the device list. Unreachable hosts are skipped.
func (c *Controller) Scan(ctx context.Context, hosts []string) []device.Device {
	var found []device.Device
	for _, host := range hosts {
		d, err := c.peer.Check(ctx, host)
		if err != nil {
			zlog.Debug().Msgf("remote: no device at %s: %v", host, err)
			continue
		}
		c.AddDevice(d)
		found = append(found, d)
	}
	return found
}

// AddDevice registers a device, replacing any entry with the same ID.
func (c *Controller) AddDevice(d device.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()

	replaced := false
	for i := range c.devices {
		if c.devices[i].ID == d.ID {
			c.devices[i] = d
			replaced = true
			break
		}
	}
	if !replaced {
		c.devices = append(c.devices, d)
	}
	c.persistDevicesLocked()
}

// RemoveDevice forgets a device. Removing the bound device drops back
// to local mode first.
func (c *Controller) RemoveDevice(id string) error {
	c.mu.Lock()
	bound := c.active != nil && c.active.ID == id
	c.mu.Unlock()

	if bound {
		c.Unbind()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.devices {
		if c.devices[i].ID == id {
			c.devices = append(c.devices[:i], c.devices[i+1:]...)
			c.persistDevicesLocked()
			return nil
		}
	}
	return ErrUnknownDevice
}

// Bind makes the named device authoritative: local playback pauses,
// the device's playlist is fetched for the mirror, and the status poll
// starts.
func (c *Controller) Bind(id string) error {
	c.mu.Lock()
	var target *device.Device
	for i := range c.devices {
		if c.devices[i].ID == id {
			d := c.devices[i]
			target = &d
			break
		}
	}
	if target == nil {
		c.mu.Unlock()
		return ErrUnknownDevice
	}

	c.stopPollLocked()
	c.active = target
	c.mirror = Mirror{}
	c.persistDevicesLocked()

	pollCtx, cancel := context.WithCancel(context.Background())
	c.pollCancel = cancel
	d := *target
	c.mu.Unlock()

	// Only one side produces audio at a time.
	if c.local != nil {
		if err := c.local.Pause(); err != nil {
			zlog.Debug().Msgf("remote: local pause on bind: %v", err)
		}
	}

	// Seed the mirror playlist; the poll fills in transport state.
	go func() {
		ctx, cancelFetch := context.WithTimeout(pollCtx, 5*time.Second)
		defer cancelFetch()
		tracks, err := c.peer.Playlist(ctx, d)
		if err != nil {
			zlog.Warn().Msgf("remote: failed to fetch playlist from %s: %v", d.Name, err)
			return
		}
		c.mu.Lock()
		if c.active != nil && c.active.ID == d.ID {
			c.mirror.Playlist = tracks
		}
		c.mu.Unlock()
	}()

	go c.pollLoop(pollCtx, d)

	zlog.Info().Msgf("remote: bound to device %s", d.Name)
	c.sendEvent(Event{Type: EventModeChanged, Mode: ModeRemoteBound})
	return nil
}

// Unbind drops back to local mode: the poll stops and the mirror is
// cleared. Local playback becomes authoritative again but is not
// auto-resumed.
func (c *Controller) Unbind() {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return
	}
	name := c.active.Name
	c.stopPollLocked()
	c.active = nil
	c.mirror = Mirror{}
	c.persistDevicesLocked()
	c.mu.Unlock()

	zlog.Info().Msgf("remote: unbound from device %s", name)
	c.sendEvent(Event{Type: EventMirrorCleared})
	c.sendEvent(Event{Type: EventModeChanged, Mode: ModeLocal})
}

// Bound reports whether a device is currently authoritative.
func (c *Controller) Bound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Active returns the bound device.
func (c *Controller) Active() (device.Device, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return device.Device{}, false
	}
	return *c.active, true
}

// Devices returns a copy of the known device list.
func (c *Controller) Devices() []device.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]device.Device, len(c.devices))
	copy(out, c.devices)
	return out
}

// Mirror returns the current mirrored transport state.
func (c *Controller) Mirror() Mirror {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mirror
}

// PlayPause forwards a play/pause toggle to the bound device.
func (c *Controller) PlayPause() error {
	return c.forward(peer.ActionPlayPause)
}

// Next forwards a next-track command to the bound device.
func (c *Controller) Next() error {
	return c.forward(peer.ActionNext)
}

// Previous forwards a previous-track command to the bound device.
func (c *Controller) Previous() error {
	return c.forward(peer.ActionPrevious)
}

// PlayTrack asks the bound device to play a specific track.
func (c *Controller) PlayTrack(t track.Track) error {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return ErrNotBound
	}
	d := *c.active
	c.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.peer.Play(ctx, d, t); err != nil {
			zlog.Warn().Msgf("remote: play command to %s failed: %v", d.Name, err)
		}
	}()
	return nil
}

// Enqueue adds a track to the bound device's playlist.
func (c *Controller) Enqueue(t track.Track) error {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return ErrNotBound
	}
	d := *c.active
	c.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.peer.AddToPlaylist(ctx, d, t); err != nil {
			zlog.Warn().Msgf("remote: enqueue to %s failed: %v", d.Name, err)
		}
	}()
	return nil
}

// Close drops any bound device and stops polling.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopPollLocked()
	c.active = nil
	c.mu.Unlock()
}

// forward sends a transport action without waiting for the device to
// acknowledge; the next poll tick reflects the outcome.
func (c *Controller) forward(action peer.Action) error {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return ErrNotBound
	}
	d := *c.active
	c.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.peer.SendAction(ctx, d, action); err != nil {
			zlog.Warn().Msgf("remote: %s command to %s failed: %v", action, d.Name, err)
		}
	}()
	return nil
}

// pollLoop mirrors the device's transport state once per interval.
// Failures hide the mirror but never stop the loop; only an explicit
// unbind does.
func (c *Controller) pollLoop(ctx context.Context, d device.Device) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollOnce(ctx, d)
		}
	}
}

func (c *Controller) pollOnce(ctx context.Context, d device.Device) {
	snap, err := c.peer.Sync(ctx, d)

	c.mu.Lock()
	if c.active == nil || c.active.ID != d.ID {
		c.mu.Unlock()
		return
	}

	if err != nil || !snap.Active() || snap.TrackID == "" {
		wasVisible := c.mirror.Visible
		c.mirror.Visible = false
		c.mirror.Snapshot = device.Snapshot{}
		mirror := c.mirror
		c.mu.Unlock()

		if err != nil {
			zlog.Debug().Msgf("remote: poll failed for %s: %v", d.Name, err)
		}
		if wasVisible {
			c.sendEvent(Event{Type: EventMirrorCleared, Mode: ModeRemoteBound, Mirror: mirror})
		}
		return
	}

	c.mirror.Visible = true
	c.mirror.Snapshot = snap
	c.mirror.UpdatedAt = time.Now()
	mirror := c.mirror
	c.mu.Unlock()

	c.sendEvent(Event{Type: EventMirrorUpdated, Mode: ModeRemoteBound, Mirror: mirror})
}

// stopPollLocked cancels the running poll, if any.
// Must be called with lock held.
func (c *Controller) stopPollLocked() {
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
}

// persistDevicesLocked writes the device list through to the store.
// Must be called with lock held.
func (c *Controller) persistDevicesLocked() {
	if c.store == nil {
		return
	}
	if err := c.store.SaveDevices(c.devices, c.active); err != nil {
		zlog.Warn().Err(err).Msg("remote: failed to persist devices")
	}
}

// sendEvent sends an event without blocking.
func (c *Controller) sendEvent(e Event) {
	select {
	case c.eventCh <- e:
	default:
		// Channel full, drop event
	}
}
