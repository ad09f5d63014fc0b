// Package device provides the remote Device domain entity.
package device

import (
	"fmt"
	"time"
)

// Device represents a paired remote playback device.
type Device struct {
	ID   string // host:port, stable across restarts
	Name string // Display name reported by the device
	Host string // Network address
	Port int    // API port
	Type string // Device type tag (e.g. "LumaTV")
}

// New creates a device with its derived ID.
func New(name, host string, port int, deviceType string) Device {
	return Device{
		ID:   fmt.Sprintf("%s:%d", host, port),
		Name: name,
		Host: host,
		Port: port,
		Type: deviceType,
	}
}

// Addr returns the host:port address of the device API.
func (d Device) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// PlayStatus represents the playback status reported by a device.
type PlayStatus string

const (
	StatusPlaying PlayStatus = "playing"
	StatusPaused  PlayStatus = "paused"
	StatusStopped PlayStatus = "stopped"
)

// Snapshot is a transient view of a device's playback state, fetched on
// each poll tick and never persisted.
type Snapshot struct {
	TrackID  string
	Status   PlayStatus
	Position time.Duration
	Duration time.Duration
}

// Active reports whether the snapshot describes a track in progress.
func (s Snapshot) Active() bool {
	return s.TrackID != "" && s.Status == StatusPlaying
}

// Progress returns the elapsed ratio in [0, 1], or 0 when the duration is
// unknown.
func (s Snapshot) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	p := float64(s.Position) / float64(s.Duration)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
