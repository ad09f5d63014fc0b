package state

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/neobelieve/tonhub/internal/domain/track"
)

// legacyTrack is a queue entry in the unversioned, browser-era state
// dump. Entries came straight from playlist CSV rows and search results,
// so the keys are presentation-oriented.
type legacyTrack struct {
	TrackName string `mapstructure:"Track Name"`
	Artist    string `mapstructure:"Artist Name(s)"`
	Title     string `mapstructure:"title"`
	URL       string `mapstructure:"url"`
	Thumbnail string `mapstructure:"thumbnail"`
	Image     string `mapstructure:"image"`
}

// legacyDevice is a paired device in the unversioned shape.
type legacyDevice struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Name       string `mapstructure:"name"`
	DeviceType string `mapstructure:"device_type"`
}

// legacyState mirrors the flat key set the browser front end kept in
// localStorage.
type legacyState struct {
	Queue        []legacyTrack  `mapstructure:"queue"`
	Cursor       int            `mapstructure:"currentQueueIndex"`
	Devices      []legacyDevice `mapstructure:"nbDevices"`
	ActiveDevice *legacyDevice  `mapstructure:"nbActiveDevice"`
	CurrentTrack string         `mapstructure:"currentTrack"`
	CurrentTitle string         `mapstructure:"currentTitle"`
	CurrentImage string         `mapstructure:"currentImage"`
	CurrentTime  float64        `mapstructure:"currentTime"`
	Volume       float64        `mapstructure:"volume"`
}

// migrateLegacy converts an unversioned state dump to the current
// schema. Track identity moves from title strings to derived IDs.
func migrateLegacy(raw map[string]any) (State, error) {
	var legacy legacyState
	legacy.Cursor = -1

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &legacy,
		WeaklyTypedInput: true, // localStorage numbers arrive as strings
	})
	if err != nil {
		return State{}, errors.Wrap(err, "failed to build legacy decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return State{}, errors.Wrap(err, "failed to decode legacy state")
	}

	st := Zero()
	st.Cursor = legacy.Cursor
	st.CurrentMedia = legacy.CurrentTrack
	st.CurrentTitle = legacy.CurrentTitle
	st.CurrentCover = legacy.CurrentImage
	st.PositionSec = legacy.CurrentTime

	// Browser volume was a 0..1 ratio.
	if legacy.Volume > 0 {
		if legacy.Volume <= 1 {
			st.Volume = int(legacy.Volume * 100)
		} else {
			st.Volume = int(legacy.Volume)
		}
	}

	for _, lt := range legacy.Queue {
		title := lt.TrackName
		if title == "" {
			title = lt.Title
		}
		cover := lt.Thumbnail
		if cover == "" {
			cover = lt.Image
		}
		st.Queue = append(st.Queue, PersistedTrack{
			ID:        track.DeriveID(lt.URL, title),
			Title:     title,
			Artist:    lt.Artist,
			SourceURL: lt.URL,
			CoverURL:  cover,
		})
	}
	if st.Cursor >= len(st.Queue) {
		st.Cursor = len(st.Queue) - 1
	}
	if len(st.Queue) == 0 {
		st.Cursor = -1
	}

	for _, ld := range legacy.Devices {
		st.Devices = append(st.Devices, migrateDevice(ld))
	}
	if legacy.ActiveDevice != nil && legacy.ActiveDevice.Host != "" {
		d := migrateDevice(*legacy.ActiveDevice)
		st.ActiveDevice = &d
	}

	return st, nil
}

func migrateDevice(ld legacyDevice) PersistedDevice {
	id := ld.Host
	if ld.Port > 0 {
		id = fmt.Sprintf("%s:%d", ld.Host, ld.Port)
	}
	name := ld.Name
	if name == "" {
		name = ld.Host
	}
	return PersistedDevice{
		ID:   id,
		Name: name,
		Host: ld.Host,
		Port: ld.Port,
		Type: ld.DeviceType,
	}
}
