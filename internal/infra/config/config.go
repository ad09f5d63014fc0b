// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the player configuration.
type Config struct {
	Player  PlayerConfig  `yaml:"player"`
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Remote  RemoteConfig  `yaml:"remote"`
	State   StateConfig   `yaml:"state"`
	Spotify SpotifyConfig `yaml:"spotify"`
}

// PlayerConfig identifies this player to paired devices.
type PlayerConfig struct {
	Name       string `yaml:"name" default:"tonhub"`
	DeviceType string `yaml:"device_type" default:"LumaTV"`
}

// ServerConfig configures the peer-facing device API.
type ServerConfig struct {
	Addr string `yaml:"addr" default:":5050"`
}

// BackendConfig configures the media backend client.
type BackendConfig struct {
	BaseURL          string `yaml:"base_url" validate:"required,url"`
	SearchTimeoutSec int    `yaml:"search_timeout_sec" default:"20" validate:"gte=1,lte=120"`
	RequestTimeout   int    `yaml:"request_timeout_sec" default:"30" validate:"gte=1,lte=300"`
}

// RemoteConfig configures remote device polling.
type RemoteConfig struct {
	PollIntervalMs int `yaml:"poll_interval_ms" default:"1000" validate:"gte=200,lte=60000"`
	ProbeTimeoutMs int `yaml:"probe_timeout_ms" default:"2000" validate:"gte=100,lte=30000"`
}

// StateConfig configures local state persistence.
type StateConfig struct {
	File string `yaml:"file" default:"data/state.json"`
}

// SpotifyConfig configures the optional cover-art lookup.
// All fields empty disables the lookup tier entirely.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"FR"`
}

// Enabled reports whether cover lookup credentials are configured.
func (s SpotifyConfig) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != "" && s.RefreshToken != ""
}

// PollInterval returns the remote poll interval as a duration.
func (r RemoteConfig) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalMs) * time.Millisecond
}

// ProbeTimeout returns the remote probe timeout as a duration.
func (r RemoteConfig) ProbeTimeout() time.Duration {
	return time.Duration(r.ProbeTimeoutMs) * time.Millisecond
}

// SearchTimeout returns the backend search timeout as a duration.
func (b BackendConfig) SearchTimeout() time.Duration {
	return time.Duration(b.SearchTimeoutSec) * time.Second
}

// Timeout returns the general backend request timeout as a duration.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.RequestTimeout) * time.Second
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for credentials.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("TONHUB_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
