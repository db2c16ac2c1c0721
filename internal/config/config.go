package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so it round-trips as a TOML string ("30s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config represents the global ~/.chatline/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`

	// BaseURL is the versioned REST base, e.g. "http://host:3000/api/v1".
	BaseURL string `toml:"base_url"`

	// SocketURL is the realtime endpoint. Empty means derive from BaseURL
	// by stripping the version path and switching the scheme to ws.
	SocketURL string `toml:"socket_url"`

	RequestTimeout Duration `toml:"request_timeout"`
	ProbeTimeout   Duration `toml:"probe_timeout"`
	ProbeInterval  Duration `toml:"probe_interval"`

	// PageSize is the default page length for message history fetches.
	PageSize int `toml:"page_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		RequestTimeout: Duration{30 * time.Second},
		ProbeTimeout:   Duration{5 * time.Second},
		ProbeInterval:  Duration{10 * time.Second},
		PageSize:       30,
	}
}

// Validate reports values the client cannot start with. path names the
// file in the message so a first-run user knows what to edit.
func (c *Config) Validate(path string) error {
	if c.BaseURL == "" {
		return fmt.Errorf("%s: base_url is not set, point it at the REST base, e.g. \"http://host:3000/api/v1\"", path)
	}
	return nil
}

// Load reads config from the given path and fills unset fields with
// defaults. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.RequestTimeout.Duration <= 0 {
		cfg.RequestTimeout = Default().RequestTimeout
	}
	if cfg.ProbeTimeout.Duration <= 0 {
		cfg.ProbeTimeout = Default().ProbeTimeout
	}
	if cfg.ProbeInterval.Duration <= 0 {
		cfg.ProbeInterval = Default().ProbeInterval
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = Default().PageSize
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
