// Package config implements TOML configuration loading, validation, and
// path resolution for ecoroute-go. Overrides layer as
// defaults -> config file -> environment -> CLI flags.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	API     APIConfig     `toml:"api"`
	Stream  StreamConfig  `toml:"stream"`
	Session SessionConfig `toml:"session"`
	Logging LoggingConfig `toml:"logging"`
}

// APIConfig locates the REST backend.
type APIConfig struct {
	BaseURL string `toml:"base_url"`
	// Timeout bounds every request so a hung call fails instead of
	// blocking its caller indefinitely.
	Timeout duration `toml:"timeout"`
}

// StreamConfig locates the push event stream.
type StreamConfig struct {
	URL string `toml:"url"`
}

// SessionConfig tunes token renewal. The refresh interval should sit
// comfortably below the token lifetime.
type SessionConfig struct {
	TokenLifetime   duration `toml:"token_lifetime"`
	RefreshInterval duration `toml:"refresh_interval"`
	// StorePath is the credential database location. Empty selects the
	// platform default under the user's state directory.
	StorePath string `toml:"store_path"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text, json, or auto (tty-dependent)
}

// duration wraps time.Duration with TOML string parsing ("15m", "30s").
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = duration(parsed)

	return nil
}

// Default values for a zero-config first run.
const (
	defaultBaseURL         = "https://ecoroute360-backend.onrender.com/api"
	defaultStreamURL       = "wss://ecoroute360-backend.onrender.com/stream"
	defaultAPITimeout      = 15 * time.Second
	defaultTokenLifetime   = 15 * time.Minute
	defaultRefreshInterval = 14 * time.Minute
)

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: defaultBaseURL,
			Timeout: duration(defaultAPITimeout),
		},
		Stream: StreamConfig{
			URL: defaultStreamURL,
		},
		Session: SessionConfig{
			TokenLifetime:   duration(defaultTokenLifetime),
			RefreshInterval: duration(defaultRefreshInterval),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// APITimeout returns the request timeout as a time.Duration.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.Timeout)
}

// TokenLifetime returns the configured token lifetime.
func (c *Config) TokenLifetime() time.Duration {
	return time.Duration(c.Session.TokenLifetime)
}

// RefreshInterval returns the configured renewal interval.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Session.RefreshInterval)
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if _, err := url.Parse(c.API.BaseURL); err != nil || c.API.BaseURL == "" {
		return fmt.Errorf("config: invalid api.base_url %q", c.API.BaseURL)
	}

	if _, err := url.Parse(c.Stream.URL); err != nil || c.Stream.URL == "" {
		return fmt.Errorf("config: invalid stream.url %q", c.Stream.URL)
	}

	if c.APITimeout() <= 0 {
		return fmt.Errorf("config: api.timeout must be positive")
	}

	if c.RefreshInterval() >= c.TokenLifetime() {
		return fmt.Errorf("config: session.refresh_interval (%s) must be below token_lifetime (%s)",
			c.RefreshInterval(), c.TokenLifetime())
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logging.level %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json", "auto":
	default:
		return fmt.Errorf("config: unknown logging.format %q", c.Logging.Format)
	}

	return nil
}
