package config

import (
	"os"
	"path/filepath"
)

// DefaultConfigPath returns the platform config file location,
// honoring XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "ecoroute.toml"
		}

		base = filepath.Join(home, ".config")
	}

	return filepath.Join(base, "ecoroute", "config.toml")
}

// DefaultStorePath returns the credential database location, honoring
// XDG_STATE_HOME.
func DefaultStorePath() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "credentials.db"
		}

		base = filepath.Join(home, ".local", "state")
	}

	return filepath.Join(base, "ecoroute", "credentials.db")
}

// ResolveStorePath resolves the credential database path from config, falling
// back to the platform default.
func (c *Config) ResolveStorePath() string {
	if c.Session.StorePath != "" {
		return c.Session.StorePath
	}

	return DefaultStorePath()
}
