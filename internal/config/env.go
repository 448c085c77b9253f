package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig    = "ECOROUTE_CONFIG"
	EnvBaseURL   = "ECOROUTE_API_URL"
	EnvStreamURL = "ECOROUTE_STREAM_URL"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // ECOROUTE_CONFIG: override config file path
	BaseURL    string // ECOROUTE_API_URL: REST backend root
	StreamURL  string // ECOROUTE_STREAM_URL: push stream URL
}

// CLIOverrides holds values from command-line flags. Empty means "not set".
type CLIOverrides struct {
	ConfigPath string
	BaseURL    string
	StreamURL  string
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. Callers apply the relevant fields through Resolve.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		BaseURL:    os.Getenv(EnvBaseURL),
		StreamURL:  os.Getenv(EnvStreamURL),
	}
}
