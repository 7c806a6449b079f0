package config

import (
	"path/filepath"
	"time"
)

// DefaultProtected are the route patterns that require a validated repository.
var DefaultProtected = []string{
	"/dashboard",
	"/dashboard/**",
	"/chat",
	"/chat/**",
	"/file-tree",
	"/file-tree/**",
	"/audio",
	"/audio/**",
	"/ws/viewport",
	"/ws/audio",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		APIURL:         "http://127.0.0.1:8000/api",
		GitHubBase:     "https://github.com",
		Port:           5173,
		DataDir:        ".devcompass",
		PollIntervalMS: 3000,
		SettleDelayMS:  1000,
		MaxPollRetries: 0,
		ZoomDurationMS: 750,
		Renderer:       "mmdc",
		TTSCommand:     "espeak",
		Protected:      DefaultProtected,
	}
}

// PollInterval is the delay between two status samples.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// SettleDelay is how long the "done" state is shown before navigating.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMS) * time.Millisecond
}

// ZoomDuration is the length of animated zoom and reset transitions.
func (c *Config) ZoomDuration() time.Duration {
	return time.Duration(c.ZoomDurationMS) * time.Millisecond
}

// DBPath returns the location of the local SQLite database.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "devcompass.db")
}
