package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

// LoggingConfig sets the minimum log level.
type LoggingConfig struct {
	Level string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the level name.
func (c LoggingConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid level %q", c.Level)
	}
	return nil
}

// HTTPConfig configures the API listener. A non-empty Token protects the
// settings write endpoints.
type HTTPConfig struct {
	Addr  string `json:"addr"`
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// Validate checks mandatory fields.
func (c HTTPConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	return nil
}
