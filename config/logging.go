package config

import (
	"fmt"
)

// LoggingConfig defines the level and output format of the service logs.
type LoggingConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level"`
	// Format is "json" or "console".
	Format string `json:"format"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown level %s", c.Level)
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("unknown format %s", c.Format)
	}
	return nil
}
