package config

import "fmt"

// StoreConfig locates the sqlite database holding schedules, plans,
// dispatch series and reports.
type StoreConfig struct {
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "flexheat.db"
	}
}

// Validate checks mandatory fields.
func (c StoreConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// InputConfig locates the input bundle describing subcentrals, their
// measurements and forecasts, peak windows and aggregate dispatch orders.
type InputConfig struct {
	Path string `json:"path"`
}
