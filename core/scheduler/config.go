package scheduler

import (
	"fmt"
	"time"
)

// Config controls the worker pool.
type Config struct {
	Workers      int           `json:"workers" yaml:"workers"`
	SolveTimeout time.Duration `json:"solve_timeout" yaml:"solve_timeout"`
}

// DefaultConfig returns four workers and a one minute solve timeout.
func DefaultConfig() Config {
	return Config{Workers: 4, SolveTimeout: time.Minute}
}

// Validate checks the pool settings.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("scheduler: workers must be >= 1, got %d", c.Workers)
	}
	if c.SolveTimeout <= 0 {
		return fmt.Errorf("scheduler: solve_timeout must be > 0, got %s", c.SolveTimeout)
	}
	return nil
}
