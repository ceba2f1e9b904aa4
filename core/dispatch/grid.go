package dispatch

import (
	"fmt"
	"time"

	"github.com/power2u/flexheat/core/timeseries"
)

// Config describes the grid-zone planning grid.
type Config struct {
	PlanningHorizon int `json:"planning_horizon" yaml:"planning_horizon"`
	TimestepSeconds int `json:"timestep" yaml:"timestep"`
}

// DefaultConfig returns a 24 step hourly grid.
func DefaultConfig() Config {
	return Config{PlanningHorizon: 24, TimestepSeconds: 3600}
}

// Validate checks the grid dimensions.
func (c Config) Validate() error {
	if c.PlanningHorizon < 1 {
		return fmt.Errorf("dispatch: planning_horizon must be >= 1, got %d", c.PlanningHorizon)
	}
	if c.TimestepSeconds <= 0 {
		return fmt.Errorf("dispatch: timestep must be > 0, got %d", c.TimestepSeconds)
	}
	return nil
}

// Timestep returns the grid step as a duration.
func (c Config) Timestep() time.Duration { return time.Duration(c.TimestepSeconds) * time.Second }

// Grid is the planning grid of a grid zone starting at Start.
type Grid struct {
	Start   time.Time
	Step    time.Duration
	Horizon int
}

// NewGrid returns the grid described by cfg starting at start.
func NewGrid(cfg Config, start time.Time) Grid {
	return Grid{Start: start, Step: cfg.Timestep(), Horizon: cfg.PlanningHorizon}
}

// Zero returns a zero series on the grid.
func (g Grid) Zero() timeseries.Series { return timeseries.New(g.Start, g.Step, g.Horizon) }

// Align reindexes s onto the grid. Samples are averaged per grid step and
// missing steps become zero.
func (g Grid) Align(s timeseries.Series) timeseries.Series {
	if s.Len() == 0 {
		return g.Zero()
	}
	return s.Align(g.Start, g.Step, g.Horizon)
}
