package mpc

import (
	"errors"
	"fmt"
	"time"
)

// Mode selects the program variant.
type Mode int

const (
	// Plan is the day-ahead variant rewarding reduction below baseline during peaks.
	Plan Mode = iota
	// Execution follows the dispatch order issued for the grid zone.
	Execution
)

func (m Mode) String() string {
	switch m {
	case Plan:
		return "plan"
	case Execution:
		return "execution"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// PlanOverrides replace the comfort and ramp bounds of the Plan variant.
type PlanOverrides struct {
	MaxPowerOffset float64 `json:"max_power_offset" yaml:"max_power_offset"`
	MaxRamp        float64 `json:"max_ramp" yaml:"max_ramp"`
	Setpoint       float64 `json:"setpoint" yaml:"setpoint"`
}

// Config holds the MPC parameters shared by every subcentral.
type Config struct {
	Horizon                  int           `json:"horizon" yaml:"horizon"`
	TimestepSeconds          int           `json:"timestep" yaml:"timestep"`
	RateLimitLower           float64       `json:"rate_limit_lower" yaml:"rate_limit_lower"`
	RateLimitUpper           float64       `json:"rate_limit_upper" yaml:"rate_limit_upper"`
	BelowErrorPriority       float64       `json:"below_error_priority" yaml:"below_error_priority"`
	AboveErrorPriority       float64       `json:"above_error_priority" yaml:"above_error_priority"`
	EnergyPrice              float64       `json:"energy_price" yaml:"energy_price"`
	EnergyPricePriority      float64       `json:"energy_price_priority" yaml:"energy_price_priority"`
	MaxPowerOffset           float64       `json:"max_power_offset" yaml:"max_power_offset"`
	Setpoint                 float64       `json:"setpoint" yaml:"setpoint"`
	MaxRamp                  float64       `json:"max_ramp" yaml:"max_ramp"`
	HysteresisAbove          float64       `json:"hysteresis_above" yaml:"hysteresis_above"`
	HysteresisBelow          float64       `json:"hysteresis_below" yaml:"hysteresis_below"`
	FlexibilityPrice         float64       `json:"flexibility_price" yaml:"flexibility_price"`
	FlexibilityPricePriority float64       `json:"flexibility_price_priority" yaml:"flexibility_price_priority"`
	ReboundLimit             float64       `json:"rebound_limit" yaml:"rebound_limit"`
	SolverTolerance          float64       `json:"solver_tolerance" yaml:"solver_tolerance"`
	PlanOverrides            PlanOverrides `json:"plan" yaml:"plan"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Horizon:                  48,
		TimestepSeconds:          1800,
		RateLimitLower:           70,
		RateLimitUpper:           600,
		BelowErrorPriority:       5000,
		AboveErrorPriority:       1,
		EnergyPrice:              0.403,
		EnergyPricePriority:      1,
		MaxPowerOffset:           106,
		Setpoint:                 20,
		MaxRamp:                  106,
		HysteresisAbove:          0.5,
		HysteresisBelow:          0.5,
		FlexibilityPrice:         1,
		FlexibilityPricePriority: 1,
		ReboundLimit:             0.5,
		SolverTolerance:          1e-7,
		PlanOverrides: PlanOverrides{
			MaxPowerOffset: 200,
			MaxRamp:        300,
			Setpoint:       23.5,
		},
	}
}

// ErrConfig reports an unusable MPC configuration.
var ErrConfig = errors.New("mpc: invalid configuration")

// Validate checks structural parameters. Bounds that make a program
// infeasible, such as a lower rate limit above the upper one, are left to the
// solver so they surface as infeasibility.
func (c Config) Validate() error {
	switch {
	case c.Horizon < 1:
		return fmt.Errorf("%w: horizon must be >= 1, got %d", ErrConfig, c.Horizon)
	case c.TimestepSeconds <= 0:
		return fmt.Errorf("%w: timestep must be > 0, got %d", ErrConfig, c.TimestepSeconds)
	case c.MaxRamp < 0 || c.PlanOverrides.MaxRamp < 0:
		return fmt.Errorf("%w: max_ramp must be >= 0", ErrConfig)
	case c.MaxPowerOffset < 0 || c.PlanOverrides.MaxPowerOffset < 0:
		return fmt.Errorf("%w: max_power_offset must be >= 0", ErrConfig)
	case c.BelowErrorPriority < 0 || c.AboveErrorPriority < 0:
		return fmt.Errorf("%w: error priorities must be >= 0", ErrConfig)
	case c.SolverTolerance < 0:
		return fmt.Errorf("%w: solver_tolerance must be >= 0", ErrConfig)
	}
	return nil
}

// Timestep returns the step length as a duration.
func (c Config) Timestep() time.Duration {
	return time.Duration(c.TimestepSeconds) * time.Second
}

// forMode returns the configuration effective for mode.
func (c Config) forMode(m Mode) Config {
	if m == Plan {
		c.MaxPowerOffset = c.PlanOverrides.MaxPowerOffset
		c.MaxRamp = c.PlanOverrides.MaxRamp
		c.Setpoint = c.PlanOverrides.Setpoint
	}
	return c
}
