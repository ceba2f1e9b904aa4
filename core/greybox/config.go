package greybox

import (
	"errors"
	"fmt"
)

// ErrCoefficientLength is returned when a fitted model does not match the
// regressor layout of its lag configuration.
var ErrCoefficientLength = errors.New("greybox: coefficient length does not match regressor layout")

// ErrLagConfig is returned for unusable lag configurations.
var ErrLagConfig = errors.New("greybox: invalid lag configuration")

// baseRegressors counts T(t-1), solar(t-1), power(t-1) and T(t-1)-outdoor(t-1).
const baseRegressors = 4

// Config holds the first-difference lags used as regressors.
type Config struct {
	InTempDiffLag  []int `json:"in_temp_diff_lag" yaml:"in_temp_diff_lag"`
	OutTempDiffLag []int `json:"out_temp_diff_lag" yaml:"out_temp_diff_lag"`
	SolarDiffLag   []int `json:"solar_diff_lag" yaml:"solar_diff_lag"`
}

// DefaultConfig returns lags 0 and 24 for each difference series.
func DefaultConfig() Config {
	return Config{
		InTempDiffLag:  []int{0, 24},
		OutTempDiffLag: []int{0, 24},
		SolarDiffLag:   []int{0, 24},
	}
}

// Validate checks that every list is non-empty and all lags are non-negative.
func (c Config) Validate() error {
	lists := map[string][]int{
		"in_temp_diff_lag":  c.InTempDiffLag,
		"out_temp_diff_lag": c.OutTempDiffLag,
		"solar_diff_lag":    c.SolarDiffLag,
	}
	for name, lags := range lists {
		if len(lags) == 0 {
			return fmt.Errorf("%w: %s is empty", ErrLagConfig, name)
		}
		for _, l := range lags {
			if l < 0 {
				return fmt.Errorf("%w: %s contains negative lag %d", ErrLagConfig, name, l)
			}
		}
	}
	return nil
}

// MaxLag returns the largest lag across the three lists.
func (c Config) MaxLag() int {
	m := 0
	for _, lags := range [][]int{c.InTempDiffLag, c.OutTempDiffLag, c.SolarDiffLag} {
		for _, l := range lags {
			m = max(m, l)
		}
	}
	return m
}

// RegressorCount returns the number of regressors per step.
func (c Config) RegressorCount() int {
	return baseRegressors + len(c.InTempDiffLag) + len(c.OutTempDiffLag) + len(c.SolarDiffLag)
}

// Model is a fitted linear model. Coefficients[0] multiplies a constant one,
// Coefficients[k+1] multiplies regressor k.
type Model struct {
	Intercept    float64   `json:"intercept" yaml:"intercept"`
	Coefficients []float64 `json:"variable_coef" yaml:"variable_coef"`
}

// DefaultModel returns the coefficients shipped for subcentrals without a
// trained model. They match DefaultConfig.
func DefaultModel() Model {
	return Model{
		Coefficients: []float64{7.2372785, 2.614665, -0.9645129, 198.13611, 74.72733, 0.11609552,
			-0.0048479806, -1.4043026, -1.4628465, -0.14104348, -0.10889917},
	}
}

// Check verifies the coefficient vector length against the configuration.
func (m Model) Check(c Config) error {
	if want := c.RegressorCount() + 1; len(m.Coefficients) != want {
		return fmt.Errorf("%w: got %d coefficients, want %d", ErrCoefficientLength, len(m.Coefficients), want)
	}
	return nil
}
