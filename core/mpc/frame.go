package mpc

import (
	"fmt"
	"time"

	"github.com/power2u/flexheat/core/timeseries"
)

// ForecastFrame holds the exogenous inputs over the horizon. Every column has
// Horizon entries starting at Start.
type ForecastFrame struct {
	Start time.Time
	Step  time.Duration

	OutTempForecast []float64
	OutTemp         []float64
	Solar           []float64
	BaselinePower   []float64
	PeakHour        []float64
	// Dispatch is only read by the Execution variant.
	Dispatch []float64
}

// Len returns the number of steps in the frame.
func (f ForecastFrame) Len() int { return len(f.OutTemp) }

// Timestamp returns the time of step i.
func (f ForecastFrame) Timestamp(i int) time.Time {
	return f.Start.Add(time.Duration(i) * f.Step)
}

func (f ForecastFrame) validate(h int, mode Mode) error {
	cols := map[string][]float64{
		"out_temp":          f.OutTemp,
		"out_temp_forecast": f.OutTempForecast,
		"solar":             f.Solar,
		"baseline_power":    f.BaselinePower,
		"peak_hour":         f.PeakHour,
	}
	if mode == Execution {
		cols["dispatch"] = f.Dispatch
	}
	for name, col := range cols {
		if len(col) != h {
			return fmt.Errorf("%w: forecast column %s has %d steps, want %d", ErrInput, name, len(col), h)
		}
	}
	return nil
}

// InitialState is the last measured state before the horizon starts.
type InitialState struct {
	IndoorTemperature float64
	HeatPower         float64
}

// DiffFrame holds first differences. OutTemp and Solar cover max_lag+H
// entries, InTemp covers at least the max_lag+1 known entries.
type DiffFrame struct {
	OutTemp []float64
	Solar   []float64
	InTemp  []float64
}

func (d DiffFrame) validate(maxLag, h int) error {
	if len(d.OutTemp) < maxLag+h || len(d.Solar) < maxLag+h {
		return fmt.Errorf("%w: exogenous differences need %d entries", ErrInput, maxLag+h)
	}
	if len(d.InTemp) < maxLag+1 {
		return fmt.Errorf("%w: indoor temperature differences need %d entries", ErrInput, maxLag+1)
	}
	return nil
}

// Input bundles everything a single solve needs.
type Input struct {
	Forecast ForecastFrame
	Initial  InitialState
	Diff     DiffFrame
}

// Step is one row of a schedule.
type Step struct {
	Timestamp         time.Time `json:"timestamp"`
	OutTempForecast   float64   `json:"forecast_outside_temp"`
	OutTemp           float64   `json:"out_temp_with_deviation"`
	Solar             float64   `json:"solar"`
	PeakHour          float64   `json:"peak_hour"`
	Dispatch          float64   `json:"dispatch"`
	Power             float64   `json:"power"`
	IndoorTemperature float64   `json:"indoor_temperature"`
	BaselinePower     float64   `json:"baseline_power"`
	PowerOffset       float64   `json:"power_offset"`
	BelowError        float64   `json:"below_error"`
	AboveError        float64   `json:"above_error"`
	InflowTempOffset  float64   `json:"inflow_temp_offset"`
	NewInflowTemp     float64   `json:"new_inflow_temp"`
}

// Schedule is the result of one solve. IndoorTemperature of step t is the
// temperature reached at the end of the step.
type Schedule struct {
	Subcentral string        `json:"subcentral"`
	Mode       string        `json:"mode"`
	Start      time.Time     `json:"start"`
	Step       time.Duration `json:"step"`
	Objective  float64       `json:"objective"`
	Steps      []Step        `json:"steps"`
}

// PowerOffset returns the power offset column as a series.
func (s Schedule) PowerOffset() timeseries.Series {
	out := timeseries.New(s.Start, s.Step, len(s.Steps))
	for i, st := range s.Steps {
		out.Values[i] = st.PowerOffset
	}
	return out
}

// Power returns the scheduled power column as a series.
func (s Schedule) Power() timeseries.Series {
	out := timeseries.New(s.Start, s.Step, len(s.Steps))
	for i, st := range s.Steps {
		out.Values[i] = st.Power
	}
	return out
}
