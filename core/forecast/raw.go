package forecast

import (
	"fmt"
	"math"
	"time"
)

// MissingIndoorTemp marks indoor temperatures that were never measured.
const MissingIndoorTemp = -99

// Raw holds the measured and forecast columns of one subcentral on its own
// grid. Missing values are NaN. Deviation and MeasuredOutTemp may be nil.
type Raw struct {
	Start time.Time     `json:"start" yaml:"start"`
	Step  time.Duration `json:"step" yaml:"step"`

	OutTempForecast []float64 `json:"forecast_outside_temp" yaml:"forecast_outside_temp"`
	MeasuredOutTemp []float64 `json:"measured_outside_temp,omitempty" yaml:"measured_outside_temp,omitempty"`
	Deviation       []float64 `json:"measure_forecast_deviation,omitempty" yaml:"measure_forecast_deviation,omitempty"`
	Solar           []float64 `json:"solar" yaml:"solar"`
	IndoorTemp      []float64 `json:"average_indoor_temperature" yaml:"average_indoor_temperature"`
	InflowTemp      []float64 `json:"inflow_temp" yaml:"inflow_temp"`
}

// Len returns the number of rows.
func (r Raw) Len() int { return len(r.OutTempForecast) }

// Slice returns rows [from, from+n) re-anchored at the new start. Columns
// shorter than the requested range are padded with NaN.
func (r Raw) Slice(from, n int) Raw {
	cut := func(col []float64) []float64 {
		if col == nil {
			return nil
		}
		out := make([]float64, n)
		for i := range out {
			j := from + i
			if j >= 0 && j < len(col) {
				out[i] = col[j]
			} else {
				out[i] = math.NaN()
			}
		}
		return out
	}
	return Raw{
		Start:           r.Start.Add(time.Duration(from) * r.Step),
		Step:            r.Step,
		OutTempForecast: cut(r.OutTempForecast),
		MeasuredOutTemp: cut(r.MeasuredOutTemp),
		Deviation:       cut(r.Deviation),
		Solar:           cut(r.Solar),
		IndoorTemp:      cut(r.IndoorTemp),
		InflowTemp:      cut(r.InflowTemp),
	}
}

// Window returns the rows needed for a horizon starting at start, or an error
// when start is not on the grid.
func (r Raw) Window(start time.Time, maxLag, horizon int) (Raw, error) {
	if r.Step <= 0 {
		return Raw{}, fmt.Errorf("%w: step must be positive", ErrMissingData)
	}
	off := start.Sub(r.Start)
	if off%r.Step != 0 {
		return Raw{}, fmt.Errorf("%w: %s is not on the %s grid starting %s", ErrMissingData, start, r.Step, r.Start)
	}
	from := int(off/r.Step) - (maxLag + 1)
	return r.Slice(from, maxLag+1+horizon), nil
}

func (r Raw) validate() error {
	n := r.Len()
	cols := map[string][]float64{
		"solar":                      r.Solar,
		"average_indoor_temperature": r.IndoorTemp,
		"inflow_temp":                r.InflowTemp,
	}
	if r.MeasuredOutTemp != nil {
		cols["measured_outside_temp"] = r.MeasuredOutTemp
	}
	if r.Deviation != nil {
		cols["measure_forecast_deviation"] = r.Deviation
	}
	for name, col := range cols {
		if len(col) != n {
			return fmt.Errorf("%w: column %s has %d rows, want %d", ErrMissingData, name, len(col), n)
		}
	}
	return nil
}
