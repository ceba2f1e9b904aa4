package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/power2u/flexheat/core/heatcurve"
	"github.com/power2u/flexheat/core/logger"
	"github.com/power2u/flexheat/core/model"
	"github.com/power2u/flexheat/core/mpc"
	"github.com/power2u/flexheat/core/timeseries"
)

// ErrMissingData is returned when a column cannot be reconstructed.
var ErrMissingData = errors.New("forecast: missing data")

// Assembler turns raw subcentral data into MPC inputs.
type Assembler struct {
	curve   *heatcurve.Interpolator
	maxLag  int
	horizon int
	log     logger.Logger
}

// NewAssembler returns an assembler for the given lag depth and horizon.
func NewAssembler(curve *heatcurve.Interpolator, maxLag, horizon int, log logger.Logger) *Assembler {
	return &Assembler{curve: curve, maxLag: maxLag, horizon: horizon, log: logger.OrNop(log)}
}

// Rows returns the number of raw rows Assemble expects.
func (a *Assembler) Rows() int { return a.maxLag + 1 + a.horizon }

// Assemble builds the forecast frame, the initial state and the difference
// frame from raw. raw must start max_lag+1 steps before the horizon. peaks
// flag the horizon steps and dispatch, which may be empty, is joined onto
// the horizon with zero where absent.
func (a *Assembler) Assemble(raw Raw, peaks []model.PeakWindow, dispatch timeseries.Series) (mpc.Input, error) {
	if raw.Len() != a.Rows() {
		return mpc.Input{}, fmt.Errorf("%w: got %d rows, want %d", ErrMissingData, raw.Len(), a.Rows())
	}
	if err := raw.validate(); err != nil {
		return mpc.Input{}, err
	}

	outTemp := a.outdoorTemperature(raw)
	forecast := clone(raw.OutTempForecast)
	solar := clone(raw.Solar)
	indoor := clone(raw.IndoorTemp)
	inflow := clone(raw.InflowTemp)
	for i, v := range indoor {
		if v == MissingIndoorTemp {
			indoor[i] = math.NaN()
		}
	}
	cols := map[string][]float64{
		"out_temp":                   outTemp,
		"forecast_outside_temp":      forecast,
		"solar":                      solar,
		"average_indoor_temperature": indoor,
		"inflow_temp":                inflow,
	}
	for name, col := range cols {
		if !timeseries.Interpolate(col) {
			return mpc.Input{}, fmt.Errorf("%w: no value for %s", ErrMissingData, name)
		}
	}

	h0 := a.maxLag + 1
	start := raw.Start.Add(time.Duration(h0) * raw.Step)
	frame := mpc.ForecastFrame{
		Start:           start,
		Step:            raw.Step,
		OutTempForecast: forecast[h0:],
		OutTemp:         outTemp[h0:],
		Solar:           solar[h0:],
		BaselinePower:   make([]float64, a.horizon),
		PeakHour:        PeakFlags(start, raw.Step, a.horizon, peaks),
		Dispatch:        make([]float64, a.horizon),
	}
	for t, out := range frame.OutTemp {
		frame.BaselinePower[t] = a.curve.PowerAt(out)
	}
	if dispatch.Len() > 0 {
		frame.Dispatch = dispatch.Align(start, raw.Step, a.horizon).Values
		for t, d := range frame.Dispatch {
			if frame.PeakHour[t] == 1 && d > 0 {
				a.log.Errorf("power increase dispatched for peak hour %s", frame.Timestamp(t).Format(time.RFC3339))
			}
		}
	}

	initial := mpc.InitialState{
		IndoorTemperature: indoor[h0-1],
		HeatPower:         a.curve.PowerAtInflowTemp(inflow[h0-1]),
	}
	inDiff := timeseries.Diff(indoor)
	diff := mpc.DiffFrame{
		OutTemp: timeseries.Diff(outTemp)[1:],
		Solar:   timeseries.Diff(solar)[1:],
		InTemp:  inDiff[1 : a.maxLag+2],
	}
	return mpc.Input{Forecast: frame, Initial: initial, Diff: diff}, nil
}

// outdoorTemperature prefers the measured value and falls back to the
// forecast corrected by the predicted deviation.
func (a *Assembler) outdoorTemperature(raw Raw) []float64 {
	if raw.MeasuredOutTemp == nil {
		a.log.Warnf("measured_outside_temp is not available")
	}
	if raw.Deviation == nil {
		a.log.Warnf("measure_forecast_deviation is not available")
	}
	out := make([]float64, raw.Len())
	for i := range out {
		if raw.MeasuredOutTemp != nil && !math.IsNaN(raw.MeasuredOutTemp[i]) {
			out[i] = raw.MeasuredOutTemp[i]
			continue
		}
		dev := 0.0
		if raw.Deviation != nil && !math.IsNaN(raw.Deviation[i]) {
			dev = raw.Deviation[i]
		}
		out[i] = raw.OutTempForecast[i] + dev
	}
	return out
}

// PeakFlags returns 1 for every step whose timestamp falls inside a window.
func PeakFlags(start time.Time, step time.Duration, n int, windows []model.PeakWindow) []float64 {
	flags := make([]float64, n)
	for i := range flags {
		ts := start.Add(time.Duration(i) * step)
		for _, w := range windows {
			if w.Contains(ts) {
				flags[i] = 1
				break
			}
		}
	}
	return flags
}

func clone(v []float64) []float64 { return append([]float64(nil), v...) }
