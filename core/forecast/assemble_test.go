package forecast

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/power2u/flexheat/core/heatcurve"
	"github.com/power2u/flexheat/core/logger"
	"github.com/power2u/flexheat/core/model"
	"github.com/power2u/flexheat/core/timeseries"
)

var (
	t0  = time.Date(2020, 10, 1, 0, 0, 0, 0, time.UTC)
	nan = math.NaN()
)

type errRecorder struct {
	logger.Nop
	errs []string
}

func (r *errRecorder) Errorf(format string, args ...any) {
	r.errs = append(r.errs, fmt.Sprintf(format, args...))
}

func testCurve(t *testing.T) *heatcurve.Interpolator {
	t.Helper()
	c, err := heatcurve.New(heatcurve.Curve{
		OutTemp:    []float64{-20, -10, 0, 10, 20},
		InflowTemp: []float64{70, 60, 50, 40, 30},
		Power:      []float64{500, 400, 300, 200, 100},
	}, nil)
	require.NoError(t, err)
	return c
}

func testRaw() Raw {
	return Raw{
		Start:           t0.Add(-2 * time.Hour),
		Step:            time.Hour,
		OutTempForecast: []float64{0, 0, 10, nan, 14},
		MeasuredOutTemp: []float64{nan, -5, nan, nan, nan},
		Deviation:       []float64{1, 1, nan, 1, 1},
		Solar:           []float64{0, 0.1, 0.2, 0.3, 0.4},
		IndoorTemp:      []float64{20, MissingIndoorTemp, 21, nan, nan},
		InflowTemp:      []float64{50, 45, nan, nan, nan},
	}
}

func TestAssemble(t *testing.T) {
	log := &errRecorder{}
	a := NewAssembler(testCurve(t), 1, 3, log)
	require.Equal(t, 5, a.Rows())

	peaks := []model.PeakWindow{{Start: t0.Add(time.Hour), End: t0.Add(2 * time.Hour)}}
	dispatch := timeseries.Series{Start: t0, Step: time.Hour, Values: []float64{-10, 5}}

	in, err := a.Assemble(testRaw(), peaks, dispatch)
	require.NoError(t, err)

	f := in.Forecast
	assert.Equal(t, t0, f.Start)
	assert.Equal(t, []float64{10, 12.5, 15}, f.OutTemp)
	assert.Equal(t, []float64{10, 12, 14}, f.OutTempForecast)
	assert.InDeltaSlice(t, []float64{200, 175, 150}, f.BaselinePower, 1e-9)
	assert.Equal(t, []float64{0, 1, 0}, f.PeakHour)
	assert.Equal(t, []float64{-10, 5, 0}, f.Dispatch)
	assert.Equal(t, []float64{0.2, 0.3, 0.4}, f.Solar)

	assert.InDelta(t, 20.5, in.Initial.IndoorTemperature, 1e-9)
	assert.InDelta(t, 250, in.Initial.HeatPower, 1e-9)

	assert.InDeltaSlice(t, []float64{-6, 15, 2.5, 2.5}, in.Diff.OutTemp, 1e-9)
	assert.InDeltaSlice(t, []float64{0.1, 0.1, 0.1, 0.1}, in.Diff.Solar, 1e-9)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, in.Diff.InTemp, 1e-9)

	// positive dispatch during the peak step is reported
	require.Len(t, log.errs, 1)
	assert.Contains(t, log.errs[0], "2020-10-01T01:00:00Z")
}

func TestAssembleWithoutDispatch(t *testing.T) {
	a := NewAssembler(testCurve(t), 1, 3, nil)
	raw := testRaw()
	raw.MeasuredOutTemp = nil
	raw.Deviation = nil

	in, err := a.Assemble(raw, nil, timeseries.Series{})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, in.Forecast.Dispatch)
	assert.Equal(t, []float64{0, 0, 0}, in.Forecast.PeakHour)
	assert.Equal(t, []float64{10, 12, 14}, in.Forecast.OutTemp)
}

func TestAssembleMissingColumn(t *testing.T) {
	a := NewAssembler(testCurve(t), 1, 3, nil)
	raw := testRaw()
	raw.IndoorTemp = []float64{nan, MissingIndoorTemp, nan, nan, nan}
	_, err := a.Assemble(raw, nil, timeseries.Series{})
	assert.ErrorIs(t, err, ErrMissingData)

	raw = testRaw()
	raw.Solar = raw.Solar[:4]
	_, err = a.Assemble(raw, nil, timeseries.Series{})
	assert.ErrorIs(t, err, ErrMissingData)

	_, err = a.Assemble(testRaw().Slice(0, 4), nil, timeseries.Series{})
	assert.ErrorIs(t, err, ErrMissingData)
}

func TestRawWindow(t *testing.T) {
	raw := Raw{
		Start:           t0.Add(-5 * time.Hour),
		Step:            time.Hour,
		OutTempForecast: []float64{0, 1, 2, 3, 4, 5, 6, 7},
		Solar:           make([]float64, 8),
		IndoorTemp:      make([]float64, 8),
		InflowTemp:      make([]float64, 8),
	}
	w, err := raw.Window(t0, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(-2*time.Hour), w.Start)
	assert.Equal(t, 6, w.Len())
	assert.Equal(t, 3.0, w.OutTempForecast[0])
	assert.True(t, math.IsNaN(w.OutTempForecast[5]))
	assert.Nil(t, w.MeasuredOutTemp)

	_, err = raw.Window(t0.Add(time.Minute), 1, 4)
	assert.ErrorIs(t, err, ErrMissingData)
}

func TestPeakFlags(t *testing.T) {
	windows := []model.PeakWindow{
		{Start: t0.Add(30 * time.Minute), End: t0.Add(90 * time.Minute)},
		{Start: t0.Add(3 * time.Hour), End: t0.Add(4 * time.Hour)},
	}
	assert.Equal(t, []float64{0, 1, 0, 1, 0}, PeakFlags(t0, time.Hour, 5, windows))
}
