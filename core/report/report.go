// Package report evaluates the heating delivered by subcentrals against their
// heat curve baseline.
package report

import (
	"fmt"
	"math"
	"time"

	"github.com/power2u/flexheat/core/dispatch"
	"github.com/power2u/flexheat/core/forecast"
	"github.com/power2u/flexheat/core/heatcurve"
	"github.com/power2u/flexheat/core/logger"
	"github.com/power2u/flexheat/core/model"
	"github.com/power2u/flexheat/core/timeseries"
)

// Row is one reported step.
type Row struct {
	Timestamp         time.Time `json:"timestamp"`
	MeasuredOutTemp   float64   `json:"measured_outside_temp"`
	InflowTemp        float64   `json:"inflow_temp"`
	IndoorTemperature float64   `json:"average_indoor_temperature"`
	HeatPower         float64   `json:"heat_power"`
	BaselinePower     float64   `json:"baseline_power"`
	PowerOffset       float64   `json:"power_offset"`
}

// SubcentralReport is the history of one subcentral.
type SubcentralReport struct {
	Subcentral model.SubcentralKey `json:"subcentral"`
	Start      time.Time           `json:"start"`
	Step       time.Duration       `json:"step"`
	Rows       []Row               `json:"rows"`
}

// PowerOffset returns the offset column as a series.
func (r SubcentralReport) PowerOffset() timeseries.Series {
	s := timeseries.New(r.Start, r.Step, len(r.Rows))
	for i, row := range r.Rows {
		s.Values[i] = row.PowerOffset
	}
	return s
}

// Subcentral derives the delivered heat power from the inflow temperature and
// compares it with the baseline at the measured outdoor temperature. When no
// measurement exists the forecast corrected by the deviation is used.
func Subcentral(key model.SubcentralKey, curve *heatcurve.Interpolator, raw forecast.Raw, log logger.Logger) (*SubcentralReport, error) {
	log = logger.With(log, key.Fields())
	n := raw.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: empty history for %s", forecast.ErrMissingData, key)
	}
	if len(raw.InflowTemp) != n || len(raw.IndoorTemp) != n {
		return nil, fmt.Errorf("%w: history columns differ in length for %s", forecast.ErrMissingData, key)
	}
	if raw.MeasuredOutTemp == nil {
		log.Warnf("measured_outside_temp is not available")
	}
	out := make([]float64, n)
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
	inflow := append([]float64(nil), raw.InflowTemp...)
	indoor := append([]float64(nil), raw.IndoorTemp...)
	for i, v := range indoor {
		if v == forecast.MissingIndoorTemp {
			indoor[i] = math.NaN()
		}
	}
	if !timeseries.Interpolate(out) || !timeseries.Interpolate(inflow) {
		return nil, fmt.Errorf("%w: no outdoor or inflow temperature for %s", forecast.ErrMissingData, key)
	}
	// indoor temperature is informative only
	timeseries.Interpolate(indoor)

	rep := &SubcentralReport{Subcentral: key, Start: raw.Start, Step: raw.Step, Rows: make([]Row, n)}
	for i := range rep.Rows {
		heat := curve.PowerAtInflowTemp(inflow[i])
		base := curve.PowerAt(out[i])
		rep.Rows[i] = Row{
			Timestamp:         raw.Start.Add(time.Duration(i) * raw.Step),
			MeasuredOutTemp:   out[i],
			InflowTemp:        inflow[i],
			IndoorTemperature: indoor[i],
			HeatPower:         heat,
			BaselinePower:     base,
			PowerOffset:       heat - base,
		}
	}
	return rep, nil
}

// Aggregate sums the power offsets of the reports on the grid.
func Aggregate(grid dispatch.Grid, reports []SubcentralReport, log logger.Logger) timeseries.Series {
	offsets := make([]timeseries.Series, len(reports))
	for i, r := range reports {
		offsets[i] = r.PowerOffset()
	}
	if len(offsets) == 0 {
		logger.OrNop(log).Warnf("subcentral reports are not available")
		return grid.Zero()
	}
	return dispatch.AggregatePlan(grid, offsets, log)
}
