package heatcurve

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/power2u/flexheat/core/logger"
)

// Interpolator evaluates a single heat curve. It is immutable and safe for
// concurrent use.
type Interpolator struct {
	curve Curve
	log   logger.Logger
}

// New validates the curve and returns an Interpolator for it.
func New(c Curve, log logger.Logger) (*Interpolator, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Interpolator{curve: c, log: logger.OrNop(log)}, nil
}

// Curve returns the underlying table.
func (h *Interpolator) Curve() Curve { return h.curve }

// PowerAt returns the baseline heating power at the given outside temperature.
// Above the curve heating is off (0), at or below its minimum the maximum power
// is returned.
func (h *Interpolator) PowerAt(outTemp float64) float64 {
	c := h.curve
	switch {
	case outTemp > floats.Max(c.OutTemp):
		h.log.Warnf("outside temperature %.2f above heat curve upper limit", outTemp)
		return 0
	case outTemp <= floats.Min(c.OutTemp):
		h.log.Warnf("outside temperature %.2f below heat curve lower limit", outTemp)
		return floats.Max(c.Power)
	}
	return h.interpolateByOutTemp(outTemp, c.Power)
}

// ReferenceInflowTempAt returns the inflow temperature prescribed by the curve
// at the given outside temperature, saturating at the curve ends.
func (h *Interpolator) ReferenceInflowTempAt(outTemp float64) float64 {
	c := h.curve
	switch {
	case outTemp > floats.Max(c.OutTemp):
		h.log.Warnf("outside temperature %.2f above heat curve upper limit", outTemp)
		return floats.Min(c.InflowTemp)
	case outTemp <= floats.Min(c.OutTemp):
		h.log.Warnf("outside temperature %.2f below heat curve lower limit", outTemp)
		return floats.Max(c.InflowTemp)
	}
	return h.interpolateByOutTemp(outTemp, c.InflowTemp)
}

// PowerAtInflowTemp estimates the heating power implied by an inflow
// temperature. At or above the hottest inflow temperature the maximum power is
// returned; below the coldest one the last segment is extrapolated.
func (h *Interpolator) PowerAtInflowTemp(inflowTemp float64) float64 {
	c := h.curve
	n := c.Breakpoints()
	switch {
	case inflowTemp >= floats.Max(c.InflowTemp):
		h.log.Warnf("inflow temperature %.2f above heat curve upper limit", inflowTemp)
		return floats.Max(c.Power)
	case inflowTemp < floats.Min(c.InflowTemp):
		h.log.Warnf("inflow temperature %.2f below heat curve lower limit, extrapolating", inflowTemp)
		return lerp(inflowTemp, c.InflowTemp[n-2], c.InflowTemp[n-1], c.Power[n-2], c.Power[n-1])
	}
	for i := 0; i < n-1; i++ {
		if inflowTemp < c.InflowTemp[i] && inflowTemp >= c.InflowTemp[i+1] {
			return lerp(inflowTemp, c.InflowTemp[i], c.InflowTemp[i+1], c.Power[i], c.Power[i+1])
		}
	}
	return math.NaN()
}

// InflowOffsetForPowerOffset translates a power offset at the given outside
// temperature into an inflow temperature offset. It returns the offset relative
// to the reference inflow temperature and the new inflow temperature.
func (h *Interpolator) InflowOffsetForPowerOffset(outTemp, powerOffset float64) (offset, inflow float64) {
	c := h.curve
	n := c.Breakpoints()
	reference := h.ReferenceInflowTempAt(outTemp)
	newPower := h.PowerAt(outTemp) + powerOffset

	switch {
	case newPower > floats.Max(c.Power):
		h.log.Warnf("new power %.2f above heat curve upper limit", newPower)
		inflow = floats.Max(c.InflowTemp)
	case newPower <= floats.Min(c.Power):
		h.log.Warnf("new power %.2f below heat curve lower limit", newPower)
		inflow = floats.Min(c.InflowTemp)
	default:
		inflow = math.NaN()
		for i := 0; i < n-1; i++ {
			if newPower <= c.Power[i] && newPower > c.Power[i+1] {
				inflow = lerp(newPower, c.Power[i], c.Power[i+1], c.InflowTemp[i], c.InflowTemp[i+1])
				break
			}
		}
	}
	return inflow - reference, inflow
}

// interpolateByOutTemp interpolates ys on the first segment with
// OutTemp[i] < x <= OutTemp[i+1].
func (h *Interpolator) interpolateByOutTemp(x float64, ys []float64) float64 {
	c := h.curve
	for i := 0; i < c.Breakpoints()-1; i++ {
		if x > c.OutTemp[i] && x <= c.OutTemp[i+1] {
			return lerp(x, c.OutTemp[i], c.OutTemp[i+1], ys[i], ys[i+1])
		}
	}
	return math.NaN()
}

func lerp(x, x0, x1, y0, y1 float64) float64 {
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}
