package heatcurve

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformed is returned for curves whose sequences cannot be interpolated.
var ErrMalformed = errors.New("heatcurve: malformed curve")

// Curve is a heat curve table. OutTemp is ascending, InflowTemp and Power are
// descending, all three have one entry per breakpoint.
type Curve struct {
	OutTemp    []float64 `json:"out_temp" yaml:"out_temp"`
	InflowTemp []float64 `json:"inflow_temp" yaml:"inflow_temp"`
	Power      []float64 `json:"power" yaml:"power"`
	// ValidFrom and ValidTo optionally restrict the curve to a range of
	// calendar months (1-12, inclusive, may wrap over new year).
	ValidFrom int `json:"valid_from,omitempty" yaml:"valid_from,omitempty"`
	ValidTo   int `json:"valid_to,omitempty" yaml:"valid_to,omitempty"`
}

// Breakpoints returns the number of points of the curve.
func (c Curve) Breakpoints() int { return len(c.OutTemp) }

// Validate checks that the three sequences have the same length and at least
// two points. Monotonicity is not checked.
func (c Curve) Validate() error {
	n := len(c.OutTemp)
	if n < 2 {
		return fmt.Errorf("%w: %d breakpoints", ErrMalformed, n)
	}
	if len(c.InflowTemp) != n || len(c.Power) != n {
		return fmt.Errorf("%w: lengths out_temp=%d inflow_temp=%d power=%d",
			ErrMalformed, n, len(c.InflowTemp), len(c.Power))
	}
	return nil
}

// ValidIn reports whether the curve applies to the month of t. Curves without
// a validity range apply all year.
func (c Curve) ValidIn(t time.Time) bool {
	if c.ValidFrom == 0 || c.ValidTo == 0 {
		return true
	}
	m := int(t.Month())
	if c.ValidFrom <= c.ValidTo {
		return m >= c.ValidFrom && m <= c.ValidTo
	}
	return m >= c.ValidFrom || m <= c.ValidTo
}

// Select returns the first curve valid for the month of t.
func Select(curves []Curve, t time.Time) (Curve, bool) {
	for _, c := range curves {
		if c.ValidIn(t) {
			return c, true
		}
	}
	return Curve{}, false
}
