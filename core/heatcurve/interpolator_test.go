package heatcurve

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/power2u/flexheat/core/logger"
)

type warnRecorder struct {
	logger.Nop
	mu    sync.Mutex
	warns []string
}

func (w *warnRecorder) Warnf(format string, args ...any) {
	w.mu.Lock()
	w.warns = append(w.warns, fmt.Sprintf(format, args...))
	w.mu.Unlock()
}

func testCurve() Curve {
	return Curve{
		OutTemp:    []float64{-20, -10, 0, 10, 20},
		InflowTemp: []float64{70, 60, 50, 40, 30},
		Power:      []float64{500, 400, 300, 200, 100},
	}
}

func newInterpolator(t *testing.T) (*Interpolator, *warnRecorder) {
	t.Helper()
	rec := &warnRecorder{}
	h, err := New(testCurve(), rec)
	require.NoError(t, err)
	return h, rec
}

func TestPowerAt(t *testing.T) {
	h, rec := newInterpolator(t)
	cases := []struct {
		out  float64
		want float64
	}{
		{25, 0},
		{20, 100},
		{5, 250},
		{-15, 450},
		{-10, 400},
		{-20, 500},
		{-30, 500},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, h.PowerAt(tc.out), 1e-9, "out_temp %v", tc.out)
	}
	assert.Len(t, rec.warns, 3)
}

func TestPowerAtClampsExactly(t *testing.T) {
	h, _ := newInterpolator(t)
	assert.Equal(t, 0.0, h.PowerAt(20.0001))
	assert.Equal(t, 500.0, h.PowerAt(-20))
}

func TestReferenceInflowTempAt(t *testing.T) {
	h, _ := newInterpolator(t)
	assert.Equal(t, 30.0, h.ReferenceInflowTempAt(25))
	assert.Equal(t, 70.0, h.ReferenceInflowTempAt(-25))
	assert.InDelta(t, 45, h.ReferenceInflowTempAt(5), 1e-9)
	assert.InDelta(t, 65, h.ReferenceInflowTempAt(-15), 1e-9)
}

func TestPowerAtInflowTemp(t *testing.T) {
	h, rec := newInterpolator(t)
	assert.Equal(t, 500.0, h.PowerAtInflowTemp(80))
	assert.Equal(t, 500.0, h.PowerAtInflowTemp(70))
	assert.InDelta(t, 250, h.PowerAtInflowTemp(45), 1e-9)
	assert.InDelta(t, 100, h.PowerAtInflowTemp(30), 1e-9)
	// below the curve the last segment is extrapolated, not clamped
	assert.InDelta(t, 50, h.PowerAtInflowTemp(25), 1e-9)
	assert.InDelta(t, 0, h.PowerAtInflowTemp(20), 1e-9)
	assert.Len(t, rec.warns, 4)
}

func TestRoundTripThroughInflowTemp(t *testing.T) {
	h, _ := newInterpolator(t)
	for x := -19.5; x <= 20; x += 0.5 {
		ref := h.ReferenceInflowTempAt(x)
		assert.InDelta(t, h.PowerAt(x), h.PowerAtInflowTemp(ref), 1e-9, "out_temp %v", x)
	}
}

func TestInflowOffsetForPowerOffset(t *testing.T) {
	h, _ := newInterpolator(t)
	cases := []struct {
		name       string
		out        float64
		offset     float64
		wantOffset float64
		wantInflow float64
	}{
		{"no offset", 5, 0, 0, 45},
		{"reduction", 5, -50, -5, 40},
		{"increase", 5, 100, 10, 55},
		{"above curve", 5, 300, 25, 70},
		{"below curve", 5, -200, -15, 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			off, inflow := h.InflowOffsetForPowerOffset(tc.out, tc.offset)
			assert.InDelta(t, tc.wantOffset, off, 1e-9)
			assert.InDelta(t, tc.wantInflow, inflow, 1e-9)
		})
	}
}

func TestNewRejectsMalformedCurve(t *testing.T) {
	_, err := New(Curve{OutTemp: []float64{0, 1}, InflowTemp: []float64{50}, Power: []float64{1, 0}}, nil)
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = New(Curve{OutTemp: []float64{0}, InflowTemp: []float64{50}, Power: []float64{1}}, nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSelectByMonth(t *testing.T) {
	winter := testCurve()
	winter.ValidFrom, winter.ValidTo = 10, 4
	summer := testCurve()
	summer.Power = []float64{50, 40, 30, 20, 10}
	summer.ValidFrom, summer.ValidTo = 5, 9

	c, ok := Select([]Curve{summer, winter}, time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 500.0, c.Power[0])
	c, ok = Select([]Curve{summer, winter}, time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 50.0, c.Power[0])

	_, ok = Select([]Curve{summer}, time.Date(2020, 12, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}
