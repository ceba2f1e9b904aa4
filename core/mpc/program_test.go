package mpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLayout(t *testing.T) {
	cfg := testConfig()
	p, err := Build(Execution, cfg, testDynamics(t), testInput())
	require.NoError(t, err)

	v := p.Vars
	assert.Equal(t, 19, v.N)
	assert.Equal(t, Block{Offset: 0, Len: 3}, v.Power)
	assert.Equal(t, Block{Offset: 3, Len: 4}, v.Temperature)
	assert.Equal(t, Block{Offset: 15, Len: 4}, v.InTempDiff)
	assert.Equal(t, 39, p.NumInequalities())
	assert.Equal(t, 8, p.NumEqualities())

	a, b := p.Equalities()
	r, c := a.Dims()
	assert.Equal(t, 8, r)
	assert.Equal(t, 19, c)
	assert.Len(t, b, 8)

	g, h := p.Inequalities()
	r, _ = g.Dims()
	assert.Equal(t, 39, r)
	assert.Len(t, h, 39)

	// every temperature and indoor difference is eliminated
	elim := p.eliminated()
	for col := range elim {
		want := col >= v.Temperature.Offset && col < v.Temperature.Offset+v.Temperature.Len ||
			col >= v.InTempDiff.Offset
		assert.Equal(t, want, elim[col], "column %d", col)
	}
}

func TestDynamicsRowMergesTemperatureTerms(t *testing.T) {
	p, err := Build(Execution, testConfig(), testDynamics(t), testInput())
	require.NoError(t, err)
	a, b := p.Equalities()

	// T(1) - 0.85*T(0) - 0.01*P(0) = 2
	v := p.Vars
	assert.InDelta(t, 1, a.At(0, v.Temperature.At(1)), 1e-12)
	assert.InDelta(t, -0.85, a.At(0, v.Temperature.At(0)), 1e-12)
	assert.InDelta(t, -0.01, a.At(0, v.Power.At(0)), 1e-12)
	assert.InDelta(t, 2, b[0], 1e-12)
}

func TestObjectiveVariants(t *testing.T) {
	cfg := testConfig()
	in := testInput()
	in.Forecast.PeakHour = []float64{0, 1, 0}
	in.Forecast.Dispatch = []float64{0, -50, 0}

	plan, err := Build(Plan, cfg, testDynamics(t), in)
	require.NoError(t, err)
	exec, err := Build(Execution, cfg, testDynamics(t), in)
	require.NoError(t, err)

	pw := plan.Vars.Power
	assert.InDelta(t, 0.403, plan.C[pw.At(0)], 1e-12)
	assert.InDelta(t, 1.403, plan.C[pw.At(1)], 1e-12)
	assert.Equal(t, plan.C, exec.C)

	// Plan rewards baseline-power, Execution dispatch-power-baseline
	assert.InDelta(t, -100, plan.Constant, 1e-12)
	assert.InDelta(t, 150, exec.Constant, 1e-12)

	x := make([]float64, plan.Vars.N)
	x[pw.At(1)] = 80
	assert.InDelta(t, 1.403*80-100, plan.Objective(x), 1e-9)
	assert.InDelta(t, 1.403*80+150, exec.Objective(x), 1e-9)
}

func TestViolation(t *testing.T) {
	p, err := Build(Execution, testConfig(), testDynamics(t), testInput())
	require.NoError(t, err)
	x := make([]float64, p.Vars.N)
	assert.ErrorContains(t, p.Violation(x, 1e-6), "dynamics[1]")
}

func TestConfigForMode(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	plan := cfg.forMode(Plan)
	assert.Equal(t, 200.0, plan.MaxPowerOffset)
	assert.Equal(t, 300.0, plan.MaxRamp)
	assert.Equal(t, 23.5, plan.Setpoint)

	exec := cfg.forMode(Execution)
	assert.Equal(t, 106.0, exec.MaxPowerOffset)
	assert.Equal(t, 20.0, exec.Setpoint)
	assert.Equal(t, 30*60.0, cfg.Timestep().Seconds())
}
