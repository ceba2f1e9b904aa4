package mpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/power2u/flexheat/core/greybox"
)

// laggedDynamics uses a trained-looking model with the same lag on every
// difference series.
func laggedDynamics(t *testing.T, lag int) *greybox.Dynamics {
	t.Helper()
	lags := []int{0, lag}
	d, err := greybox.New(
		greybox.Config{InTempDiffLag: lags, OutTempDiffLag: lags, SolarDiffLag: lags},
		greybox.Model{Intercept: 0.5, Coefficients: []float64{0, 0.95, 0.0005, 0.002, -0.01, 0.1, 0.01, 0.01, 0.001, 1e-4, 1e-4}},
		nil,
	)
	require.NoError(t, err)
	return d
}

func laggedInput(h, maxLag int) Input {
	in := Input{
		Forecast: ForecastFrame{
			Start:           t0,
			Step:            30 * time.Minute,
			OutTempForecast: make([]float64, h),
			OutTemp:         make([]float64, h),
			Solar:           make([]float64, h),
			BaselinePower:   make([]float64, h),
			PeakHour:        make([]float64, h),
			Dispatch:        make([]float64, h),
		},
		Initial: InitialState{IndoorTemperature: 20.2, HeatPower: 250},
		Diff: DiffFrame{
			OutTemp: make([]float64, maxLag+h),
			Solar:   make([]float64, maxLag+h),
			InTemp:  make([]float64, maxLag+1),
		},
	}
	f := &in.Forecast
	for i := 0; i < h; i++ {
		f.OutTemp[i] = -4 + 3*math.Sin(float64(i)/8)
		f.OutTempForecast[i] = f.OutTemp[i]
		f.Solar[i] = math.Max(0, 200*math.Sin(float64(i-12)/8))
		f.BaselinePower[i] = 250
		if i%12 >= 8 {
			f.PeakHour[i] = 1
			f.Dispatch[i] = -40
		}
	}
	for i := range in.Diff.OutTemp {
		in.Diff.OutTemp[i] = 0.2 * math.Cos(float64(i)/5)
		in.Diff.Solar[i] = 5 * math.Sin(float64(i)/7)
	}
	for i := range in.Diff.InTemp {
		in.Diff.InTemp[i] = 0.05 * math.Sin(float64(i)/3)
	}
	return in
}

// baselinePoint follows the baseline power and takes the comfort errors as
// small as the simulated temperatures allow.
func baselinePoint(p *Program, cfg Config, in Input) []float64 {
	v := p.Vars
	x := make([]float64, v.N)
	copy(x[v.Power.Offset:], in.Forecast.BaselinePower)
	p.complete(x)
	for t := 0; t < v.Temperature.Len; t++ {
		temp := x[v.Temperature.At(t)]
		x[v.BelowError.At(t)] = math.Max(0, cfg.Setpoint-cfg.HysteresisBelow-temp)
		x[v.AboveError.At(t)] = math.Max(0, temp-cfg.Setpoint-cfg.HysteresisAbove)
	}
	return x
}

func TestSolveLaggedModel(t *testing.T) {
	tests := []struct {
		horizon int
		lag     int
		mode    Mode
	}{
		{6, 1, Execution},
		{6, 1, Plan},
		{48, 24, Execution},
		{48, 24, Plan},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/h%d/lag%d", tt.mode, tt.horizon, tt.lag), func(t *testing.T) {
			dyn := laggedDynamics(t, tt.lag)
			maxLag := dyn.MaxLag()
			cfg := DefaultConfig()
			cfg.Horizon = tt.horizon
			cfg = cfg.forMode(tt.mode)
			in := laggedInput(tt.horizon, maxLag)

			p, err := Build(tt.mode, cfg, dyn, in)
			require.NoError(t, err)
			ref := baselinePoint(p, cfg, in)
			require.NoError(t, p.Violation(ref, 1e-6))

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			sol := NewSimplexSolver(cfg.SolverTolerance).Solve(ctx, p)
			require.Equal(t, StatusOptimal, sol.Status, "%v", sol.Err)
			require.NoError(t, p.Violation(sol.X, 1e-6))
			assert.LessOrEqual(t, sol.Objective, p.Objective(ref)+1e-6)
			assert.InDelta(t, p.Objective(sol.X), sol.Objective, 1e-9)

			v := p.Vars
			x := sol.X
			for i := 0; i <= maxLag; i++ {
				assert.Equal(t, in.Diff.InTemp[i], x[v.InTempDiff.At(i)], "known in_temp_diff[%d]", i)
			}
			for i := maxLag + 1; i < maxLag+tt.horizon; i++ {
				want := x[v.Temperature.At(i-maxLag)] - x[v.Temperature.At(i-maxLag-1)]
				assert.Equal(t, want, x[v.InTempDiff.At(i)], "in_temp_diff[%d]", i)
			}

			power := x[v.Power.Offset : v.Power.Offset+v.Power.Len]
			temps := dyn.Simulate(in.Initial.IndoorTemperature, power, in.Diff.InTemp, greybox.Exogenous{
				Outdoor:     in.Forecast.OutTemp,
				Solar:       in.Forecast.Solar,
				OutTempDiff: in.Diff.OutTemp,
				SolarDiff:   in.Diff.Solar,
			})
			for i, temp := range temps {
				assert.InDelta(t, temp, x[v.Temperature.At(i)], 1e-6, "temperature[%d]", i)
			}
		})
	}
}

func TestProductionSizeSchedule(t *testing.T) {
	dyn := laggedDynamics(t, 24)
	c, err := NewController(key, DefaultConfig(), dyn, testCurve(t))
	require.NoError(t, err)
	in := laggedInput(48, 24)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s, err := c.Execute(ctx, in)
	require.NoError(t, err)
	require.Len(t, s.Steps, 48)
	for i, st := range s.Steps {
		assert.GreaterOrEqual(t, st.Power, 70-1e-6, "power[%d]", i)
		assert.LessOrEqual(t, math.Abs(st.PowerOffset), 106+1e-6, "offset[%d]", i)
	}
}

func TestReduceKeepsDecisionColumns(t *testing.T) {
	p, err := Build(Execution, testConfig(), testDynamics(t), testInput())
	require.NoError(t, err)
	sf, err := reduce(p, 1e-6)
	require.NoError(t, err)

	v := p.Vars
	inBlock := func(b Block, col int) bool { return col >= b.Offset && col < b.Offset+b.Len }
	require.NotEmpty(t, sf.active)
	for _, col := range sf.active {
		assert.True(t, inBlock(v.Power, col) || inBlock(v.BelowError, col) || inBlock(v.AboveError, col),
			"column %d is not a decision column", col)
	}
	rows, cols := sf.a.Dims()
	assert.Equal(t, len(sf.active)+rows, cols)
	assert.Len(t, sf.b, rows)

	// the rate limit binds before the reference bound
	assert.Equal(t, 70.0, sf.base[v.Power.At(0)])
	assert.Equal(t, 0.0, sf.base[v.BelowError.At(1)])
}

func TestReduceRejectsCrossedBounds(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitLower = 700
	p, err := Build(Execution, cfg, testDynamics(t), testInput())
	require.NoError(t, err)

	_, err = reduce(p, 1e-6)
	assert.ErrorIs(t, err, lp.ErrInfeasible)
	assert.ErrorContains(t, err, fmt.Sprintf("column %d", p.Vars.Power.At(0)))
}

func TestCompleteFollowsEliminationOrder(t *testing.T) {
	dyn := laggedDynamics(t, 1)
	cfg := testConfig()
	in := laggedInput(cfg.Horizon, dyn.MaxLag())
	p, err := Build(Execution, cfg, dyn, in)
	require.NoError(t, err)

	x := make([]float64, p.Vars.N)
	copy(x[p.Vars.Power.Offset:], []float64{120, 180, 90})
	p.complete(x)
	for _, r := range p.eq {
		assert.InDelta(t, r.rhs, r.dot(x), 1e-9, r.name)
	}
}

func TestTimedOutSolveHoldsSolver(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	orig := simplex
	simplex = func(c []float64, a mat.Matrix, b []float64, tol float64, basis []int) (float64, []float64, error) {
		calls.Add(1)
		<-release
		return 0, nil, errors.New("released")
	}
	t.Cleanup(func() { simplex = orig })

	s := NewSimplexSolver(0)
	p, err := Build(Execution, testConfig(), testDynamics(t), testInput())
	require.NoError(t, err)

	timedOut := func() Status {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		return s.Solve(ctx, p).Status
	}
	assert.Equal(t, StatusTimeout, timedOut())
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	// the abandoned run still holds the solver
	assert.Equal(t, StatusTimeout, timedOut())
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	sol := s.Solve(context.Background(), p)
	assert.Equal(t, StatusNumeric, sol.Status)
	assert.Equal(t, int32(2), calls.Load())
}

func TestConcurrencyBoundsAbandonedRuns(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	orig := simplex
	simplex = func(c []float64, a mat.Matrix, b []float64, tol float64, basis []int) (float64, []float64, error) {
		calls.Add(1)
		<-release
		return 0, nil, errors.New("released")
	}
	t.Cleanup(func() {
		close(release)
		simplex = orig
	})

	s := NewSimplexSolver(0)
	s.Concurrency = 2
	p, err := Build(Execution, testConfig(), testDynamics(t), testInput())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		assert.Equal(t, StatusTimeout, s.Solve(ctx, p).Status)
		cancel()
	}
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}
