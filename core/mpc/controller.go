package mpc

import (
	"context"
	"fmt"

	"github.com/power2u/flexheat/core/greybox"
	"github.com/power2u/flexheat/core/heatcurve"
	"github.com/power2u/flexheat/core/logger"
	"github.com/power2u/flexheat/core/model"
)

// Controller solves Plan and Execution programs for one subcentral.
type Controller struct {
	key    model.SubcentralKey
	cfg    Config
	dyn    *greybox.Dynamics
	curve  *heatcurve.Interpolator
	solver Solver
	log    logger.Logger
}

// Option customises a Controller.
type Option func(*Controller)

// WithSolver replaces the default simplex solver.
func WithSolver(s Solver) Option {
	return func(c *Controller) { c.solver = s }
}

// WithLogger sets the logger. It is scoped to the subcentral.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// NewController validates cfg and returns a controller for key.
func NewController(key model.SubcentralKey, cfg Config, dyn *greybox.Dynamics, curve *heatcurve.Interpolator, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dyn == nil || curve == nil {
		return nil, fmt.Errorf("%w: dynamics and heat curve are required", ErrConfig)
	}
	c := &Controller{key: key, cfg: cfg, dyn: dyn, curve: curve}
	for _, o := range opts {
		o(c)
	}
	c.log = logger.With(c.log, key.Fields())
	if c.solver == nil {
		c.solver = NewSimplexSolver(cfg.SolverTolerance)
	}
	return c, nil
}

// Config returns the controller configuration.
func (c *Controller) Config() Config { return c.cfg }

// Plan solves the day-ahead variant.
func (c *Controller) Plan(ctx context.Context, in Input) (*Schedule, error) {
	return c.Solve(ctx, Plan, in)
}

// Execute solves the variant following the dispatch order.
func (c *Controller) Execute(ctx context.Context, in Input) (*Schedule, error) {
	return c.Solve(ctx, Execution, in)
}

// Solve builds and solves the program for mode. Non-optimal outcomes return an
// *InfeasibleError.
func (c *Controller) Solve(ctx context.Context, mode Mode, in Input) (*Schedule, error) {
	cfg := c.cfg.forMode(mode)
	p, err := Build(mode, cfg, c.dyn, in)
	if err != nil {
		return nil, fmt.Errorf("build %s program for %s: %w", mode, c.key, err)
	}
	c.log.Debugf("solving %s program: %d columns, %d inequalities, %d equalities",
		mode, p.Vars.N, p.NumInequalities(), p.NumEqualities())

	sol := c.solver.Solve(ctx, p)
	if sol.Status != StatusOptimal {
		c.log.Errorf("%s solve ended with status %s: %v", mode, sol.Status, sol.Err)
		return nil, &InfeasibleError{Subcentral: c.key.String(), Status: sol.Status, Err: sol.Err}
	}
	c.log.Infof("%s solved, objective %.4f", mode, sol.Objective)
	return c.schedule(mode, p.Vars, in, sol), nil
}

func (c *Controller) schedule(mode Mode, v Variables, in Input, sol Solution) *Schedule {
	f := in.Forecast
	x := sol.X
	h := v.Power.Len
	out := &Schedule{
		Subcentral: c.key.String(),
		Mode:       mode.String(),
		Start:      f.Start,
		Step:       f.Step,
		Objective:  sol.Objective,
		Steps:      make([]Step, h),
	}
	for t := 0; t < h; t++ {
		power := x[v.Power.At(t)]
		offset := power - f.BaselinePower[t]
		inflowOffset, inflow := c.curve.InflowOffsetForPowerOffset(f.OutTemp[t], offset)
		st := Step{
			Timestamp:         f.Timestamp(t),
			OutTempForecast:   f.OutTempForecast[t],
			OutTemp:           f.OutTemp[t],
			Solar:             f.Solar[t],
			PeakHour:          f.PeakHour[t],
			Power:             power,
			IndoorTemperature: x[v.Temperature.At(t+1)],
			BaselinePower:     f.BaselinePower[t],
			PowerOffset:       offset,
			BelowError:        x[v.BelowError.At(t+1)],
			AboveError:        x[v.AboveError.At(t+1)],
			InflowTempOffset:  inflowOffset,
			NewInflowTemp:     inflow,
		}
		if mode == Execution {
			st.Dispatch = f.Dispatch[t]
		}
		out.Steps[t] = st
	}
	return out
}
