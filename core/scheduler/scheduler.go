package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/power2u/flexheat/core/dispatch"
	"github.com/power2u/flexheat/core/events"
	"github.com/power2u/flexheat/core/forecast"
	"github.com/power2u/flexheat/core/greybox"
	"github.com/power2u/flexheat/core/heatcurve"
	"github.com/power2u/flexheat/core/logger"
	"github.com/power2u/flexheat/core/model"
	"github.com/power2u/flexheat/core/monitoring"
	"github.com/power2u/flexheat/core/mpc"
	"github.com/power2u/flexheat/core/report"
	"github.com/power2u/flexheat/core/timeseries"
	"github.com/power2u/flexheat/internal/eventbus"
)

// ErrNoHeatCurve is reported for subcentrals without a curve valid at the
// planning start.
var ErrNoHeatCurve = errors.New("scheduler: no heat curve valid for the period")

// Failure is a subcentral that could not be processed.
type Failure struct {
	Subcentral model.SubcentralKey
	Stage      string
	Err        error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Stage, f.Subcentral, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Summary reports the outcome of a stage for a grid zone.
type Summary struct {
	GridZone  int
	Stage     string
	Succeeded int
	Failures  []Failure
}

// Err joins the failures, or returns nil when every subcentral succeeded.
func (s Summary) Err() error {
	errs := make([]error, len(s.Failures))
	for i, f := range s.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

type collector struct {
	mu sync.Mutex
	s  Summary
}

func (c *collector) ok() {
	c.mu.Lock()
	c.s.Succeeded++
	c.mu.Unlock()
}

func (c *collector) fail(key model.SubcentralKey, err error) {
	c.mu.Lock()
	c.s.Failures = append(c.s.Failures, Failure{Subcentral: key, Stage: c.s.Stage, Err: err})
	c.mu.Unlock()
}

// Scheduler runs the scheduling stages of grid zones.
type Scheduler struct {
	cfg     Config
	mpcCfg  mpc.Config
	flexCfg dispatch.Config
	repo    Repository
	writer  Writer

	pub    Publisher
	solver mpc.Solver
	bus    eventbus.EventBus
	mon    monitoring.Monitor
	log    logger.Logger
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithPublisher publishes allocated dispatch series.
func WithPublisher(p Publisher) Option { return func(s *Scheduler) { s.pub = p } }

// WithSolver overrides the solver used for every subcentral. By default all
// subcentrals share one simplex solver running up to Workers solves at once.
func WithSolver(sv mpc.Solver) Option { return func(s *Scheduler) { s.solver = sv } }

// WithEventBus publishes solve, allocation and publication events on bus.
func WithEventBus(bus eventbus.EventBus) Option { return func(s *Scheduler) { s.bus = bus } }

// WithMonitor captures subcentral failures.
func WithMonitor(m monitoring.Monitor) Option { return func(s *Scheduler) { s.mon = m } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(s *Scheduler) { s.log = l } }

// New validates the configuration and returns a scheduler.
func New(cfg Config, mpcCfg mpc.Config, flexCfg dispatch.Config, repo Repository, w Writer, opts ...Option) (*Scheduler, error) {
	if repo == nil || w == nil {
		return nil, errors.New("scheduler: repository and writer are required")
	}
	for _, v := range []interface{ Validate() error }{cfg, mpcCfg, flexCfg} {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	s := &Scheduler{cfg: cfg, mpcCfg: mpcCfg, flexCfg: flexCfg, repo: repo, writer: w}
	for _, o := range opts {
		o(s)
	}
	s.log = logger.OrNop(s.log)
	if s.mon == nil {
		s.mon = monitoring.Current()
	}
	if s.solver == nil {
		sv := mpc.NewSimplexSolver(mpcCfg.SolverTolerance)
		sv.Concurrency = cfg.Workers
		s.solver = sv
	}
	return s, nil
}

func (s *Scheduler) publish(ev any) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

// forEach runs fn for every setup on the worker pool and collects failures.
func (s *Scheduler) forEach(ctx context.Context, zone int, setups []Setup, c *collector, fn func(context.Context, Setup) error) {
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, st := range setups {
		g.Go(func() error {
			defer s.mon.Recover()
			key := st.Subcentral.SubcentralKey
			if err := ctx.Err(); err != nil {
				c.fail(key, err)
				return nil
			}
			if err := fn(ctx, st); err != nil {
				logger.With(s.log, key.Fields()).Errorf("%s failed: %v", c.s.Stage, err)
				s.mon.CaptureException(err, monitoring.SubcentralTags(key, zone, c.s.Stage))
				c.fail(key, err)
				return nil
			}
			c.ok()
			return nil
		})
	}
	_ = g.Wait()
}

// RunPlan solves the Plan variant for every subcentral of zone, stores the
// schedules and then the aggregate plan of the zone.
func (s *Scheduler) RunPlan(ctx context.Context, zone int, start time.Time) (Summary, error) {
	var (
		mu      sync.Mutex
		offsets []timeseries.Series
	)
	sum, err := s.runSolves(ctx, zone, start, mpc.Plan, func(sc *mpc.Schedule) {
		mu.Lock()
		offsets = append(offsets, sc.PowerOffset())
		mu.Unlock()
	})
	if err != nil {
		return sum, err
	}
	grid := dispatch.NewGrid(s.flexCfg, start)
	agg := dispatch.AggregatePlan(grid, offsets, logger.With(s.log, map[string]any{"grid_zone": zone}))
	if err := s.writer.WriteAggregatePlan(ctx, zone, agg); err != nil {
		return sum, fmt.Errorf("write aggregate plan for zone %d: %w", zone, err)
	}
	return sum, nil
}

// RunExecution solves the Execution variant following the stored dispatch.
func (s *Scheduler) RunExecution(ctx context.Context, zone int, start time.Time) (Summary, error) {
	return s.runSolves(ctx, zone, start, mpc.Execution, nil)
}

func (s *Scheduler) runSolves(ctx context.Context, zone int, start time.Time, mode mpc.Mode, done func(*mpc.Schedule)) (Summary, error) {
	c := &collector{s: Summary{GridZone: zone, Stage: mode.String()}}
	setups, err := s.repo.Subcentrals(ctx, zone)
	if err != nil {
		return c.s, fmt.Errorf("list subcentrals of zone %d: %w", zone, err)
	}
	step := s.mpcCfg.Timestep()
	end := start.Add(time.Duration(s.mpcCfg.Horizon) * step)
	peaks, err := s.repo.PeakWindows(ctx, zone, start, end)
	if err != nil {
		return c.s, fmt.Errorf("peak windows of zone %d: %w", zone, err)
	}
	s.log.Infof("%s for grid zone %d: %d subcentrals, %d peak windows", mode, zone, len(setups), len(peaks))

	s.forEach(ctx, zone, setups, c, func(ctx context.Context, st Setup) error {
		sc, err := s.solve(ctx, mode, st, start, peaks)
		if err != nil {
			return err
		}
		if done != nil {
			done(sc)
		}
		return nil
	})
	return c.s, nil
}

func (s *Scheduler) solve(ctx context.Context, mode mpc.Mode, st Setup, start time.Time, peaks []model.PeakWindow) (*mpc.Schedule, error) {
	sub := st.Subcentral
	log := logger.With(s.log, sub.Fields())
	curve, ok := heatcurve.Select(st.Curves, start)
	if !ok {
		return nil, ErrNoHeatCurve
	}
	interp, err := heatcurve.New(curve, log)
	if err != nil {
		return nil, err
	}
	dyn, err := greybox.New(st.Lags, st.Model(mode), log)
	if err != nil {
		return nil, err
	}

	step := s.mpcCfg.Timestep()
	h := s.mpcCfg.Horizon
	asm := forecast.NewAssembler(interp, dyn.MaxLag(), h, log)
	from := start.Add(-time.Duration(dyn.MaxLag()+1) * step)
	raw, err := s.repo.History(ctx, sub.SubcentralKey, from, step, asm.Rows())
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	var orders timeseries.Series
	if mode == mpc.Execution {
		orders, err = s.repo.SubcentralDispatch(ctx, sub.SubcentralKey, start, start.Add(time.Duration(h)*step))
		if err != nil {
			return nil, fmt.Errorf("subcentral dispatch: %w", err)
		}
	}
	in, err := asm.Assemble(raw, peaks, orders)
	if err != nil {
		return nil, err
	}

	ctrl, err := mpc.NewController(sub.SubcentralKey, s.mpcCfg, dyn, interp,
		mpc.WithLogger(s.log), mpc.WithSolver(s.solver))
	if err != nil {
		return nil, err
	}
	sctx, cancel := context.WithTimeout(ctx, s.cfg.SolveTimeout)
	defer cancel()
	began := time.Now()
	sc, err := ctrl.Solve(sctx, mode, in)
	ev := events.SolveEvent{
		Subcentral: sub.SubcentralKey,
		GridZone:   sub.GridZone,
		Mode:       mode.String(),
		Status:     string(mpc.StatusOptimal),
		Duration:   time.Since(began),
		Schedule:   sc,
		Err:        err,
	}
	var ie *mpc.InfeasibleError
	if errors.As(err, &ie) {
		ev.Status = string(ie.Status)
	} else if err != nil {
		ev.Status = "error"
	}
	if sc != nil {
		ev.Objective = sc.Objective
	}
	s.publish(ev)
	if err != nil {
		return nil, err
	}
	if err := s.writer.WriteSchedule(ctx, sub, sc); err != nil {
		return nil, fmt.Errorf("write schedule: %w", err)
	}
	return sc, nil
}

// RunDispatch splits the aggregate dispatch of zone across its subcentrals
// in proportion to their stored plans.
func (s *Scheduler) RunDispatch(ctx context.Context, zone int, start time.Time) (Summary, error) {
	c := &collector{s: Summary{GridZone: zone, Stage: "dispatch"}}
	grid := dispatch.NewGrid(s.flexCfg, start)
	end := start.Add(time.Duration(grid.Horizon) * grid.Step)

	aggPlan, err := s.repo.AggregatePlan(ctx, zone, start, end)
	if err != nil {
		return c.s, fmt.Errorf("aggregate plan of zone %d: %w", zone, err)
	}
	aggDispatch, err := s.repo.AggregateDispatch(ctx, zone, start, end)
	if err != nil {
		return c.s, fmt.Errorf("aggregate dispatch of zone %d: %w", zone, err)
	}
	setups, err := s.repo.Subcentrals(ctx, zone)
	if err != nil {
		return c.s, fmt.Errorf("list subcentrals of zone %d: %w", zone, err)
	}

	plans := make([]dispatch.SubcentralPlan, 0, len(setups))
	for _, st := range setups {
		key := st.Subcentral.SubcentralKey
		plan, err := s.repo.SubcentralPlan(ctx, key, start, end)
		if err != nil {
			s.mon.CaptureException(err, monitoring.SubcentralTags(key, zone, c.s.Stage))
			c.fail(key, fmt.Errorf("subcentral plan: %w", err))
			continue
		}
		plans = append(plans, dispatch.SubcentralPlan{Subcentral: st.Subcentral, Plan: plan})
	}

	alloc := dispatch.NewAllocator(grid, logger.With(s.log, map[string]any{"grid_zone": zone}), s.bus)
	allocations := alloc.Allocate(aggPlan, aggDispatch, plans)
	byKey := make(map[model.SubcentralKey]dispatch.Allocation, len(allocations))
	deliver := make([]Setup, 0, len(allocations))
	for _, a := range allocations {
		byKey[a.Subcentral.SubcentralKey] = a
		deliver = append(deliver, Setup{Subcentral: a.Subcentral})
	}
	s.forEach(ctx, zone, deliver, c, func(ctx context.Context, st Setup) error {
		a := byKey[st.Subcentral.SubcentralKey]
		if err := s.writer.WriteSubcentralDispatch(ctx, a.Subcentral, a.Dispatch); err != nil {
			return fmt.Errorf("write dispatch: %w", err)
		}
		if s.pub == nil {
			return nil
		}
		err := s.pub.PublishDispatch(ctx, a.Subcentral, a.Dispatch)
		s.publish(events.PublishEvent{Subcentral: a.Subcentral.SubcentralKey, Points: a.Dispatch.Len(), Err: err})
		if err != nil {
			return fmt.Errorf("publish dispatch: %w", err)
		}
		return nil
	})
	return c.s, nil
}

// RunReport compares the delivered heat of the period ending at end with
// the baseline and stores the subcentral and aggregate reports.
func (s *Scheduler) RunReport(ctx context.Context, zone int, end time.Time) (Summary, error) {
	c := &collector{s: Summary{GridZone: zone, Stage: "report"}}
	step := s.flexCfg.Timestep()
	start := end.Add(-time.Duration(s.flexCfg.PlanningHorizon) * step)
	setups, err := s.repo.Subcentrals(ctx, zone)
	if err != nil {
		return c.s, fmt.Errorf("list subcentrals of zone %d: %w", zone, err)
	}

	var (
		mu      sync.Mutex
		reports []report.SubcentralReport
	)
	s.forEach(ctx, zone, setups, c, func(ctx context.Context, st Setup) error {
		key := st.Subcentral.SubcentralKey
		curve, ok := heatcurve.Select(st.Curves, end)
		if !ok {
			return ErrNoHeatCurve
		}
		interp, err := heatcurve.New(curve, logger.With(s.log, key.Fields()))
		if err != nil {
			return err
		}
		raw, err := s.repo.History(ctx, key, start, step, s.flexCfg.PlanningHorizon)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		rep, err := report.Subcentral(key, interp, raw, s.log)
		if err != nil {
			return err
		}
		if err := s.writer.WriteReport(ctx, rep); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		mu.Lock()
		reports = append(reports, *rep)
		mu.Unlock()
		return nil
	})

	grid := dispatch.NewGrid(s.flexCfg, start)
	agg := report.Aggregate(grid, reports, logger.With(s.log, map[string]any{"grid_zone": zone}))
	if err := s.writer.WriteAggregateReport(ctx, zone, agg); err != nil {
		return c.s, fmt.Errorf("write aggregate report for zone %d: %w", zone, err)
	}
	return c.s, nil
}
