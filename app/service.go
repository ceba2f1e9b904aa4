// Package app wires configuration, storage, inputs, metrics, monitoring and
// dispatch publication around the scheduler.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/power2u/flexheat/config"
	coremetrics "github.com/power2u/flexheat/core/metrics"
	"github.com/power2u/flexheat/core/metrics/flexkpi"
	"github.com/power2u/flexheat/core/model"
	coremon "github.com/power2u/flexheat/core/monitoring"
	"github.com/power2u/flexheat/core/mpc"
	"github.com/power2u/flexheat/core/scheduler"
	"github.com/power2u/flexheat/infra/bundle"
	"github.com/power2u/flexheat/infra/logger"
	"github.com/power2u/flexheat/infra/metrics"
	"github.com/power2u/flexheat/infra/monitoring"
	"github.com/power2u/flexheat/infra/mqtt"
	"github.com/power2u/flexheat/infra/store"
	"github.com/power2u/flexheat/internal/eventbus"
	"github.com/power2u/flexheat/jobs/kpibackfill"
)

// Service runs the scheduling stages of a grid zone.
type Service struct {
	Scheduler *scheduler.Scheduler

	cfg       *config.Config
	store     *store.SQLiteStore
	input     *bundle.Bundle
	bus       *eventbus.Bus
	pub       *mqtt.DispatchPublisher
	mon       coremon.Monitor
	log       logger.Logger
	cancel    context.CancelFunc
	collector <-chan struct{}
	promDone  chan struct{}
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	input, err := bundle.Load(cfg.Input.Path, cfg.Dynamic)
	if err != nil {
		return nil, err
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc := &Service{
		cfg:    cfg,
		store:  st,
		input:  input,
		bus:    eventbus.New(),
		mon:    mon,
		log:    logg,
		cancel: cancel,
	}
	svc.collector = metrics.StartEventCollector(ctx, svc.bus, sink)
	if addr := cfg.Metrics.PrometheusAddr; addr != "" {
		svc.promDone = make(chan struct{})
		go func() {
			defer close(svc.promDone)
			if err := metrics.StartPromServer(ctx, addr, prometheus.DefaultGatherer); err != nil {
				logg.Errorf("prom server: %v", err)
			}
		}()
	}

	opts := []scheduler.Option{
		scheduler.WithEventBus(svc.bus),
		scheduler.WithMonitor(mon),
		scheduler.WithLogger(logger.New("scheduler")),
	}
	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewDispatchPublisher(cfg.MQTT)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.pub = pub
		opts = append(opts, scheduler.WithPublisher(pub))
	}

	repo := repository{Bundle: input, store: st}
	sched, err := scheduler.New(cfg.Scheduler, cfg.MPC, cfg.Flexibility, repo, st, opts...)
	if err != nil {
		_ = svc.Close()
		return nil, err
	}
	svc.Scheduler = sched
	return svc, nil
}

// Plan solves the Plan program of every subcentral in zone and writes the
// aggregate plan.
func (s *Service) Plan(ctx context.Context, zone int, start time.Time) (scheduler.Summary, error) {
	return s.Scheduler.RunPlan(ctx, zone, start)
}

// Execute solves the Execution program of every subcentral in zone.
func (s *Service) Execute(ctx context.Context, zone int, start time.Time) (scheduler.Summary, error) {
	return s.Scheduler.RunExecution(ctx, zone, start)
}

// Dispatch stores the dispatch order carried by the input bundle, if any, and
// allocates the stored order of zone to its subcentrals.
func (s *Service) Dispatch(ctx context.Context, zone int, start time.Time) (scheduler.Summary, error) {
	if d, ok := s.input.AggregateDispatch(zone); ok {
		if err := s.store.WriteAggregateDispatch(ctx, zone, d); err != nil {
			return scheduler.Summary{}, fmt.Errorf("store dispatch order: %w", err)
		}
	}
	return s.Scheduler.RunDispatch(ctx, zone, start)
}

// Report computes the realised flexibility of zone for the period ending at
// end.
func (s *Service) Report(ctx context.Context, zone int, end time.Time) (scheduler.Summary, error) {
	return s.Scheduler.RunReport(ctx, zone, end)
}

// Schedule reads the stored schedule of key in [from, to).
func (s *Service) Schedule(ctx context.Context, key model.SubcentralKey, mode mpc.Mode, from, to time.Time) (*mpc.Schedule, error) {
	return s.store.Schedule(ctx, key, mode, from, to)
}

// BackfillKPI adds the stored dispatch of every subcentral of zone in
// [from, to) to the flexibility KPI store and returns the number of
// dispatched steps.
func (s *Service) BackfillKPI(ctx context.Context, kpis flexkpi.Store, zone int, from, to time.Time) (int, error) {
	setups, err := s.input.Subcentrals(ctx, zone)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, st := range setups {
		key := st.Subcentral.SubcentralKey
		d, err := s.store.SubcentralDispatch(ctx, key, from, to)
		if err != nil {
			return total, fmt.Errorf("dispatch of %s: %w", key, err)
		}
		n, err := kpibackfill.Backfill(kpis, key.String(), d)
		total += n
		if err != nil {
			return total, fmt.Errorf("backfill %s: %w", key, err)
		}
	}
	return total, nil
}

// Close stops the collectors and releases resources held by the service.
func (s *Service) Close() error {
	if s.pub != nil {
		s.pub.Disconnect()
	}
	s.cancel()
	<-s.collector
	if s.promDone != nil {
		<-s.promDone
	}
	s.bus.Close()
	s.mon.Flush(2 * time.Second)
	return s.store.Close()
}
