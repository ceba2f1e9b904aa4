package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/power2u/flexheat/core/metrics"
)

// PromSink records scheduling runs in Prometheus metrics.
type PromSink struct {
	solves    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	allocated *prometheus.GaugeVec
	conflicts *prometheus.CounterVec
	publishes *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The endpoint is served separately, see Serve.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// that are already registered are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	solves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mpc_solves_total",
		Help: "Total number of MPC solves by mode and termination status",
	}, []string{"mode", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mpc_solve_duration_seconds",
		Help:    "Time spent building and solving one MPC program",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
	allocated := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dispatch_allocated_kwh",
		Help: "Dispatch energy allocated to a subcentral in the last run",
	}, []string{"subcentral", "grid_zone"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_sign_conflicts_total",
		Help: "Grid steps zeroed because plan and dispatch had opposite signs",
	}, []string{"grid_zone"})
	publishes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_publications_total",
		Help: "Dispatch series delivered to subcentral controllers",
	}, []string{"result"})

	var err error
	if solves, err = register(reg, solves); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if allocated, err = register(reg, allocated); err != nil {
		return nil, err
	}
	if conflicts, err = register(reg, conflicts); err != nil {
		return nil, err
	}
	if publishes, err = register(reg, publishes); err != nil {
		return nil, err
	}
	return &PromSink{
		solves:    solves,
		duration:  duration,
		allocated: allocated,
		conflicts: conflicts,
		publishes: publishes,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSolve counts the solve and observes its duration.
func (s *PromSink) RecordSolve(rec coremetrics.SolveRecord) error {
	s.solves.WithLabelValues(rec.Mode, rec.Status).Inc()
	s.duration.WithLabelValues(rec.Mode).Observe(rec.Duration.Seconds())
	return nil
}

// RecordAllocation sets the allocated energy of the subcentral.
func (s *PromSink) RecordAllocation(rec coremetrics.AllocationRecord) error {
	zone := strconv.Itoa(rec.GridZone)
	kwh := 0.0
	for _, p := range rec.Points {
		kwh += p.Power * rec.Step.Hours()
	}
	s.allocated.WithLabelValues(rec.Subcentral.String(), zone).Set(kwh)
	if rec.SignConflicts > 0 {
		s.conflicts.WithLabelValues(zone).Add(float64(rec.SignConflicts))
	}
	return nil
}

// RecordPublish counts publications by result.
func (s *PromSink) RecordPublish(rec coremetrics.PublishRecord) error {
	result := "ok"
	if rec.Error != "" {
		result = "error"
	}
	s.publishes.WithLabelValues(result).Inc()
	return nil
}
