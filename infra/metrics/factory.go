package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/power2u/flexheat/core/factory"
	coremetrics "github.com/power2u/flexheat/core/metrics"
	"github.com/power2u/flexheat/core/metrics/flexkpi"
	"github.com/power2u/flexheat/infra/kpi"
)

// kpiConfig configures the "kpi" sink. An empty Path keeps the records in
// memory.
type kpiConfig struct {
	Path  string  `json:"path"`
	Price float64 `json:"flexibility_price"`
}

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.URL == "" {
			return nil, fmt.Errorf("influx sink: url is required")
		}
		return NewInfluxSinkWithFallback(c), nil
	})

	_ = coremetrics.RegisterMetricsSink("kpi", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		c := kpiConfig{Price: 1}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		var store flexkpi.Store = flexkpi.NewMemoryStore()
		if c.Path != "" {
			s, err := kpi.NewSQLiteStore(c.Path)
			if err != nil {
				return nil, fmt.Errorf("kpi sink: %w", err)
			}
			store = s
		}
		return NewKPISink(store, c.Price, prometheus.DefaultRegisterer)
	})
}
