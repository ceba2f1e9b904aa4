package metrics

import "github.com/power2u/flexheat/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// PrometheusAddr is the listen address of the /metrics endpoint. Empty
	// disables the endpoint.
	PrometheusAddr string `json:"prometheus_addr" yaml:"prometheus_addr"`
	// FlexibilityPrice values reduced peak energy in the KPI sink.
	FlexibilityPrice float64 `json:"flexibility_price" yaml:"flexibility_price"`
}
