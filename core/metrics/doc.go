// Package metrics defines the recorders used to observe scheduling runs.
// Sinks like PromSink and InfluxSink record solves, schedules and dispatch
// allocations and can be combined with NewMultiSink. NewMetricsSink returns a
// MultiSink automatically when multiple sinks are configured.
package metrics
