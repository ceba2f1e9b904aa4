package metrics

// MultiSink fans records out to multiple sinks. Optional recorders are only
// forwarded to sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSolve forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordSolve(rec SolveRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordSolve(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordSchedule forwards schedules.
func (m *MultiSink) RecordSchedule(rec ScheduleRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(ScheduleRecorder); ok {
			if err := r.RecordSchedule(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordAllocation forwards allocations.
func (m *MultiSink) RecordAllocation(rec AllocationRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(AllocationRecorder); ok {
			if err := r.RecordAllocation(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPublish forwards publication results.
func (m *MultiSink) RecordPublish(rec PublishRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(PublishRecorder); ok {
			if err := r.RecordPublish(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
