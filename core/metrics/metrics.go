package metrics

import (
	"time"

	"github.com/power2u/flexheat/core/model"
)

// SolveRecord describes one MPC solve.
type SolveRecord struct {
	Subcentral model.SubcentralKey
	GridZone   int
	Mode       string
	Status     string
	Objective  float64
	Duration   time.Duration
	Time       time.Time
}

// MetricsSink records solve outcomes for observability purposes.
type MetricsSink interface {
	RecordSolve(rec SolveRecord) error
}

// SchedulePoint is one step of a solved schedule.
type SchedulePoint struct {
	Time              time.Time
	Power             float64
	BaselinePower     float64
	PowerOffset       float64
	IndoorTemperature float64
	InflowTempOffset  float64
	PeakHour          bool
}

// ScheduleRecord is a solved schedule.
type ScheduleRecord struct {
	Subcentral model.SubcentralKey
	GridZone   int
	Mode       string
	Points     []SchedulePoint
}

// ScheduleRecorder records schedules point by point.
type ScheduleRecorder interface {
	RecordSchedule(rec ScheduleRecord) error
}

// DispatchPoint is one step of a dispatch series.
type DispatchPoint struct {
	Time  time.Time
	Power float64
}

// AllocationRecord is the dispatch share of one subcentral.
type AllocationRecord struct {
	Subcentral    model.SubcentralKey
	GridZone      int
	Step          time.Duration
	Points        []DispatchPoint
	SignConflicts int
	Time          time.Time
}

// AllocationRecorder records dispatch allocations.
type AllocationRecorder interface {
	RecordAllocation(rec AllocationRecord) error
}

// PublishRecord describes the delivery of a dispatch series.
type PublishRecord struct {
	Subcentral model.SubcentralKey
	Points     int
	Error      string
	Time       time.Time
}

// PublishRecorder records dispatch publications.
type PublishRecorder interface {
	RecordPublish(rec PublishRecord) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSolve(SolveRecord) error           { return nil }
func (NopSink) RecordSchedule(ScheduleRecord) error     { return nil }
func (NopSink) RecordAllocation(AllocationRecord) error { return nil }
func (NopSink) RecordPublish(PublishRecord) error       { return nil }
