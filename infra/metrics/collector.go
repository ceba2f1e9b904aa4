package metrics

import (
	"context"
	"time"

	"github.com/power2u/flexheat/core/events"
	coremetrics "github.com/power2u/flexheat/core/metrics"
	"github.com/power2u/flexheat/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled or the bus is closed. The returned
// channel is closed once the collector has stopped.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev)
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) {
	now := time.Now()
	switch e := ev.(type) {
	case events.SolveEvent:
		_ = sink.RecordSolve(coremetrics.SolveRecord{
			Subcentral: e.Subcentral,
			GridZone:   e.GridZone,
			Mode:       e.Mode,
			Status:     e.Status,
			Objective:  e.Objective,
			Duration:   e.Duration,
			Time:       now,
		})
		if r, ok := sink.(coremetrics.ScheduleRecorder); ok && e.Succeeded() {
			_ = r.RecordSchedule(scheduleRecord(e))
		}
	case events.AllocationEvent:
		if r, ok := sink.(coremetrics.AllocationRecorder); ok {
			pts := make([]coremetrics.DispatchPoint, e.Dispatch.Len())
			for i, v := range e.Dispatch.Values {
				pts[i] = coremetrics.DispatchPoint{Time: e.Dispatch.Index(i), Power: v}
			}
			_ = r.RecordAllocation(coremetrics.AllocationRecord{
				Subcentral:    e.Subcentral,
				GridZone:      e.GridZone,
				Step:          e.Dispatch.Step,
				Points:        pts,
				SignConflicts: e.SignConflicts,
				Time:          now,
			})
		}
	case events.PublishEvent:
		if r, ok := sink.(coremetrics.PublishRecorder); ok {
			errStr := ""
			if e.Err != nil {
				errStr = e.Err.Error()
			}
			_ = r.RecordPublish(coremetrics.PublishRecord{Subcentral: e.Subcentral, Points: e.Points, Error: errStr, Time: now})
		}
	}
}

func scheduleRecord(e events.SolveEvent) coremetrics.ScheduleRecord {
	pts := make([]coremetrics.SchedulePoint, len(e.Schedule.Steps))
	for i, st := range e.Schedule.Steps {
		pts[i] = coremetrics.SchedulePoint{
			Time:              st.Timestamp,
			Power:             st.Power,
			BaselinePower:     st.BaselinePower,
			PowerOffset:       st.PowerOffset,
			IndoorTemperature: st.IndoorTemperature,
			InflowTempOffset:  st.InflowTempOffset,
			PeakHour:          st.PeakHour == 1,
		}
	}
	return coremetrics.ScheduleRecord{Subcentral: e.Subcentral, GridZone: e.GridZone, Mode: e.Mode, Points: pts}
}
