package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/power2u/flexheat/core/events"
	coremetrics "github.com/power2u/flexheat/core/metrics"
	"github.com/power2u/flexheat/core/mpc"
	"github.com/power2u/flexheat/core/timeseries"
	"github.com/power2u/flexheat/internal/eventbus"
)

type recordingSink struct {
	mu          sync.Mutex
	solves      []coremetrics.SolveRecord
	schedules   []coremetrics.ScheduleRecord
	allocations []coremetrics.AllocationRecord
	publishes   []coremetrics.PublishRecord
}

func (s *recordingSink) RecordSolve(r coremetrics.SolveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.solves = append(s.solves, r)
	return nil
}

func (s *recordingSink) RecordSchedule(r coremetrics.ScheduleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = append(s.schedules, r)
	return nil
}

func (s *recordingSink) RecordAllocation(r coremetrics.AllocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocations = append(s.allocations, r)
	return nil
}

func (s *recordingSink) RecordPublish(r coremetrics.PublishRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishes = append(s.publishes, r)
	return nil
}

func TestEventCollector(t *testing.T) {
	bus := eventbus.New()
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := StartEventCollector(ctx, bus, sink)

	t0 := time.Date(2021, 1, 12, 0, 0, 0, 0, time.UTC)
	sched := &mpc.Schedule{Mode: "plan", Start: t0, Step: time.Hour, Steps: []mpc.Step{
		{Timestamp: t0, Power: 300, BaselinePower: 300, PeakHour: 1},
		{Timestamp: t0.Add(time.Hour), Power: 150, BaselinePower: 300, PowerOffset: -150},
	}}
	bus.Publish(events.SolveEvent{Subcentral: key, GridZone: 2, Mode: "plan", Status: "optimal", Schedule: sched})
	bus.Publish(events.SolveEvent{Subcentral: key, Mode: "execution", Status: "timeout", Err: errors.New("deadline")})
	bus.Publish(events.AllocationEvent{
		Subcentral:    key,
		GridZone:      2,
		Dispatch:      timeseries.Series{Start: t0, Step: time.Hour, Values: []float64{-5, 0}},
		SignConflicts: 1,
	})
	bus.Publish(events.PublishEvent{Subcentral: key, Points: 2, Err: errors.New("broker down")})
	bus.Publish("ignored")
	bus.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}

	require.Len(t, sink.solves, 2)
	assert.Equal(t, "timeout", sink.solves[1].Status)
	require.Len(t, sink.schedules, 1)
	assert.True(t, sink.schedules[0].Points[0].PeakHour)
	assert.Equal(t, -150.0, sink.schedules[0].Points[1].PowerOffset)

	require.Len(t, sink.allocations, 1)
	a := sink.allocations[0]
	assert.Equal(t, time.Hour, a.Step)
	assert.Equal(t, t0.Add(time.Hour), a.Points[1].Time)
	assert.Equal(t, 1, a.SignConflicts)

	require.Len(t, sink.publishes, 1)
	assert.Equal(t, "broker down", sink.publishes[0].Error)
}

func TestEventCollectorNilBus(t *testing.T) {
	done := StartEventCollector(context.Background(), nil, &recordingSink{})
	_, open := <-done
	assert.False(t, open)
}
