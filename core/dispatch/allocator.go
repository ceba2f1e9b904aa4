package dispatch

import (
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/power2u/flexheat/core/events"
	"github.com/power2u/flexheat/core/logger"
	"github.com/power2u/flexheat/core/model"
	"github.com/power2u/flexheat/core/timeseries"
	"github.com/power2u/flexheat/internal/eventbus"
)

// SubcentralPlan is the stored power offset plan of one subcentral.
type SubcentralPlan struct {
	Subcentral model.Subcentral
	Plan       timeseries.Series
}

// Allocation is the dispatch share of one subcentral on its own timestep.
type Allocation struct {
	Subcentral model.Subcentral
	Dispatch   timeseries.Series
	// SignConflicts counts grid steps zeroed because plan and dispatch
	// pointed in opposite directions.
	SignConflicts int
}

// Allocator splits an aggregate dispatch order across subcentrals in
// proportion to their plans.
type Allocator struct {
	grid Grid
	log  logger.Logger
	bus  eventbus.EventBus
}

// NewAllocator returns an allocator for grid. bus may be nil.
func NewAllocator(grid Grid, log logger.Logger, bus eventbus.EventBus) *Allocator {
	return &Allocator{grid: grid, log: logger.OrNop(log), bus: bus}
}

// Allocate distributes aggregateDispatch. For every grid step with a non-zero
// aggregate plan a subcentral receives plan/aggregate_plan times the dispatch.
// Steps where the aggregate plan is zero, or where plan and dispatch have
// opposite signs, get zero. Subcentrals without a plan are skipped.
func (a *Allocator) Allocate(aggregatePlan, aggregateDispatch timeseries.Series, plans []SubcentralPlan) []Allocation {
	aggPlan := a.grid.Align(aggregatePlan)
	aggDispatch := a.grid.Align(aggregateDispatch)

	out := make([]Allocation, 0, len(plans))
	for _, sp := range plans {
		log := logger.With(a.log, sp.Subcentral.Fields())
		if sp.Plan.Len() == 0 {
			log.Debugf("no plan stored, skipping dispatch")
			continue
		}
		plan := a.grid.Align(sp.Plan)
		share := a.grid.Zero()
		conflicts := 0
		for i := range share.Values {
			p, d := aggPlan.Values[i], aggDispatch.Values[i]
			switch {
			case p == 0:
			case p*d < 0:
				log.Warnf("dispatch and plan have different sign at %s", share.Index(i).Format(time.RFC3339))
				conflicts++
			default:
				share.Values[i] = plan.Values[i] / p * d
			}
		}
		if step := sp.Subcentral.Timestep(); step > 0 && step != share.Step {
			share = share.Resample(step)
		}
		out = append(out, Allocation{Subcentral: sp.Subcentral, Dispatch: share, SignConflicts: conflicts})
		if a.bus != nil {
			a.bus.Publish(events.AllocationEvent{
				Subcentral:    sp.Subcentral.SubcentralKey,
				GridZone:      sp.Subcentral.GridZone,
				Dispatch:      share,
				Total:         floats.Sum(share.Values),
				SignConflicts: conflicts,
			})
		}
	}
	return out
}
