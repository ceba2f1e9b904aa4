package dispatch

import (
	"github.com/power2u/flexheat/core/logger"
	"github.com/power2u/flexheat/core/timeseries"
	"gonum.org/v1/gonum/floats"
)

// AggregatePlan sums the power offset plans of a grid zone on the grid.
// Each plan is averaged per grid step and missing steps count as zero.
func AggregatePlan(grid Grid, plans []timeseries.Series, log logger.Logger) timeseries.Series {
	agg := grid.Zero()
	if len(plans) == 0 {
		logger.OrNop(log).Warnf("subcentral-level flexibility is not available")
		return agg
	}
	for _, p := range plans {
		floats.Add(agg.Values, grid.Align(p).Values)
	}
	return agg
}
