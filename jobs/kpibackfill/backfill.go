// Package kpibackfill rebuilds flexibility KPIs from stored dispatch series.
package kpibackfill

import (
	"math"

	"github.com/power2u/flexheat/core/metrics/flexkpi"
	"github.com/power2u/flexheat/core/timeseries"
)

// Backfill adds the energy of every dispatched step of subcentral to store.
// Missing steps are skipped.
func Backfill(store flexkpi.Store, subcentral string, dispatch timeseries.Series) (int, error) {
	n := 0
	for i, p := range dispatch.Values {
		if math.IsNaN(p) || p == 0 {
			continue
		}
		if err := store.Add(flexkpi.FromPower(subcentral, dispatch.Index(i), p, dispatch.Step)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
