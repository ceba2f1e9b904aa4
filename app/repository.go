package app

import (
	"context"
	"time"

	"github.com/power2u/flexheat/core/model"
	"github.com/power2u/flexheat/core/timeseries"
	"github.com/power2u/flexheat/infra/bundle"
	"github.com/power2u/flexheat/infra/store"
)

// repository reads subcentral setups, history and peak windows from the
// input bundle and every stored series from the database.
type repository struct {
	*bundle.Bundle
	store *store.SQLiteStore
}

func (r repository) AggregateDispatch(ctx context.Context, zone int, from, to time.Time) (timeseries.Series, error) {
	return r.store.AggregateDispatch(ctx, zone, from, to)
}

func (r repository) AggregatePlan(ctx context.Context, zone int, from, to time.Time) (timeseries.Series, error) {
	return r.store.AggregatePlan(ctx, zone, from, to)
}

func (r repository) SubcentralPlan(ctx context.Context, key model.SubcentralKey, from, to time.Time) (timeseries.Series, error) {
	return r.store.SubcentralPlan(ctx, key, from, to)
}

func (r repository) SubcentralDispatch(ctx context.Context, key model.SubcentralKey, from, to time.Time) (timeseries.Series, error) {
	return r.store.SubcentralDispatch(ctx, key, from, to)
}
