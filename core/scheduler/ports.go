package scheduler

import (
	"context"
	"time"

	"github.com/power2u/flexheat/core/forecast"
	"github.com/power2u/flexheat/core/greybox"
	"github.com/power2u/flexheat/core/heatcurve"
	"github.com/power2u/flexheat/core/model"
	"github.com/power2u/flexheat/core/mpc"
	"github.com/power2u/flexheat/core/report"
	"github.com/power2u/flexheat/core/timeseries"
)

// Setup is everything needed to control one subcentral.
type Setup struct {
	Subcentral model.Subcentral `json:"subcentral" yaml:"subcentral"`
	Curves     []heatcurve.Curve `json:"heat_curves" yaml:"heat_curves"`
	Lags       greybox.Config    `json:"dynamic" yaml:"dynamic"`
	// PlanModel and ExecutionModel are fitted separately.
	PlanModel      greybox.Model `json:"plan_model" yaml:"plan_model"`
	ExecutionModel greybox.Model `json:"execution_model" yaml:"execution_model"`
}

// Model returns the fitted model for mode.
func (s Setup) Model(mode mpc.Mode) greybox.Model {
	if mode == mpc.Plan {
		return s.PlanModel
	}
	return s.ExecutionModel
}

// Repository is the read side of the scheduler.
type Repository interface {
	Subcentrals(ctx context.Context, zone int) ([]Setup, error)
	History(ctx context.Context, key model.SubcentralKey, from time.Time, step time.Duration, n int) (forecast.Raw, error)
	PeakWindows(ctx context.Context, zone int, from, to time.Time) ([]model.PeakWindow, error)
	AggregateDispatch(ctx context.Context, zone int, from, to time.Time) (timeseries.Series, error)
	AggregatePlan(ctx context.Context, zone int, from, to time.Time) (timeseries.Series, error)
	SubcentralPlan(ctx context.Context, key model.SubcentralKey, from, to time.Time) (timeseries.Series, error)
	SubcentralDispatch(ctx context.Context, key model.SubcentralKey, from, to time.Time) (timeseries.Series, error)
}

// Writer persists scheduler results.
type Writer interface {
	WriteSchedule(ctx context.Context, sub model.Subcentral, s *mpc.Schedule) error
	WriteAggregatePlan(ctx context.Context, zone int, plan timeseries.Series) error
	WriteSubcentralDispatch(ctx context.Context, sub model.Subcentral, d timeseries.Series) error
	WriteReport(ctx context.Context, r *report.SubcentralReport) error
	WriteAggregateReport(ctx context.Context, zone int, offsets timeseries.Series) error
}

// Publisher delivers dispatch series to subcentral controllers.
type Publisher interface {
	PublishDispatch(ctx context.Context, sub model.Subcentral, d timeseries.Series) error
}
