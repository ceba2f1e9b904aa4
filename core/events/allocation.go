package events

import (
	"github.com/power2u/flexheat/core/model"
	"github.com/power2u/flexheat/core/timeseries"
)

// AllocationEvent is emitted when a subcentral receives its dispatch share.
type AllocationEvent struct {
	Subcentral    model.SubcentralKey
	GridZone      int
	Dispatch      timeseries.Series
	Total         float64
	SignConflicts int
}

// PublishEvent reports the delivery of a dispatch series to a subcentral.
type PublishEvent struct {
	Subcentral model.SubcentralKey
	Points     int
	Err        error
}
