// Package mqtt defines the messages exchanged with subcentral controllers.
package mqtt

import (
	"fmt"
	"time"

	"github.com/power2u/flexheat/core/model"
	"github.com/power2u/flexheat/core/timeseries"
)

// DefaultTopicPrefix is the first level of every dispatch topic.
const DefaultTopicPrefix = "flexheat"

// DispatchOrder carries the dispatch series of one subcentral. PowerKW[i]
// applies from Start + i*StepSeconds.
type DispatchOrder struct {
	CommandID    string    `json:"command_id"`
	CustomerID   int       `json:"customer_id"`
	SubcentralID int       `json:"subcentral_id"`
	Start        time.Time `json:"start"`
	StepSeconds  int       `json:"step_seconds"`
	PowerKW      []float64 `json:"power_kw"`
	Timestamp    int64     `json:"timestamp"`
}

// NewDispatchOrder builds the order for key from d.
func NewDispatchOrder(commandID string, key model.SubcentralKey, d timeseries.Series, now time.Time) DispatchOrder {
	return DispatchOrder{
		CommandID:    commandID,
		CustomerID:   key.CustomerID,
		SubcentralID: key.SubcentralID,
		Start:        d.Start.UTC(),
		StepSeconds:  int(d.Step / time.Second),
		PowerKW:      append([]float64(nil), d.Values...),
		Timestamp:    now.UnixMilli(),
	}
}

// Series returns the dispatch as a series.
func (o DispatchOrder) Series() timeseries.Series {
	return timeseries.Series{
		Start:  o.Start,
		Step:   time.Duration(o.StepSeconds) * time.Second,
		Values: append([]float64(nil), o.PowerKW...),
	}
}

// Ack is sent back by the subcentral controller.
type Ack struct {
	CommandID string `json:"command_id"`
}

// DispatchTopic returns the topic of a subcentral's dispatch orders.
func DispatchTopic(prefix string, key model.SubcentralKey) string {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return fmt.Sprintf("%s/%d/%d/dispatch", prefix, key.CustomerID, key.SubcentralID)
}
