package model

import (
	"fmt"
	"time"
)

// SubcentralKey identifies a subcentral within a customer.
type SubcentralKey struct {
	CustomerID   int `json:"customer_id" yaml:"customer_id"`
	SubcentralID int `json:"subcentral_id" yaml:"subcentral_id"`
}

func (k SubcentralKey) String() string {
	return fmt.Sprintf("%d/%d", k.CustomerID, k.SubcentralID)
}

// Fields returns structured logging fields for the key.
func (k SubcentralKey) Fields() map[string]any {
	return map[string]any{"customer_id": k.CustomerID, "subcentral_id": k.SubcentralID}
}

// Subcentral is a controllable heat-delivery node.
type Subcentral struct {
	SubcentralKey `yaml:",inline"`
	GridZone      int     `json:"grid_zone" yaml:"grid_zone"`
	Location      string  `json:"location" yaml:"location"`
	Latitude      float64 `json:"latitude" yaml:"latitude"`
	Longitude     float64 `json:"longitude" yaml:"longitude"`
	// TimestepSeconds is the native resolution of the subcentral's data.
	TimestepSeconds int `json:"timestep" yaml:"timestep"`
}

// Timestep returns the subcentral resolution as a duration.
func (s Subcentral) Timestep() time.Duration {
	return time.Duration(s.TimestepSeconds) * time.Second
}

// PeakWindow is a grid peak interval [Start, End).
type PeakWindow struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Contains reports whether ts falls inside the window.
func (w PeakWindow) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}
