// Package flexkpi aggregates dispatched flexibility per subcentral and day.
package flexkpi

import "time"

// Record aggregates dispatched energy for a subcentral and day. Reduced and
// increased energy are both positive quantities.
type Record struct {
	Subcentral   string
	Date         time.Time
	ReducedKWh   float64
	IncreasedKWh float64
}

// Income returns the flexibility income of the reduced energy at price.
func (r Record) Income(price float64) float64 {
	return r.ReducedKWh * price
}

// NetKWh returns increased minus reduced energy.
func (r Record) NetKWh() float64 {
	return r.IncreasedKWh - r.ReducedKWh
}

// FromPower splits the energy of a constant power over d into a record.
func FromPower(subcentral string, at time.Time, powerKW float64, d time.Duration) Record {
	rec := Record{Subcentral: subcentral, Date: at}
	kwh := powerKW * d.Hours()
	if kwh < 0 {
		rec.ReducedKWh = -kwh
	} else {
		rec.IncreasedKWh = kwh
	}
	return rec
}
