package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	core "github.com/power2u/flexheat/core/metrics"
	"github.com/power2u/flexheat/core/metrics/flexkpi"
)

// KPISink accumulates allocated dispatch into daily flexibility KPIs.
type KPISink struct {
	core.NopSink

	store   flexkpi.Store
	price   float64
	reduced *prometheus.GaugeVec
	income  *prometheus.GaugeVec
	net     *prometheus.GaugeVec
}

// NewKPISink creates a sink with Prometheus gauges registered on reg.
func NewKPISink(store flexkpi.Store, price float64, reg prometheus.Registerer) (*KPISink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reduced := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "subcentral_reduced_energy_kwh",
		Help: "Daily dispatched heat reduction per subcentral",
	}, []string{"subcentral", "grid_zone", "day"})
	income := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "subcentral_flexibility_income",
		Help: "Daily flexibility income per subcentral",
	}, []string{"subcentral", "grid_zone", "day"})
	net := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "subcentral_net_dispatch_kwh",
		Help: "Daily increased minus reduced energy per subcentral",
	}, []string{"subcentral", "grid_zone", "day"})
	var err error
	if reduced, err = register(reg, reduced); err != nil {
		return nil, err
	}
	if income, err = register(reg, income); err != nil {
		return nil, err
	}
	if net, err = register(reg, net); err != nil {
		return nil, err
	}
	return &KPISink{store: store, price: price, reduced: reduced, income: income, net: net}, nil
}

// RecordAllocation adds the allocated energy to the daily records and
// refreshes the gauges of the touched days.
func (s *KPISink) RecordAllocation(rec core.AllocationRecord) error {
	sub := rec.Subcentral.String()
	zone := strconv.Itoa(rec.GridZone)
	for _, p := range rec.Points {
		if err := s.store.Add(flexkpi.FromPower(sub, p.Time, p.Power, rec.Step)); err != nil {
			return err
		}
	}
	if len(rec.Points) == 0 {
		return nil
	}
	records, err := s.store.Query(sub, rec.Points[0].Time, rec.Points[len(rec.Points)-1].Time)
	if err != nil {
		return err
	}
	for _, r := range records {
		day := flexkpi.Day(r.Date).Format("2006-01-02")
		s.reduced.WithLabelValues(sub, zone, day).Set(r.ReducedKWh)
		s.income.WithLabelValues(sub, zone, day).Set(r.Income(s.price))
		s.net.WithLabelValues(sub, zone, day).Set(r.NetKWh())
	}
	return nil
}
