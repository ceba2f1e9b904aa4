// Package export writes stored schedules in JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/power2u/flexheat/core/mpc"
)

var csvHeader = []string{
	"timestamp", "forecast_outside_temp", "out_temp_with_deviation", "solar", "peak_hour",
	"dispatch", "power", "indoor_temperature", "baseline_power", "power_offset",
	"below_error", "above_error", "inflow_temp_offset", "new_inflow_temp",
}

// WriteJSON writes the schedule to w in JSON format. NaN values are written
// as null.
func WriteJSON(w io.Writer, s *mpc.Schedule) error {
	type step struct {
		Timestamp         time.Time `json:"timestamp"`
		OutTempForecast   *float64  `json:"forecast_outside_temp"`
		OutTemp           *float64  `json:"out_temp_with_deviation"`
		Solar             *float64  `json:"solar"`
		PeakHour          float64   `json:"peak_hour"`
		Dispatch          float64   `json:"dispatch"`
		Power             float64   `json:"power"`
		IndoorTemperature *float64  `json:"indoor_temperature"`
		BaselinePower     float64   `json:"baseline_power"`
		PowerOffset       float64   `json:"power_offset"`
		BelowError        float64   `json:"below_error"`
		AboveError        float64   `json:"above_error"`
		InflowTempOffset  *float64  `json:"inflow_temp_offset"`
		NewInflowTemp     *float64  `json:"new_inflow_temp"`
	}
	out := struct {
		Subcentral string  `json:"subcentral"`
		Mode       string  `json:"mode"`
		Objective  float64 `json:"objective"`
		Steps      []step  `json:"steps"`
	}{Subcentral: s.Subcentral, Mode: s.Mode, Objective: s.Objective, Steps: make([]step, len(s.Steps))}
	for i, st := range s.Steps {
		out.Steps[i] = step{
			Timestamp:         st.Timestamp,
			OutTempForecast:   ptr(st.OutTempForecast),
			OutTemp:           ptr(st.OutTemp),
			Solar:             ptr(st.Solar),
			PeakHour:          st.PeakHour,
			Dispatch:          st.Dispatch,
			Power:             st.Power,
			IndoorTemperature: ptr(st.IndoorTemperature),
			BaselinePower:     st.BaselinePower,
			PowerOffset:       st.PowerOffset,
			BelowError:        st.BelowError,
			AboveError:        st.AboveError,
			InflowTempOffset:  ptr(st.InflowTempOffset),
			NewInflowTemp:     ptr(st.NewInflowTemp),
		}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func ptr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// WriteCSV writes one row per schedule step. NaN values are left empty.
func WriteCSV(w io.Writer, s *mpc.Schedule) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, st := range s.Steps {
		rec := []string{
			st.Timestamp.Format(time.RFC3339),
			format(st.OutTempForecast),
			format(st.OutTemp),
			format(st.Solar),
			format(st.PeakHour),
			format(st.Dispatch),
			format(st.Power),
			format(st.IndoorTemperature),
			format(st.BaselinePower),
			format(st.PowerOffset),
			format(st.BelowError),
			format(st.AboveError),
			format(st.InflowTempOffset),
			format(st.NewInflowTemp),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func format(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
