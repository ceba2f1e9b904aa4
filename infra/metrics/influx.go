package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/power2u/flexheat/core/metrics"
	"github.com/power2u/flexheat/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes solves, schedules and dispatch series to an InfluxDB
// instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordSolve writes one mpc_solve point.
func (s *InfluxSink) RecordSolve(rec coremetrics.SolveRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("mpc_solve").
		AddTag("customer_id", strconv.Itoa(rec.Subcentral.CustomerID)).
		AddTag("subcentral_id", strconv.Itoa(rec.Subcentral.SubcentralID)).
		AddTag("grid_zone", strconv.Itoa(rec.GridZone)).
		AddTag("mode", rec.Mode).
		AddTag("status", rec.Status).
		AddField("objective", round3(rec.Objective)).
		AddField("duration_ms", round3(rec.Duration.Seconds()*1000)).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSchedule writes one schedule_point per step of the schedule.
func (s *InfluxSink) RecordSchedule(rec coremetrics.ScheduleRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(rec.Points))
	for _, sp := range rec.Points {
		p := write.NewPointWithMeasurement("schedule_point").
			AddTag("customer_id", strconv.Itoa(rec.Subcentral.CustomerID)).
			AddTag("subcentral_id", strconv.Itoa(rec.Subcentral.SubcentralID)).
			AddTag("mode", rec.Mode).
			AddField("power_kw", round3(sp.Power)).
			AddField("baseline_power_kw", round3(sp.BaselinePower)).
			AddField("power_offset_kw", round3(sp.PowerOffset)).
			AddField("indoor_temperature", round3(sp.IndoorTemperature)).
			AddField("inflow_temp_offset", round3(sp.InflowTempOffset)).
			AddField("peak_hour", sp.PeakHour).
			SetTime(sp.Time)
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordAllocation writes one dispatch_allocation point per step.
func (s *InfluxSink) RecordAllocation(rec coremetrics.AllocationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(rec.Points))
	for _, dp := range rec.Points {
		p := write.NewPointWithMeasurement("dispatch_allocation").
			AddTag("customer_id", strconv.Itoa(rec.Subcentral.CustomerID)).
			AddTag("subcentral_id", strconv.Itoa(rec.Subcentral.SubcentralID)).
			AddTag("grid_zone", strconv.Itoa(rec.GridZone)).
			AddField("power_kw", round3(dp.Power)).
			SetTime(dp.Time)
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordPublish writes the outcome of a dispatch publication.
func (s *InfluxSink) RecordPublish(rec coremetrics.PublishRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_published").
		AddTag("customer_id", strconv.Itoa(rec.Subcentral.CustomerID)).
		AddTag("subcentral_id", strconv.Itoa(rec.Subcentral.SubcentralID)).
		AddField("points", rec.Points).
		AddField("errors", rec.Error).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
