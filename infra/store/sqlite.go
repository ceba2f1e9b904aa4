// Package store persists schedules, plans, dispatch series and reports in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/power2u/flexheat/core/model"
	"github.com/power2u/flexheat/core/mpc"
	"github.com/power2u/flexheat/core/report"
	"github.com/power2u/flexheat/core/timeseries"
)

// Series kinds stored in the series table.
const (
	KindAggregatePlan      = "aggregate_plan"
	KindAggregateDispatch  = "aggregate_dispatch"
	KindAggregateReport    = "aggregate_report"
	KindSubcentralDispatch = "subcentral_dispatch"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS schedule (
        customer_id INTEGER,
        subcentral_id INTEGER,
        mode TEXT,
        ts INTEGER,
        step INTEGER,
        out_temp_forecast REAL,
        out_temp REAL,
        solar REAL,
        peak_hour REAL,
        power REAL,
        indoor_temperature REAL,
        baseline_power REAL,
        power_offset REAL,
        below_error REAL,
        above_error REAL,
        inflow_temp_offset REAL,
        new_inflow_temp REAL,
        dispatch REAL,
        objective REAL,
        PRIMARY KEY(customer_id, subcentral_id, mode, ts)
    );`,
	`CREATE TABLE IF NOT EXISTS series (
        kind TEXT,
        owner TEXT,
        ts INTEGER,
        step INTEGER,
        value REAL,
        PRIMARY KEY(kind, owner, ts)
    );`,
	`CREATE TABLE IF NOT EXISTS report (
        customer_id INTEGER,
        subcentral_id INTEGER,
        ts INTEGER,
        step INTEGER,
        measured_out_temp REAL,
        inflow_temp REAL,
        indoor_temperature REAL,
        heat_power REAL,
        baseline_power REAL,
        power_offset REAL,
        PRIMARY KEY(customer_id, subcentral_id, ts)
    );`,
}

// SQLiteStore persists scheduler results. Rows are keyed by their timestamp
// so writing a period twice replaces the earlier values.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection serialises writers of the fan-out
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			if cerr := db.Close(); cerr != nil {
				return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
			}
			return nil, err
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func zoneOwner(zone int) string { return "zone/" + strconv.Itoa(zone) }

func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// WriteSchedule stores every step of sc.
func (s *SQLiteStore) WriteSchedule(ctx context.Context, sub model.Subcentral, sc *mpc.Schedule) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO schedule (
            customer_id, subcentral_id, mode, ts, step, out_temp_forecast, out_temp, solar,
            peak_hour, power, indoor_temperature, baseline_power, power_offset, below_error,
            above_error, inflow_temp_offset, new_inflow_temp, dispatch, objective)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()
		for _, st := range sc.Steps {
			_, err := stmt.ExecContext(ctx,
				sub.CustomerID, sub.SubcentralID, sc.Mode, st.Timestamp.Unix(), int64(sc.Step/time.Second),
				nullable(st.OutTempForecast), nullable(st.OutTemp), nullable(st.Solar), st.PeakHour,
				st.Power, st.IndoorTemperature, st.BaselinePower, st.PowerOffset, st.BelowError,
				st.AboveError, nullable(st.InflowTempOffset), nullable(st.NewInflowTemp), st.Dispatch, sc.Objective)
			if err != nil {
				return fmt.Errorf("write schedule step %s: %w", st.Timestamp.Format(time.RFC3339), err)
			}
		}
		return nil
	})
}

// Schedule reads the stored schedule steps of key in [from, to).
func (s *SQLiteStore) Schedule(ctx context.Context, key model.SubcentralKey, mode mpc.Mode, from, to time.Time) (*mpc.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, step, out_temp_forecast, out_temp, solar, peak_hour,
        power, indoor_temperature, baseline_power, power_offset, below_error, above_error,
        inflow_temp_offset, new_inflow_temp, dispatch, objective
        FROM schedule WHERE customer_id = ? AND subcentral_id = ? AND mode = ? AND ts >= ? AND ts < ?
        ORDER BY ts`,
		key.CustomerID, key.SubcentralID, mode.String(), from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	sc := &mpc.Schedule{Subcentral: key.String(), Mode: mode.String()}
	for rows.Next() {
		var (
			ts, step                                int64
			forecast, out, solar, inflowOff, inflow sql.NullFloat64
			st                                      mpc.Step
		)
		if err := rows.Scan(&ts, &step, &forecast, &out, &solar, &st.PeakHour, &st.Power,
			&st.IndoorTemperature, &st.BaselinePower, &st.PowerOffset, &st.BelowError, &st.AboveError,
			&inflowOff, &inflow, &st.Dispatch, &sc.Objective); err != nil {
			return nil, err
		}
		st.Timestamp = time.Unix(ts, 0).UTC()
		st.OutTempForecast = orNaN(forecast)
		st.OutTemp = orNaN(out)
		st.Solar = orNaN(solar)
		st.InflowTempOffset = orNaN(inflowOff)
		st.NewInflowTemp = orNaN(inflow)
		if len(sc.Steps) == 0 {
			sc.Start = st.Timestamp
			sc.Step = time.Duration(step) * time.Second
		}
		sc.Steps = append(sc.Steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sc, nil
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// SubcentralPlan returns the stored Plan power offsets of key in [from, to).
func (s *SQLiteStore) SubcentralPlan(ctx context.Context, key model.SubcentralKey, from, to time.Time) (timeseries.Series, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, step, power_offset FROM schedule
        WHERE customer_id = ? AND subcentral_id = ? AND mode = ? AND ts >= ? AND ts < ? ORDER BY ts`,
		key.CustomerID, key.SubcentralID, mpc.Plan.String(), from.Unix(), to.Unix())
	if err != nil {
		return timeseries.Series{}, err
	}
	return scanSeries(rows)
}

// WriteSeries stores a series of kind for owner.
func (s *SQLiteStore) WriteSeries(ctx context.Context, kind, owner string, ser timeseries.Series) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO series (kind, owner, ts, step, value)
            VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()
		step := int64(ser.Step / time.Second)
		for i, v := range ser.Values {
			if _, err := stmt.ExecContext(ctx, kind, owner, ser.Index(i).Unix(), step, nullable(v)); err != nil {
				return fmt.Errorf("write %s for %s: %w", kind, owner, err)
			}
		}
		return nil
	})
}

// Series reads the stored series of kind for owner in [from, to). Steps
// without a row are NaN.
func (s *SQLiteStore) Series(ctx context.Context, kind, owner string, from, to time.Time) (timeseries.Series, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, step, value FROM series
        WHERE kind = ? AND owner = ? AND ts >= ? AND ts < ? ORDER BY ts`,
		kind, owner, from.Unix(), to.Unix())
	if err != nil {
		return timeseries.Series{}, err
	}
	return scanSeries(rows)
}

func scanSeries(rows *sql.Rows) (timeseries.Series, error) {
	defer func() { _ = rows.Close() }()
	type point struct {
		ts, step int64
		v        float64
	}
	var pts []point
	for rows.Next() {
		var (
			p point
			v sql.NullFloat64
		)
		if err := rows.Scan(&p.ts, &p.step, &v); err != nil {
			return timeseries.Series{}, err
		}
		p.v = orNaN(v)
		pts = append(pts, p)
	}
	if err := rows.Err(); err != nil {
		return timeseries.Series{}, err
	}
	if len(pts) == 0 || pts[0].step <= 0 {
		return timeseries.Series{}, nil
	}
	first, last := pts[0], pts[len(pts)-1]
	n := int((last.ts-first.ts)/first.step) + 1
	ser := timeseries.New(time.Unix(first.ts, 0).UTC(), time.Duration(first.step)*time.Second, n)
	for i := range ser.Values {
		ser.Values[i] = math.NaN()
	}
	for _, p := range pts {
		if off := p.ts - first.ts; off%first.step == 0 {
			ser.Values[off/first.step] = p.v
		}
	}
	return ser, nil
}

// WriteAggregatePlan stores the aggregate plan of zone.
func (s *SQLiteStore) WriteAggregatePlan(ctx context.Context, zone int, plan timeseries.Series) error {
	return s.WriteSeries(ctx, KindAggregatePlan, zoneOwner(zone), plan)
}

// AggregatePlan reads the aggregate plan of zone.
func (s *SQLiteStore) AggregatePlan(ctx context.Context, zone int, from, to time.Time) (timeseries.Series, error) {
	return s.Series(ctx, KindAggregatePlan, zoneOwner(zone), from, to)
}

// WriteAggregateDispatch stores the dispatch order of zone.
func (s *SQLiteStore) WriteAggregateDispatch(ctx context.Context, zone int, d timeseries.Series) error {
	return s.WriteSeries(ctx, KindAggregateDispatch, zoneOwner(zone), d)
}

// AggregateDispatch reads the dispatch order of zone.
func (s *SQLiteStore) AggregateDispatch(ctx context.Context, zone int, from, to time.Time) (timeseries.Series, error) {
	return s.Series(ctx, KindAggregateDispatch, zoneOwner(zone), from, to)
}

// WriteSubcentralDispatch stores the dispatch share of sub.
func (s *SQLiteStore) WriteSubcentralDispatch(ctx context.Context, sub model.Subcentral, d timeseries.Series) error {
	return s.WriteSeries(ctx, KindSubcentralDispatch, sub.String(), d)
}

// SubcentralDispatch reads the dispatch share of key.
func (s *SQLiteStore) SubcentralDispatch(ctx context.Context, key model.SubcentralKey, from, to time.Time) (timeseries.Series, error) {
	return s.Series(ctx, KindSubcentralDispatch, key.String(), from, to)
}

// WriteAggregateReport stores the summed report offsets of zone.
func (s *SQLiteStore) WriteAggregateReport(ctx context.Context, zone int, offsets timeseries.Series) error {
	return s.WriteSeries(ctx, KindAggregateReport, zoneOwner(zone), offsets)
}

// WriteReport stores every row of r.
func (s *SQLiteStore) WriteReport(ctx context.Context, r *report.SubcentralReport) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO report (
            customer_id, subcentral_id, ts, step, measured_out_temp, inflow_temp,
            indoor_temperature, heat_power, baseline_power, power_offset)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()
		step := int64(r.Step / time.Second)
		for _, row := range r.Rows {
			_, err := stmt.ExecContext(ctx, r.Subcentral.CustomerID, r.Subcentral.SubcentralID,
				row.Timestamp.Unix(), step, row.MeasuredOutTemp, row.InflowTemp,
				nullable(row.IndoorTemperature), row.HeatPower, row.BaselinePower, row.PowerOffset)
			if err != nil {
				return fmt.Errorf("write report row %s: %w", row.Timestamp.Format(time.RFC3339), err)
			}
		}
		return nil
	})
}

// ReportOffsets reads the stored report power offsets of key in [from, to).
func (s *SQLiteStore) ReportOffsets(ctx context.Context, key model.SubcentralKey, from, to time.Time) (timeseries.Series, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, step, power_offset FROM report
        WHERE customer_id = ? AND subcentral_id = ? AND ts >= ? AND ts < ? ORDER BY ts`,
		key.CustomerID, key.SubcentralID, from.Unix(), to.Unix())
	if err != nil {
		return timeseries.Series{}, err
	}
	return scanSeries(rows)
}
