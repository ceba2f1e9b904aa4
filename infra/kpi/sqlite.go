// Package kpi persists daily flexibility KPIs.
package kpi

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/power2u/flexheat/core/metrics/flexkpi"
)

// SQLiteStore persists KPI records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS flex_kpi (
        subcentral TEXT,
        day INTEGER,
        reduced REAL,
        increased REAL,
        PRIMARY KEY(subcentral, day)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Add inserts or accumulates the KPI record of its day.
func (s *SQLiteStore) Add(r flexkpi.Record) error {
	d := flexkpi.Day(r.Date)
	_, err := s.db.Exec(`INSERT INTO flex_kpi (subcentral, day, reduced, increased)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(subcentral, day) DO UPDATE SET
            reduced = reduced + excluded.reduced,
            increased = increased + excluded.increased`,
		r.Subcentral, d.Unix(), r.ReducedKWh, r.IncreasedKWh)
	return err
}

// Query returns records in the range [start,end].
func (s *SQLiteStore) Query(subcentral string, start, end time.Time) ([]flexkpi.Record, error) {
	start = flexkpi.Day(start)
	end = flexkpi.Day(end)
	rows, err := s.db.Query(`SELECT subcentral, day, reduced, increased
        FROM flex_kpi WHERE subcentral = ? AND day >= ? AND day <= ? ORDER BY day`,
		subcentral, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []flexkpi.Record
	for rows.Next() {
		var sub string
		var ts int64
		var red, inc float64
		if err := rows.Scan(&sub, &ts, &red, &inc); err != nil {
			return nil, err
		}
		res = append(res, flexkpi.Record{
			Subcentral:   sub,
			Date:         time.Unix(ts, 0).UTC(),
			ReducedKWh:   red,
			IncreasedKWh: inc,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
