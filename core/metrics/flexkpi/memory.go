package flexkpi

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore stores records in memory for tests and single runs.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[time.Time]*Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[time.Time]*Record{}}
}

// Add accumulates r into the record of its subcentral and day.
func (s *MemoryStore) Add(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[r.Subcentral] == nil {
		s.data[r.Subcentral] = map[time.Time]*Record{}
	}
	d := Day(r.Date)
	rec := s.data[r.Subcentral][d]
	if rec == nil {
		rec = &Record{Subcentral: r.Subcentral, Date: d}
		s.data[r.Subcentral][d] = rec
	}
	rec.ReducedKWh += r.ReducedKWh
	rec.IncreasedKWh += r.IncreasedKWh
	return nil
}

// Query returns the days between start and end inclusive.
func (s *MemoryStore) Query(subcentral string, start, end time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start, end = Day(start), Day(end)
	var res []Record
	for d, r := range s.data[subcentral] {
		if d.Before(start) || d.After(end) {
			continue
		}
		res = append(res, *r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.Before(res[j].Date) })
	return res, nil
}
