// Package monitoring reports failures of scheduling runs to an error tracker.
package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/power2u/flexheat/core/model"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

// NopMonitor discards everything.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the global monitor implementation.
func Init(m Monitor) {
	if m == nil {
		return
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

// Current returns the global monitor.
func Current() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	Current().CaptureException(err, tags)
}

// Recover captures panics in goroutines.
func Recover() {
	Current().Recover()
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	Current().Flush(d)
}

// SubcentralTags returns the tags identifying a subcentral run.
func SubcentralTags(key model.SubcentralKey, zone int, stage string) map[string]string {
	return map[string]string{
		"customer_id":   strconv.Itoa(key.CustomerID),
		"subcentral_id": strconv.Itoa(key.SubcentralID),
		"grid_zone":     strconv.Itoa(zone),
		"stage":         stage,
	}
}
