// Package bundle loads the scheduler inputs from a YAML or JSON file: the
// subcentrals of each grid zone with their curves and fitted models, their
// measured and forecast history, grid peak windows and aggregate dispatch
// orders.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/power2u/flexheat/core/forecast"
	"github.com/power2u/flexheat/core/greybox"
	"github.com/power2u/flexheat/core/model"
	"github.com/power2u/flexheat/core/scheduler"
	"github.com/power2u/flexheat/core/timeseries"
)

// ErrUnknownSubcentral is returned for keys absent from the bundle.
var ErrUnknownSubcentral = errors.New("bundle: unknown subcentral")

// Entry is one subcentral of the bundle.
type Entry struct {
	scheduler.Setup `yaml:",inline"`
	History         forecast.Raw `json:"history" yaml:"history"`
}

// Zone holds the grid level inputs of a grid zone.
type Zone struct {
	GridZone int                `json:"grid_zone" yaml:"grid_zone"`
	Peaks    []model.PeakWindow `json:"peaks" yaml:"peaks"`
	Dispatch *timeseries.Series `json:"dispatch,omitempty" yaml:"dispatch,omitempty"`
}

// Bundle is the decoded input file.
type Bundle struct {
	Entries []Entry `json:"subcentrals" yaml:"subcentrals"`
	Zones   []Zone  `json:"zones" yaml:"zones"`
}

// Load reads the bundle at path. Subcentrals without lag configuration use
// lags, and those without a fitted model use greybox.DefaultModel.
func Load(path string, lags greybox.Config) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	return Parse(data, lags)
}

// Parse decodes a bundle. JSON documents are accepted as YAML.
func Parse(data []byte, lags greybox.Config) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	seen := make(map[model.SubcentralKey]bool, len(b.Entries))
	for i := range b.Entries {
		e := &b.Entries[i]
		key := e.Subcentral.SubcentralKey
		if seen[key] {
			return nil, fmt.Errorf("bundle: subcentral %s listed twice", key)
		}
		seen[key] = true
		if e.Subcentral.TimestepSeconds <= 0 {
			return nil, fmt.Errorf("bundle: subcentral %s: timestep must be > 0", key)
		}
		if e.Lags.InTempDiffLag == nil && e.Lags.OutTempDiffLag == nil && e.Lags.SolarDiffLag == nil {
			e.Lags = lags
		}
		if len(e.PlanModel.Coefficients) == 0 {
			e.PlanModel = greybox.DefaultModel()
		}
		if len(e.ExecutionModel.Coefficients) == 0 {
			e.ExecutionModel = greybox.DefaultModel()
		}
		if e.History.Step == 0 {
			e.History.Step = e.Subcentral.Timestep()
		}
	}
	return &b, nil
}

func (b *Bundle) entry(key model.SubcentralKey) (*Entry, error) {
	for i := range b.Entries {
		if b.Entries[i].Subcentral.SubcentralKey == key {
			return &b.Entries[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSubcentral, key)
}

func (b *Bundle) zone(id int) (Zone, bool) {
	for _, z := range b.Zones {
		if z.GridZone == id {
			return z, true
		}
	}
	return Zone{}, false
}

// Subcentrals returns the setups of the subcentrals in zone.
func (b *Bundle) Subcentrals(_ context.Context, zone int) ([]scheduler.Setup, error) {
	var out []scheduler.Setup
	for _, e := range b.Entries {
		if e.Subcentral.GridZone == zone {
			out = append(out, e.Setup)
		}
	}
	return out, nil
}

// History returns n rows of key starting at from. Rows outside the stored
// history are NaN.
func (b *Bundle) History(_ context.Context, key model.SubcentralKey, from time.Time, step time.Duration, n int) (forecast.Raw, error) {
	e, err := b.entry(key)
	if err != nil {
		return forecast.Raw{}, err
	}
	h := e.History
	if h.Step != step {
		return forecast.Raw{}, fmt.Errorf("%w: history of %s has step %s, want %s", forecast.ErrMissingData, key, h.Step, step)
	}
	off := from.Sub(h.Start)
	if off%step != 0 {
		return forecast.Raw{}, fmt.Errorf("%w: %s is not on the history grid of %s", forecast.ErrMissingData, from, key)
	}
	return h.Slice(int(off/step), n), nil
}

// PeakWindows returns the peak windows of zone overlapping [from, to).
func (b *Bundle) PeakWindows(_ context.Context, zone int, from, to time.Time) ([]model.PeakWindow, error) {
	z, ok := b.zone(zone)
	if !ok {
		return nil, nil
	}
	var out []model.PeakWindow
	for _, w := range z.Peaks {
		if w.Start.Before(to) && w.End.After(from) {
			out = append(out, w)
		}
	}
	return out, nil
}

// AggregateDispatch returns the dispatch order of zone, or false when the
// bundle carries none.
func (b *Bundle) AggregateDispatch(zone int) (timeseries.Series, bool) {
	z, ok := b.zone(zone)
	if !ok || z.Dispatch == nil {
		return timeseries.Series{}, false
	}
	return *z.Dispatch, true
}
