// Package timeseries provides regular-grid series used for forecasts, plans
// and dispatch orders.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// ErrGridMismatch is returned when series that must share a grid do not.
var ErrGridMismatch = errors.New("timeseries: grid mismatch")

// Series holds one value per step starting at Start. Values[i] belongs to the
// interval [Start+i*Step, Start+(i+1)*Step).
type Series struct {
	Start  time.Time     `json:"start"`
	Step   time.Duration `json:"step"`
	Values []float64     `json:"values"`
}

// New returns a zero-filled series with n points.
func New(start time.Time, step time.Duration, n int) Series {
	return Series{Start: start, Step: step, Values: make([]float64, n)}
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Values) }

// Index returns the timestamp of point i.
func (s Series) Index(i int) time.Time { return s.Start.Add(time.Duration(i) * s.Step) }

// End returns the exclusive end of the last interval.
func (s Series) End() time.Time { return s.Index(len(s.Values)) }

// Pos returns the index of the interval containing ts and whether it lies
// within the series.
func (s Series) Pos(ts time.Time) (int, bool) {
	if s.Step <= 0 || ts.Before(s.Start) || !ts.Before(s.End()) {
		return 0, false
	}
	return int(ts.Sub(s.Start) / s.Step), true
}

// At returns the value of the interval containing ts.
func (s Series) At(ts time.Time) (float64, bool) {
	i, ok := s.Pos(ts)
	if !ok {
		return 0, false
	}
	return s.Values[i], true
}

// Clone returns a deep copy.
func (s Series) Clone() Series {
	return Series{Start: s.Start, Step: s.Step, Values: append([]float64(nil), s.Values...)}
}

// Resample converts the series to a new step. Each target bin takes the mean
// of the source points starting inside it. Bins without such a point, which
// happens when upsampling, take the value of the source interval covering the
// bin start.
func (s Series) Resample(step time.Duration) Series {
	if step == s.Step || step <= 0 || len(s.Values) == 0 {
		return s.Clone()
	}
	start := s.Start.Truncate(step)
	n := int(math.Ceil(float64(s.End().Sub(start)) / float64(step)))
	out := New(start, step, n)
	sums := make([]float64, n)
	counts := make([]int, n)
	for i, v := range s.Values {
		if math.IsNaN(v) {
			continue
		}
		j := int(s.Index(i).Sub(start) / step)
		sums[j] += v
		counts[j]++
	}
	for j := range out.Values {
		if counts[j] > 0 {
			out.Values[j] = sums[j] / float64(counts[j])
			continue
		}
		if v, ok := s.At(out.Index(j)); ok {
			out.Values[j] = v
		} else {
			out.Values[j] = math.NaN()
		}
	}
	return out
}

// Align reindexes the series onto the grid (start, step, n). Points outside
// the series or NaN become 0. The series is resampled first when its step
// differs.
func (s Series) Align(start time.Time, step time.Duration, n int) Series {
	src := s
	if s.Step != step {
		src = s.Resample(step)
	}
	out := New(start, step, n)
	for i := range out.Values {
		if v, ok := src.At(out.Index(i)); ok && !math.IsNaN(v) {
			out.Values[i] = v
		}
	}
	return out
}

// SameGrid reports whether both series share start, step and length.
func (s Series) SameGrid(o Series) bool {
	return s.Start.Equal(o.Start) && s.Step == o.Step && len(s.Values) == len(o.Values)
}

// Sum adds series sharing the same grid element-wise.
func Sum(first Series, rest ...Series) (Series, error) {
	out := first.Clone()
	for _, s := range rest {
		if !out.SameGrid(s) {
			return Series{}, fmt.Errorf("%w: %s/%s/%d vs %s/%s/%d", ErrGridMismatch,
				out.Start, out.Step, out.Len(), s.Start, s.Step, s.Len())
		}
		floats.Add(out.Values, s.Values)
	}
	return out, nil
}

// Diff returns first differences; the first element is NaN.
func Diff(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	out[0] = math.NaN()
	for i := 1; i < len(values); i++ {
		out[i] = values[i] - values[i-1]
	}
	return out
}

// Interpolate fills NaN gaps linearly in place. Leading and trailing gaps
// take the nearest known value. A slice without any known value is left
// untouched and false is returned.
func Interpolate(values []float64) bool {
	prev := -1
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		switch {
		case prev == -1:
			for j := 0; j < i; j++ {
				values[j] = v
			}
		case i-prev > 1:
			for j := prev + 1; j < i; j++ {
				frac := float64(j-prev) / float64(i-prev)
				values[j] = values[prev] + frac*(v-values[prev])
			}
		}
		prev = i
	}
	if prev == -1 {
		return false
	}
	for j := prev + 1; j < len(values); j++ {
		values[j] = values[prev]
	}
	return true
}
