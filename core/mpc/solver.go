package mpc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Status is the termination status of a solve.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusSingular   Status = "singular"
	StatusNumeric    Status = "numeric_error"
	StatusViolation  Status = "constraint_violation"
	StatusTimeout    Status = "timeout"
	StatusCanceled   Status = "canceled"
)

// Solution is the outcome of a solver run. X is only meaningful when Status
// is StatusOptimal.
type Solution struct {
	Status    Status
	X         []float64
	Objective float64
	Err       error
}

// Solver solves assembled programs.
type Solver interface {
	Solve(ctx context.Context, p *Program) Solution
}

// SimplexSolver solves programs with the gonum simplex implementation.
//
// The simplex runs on the program with its temperature and difference columns
// substituted, so only power and the comfort errors remain as columns.
// lp.Simplex cannot be interrupted: a run abandoned on timeout keeps its slot
// until it returns, and later solves wait for a free slot.
type SimplexSolver struct {
	// Tolerance is passed to lp.Simplex.
	Tolerance float64
	// FeasibilityTol bounds constraint residuals of the returned point.
	FeasibilityTol float64
	// Concurrency is the number of simplex runs allowed at once, one if unset.
	Concurrency int

	once sync.Once
	busy *semaphore.Weighted
}

// NewSimplexSolver returns a solver with the given simplex tolerance.
func NewSimplexSolver(tol float64) *SimplexSolver {
	if tol <= 0 {
		tol = 1e-7
	}
	return &SimplexSolver{Tolerance: tol, FeasibilityTol: 1e-6}
}

// simplex points to the function used to run the simplex method. It can be
// overridden in tests to simulate slow or failing solves.
var simplex = lp.Simplex

// Solve reduces p to standard form and runs the simplex method. The call
// returns early with StatusTimeout or StatusCanceled when ctx ends first.
func (s *SimplexSolver) Solve(ctx context.Context, p *Program) Solution {
	if err := ctx.Err(); err != nil {
		return contextSolution(err)
	}
	sf, err := reduce(p, s.FeasibilityTol)
	if err != nil {
		return Solution{Status: statusOf(err), Err: err}
	}

	var res Solution
	if sf.a == nil {
		res = Solution{Status: StatusOptimal, X: sf.expand(p, nil)}
	} else {
		s.once.Do(func() { s.busy = semaphore.NewWeighted(int64(max(s.Concurrency, 1))) })
		if err := s.busy.Acquire(ctx, 1); err != nil {
			return contextSolution(err)
		}
		run := simplex
		done := make(chan Solution, 1)
		go func() {
			defer s.busy.Release(1)
			defer func() {
				if r := recover(); r != nil {
					done <- Solution{Status: StatusNumeric, Err: fmt.Errorf("simplex panic: %v", r)}
				}
			}()
			_, z, err := run(sf.c, sf.a, sf.b, s.Tolerance, nil)
			if err != nil {
				done <- Solution{Status: statusOf(err), Err: err}
				return
			}
			done <- Solution{Status: StatusOptimal, X: sf.expand(p, z)}
		}()
		select {
		case <-ctx.Done():
			return contextSolution(ctx.Err())
		case res = <-done:
		}
	}
	if res.Status != StatusOptimal {
		return res
	}
	if err := p.Violation(res.X, s.FeasibilityTol); err != nil {
		return Solution{Status: StatusViolation, Err: err}
	}
	res.Objective = p.Objective(res.X)
	return res
}

func statusOf(err error) Status {
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return StatusInfeasible
	case errors.Is(err, lp.ErrUnbounded):
		return StatusUnbounded
	case errors.Is(err, lp.ErrSingular):
		return StatusSingular
	default:
		return StatusNumeric
	}
}

func contextSolution(err error) Solution {
	if errors.Is(err, context.DeadlineExceeded) {
		return Solution{Status: StatusTimeout, Err: err}
	}
	return Solution{Status: StatusCanceled, Err: err}
}
