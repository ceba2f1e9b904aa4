package mpc

import (
	"errors"
	"fmt"
)

var (
	// ErrInfeasible is matched by every *InfeasibleError.
	ErrInfeasible = errors.New("mpc: optimization infeasible")
	// ErrInput reports frames that do not cover the horizon.
	ErrInput = errors.New("mpc: invalid input frame")
)

// InfeasibleError is returned when the solver does not reach an optimal
// solution. It identifies the subcentral and the solver status.
type InfeasibleError struct {
	Subcentral string
	Status     Status
	Err        error
}

func (e *InfeasibleError) Error() string {
	msg := fmt.Sprintf("mpc: subcentral %s: solve ended with status %s", e.Subcentral, e.Status)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrInfeasible) true.
func (e *InfeasibleError) Is(target error) bool { return target == ErrInfeasible }

func (e *InfeasibleError) Unwrap() error { return e.Err }
