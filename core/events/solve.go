package events

import (
	"time"

	"github.com/power2u/flexheat/core/model"
	"github.com/power2u/flexheat/core/mpc"
)

// SolveEvent is published after each Plan or Execution solve. Schedule is nil
// when the solve failed.
type SolveEvent struct {
	Subcentral model.SubcentralKey
	GridZone   int
	Mode       string
	Status     string
	Objective  float64
	Duration   time.Duration
	Schedule   *mpc.Schedule
	Err        error
}

// Succeeded reports whether the solve produced a schedule.
func (e SolveEvent) Succeeded() bool { return e.Err == nil && e.Schedule != nil }
