package planexec

import (
	"context"
	"fmt"

	"github.com/go-go-golems/planexec/pkg/inference/state"
	"github.com/pkg/errors"
)

// Phase is a state of the loop's state machine.
type Phase string

const (
	PhasePlanning    Phase = "PLANNING"
	PhaseDispatching Phase = "DISPATCHING"
	PhaseExecuting   Phase = "EXECUTING"
	PhaseTerminated  Phase = "TERMINATED"
)

var (
	// ErrPlanning marks a planner failure. Planning failures end the run.
	ErrPlanning = errors.New("planning failed")
	// ErrBudgetExceeded is returned when the engine keeps requesting tools
	// past the configured number of dispatch iterations.
	ErrBudgetExceeded = errors.New("iteration budget exceeded")
	// ErrDeadlineExceeded is returned when the run's wall-clock deadline passes.
	ErrDeadlineExceeded = errors.New("run deadline exceeded")
)

// RunError is returned by Loop.Run for every unrecovered failure. State holds a
// copy of what the run reached.
type RunError struct {
	RunID string
	Phase Phase
	Err   error
	State *state.State
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed while %s: %v", e.RunID, e.Phase, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Cause lets errors.Cause from github.com/pkg/errors reach the underlying failure.
func (e *RunError) Cause() error {
	return e.Err
}

// contextError maps a finished context to the loop's error vocabulary.
func contextError(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(ErrDeadlineExceeded, err.Error())
	default:
		return err
	}
}
