package pipeline

import (
	"context"
	"errors"
	"fmt"

	"pipeweaver/internal/core"
	"pipeweaver/internal/dag"
	"pipeweaver/internal/state"
)

// ErrUnknownTask is returned when a run option names a task that is not
// part of the pipeline.
var ErrUnknownTask = errors.New("unknown task")

// ArgumentError reports a parameter that could not be bound. The run is
// aborted; it is never recorded as a task failure.
type ArgumentError struct {
	Task  string
	Param string
	Err   error
}

func (e *ArgumentError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("task %s: bind parameter %q: %v", e.Task, e.Param, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// Classify maps an error that aborted a run to the failure class and the
// stable error code written to the run record.
func Classify(err error) (state.FailureClass, string) {
	var (
		cycle *dag.CyclicDependencyError
		arg   *ArgumentError
	)
	switch {
	case errors.As(err, &cycle):
		return state.FailureClassConfiguration, "cyclic_dependency"
	case errors.Is(err, dag.ErrInvalidGraph):
		return state.FailureClassConfiguration, "invalid_graph"
	case errors.Is(err, core.ErrInvalidTaskDefinition):
		return state.FailureClassConfiguration, "invalid_task_definition"
	case errors.Is(err, ErrUnknownTask):
		return state.FailureClassConfiguration, "unknown_task"
	case errors.Is(err, core.ErrResultNotFound):
		return state.FailureClassConfiguration, "result_not_found"
	case errors.As(err, &arg):
		return state.FailureClassConfiguration, "invalid_argument"
	case errors.Is(err, core.ErrInvalidTaskResult):
		return state.FailureClassSerialization, "invalid_task_result"
	case errors.Is(err, state.ErrStoreLocked):
		return state.FailureClassSystem, "store_locked"
	case errors.Is(err, state.ErrCorruptState):
		return state.FailureClassSystem, "corrupt_state"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return state.FailureClassSystem, "canceled"
	default:
		return state.FailureClassSystem, "internal"
	}
}

// IsConfigurationError reports whether err is caused by the pipeline's
// definition or the run options rather than by the environment.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	class, _ := Classify(err)
	return class == state.FailureClassConfiguration
}
