package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTaskResult     = errors.New("invalid task result")
	ErrResultNotFound        = errors.New("result not found")
	ErrInvalidTaskDefinition = errors.New("invalid task definition")
)

// InvalidTaskResultError is raised when a task returns something that is not
// a TaskResult, or when a result cannot be serialized.
type InvalidTaskResultError struct {
	Task  string
	Type  string
	Cause error
}

func (e *InvalidTaskResultError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Type != "":
		return fmt.Sprintf("task %s returned invalid result of type %s, expected a map or a TaskResult", e.Task, e.Type)
	case e.Cause != nil && e.Task != "":
		return fmt.Sprintf("%s: task %s: %v", ErrInvalidTaskResult.Error(), e.Task, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", ErrInvalidTaskResult.Error(), e.Cause)
	default:
		return fmt.Sprintf("%s: task %s", ErrInvalidTaskResult.Error(), e.Task)
	}
}

// Is lets errors.Is match ErrInvalidTaskResult while Unwrap exposes the cause.
func (e *InvalidTaskResultError) Is(target error) bool { return target == ErrInvalidTaskResult }

func (e *InvalidTaskResultError) Unwrap() error { return e.Cause }

// LookupError reports a reference to a task or result that is not present in
// a PipelineResult.
type LookupError struct {
	Task string
	Kind ResultKind
	Name string
}

func (e *LookupError) Error() string {
	if e == nil {
		return ""
	}
	if e.Name == "" {
		return fmt.Sprintf("%s: no result for task %q", ErrResultNotFound.Error(), e.Task)
	}
	return fmt.Sprintf("%s: task %q has no %s named %q", ErrResultNotFound.Error(), e.Task, e.Kind, e.Name)
}

func (e *LookupError) Unwrap() error { return ErrResultNotFound }

// InvalidTaskDefinitionError reports a malformed task registration.
type InvalidTaskDefinitionError struct {
	Task string
	Msg  string
}

func (e *InvalidTaskDefinitionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Task == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidTaskDefinition.Error(), e.Msg)
	}
	return fmt.Sprintf("%s %q: %s", ErrInvalidTaskDefinition.Error(), e.Task, e.Msg)
}

func (e *InvalidTaskDefinitionError) Unwrap() error { return ErrInvalidTaskDefinition }

func invalidDefinitionf(task, format string, args ...any) error {
	return &InvalidTaskDefinitionError{Task: task, Msg: fmt.Sprintf(format, args...)}
}
