package cli

import (
	"errors"
	"fmt"

	"pipeweaver/internal/definition"
	"pipeweaver/internal/pipeline"
)

const (
	ExitSuccess           = 0
	ExitGraphFailure      = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// ExitError carries the process exit code for an error returned by a
// command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func invalidInvocationf(format string, args ...any) error {
	return &ExitError{Code: ExitInvalidInvocation, Err: fmt.Errorf(format, args...)}
}

func configError(err error) error {
	return &ExitError{Code: ExitConfigError, Err: err}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code != 0 {
		return exitErr.Code
	}
	if pipeline.IsConfigurationError(err) || errors.Is(err, definition.ErrInvalidDefinition) {
		return ExitConfigError
	}
	return ExitInternalError
}
