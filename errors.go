package outcome

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-outcome/exitcodes"
)

// RuntimeError means the run could not produce trustworthy outcomes: the
// input was unreadable, the event stream was malformed, or a reporter failed.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func (e *RuntimeError) ExitCode() int {
	return exitcodes.RuntimeErr
}

func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return errors.As(err, &runtimeErr)
}

// TestFailureError is returned when the replay succeeded but at least one
// scenario rolled up to failure, error or compromised. Message lists them.
type TestFailureError struct {
	Message string
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %s", e.Message)
}

func (e *TestFailureError) ExitCode() int {
	return exitcodes.TestFailure
}

func NewTestFailureError(message string) *TestFailureError {
	return &TestFailureError{Message: message}
}

func IsTestFailureError(err error) bool {
	var failure *TestFailureError
	return errors.As(err, &failure)
}
