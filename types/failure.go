package types

import (
	"errors"
	"fmt"
)

// AssertionError is raised when a test expectation does not hold.
// Causes of this type are reported as failures rather than errors.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return e.Message
}

// NewAssertionError creates a new AssertionError
func NewAssertionError(format string, args ...any) *AssertionError {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// CompromisedError marks a test that could not be trusted because something
// outside the system under test broke (an unavailable dependency, bad fixture data).
type CompromisedError struct {
	Err error
}

func (e *CompromisedError) Error() string {
	return fmt.Sprintf("test compromised: %v", e.Err)
}

func (e *CompromisedError) Unwrap() error {
	return e.Err
}

// ResultForError classifies an error into the result it should produce
func ResultForError(err error) Result {
	if err == nil {
		return ResultSuccess
	}
	var compromised *CompromisedError
	if errors.As(err, &compromised) {
		return ResultCompromised
	}
	var assertion *AssertionError
	if errors.As(err, &assertion) {
		return ResultFailure
	}
	return ResultError
}

const (
	CauseTypeAssertion   = "assertion"
	CauseTypeCompromised = "compromised"
	CauseTypeError       = "error"
)

// FailureCause is the serialisable form of the error that made a test or step fail
type FailureCause struct {
	Type    string `yaml:"type" json:"type"`
	Message string `yaml:"message" json:"message"`
}

// NewFailureCause captures err as a FailureCause. Returns nil for a nil error.
func NewFailureCause(err error) *FailureCause {
	if err == nil {
		return nil
	}
	switch ResultForError(err) {
	case ResultFailure:
		return &FailureCause{Type: CauseTypeAssertion, Message: err.Error()}
	case ResultCompromised:
		var compromised *CompromisedError
		errors.As(err, &compromised)
		msg := err.Error()
		if compromised.Err != nil {
			msg = compromised.Err.Error()
		}
		return &FailureCause{Type: CauseTypeCompromised, Message: msg}
	default:
		return &FailureCause{Type: CauseTypeError, Message: err.Error()}
	}
}

// Err rebuilds an error of the original kind from the cause
func (c *FailureCause) Err() error {
	if c == nil {
		return nil
	}
	switch c.Type {
	case CauseTypeAssertion:
		return &AssertionError{Message: c.Message}
	case CauseTypeCompromised:
		return &CompromisedError{Err: errors.New(c.Message)}
	default:
		return errors.New(c.Message)
	}
}

// Result returns the result this cause produces
func (c *FailureCause) Result() Result {
	if c == nil {
		return ResultSuccess
	}
	return ResultForError(c.Err())
}

func (c *FailureCause) String() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", c.Type, c.Message)
}
