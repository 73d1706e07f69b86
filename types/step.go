package types

import (
	"time"
)

// TestStep is one recorded step of a test, or a synthesized wrapper around a
// whole invocation when parameterized outcomes are aggregated
type TestStep struct {
	Description string
	Result      Result
	Failure     *FailureCause
	StartTime   time.Time
	Children    []*TestStep

	// duration is the explicitly recorded duration; zero means "derive from children"
	duration time.Duration
}

// NewTestStep creates a step that has not produced a result yet
func NewTestStep(description string) *TestStep {
	return &TestStep{
		Description: description,
		Result:      ResultSuccess,
		Children:    make([]*TestStep, 0),
	}
}

// WithResult sets the step result and returns the step for chaining
func (s *TestStep) WithResult(result Result) *TestStep {
	s.Result = result
	return s
}

// WithDuration sets an explicit duration and returns the step for chaining
func (s *TestStep) WithDuration(d time.Duration) *TestStep {
	s.duration = d
	return s
}

// SetDuration records the explicit duration of the step
func (s *TestStep) SetDuration(d time.Duration) {
	s.duration = d
}

// Duration returns the recorded duration, or the sum of the children's
// durations when none was recorded
func (s *TestStep) Duration() time.Duration {
	if s.duration > 0 {
		return s.duration
	}
	var total time.Duration
	for _, child := range s.Children {
		total += child.Duration()
	}
	return total
}

// AddChild appends a nested step. The child keeps its own result.
func (s *TestStep) AddChild(child *TestStep) {
	s.Children = append(s.Children, child)
}

// FailedWith marks the step as failed with the given cause
func (s *TestStep) FailedWith(cause *FailureCause) {
	if cause == nil {
		return
	}
	s.Failure = cause
	s.Result = cause.Result()
}

// HasChildren reports whether the step has nested steps
func (s *TestStep) HasChildren() bool {
	return len(s.Children) > 0
}

// Clone returns a deep copy of the step and its children
func (s *TestStep) Clone() *TestStep {
	if s == nil {
		return nil
	}
	c := *s
	if s.Failure != nil {
		failure := *s.Failure
		c.Failure = &failure
	}
	c.Children = make([]*TestStep, 0, len(s.Children))
	for _, child := range s.Children {
		c.Children = append(c.Children, child.Clone())
	}
	return &c
}

// Flatten returns the step and all its descendants in depth-first order
func (s *TestStep) Flatten() []*TestStep {
	steps := []*TestStep{s}
	for _, child := range s.Children {
		steps = append(steps, child.Flatten()...)
	}
	return steps
}
