// Package recorder builds TestOutcomes from the notifications of an event bus.
//
// A StepRecorder moves between two states. TestStarted opens an outcome and
// moves it to Recording; TestFinished closes the outcome, publishes it and
// returns to Idle. Every notification received while Idle that needs an open
// outcome is logged and dropped.
package recorder

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/emirpasic/gods/stacks/arraystack"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-outcome/eventbus"
	"github.com/ethereum-optimism/infra/op-outcome/metrics"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// State is the recording state of a StepRecorder
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Clock provides the time used for start times and durations
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ErrInterrupted is the cause recorded on an outcome that was still open when
// the next test started
var ErrInterrupted = errors.New("test did not finish before the next test started")

// Option configures a StepRecorder
type Option func(*StepRecorder)

// WithClock sets the clock used to time tests and steps
func WithClock(clock Clock) Option {
	return func(r *StepRecorder) {
		r.clock = clock
	}
}

type openStep struct {
	step      *types.TestStep
	startedAt time.Time
	example   bool
}

// StepRecorder is an eventbus.StepListener that records one TestOutcome per
// test invocation
type StepRecorder struct {
	log   log.Logger
	clock Clock

	mu       sync.Mutex
	state    State
	suite    string
	current  *types.TestOutcome
	steps    *arraystack.Stack
	headers  []string
	outcomes []*types.TestOutcome
}

var _ eventbus.StepListener = (*StepRecorder)(nil)

// New creates an idle recorder
func New(logger log.Logger, opts ...Option) *StepRecorder {
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	r := &StepRecorder{
		log:      logger.New("component", "step-recorder"),
		clock:    systemClock{},
		steps:    arraystack.New(),
		outcomes: make([]*types.TestOutcome, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current recording state
func (r *StepRecorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// InFlight returns the name of the outcome being recorded, if any
func (r *StepRecorder) InFlight() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Recording {
		return "", false
	}
	return r.current.Name, true
}

// Outcomes returns the outcomes published so far, in completion order
func (r *StepRecorder) Outcomes() []*types.TestOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.TestOutcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

func (r *StepRecorder) SuiteStarted(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suite = name
	r.log.Debug("Suite started", "suite", name)
}

func (r *StepRecorder) SuiteFinished() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Debug("Suite finished", "suite", r.suite)
	r.suite = ""
}

// TestStarted opens an outcome for a "method%display" name. When the test
// case owner is empty the current suite is used.
func (r *StepRecorder) TestStarted(name string, owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Recording {
		r.log.Warn("Test started while another test is recording, aborting it",
			"previous", r.current.Name, "next", name)
		r.current.AbortedWith(types.NewFailureCause(ErrInterrupted))
		r.finish()
	}

	if owner == "" {
		owner = r.suite
	}
	method, display := types.ParseTestName(name)
	r.current = types.NewTestOutcome(method, owner)
	r.current.DisplayName = display
	r.current.StartTime = r.clock.Now()
	r.state = Recording
	r.log.Debug("Test started", "test", method, "owner", owner)
}

// TestFinished closes any open steps and publishes the outcome
func (r *StepRecorder) TestFinished() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording("test finished") {
		return
	}
	r.finish()
}

func (r *StepRecorder) TestFailed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording("test failed") {
		return
	}
	cause := types.NewFailureCause(err)
	if cause == nil {
		cause = types.NewFailureCause(types.NewAssertionError("test failed"))
	}
	r.failOpenSteps(cause)
	r.current.FailedWith(cause)
}

func (r *StepRecorder) TestAborted(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording("test aborted") {
		return
	}
	for _, open := range r.openSteps() {
		if !open.step.Result.IsUnsuccessful() {
			open.step.Result = types.ResultAborted
		}
	}
	r.current.AbortedWith(types.NewFailureCause(err))
}

func (r *StepRecorder) TestIgnored() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording("test ignored") {
		return
	}
	r.current.SetResult(types.ResultIgnored)
}

func (r *StepRecorder) TestSkipped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording("test skipped") {
		return
	}
	r.current.SetResult(types.ResultSkipped)
}

func (r *StepRecorder) TestMarkedManual() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording("test marked manual") {
		return
	}
	r.current.Manual = true
}

func (r *StepRecorder) TestQualified(qualifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording("test qualified") {
		return
	}
	r.current.Qualifier = qualifier
}

func (r *StepRecorder) StepStarted(description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording("step started") {
		return
	}
	r.push(types.NewTestStep(description), false)
}

func (r *StepRecorder) StepFinished() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording("step finished") {
		return
	}
	if r.steps.Empty() {
		r.log.Warn("Step finished with no open step", "test", r.current.Name)
		return
	}
	r.pop()
}

// StepFailed marks the current step and all its open ancestors as failed.
// With no open step the failure is recorded on the outcome.
func (r *StepRecorder) StepFailed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording("step failed") {
		return
	}
	cause := types.NewFailureCause(err)
	if cause == nil {
		cause = types.NewFailureCause(types.NewAssertionError("step failed"))
	}
	if r.steps.Empty() {
		r.current.FailedWith(cause)
		return
	}
	r.failOpenSteps(cause)
}

// UseExamplesFrom sets the headers used to describe the rows of the
// following examples
func (r *StepRecorder) UseExamplesFrom(table *types.DataTable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if table == nil {
		r.headers = nil
		return
	}
	r.headers = append([]string(nil), table.Headers...)
}

// ExampleStarted adds the row to the outcome's data table and opens a step
// titled "[n] {header: value, ...}"
func (r *StepRecorder) ExampleStarted(row types.DataTableRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording("example started") {
		return
	}
	r.current.AddRow(r.headers, row)
	table := r.current.DataTable
	description := fmt.Sprintf("[%d] %s", table.Size(), table.DescribeRow(row))
	r.push(types.NewTestStep(description), true)
}

// ExampleFinished closes the example step if it is still open
func (r *StepRecorder) ExampleFinished() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Recording {
		return
	}
	top, ok := r.steps.Peek()
	if !ok || !top.(*openStep).example {
		return
	}
	r.pop()
}

// Reset drops the in-flight outcome. Published outcomes are kept.
func (r *StepRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Recording {
		r.log.Warn("Dropping unfinished test", "test", r.current.Name)
	}
	r.state = Idle
	r.current = nil
	r.headers = nil
	r.steps.Clear()
}

func (r *StepRecorder) recording(event string) bool {
	if r.state == Recording {
		return true
	}
	r.log.Warn("Ignoring notification, no test is recording", "event", event)
	return false
}

func (r *StepRecorder) push(step *types.TestStep, example bool) {
	now := r.clock.Now()
	step.StartTime = now
	r.steps.Push(&openStep{step: step, startedAt: now, example: example})
}

// pop closes the top step and attaches it to its parent, or to the outcome
// when it has none
func (r *StepRecorder) pop() {
	value, ok := r.steps.Pop()
	if !ok {
		return
	}
	open := value.(*openStep)
	open.step.SetDuration(r.clock.Now().Sub(open.startedAt))
	if parent, ok := r.steps.Peek(); ok {
		parent.(*openStep).step.AddChild(open.step)
		return
	}
	r.current.RecordStep(open.step)
}

// openSteps returns the open steps, innermost first
func (r *StepRecorder) openSteps() []*openStep {
	values := r.steps.Values()
	out := make([]*openStep, 0, len(values))
	for _, v := range values {
		out = append(out, v.(*openStep))
	}
	return out
}

func (r *StepRecorder) failOpenSteps(cause *types.FailureCause) {
	for _, open := range r.openSteps() {
		if open.step.Failure == nil {
			open.step.FailedWith(cause)
		}
	}
}

// finish closes the open steps, settles the row results and publishes the
// current outcome
func (r *StepRecorder) finish() {
	for !r.steps.Empty() {
		r.pop()
	}
	outcome := r.current
	outcome.Elapsed = r.clock.Now().Sub(outcome.StartTime)

	result := outcome.Result()
	if outcome.DataTable != nil {
		for i := range outcome.DataTable.Rows {
			outcome.DataTable.Rows[i].Result = result
		}
	}

	r.outcomes = append(r.outcomes, outcome)
	r.current = nil
	r.state = Idle
	metrics.RecordOutcome(result)
	r.log.Debug("Test finished", "test", outcome.Name, "result", result, "duration", outcome.Duration())
}
