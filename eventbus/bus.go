// Package eventbus fans lifecycle notifications out to step listeners.
//
// A Bus is created for one test plan run and discarded when the run ends.
// Notifications are delivered synchronously, in call order, to every
// registered listener in registration order. Nothing is buffered.
package eventbus

import (
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-outcome/metrics"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// Event names, used for logging and metrics
const (
	EventSuiteStarted    = "suite_started"
	EventSuiteFinished   = "suite_finished"
	EventTestStarted     = "test_started"
	EventTestFinished    = "test_finished"
	EventTestFailed      = "test_failed"
	EventTestAborted     = "test_aborted"
	EventTestIgnored     = "test_ignored"
	EventTestSkipped     = "test_skipped"
	EventTestManual      = "test_manual"
	EventTestQualified   = "test_qualified"
	EventStepStarted     = "step_started"
	EventStepFinished    = "step_finished"
	EventStepFailed      = "step_failed"
	EventUseExamples     = "use_examples"
	EventExampleStarted  = "example_started"
	EventExampleFinished = "example_finished"
	EventClear           = "clear"
)

// Bus delivers lifecycle notifications to registered listeners
type Bus struct {
	log       log.Logger
	mu        sync.RWMutex
	listeners []StepListener
}

// New creates an empty bus
func New(logger log.Logger) *Bus {
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	return &Bus{
		log: logger.New("component", "event-bus"),
	}
}

// RegisterListener adds a listener. Listeners are notified in registration order.
func (b *Bus) RegisterListener(l StepListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Listeners returns the registered listeners
func (b *Bus) Listeners() []StepListener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]StepListener, len(b.listeners))
	copy(out, b.listeners)
	return out
}

// Clear resets the in-flight state of every listener. Registrations are kept.
func (b *Bus) Clear() {
	b.notify(EventClear, func(l StepListener) { l.Reset() })
}

func (b *Bus) SuiteStarted(name string) {
	b.notify(EventSuiteStarted, func(l StepListener) { l.SuiteStarted(name) }, "suite", name)
}

func (b *Bus) SuiteFinished() {
	b.notify(EventSuiteFinished, func(l StepListener) { l.SuiteFinished() })
}

// TestStarted opens a new outcome for name, owned by the test case owner
func (b *Bus) TestStarted(name string, owner string) {
	b.notify(EventTestStarted, func(l StepListener) { l.TestStarted(name, owner) }, "test", name, "owner", owner)
}

// TestFinished closes the in-flight outcome
func (b *Bus) TestFinished() {
	b.notify(EventTestFinished, func(l StepListener) { l.TestFinished() })
}

func (b *Bus) TestFailed(err error) {
	b.notify(EventTestFailed, func(l StepListener) { l.TestFailed(err) }, "err", err)
}

func (b *Bus) TestAborted(err error) {
	b.notify(EventTestAborted, func(l StepListener) { l.TestAborted(err) }, "err", err)
}

func (b *Bus) TestIgnored() {
	b.notify(EventTestIgnored, func(l StepListener) { l.TestIgnored() })
}

func (b *Bus) TestSkipped() {
	b.notify(EventTestSkipped, func(l StepListener) { l.TestSkipped() })
}

func (b *Bus) TestMarkedManual() {
	b.notify(EventTestManual, func(l StepListener) { l.TestMarkedManual() })
}

func (b *Bus) TestQualified(qualifier string) {
	b.notify(EventTestQualified, func(l StepListener) { l.TestQualified(qualifier) }, "qualifier", qualifier)
}

func (b *Bus) StepStarted(description string) {
	b.notify(EventStepStarted, func(l StepListener) { l.StepStarted(description) }, "step", description)
}

func (b *Bus) StepFinished() {
	b.notify(EventStepFinished, func(l StepListener) { l.StepFinished() })
}

func (b *Bus) StepFailed(err error) {
	b.notify(EventStepFailed, func(l StepListener) { l.StepFailed(err) }, "err", err)
}

func (b *Bus) UseExamplesFrom(table *types.DataTable) {
	b.notify(EventUseExamples, func(l StepListener) { l.UseExamplesFrom(table) }, "rows", table.Size())
}

func (b *Bus) ExampleStarted(row types.DataTableRow) {
	b.notify(EventExampleStarted, func(l StepListener) { l.ExampleStarted(row) }, "values", row.Values)
}

func (b *Bus) ExampleFinished() {
	b.notify(EventExampleFinished, func(l StepListener) { l.ExampleFinished() })
}

func (b *Bus) notify(event string, fn func(StepListener), ctx ...any) {
	b.log.Trace("Notifying listeners", append([]any{"event", event}, ctx...)...)
	metrics.RecordBusEvent(event)
	for _, l := range b.Listeners() {
		fn(l)
	}
}
