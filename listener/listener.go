// Package listener turns the lifecycle callbacks of a host test framework
// into event bus notifications, and collects the consolidated outcomes of
// the test plan when it finishes.
package listener

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-outcome/aggregator"
	"github.com/ethereum-optimism/infra/op-outcome/datasource"
	"github.com/ethereum-optimism/infra/op-outcome/discovery"
	"github.com/ethereum-optimism/infra/op-outcome/eventbus"
	"github.com/ethereum-optimism/infra/op-outcome/host"
	"github.com/ethereum-optimism/infra/op-outcome/metrics"
	"github.com/ethereum-optimism/infra/op-outcome/recorder"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// ErrUnsupportedStatus is returned for an execution that finished with a
// status the listener does not know. The run cannot continue.
var ErrUnsupportedStatus = errors.New("unsupported execution status")

// DefaultTestName names a skipped test whose identifier has no display name
const DefaultTestName = "Initialisation"

// Config holds the collaborators of an OutcomeListener
type Config struct {
	Log        log.Logger
	Bus        *eventbus.Bus
	Recorder   *recorder.StepRecorder
	Aggregator *aggregator.Aggregator
	DataSource datasource.Resolver
	Skips      discovery.SkipResolver
}

// OutcomeListener is a host.ExecutionListener that drives an event bus from
// host callbacks. One listener serves one test plan run.
type OutcomeListener struct {
	log        log.Logger
	bus        *eventbus.Bus
	recorder   *recorder.StepRecorder
	aggregator *aggregator.Aggregator
	data       datasource.Resolver
	skips      discovery.SkipResolver
	summary    *summaryCounters

	mu       sync.Mutex
	plan     *host.TestPlan
	classes  map[string]bool
	tables   map[string]*types.DataTable
	rowIndex map[string]int
	outcomes []*types.TestOutcome
	stats    aggregator.Stats
	finished bool
}

var _ host.ExecutionListener = (*OutcomeListener)(nil)

// New creates a listener. Bus and Recorder are required; a missing
// aggregator, data source or skip resolver falls back to a default.
func New(cfg Config) (*OutcomeListener, error) {
	if cfg.Bus == nil {
		return nil, errors.New("event bus is required")
	}
	if cfg.Recorder == nil {
		return nil, errors.New("step recorder is required")
	}
	logger := cfg.Log
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	if cfg.Aggregator == nil {
		cfg.Aggregator = aggregator.New(logger)
	}
	if cfg.DataSource == nil {
		cfg.DataSource = datasource.NoData{}
	}
	if cfg.Skips == nil {
		cfg.Skips = discovery.NoneDisabled{}
	}
	return &OutcomeListener{
		log:        logger.New("component", "outcome-listener"),
		bus:        cfg.Bus,
		recorder:   cfg.Recorder,
		aggregator: cfg.Aggregator,
		data:       cfg.DataSource,
		skips:      cfg.Skips,
		summary:    &summaryCounters{},
		classes:    make(map[string]bool),
		tables:     make(map[string]*types.DataTable),
		rowIndex:   make(map[string]int),
	}, nil
}

// TestPlanExecutionStarted resolves the data tables of every class of the plan
func (l *OutcomeListener) TestPlanExecutionStarted(plan *host.TestPlan) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.plan = plan
	l.log.Info("Test plan execution started", "identifiers", plan.Size())
	for _, root := range plan.Roots() {
		for _, child := range plan.Children(root) {
			source, ok := child.ClassSource()
			if !ok {
				continue
			}
			l.registerClass(source.ClassName)
		}
	}
}

func (l *OutcomeListener) registerClass(class string) {
	if l.classes[class] {
		return
	}
	l.classes[class] = true
	tables, err := l.data.ForClass(class)
	if err != nil {
		l.log.Warn("Failed to resolve data tables, continuing without data", "class", class, "err", err)
		metrics.RecordErrorDetails("datasource", err)
		return
	}
	for key, table := range tables {
		l.log.Debug("Using data table", "method", key, "rows", table.Size())
		l.tables[key] = table
	}
}

// TestPlanExecutionFinished collects the outcomes of the plan. When the plan
// declared data tables, the outcomes of parameterized tests are aggregated
// into one outcome per scenario.
func (l *OutcomeListener) TestPlanExecutionFinished(_ *host.TestPlan) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if name, ok := l.recorder.InFlight(); ok {
		l.log.Warn("Test plan finished while a test is still recording", "test", name)
	}

	raw := l.recorder.Outcomes()
	if len(l.tables) > 0 {
		l.outcomes, l.stats = l.aggregator.Aggregate(raw)
	} else {
		distinct, duplicates := aggregator.Distinct(raw)
		l.outcomes = distinct
		l.stats = aggregator.Stats{Inputs: len(raw), Duplicates: duplicates, Scenarios: len(distinct)}
	}
	l.finished = true
	l.log.Info("Test plan execution finished", "outcomes", len(l.outcomes), "invocations", len(raw))
}

func (l *OutcomeListener) DynamicTestRegistered(id *host.TestIdentifier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.Debug("Dynamic test registered", "id", id.UniqueID, "name", id.DisplayName)
	if l.plan != nil {
		l.plan.Add(id)
	}
	if source, ok := id.ClassSource(); ok {
		l.registerClass(source.ClassName)
	}
}

// ExecutionSkipped records a disabled method as an ignored test. Methods the
// skip resolver does not report as disabled produce no outcome.
func (l *OutcomeListener) ExecutionSkipped(id *host.TestIdentifier, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.summary.record(id, host.StatusSkipped)
	source, ok := id.MethodSource()
	if !ok {
		l.log.Debug("Execution skipped", "id", id.UniqueID, "reason", reason)
		return
	}
	disabled, err := l.skips.IsDisabled(source.ClassName, source.MethodName, source.ParameterTypes())
	if err != nil {
		l.log.Error("Failed to check whether test is disabled", "test", source.Key(), "err", err)
		metrics.RecordErrorDetails("discovery", err)
		return
	}
	if !disabled {
		l.log.Debug("Execution skipped", "test", source.Key(), "reason", reason)
		return
	}

	name := strings.TrimSuffix(id.DisplayName, "()")
	if name == "" {
		name = DefaultTestName
	}
	l.log.Debug("Recording disabled test", "test", source.Key(), "reason", reason)
	l.bus.TestStarted(name, source.ClassName)
	l.bus.TestIgnored()
	l.bus.TestFinished()
}

func (l *OutcomeListener) ExecutionStarted(id *host.TestIdentifier) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id.Source == nil {
		l.log.Debug("Ignoring execution without source", "id", id.UniqueID)
		return
	}
	if source, ok := id.ClassSource(); ok && id.Type.IsContainer() {
		l.bus.SuiteStarted(source.ClassName)
		return
	}

	source, ok := id.MethodSource()
	if !ok {
		return
	}
	key := source.Key()
	table := l.tables[key]

	if id.Type == host.TypeTest {
		if !l.classes[source.ClassName] {
			l.log.Debug("Ignoring test of a class outside the plan", "test", key)
			return
		}
		l.bus.Clear()
		l.bus.TestStarted(l.testName(source, id, table), source.ClassName)
	}

	if table == nil {
		return
	}
	if id.Type.IsContainer() {
		l.rowIndex[key] = 0
		return
	}
	index := l.rowIndex[key]
	row, ok := table.Row(index)
	if !ok {
		l.log.Warn("No data row for invocation", "test", key, "row", index+1, "rows", table.Size())
		return
	}
	l.bus.UseExamplesFrom(table)
	l.bus.ExampleStarted(row)
}

// testName builds the "method%display" name of an invocation. Invocations
// of a data table row carry the 1-based row number: "method[n]%display".
func (l *OutcomeListener) testName(source *host.MethodSource, id *host.TestIdentifier, table *types.DataTable) string {
	name := source.MethodName
	if table != nil {
		name = fmt.Sprintf("%s[%d]", name, l.rowIndex[source.Key()]+1)
	}
	if id.DisplayName != "" {
		name += types.NameSeparator + id.DisplayName
	}
	return name
}

// ExecutionFinished closes the test or suite of id. It returns
// ErrUnsupportedStatus, without notifying the bus, for an unknown status.
func (l *OutcomeListener) ExecutionFinished(id *host.TestIdentifier, result host.ExecutionResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !result.Status.IsValid() {
		metrics.RecordError("unsupported_status")
		return fmt.Errorf("%w: %q for %s", ErrUnsupportedStatus, result.Status, id.UniqueID)
	}
	l.summary.record(id, result.Status)
	if result.Status == host.StatusFailed {
		l.summary.addFailure(id, result.Cause)
	}

	if id.Source == nil {
		return nil
	}
	if source, ok := id.ClassSource(); ok && id.Type.IsContainer() {
		l.log.Debug("Suite finished", "class", source.ClassName, "status", result.Status)
		l.bus.SuiteFinished()
		return nil
	}

	source, ok := id.MethodSource()
	if !ok || id.Type != host.TypeTest || !l.classes[source.ClassName] {
		return nil
	}

	switch result.Status {
	case host.StatusFailed:
		l.bus.TestFailed(result.Cause)
	case host.StatusAborted:
		l.bus.TestAborted(result.Cause)
	case host.StatusSkipped:
		l.bus.TestSkipped()
	}
	l.bus.TestFinished()

	key := source.Key()
	if _, ok := l.tables[key]; ok {
		l.bus.ExampleFinished()
		l.rowIndex[key]++
	}
	return nil
}

// ReportingEntryPublished forwards step boundaries and test annotations
// published by a running test
func (l *OutcomeListener) ReportingEntryPublished(id *host.TestIdentifier, entry host.ReportEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch entry.Key {
	case host.EntryStepStart:
		l.bus.StepStarted(entry.Value)
	case host.EntryStepFinish:
		if err := stepError(entry.Value); err != nil {
			l.bus.StepFailed(err)
		}
		l.bus.StepFinished()
	case host.EntryManual:
		l.bus.TestMarkedManual()
	case host.EntryQualifier:
		l.bus.TestQualified(entry.Value)
	default:
		l.log.Debug("Reporting entry published", "id", id.UniqueID, "key", entry.Key, "value", entry.Value)
	}
}

// stepError converts a "result" or "result: message" step.finish value into
// the error of a failed step. Successful and unknown results return nil.
func stepError(value string) error {
	status, message, _ := strings.Cut(value, ":")
	result, err := types.ParseResult(strings.TrimSpace(status))
	if err != nil {
		return nil
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = "step " + string(result)
	}
	switch result {
	case types.ResultFailure:
		return types.NewAssertionError("%s", message)
	case types.ResultCompromised:
		return &types.CompromisedError{Err: errors.New(message)}
	case types.ResultError:
		return errors.New(message)
	default:
		return nil
	}
}

// Outcomes returns the consolidated outcomes of the plan, one per scenario.
// It is empty until the plan has finished.
func (l *OutcomeListener) Outcomes() []*types.TestOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*types.TestOutcome(nil), l.outcomes...)
}

// Stats returns the aggregation statistics of the finished plan
func (l *OutcomeListener) Stats() aggregator.Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Finished reports whether the plan has finished
func (l *OutcomeListener) Finished() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.finished
}

// Summary returns the execution counters of the run so far
func (l *OutcomeListener) Summary() Summary {
	return l.summary.snapshot()
}
