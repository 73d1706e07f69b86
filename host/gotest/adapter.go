// Package gotest replays the output of "go test -json" as host lifecycle
// callbacks.
//
// Packages are classes and top-level tests are methods. A top-level test
// with a data table whose subtests each run one row is a row container, and
// its direct subtests are the row invocations. Every other subtest becomes a
// step of the nearest test, published as step.start and step.finish
// reporting entries.
//
// Parallel tests interleave their events in the stream. A top-level test is
// replayed as one block when its result arrives, with its subtests replayed
// in the order they started.
package gotest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-outcome/datasource"
	"github.com/ethereum-optimism/infra/op-outcome/discovery"
	"github.com/ethereum-optimism/infra/op-outcome/host"
	"github.com/ethereum-optimism/infra/op-outcome/metrics"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

const (
	EngineID = "[engine:gotest]"

	dialect = string(host.DialectGoTest)
)

type Config struct {
	Log        log.Logger
	Clock      *host.ReplayClock
	DataSource datasource.Resolver
	Skips      discovery.SkipResolver
}

// Adapter is the host.Adapter of the gotest dialect
type Adapter struct {
	log   log.Logger
	clock *host.ReplayClock
	data  datasource.Resolver
	skips discovery.SkipResolver
}

var _ host.Adapter = (*Adapter)(nil)

func New(cfg Config) *Adapter {
	logger := cfg.Log
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	a := &Adapter{
		log:   logger.New("component", "gotest-adapter"),
		clock: cfg.Clock,
		data:  cfg.DataSource,
		skips: cfg.Skips,
	}
	if a.clock == nil {
		a.clock = host.NewReplayClock()
	}
	if a.data == nil {
		a.data = datasource.NoData{}
	}
	if a.skips == nil {
		a.skips = discovery.NoneDisabled{}
	}
	return a
}

// Run reads the whole test2json stream, builds the test plan and replays
// the events in stream order
func (a *Adapter) Run(ctx context.Context, r io.Reader, listener host.ExecutionListener) error {
	events, skipped, err := readEvents(ctx, r)
	if err != nil {
		return err
	}
	if skipped > 0 {
		a.log.Debug("Skipped non test2json lines", "count", skipped)
	}
	if len(events) == 0 {
		return errors.New("no test events in input")
	}

	t := newTree(events)
	a.preloadSkips(ctx, t)
	t.classify(a.dataDrivenTests(t))
	plan := t.plan()
	a.log.Info("Replaying go test output", "events", len(events), "packages", len(t.packages), "identifiers", plan.Size())

	rp := &replay{Adapter: a, tree: t, listener: listener}
	return rp.run(ctx, plan, events)
}

func (a *Adapter) preloadSkips(ctx context.Context, t *tree) {
	p, ok := a.skips.(discovery.Preloader)
	if !ok {
		return
	}
	pkgs := make([]string, 0, len(t.order))
	for _, pkg := range t.order {
		pkgs = append(pkgs, pkg.name)
	}
	if err := p.Preload(ctx, pkgs); err != nil {
		a.log.Warn("Failed to preload skip metadata", "err", err)
	}
}

// dataDrivenTests returns the "package.Test" keys that have a data table
func (a *Adapter) dataDrivenTests(t *tree) map[string]bool {
	keys := make(map[string]bool)
	for _, pkg := range t.packages {
		tables, err := a.data.ForClass(pkg.name)
		if err != nil {
			a.log.Warn("Failed to resolve data tables", "package", pkg.name, "err", err)
			continue
		}
		for key := range tables {
			keys[key] = true
		}
	}
	return keys
}

type replay struct {
	*Adapter
	tree     *tree
	listener host.ExecutionListener
}

func (r *replay) run(ctx context.Context, plan *host.TestPlan, events []TestEvent) error {
	r.clock.Set(events[0].Time)
	r.listener.TestPlanExecutionStarted(plan)
	metrics.RecordHostEvent(dialect, "plan_started")
	r.listener.ExecutionStarted(r.tree.engine)

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("replay interrupted: %w", err)
		}
		pkg := r.tree.packages[ev.Package]
		if !pkg.started {
			pkg.started = true
			r.clock.Reset(ev.Time)
			r.started(pkg.id)
		}

		if ev.Test == "" {
			if isTerminal(ev.Action) && !pkg.finished {
				r.clock.Reset(ev.Time)
				if err := r.finishPackage(pkg, ev.Action); err != nil {
					return err
				}
			}
			continue
		}

		n := pkg.tests[ev.Test]
		if n.parent == nil && isTerminal(ev.Action) {
			if err := r.replayTest(n); err != nil {
				return err
			}
		}
	}

	for _, pkg := range r.tree.order {
		if pkg.started && !pkg.finished {
			r.log.Warn("Package output ended without a result", "package", pkg.name)
			if err := r.finishPackage(pkg, ActionFail); err != nil {
				return err
			}
		}
	}
	if err := r.finished(r.tree.engine, host.Successful()); err != nil {
		return err
	}
	r.listener.TestPlanExecutionFinished(plan)
	metrics.RecordHostEvent(dialect, "plan_finished")
	return nil
}

func (r *replay) started(id *host.TestIdentifier) {
	metrics.RecordHostEvent(dialect, "execution_started")
	r.listener.ExecutionStarted(id)
}

func (r *replay) finished(id *host.TestIdentifier, result host.ExecutionResult) error {
	metrics.RecordHostEvent(dialect, "execution_finished")
	if err := r.listener.ExecutionFinished(id, result); err != nil {
		return fmt.Errorf("failed to finish %s: %w", id.UniqueID, err)
	}
	return nil
}

func (r *replay) entry(n *node, key string, value string) {
	metrics.RecordHostEvent(dialect, "reporting_entry_published")
	r.listener.ReportingEntryPublished(n.leaf().id, host.ReportEntry{
		Timestamp: r.clock.Now(),
		Key:       key,
		Value:     value,
	})
}

func (r *replay) start(n *node) {
	if n.suppressed() || n.started {
		return
	}
	n.started = true

	switch n.kind {
	case kindStep:
		r.entry(n, host.EntryStepStart, n.shortName())
	case kindTest, kindRowContainer:
		if n.action == ActionSkip && r.disabled(n) {
			n.skipped = true
			metrics.RecordHostEvent(dialect, "execution_skipped")
			r.listener.ExecutionSkipped(n.id, n.message())
			return
		}
		r.started(n.id)
	case kindRow:
		r.started(n.id)
	}
}

func (r *replay) disabled(n *node) bool {
	disabled, err := r.skips.IsDisabled(n.pkg, n.name, nil)
	if err != nil {
		r.log.Warn("Failed to check whether test is disabled", "package", n.pkg, "test", n.name, "err", err)
		return false
	}
	return disabled
}

// replayTest reports n and its subtests as one contiguous block. Subtests
// are replayed in the order they started, so row n of a data table is the
// n-th row subtest. A test without a result fails.
func (r *replay) replayTest(n *node) error {
	if n.replayed || !n.ran {
		return nil
	}
	n.replayed = true

	r.clock.Reset(n.runTime)
	r.start(n)
	for _, child := range n.children {
		if err := r.replayTest(child); err != nil {
			return err
		}
	}
	if n.action == "" {
		n.action = ActionFail
	}
	r.clock.Reset(n.endTime)
	return r.finish(n)
}

func (r *replay) finish(n *node) error {
	if n.suppressed() || !n.started || n.finished {
		return nil
	}
	n.finished = true

	if n.kind == kindStep {
		r.entry(n, host.EntryStepFinish, n.stepResult())
		return nil
	}
	return r.finished(n.id, n.result())
}

func (r *replay) finishPackage(pkg *pkgNode, action string) error {
	for _, n := range pkg.roots {
		if err := r.replayTest(n); err != nil {
			return err
		}
	}
	pkg.finished = true

	result := host.Successful()
	switch action {
	case ActionFail:
		result = host.Failed(types.NewAssertionError("package %s failed", pkg.name))
	case ActionSkip:
		result = host.ExecutionResult{Status: host.StatusSkipped}
	}
	return r.finished(pkg.id, result)
}

// classifyFailure turns the captured output of a failed test into an error.
// Panics are errors; anything else is a failed assertion.
func classifyFailure(message string) error {
	if message == "" {
		message = "test failed"
	}
	if strings.Contains(message, "panic:") {
		return errors.New(message)
	}
	return types.NewAssertionError("%s", message)
}
