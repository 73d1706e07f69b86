package host

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// ExecutionListener receives the lifecycle callbacks of a test plan run.
// Callbacks are delivered one at a time, in host order.
type ExecutionListener interface {
	TestPlanExecutionStarted(plan *TestPlan)
	TestPlanExecutionFinished(plan *TestPlan)
	DynamicTestRegistered(id *TestIdentifier)
	ExecutionSkipped(id *TestIdentifier, reason string)
	ExecutionStarted(id *TestIdentifier)
	// ExecutionFinished returns an error when the result cannot be handled.
	// Hosts stop the run on error.
	ExecutionFinished(id *TestIdentifier, result ExecutionResult) error
	ReportingEntryPublished(id *TestIdentifier, entry ReportEntry)
}

// Adapter replays the output of a host framework as lifecycle callbacks
type Adapter interface {
	Run(ctx context.Context, r io.Reader, listener ExecutionListener) error
}

// Dialect names the host framework an input stream was produced by
type Dialect string

const (
	// DialectGoTest is the event stream of "go test -json"
	DialectGoTest Dialect = "gotest"
	// DialectLifecycle is a JSON lines log of lifecycle callbacks
	DialectLifecycle Dialect = "lifecycle"
)

var AllDialects = []Dialect{DialectGoTest, DialectLifecycle}

func (d Dialect) IsValid() bool {
	for _, v := range AllDialects {
		if d == v {
			return true
		}
	}
	return false
}

func ParseDialect(s string) (Dialect, error) {
	d := Dialect(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("unknown dialect %q, expected one of %v", s, AllDialects)
	}
	return d, nil
}
