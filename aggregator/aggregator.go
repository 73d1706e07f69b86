// Package aggregator collapses the per-row outcomes of parameterized tests
// into one outcome per scenario.
package aggregator

import (
	"time"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-outcome/metrics"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// Stats describes one aggregation pass
type Stats struct {
	Inputs         int
	Duplicates     int
	Scenarios      int
	RowsMerged     int
	RowsReconciled int
}

// Aggregator groups outcomes by base name. It keeps no state between calls.
type Aggregator struct {
	log log.Logger
}

func New(logger log.Logger) *Aggregator {
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	return &Aggregator{log: logger.New("component", "aggregator")}
}

// Distinct drops repeated references to the same outcome, keeping the first.
// Outcomes are compared by identity, not by content.
func Distinct(outcomes []*types.TestOutcome) ([]*types.TestOutcome, int) {
	seen := make(map[*types.TestOutcome]struct{}, len(outcomes))
	out := make([]*types.TestOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	return out, len(outcomes) - len(out)
}

// Aggregate returns one outcome per distinct base name. Each input becomes a
// wrapper step of its scenario, holding copies of its steps, and the data
// tables of the inputs are merged into the scenario table. The inputs are
// not modified.
//
// Scenarios are returned in the order their base name was first seen;
// callers should not rely on it.
func (a *Aggregator) Aggregate(outcomes []*types.TestOutcome) ([]*types.TestOutcome, Stats) {
	distinct, duplicates := Distinct(outcomes)
	stats := Stats{Inputs: len(outcomes), Duplicates: duplicates}

	scenarios := linkedhashmap.New()
	for _, outcome := range distinct {
		baseName := outcome.BaseName()
		scenario := scenarioFor(scenarios, baseName, outcome)

		scenario.RecordStep(wrapperStep(outcome, len(scenario.Steps)+1))
		if outcome.Manual {
			scenario.Manual = true
		}
		if outcome.IsDataDriven() {
			merged, reconciled := mergeRows(scenario, outcome)
			stats.RowsMerged += merged
			if reconciled {
				stats.RowsReconciled++
			}
		}
	}

	out := make([]*types.TestOutcome, 0, scenarios.Size())
	for _, v := range scenarios.Values() {
		out = append(out, v.(*types.TestOutcome))
	}
	stats.Scenarios = len(out)

	metrics.RecordAggregation(stats.RowsMerged, stats.RowsReconciled, stats.Duplicates)
	a.log.Debug("Aggregated outcomes",
		"inputs", stats.Inputs, "scenarios", stats.Scenarios,
		"rowsMerged", stats.RowsMerged, "rowsReconciled", stats.RowsReconciled,
		"duplicates", stats.Duplicates)
	return out, stats
}

func scenarioFor(scenarios *linkedhashmap.Map, baseName string, first *types.TestOutcome) *types.TestOutcome {
	if v, ok := scenarios.Get(baseName); ok {
		return v.(*types.TestOutcome)
	}
	scenario := types.NewTestOutcome(baseName, first.TestCase)
	scenario.StartTime = first.StartTime
	scenarios.Put(baseName, scenario)
	return scenario
}

// wrapperStep turns one invocation into a step titled after the invocation.
// Row markers in the copied step descriptions are renumbered to index.
func wrapperStep(outcome *types.TestOutcome, index int) *types.TestStep {
	wrapper := types.NewTestStep(outcome.TitleWithQualifier()).WithResult(outcome.Result())
	wrapper.StartTime = outcome.StartTime
	if cause := outcome.FailureCause(); cause != nil {
		c := *cause
		wrapper.Failure = &c
	}

	var duration time.Duration
	for _, step := range outcome.Steps {
		child := step.Clone()
		child.Description = types.RenumberRowMarkers(child.Description, index)
		wrapper.AddChild(child)
		duration += child.Duration()
	}
	if duration == 0 {
		duration = outcome.Duration()
	}
	wrapper.SetDuration(duration)
	return wrapper
}

// mergeRows adds the rows of outcome's table that the scenario does not hold
// yet. When the invocation failed but its rows do not say so, the first row
// takes the invocation result.
func mergeRows(scenario *types.TestOutcome, outcome *types.TestOutcome) (merged int, reconciled bool) {
	table := outcome.DataTable.Clone()
	result := outcome.Result()
	if result.IsUnsuccessful() && table.Size() > 0 && types.Rollup(table.RowResults()...) != result {
		table.Rows[0].Result = result
		reconciled = true
	}

	if scenario.DataTable == nil {
		scenario.DataTable = table
		return table.Size(), reconciled
	}
	for _, row := range table.Rows {
		if !scenario.DataTable.ContainsRow(row) {
			scenario.DataTable.AddRow(row)
			merged++
		}
	}
	return merged, reconciled
}
