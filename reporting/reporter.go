// Package reporting publishes the consolidated outcomes of a test plan.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// Reporter receives the consolidated outcomes of a plan, one per scenario
type Reporter interface {
	GenerateReportsFor(ctx context.Context, outcomes []*types.TestOutcome, outputDir string) error
}

// MultiReporter runs every reporter in order. A failing reporter does not
// stop the ones after it.
type MultiReporter []Reporter

func (m MultiReporter) GenerateReportsFor(ctx context.Context, outcomes []*types.TestOutcome, outputDir string) error {
	var errs []error
	for i, r := range m {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.GenerateReportsFor(ctx, outcomes, outputDir); err != nil {
			errs = append(errs, fmt.Errorf("reporter %d (%T): %w", i, r, err))
		}
	}
	return errors.Join(errs...)
}

// overallResult rolls the scenario results of a plan up into one result
func overallResult(outcomes []*types.TestOutcome) types.Result {
	results := make([]types.Result, 0, len(outcomes))
	for _, o := range outcomes {
		results = append(results, o.Result())
	}
	return types.Rollup(results...)
}

func totalDuration(outcomes []*types.TestOutcome) (total time.Duration) {
	for _, o := range outcomes {
		total += o.Duration()
	}
	return total
}
