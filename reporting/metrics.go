package reporting

import (
	"context"

	"github.com/ethereum-optimism/infra/op-outcome/metrics"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// MetricsReporter counts the scenarios of a run by result
type MetricsReporter struct {
	runID string
}

func NewMetricsReporter(runID string) *MetricsReporter {
	return &MetricsReporter{runID: runID}
}

func (m *MetricsReporter) GenerateReportsFor(_ context.Context, outcomes []*types.TestOutcome, _ string) error {
	results := make([]types.Result, 0, len(outcomes))
	for _, o := range outcomes {
		results = append(results, o.Result())
	}
	metrics.RecordScenarios(m.runID, results, totalDuration(outcomes))
	return nil
}
