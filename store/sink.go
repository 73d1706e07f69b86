// Package store persists consolidated outcomes to PostgreSQL.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-outcome/reporting"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// Sink is a reporting.Reporter that writes one run, its scenarios and their
// data rows in a single transaction
type Sink struct {
	log       log.Logger
	conn      Connection
	runID     string
	startedAt time.Time
}

var _ reporting.Reporter = (*Sink)(nil)

func NewSink(logger log.Logger, conn Connection, runID string, startedAt time.Time) *Sink {
	return &Sink{
		log:       logger.New("component", "outcome-store"),
		conn:      conn,
		runID:     runID,
		startedAt: startedAt,
	}
}

func (s *Sink) GenerateReportsFor(ctx context.Context, outcomes []*types.TestOutcome, _ string) (err error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.log.Error("Failed to roll back outcome run", "run", s.runID, "err", rbErr)
			}
		}
	}()

	results := make([]types.Result, 0, len(outcomes))
	var total time.Duration
	for _, o := range outcomes {
		results = append(results, o.Result())
		total += o.Duration()
	}

	s.log.Info("inserting run", "run", s.runID, "scenarios", len(outcomes))
	if err := tx.InsertRun(ctx, Run{
		ID:        s.runID,
		StartedAt: s.startedAt,
		Result:    string(types.Rollup(results...)),
		Scenarios: len(outcomes),
		Duration:  total.Seconds(),
	}); err != nil {
		return err
	}

	for _, o := range outcomes {
		scenario := Scenario{
			RunID:     s.runID,
			Name:      o.BaseName(),
			TestCase:  o.TestCase,
			Title:     o.TitleWithQualifier(),
			Qualifier: o.Qualifier,
			Result:    string(o.Result()),
			Manual:    o.Manual,
			Runtime:   o.Duration().Seconds(),
		}
		if cause := o.FailureCause(); cause != nil {
			scenario.FailureType = cause.Type
			scenario.FailureMessage = cause.Message
		}
		id, err := tx.InsertScenario(ctx, scenario)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		if !o.IsDataDriven() {
			continue
		}
		for i, row := range o.DataTable.Rows {
			if err := tx.InsertRow(ctx, Row{
				ScenarioID: id,
				Index:      i + 1,
				Values:     row.Values,
				Result:     string(row.Result),
			}); err != nil {
				return fmt.Errorf("scenario %s row %d: %w", scenario.Name, i+1, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
