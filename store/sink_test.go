package store

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-outcome/types"
)

type fakeConn struct {
	tx       *fakeTx
	beginErr error
}

func (f *fakeConn) LastRun(context.Context) (*Run, error) {
	if f.tx == nil || len(f.tx.runs) == 0 {
		return nil, nil
	}
	r := f.tx.runs[len(f.tx.runs)-1]
	return &r, nil
}

func (f *fakeConn) Begin(context.Context) (Transactor, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

func (f *fakeConn) Close() error { return nil }

type fakeTx struct {
	runs      []Run
	scenarios []Scenario
	rows      []Row

	scenarioErr error
	rollbackErr error
	committed   bool
	rolledBack  bool
}

func (f *fakeTx) InsertRun(_ context.Context, r Run) error {
	f.runs = append(f.runs, r)
	return nil
}

func (f *fakeTx) InsertScenario(_ context.Context, s Scenario) (int, error) {
	if f.scenarioErr != nil {
		return 0, f.scenarioErr
	}
	f.scenarios = append(f.scenarios, s)
	return len(f.scenarios), nil
}

func (f *fakeTx) InsertRow(_ context.Context, r Row) error {
	f.rows = append(f.rows, r)
	return nil
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return f.rollbackErr
}

func outcomes() []*types.TestOutcome {
	login := types.NewTestOutcome("login", "LoginTest")
	login.DataTable = types.NewDataTable("user").WithRows(
		types.NewDataTableRow("alice").WithResult(types.ResultSuccess),
		types.NewDataTableRow("bob").WithResult(types.ResultFailure),
	)
	login.RecordStep(types.NewTestStep("[1] alice").WithDuration(time.Second))
	login.FailedWith(&types.FailureCause{Type: types.CauseTypeAssertion, Message: "expected welcome banner"})

	pay := types.NewTestOutcome("pay", "Shop")
	pay.Manual = true
	pay.RecordStep(types.NewTestStep("charge card").WithDuration(500 * time.Millisecond))
	return []*types.TestOutcome{login, pay}
}

func TestSink_WritesRun(t *testing.T) {
	tx := &fakeTx{}
	conn := &fakeConn{tx: tx}
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sink := NewSink(log.NewLogger(log.DiscardHandler()), conn, "run-1", started)

	require.NoError(t, sink.GenerateReportsFor(context.Background(), outcomes(), ""))
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)

	require.Len(t, tx.runs, 1)
	assert.Equal(t, Run{ID: "run-1", StartedAt: started, Result: "failure", Scenarios: 2, Duration: 1.5}, tx.runs[0])

	require.Len(t, tx.scenarios, 2)
	login := tx.scenarios[0]
	assert.Equal(t, "login", login.Name)
	assert.Equal(t, "failure", login.Result)
	assert.Equal(t, types.CauseTypeAssertion, login.FailureType)
	assert.Equal(t, "expected welcome banner", login.FailureMessage)
	assert.True(t, tx.scenarios[1].Manual)
	assert.Empty(t, tx.scenarios[1].FailureType)

	assert.Equal(t, []Row{
		{ScenarioID: 1, Index: 1, Values: []string{"alice"}, Result: "success"},
		{ScenarioID: 1, Index: 2, Values: []string{"bob"}, Result: "failure"},
	}, tx.rows)

	last, err := conn.LastRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", last.ID)
}

func TestSink_RollsBackOnError(t *testing.T) {
	boom := errors.New("boom")
	tx := &fakeTx{scenarioErr: boom}
	sink := NewSink(log.NewLogger(log.DiscardHandler()), &fakeConn{tx: tx}, "run-2", time.Now())

	err := sink.GenerateReportsFor(context.Background(), outcomes(), "")
	require.ErrorIs(t, err, boom)
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

func TestSink_LogsRollbackError(t *testing.T) {
	boom := errors.New("boom")
	tx := &fakeTx{scenarioErr: boom, rollbackErr: errors.New("connection reset")}
	var buf bytes.Buffer
	logger := log.NewLogger(log.NewTerminalHandler(&buf, false))
	sink := NewSink(logger, &fakeConn{tx: tx}, "run-4", time.Now())

	err := sink.GenerateReportsFor(context.Background(), outcomes(), "")
	require.ErrorIs(t, err, boom)
	assert.True(t, tx.rolledBack)
	assert.Contains(t, buf.String(), "Failed to roll back outcome run")
	assert.Contains(t, buf.String(), "connection reset")
}

func TestSink_BeginError(t *testing.T) {
	boom := errors.New("no connection")
	sink := NewSink(log.NewLogger(log.DiscardHandler()), &fakeConn{beginErr: boom}, "run-3", time.Now())
	require.ErrorIs(t, sink.GenerateReportsFor(context.Background(), nil, ""), boom)
}
