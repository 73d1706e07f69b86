package reporting

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-outcome/types"
)

func sampleOutcomes() []*types.TestOutcome {
	login := types.NewTestOutcome("login", "LoginTest")
	login.DataTable = types.NewDataTable("user").WithRows(
		types.NewDataTableRow("alice").WithResult(types.ResultSuccess),
		types.NewDataTableRow("bob").WithResult(types.ResultFailure),
	)
	alice := types.NewTestStep("[1] alice").WithDuration(20 * time.Millisecond)
	bob := types.NewTestStep("[2] bob").WithDuration(22 * time.Millisecond)
	bob.AddChild(types.NewTestStep("submit").WithDuration(22 * time.Millisecond))
	bob.FailedWith(&types.FailureCause{Type: types.CauseTypeAssertion, Message: "expected welcome banner"})
	login.RecordStep(alice)
	login.RecordStep(bob)
	login.FailedWith(&types.FailureCause{Type: types.CauseTypeAssertion, Message: "expected welcome banner"})

	pay := types.NewTestOutcome("pay", "Shop")
	pay.Qualifier = "mobile"
	pay.Manual = true
	pay.RecordStep(types.NewTestStep("charge card").WithDuration(5 * time.Millisecond))

	return []*types.TestOutcome{login, pay}
}

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(log.NewLogger(log.DiscardHandler()), &buf)

	err := r.GenerateReportsFor(context.Background(), sampleOutcomes(), "")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, strings.ToUpper(out), "TEST OUTCOMES")
	assert.Contains(t, out, "LoginTest")
	assert.Contains(t, out, "{user: alice}")
	assert.Contains(t, out, "{user: bob}")
	assert.Contains(t, out, "expected welcome banner")
	assert.Contains(t, out, "Pay mobile")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "PASS")
}

func TestConsoleReporter_Empty(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(log.NewLogger(log.DiscardHandler()), &buf)
	require.NoError(t, r.GenerateReportsFor(context.Background(), nil, ""))
	assert.Contains(t, strings.ToUpper(buf.String()), "0 SCENARIOS")
}

func TestYAMLReporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	r := NewYAMLReporter(log.NewLogger(log.DiscardHandler()), "run-1")
	r.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	err := r.GenerateReportsFor(context.Background(), sampleOutcomes(), dir)
	require.NoError(t, err)

	doc, err := ReadDocument(filepath.Join(dir, OutcomesFile))
	require.NoError(t, err)
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, types.ResultFailure, doc.Result)
	assert.True(t, doc.Generated.Equal(r.now()))
	require.Len(t, doc.Outcomes, 2)

	login := doc.Outcomes[0]
	assert.Equal(t, "login", login.Name)
	assert.Equal(t, types.ResultFailure, login.Result)
	assert.Equal(t, 42*time.Millisecond, login.Duration)
	require.NotNil(t, login.Failure)
	assert.Equal(t, "expected welcome banner", login.Failure.Message)
	require.NotNil(t, login.DataTable)
	assert.Equal(t, []types.Result{types.ResultSuccess, types.ResultFailure}, login.DataTable.RowResults())
	require.Len(t, login.Steps, 2)
	require.Len(t, login.Steps[1].Children, 1)
	assert.Equal(t, "submit", login.Steps[1].Children[0].Description)

	pay := doc.Outcomes[1]
	assert.Equal(t, "Pay mobile", pay.Title)
	assert.True(t, pay.Manual)
	assert.Nil(t, pay.DataTable)
	assert.Equal(t, types.ResultSuccess, pay.Result)
}

func TestYAMLReporter_RequiresOutputDir(t *testing.T) {
	r := NewYAMLReporter(log.NewLogger(log.DiscardHandler()), "")
	require.Error(t, r.GenerateReportsFor(context.Background(), nil, ""))
}

type fakeReporter struct {
	calls int
	err   error
}

func (f *fakeReporter) GenerateReportsFor(context.Context, []*types.TestOutcome, string) error {
	f.calls++
	return f.err
}

func TestMultiReporter(t *testing.T) {
	boom := errors.New("boom")
	first := &fakeReporter{err: boom}
	second := &fakeReporter{}

	err := MultiReporter{first, second}.GenerateReportsFor(context.Background(), sampleOutcomes(), "")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls, "a failing reporter does not stop the next one")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = MultiReporter{second}.GenerateReportsFor(ctx, nil, "")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, second.calls)
}

func TestMetricsReporter(t *testing.T) {
	r := NewMetricsReporter("run-metrics")
	require.NoError(t, r.GenerateReportsFor(context.Background(), sampleOutcomes(), ""))
}

func TestOverallResult(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []*types.TestOutcome
		want     types.Result
	}{
		{"empty", nil, types.ResultSkipped},
		{"all pass", sampleOutcomes()[1:], types.ResultSuccess},
		{"any failure", sampleOutcomes(), types.ResultFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, overallResult(tt.outcomes))
		})
	}
}

func TestSummarizeCounts(t *testing.T) {
	got := summarizeCounts(map[types.Result]int{
		types.ResultSuccess: 3,
		types.ResultError:   1,
		types.ResultIgnored: 0,
	})
	assert.Equal(t, "1 error, 3 success", got)
}
