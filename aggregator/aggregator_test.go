package aggregator

import (
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-outcome/types"
)

func newAggregator() *Aggregator {
	return New(log.NewLogger(log.DiscardHandler()))
}

// rowOutcome builds the outcome of one data row invocation of a login test
func rowOutcome(index int, user string, result types.Result) *types.TestOutcome {
	o := types.NewTestOutcome(fmt.Sprintf("login_test[%d]", index), "LoginTest")
	o.DisplayName = fmt.Sprintf("login_test(String, boolean)[%d]", index)
	row := types.NewDataTableRow(user, "true").WithResult(result)
	o.AddRow([]string{"user", "expected"}, row)
	step := types.NewTestStep(fmt.Sprintf("[1] {user: %s, expected: true}", user)).
		WithResult(result).
		WithDuration(time.Duration(index) * time.Millisecond)
	o.RecordStep(step)
	if result == types.ResultFailure {
		o.FailedWith(types.NewFailureCause(types.NewAssertionError("login rejected for %s", user)))
	}
	return o
}

func TestAggregate_Empty(t *testing.T) {
	for _, input := range [][]*types.TestOutcome{nil, {}} {
		out, stats := newAggregator().Aggregate(input)
		assert.NotNil(t, out)
		assert.Empty(t, out)
		assert.Equal(t, 0, stats.Scenarios)
	}
}

func TestAggregate_NonDataDrivenIsBijection(t *testing.T) {
	a := types.NewTestOutcome("shouldOpenAccount", "AccountTest")
	a.RecordStep(types.NewTestStep("open").WithDuration(5 * time.Millisecond))
	b := types.NewTestOutcome("shouldCloseAccount", "AccountTest")
	b.FailedWith(types.NewFailureCause(fmt.Errorf("connection reset")))

	out, stats := newAggregator().Aggregate([]*types.TestOutcome{a, b})

	require.Len(t, out, 2)
	assert.Equal(t, 2, stats.Scenarios)
	for i, input := range []*types.TestOutcome{a, b} {
		scenario := out[i]
		assert.Equal(t, input.Name, scenario.Name)
		assert.Equal(t, "AccountTest", scenario.TestCase)
		require.Len(t, scenario.Steps, 1)
		wrapper := scenario.Steps[0]
		assert.Equal(t, input.Title(), wrapper.Description)
		assert.Equal(t, input.Result(), wrapper.Result)
		assert.Equal(t, input.Result(), scenario.Result())
		assert.Nil(t, scenario.DataTable)
	}
	assert.Equal(t, "connection reset", out[1].FailureCause().Message)
	assert.Equal(t, 5*time.Millisecond, out[0].Steps[0].Duration())
}

func TestAggregate_DuplicatesAreDropped(t *testing.T) {
	o := rowOutcome(1, "alice", types.ResultSuccess)

	once, _ := newAggregator().Aggregate([]*types.TestOutcome{o})
	twice, stats := newAggregator().Aggregate([]*types.TestOutcome{o, o})

	assert.Equal(t, 1, stats.Duplicates)
	require.Len(t, twice, 1)
	assert.Equal(t, len(once[0].Steps), len(twice[0].Steps))
	assert.Equal(t, once[0].DataTable.Rows, twice[0].DataTable.Rows)
}

func TestAggregate_RowMergePreservesOrder(t *testing.T) {
	headers := []string{"x"}
	first := types.NewTestOutcome("sum[1]", "MathTest")
	first.AddRow(headers, types.NewDataTableRow("A").WithResult(types.ResultSuccess))
	first.AddRow(headers, types.NewDataTableRow("B").WithResult(types.ResultSuccess))
	second := types.NewTestOutcome("sum[2]", "MathTest")
	second.AddRow(headers, types.NewDataTableRow("B").WithResult(types.ResultSuccess))
	second.AddRow(headers, types.NewDataTableRow("C").WithResult(types.ResultSuccess))

	out, stats := newAggregator().Aggregate([]*types.TestOutcome{first, second})

	require.Len(t, out, 1)
	var values []string
	for _, row := range out[0].DataTable.Rows {
		values = append(values, row.Values[0])
	}
	assert.Equal(t, []string{"A", "B", "C"}, values)
	assert.Equal(t, 3, stats.RowsMerged)
}

func TestAggregate_ReconcilesFirstRow(t *testing.T) {
	o := types.NewTestOutcome("transfer[1]", "BankTest")
	for _, v := range []string{"1", "2", "3"} {
		o.AddRow([]string{"amount"}, types.NewDataTableRow(v).WithResult(types.ResultSuccess))
	}
	o.FailedWith(types.NewFailureCause(types.NewAssertionError("external check failed")))

	out, stats := newAggregator().Aggregate([]*types.TestOutcome{o})

	require.Len(t, out, 1)
	assert.Equal(t, []types.Result{types.ResultFailure, types.ResultSuccess, types.ResultSuccess},
		out[0].DataTable.RowResults())
	assert.Equal(t, 1, stats.RowsReconciled)
	assert.Equal(t, []types.Result{types.ResultSuccess, types.ResultSuccess, types.ResultSuccess},
		o.DataTable.RowResults(), "input table is not modified")
}

func TestAggregate_ConsistentRowsAreNotReconciled(t *testing.T) {
	tests := []struct {
		name    string
		overall types.Result
		rows    []types.Result
	}{
		{name: "success overall", overall: types.ResultSuccess, rows: []types.Result{types.ResultFailure}},
		{name: "rows agree", overall: types.ResultFailure, rows: []types.Result{types.ResultSuccess, types.ResultFailure}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := types.NewTestOutcome("m[1]", "C")
			for i, r := range tt.rows {
				o.AddRow([]string{"v"}, types.NewDataTableRow(fmt.Sprint(i)).WithResult(r))
			}
			o.SetResult(tt.overall)

			out, stats := newAggregator().Aggregate([]*types.TestOutcome{o})

			assert.Equal(t, 0, stats.RowsReconciled)
			assert.Equal(t, tt.rows, out[0].DataTable.RowResults())
		})
	}
}

func TestAggregate_LoginEndToEnd(t *testing.T) {
	inputs := []*types.TestOutcome{
		rowOutcome(1, "alice", types.ResultSuccess),
		rowOutcome(2, "bob", types.ResultFailure),
		rowOutcome(3, "carol", types.ResultSuccess),
	}

	out, stats := newAggregator().Aggregate(inputs)

	require.Len(t, out, 1)
	scenario := out[0]
	assert.Equal(t, "login_test", scenario.Name)
	assert.Equal(t, "LoginTest", scenario.TestCase)
	assert.Equal(t, types.ResultFailure, scenario.Result())
	assert.Equal(t, 3, stats.Inputs)
	assert.Equal(t, 1, stats.Scenarios)

	require.Equal(t, 3, scenario.DataTable.Size())
	assert.Equal(t, []string{"user", "expected"}, scenario.DataTable.Headers)
	assert.Equal(t, []types.Result{types.ResultSuccess, types.ResultFailure, types.ResultSuccess},
		scenario.DataTable.RowResults())

	require.Len(t, scenario.Steps, 3)
	for i, user := range []string{"alice", "bob", "carol"} {
		wrapper := scenario.Steps[i]
		assert.Equal(t, fmt.Sprintf("login_test(String, boolean)[%d]", i+1), wrapper.Description)
		require.Len(t, wrapper.Children, 1)
		assert.Equal(t, fmt.Sprintf("[%d] {user: %s, expected: true}", i+1, user), wrapper.Children[0].Description)
	}
	assert.Equal(t, types.ResultFailure, scenario.Steps[1].Result)
	assert.Equal(t, "login rejected for bob", scenario.Steps[1].Failure.Message)
	assert.Equal(t, "login rejected for bob", scenario.FailureCause().Message)

	for _, in := range inputs {
		assert.Equal(t, "[1] {user: "+in.DataTable.Rows[0].Values[0]+", expected: true}", in.Steps[0].Description,
			"input steps are not renumbered in place")
	}
}

func TestAggregate_WrapperDurations(t *testing.T) {
	withSteps := types.NewTestOutcome("shouldSum", "MathTest")
	for _, d := range []time.Duration{10, 20, 30} {
		withSteps.RecordStep(types.NewTestStep("leaf").WithDuration(d * time.Millisecond))
	}
	elapsedOnly := types.NewTestOutcome("shouldWait", "MathTest")
	elapsedOnly.Elapsed = 42 * time.Millisecond

	out, _ := newAggregator().Aggregate([]*types.TestOutcome{withSteps, elapsedOnly})

	require.Len(t, out, 2)
	assert.Equal(t, 60*time.Millisecond, out[0].Steps[0].Duration())
	assert.Equal(t, 42*time.Millisecond, out[1].Steps[0].Duration())
}

func TestAggregate_ManualAndQualifier(t *testing.T) {
	first := types.NewTestOutcome("print[1]", "PrintTest")
	first.Qualifier = "A4"
	second := types.NewTestOutcome("print[2]", "PrintTest")
	second.Manual = true

	out, _ := newAggregator().Aggregate([]*types.TestOutcome{first, second})

	require.Len(t, out, 1)
	assert.True(t, out[0].Manual)
	assert.Equal(t, "Print A4", out[0].Steps[0].Description)
	assert.Equal(t, "Print", out[0].Steps[1].Description)
	assert.False(t, first.Manual)
}

func TestAggregate_IgnoredScenario(t *testing.T) {
	o := types.NewTestOutcome("Initialisation", "LoginTest")
	o.SetResult(types.ResultIgnored)

	out, _ := newAggregator().Aggregate([]*types.TestOutcome{o})

	require.Len(t, out, 1)
	assert.Equal(t, types.ResultIgnored, out[0].Result())
}

func TestDistinct(t *testing.T) {
	a := types.NewTestOutcome("a", "C")
	b := types.NewTestOutcome("a", "C")

	out, dropped := Distinct([]*types.TestOutcome{a, b, a, nil})

	assert.Equal(t, []*types.TestOutcome{a, b}, out, "equal content is not a duplicate")
	assert.Equal(t, 2, dropped)
}
