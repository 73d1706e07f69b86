package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataTableRow_EqualIgnoresResult(t *testing.T) {
	a := NewDataTableRow("alice", "ok").WithResult(ResultSuccess)
	b := NewDataTableRow("alice", "ok").WithResult(ResultFailure)
	c := NewDataTableRow("bob", "ok")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestDataTable_Rows(t *testing.T) {
	table := NewDataTable("user", "expected").WithRows(
		NewDataTableRow("alice", "ok"),
		NewDataTableRow("bob", "denied"),
	)

	assert.Equal(t, 2, table.Size())
	row, ok := table.Row(1)
	require.True(t, ok)
	assert.Equal(t, []string{"bob", "denied"}, row.Values)

	_, ok = table.Row(2)
	assert.False(t, ok)
	_, ok = table.Row(-1)
	assert.False(t, ok)

	assert.True(t, table.ContainsRow(NewDataTableRow("alice", "ok").WithResult(ResultError)))
	assert.False(t, table.ContainsRow(NewDataTableRow("carol", "ok")))

	assert.Equal(t, map[string]string{"user": "bob", "expected": "denied"}, table.RowAsMap(row))
	assert.Equal(t, "{user: bob, expected: denied}", table.DescribeRow(row))
	assert.Equal(t, []Result{ResultPending, ResultPending}, table.RowResults())
}

func TestDataTable_NilSafe(t *testing.T) {
	var table *DataTable
	assert.Equal(t, 0, table.Size())
	assert.False(t, table.ContainsRow(NewDataTableRow("x")))
	assert.Nil(t, table.Clone())
	assert.Empty(t, table.RowResults())
}

func TestDataTable_DescribeRowWithoutHeaders(t *testing.T) {
	table := NewDataTable()
	assert.Equal(t, "{col1: a, col2: b}", table.DescribeRow(NewDataTableRow("a", "b")))
}
