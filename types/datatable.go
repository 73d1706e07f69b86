package types

import (
	"fmt"
	"slices"
	"strings"
)

// DataTableRow is one parameter set of a data-driven scenario
type DataTableRow struct {
	Values []string `yaml:"values"`
	Result Result   `yaml:"result"`
}

// NewDataTableRow creates a row that has not produced a result yet
func NewDataTableRow(values ...string) DataTableRow {
	return DataTableRow{
		Values: slices.Clone(values),
		Result: ResultPending,
	}
}

// Equal compares rows by their values only, so that the same parameter set
// produced by repeated runs is recognised whatever its result.
func (r DataTableRow) Equal(other DataTableRow) bool {
	return slices.Equal(r.Values, other.Values)
}

// WithResult returns a copy of the row carrying the given result
func (r DataTableRow) WithResult(result Result) DataTableRow {
	return DataTableRow{Values: slices.Clone(r.Values), Result: result}
}

// DataTable is the ordered set of parameter rows for a data-driven scenario
type DataTable struct {
	Headers []string       `yaml:"headers"`
	Rows    []DataTableRow `yaml:"rows"`
}

// NewDataTable creates an empty table with the given column headers
func NewDataTable(headers ...string) *DataTable {
	return &DataTable{
		Headers: slices.Clone(headers),
		Rows:    make([]DataTableRow, 0),
	}
}

// WithRows appends rows and returns the table for chaining
func (t *DataTable) WithRows(rows ...DataTableRow) *DataTable {
	for _, row := range rows {
		t.AddRow(row)
	}
	return t
}

// AddRow appends a copy of the row
func (t *DataTable) AddRow(row DataTableRow) {
	t.Rows = append(t.Rows, row.WithResult(row.Result))
}

// Size returns the number of rows
func (t *DataTable) Size() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Row returns the row at index, and false when the index is out of range
func (t *DataTable) Row(index int) (DataTableRow, bool) {
	if t == nil || index < 0 || index >= len(t.Rows) {
		return DataTableRow{}, false
	}
	return t.Rows[index], true
}

// ContainsRow reports whether a row with the same values is present
func (t *DataTable) ContainsRow(row DataTableRow) bool {
	if t == nil {
		return false
	}
	return slices.ContainsFunc(t.Rows, row.Equal)
}

// RowResults returns the result of every row, in order
func (t *DataTable) RowResults() []Result {
	results := make([]Result, 0, t.Size())
	if t == nil {
		return results
	}
	for _, row := range t.Rows {
		results = append(results, row.Result)
	}
	return results
}

// RowAsMap maps each header to the row's value in that column
func (t *DataTable) RowAsMap(row DataTableRow) map[string]string {
	m := make(map[string]string, len(row.Values))
	for i, v := range row.Values {
		m[t.header(i)] = v
	}
	return m
}

// DescribeRow renders a row as "{h1: v1, h2: v2}" in column order
func (t *DataTable) DescribeRow(row DataTableRow) string {
	parts := make([]string, 0, len(row.Values))
	for i, v := range row.Values {
		parts = append(parts, fmt.Sprintf("%s: %s", t.header(i), v))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (t *DataTable) header(i int) string {
	if t != nil && i < len(t.Headers) {
		return t.Headers[i]
	}
	return fmt.Sprintf("col%d", i+1)
}

// Clone returns a deep copy of the table
func (t *DataTable) Clone() *DataTable {
	if t == nil {
		return nil
	}
	return NewDataTable(t.Headers...).WithRows(t.Rows...)
}

// EmptyCopy returns a table with the same headers and no rows
func (t *DataTable) EmptyCopy() *DataTable {
	if t == nil {
		return nil
	}
	return NewDataTable(t.Headers...)
}
