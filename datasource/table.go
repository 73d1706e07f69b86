package datasource

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// ReadTable reads a delimited file whose first record is the header row
func ReadTable(path string, delimiter rune) (*types.DataTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open data file")
	}
	defer f.Close()

	table, err := parseTable(f, delimiter)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read data file %s", path)
	}
	return table, nil
}

func parseTable(r io.Reader, delimiter rune) (*types.DataTable, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.Comment = '#'
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("no header row")
	}
	if err != nil {
		return nil, err
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	table := types.NewDataTable(headers...)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for i, v := range record {
			record[i] = strings.TrimSpace(v)
		}
		table.AddRow(types.NewDataTableRow(record...))
	}
	return table, nil
}
