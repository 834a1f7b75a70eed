package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// DataRow is one raw data record keyed by column name.
type DataRow map[string]string

// ReadData reads a raw tabular data file. The first record is the
// header; cells are trimmed and empty cells dropped.
func ReadData(r io.Reader) ([]DataRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ingest: data file has no header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []DataRow
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: data row %d: %w", len(rows)+2, err)
		}

		row := make(DataRow, len(header))
		for i, name := range header {
			if name == "" || i >= len(record) {
				continue
			}
			if value := strings.TrimSpace(record[i]); value != "" {
				row[name] = value
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
