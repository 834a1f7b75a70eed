package flatfile

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	ff "github.com/fhirflat/fhirflat"
)

// errorHeader is the column layout of the rejected-rows sidecar.
var errorHeader = []string{"row", "severity", "code", "phase", "expression", "diagnostics"}

// WriteErrorFile writes the issues of rejected rows to a CSV sidecar
// next to the flat file, e.g. encounter_errors.csv.
func WriteErrorFile(path string, results []*ff.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("flatfile: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(errorHeader); err != nil {
		return fmt.Errorf("flatfile: write %s: %w", path, err)
	}

	for _, result := range results {
		if result == nil {
			continue
		}
		for _, issue := range result.Issues {
			record := []string{
				strconv.Itoa(result.Row),
				string(issue.Severity),
				string(issue.Code),
				issue.Phase,
				strings.Join(issue.Expression, ";"),
				issue.Diagnostics,
			}
			if err := w.Write(record); err != nil {
				return fmt.Errorf("flatfile: write %s: %w", path, err)
			}
		}
	}

	w.Flush()
	return w.Error()
}
