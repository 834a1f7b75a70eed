package flatfile

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	ff "github.com/fhirflat/fhirflat"
)

func TestWriteErrorFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ErrorFileName("Encounter"))

	bad := ff.AcquireResult()
	bad.Row = 3
	bad.AddError(ff.IssueTypeRequired, `Required element "class" is missing`, "class")
	bad.AddWarning(ff.IssueTypeMapping, "No mapping for outcome", "outcome")
	defer bad.Release()

	if err := WriteErrorFile(path, []*ff.Result{bad, nil}); err != nil {
		t.Fatalf("WriteErrorFile failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("Expected header + 2 records, got %d", len(records))
	}
	if records[0][0] != "row" {
		t.Errorf("Header = %v", records[0])
	}
	if records[1][0] != "3" || records[1][1] != "error" || records[1][4] != "class" {
		t.Errorf("First record = %v", records[1])
	}
	if records[2][1] != "warning" {
		t.Errorf("Second record = %v", records[2])
	}
}
