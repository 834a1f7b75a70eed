package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fhirflat/fhirflat/flatfile"
)

func validEncounterRow(id string) map[string]any {
	return map[string]any{
		"id":                 id,
		"class.code":         "http://terminology.hl7.org/CodeSystem/v3-ActCode|IMP",
		"subject":            "Patient/p1",
		"actualPeriod.start": "2021-04-01T08:00:00Z",
		"actualPeriod.end":   "2021-04-10T12:00:00Z",
	}
}

func writeFlatFolder(t *testing.T, rows []map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, flatfile.FileName("Encounter"))
	if _, err := flatfile.WriteFile(path, "Encounter", rows); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return dir
}

func TestValidateFolder(t *testing.T) {
	dir := writeFlatFolder(t, []map[string]any{
		validEncounterRow("e1"),
		validEncounterRow("e2"),
	})

	report, err := ValidateFolder(context.Background(), dir, "", nil)
	if err != nil {
		t.Fatalf("ValidateFolder failed: %v", err)
	}

	if !report.Valid() {
		t.Errorf("Expected valid report, got issues: %+v", report.Files)
	}
	if report.TotalRows() != 2 {
		t.Errorf("TotalRows() = %d; want 2", report.TotalRows())
	}
	if len(report.Files) != 1 {
		t.Fatalf("Expected 1 file report, got %d", len(report.Files))
	}

	fr := report.Files[0]
	if fr.ResourceType != "Encounter" {
		t.Errorf("ResourceType = %q; want Encounter", fr.ResourceType)
	}
	if fr.Valid != 2 || fr.Invalid != 0 {
		t.Errorf("Valid/Invalid = %d/%d; want 2/0", fr.Valid, fr.Invalid)
	}
	if report.Archive != "" {
		t.Errorf("Archive = %q; want empty without compression", report.Archive)
	}
}

func TestValidateFolder_InvalidRows(t *testing.T) {
	bad := validEncounterRow("e2")
	delete(bad, "class.code")

	dir := writeFlatFolder(t, []map[string]any{validEncounterRow("e1"), bad})

	report, err := ValidateFolder(context.Background(), dir, "", nil)
	if err != nil {
		t.Fatalf("ValidateFolder failed: %v", err)
	}

	if report.Valid() {
		t.Error("Expected invalid report")
	}
	fr := report.Files[0]
	if fr.Valid != 1 || fr.Invalid != 1 {
		t.Errorf("Valid/Invalid = %d/%d; want 1/1", fr.Valid, fr.Invalid)
	}
	if len(fr.Issues) == 0 {
		t.Fatal("Expected issues for invalid row")
	}
	if fr.Issues[0].Row != 2 {
		t.Errorf("Issue row = %d; want 2", fr.Issues[0].Row)
	}
}

func TestValidateFolder_Compress(t *testing.T) {
	dir := writeFlatFolder(t, []map[string]any{validEncounterRow("e1")})

	report, err := ValidateFolder(context.Background(), dir, "zip", nil)
	if err != nil {
		t.Fatalf("ValidateFolder failed: %v", err)
	}

	if report.Archive == "" {
		t.Fatal("Expected an archive path")
	}
	if _, err := os.Stat(report.Archive); err != nil {
		t.Errorf("Archive not written: %v", err)
	}
}

func TestValidateFolder_CompressSkippedWhenInvalid(t *testing.T) {
	bad := validEncounterRow("e1")
	delete(bad, "class.code")

	dir := writeFlatFolder(t, []map[string]any{bad})

	report, err := ValidateFolder(context.Background(), dir, "zip", nil)
	if err != nil {
		t.Fatalf("ValidateFolder failed: %v", err)
	}
	if report.Archive != "" {
		t.Errorf("Archive = %q; invalid folders must not be archived", report.Archive)
	}
}

func TestValidateFolder_BadFormat(t *testing.T) {
	dir := writeFlatFolder(t, []map[string]any{validEncounterRow("e1")})

	if _, err := ValidateFolder(context.Background(), dir, "rar", nil); err == nil {
		t.Fatal("Expected error for unsupported archive format")
	}
}

func TestValidateFolder_Empty(t *testing.T) {
	if _, err := ValidateFolder(context.Background(), t.TempDir(), "", nil); err == nil {
		t.Fatal("Expected error for folder without flat files")
	}
}

func TestValidateFolder_UnknownResource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "starship.parquet")
	if _, err := flatfile.WriteFile(path, "Starship", []map[string]any{{"id": "s1"}}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := ValidateFolder(context.Background(), dir, "", nil); err == nil {
		t.Fatal("Expected error for unknown resource type")
	}
}
