package mapping

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const indexCSV = `resource,gid,mode
Encounter,111,one-to-one
Observation,222,one-to-many
`

const patientTab = `raw_variable,raw_response,id,gender
subjid,,<FIELD>,
sex,male,,male
sex,female,,female
`

func TestParseIndex(t *testing.T) {
	idx, err := ParseIndex(strings.NewReader(indexCSV))
	if err != nil {
		t.Fatalf("ParseIndex failed: %v", err)
	}

	if len(idx.Tabs) != 2 {
		t.Fatalf("Expected 2 tabs, got %d", len(idx.Tabs))
	}

	enc, ok := idx.Tab("encounter")
	if !ok {
		t.Fatal("Tab(encounter) not found")
	}
	if enc.GID != "111" {
		t.Errorf("GID = %q; want 111", enc.GID)
	}
	if enc.Mode != OneToOne {
		t.Errorf("Mode = %v; want one-to-one", enc.Mode)
	}

	obs, ok := idx.Tab("Observation")
	if !ok {
		t.Fatal("Tab(Observation) not found")
	}
	if obs.Mode != OneToMany {
		t.Errorf("Mode = %v; want one-to-many", obs.Mode)
	}
}

func TestParseIndex_Empty(t *testing.T) {
	_, err := ParseIndex(strings.NewReader("resource,gid,mode\n"))
	if err == nil {
		t.Error("Expected error for index without tabs")
	}
}

func TestParseIndex_BadMode(t *testing.T) {
	_, err := ParseIndex(strings.NewReader("resource,gid,mode\nEncounter,1,sideways\n"))
	if err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "index.csv"), "resource,gid,mode\nPatient,patient,one-to-one\n")
	writeTestFile(t, filepath.Join(dir, "patient.csv"), patientTab)

	src := NewDirSource(dir)
	ctx := context.Background()

	lib, err := Load(ctx, src)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	sheet, ok := lib.Sheet("Patient")
	if !ok {
		t.Fatal("Sheet(Patient) not found")
	}
	if len(sheet.Entries) != 3 {
		t.Errorf("Expected 3 entries, got %d", len(sheet.Entries))
	}

	resources := lib.Resources()
	if len(resources) != 1 || resources[0] != "Patient" {
		t.Errorf("Resources = %v; want [Patient]", resources)
	}
}

func TestLibrary_UnmappedColumns(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "index.csv"), "resource,gid,mode\nPatient,patient,one-to-one\n")
	writeTestFile(t, filepath.Join(dir, "patient.csv"), patientTab)

	lib, err := Load(context.Background(), NewDirSource(dir))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	unmapped := lib.UnmappedColumns([]string{"subjid", "sex", "shoe_size", "favorite_color"})
	if len(unmapped) != 2 {
		t.Fatalf("Expected 2 unmapped columns, got %v", unmapped)
	}
	if unmapped[0] != "favorite_color" || unmapped[1] != "shoe_size" {
		t.Errorf("UnmappedColumns = %v; want sorted [favorite_color shoe_size]", unmapped)
	}
}

func TestDirSource_MissingFile(t *testing.T) {
	src := NewDirSource(t.TempDir())

	_, err := src.Fetch(context.Background(), "nowhere")
	if err == nil {
		t.Error("Expected error for missing tab file")
	}
}

func TestSheetSource(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)

		if !strings.Contains(r.URL.Path, "/sheet-1/export") {
			http.NotFound(w, r)
			return
		}

		switch r.URL.Query().Get("gid") {
		case IndexGID:
			w.Write([]byte("resource,gid,mode\nPatient,42,one-to-one\n"))
		case "42":
			w.Write([]byte(patientTab))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	src := NewSheetSource(server.URL, "sheet-1", 5*time.Second, 8)
	ctx := context.Background()

	lib, err := Load(ctx, src)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, ok := lib.Sheet("patient"); !ok {
		t.Error("Sheet(patient) not found")
	}

	// A second load of the same tabs must come from the cache.
	before := atomic.LoadInt32(&requests)
	if _, err := src.Fetch(ctx, "42"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if after := atomic.LoadInt32(&requests); after != before {
		t.Errorf("Cached fetch hit the network: %d -> %d requests", before, after)
	}
}

func TestSheetSource_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	src := NewSheetSource(server.URL, "sheet-1", 5*time.Second, 8)

	_, err := src.Fetch(context.Background(), "0")
	if err == nil {
		t.Error("Expected error for forbidden response")
	}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) failed: %v", path, err)
	}
}
