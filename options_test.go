package fhirflat

import (
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.Validate {
		t.Error("Validate should default to true")
	}
	if !opts.ValidateReferences || !opts.ValidateInvariants {
		t.Error("Reference and invariant checks should default to true")
	}
	if opts.StrictMode {
		t.Error("StrictMode should default to false")
	}
	if opts.DateLayout != DefaultDateLayout {
		t.Errorf("DateLayout = %q; want %q", opts.DateLayout, DefaultDateLayout)
	}
	if opts.TimezoneName != "UTC" {
		t.Errorf("TimezoneName = %q; want UTC", opts.TimezoneName)
	}
	if opts.MaxErrors != 0 {
		t.Errorf("MaxErrors = %d; want 0", opts.MaxErrors)
	}
	if opts.WorkerCount < 1 {
		t.Errorf("WorkerCount = %d; want >= 1", opts.WorkerCount)
	}
	if opts.SpecCacheSize != 100 || opts.SheetCacheSize != 50 || opts.ExprCacheSize != 500 {
		t.Errorf("Cache sizes = %d/%d/%d; want 100/50/500",
			opts.SpecCacheSize, opts.SheetCacheSize, opts.ExprCacheSize)
	}
}

func TestOptions_Apply(t *testing.T) {
	opts := DefaultOptions()
	for _, opt := range []Option{
		WithValidation(false),
		WithReferences(false),
		WithInvariants(false),
		WithStrictMode(true),
		WithDateLayout("02/01/2006"),
		WithTimezone("Europe/London"),
		WithSheetBaseURL("http://localhost:8080"),
		WithHTTPTimeout(5 * time.Second),
		WithOutputDir("out"),
		WithMaxErrors(10),
		WithParallelPhases(false),
		WithWorkerCount(3),
		WithPooling(false),
		WithCacheSize(10, 20, 30),
	} {
		opt(opts)
	}

	if opts.Validate || opts.ValidateReferences || opts.ValidateInvariants {
		t.Error("Validation flags should all be off")
	}
	if !opts.StrictMode {
		t.Error("StrictMode should be on")
	}
	if opts.DateLayout != "02/01/2006" {
		t.Errorf("DateLayout = %q", opts.DateLayout)
	}
	if opts.TimezoneName != "Europe/London" {
		t.Errorf("TimezoneName = %q", opts.TimezoneName)
	}
	if opts.SheetBaseURL != "http://localhost:8080" {
		t.Errorf("SheetBaseURL = %q", opts.SheetBaseURL)
	}
	if opts.HTTPTimeout != 5*time.Second {
		t.Errorf("HTTPTimeout = %v", opts.HTTPTimeout)
	}
	if opts.OutputDir != "out" {
		t.Errorf("OutputDir = %q", opts.OutputDir)
	}
	if opts.MaxErrors != 10 {
		t.Errorf("MaxErrors = %d; want 10", opts.MaxErrors)
	}
	if opts.ParallelPhases {
		t.Error("ParallelPhases should be off")
	}
	if opts.WorkerCount != 3 {
		t.Errorf("WorkerCount = %d; want 3", opts.WorkerCount)
	}
	if opts.EnablePooling {
		t.Error("EnablePooling should be off")
	}
	if opts.SpecCacheSize != 10 || opts.SheetCacheSize != 20 || opts.ExprCacheSize != 30 {
		t.Errorf("Cache sizes = %d/%d/%d; want 10/20/30",
			opts.SpecCacheSize, opts.SheetCacheSize, opts.ExprCacheSize)
	}
}

func TestOptions_EmptyValuesIgnored(t *testing.T) {
	opts := DefaultOptions()
	WithDateLayout("")(opts)
	WithTimezone("")(opts)
	WithSheetBaseURL("")(opts)
	WithOutputDir("")(opts)
	WithWorkerCount(0)(opts)
	WithHTTPTimeout(0)(opts)
	WithCacheSize(0, 0, 0)(opts)

	defaults := DefaultOptions()
	if opts.DateLayout != defaults.DateLayout {
		t.Errorf("Empty layout overwrote default: %q", opts.DateLayout)
	}
	if opts.TimezoneName != defaults.TimezoneName {
		t.Errorf("Empty timezone overwrote default: %q", opts.TimezoneName)
	}
	if opts.SheetBaseURL != defaults.SheetBaseURL {
		t.Errorf("Empty base URL overwrote default: %q", opts.SheetBaseURL)
	}
	if opts.WorkerCount != defaults.WorkerCount {
		t.Errorf("Zero worker count overwrote default: %d", opts.WorkerCount)
	}
	if opts.HTTPTimeout != defaults.HTTPTimeout {
		t.Errorf("Zero timeout overwrote default: %v", opts.HTTPTimeout)
	}
	if opts.SpecCacheSize != defaults.SpecCacheSize {
		t.Errorf("Zero cache size overwrote default: %d", opts.SpecCacheSize)
	}
}

func TestFastOptions(t *testing.T) {
	opts := DefaultOptions()
	for _, opt := range FastOptions() {
		opt(opts)
	}

	if opts.Validate {
		t.Error("FastOptions should disable validation")
	}
	if !opts.ParallelPhases || !opts.EnablePooling {
		t.Error("FastOptions should keep parallel phases and pooling on")
	}
}
