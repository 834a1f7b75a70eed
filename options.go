package fhirflat

import (
	"runtime"
	"time"
)

// DefaultDateLayout is the layout raw dates are parsed with when no layout
// is supplied. Layouts use the Go reference time (2006-01-02).
const DefaultDateLayout = "2006-01-02"

// Option configures the conversion and validation engine.
type Option func(*Options)

// Options holds all configuration for transforms and folder validation.
type Options struct {
	// Validation flags
	Validate           bool
	ValidateReferences bool
	ValidateInvariants bool
	StrictMode         bool

	// Input interpretation
	DateLayout   string
	TimezoneName string

	// Mapping source
	SheetBaseURL string
	HTTPTimeout  time.Duration

	// Output
	OutputDir string

	// Performance
	MaxErrors      int
	ParallelPhases bool
	WorkerCount    int
	EnablePooling  bool

	// Cache sizes
	SpecCacheSize  int
	SheetCacheSize int
	ExprCacheSize  int
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		// Validation on by default; --no-validate turns it off
		Validate:           true,
		ValidateReferences: true,
		ValidateInvariants: true,

		DateLayout:   DefaultDateLayout,
		TimezoneName: "UTC",

		SheetBaseURL: "https://docs.google.com/spreadsheets/d",
		HTTPTimeout:  30 * time.Second,

		OutputDir: ".",

		MaxErrors:      0, // unlimited
		ParallelPhases: true,
		WorkerCount:    runtime.NumCPU(),
		EnablePooling:  true,

		SpecCacheSize:  100,
		SheetCacheSize: 50,
		ExprCacheSize:  500,
	}
}

// --- Validation Options ---

// WithValidation enables or disables validation of generated resources.
// Disabling it can let malformed data through to the columnar writer,
// which will then fail on mixed-type columns.
func WithValidation(enable bool) Option {
	return func(o *Options) {
		o.Validate = enable
	}
}

// WithReferences enables reference format validation.
func WithReferences(enable bool) Option {
	return func(o *Options) {
		o.ValidateReferences = enable
	}
}

// WithInvariants enables FHIRPath invariant validation.
func WithInvariants(enable bool) Option {
	return func(o *Options) {
		o.ValidateInvariants = enable
	}
}

// WithStrictMode treats warnings as errors.
func WithStrictMode(enable bool) Option {
	return func(o *Options) {
		o.StrictMode = enable
	}
}

// --- Input Options ---

// WithDateLayout sets the Go reference layout raw dates are parsed with.
func WithDateLayout(layout string) Option {
	return func(o *Options) {
		if layout != "" {
			o.DateLayout = layout
		}
	}
}

// WithTimezone sets the IANA timezone name applied to naive datetimes.
func WithTimezone(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.TimezoneName = name
		}
	}
}

// --- Mapping Options ---

// WithSheetBaseURL overrides the base URL mapping sheets are fetched from.
func WithSheetBaseURL(url string) Option {
	return func(o *Options) {
		if url != "" {
			o.SheetBaseURL = url
		}
	}
}

// WithHTTPTimeout sets the timeout for mapping sheet fetches.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout > 0 {
			o.HTTPTimeout = timeout
		}
	}
}

// --- Output Options ---

// WithOutputDir sets the folder FHIRflat files are written to.
func WithOutputDir(dir string) Option {
	return func(o *Options) {
		if dir != "" {
			o.OutputDir = dir
		}
	}
}

// --- Performance Options ---

// WithMaxErrors sets the maximum number of errors before stopping.
// Use 0 for unlimited.
func WithMaxErrors(max int) Option {
	return func(o *Options) {
		o.MaxErrors = max
	}
}

// WithParallelPhases enables parallel execution of independent validation phases.
func WithParallelPhases(enable bool) Option {
	return func(o *Options) {
		o.ParallelPhases = enable
	}
}

// WithWorkerCount sets the number of workers for row conversion and batch
// validation. Defaults to runtime.NumCPU().
func WithWorkerCount(count int) Option {
	return func(o *Options) {
		if count > 0 {
			o.WorkerCount = count
		}
	}
}

// WithPooling enables or disables object pooling.
// Pooling reduces GC pressure but requires calling Release() on results.
func WithPooling(enable bool) Option {
	return func(o *Options) {
		o.EnablePooling = enable
	}
}

// --- Cache Options ---

// WithCacheSize configures cache sizes for resource specs, fetched mapping
// sheets and compiled FHIRPath expressions.
func WithCacheSize(specs, sheets, expressions int) Option {
	return func(o *Options) {
		if specs > 0 {
			o.SpecCacheSize = specs
		}
		if sheets > 0 {
			o.SheetCacheSize = sheets
		}
		if expressions > 0 {
			o.ExprCacheSize = expressions
		}
	}
}

// --- Presets ---

// FastOptions returns options optimized for throughput on trusted data.
func FastOptions() []Option {
	return []Option{
		WithValidation(false),
		WithParallelPhases(true),
		WithPooling(true),
	}
}
