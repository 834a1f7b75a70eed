// Package fhirflat transforms clinical tabular data into FHIRflat files,
// a flattened columnar representation of FHIR resources, and validates
// FHIRflat folders against per-resource schemas.
//
// # Quick Start
//
//	import (
//	    ff "github.com/fhirflat/fhirflat"
//	    "github.com/fhirflat/fhirflat/ingest"
//	)
//
//	summary, err := ingest.Transform(ctx, ingest.TransformOptions{
//	    DataFile:  "data.csv",
//	    SheetID:   "1AbC...gid",
//	    OutputDir: ".",
//	}, log,
//	    ff.WithDateLayout("2006-01-02"),
//	    ff.WithTimezone("Europe/London"),
//	)
//
// Each resource type named by the mapping sheet produces one columnar file,
// named after the lowercased resource type (e.g. encounter.parquet). Rows
// that fail validation are diverted to a <resource>_errors.csv sidecar.
//
// # Flat representation
//
// FHIR resources are represented as one row per resource instance, with
// dotted column names for nested elements. Codings collapse into parallel
// "<path>.code" (system|code) and "<path>.text" columns, references into
// "Type/id" strings, and lists with more than one entry are preserved as
// JSON under a "<path>_dense" column.
//
// # Functional Options
//
//	conv, err := ingest.NewConverter(library, log,
//	    ff.WithValidation(false),
//	    ff.WithWorkerCount(runtime.NumCPU()),
//	    ff.WithMaxErrors(100),
//	)
//	summary, err := conv.ConvertToFlat(ctx, dataReader, outDir)
//
// # Validation Phases
//
// Validation is performed in phases, each handling one aspect of the
// resource shape:
//
//   - Structure: resourceType and id shape
//   - Required: spec-required fields present
//   - Primitives: dates, numbers, system|code well-formedness
//   - Cardinality: scalar vs list fields
//   - References: Type/id format against known resource types
//   - Invariants: resource-level FHIRPath expressions
//
// # Architecture
//
// The root package holds the shared Issue/Result/Options/Metrics surface.
// Subpackages do the work: mapping (mapping sheets), expand (flat to FHIR),
// flatten (FHIR to flat), engine/pipeline/phase (validation), flatfile
// (columnar I/O), ingest (the transform driver), stream (NDJSON bulk
// import) and archive (folder compression).
package fhirflat
