// Package ingest converts raw tabular clinical data into flat FHIR
// parquet files and validates existing flat folders.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/engine"
	"github.com/fhirflat/fhirflat/flatfile"
	"github.com/fhirflat/fhirflat/flatten"
	"github.com/fhirflat/fhirflat/mapping"
	"github.com/fhirflat/fhirflat/worker"
)

// Converter drives the data-to-flat conversion. It holds the mapping
// library, the validation engine, and the worker pool configuration.
type Converter struct {
	validator *engine.Validator
	library   *mapping.Library
	log       *zap.Logger
}

// NewConverter builds a converter around a loaded mapping library.
func NewConverter(library *mapping.Library, log *zap.Logger, opts ...ff.Option) (*Converter, error) {
	if library == nil {
		return nil, fmt.Errorf("ingest: no mapping library")
	}
	if log == nil {
		log = zap.NewNop()
	}

	validator, err := engine.New(opts...)
	if err != nil {
		return nil, err
	}

	return &Converter{
		validator: validator,
		library:   library,
		log:       log,
	}, nil
}

// ResourceSummary reports the outcome for one resource type.
type ResourceSummary struct {
	Rows      int    `json:"rows"`
	Written   int    `json:"written"`
	Rejected  int    `json:"rejected"`
	File      string `json:"file,omitempty"`
	ErrorFile string `json:"errorFile,omitempty"`
}

// Summary reports the outcome of a conversion run.
type Summary struct {
	TotalRows int                         `json:"totalRows"`
	Resources map[string]*ResourceSummary `json:"resources"`
	Duration  time.Duration               `json:"duration"`
}

// Files returns the flat files written during the run.
func (s *Summary) Files() []string {
	var files []string
	for _, rs := range s.Resources {
		if rs.File != "" {
			files = append(files, rs.File)
		}
	}
	return files
}

// Rejected returns the total number of rejected rows.
func (s *Summary) Rejected() int {
	n := 0
	for _, rs := range s.Resources {
		n += rs.Rejected
	}
	return n
}

// ConvertToFlat reads a raw data file and writes one flat parquet
// file per mapped resource type into outDir. Rows failing validation
// are dropped from the flat file and recorded in a CSV sidecar.
func (c *Converter) ConvertToFlat(ctx context.Context, data io.Reader, outDir string) (*Summary, error) {
	start := time.Now()

	rows, err := ReadData(data)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ingest: create output folder: %w", err)
	}

	summary := &Summary{
		TotalRows: len(rows),
		Resources: make(map[string]*ResourceSummary),
	}
	c.validator.Metrics().RecordRows(len(rows))

	if unmapped := c.library.UnmappedColumns(columnsOf(rows)); len(unmapped) > 0 {
		c.log.Warn("data columns not covered by the mapping",
			zap.Strings("columns", unmapped))
	}

	applyOpts := &mapping.ApplyOptions{
		DateLayout: c.validator.Options().DateLayout,
		Timezone:   c.validator.Timezone(),
	}

	for _, resourceType := range c.library.Resources() {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		sheet, _ := c.library.Sheet(resourceType)
		rs, err := c.convertResource(ctx, resourceType, sheet, rows, applyOpts, outDir)
		if err != nil {
			return summary, err
		}
		summary.Resources[resourceType] = rs
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

// convertResource maps, validates, flattens, and writes one resource type.
func (c *Converter) convertResource(
	ctx context.Context,
	resourceType string,
	sheet *mapping.Sheet,
	rows []DataRow,
	applyOpts *mapping.ApplyOptions,
	outDir string,
) (*ResourceSummary, error) {
	rs := &ResourceSummary{}
	log := c.log.With(zap.String("resource", resourceType))

	// Map every data row to its flat form before conversion so the
	// job count is known up front.
	type rowJob struct {
		row  int
		flat map[string]any
	}
	var jobs []rowJob
	var mappingResults []*ff.Result

	for i, row := range rows {
		flats, issues := sheet.Apply(row, applyOpts)
		if len(issues) > 0 {
			mr := ff.AcquireResult()
			mr.Row = i + 1
			mr.ResourceType = resourceType
			mr.AddIssues(issues)
			mappingResults = append(mappingResults, mr)
		}
		// Mapping errors (conflicting column values) reject the row.
		if hasError(issues) {
			rs.Rejected++
			continue
		}
		for _, flat := range flats {
			if _, ok := flat["id"]; !ok {
				flat["id"] = uuid.NewString()
			}
			jobs = append(jobs, rowJob{row: i + 1, flat: flat})
		}
	}
	rs.Rows = len(jobs)

	if len(jobs) == 0 {
		if len(mappingResults) > 0 {
			path := filepath.Join(outDir, flatfile.ErrorFileName(resourceType))
			if err := flatfile.WriteErrorFile(path, mappingResults); err != nil {
				return rs, err
			}
			rs.ErrorFile = path
			for _, r := range mappingResults {
				r.Release()
			}
		}
		log.Debug("no rows mapped")
		return rs, nil
	}

	pool := worker.NewPool(c.validator, c.validator.Options().WorkerCount)
	go func() {
		for i, job := range jobs {
			ok := pool.Submit(worker.Job{
				ID:           strconv.Itoa(i),
				Row:          job.row,
				ResourceType: resourceType,
				Flat:         job.flat,
			})
			if !ok {
				return
			}
		}
	}()

	// Collect all results, then restore submission order.
	ordered := make([]*worker.JobResult, len(jobs))
	collected := 0
	for result := range pool.Results() {
		idx, err := strconv.Atoi(result.ID)
		if err == nil && idx >= 0 && idx < len(ordered) {
			ordered[idx] = result
		}
		collected++
		if collected == len(jobs) {
			break
		}
	}
	pool.Close()

	spec, err := c.validator.Registry().Lookup(resourceType)
	if err != nil {
		return rs, err
	}

	var flatRows []map[string]any
	rejected := mappingResults

	for _, result := range ordered {
		if result == nil {
			continue
		}
		if result.Error != nil {
			log.Warn("row conversion failed",
				zap.Int("row", result.Row), zap.Error(result.Error))
			rs.Rejected++
			continue
		}
		if result.Result != nil && result.Result.HasErrors() {
			rs.Rejected++
			rejected = append(rejected, result.Result)
			continue
		}

		flat, issues := flatten.Resource(result.Resource, spec)
		if result.Result != nil {
			result.Result.Release()
		}
		if hasError(issues) {
			rs.Rejected++
			fr := ff.AcquireResult()
			fr.Row = result.Row
			fr.ResourceType = resourceType
			fr.AddIssues(issues)
			rejected = append(rejected, fr)
			continue
		}
		flatRows = append(flatRows, flat)
	}
	rs.Written = len(flatRows)

	if len(flatRows) > 0 {
		path := filepath.Join(outDir, flatfile.FileName(resourceType))
		writeIssues, err := flatfile.WriteFile(path, resourceType, flatRows)
		if err != nil {
			return rs, err
		}
		rs.File = path
		// Column-level write problems (mixed types) land in the sidecar.
		if len(writeIssues) > 0 {
			log.Warn("flat file written with column issues",
				zap.Int("issues", len(writeIssues)))
			wr := ff.AcquireResult()
			wr.ResourceType = resourceType
			wr.AddIssues(writeIssues)
			rejected = append(rejected, wr)
		}
	}

	if len(rejected) > 0 {
		path := filepath.Join(outDir, flatfile.ErrorFileName(resourceType))
		if err := flatfile.WriteErrorFile(path, rejected); err != nil {
			return rs, err
		}
		rs.ErrorFile = path
		for _, r := range rejected {
			r.Release()
		}
	}

	log.Info("converted",
		zap.Int("rows", rs.Rows),
		zap.Int("written", rs.Written),
		zap.Int("rejected", rs.Rejected))

	return rs, nil
}

// columnsOf collects the distinct column names across data rows.
func columnsOf(rows []DataRow) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, row := range rows {
		for name := range row {
			if !seen[name] {
				seen[name] = true
				columns = append(columns, name)
			}
		}
	}
	return columns
}

// hasError reports whether any issue is an error or fatal.
func hasError(issues []ff.Issue) bool {
	for _, issue := range issues {
		if issue.IsError() {
			return true
		}
	}
	return false
}

// Validator exposes the underlying engine, mainly for metrics.
func (c *Converter) Validator() *engine.Validator {
	return c.validator
}
