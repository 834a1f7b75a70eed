// Package stream provides streaming flattening for FHIR bulk export
// files. A bulk file is newline-delimited JSON with one resource per
// line, all of the same type.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"

	ff "github.com/fhirflat/fhirflat"
)

// EntryResult represents the outcome for a single bulk file line.
type EntryResult struct {
	// Index is the position of the line in the file
	Index int

	// ResourceType is the type of resource on the line
	ResourceType string

	// ResourceID is the id of the resource (if present)
	ResourceID string

	// Flat holds the flattened row when processing succeeded
	Flat map[string]any

	// Result contains the validation issues for this entry
	Result *ff.Result

	// Error is set if there was an error processing the entry
	Error error
}

// ProcessFunc turns a parsed resource into its flat row.
type ProcessFunc func(ctx context.Context, resource map[string]any) (map[string]any, *ff.Result, error)

// BulkFlattener flattens bulk export files in a streaming fashion.
type BulkFlattener struct {
	// process is the function applied to each resource
	process ProcessFunc

	// bufferSize is the channel buffer size
	bufferSize int

	// workerCount is the number of parallel workers
	workerCount int
}

// NewBulkFlattener creates a new streaming bulk flattener.
func NewBulkFlattener(process ProcessFunc) *BulkFlattener {
	return &BulkFlattener{
		process:     process,
		bufferSize:  100,
		workerCount: 4,
	}
}

// WithBufferSize sets the channel buffer size.
func (f *BulkFlattener) WithBufferSize(size int) *BulkFlattener {
	if size > 0 {
		f.bufferSize = size
	}
	return f
}

// WithWorkerCount sets the number of parallel workers.
func (f *BulkFlattener) WithWorkerCount(count int) *BulkFlattener {
	if count > 0 {
		f.workerCount = count
	}
	return f
}

// SniffResourceType reads the resourceType of a JSON line without a
// full parse.
func SniffResourceType(line []byte) (string, error) {
	rt, err := jsonparser.GetString(line, "resourceType")
	if err != nil {
		return "", fmt.Errorf("stream: no resourceType: %w", err)
	}
	return rt, nil
}

// FlattenStream processes a bulk file line by line, emitting results
// in file order.
func (f *BulkFlattener) FlattenStream(ctx context.Context, r io.Reader) <-chan *EntryResult {
	results := make(chan *EntryResult, f.bufferSize)

	go func() {
		defer close(results)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

		index := 0
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				results <- &EntryResult{Index: -1, Error: ctx.Err()}
				return
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			// Scanner reuses its buffer between lines
			buf := make([]byte, len(line))
			copy(buf, line)

			results <- f.processLine(ctx, buf, index)
			index++
		}

		if err := scanner.Err(); err != nil {
			results <- &EntryResult{Index: -1, Error: fmt.Errorf("stream: read: %w", err)}
		}
	}()

	return results
}

// FlattenStreamParallel processes lines concurrently while preserving
// file order in the emitted results.
func (f *BulkFlattener) FlattenStreamParallel(ctx context.Context, r io.Reader) <-chan *EntryResult {
	results := make(chan *EntryResult, f.bufferSize)

	go func() {
		defer close(results)

		type workItem struct {
			index int
			line  []byte
		}

		workChan := make(chan workItem, f.bufferSize)
		resultChan := make(chan *EntryResult, f.bufferSize)

		var wg sync.WaitGroup
		for i := 0; i < f.workerCount; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for work := range workChan {
					select {
					case <-ctx.Done():
						return
					default:
					}
					resultChan <- f.processLine(ctx, work.line, work.index)
				}
			}()
		}

		total := 0
		readErr := make(chan error, 1)
		go func() {
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(line) == 0 {
					continue
				}
				buf := make([]byte, len(line))
				copy(buf, line)
				select {
				case workChan <- workItem{index: total, line: buf}:
					total++
				case <-ctx.Done():
				}
			}
			readErr <- scanner.Err()
			close(workChan)
			wg.Wait()
			close(resultChan)
		}()

		// Collect results and reorder
		pending := make(map[int]*EntryResult)
		nextIndex := 0

		for result := range resultChan {
			pending[result.Index] = result

			for {
				if r, ok := pending[nextIndex]; ok {
					results <- r
					delete(pending, nextIndex)
					nextIndex++
				} else {
					break
				}
			}
		}

		for {
			r, ok := pending[nextIndex]
			if !ok {
				break
			}
			results <- r
			delete(pending, nextIndex)
			nextIndex++
		}

		if err := <-readErr; err != nil {
			results <- &EntryResult{Index: -1, Error: fmt.Errorf("stream: read: %w", err)}
		}
	}()

	return results
}

// processLine parses and processes a single NDJSON line.
func (f *BulkFlattener) processLine(ctx context.Context, line []byte, index int) *EntryResult {
	result := &EntryResult{Index: index}

	rt, err := SniffResourceType(line)
	if err != nil {
		result.Error = err
		return result
	}
	result.ResourceType = rt

	if id, err := jsonparser.GetString(line, "id"); err == nil {
		result.ResourceID = id
	}

	var resource map[string]any
	if err := json.Unmarshal(line, &resource); err != nil {
		result.Error = fmt.Errorf("stream: line %d: %w", index, err)
		return result
	}

	if f.process == nil {
		return result
	}

	flat, vr, err := f.process(ctx, resource)
	result.Flat = flat
	result.Result = vr
	result.Error = err
	return result
}

// StreamResult aggregates results from a streaming flatten.
type StreamResult struct {
	// TotalEntries is the number of lines processed
	TotalEntries int

	// EntriesWithErrors is the count of lines that had errors
	EntriesWithErrors int

	// EntriesWithWarnings is the count of lines with warnings only
	EntriesWithWarnings int

	// TotalIssues is the total number of issues found
	TotalIssues int

	// ProcessingErrors are errors raised outside validation
	ProcessingErrors []error

	// Rows holds the flattened rows in file order, skipping failures
	Rows []map[string]any
}

// Aggregate collects all results from a streaming flatten.
func Aggregate(results <-chan *EntryResult) *StreamResult {
	agg := &StreamResult{}

	for result := range results {
		if result.Error != nil {
			agg.ProcessingErrors = append(agg.ProcessingErrors, result.Error)
			continue
		}
		if result.Index < 0 {
			continue
		}

		agg.TotalEntries++

		if result.Flat != nil {
			agg.Rows = append(agg.Rows, result.Flat)
		}

		if result.Result == nil {
			continue
		}

		issues := result.Result.Issues
		if len(issues) > 0 {
			agg.TotalIssues += len(issues)

			hasError := false
			hasWarning := false
			for _, issue := range issues {
				switch issue.Severity {
				case ff.SeverityError, ff.SeverityFatal:
					hasError = true
				case ff.SeverityWarning:
					hasWarning = true
				}
			}

			if hasError {
				agg.EntriesWithErrors++
			} else if hasWarning {
				agg.EntriesWithWarnings++
			}
		}

		result.Result.Release()
	}

	return agg
}

// HasErrors returns true if any lines failed.
func (r *StreamResult) HasErrors() bool {
	return r.EntriesWithErrors > 0 || len(r.ProcessingErrors) > 0
}

// Summary returns a human-readable summary of the run.
func (r *StreamResult) Summary() string {
	return fmt.Sprintf(
		"Flattened %d entries: %d with errors, %d with warnings, %d total issues",
		r.TotalEntries,
		r.EntriesWithErrors,
		r.EntriesWithWarnings,
		r.TotalIssues,
	)
}
