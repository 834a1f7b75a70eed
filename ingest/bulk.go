package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/engine"
	"github.com/fhirflat/fhirflat/flatfile"
	"github.com/fhirflat/fhirflat/flatten"
	"github.com/fhirflat/fhirflat/stream"
)

// BulkImport flattens a FHIR bulk export file (newline-delimited
// JSON, one resource type per file) into a flat parquet file in
// outDir. Resources failing validation are skipped.
func BulkImport(ctx context.Context, r io.Reader, outDir string, log *zap.Logger, opts ...ff.Option) (*ResourceSummary, error) {
	start := time.Now()
	if log == nil {
		log = zap.NewNop()
	}

	validator, err := engine.New(opts...)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ingest: create output folder: %w", err)
	}

	process := func(ctx context.Context, resource map[string]any) (map[string]any, *ff.Result, error) {
		rt, _ := resource["resourceType"].(string)

		result, err := validator.ValidateMap(ctx, resource)
		if err != nil {
			return nil, result, err
		}
		if result.HasErrors() {
			return nil, result, nil
		}

		spec, err := validator.Registry().Lookup(rt)
		if err != nil {
			return nil, result, err
		}

		flat, issues := flatten.Resource(resource, spec)
		result.AddIssues(issues)
		if hasError(issues) {
			return nil, result, nil
		}
		return flat, result, nil
	}

	flattener := stream.NewBulkFlattener(process).
		WithWorkerCount(validator.Options().WorkerCount)

	agg := stream.Aggregate(flattener.FlattenStreamParallel(ctx, r))

	for _, perr := range agg.ProcessingErrors {
		log.Warn("bulk line failed", zap.Error(perr))
	}

	rs := &ResourceSummary{
		Rows:     agg.TotalEntries,
		Written:  len(agg.Rows),
		Rejected: agg.TotalEntries - len(agg.Rows),
	}

	if len(agg.Rows) == 0 {
		return rs, fmt.Errorf("ingest: no valid resources in bulk file")
	}

	// Flat rows carry their type in the resourceType column.
	resourceType, _ := agg.Rows[0]["resourceType"].(string)
	if resourceType == "" {
		return rs, fmt.Errorf("ingest: bulk rows carry no resourceType")
	}

	path := filepath.Join(outDir, flatfile.FileName(resourceType))
	writeIssues, err := flatfile.WriteFile(path, resourceType, agg.Rows)
	if err != nil {
		return rs, err
	}
	rs.File = path

	// Column-level write problems (mixed types) land in the sidecar.
	if len(writeIssues) > 0 {
		log.Warn("flat file written with column issues",
			zap.String("resource", resourceType),
			zap.Int("issues", len(writeIssues)))
		wr := ff.AcquireResult()
		wr.ResourceType = resourceType
		wr.AddIssues(writeIssues)
		epath := filepath.Join(outDir, flatfile.ErrorFileName(resourceType))
		if err := flatfile.WriteErrorFile(epath, []*ff.Result{wr}); err != nil {
			wr.Release()
			return rs, err
		}
		rs.ErrorFile = epath
		wr.Release()
	}

	log.Info("bulk import complete",
		zap.String("resource", resourceType),
		zap.Int("rows", rs.Rows),
		zap.Int("written", rs.Written),
		zap.Duration("duration", time.Since(start)))

	return rs, nil
}
