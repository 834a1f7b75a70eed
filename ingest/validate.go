package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/archive"
	"github.com/fhirflat/fhirflat/engine"
	"github.com/fhirflat/fhirflat/flatfile"
)

// FileReport reports validation of one flat file.
type FileReport struct {
	File         string     `json:"file"`
	ResourceType string     `json:"resourceType"`
	Rows         int        `json:"rows"`
	Valid        int        `json:"valid"`
	Invalid      int        `json:"invalid"`
	Issues       []ff.Issue `json:"issues,omitempty"`
}

// FolderReport reports validation of a whole flat folder.
type FolderReport struct {
	Folder   string        `json:"folder"`
	Files    []FileReport  `json:"files"`
	Archive  string        `json:"archive,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Valid reports whether every row in every file passed.
func (r *FolderReport) Valid() bool {
	for _, f := range r.Files {
		if f.Invalid > 0 {
			return false
		}
	}
	return true
}

// TotalRows returns the row count across all files.
func (r *FolderReport) TotalRows() int {
	n := 0
	for _, f := range r.Files {
		n += f.Rows
	}
	return n
}

// ValidateFolder validates every flat parquet file in a folder. When
// compress names an archive format and all rows pass, the folder is
// packed into a single archive next to it.
func ValidateFolder(ctx context.Context, dir, compress string, log *zap.Logger, opts ...ff.Option) (*FolderReport, error) {
	start := time.Now()
	if log == nil {
		log = zap.NewNop()
	}

	validator, err := engine.New(opts...)
	if err != nil {
		return nil, err
	}

	files, err := flatfile.ListFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("ingest: no flat files in %s", dir)
	}

	report := &FolderReport{Folder: dir}

	for _, path := range files {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		fr, err := validateFile(ctx, validator, path)
		if err != nil {
			return report, err
		}
		report.Files = append(report.Files, *fr)

		log.Info("validated",
			zap.String("file", filepath.Base(path)),
			zap.Int("rows", fr.Rows),
			zap.Int("invalid", fr.Invalid))
	}

	if compress != "" && report.Valid() {
		format, err := archive.ParseFormat(compress)
		if err != nil {
			return report, err
		}
		out, err := archive.Compress(dir, format)
		if err != nil {
			return report, err
		}
		report.Archive = out
		log.Info("archived", zap.String("archive", out))
	}

	report.Duration = time.Since(start)
	return report, nil
}

// validateFile validates all rows of one flat file.
func validateFile(ctx context.Context, validator *engine.Validator, path string) (*FileReport, error) {
	resourceType := flatfile.ResourceTypeOf(path)

	spec, err := validator.Registry().Lookup(resourceType)
	if err != nil {
		return nil, fmt.Errorf("ingest: %s: %w", path, err)
	}

	rows, err := flatfile.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fr := &FileReport{
		File:         path,
		ResourceType: spec.Type,
		Rows:         len(rows),
	}

	for i, row := range rows {
		select {
		case <-ctx.Done():
			return fr, ctx.Err()
		default:
		}

		_, result, err := validator.ValidateFlat(ctx, row, spec.Type)
		if err != nil {
			return fr, err
		}

		if result.HasErrors() {
			fr.Invalid++
			for _, issue := range result.Issues {
				issue.Row = i + 1
				fr.Issues = append(fr.Issues, issue)
			}
		} else {
			fr.Valid++
		}
		result.Release()
	}

	return fr, nil
}
