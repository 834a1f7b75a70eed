package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/mapping"
)

// TransformOptions configures a full transform run.
type TransformOptions struct {
	// DataFile is the raw tabular input.
	DataFile string

	// SheetID is the Google Sheet workbook id holding the mapping,
	// or a local folder of mapping CSVs when MappingDir is true.
	SheetID string

	// MappingDir treats SheetID as a local folder.
	MappingDir bool

	// SheetBaseURL overrides the sheet export endpoint.
	SheetBaseURL string

	// HTTPTimeout bounds sheet downloads.
	HTTPTimeout time.Duration

	// OutputDir is where the fhirflat_output folder lands.
	OutputDir string
}

// OutputFolderName is the folder created for transform output.
const OutputFolderName = "fhirflat_output"

// Transform runs the full conversion: load the mapping workbook, read
// the data file, and write one flat parquet file per resource type
// into <OutputDir>/fhirflat_output.
func Transform(ctx context.Context, topts TransformOptions, log *zap.Logger, opts ...ff.Option) (*Summary, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var src mapping.Source
	if topts.MappingDir {
		src = mapping.NewDirSource(topts.SheetID)
	} else {
		options := ff.DefaultOptions()
		for _, opt := range opts {
			opt(options)
		}
		baseURL := topts.SheetBaseURL
		if baseURL == "" {
			baseURL = options.SheetBaseURL
		}
		src = mapping.NewSheetSource(baseURL, topts.SheetID, topts.HTTPTimeout, options.SheetCacheSize)
	}

	library, err := mapping.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	log.Info("mapping loaded", zap.Strings("resources", library.Resources()))

	converter, err := NewConverter(library, log, opts...)
	if err != nil {
		return nil, err
	}

	data, err := os.Open(topts.DataFile)
	if err != nil {
		return nil, fmt.Errorf("ingest: open data file: %w", err)
	}
	defer data.Close()

	outDir := topts.OutputDir
	if outDir == "" {
		outDir = "."
	}
	return converter.ConvertToFlat(ctx, data, filepath.Join(outDir, OutputFolderName))
}
