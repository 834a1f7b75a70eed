// Package main implements the fhirflat CLI tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	ff "github.com/fhirflat/fhirflat"
	"github.com/fhirflat/fhirflat/config"
	"github.com/fhirflat/fhirflat/ingest"
	"github.com/fhirflat/fhirflat/pkg/logger"
)

const usage = `fhirflat - convert clinical data to flat FHIR parquet files

Usage:
  fhirflat transform <data-file> <sheet-id> <date-layout> <timezone> [options]
  fhirflat validate <folder> [options]

Examples:
  fhirflat transform data.csv 1AbCdEfG 2006-01-02 Europe/London
  fhirflat transform data.csv ./mappings 02/01/2006 UTC -local
  fhirflat transform data.csv 1AbCdEfG 2006-01-02 UTC -no-validate
  fhirflat transform data.csv 1AbCdEfG 2006-01-02 UTC -o /tmp/out -output json
  fhirflat validate fhirflat_output -c zip
  fhirflat validate fhirflat_output -output json

Transform options:
`

// OutputFormat specifies the report format.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	switch args[0] {
	case "transform":
		return runTransform(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "-v", "version":
		fmt.Printf("fhirflat v%s\n", ff.Version)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "fhirflat: unknown command %q\n\n", args[0])
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func setup(level, format string) (*zap.Logger, *config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if level == "" {
		level = cfg.LogLevel
	}
	if format == "" {
		format = cfg.LogFormat
	}
	log, err := logger.New(level, format)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return log, cfg, nil
}

func runTransform(args []string) int {
	fs := flag.NewFlagSet("transform", flag.ExitOnError)
	noValidate := fs.Bool("no-validate", false, "Skip validation; write all mapped rows")
	local := fs.Bool("local", false, "Treat the sheet argument as a local mapping folder")
	strict := fs.Bool("strict", false, "Treat warnings as errors")
	workers := fs.Int("workers", 0, "Conversion workers (0 = one per CPU)")
	outDir := fs.String("o", "", "Output directory (default: FHIRFLAT_OUTPUT_DIR or .)")
	output := fs.String("output", "text", "Report format: text, json")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) < 4 {
		fs.Usage()
		return 2
	}
	dataFile, sheetID, dateLayout, tzName := rest[0], rest[1], rest[2], rest[3]
	// Options may also trail the positional arguments.
	fs.Parse(rest[4:])

	log, cfg, err := setup(*logLevel, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "fhirflat: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	workerCount := *workers
	if workerCount == 0 {
		workerCount = cfg.Workers
	}

	opts := []ff.Option{
		ff.WithValidation(!*noValidate),
		ff.WithStrictMode(*strict),
		ff.WithDateLayout(dateLayout),
		ff.WithTimezone(tzName),
		ff.WithWorkerCount(workerCount),
		ff.WithMaxErrors(cfg.MaxErrors),
	}

	outputDir := cfg.OutputDir
	if *outDir != "" {
		outputDir = *outDir
	}

	topts := ingest.TransformOptions{
		DataFile:     dataFile,
		SheetID:      sheetID,
		MappingDir:   *local || sheetID == cfg.MappingDir && cfg.MappingDir != "",
		SheetBaseURL: cfg.SheetBaseURL,
		HTTPTimeout:  time.Duration(cfg.HTTPTimeoutSeconds) * time.Second,
		OutputDir:    outputDir,
	}

	start := time.Now()
	summary, err := ingest.Transform(ctx, topts, log, opts...)
	if err != nil {
		log.Error("transform failed", zap.Error(err))
		return 1
	}

	switch OutputFormat(strings.ToLower(*output)) {
	case OutputJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			log.Error("encode summary", zap.Error(err))
			return 1
		}
	default:
		fmt.Printf("Transformed %d rows in %s\n", summary.TotalRows, time.Since(start).Round(time.Millisecond))
		for resource, rs := range summary.Resources {
			fmt.Printf("  %-24s %d written, %d rejected\n", resource, rs.Written, rs.Rejected)
		}
		if rejected := summary.Rejected(); rejected > 0 {
			fmt.Printf("%d rows rejected; see *_errors.csv for details\n", rejected)
		}
	}

	if summary.Rejected() > 0 {
		return 1
	}
	return 0
}

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	compress := fs.String("c", "", "Archive the folder on success: zip, tar, tar.gz, tar.zst")
	output := fs.String("output", "text", "Report format: text, json")
	strict := fs.Bool("strict", false, "Treat warnings as errors")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) < 1 {
		fs.Usage()
		return 2
	}
	folder := rest[0]
	// Options may also trail the folder argument.
	fs.Parse(rest[1:])

	log, cfg, err := setup(*logLevel, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "fhirflat: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	opts := []ff.Option{
		ff.WithStrictMode(*strict),
		ff.WithMaxErrors(cfg.MaxErrors),
	}

	report, err := ingest.ValidateFolder(ctx, folder, *compress, log, opts...)
	if err != nil {
		log.Error("validate failed", zap.Error(err))
		return 1
	}

	switch OutputFormat(strings.ToLower(*output)) {
	case OutputJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Error("encode report", zap.Error(err))
			return 1
		}
	default:
		printTextReport(report)
	}

	if !report.Valid() {
		return 1
	}
	return 0
}

func printTextReport(report *ingest.FolderReport) {
	fmt.Printf("Validated %d rows across %d files in %s\n",
		report.TotalRows(), len(report.Files), report.Duration.Round(time.Millisecond))

	for _, f := range report.Files {
		status := "ok"
		if f.Invalid > 0 {
			status = fmt.Sprintf("%d invalid", f.Invalid)
		}
		fmt.Printf("  %-24s %d rows, %s\n", f.ResourceType, f.Rows, status)

		for _, issue := range f.Issues {
			fmt.Printf("    [%s] row %d: %s", issue.Severity, issue.Row, issue.Diagnostics)
			if len(issue.Expression) > 0 {
				fmt.Printf(" @ %s", strings.Join(issue.Expression, ", "))
			}
			fmt.Println()
		}
	}

	if report.Archive != "" {
		fmt.Printf("Archived to %s\n", report.Archive)
	}
}
