// Package config loads tool configuration from the environment.
package config

import (
	"github.com/caarlos0/env"
)

// Config holds the environment-driven settings of the tool. Command
// line flags override whatever is loaded here.
type Config struct {
	// SheetBaseURL is the Google Sheets export endpoint mapping
	// sheets are fetched from.
	SheetBaseURL string `env:"FHIRFLAT_SHEET_BASE_URL" envDefault:"https://docs.google.com/spreadsheets/d"`

	// MappingDir points at a local folder of mapping CSVs. When set,
	// sheets are read from disk instead of the network.
	MappingDir string `env:"FHIRFLAT_MAPPING_DIR"`

	// OutputDir is where the fhirflat output folder is created.
	OutputDir string `env:"FHIRFLAT_OUTPUT_DIR" envDefault:"."`

	// HTTPTimeoutSeconds bounds mapping sheet downloads.
	HTTPTimeoutSeconds int `env:"FHIRFLAT_HTTP_TIMEOUT" envDefault:"30"`

	// Workers is the conversion worker count, 0 for one per CPU.
	Workers int `env:"FHIRFLAT_WORKERS" envDefault:"0"`

	// MaxErrors stops validation of a row after this many errors.
	MaxErrors int `env:"FHIRFLAT_MAX_ERRORS" envDefault:"0"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"FHIRFLAT_LOG_LEVEL" envDefault:"info"`

	// LogFormat is json or console.
	LogFormat string `env:"FHIRFLAT_LOG_FORMAT" envDefault:"console"`
}

// New loads the configuration from the environment.
func New() (*Config, error) {
	cfg := &Config{}
	return cfg, env.Parse(cfg)
}
