// Package config defines service configuration and how it is loaded.
//
// Keys are flat so that every field can be set from YAML or from a single
// BACKBLAST_-prefixed environment variable.
package config

import (
	"runtime"
	"time"
)

// Store, reference and sink drivers understood by the wiring in cmd/.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	SourceStore  = "store"
	SourceSheets = "sheets"
	SourceFile   = "file"

	SinkStore  = "store"
	SinkSheets = "sheets"
	SinkXLSX   = "xlsx"
	SinkCSV    = "csv"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the record encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory submission queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of ingest workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize sets the size of the submission id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// StoreDriver selects where submissions live: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`
	// StoreDSN is a file path for sqlite or a connection string for postgres.
	StoreDSN string `koanf:"store_dsn"`

	// ReferenceSource selects where the venue table is read: store, sheets or file.
	ReferenceSource string `koanf:"reference_source"`
	// ReferenceFile is the YAML venue table used when ReferenceSource is file.
	ReferenceFile string `koanf:"reference_file"`

	// SinkDriver selects where reporting tables are written: store, sheets, xlsx or csv.
	SinkDriver string `koanf:"sink_driver"`
	// XLSXPath is the workbook written when SinkDriver is xlsx.
	XLSXPath string `koanf:"xlsx_path"`
	// CSVDir receives one <table>.csv per table when SinkDriver is csv.
	CSVDir string `koanf:"csv_dir"`
	// SinkAttempts bounds write attempts for transient sink failures.
	SinkAttempts int `koanf:"sink_attempts"`
	// SinkBackoff is the first retry delay; it doubles per attempt.
	SinkBackoff time.Duration `koanf:"sink_backoff"`

	SheetsSpreadsheetID   string `koanf:"sheets_spreadsheet_id"`
	SheetsCredentialsFile string `koanf:"sheets_credentials_file"`
	SheetsReferenceRange  string `koanf:"sheets_reference_range"`
	// SheetsRawRange receives one appended row block per stored submission
	// when SheetsMirrorRaw is set.
	SheetsRawRange  string `koanf:"sheets_raw_range"`
	SheetsMirrorRaw bool   `koanf:"sheets_mirror_raw"`

	// PersonTable and EventTable name the two reporting destinations.
	PersonTable string `koanf:"person_table"`
	EventTable  string `koanf:"event_table"`

	// PipelineTargetCategory keeps only venues of this category; empty keeps all.
	PipelineTargetCategory string `koanf:"pipeline_target_category"`
	// PipelineDefaultVenue replaces an empty venue label before lookup.
	PipelineDefaultVenue string `koanf:"pipeline_default_venue"`
	// PipelineInterval schedules runs inside the server; zero disables it.
	PipelineInterval time.Duration `koanf:"pipeline_interval"`

	ChatToken          string `koanf:"chat_token"`
	ChatDefaultChannel string `koanf:"chat_default_channel"`
	ChatFirstFChannel  string `koanf:"chat_first_f_channel"`
	ChatThirdFChannel  string `koanf:"chat_third_f_channel"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		QueueSize:              10_000,
		WorkerCount:            runtime.NumCPU(),
		DedupeSize:             100_000,
		StoreDriver:            DriverMemory,
		ReferenceSource:        SourceStore,
		SinkDriver:             SinkStore,
		XLSXPath:               "backblast_report.xlsx",
		CSVDir:                 ".",
		SinkAttempts:           3,
		SinkBackoff:            500 * time.Millisecond,
		SheetsReferenceRange:   "__REFERENCE_AO_INFO!A1:H",
		SheetsRawRange:         "__RAW",
		PersonTable:            "__PROCESSED_PAX",
		EventTable:             "__PROCESSED_AO",
		PipelineTargetCategory: "1stf",
		PipelineDefaultVenue:   "1stf",
	}
}
