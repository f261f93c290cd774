package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "BACKBLAST_"
	envFileKey = "BACKBLAST_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if BACKBLAST_CONFIG is set
//  3. env (prefix BACKBLAST_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envFileKey); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// BACKBLAST_STORE_DSN -> store_dsn; underscores are kept to match the flat tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting that cannot be wired.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.SinkAttempts <= 0:
		return fmt.Errorf("%w: sink_attempts must be positive", ErrInvalidConfig)
	case c.PersonTable == "" || c.EventTable == "" || c.PersonTable == c.EventTable:
		return fmt.Errorf("%w: person_table and event_table must be set and distinct", ErrInvalidConfig)
	}

	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn is required for %s", ErrInvalidConfig, c.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}

	switch c.ReferenceSource {
	case SourceStore:
	case SourceFile:
		if c.ReferenceFile == "" {
			return fmt.Errorf("%w: reference_file is required for the file source", ErrInvalidConfig)
		}
	case SourceSheets:
		if c.SheetsSpreadsheetID == "" {
			return fmt.Errorf("%w: sheets_spreadsheet_id is required for the sheets source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown reference_source %q", ErrInvalidConfig, c.ReferenceSource)
	}

	switch c.SinkDriver {
	case SinkStore:
	case SinkXLSX:
		if c.XLSXPath == "" {
			return fmt.Errorf("%w: xlsx_path is required for the xlsx sink", ErrInvalidConfig)
		}
	case SinkCSV:
		if c.CSVDir == "" {
			return fmt.Errorf("%w: csv_dir is required for the csv sink", ErrInvalidConfig)
		}
	case SinkSheets:
		if c.SheetsSpreadsheetID == "" {
			return fmt.Errorf("%w: sheets_spreadsheet_id is required for the sheets sink", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown sink_driver %q", ErrInvalidConfig, c.SinkDriver)
	}

	if c.SheetsMirrorRaw && c.SheetsSpreadsheetID == "" {
		return fmt.Errorf("%w: sheets_spreadsheet_id is required to mirror raw submissions", ErrInvalidConfig)
	}
	return nil
}
