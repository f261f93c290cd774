// Package bootstrap opens the store, reference source, sinks and side
// effect adapters selected by configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"

	"github.com/f3peakcity/f3-bot/internal/adapters/chat"
	"github.com/f3peakcity/f3-bot/internal/adapters/mq/worker"
	"github.com/f3peakcity/f3-bot/internal/adapters/repository"
	"github.com/f3peakcity/f3-bot/internal/adapters/repository/postgres"
	"github.com/f3peakcity/f3-bot/internal/adapters/repository/sqlite"
	"github.com/f3peakcity/f3-bot/internal/adapters/sheets"
	"github.com/f3peakcity/f3-bot/internal/adapters/sink"
	"github.com/f3peakcity/f3-bot/internal/adapters/source"
	"github.com/f3peakcity/f3-bot/internal/config"
	"github.com/f3peakcity/f3-bot/internal/domain/report"
	"github.com/f3peakcity/f3-bot/pkg/logger"
)

// ErrUnknownDriver is returned for a driver name config.Validate would reject.
var ErrUnknownDriver = errors.New("unknown driver")

// TableReader reads reporting tables back from wherever they were written.
type TableReader interface {
	Table(ctx context.Context, name string) (report.Table, error)
}

// Resources holds everything opened for one process. Close releases it.
type Resources struct {
	Store    repository.Backend
	Venues   source.Venues
	Sink     sink.TableSink
	Tables   TableReader
	Notifier worker.Notifier
	Mirror   worker.Mirror

	sheets *sheets.Client
}

// Open builds Resources from cfg. Sheets are only dialled when a setting
// needs them; chat is only wired when a token is configured.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*Resources, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r := &Resources{Store: store}

	if needsSheets(cfg) {
		var clientOpts []option.ClientOption
		if cfg.SheetsCredentialsFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.SheetsCredentialsFile))
		}
		r.sheets, err = sheets.New(ctx, cfg.SheetsSpreadsheetID, clientOpts,
			sheets.WithReferenceRange(cfg.SheetsReferenceRange),
			sheets.WithRawRange(cfg.SheetsRawRange),
			sheets.WithLogger(log.Named("sheets")))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	switch cfg.ReferenceSource {
	case config.SourceStore:
		r.Venues = store
	case config.SourceSheets:
		r.Venues = r.sheets
	case config.SourceFile:
		r.Venues = source.NewFileVenues(cfg.ReferenceFile)
	default:
		_ = store.Close()
		return nil, fmt.Errorf("%w: reference_source %q", ErrUnknownDriver, cfg.ReferenceSource)
	}

	var out sink.TableSink
	switch cfg.SinkDriver {
	case config.SinkStore:
		out, r.Tables = store, store
	case config.SinkSheets:
		out, r.Tables = r.sheets, r.sheets
	case config.SinkXLSX:
		x := sink.NewXLSX(cfg.XLSXPath)
		out, r.Tables = x, x
	case config.SinkCSV:
		d := sink.NewCSVDir(cfg.CSVDir)
		out, r.Tables = d, d
	default:
		_ = store.Close()
		return nil, fmt.Errorf("%w: sink_driver %q", ErrUnknownDriver, cfg.SinkDriver)
	}
	r.Sink = sink.WithRetry(out, cfg.SinkDriver,
		sink.WithAttempts(cfg.SinkAttempts),
		sink.WithBackoff(cfg.SinkBackoff),
		sink.WithLogger(log.Named("sink")))

	if cfg.SheetsMirrorRaw {
		r.Mirror = r.sheets
	}
	if cfg.ChatToken != "" {
		r.Notifier = chat.NewSlack(cfg.ChatToken,
			chat.WithDefaultChannel(cfg.ChatDefaultChannel),
			chat.WithFirstFChannel(cfg.ChatFirstFChannel),
			chat.WithThirdFChannel(cfg.ChatThirdFChannel),
			chat.WithLogger(log.Named("chat")))
	}
	return r, nil
}

// OpenStore opens only the submission store.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Backend, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return repository.NewMemoryStore(), nil
	case config.DriverSQLite:
		st, err := sqlite.Open(cfg.StoreDSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("%w: store_driver %q", ErrUnknownDriver, cfg.StoreDriver)
	}
}

// Close releases the store.
func (r *Resources) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

func needsSheets(cfg *config.Config) bool {
	return cfg.ReferenceSource == config.SourceSheets ||
		cfg.SinkDriver == config.SinkSheets ||
		cfg.SheetsMirrorRaw
}
