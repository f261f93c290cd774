package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/f3peakcity/f3-bot/internal/adapters/sink"
	"github.com/f3peakcity/f3-bot/internal/adapters/source"
	"github.com/f3peakcity/f3-bot/internal/domain/quality"
	"github.com/f3peakcity/f3-bot/internal/domain/report"
	"github.com/f3peakcity/f3-bot/internal/domain/reshape"
	"github.com/f3peakcity/f3-bot/internal/domain/types"
	"github.com/f3peakcity/f3-bot/pkg/logger"
	"github.com/f3peakcity/f3-bot/pkg/metrics"
)

// Pipeline errors.
var (
	ErrRunInProgress = errors.New("pipeline run already in progress")
	ErrSource        = errors.New("pipeline source failed")
	ErrSink          = errors.New("pipeline sink failed")
)

// Default reporting table names.
const (
	DefaultPersonTable = "__PROCESSED_PAX"
	DefaultEventTable  = "__PROCESSED_AO"
	defaultCategory    = "1stf"
)

// Pipeline reshapes every stored submission into the person-level and
// event-level reporting tables and writes both in one sink call.
type Pipeline struct {
	submissions source.Submissions
	venues      source.Venues
	sink        sink.TableSink

	personTable    string
	eventTable     string
	targetCategory string
	defaultVenue   string
	logger         logger.Logger

	run  sync.Mutex
	mu   sync.RWMutex
	last *types.RunResult
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithTables sets the reporting table names.
func WithTables(person, event string) PipelineOption {
	return func(p *Pipeline) {
		if person != "" {
			p.personTable = person
		}
		if event != "" {
			p.eventTable = event
		}
	}
}

// WithTargetCategory keeps only records of one venue category. An empty
// category keeps every record.
func WithTargetCategory(category string) PipelineOption {
	return func(p *Pipeline) { p.targetCategory = category }
}

// WithDefaultVenue sets the label used for records without one.
func WithDefaultVenue(label string) PipelineOption {
	return func(p *Pipeline) {
		if label != "" {
			p.defaultVenue = label
		}
	}
}

// WithPipelineLogger sets the pipeline logger.
func WithPipelineLogger(l logger.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline builds a pipeline. out may be nil for a pipeline that is only
// ever built, never run.
func NewPipeline(subs source.Submissions, venues source.Venues, out sink.TableSink, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		submissions:    subs,
		venues:         venues,
		sink:           out,
		personTable:    DefaultPersonTable,
		eventTable:     DefaultEventTable,
		targetCategory: defaultCategory,
		defaultVenue:   reshape.DefaultVenueLabel,
		logger:         logger.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run builds both tables and replaces them in the sink. Only one run may be
// active at a time; a concurrent call returns ErrRunInProgress. Nothing is
// written when the context ends before the sink call or when a table fails
// its quality checks.
func (p *Pipeline) Run(ctx context.Context) (types.RunResult, error) {
	if !p.run.TryLock() {
		return types.RunResult{}, ErrRunInProgress
	}
	defer p.run.Unlock()

	res, tables, err := p.build(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		if p.sink == nil {
			err = fmt.Errorf("%w: no sink configured", ErrSink)
		} else if werr := p.sink.Replace(ctx, tables...); werr != nil {
			err = fmt.Errorf("%w: %w", ErrSink, werr)
		}
	}
	return p.finish(ctx, res, tables, err)
}

// DryRun builds both tables without writing them.
func (p *Pipeline) DryRun(ctx context.Context) (types.RunResult, []report.Table, error) {
	if !p.run.TryLock() {
		return types.RunResult{}, nil, ErrRunInProgress
	}
	defer p.run.Unlock()

	res, tables, err := p.build(ctx)
	res.DryRun = true
	res, err = p.finish(ctx, res, tables, err)
	return res, tables, err
}

// LastResult returns the result of the most recent successful written run.
func (p *Pipeline) LastResult() (types.RunResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return types.RunResult{}, false
	}
	return *p.last, true
}

// Schedule runs the pipeline every interval until ctx ends. Failed runs are
// logged and retried on the next tick.
func (p *Pipeline) Schedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Run(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
				p.logger.Error(ctx, "scheduled pipeline run failed", logger.Error(err))
			}
		}
	}
}

func (p *Pipeline) build(ctx context.Context) (types.RunResult, []report.Table, error) {
	res := types.RunResult{
		StartedAt:   time.Now().UTC(),
		PersonTable: p.personTable,
		EventTable:  p.eventTable,
	}

	records, err := p.submissions.ListSubmissions(ctx)
	if err != nil {
		return res, nil, fmt.Errorf("%w: submissions: %w", ErrSource, err)
	}
	table, err := p.venues.LoadVenues(ctx)
	if err != nil {
		return res, nil, fmt.Errorf("%w: venues: %w", ErrSource, err)
	}
	res.Stages.Loaded = len(records)

	if bad := table.BadWeekdays(); len(bad) > 0 {
		res.Stages.BadWeekdays = len(bad)
		p.logger.Warn(ctx, "ignoring out of range venue weekdays", logger.Any("venues", bad))
	}

	for _, f := range quality.CheckRecords(records) {
		metrics.RecordQualityFinding(f.Expectation)
		p.logger.Warn(ctx, "raw record expectation failed", logger.String("finding", f.String()))
		res.Stages.QualityWarnings++
	}

	records, res.Stages.VenueMisses = reshape.ResolveVenues(records, table, p.defaultVenue)
	records, res.Stages.DatesCorrected = reshape.CorrectDates(records)
	records, res.Stages.NamesResolved = reshape.ResolveNames(records)
	records, res.Stages.Duplicates = reshape.Deduplicate(records)
	records, res.Stages.Excluded = reshape.FilterCategory(records, p.targetCategory)
	res.Stages.Kept = len(records)

	if err := ctx.Err(); err != nil {
		return res, nil, err
	}

	var person, event report.Table
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		person = report.PersonTable(p.personTable, records)
		return gctx.Err()
	})
	g.Go(func() error {
		event = report.EventTable(p.eventTable, records)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return res, nil, err
	}
	res.PersonRows = len(person.Rows)
	res.EventRows = len(event.Rows)

	findings := append(quality.CheckTable(person), quality.CheckTable(event)...)
	for _, f := range findings {
		metrics.RecordQualityFinding(f.Expectation)
	}
	if err := quality.Err(findings); err != nil {
		return res, nil, err
	}
	return res, []report.Table{person, event}, nil
}

func (p *Pipeline) finish(ctx context.Context, res types.RunResult, tables []report.Table, err error) (types.RunResult, error) {
	res.Duration = time.Since(res.StartedAt)
	seconds := res.Duration.Seconds()

	metrics.RecordPipelineStage("loaded", res.Stages.Loaded)
	metrics.RecordPipelineStage("venue_miss", res.Stages.VenueMisses)
	metrics.RecordPipelineStage("bad_weekday", res.Stages.BadWeekdays)
	metrics.RecordPipelineStage("date_corrected", res.Stages.DatesCorrected)
	metrics.RecordPipelineStage("name_resolved", res.Stages.NamesResolved)
	metrics.RecordPipelineStage("duplicate", res.Stages.Duplicates)
	metrics.RecordPipelineStage("excluded", res.Stages.Excluded)

	fields := []logger.Field{
		logger.Int("loaded", res.Stages.Loaded),
		logger.Int("venue_misses", res.Stages.VenueMisses),
		logger.Int("dates_corrected", res.Stages.DatesCorrected),
		logger.Int("duplicates", res.Stages.Duplicates),
		logger.Int("excluded", res.Stages.Excluded),
		logger.Int("person_rows", res.PersonRows),
		logger.Int("event_rows", res.EventRows),
		logger.Bool("dry_run", res.DryRun),
		logger.Duration("took", res.Duration),
	}
	if err != nil {
		metrics.RecordPipelineRun("failed", seconds)
		metrics.RecordErrorByComponent("pipeline", errorKind(err))
		p.logger.Error(ctx, "pipeline run failed", append(fields, logger.Error(err))...)
		return res, err
	}

	metrics.RecordPipelineRun("ok", seconds)
	if !res.DryRun {
		metrics.UpdatePipelineLastSuccess(time.Now().Unix())
		for _, t := range tables {
			metrics.UpdateRowsWritten(t.Name, len(t.Rows))
		}
		p.mu.Lock()
		last := res
		p.last = &last
		p.mu.Unlock()
	}
	p.logger.Info(ctx, "pipeline run finished", fields...)
	return res, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrSource):
		return "source"
	case errors.Is(err, quality.ErrExpectationFailed):
		return "quality"
	case errors.Is(err, ErrSink):
		return "sink"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unknown"
	}
}
