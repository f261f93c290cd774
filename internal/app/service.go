// Package service wires the ingest path and the reshaping pipeline behind
// the dependencies the HTTP API and the command line tools need.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/f3peakcity/f3-bot/internal/adapters/mq/queue"
	"github.com/f3peakcity/f3-bot/internal/adapters/mq/worker"
	"github.com/f3peakcity/f3-bot/internal/adapters/repository"
	"github.com/f3peakcity/f3-bot/internal/domain/dedupe"
	"github.com/f3peakcity/f3-bot/internal/domain/model"
	"github.com/f3peakcity/f3-bot/pkg/logger"
	"github.com/f3peakcity/f3-bot/pkg/metrics"
)

// Ingest errors.
var (
	ErrNotStarted        = errors.New("ingest service not started")
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrQueueFull         = errors.New("submission queue full")
)

// Service accepts submissions, drops repeats by id and hands the rest to a
// worker pool that stores them and posts their summaries.
type Service struct {
	mu sync.RWMutex

	store    repository.Store
	notifier worker.Notifier
	mirror   worker.Mirror
	deduper  dedupe.Deduper
	queue    *queue.InMemoryQueue
	pool     *worker.Pool

	workerCount int
	queueSize   int
	dedupeSize  int

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued submissions.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many recent ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets where submissions are persisted. The default is an
// in-memory store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithNotifier sets where chat summaries are posted.
func WithNotifier(n worker.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMirror sets the raw log stored submissions are appended to.
func WithMirror(m worker.Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   10_000,
		dedupeSize:  100_000,
		logger:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	return s
}

// Start builds the queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	opts := []worker.Option{
		worker.WithLogger(s.logger),
		worker.WithOnFailure(s.Unrecord),
	}
	if s.notifier != nil {
		opts = append(opts, worker.WithNotifier(s.notifier))
	}
	if s.mirror != nil {
		opts = append(opts, worker.WithMirror(s.mirror))
	}
	s.pool = worker.NewPool(s.workerCount, s.queue, s.store, opts...)
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "ingest service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize))
	return nil
}

// Stop closes the queue and waits for queued submissions to be stored.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	err := s.pool.Shutdown(ctx)
	s.logger.Info(ctx, "ingest service stopped", logger.Int64("stored", s.pool.Processed()))
	return err
}

// Submit validates s and queues it for storage. It reports duplicate when
// the id was already accepted.
func (s *Service) Submit(ctx context.Context, sub model.Submission) (duplicate bool, err error) { //nolint:gocritic // hugeParam: copied into the queue anyway
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return false, ErrNotStarted
	}

	if sub.EventDateOriginal.IsZero() {
		sub.EventDateOriginal = sub.EventDate
	}
	if err := sub.Validate(); err != nil {
		metrics.RecordSubmissionRejected("invalid")
		return false, fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}

	if s.deduper.SeenAndRecord(ctx, sub.ID) {
		metrics.RecordSubmissionDuplicate()
		s.logger.Debug(ctx, "duplicate submission", logger.String("backblast_id", sub.ID))
		return true, nil
	}
	if !s.queue.Enqueue(ctx, sub) {
		s.deduper.Unrecord(ctx, sub.ID)
		metrics.RecordSubmissionRejected("queue_full")
		return false, ErrQueueFull
	}
	metrics.RecordSubmissionReceived()
	return false, nil
}

// Unrecord forgets id so the same submission can be accepted again.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Store returns the submission store.
func (s *Service) Store() repository.Store { return s.store }

// GetStats returns ingest statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if s.pool == nil {
		return stats
	}
	stats["queueLength"] = s.queue.Len(ctx)
	stats["dedupeEntries"] = s.deduper.Size()
	stats["stored"] = s.pool.Processed()
	if n, err := s.store.Count(ctx); err == nil {
		stats["totalSubmissions"] = n
	}
	return stats
}
