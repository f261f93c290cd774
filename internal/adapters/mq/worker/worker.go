// Package worker persists queued submissions and fans out their side
// effects.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/f3peakcity/f3-bot/internal/adapters/repository"
	"github.com/f3peakcity/f3-bot/internal/domain/model"
	"github.com/f3peakcity/f3-bot/pkg/logger"
	"github.com/f3peakcity/f3-bot/pkg/metrics"
)

const (
	sideEffectTimeout   = 30 * time.Second
	poolShutdownTimeout = 30 * time.Second
)

// Saver persists a submission. It returns repository.ErrDuplicate for an id
// that is already stored.
type Saver interface {
	Save(ctx context.Context, s model.Submission) error
}

// Notifier posts the chat summary of a stored submission.
type Notifier interface {
	Post(ctx context.Context, s model.Submission) error
}

// Mirror appends a stored submission to a secondary raw log.
type Mirror interface {
	AppendSubmission(ctx context.Context, s model.Submission) error
}

// Queue defines how workers receive submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Submission
}

// Worker drains the queue until it is closed or ctx ends.
type Worker struct {
	queue     Queue
	saver     Saver
	notifier  Notifier
	mirror    Mirror
	onFailure func(ctx context.Context, id string)
	name      string
	processed *atomic.Int64

	done   chan struct{}
	logger logger.Logger
}

// New creates a worker. Notifier and mirror are optional and best effort.
func New(q Queue, saver Saver, opts ...Option) *Worker {
	w := &Worker{
		queue:     q,
		saver:     saver,
		name:      "worker",
		processed: new(atomic.Int64),
		done:      make(chan struct{}),
		logger:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run processes submissions until the queue channel closes or ctx ends.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	for s := range w.queue.Dequeue(ctx) {
		if err := w.process(ctx, s); err != nil {
			w.logger.Error(ctx, "submission not stored",
				logger.String("backblast_id", s.ID), logger.Error(err))
		}
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) process(ctx context.Context, s model.Submission) error { //nolint:gocritic // hugeParam: received by value from the queue
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	err := w.saver.Save(ctx, s)
	metrics.RecordStoreLatency(float64(time.Since(start).Milliseconds()))
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		metrics.RecordSubmissionDuplicate()
		w.logger.Info(ctx, "submission already stored", logger.String("backblast_id", s.ID))
		return nil
	case err != nil:
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		if w.onFailure != nil {
			w.onFailure(ctx, s.ID)
		}
		return fmt.Errorf("store %s: %w", s.ID, err)
	}
	metrics.RecordSubmissionStored()
	w.processed.Add(1)

	// Side effects must not be cut short by a shutdown that arrives after the
	// submission is already stored.
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if w.mirror != nil {
		if err := w.mirror.AppendSubmission(sideCtx, s); err != nil {
			metrics.RecordErrorByComponent("worker", "mirror_error")
			w.logger.Warn(ctx, "raw mirror append failed", logger.String("backblast_id", s.ID), logger.Error(err))
		}
	}
	if w.notifier != nil {
		if err := w.notifier.Post(sideCtx, s); err != nil {
			metrics.RecordErrorByComponent("worker", "chat_error")
			w.logger.Warn(ctx, "chat summary not fully posted", logger.String("backblast_id", s.ID), logger.Error(err))
		}
	}
	return nil
}

// Pool runs a fixed number of workers over one queue.
type Pool struct {
	workers   []*Worker
	queue     Queue
	processed *atomic.Int64
	logger    logger.Logger
}

// NewPool creates workerCount workers sharing opts. A count below 1 means
// one worker per CPU.
func NewPool(workerCount int, q Queue, saver Saver, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers:   make([]*Worker, workerCount),
		queue:     q,
		processed: new(atomic.Int64),
		logger:    logger.NewNop(),
	}
	for i := range p.workers {
		wopts := append([]Option{}, opts...)
		wopts = append(wopts, WithName("worker-"+strconv.Itoa(i)), withCounter(p.processed))
		p.workers[i] = New(q, saver, wopts...)
	}
	probe := &Worker{logger: p.logger}
	for _, opt := range opts {
		opt(probe)
	}
	p.logger = probe.logger.Named("worker-pool")
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size is the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed is the number of submissions stored by the pool.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Shutdown closes the queue so workers drain what is left, then waits for
// them up to the earlier of ctx and the pool timeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-waitCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker shutdown: %w", waitCtx.Err())
		}
	}
	return nil
}
