package sink

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/f3peakcity/f3-bot/internal/domain/report"
	"github.com/f3peakcity/f3-bot/pkg/logger"
	"github.com/f3peakcity/f3-bot/pkg/metrics"
)

const (
	defaultAttempts   = 3
	defaultBackoff    = 500 * time.Millisecond
	defaultMaxBackoff = 10 * time.Second
)

// RetryOption configures a retrying sink.
type RetryOption func(*retrying)

// WithAttempts sets the total number of write attempts. Values below 1 mean 1.
func WithAttempts(n int) RetryOption {
	return func(r *retrying) {
		if n < 1 {
			n = 1
		}
		r.attempts = n
	}
}

// WithBackoff sets the first wait between attempts; later waits double.
func WithBackoff(d time.Duration) RetryOption {
	return func(r *retrying) {
		if d > 0 {
			r.backoff = d
		}
	}
}

// WithLogger sets the logger used to report failed attempts.
func WithLogger(l logger.Logger) RetryOption {
	return func(r *retrying) {
		r.log = l
	}
}

type retrying struct {
	next     TableSink
	name     string
	attempts int
	backoff  time.Duration
	log      logger.Logger
}

// WithRetry wraps next so transient failures are retried with exponential
// backoff. Each attempt is a full Replace, so the all-or-nothing guarantee
// of next carries over.
func WithRetry(next TableSink, name string, opts ...RetryOption) TableSink {
	r := &retrying{
		next:     next,
		name:     name,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *retrying) Replace(ctx context.Context, tables ...report.Table) error {
	b := retry.NewExponential(r.backoff)
	b = retry.WithCappedDuration(defaultMaxBackoff, b)
	b = retry.WithMaxRetries(uint64(r.attempts-1), b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := r.next.Replace(ctx, tables...)
		switch {
		case err == nil:
			metrics.RecordSinkAttempt(r.name, "ok")
			return nil
		case IsTransient(err):
			metrics.RecordSinkAttempt(r.name, "transient")
			r.log.Warn(ctx, "sink write failed, will retry",
				logger.String("sink", r.name), logger.Int("attempt", attempt), logger.Error(err))
			return retry.RetryableError(err)
		default:
			metrics.RecordSinkAttempt(r.name, "failed")
			return err
		}
	})
}
