package worker

import (
	"context"
	"sync/atomic"

	"github.com/f3peakcity/f3-bot/pkg/logger"
)

// Option applies a configuration option to a Worker.
type Option func(*Worker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithNotifier sets where chat summaries go.
func WithNotifier(n Notifier) Option {
	return func(w *Worker) { w.notifier = n }
}

// WithMirror sets the raw log stored submissions are appended to.
func WithMirror(m Mirror) Option {
	return func(w *Worker) { w.mirror = m }
}

// WithOnFailure sets a hook called with the id of a submission that could
// not be stored, so it can be accepted again.
func WithOnFailure(fn func(ctx context.Context, id string)) Option {
	return func(w *Worker) { w.onFailure = fn }
}

func withCounter(c *atomic.Int64) Option {
	return func(w *Worker) { w.processed = c }
}
