// Package queue buffers accepted submissions between the ingest endpoint and
// the persisting workers.
package queue

import (
	"context"
	"sync"

	"github.com/f3peakcity/f3-bot/internal/domain/model"
	"github.com/f3peakcity/f3-bot/pkg/metrics"
)

const defaultCapacity = 10_000

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds s. It returns false when the queue is full or closed.
	Enqueue(ctx context.Context, s model.Submission) bool

	// Dequeue returns a channel of queued submissions. It is closed once the
	// queue is closed and drained, or when ctx ends.
	Dequeue(ctx context.Context) <-chan model.Submission

	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	items    chan model.Submission
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a bounded in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan model.Submission, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, s model.Submission) bool { //nolint:gocritic // hugeParam: sent by value over the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	select {
	case q.items <- s:
		metrics.RecordQueueEnqueue()
		q.observe()
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan model.Submission {
	out := make(chan model.Submission)
	go func() {
		defer close(out)
		for {
			select {
			case s, ok := <-q.items:
				if !ok {
					return
				}
				select {
				case out <- s:
					metrics.RecordQueueDequeue()
					q.observe()
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) Len(_ context.Context) int {
	q.observe()
	return len(q.items)
}

// Close stops accepting submissions. Queued ones can still be dequeued.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) observe() {
	size := len(q.items)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
