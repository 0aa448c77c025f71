// Package queue buffers published views between the annotator and the
// delivery workers.
//
// Enqueue never blocks: the annotator calls it with its own lock held, so a
// full queue drops the view and counts the drop instead of applying
// backpressure to the aggregator.
package queue

import (
	"context"
	"sync"

	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a view, returning ErrFull or ErrClosed when it was dropped.
	Enqueue(ctx context.Context, v model.View) error

	// Dequeue returns a channel of views that is closed once the queue is
	// closed and drained, or ctx is done.
	Dequeue(ctx context.Context) <-chan model.View

	// Len returns the current number of queued views.
	Len() int

	// Close stops accepting views. Buffered views are still delivered.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	views    chan model.View
	capacity int

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.views = make(chan model.View, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds a view to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, v model.View) error { //nolint:gocritic // hugeParam: View is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueDrop()
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueDrop()
		return err
	}

	select {
	case q.views <- v:
		metrics.UpdateQueueSize(len(q.views))
		return nil
	default:
		metrics.RecordQueueDrop()
		return ErrFull
	}
}

// Dequeue returns a channel that receives views as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan model.View {
	out := make(chan model.View)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-q.views:
				if !ok {
					return
				}
				metrics.UpdateQueueSize(len(q.views))
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued views.
func (q *InMemoryQueue) Len() int {
	return len(q.views)
}

// Capacity returns the configured capacity.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close stops the queue. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.views)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
