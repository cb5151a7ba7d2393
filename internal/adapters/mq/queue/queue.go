// Package queue is the bounded outbox that every outbound notification
// passes through before delivery.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/duelarena/internal/domain/model"
	"github.com/okian/duelarena/pkg/metrics"
)

const defaultCapacity = 65_536

// Notification is the payload type flowing through the queue.
type Notification = model.Notification

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds n to the queue. It returns false if the queue is full or
	// closed and n was dropped.
	Enqueue(ctx context.Context, n Notification) bool

	// Dequeue returns the channel notifications are read from. It is closed,
	// after draining, once the queue is closed.
	Dequeue(ctx context.Context) <-chan Notification

	// Len returns the current number of queued notifications.
	Len(ctx context.Context) int

	// Close stops accepting notifications.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Notification
	capacity int
	now      func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Notification, q.capacity)
	metrics.UpdateOutboxLength(0)
	return q
}

// Enqueue stamps n with its enqueue time and adds it to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, n Notification) bool { //nolint:gocritic // passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordNotification("closed")
		return false
	}

	n.EnqueuedAt = q.now()
	select {
	case q.items <- n:
		metrics.RecordNotification("enqueued")
		metrics.UpdateOutboxLength(len(q.items))
		return true
	case <-ctx.Done():
		metrics.RecordNotification("cancelled")
		return false
	default:
		metrics.RecordNotification("dropped")
		return false
	}
}

// Dequeue returns the underlying channel.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Notification {
	return q.items
}

// Len returns the current number of queued notifications.
func (q *InMemoryQueue) Len(_ context.Context) int {
	n := len(q.items)
	metrics.UpdateOutboxLength(n)
	return n
}

// Close stops accepting notifications and closes the dequeue channel once
// readers have drained it.
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

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
