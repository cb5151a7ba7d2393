// Package dedupe drops retransmitted client requests. Entries are keyed by
// connection and request id and evicted oldest-first once the window is full.
package dedupe

import (
	"container/list"
	"context"
	"sync"

	"github.com/okian/duelarena/pkg/metrics"
)

const defaultWindow = 50_000

// Deduper records seen request keys to ensure at-most-once handling.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// It returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so that a request rejected before any state
	// change may be retried.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// Key builds the replay key for a request on a connection.
func Key(connectionID, requestID string) string {
	return connectionID + "/" + requestID
}

// inMemoryDeduper keeps at most window keys. With window <= 0 it never evicts.
type inMemoryDeduper struct {
	mu     sync.Mutex
	seen   map[string]*list.Element
	order  *list.List // front is oldest
	window int
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		seen:   make(map[string]*list.Element),
		order:  list.New(),
		window: defaultWindow,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		metrics.RecordDuplicateRequest()
		return true
	}
	if d.window > 0 && d.order.Len() >= d.window {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}
	d.seen[key] = d.order.PushBack(key)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
