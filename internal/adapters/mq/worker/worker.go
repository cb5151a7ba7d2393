// Package worker delivers outbound notifications. A pool of workers reads
// the outbox; each connection is pinned to one worker so its messages are
// delivered in the order they were enqueued.
package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/duelarena/internal/domain/model"
	"github.com/okian/duelarena/pkg/logger"
	"github.com/okian/duelarena/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultShardBuffer    = 1024
	poolShutdownTimeout   = 30 * time.Second
	defaultWorkerMultiple = 2
)

// ErrOutboxFull is returned by Notify when a notification had to be dropped.
var ErrOutboxFull = errors.New("outbox full")

// Notification is what workers deliver.
type Notification = model.Notification

// Deliverer writes a notification to its connection.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// Queue defines how workers receive notifications.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Notification
}

// Outbox is the queue the pool fans out from.
type Outbox interface {
	Queue
	Enqueue(ctx context.Context, n Notification) bool
	Close() error
}

// Worker delivers notifications until its queue closes.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown waits for the worker to drain and stop.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	deliverer Deliverer
	name      string

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker.
func NewInMemoryWorker(queue Queue, deliverer Deliverer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		deliverer: deliverer,
		name:      "worker",
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("dispatch").Named(w.name)
	}
	return w
}

// Run delivers notifications until the queue is closed and drained.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-items:
			if !ok {
				return
			}
			w.deliver(ctx, n)
		}
	}
}

// Shutdown waits for Run to return.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) deliver(ctx context.Context, n Notification) { //nolint:gocritic // passed by value for channel semantics
	if err := w.deliverer.Deliver(ctx, n); err != nil {
		metrics.RecordNotification("failed")
		w.logger.Debug(ctx, "delivery failed",
			logger.String("connectionID", n.ConnectionID),
			logger.String("type", n.Type),
			logger.Error(err),
		)
		return
	}
	metrics.RecordNotification("delivered")
	if !n.EnqueuedAt.IsZero() {
		metrics.RecordDeliveryLatency(float64(time.Since(n.EnqueuedAt).Microseconds()) / 1000)
	}
}

// shard is one worker's private inbox.
type shard chan Notification

func (s shard) Dequeue(context.Context) <-chan Notification { return s }

// Pool fans the outbox out to workers by connection.
type Pool struct {
	outbox  Outbox
	shards  []shard
	workers []*InMemoryWorker
	routed  chan struct{}

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one uses a
// multiple of the CPU count.
func NewPool(workerCount int, outbox Outbox, deliverer Deliverer) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiple
	}

	p := &Pool{
		outbox:  outbox,
		shards:  make([]shard, workerCount),
		workers: make([]*InMemoryWorker, workerCount),
		routed:  make(chan struct{}),
		logger:  logger.Get().Named("dispatch"),
	}
	for i := range p.shards {
		p.shards[i] = make(shard, defaultShardBuffer)
		p.workers[i] = NewInMemoryWorker(p.shards[i], deliverer, WithName("worker-"+strconv.Itoa(i)))
	}
	return p
}

// Start launches the router and the workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.route(ctx)
}

// Notify enqueues n on the outbox. It satisfies the match manager's and
// session router's notifier contract.
func (p *Pool) Notify(ctx context.Context, n Notification) error { //nolint:gocritic // passed by value for channel semantics
	if !p.outbox.Enqueue(ctx, n) {
		return ErrOutboxFull
	}
	return nil
}

// route moves notifications from the outbox to their connection's shard.
func (p *Pool) route(ctx context.Context) {
	defer func() {
		for _, s := range p.shards {
			close(s)
		}
		close(p.routed)
	}()

	items := p.outbox.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-items:
			if !ok {
				return
			}
			s := p.shards[ShardFor(n.ConnectionID, len(p.shards))]
			select {
			case s <- n:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Shutdown closes the outbox and waits for pending notifications to be
// delivered.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.outbox.Close(); err != nil {
		p.logger.Error(ctx, "error closing outbox", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	select {
	case <-p.routed:
	case <-shutdownCtx.Done():
		p.logger.Warn(ctx, "outbox router shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
	}

	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return err
		}
	}
	return nil
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// ShardFor maps a connection to a worker index.
func ShardFor(connectionID string, shards int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(connectionID))
	return int(h.Sum32() % uint32(shards)) //nolint:gosec // shards is positive and small
}
