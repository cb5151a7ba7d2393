// Package publisher forwards finished match results to external consumers
// such as settlement or persistence services.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/okian/duelarena/internal/domain/types"
	"github.com/okian/duelarena/pkg/logger"
	"github.com/okian/duelarena/pkg/metrics"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "duelarena.match.finished"

const (
	connectTimeout = 5 * time.Second
	reconnectWait  = 2 * time.Second
)

// Publisher sends a finished match result.
type Publisher interface {
	Publish(ctx context.Context, r types.MatchResult) error
	Close() error
}

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes JSON-encoded results on a subject.
type NATSPublisher struct {
	conn    Conn
	subject string
	logger  logger.Logger
}

// Option applies a configuration option to the NATSPublisher.
type Option func(*NATSPublisher)

// WithSubject sets the subject results are published on.
func WithSubject(subject string) Option {
	return func(p *NATSPublisher) {
		if subject != "" {
			p.subject = subject
		}
	}
}

// WithLogger sets a custom logger for the publisher.
func WithLogger(l logger.Logger) Option {
	return func(p *NATSPublisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// Connect dials the NATS server at url and returns a publisher over it.
func Connect(url string, opts ...Option) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("duelarena"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return New(nc, opts...), nil
}

// New wraps an existing connection.
func New(conn Conn, opts ...Option) *NATSPublisher {
	p := &NATSPublisher{conn: conn, subject: DefaultSubject}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("publisher")
	}
	return p
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, r types.MatchResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result %s: %w", r.MatchID, err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		metrics.RecordError("publisher", "publish_failed")
		return fmt.Errorf("publish result %s: %w", r.MatchID, err)
	}
	p.logger.Debug(ctx, "match result published",
		logger.String("matchID", r.MatchID),
		logger.String("subject", p.subject),
	)
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// Noop discards results. It is used when no broker is configured.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, types.MatchResult) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }
