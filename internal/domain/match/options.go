package match

import (
	"time"

	"github.com/google/uuid"
	"github.com/okian/duelarena/internal/domain/clock"
	"github.com/okian/duelarena/pkg/logger"
	"github.com/shopspring/decimal"
)

// Default manager configuration.
const (
	DefaultGracePeriod = 15 * time.Second
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithClock sets the time source for answers, timestamps and grace timers.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets a custom logger for the manager.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithNotifier sets where match_found and match_update messages go.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithArchive sets the store receiving finished match results.
func WithArchive(a Archive) Option {
	return func(m *Manager) {
		if a != nil {
			m.archive = a
		}
	}
}

// WithPublisher sets the sink that finished results are published to.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithGracePeriod sets how long a disconnected player may take to rejoin.
func WithGracePeriod(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.grace = d
		}
	}
}

// WithAbandonPolicy selects forfeit or refund for abandoned matches.
// Unknown values are ignored.
func WithAbandonPolicy(p AbandonPolicy) Option {
	return func(m *Manager) {
		if p == PolicyForfeit || p == PolicyRefund {
			m.policy = p
		}
	}
}

// WithTolerance sets the numeric tolerance for questions that carry none.
func WithTolerance(t decimal.Decimal) Option {
	return func(m *Manager) {
		if !t.IsNegative() {
			m.tolerance = t
		}
	}
}

// WithTopic sets the topic requested from the question bank.
func WithTopic(topic string) Option {
	return func(m *Manager) {
		m.topic = topic
	}
}

// WithIDGenerator overrides match id generation.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

func defaultID() string { return uuid.NewString() }
