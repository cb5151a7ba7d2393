package repository

import (
	"time"

	"github.com/okian/duelarena/internal/domain/clock"
)

// Option applies a configuration option to the ResultStore.
type Option func(*ResultStore)

// WithRetention sets how long results are kept after archiving.
func WithRetention(d time.Duration) Option {
	return func(s *ResultStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithSweepInterval sets how often expired results are evicted. Zero
// disables the background sweeper.
func WithSweepInterval(d time.Duration) Option {
	return func(s *ResultStore) {
		if d >= 0 {
			s.sweepInterval = d
		}
	}
}

// WithClock sets the time source used for expiry.
func WithClock(c clock.Clock) Option {
	return func(s *ResultStore) {
		if c != nil {
			s.clock = c
		}
	}
}
