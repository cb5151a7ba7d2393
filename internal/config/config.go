// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and DUEL_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig; loader failures wrap ErrLoadConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Abandon policies accepted by AbandonPolicy.
const (
	PolicyForfeit = "forfeit"
	PolicyRefund  = "refund"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// WSPath is the websocket route clients connect to.
	WSPath string `koanf:"ws_path"`

	// QuestionsPerMatch caps the question set handed to each match.
	QuestionsPerMatch int `koanf:"questions_per_match"`

	// QuestionTopic filters the question pool; empty means any topic.
	QuestionTopic string `koanf:"question_topic"`

	// QuestionBankFile points at a YAML question pool. Empty uses the built-in pool.
	QuestionBankFile string `koanf:"question_bank_file"`

	// NumericTolerance applies to numeric questions that carry no tolerance.
	NumericTolerance float64 `koanf:"numeric_tolerance"`

	// MatchGracePeriodMS is how long a disconnected player may take to rejoin.
	MatchGracePeriodMS int `koanf:"match_grace_period_ms"`

	// MatchRetentionMS is how long finished results stay queryable.
	MatchRetentionMS int `koanf:"match_retention_ms"`

	// AbandonPolicy is forfeit or refund.
	AbandonPolicy string `koanf:"abandon_policy"`

	// OutboxSize bounds the outbound notification queue.
	OutboxSize int `koanf:"outbox_size"`

	// DispatchWorkers sets the number of delivery workers.
	DispatchWorkers int `koanf:"dispatch_workers"`

	// ReplayWindow is how many request ids are remembered for replay detection.
	ReplayWindow int `koanf:"replay_window"`

	// MaxMessageBytes limits inbound websocket frames.
	MaxMessageBytes int `koanf:"max_message_bytes"`

	// SweepIntervalMS sets how often expired results are evicted.
	SweepIntervalMS int `koanf:"sweep_interval_ms"`

	// RandomSeed seeds question shuffling and scenario randomness. Zero
	// seeds from the clock.
	RandomSeed int64 `koanf:"random_seed"`

	// NATSURL enables result publishing when set.
	NATSURL string `koanf:"nats_url"`

	// NATSSubject is the subject finished results are published on.
	NATSSubject string `koanf:"nats_subject"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		WSPath:             "/ws",
		QuestionsPerMatch:  5,
		NumericTolerance:   0.01,
		MatchGracePeriodMS: 15_000,
		MatchRetentionMS:   600_000,
		AbandonPolicy:      PolicyForfeit,
		OutboxSize:         65_536,
		DispatchWorkers:    runtime.NumCPU() * 2,
		ReplayWindow:       50_000,
		MaxMessageBytes:    4096,
		SweepIntervalMS:    30_000,
		NATSSubject:        "duelarena.match.finished",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !strings.HasPrefix(c.WSPath, "/"):
		return fmt.Errorf("%w: ws_path must start with /", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	case c.QuestionsPerMatch < 1:
		return fmt.Errorf("%w: questions_per_match must be positive", ErrInvalidConfig)
	case c.NumericTolerance < 0:
		return fmt.Errorf("%w: numeric_tolerance must not be negative", ErrInvalidConfig)
	case c.MatchGracePeriodMS < 0:
		return fmt.Errorf("%w: match_grace_period_ms must not be negative", ErrInvalidConfig)
	case c.MatchRetentionMS < 1:
		return fmt.Errorf("%w: match_retention_ms must be positive", ErrInvalidConfig)
	case c.AbandonPolicy != PolicyForfeit && c.AbandonPolicy != PolicyRefund:
		return fmt.Errorf("%w: abandon_policy must be %s or %s", ErrInvalidConfig, PolicyForfeit, PolicyRefund)
	case c.OutboxSize < 1:
		return fmt.Errorf("%w: outbox_size must be positive", ErrInvalidConfig)
	case c.DispatchWorkers < 1:
		return fmt.Errorf("%w: dispatch_workers must be positive", ErrInvalidConfig)
	case c.MaxMessageBytes < 1:
		return fmt.Errorf("%w: max_message_bytes must be positive", ErrInvalidConfig)
	case c.SweepIntervalMS < 0:
		return fmt.Errorf("%w: sweep_interval_ms must not be negative", ErrInvalidConfig)
	}
	return nil
}

// GracePeriod returns MatchGracePeriodMS as a duration.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.MatchGracePeriodMS) * time.Millisecond
}

// Retention returns MatchRetentionMS as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.MatchRetentionMS) * time.Millisecond
}

// SweepInterval returns SweepIntervalMS as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMS) * time.Millisecond
}

// Seed returns RandomSeed, or a clock-derived seed when it is zero.
func (c *Config) Seed() int64 {
	if c.RandomSeed != 0 {
		return c.RandomSeed
	}
	return time.Now().UnixNano()
}
