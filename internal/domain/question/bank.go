package question

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	"github.com/okian/duelarena/pkg/logger"
)

const (
	defaultSetSize = 5
	defaultSeed    = 42
	anyTopic       = "any"
)

// Bank supplies question sets for new matches.
type Bank interface {
	// QuestionSet returns an ordered set for topic, or false when none is
	// available. The returned slice is owned by the caller.
	QuestionSet(ctx context.Context, topic string) ([]Question, bool)
}

// Option applies a configuration option to the InMemoryBank.
type Option func(*InMemoryBank)

// WithPool replaces the built-in pool.
func WithPool(pool []Question) Option {
	return func(b *InMemoryBank) {
		b.pool = make([]Question, 0, len(pool))
		for _, q := range pool {
			b.pool = append(b.pool, q.clone())
		}
	}
}

// WithSetSize caps the number of questions per set.
func WithSetSize(n int) Option {
	return func(b *InMemoryBank) {
		if n > 0 {
			b.size = n
		}
	}
}

// WithSeed makes shuffling reproducible.
func WithSeed(seed int64) Option {
	return func(b *InMemoryBank) {
		b.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // question order is not security sensitive
	}
}

// WithLogger sets a custom logger for the bank.
func WithLogger(l logger.Logger) Option {
	return func(b *InMemoryBank) {
		if l != nil {
			b.logger = l
		}
	}
}

// InMemoryBank serves shuffled subsets of a fixed pool.
type InMemoryBank struct {
	mu     sync.Mutex // guards rng
	pool   []Question
	size   int
	rng    *rand.Rand
	logger logger.Logger
}

// NewInMemoryBank creates a bank over the built-in pool unless WithPool is given.
func NewInMemoryBank(opts ...Option) *InMemoryBank {
	b := &InMemoryBank{
		pool: Builtin(),
		size: defaultSetSize,
		rng:  rand.New(rand.NewSource(defaultSeed)), //nolint:gosec // deterministic default
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.Get().Named("question")
	}
	return b
}

// QuestionSet filters the pool by topic (empty or "any" matches every
// question), shuffles the matches and truncates to the configured size.
func (b *InMemoryBank) QuestionSet(ctx context.Context, topic string) ([]Question, bool) {
	topic = strings.TrimSpace(topic)

	candidates := make([]int, 0, len(b.pool))
	for i, q := range b.pool {
		if topic == "" || strings.EqualFold(topic, anyTopic) || strings.EqualFold(q.Topic, topic) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		b.logger.Warn(ctx, "no questions for topic", logger.String("topic", topic))
		return nil, false
	}

	b.mu.Lock()
	b.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	b.mu.Unlock()

	n := min(b.size, len(candidates))
	set := make([]Question, n)
	for i := 0; i < n; i++ {
		set[i] = b.pool[candidates[i]].clone()
	}
	return set, true
}

// Size returns the number of questions in the pool.
func (b *InMemoryBank) Size() int { return len(b.pool) }
