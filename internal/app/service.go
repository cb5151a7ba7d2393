// Package service assembles the duel arena backend: matchmaking, matches,
// scenarios, outbound dispatch and the websocket session layer.
package service

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	mqqueue "github.com/okian/duelarena/internal/adapters/mq/queue"
	"github.com/okian/duelarena/internal/adapters/mq/publisher"
	"github.com/okian/duelarena/internal/adapters/mq/worker"
	"github.com/okian/duelarena/internal/adapters/repository"
	"github.com/okian/duelarena/internal/domain/clock"
	"github.com/okian/duelarena/internal/domain/dedupe"
	"github.com/okian/duelarena/internal/domain/match"
	"github.com/okian/duelarena/internal/domain/matchmaking"
	"github.com/okian/duelarena/internal/domain/question"
	"github.com/okian/duelarena/internal/domain/scenario"
	"github.com/okian/duelarena/internal/domain/types"
	"github.com/okian/duelarena/internal/session"
	"github.com/okian/duelarena/pkg/logger"
	"github.com/okian/duelarena/pkg/metrics"
	"github.com/shopspring/decimal"
)

const stopTimeout = 10 * time.Second

// Service owns every runtime component and implements the HTTP API
// dependencies.
type Service struct {
	mu sync.RWMutex

	// Core components
	queue     *matchmaking.Queue
	bank      question.Bank
	manager   *match.Manager
	archive   *repository.ResultStore
	publisher publisher.Publisher
	engine    *scenario.Engine
	deduper   dedupe.Deduper
	outbox    *mqqueue.InMemoryQueue
	pool      *worker.Pool
	hub       *session.Hub
	router    *session.Router

	// Configuration
	questionPool      []question.Question
	questionsPerMatch int
	questionTopic     string
	tolerance         float64
	gracePeriod       time.Duration
	retention         time.Duration
	sweepInterval     time.Duration
	abandonPolicy     match.AbandonPolicy
	outboxSize        int
	dispatchWorkers   int
	replayWindow      int
	maxMessageBytes   int
	seed              int64

	// State
	started bool
	cancel  context.CancelFunc

	clock  clock.Clock
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source shared by every component.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithQuestionPool replaces the built-in question pool.
func WithQuestionPool(pool []question.Question) Option {
	return func(s *Service) {
		if len(pool) > 0 {
			s.questionPool = pool
		}
	}
}

// WithQuestionsPerMatch caps each match's question set.
func WithQuestionsPerMatch(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.questionsPerMatch = n
		}
	}
}

// WithQuestionTopic restricts question sets to one topic.
func WithQuestionTopic(topic string) Option {
	return func(s *Service) { s.questionTopic = topic }
}

// WithNumericTolerance sets the fallback tolerance for numeric questions.
func WithNumericTolerance(t float64) Option {
	return func(s *Service) {
		if t >= 0 {
			s.tolerance = t
		}
	}
}

// WithGracePeriod sets how long a dropped player may take to rejoin.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.gracePeriod = d
		}
	}
}

// WithRetention sets how long finished results stay queryable.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithSweepInterval sets how often expired results are evicted. Zero
// disables the background sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.sweepInterval = d
		}
	}
}

// WithAbandonPolicy selects forfeit or refund for abandoned matches.
func WithAbandonPolicy(p string) Option {
	return func(s *Service) {
		switch match.AbandonPolicy(p) {
		case match.PolicyForfeit, match.PolicyRefund:
			s.abandonPolicy = match.AbandonPolicy(p)
		}
	}
}

// WithOutboxSize bounds the outbound notification queue.
func WithOutboxSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.outboxSize = n
		}
	}
}

// WithDispatchWorkers sets the number of delivery workers.
func WithDispatchWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dispatchWorkers = n
		}
	}
}

// WithReplayWindow sets how many request ids are remembered.
func WithReplayWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.replayWindow = n
		}
	}
}

// WithMaxMessageBytes limits inbound websocket frames.
func WithMaxMessageBytes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxMessageBytes = n
		}
	}
}

// WithSeed seeds question shuffling and scenario randomness.
func WithSeed(seed int64) Option {
	return func(s *Service) { s.seed = seed }
}

// WithPublisher forwards finished results. The service closes it on Stop.
func WithPublisher(p publisher.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		questionsPerMatch: 5,
		tolerance:         0.01,
		gracePeriod:       match.DefaultGracePeriod,
		retention:         10 * time.Minute,
		sweepInterval:     30 * time.Second,
		abandonPolicy:     match.PolicyForfeit,
		outboxSize:        65_536,
		dispatchWorkers:   runtime.NumCPU() * 2,
		replayWindow:      50_000,
		maxMessageBytes:   4096,
		seed:              time.Now().UnixNano(),
		publisher:         publisher.Noop{},
		clock:             clock.System(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds and starts the runtime components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting duel arena service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.outbox = mqqueue.NewInMemoryQueue(
		mqqueue.WithCapacity(s.outboxSize),
		mqqueue.WithNow(s.clock.Now),
	)
	s.hub = session.NewHub(
		session.WithHubLogger(s.logger.Named("session").Named("hub")),
		session.WithMaxMessageBytes(s.maxMessageBytes),
	)
	s.pool = worker.NewPool(s.dispatchWorkers, s.outbox, s.hub)
	s.pool.Start(runCtx)

	s.archive = repository.NewResultStore(runCtx,
		repository.WithRetention(s.retention),
		repository.WithSweepInterval(s.sweepInterval),
		repository.WithClock(s.clock),
	)

	bankOpts := []question.Option{
		question.WithSetSize(s.questionsPerMatch),
		question.WithSeed(s.seed),
		question.WithLogger(s.logger.Named("question")),
	}
	if len(s.questionPool) > 0 {
		bankOpts = append(bankOpts, question.WithPool(s.questionPool))
	}
	s.bank = question.NewInMemoryBank(bankOpts...)

	s.manager = match.NewManager(s.bank,
		match.WithClock(s.clock),
		match.WithLogger(s.logger.Named("match")),
		match.WithNotifier(s.pool),
		match.WithArchive(s.archive),
		match.WithPublisher(s.publisher),
		match.WithGracePeriod(s.gracePeriod),
		match.WithAbandonPolicy(s.abandonPolicy),
		match.WithTolerance(decimal.NewFromFloat(s.tolerance)),
		match.WithTopic(s.questionTopic),
	)
	s.queue = matchmaking.New(
		matchmaking.WithClock(s.clock),
		matchmaking.WithLogger(s.logger.Named("matchmaking")),
	)
	s.engine = scenario.NewEngine(
		scenario.WithClock(s.clock),
		scenario.WithLogger(s.logger.Named("scenario")),
		scenario.WithSeed(s.seed),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithWindow(s.replayWindow))
	s.router = session.NewRouter(s.queue, s.manager, s.engine, s.pool,
		session.WithDeduper(s.deduper),
		session.WithRouterLogger(s.logger.Named("session").Named("router")),
	)

	s.started = true
	s.logger.Info(ctx, "duel arena service started",
		logger.Int("dispatchWorkers", s.pool.Size()),
		logger.Int("outboxSize", s.outboxSize),
		logger.Int("questionsPerMatch", s.questionsPerMatch),
		logger.Duration("gracePeriod", s.gracePeriod),
		logger.String("abandonPolicy", string(s.abandonPolicy)),
	)

	return nil
}

// Stop gracefully shuts down the service: connections are closed first so
// their matches enter the grace period, then pending notifications drain.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping duel arena service...")

	if err := s.hub.Close(ctx); err != nil {
		s.logger.Warn(ctx, "closing connections timed out", logger.Error(err))
	}
	s.manager.Close()
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "dispatcher shutdown incomplete", logger.Error(err))
	}
	_ = s.archive.Close()
	if err := s.publisher.Close(); err != nil {
		s.logger.Warn(ctx, "closing result publisher failed", logger.Error(err))
	}
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "duel arena service stopped")
}

// Handler returns the websocket session endpoint. It is nil before Start.
func (s *Service) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil
	}
	return s.hub.Handler(s.router)
}

// Result returns an active or archived match result.
func (s *Service) Result(ctx context.Context, matchID string) (types.MatchResult, error) {
	s.mu.RLock()
	m := s.manager
	s.mu.RUnlock()
	if m == nil {
		return types.MatchResult{}, match.ErrMatchNotFound.With("service.Result", nil)
	}
	return m.Result(ctx, matchID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":           s.started,
		"dispatchWorkers":   s.dispatchWorkers,
		"outboxSize":        s.outboxSize,
		"questionsPerMatch": s.questionsPerMatch,
		"abandonPolicy":     string(s.abandonPolicy),
	}

	if s.started {
		queueLen := s.queue.Len()
		outboxLen := s.outbox.Len(ctx)
		archived := s.archive.Count(ctx)

		stats["queueLength"] = queueLen
		stats["activeMatches"] = s.manager.ActiveCount()
		stats["archivedResults"] = archived
		stats["activeScenarios"] = s.engine.ActiveCount()
		stats["openConnections"] = s.hub.Len()
		stats["outboxLength"] = outboxLen
		stats["replayWindowSize"] = s.deduper.Size()

		metrics.UpdateQueueLength(queueLen)
		metrics.UpdateOutboxLength(outboxLen)
		metrics.UpdateArchivedResults(archived)
	}

	return stats
}
