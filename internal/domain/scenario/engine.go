package scenario

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/duelarena/internal/domain/clock"
	"github.com/okian/duelarena/internal/domain/types"
	"github.com/okian/duelarena/pkg/logger"
	"github.com/okian/duelarena/pkg/metrics"
)

const defaultSeed = 7

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClock sets the time source used for recomputes.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStore sets the state store.
func WithStore(s *Store) Option {
	return func(e *Engine) {
		if s != nil {
			e.store = s
		}
	}
}

// WithSeed seeds the engine's random source.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.rnd = &lockedSource{r: rand.New(rand.NewSource(seed))} //nolint:gosec // simulation only
	}
}

// WithSource replaces the random source. It must be safe for concurrent use.
func WithSource(src Source) Option {
	return func(e *Engine) {
		if src != nil {
			e.rnd = src
		}
	}
}

// Engine dispatches recomputes to the topic handlers.
type Engine struct {
	store  *Store
	clock  clock.Clock
	logger logger.Logger
	rnd    Source
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		store: NewStore(),
		clock: clock.System(),
		rnd:   &lockedSource{r: rand.New(rand.NewSource(defaultSeed))}, //nolint:gosec // simulation only
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("scenario")
	}
	return e
}

// Topics returns the supported topic ids.
func (e *Engine) Topics() []string {
	out := make([]string, 0, len(topics))
	for id := range topics {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Start creates or replaces the session's scenario and returns its first update.
func (e *Engine) Start(ctx context.Context, sessionID, topicID string, params map[string]any) (types.ScenarioUpdate, error) {
	t, ok := topics[topicID]
	if !ok {
		return types.ScenarioUpdate{}, ErrUnknownTopic.With("scenario.Start", nil)
	}

	now := e.clock.Now()
	st := State{
		SessionID:     sessionID,
		TopicID:       topicID,
		Params:        cloneMap(params),
		StartedAt:     now,
		Prices:        defaultPrices(),
		PendingEvents: make(map[string]PendingEvent),
	}
	if t.init != nil {
		t.init(&st, e.rnd)
	}

	st, payload := e.advance(ctx, t, st, now)
	e.store.Put(st)
	metrics.UpdateActiveScenarios(e.store.Len())

	e.logger.Info(ctx, "scenario started",
		logger.String("sessionID", sessionID),
		logger.String("topicID", topicID),
	)
	return types.ScenarioUpdate{TopicID: topicID, Payload: payload}, nil
}

// TriggerEvent records eventType as pending at the current time, replacing
// an earlier event of the same name, and recomputes.
func (e *Engine) TriggerEvent(ctx context.Context, sessionID, eventType string, params map[string]any) (types.ScenarioUpdate, error) {
	const op = "scenario.TriggerEvent"

	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return types.ScenarioUpdate{}, ErrInvalidEvent.With(op, nil)
	}

	return e.update(ctx, op, sessionID, func(s State, now time.Time) State {
		s.PendingEvents[eventType] = PendingEvent{Data: cloneMap(params), TriggeredAt: now}
		return s
	})
}

// Recompute advances the session's scenario to the current time.
func (e *Engine) Recompute(ctx context.Context, sessionID string) (types.ScenarioUpdate, error) {
	return e.update(ctx, "scenario.Recompute", sessionID, nil)
}

// Stop destroys the session's scenario. It reports whether one existed.
func (e *Engine) Stop(ctx context.Context, sessionID string) bool {
	ok := e.store.Delete(sessionID)
	if ok {
		metrics.UpdateActiveScenarios(e.store.Len())
		e.logger.Debug(ctx, "scenario stopped", logger.String("sessionID", sessionID))
	}
	return ok
}

// Snapshot returns a copy of the session's state.
func (e *Engine) Snapshot(sessionID string) (State, bool) {
	return e.store.Get(sessionID)
}

// ActiveCount returns the number of running scenarios.
func (e *Engine) ActiveCount() int {
	return e.store.Len()
}

func (e *Engine) update(ctx context.Context, op, sessionID string, mutate func(State, time.Time) State) (types.ScenarioUpdate, error) {
	var (
		topicID string
		payload any
	)
	_, ok := e.store.Update(sessionID, func(s State) State {
		now := e.clock.Now()
		if mutate != nil {
			s = mutate(s, now)
		}
		topicID = s.TopicID
		s, payload = e.advance(ctx, topics[s.TopicID], s, now)
		return s
	})
	if !ok {
		return types.ScenarioUpdate{}, ErrNoActiveScenario.With(op, nil)
	}
	return types.ScenarioUpdate{TopicID: topicID, Payload: payload}, nil
}

func (e *Engine) advance(ctx context.Context, t topic, s State, now time.Time) (State, any) {
	began := time.Now()

	s.ElapsedTime = max(0, now.Sub(s.StartedAt))
	next := t.step(s, now, e.rnd)
	e.enforce(ctx, &next)
	payload := t.view(next)

	metrics.RecordScenarioRecompute(s.TopicID, float64(time.Since(began).Microseconds())/1000)
	return next, payload
}

// enforce clamps numeric fields back into their domain. Any clamp is a bug
// in a handler; it is logged and counted but never reported to the client.
func (e *Engine) enforce(ctx context.Context, s *State) {
	violation := func(field string, got, want float64) {
		e.logger.Error(ctx, "scenario invariant violated",
			logger.String("sessionID", s.SessionID),
			logger.String("topicID", s.TopicID),
			logger.String("field", field),
			logger.Float64("value", got),
			logger.Float64("clampedTo", want),
		)
		metrics.RecordInvariantViolation(field)
	}

	if s.TopicID == TopicStaking {
		if v := clamp(s.TotalStaked, 0, stakingCeiling); v != s.TotalStaked {
			violation("totalStaked", s.TotalStaked, v)
			s.TotalStaked = v
		}
	}

	for asset, p := range s.Prices {
		lo := 0.0
		if asset == AssetVolatile && s.TopicID == TopicStablecoins {
			lo = dipFloor
		}
		if v := clamp(p, lo, math.MaxFloat64); v != p {
			violation("prices."+asset, p, v)
			s.Prices[asset] = v
		}
	}

	if s.LastTrade != nil {
		if v := clamp(s.LastTrade.Amount, minTradeAmount, maxTradeAmount); v != s.LastTrade.Amount {
			violation("lastTrade.amount", s.LastTrade.Amount, v)
			s.LastTrade.Amount = v
		}
	}
}

// clamp bounds v to [lo, hi]. NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v) || v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedSource) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}
