// Package scenario simulates per-session DeFi markets. State evolves lazily:
// every request recomputes it from the wall clock and the pending events.
package scenario

import (
	"sync"
	"time"
)

// Topics.
const (
	TopicIntro          = "intro"
	TopicLiquidityPools = "liquidity-pools"
	TopicStaking        = "staking"
	TopicStablecoins    = "stablecoins"
)

// Events understood by the handlers. Other event names are stored but ignored.
const (
	EventLiquidityProvided = "liquidityProvided"
	EventSwappedForStable  = "swappedForStable"
)

// Asset symbols.
const (
	AssetVolatile = "vETH"
	AssetStable   = "vUSDC"
)

// PendingEvent is a client-triggered signal.
type PendingEvent struct {
	Data        map[string]any
	TriggeredAt time.Time
}

// Trade is a synthetic pool trade.
type Trade struct {
	Type      string    `json:"type"`
	Amount    float64   `json:"amount"`
	Asset     string    `json:"asset"`
	Timestamp time.Time `json:"timestamp"`
}

// State is one session's simulation.
type State struct {
	SessionID     string
	TopicID       string
	Params        map[string]any
	StartedAt     time.Time
	ElapsedTime   time.Duration
	Prices        map[string]float64
	PendingEvents map[string]PendingEvent

	// liquidity-pools
	LastTrade      *Trade
	LastTradeAt    time.Time
	NextTradeAfter time.Duration

	// staking
	TotalStaked        float64
	StakeRatePerMinute float64
	RewardRate         float64

	// stablecoins
	MarketDipStarted   bool
	MarketDipStartedAt time.Time
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	c.Params = cloneMap(s.Params)
	c.Prices = make(map[string]float64, len(s.Prices))
	for k, v := range s.Prices {
		c.Prices[k] = v
	}
	c.PendingEvents = make(map[string]PendingEvent, len(s.PendingEvents))
	for k, v := range s.PendingEvents {
		c.PendingEvents[k] = PendingEvent{Data: cloneMap(v.Data), TriggeredAt: v.TriggeredAt}
	}
	if s.LastTrade != nil {
		t := *s.LastTrade
		c.LastTrade = &t
	}
	return c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store holds one State per session.
type Store struct {
	mu     sync.Mutex
	states map[string]State
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{states: make(map[string]State)}
}

// Get returns a copy of the session's state.
func (s *Store) Get(sessionID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[sessionID]
	if !ok {
		return State{}, false
	}
	return st.Clone(), true
}

// Put creates or replaces the session's state.
func (s *Store) Put(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.SessionID] = st
}

// Update replaces the session's state with fn's result while holding the
// store lock. fn receives a copy. It reports false when the session has no state.
func (s *Store) Update(sessionID string, fn func(State) State) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[sessionID]
	if !ok {
		return State{}, false
	}
	next := fn(st.Clone())
	s.states[sessionID] = next
	return next.Clone(), true
}

// Delete removes the session's state and reports whether it existed.
func (s *Store) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.states[sessionID]
	delete(s.states, sessionID)
	return ok
}

// Len returns the number of active scenarios.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
