package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/duelarena/internal/domain/clock"
	"github.com/okian/duelarena/internal/domain/types"
	"github.com/okian/duelarena/pkg/metrics"
)

const (
	defaultRetention     = 10 * time.Minute
	defaultSweepInterval = 30 * time.Second
)

type archived struct {
	result     types.MatchResult
	archivedAt time.Time
}

// ResultStore is an in-memory Store with a retention window.
type ResultStore struct {
	mu            sync.RWMutex
	byID          map[string]archived
	retention     time.Duration
	sweepInterval time.Duration
	clock         clock.Clock

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
	closed   bool
}

// NewResultStore constructs a store and starts its background sweeper.
func NewResultStore(ctx context.Context, opts ...Option) *ResultStore {
	s := &ResultStore{
		byID:          make(map[string]archived),
		retention:     defaultRetention,
		sweepInterval: defaultSweepInterval,
		clock:         clock.System(),
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	metrics.UpdateArchivedResults(0)
	if s.sweepInterval > 0 {
		s.startSweeper(ctx)
	}
	return s
}

func (s *ResultStore) startSweeper(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Put implements Store.Put.
func (s *ResultStore) Put(_ context.Context, r types.MatchResult) error {
	if r.MatchID == "" {
		return ErrInvalidResult
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.byID[r.MatchID] = archived{result: r, archivedAt: s.clock.Now()}
	metrics.UpdateArchivedResults(len(s.byID))
	return nil
}

// Get implements Store.Get. Expired entries are reported as missing even
// before the sweeper removes them.
func (s *ResultStore) Get(_ context.Context, matchID string) (types.MatchResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[matchID]
	if !ok || s.expired(a, s.clock.Now()) {
		return types.MatchResult{}, false
	}
	return a.result, true
}

// Count implements Store.Count.
func (s *ResultStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Sweep evicts expired results and returns how many were removed.
func (s *ResultStore) Sweep(_ context.Context) int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, a := range s.byID {
		if s.expired(a, now) {
			delete(s.byID, id)
			removed++
		}
	}
	metrics.UpdateArchivedResults(len(s.byID))
	return removed
}

// Close stops the sweeper. Later Puts fail with ErrClosed.
func (s *ResultStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
	s.wg.Wait()
	return nil
}

func (s *ResultStore) expired(a archived, now time.Time) bool {
	return now.Sub(a.archivedAt) >= s.retention
}
