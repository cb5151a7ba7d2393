package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/duelarena/internal/domain/clock"
	"github.com/okian/duelarena/internal/domain/types"
)

func newTestStore(t *testing.T) (*ResultStore, *clock.Fake) {
	t.Helper()
	c := clock.NewFake(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	s := NewResultStore(context.Background(),
		WithClock(c),
		WithRetention(time.Minute),
		WithSweepInterval(0),
	)
	t.Cleanup(func() { _ = s.Close() })
	return s, c
}

func TestResultStore_BasicOperations(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, ok := s.Get(ctx, "m1"); ok {
		t.Fatal("expected empty store")
	}

	r := types.MatchResult{MatchID: "m1", PlayerA: "0xA", PlayerB: "0xB", Status: "completed"}
	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, ok := s.Get(ctx, "m1")
	if !ok || got.PlayerA != "0xA" {
		t.Fatalf("expected stored result, got %+v ok=%v", got, ok)
	}
	if n := s.Count(ctx); n != 1 {
		t.Errorf("expected count 1, got %d", n)
	}

	if err := s.Put(ctx, types.MatchResult{}); !errors.Is(err, ErrInvalidResult) {
		t.Errorf("expected ErrInvalidResult, got %v", err)
	}
}

func TestResultStore_Retention(t *testing.T) {
	s, c := newTestStore(t)
	ctx := context.Background()

	_ = s.Put(ctx, types.MatchResult{MatchID: "old"})
	c.Advance(30 * time.Second)
	_ = s.Put(ctx, types.MatchResult{MatchID: "new"})
	c.Advance(30 * time.Second)

	if _, ok := s.Get(ctx, "old"); ok {
		t.Error("expected old result to be expired")
	}
	if _, ok := s.Get(ctx, "new"); !ok {
		t.Error("expected new result to be retained")
	}
	if n := s.Count(ctx); n != 2 {
		t.Errorf("expected both entries before sweep, got %d", n)
	}

	if removed := s.Sweep(ctx); removed != 1 {
		t.Errorf("expected 1 eviction, got %d", removed)
	}
	if n := s.Count(ctx); n != 1 {
		t.Errorf("expected 1 entry after sweep, got %d", n)
	}
}

func TestResultStore_BackgroundSweeper(t *testing.T) {
	s := NewResultStore(context.Background(),
		WithRetention(time.Millisecond),
		WithSweepInterval(5*time.Millisecond),
	)
	defer s.Close()
	ctx := context.Background()

	_ = s.Put(ctx, types.MatchResult{MatchID: "m1"})

	deadline := time.Now().Add(2 * time.Second)
	for s.Count(ctx) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := s.Count(ctx); n != 0 {
		t.Errorf("expected sweeper to evict, %d left", n)
	}
}

func TestResultStore_ConcurrentAccess(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("m-%d-%d", g, i)
				if err := s.Put(ctx, types.MatchResult{MatchID: id}); err != nil {
					t.Errorf("put %s: %v", id, err)
				}
				if _, ok := s.Get(ctx, id); !ok {
					t.Errorf("missing %s", id)
				}
			}
		}(g)
	}
	wg.Wait()

	if n := s.Count(ctx); n != 800 {
		t.Errorf("expected 800 results, got %d", n)
	}
}

func TestResultStore_CloseBehavior(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
	if err := s.Put(ctx, types.MatchResult{MatchID: "late"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
