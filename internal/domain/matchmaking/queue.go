// Package matchmaking holds waiting players and pairs them strictly in
// arrival order.
package matchmaking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/duelarena/internal/domain/clock"
	"github.com/okian/duelarena/pkg/logger"
	"github.com/okian/duelarena/pkg/metrics"
	"github.com/shopspring/decimal"
)

// WaitingPlayer is a queued participant. WalletAddress is the unique key.
type WaitingPlayer struct {
	ConnectionID  string
	WalletAddress string
	WageredAmount decimal.Decimal
	JoinedAt      time.Time

	// seq breaks ties between equal JoinedAt values by insertion order.
	seq uint64
}

// Pair is two players removed from the queue together. A arrived first.
type Pair struct {
	A WaitingPlayer
	B WaitingPlayer
}

// Option applies a configuration option to the Queue.
type Option func(*Queue)

// WithClock sets the time source used for JoinedAt.
func WithClock(c clock.Clock) Option {
	return func(q *Queue) {
		if c != nil {
			q.clock = c
		}
	}
}

// WithLogger sets a custom logger for the queue.
func WithLogger(l logger.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// Queue is an unbounded FIFO of waiting players keyed by wallet.
//
// Every method holds q.mu for its whole body, so AttemptMatch reads the
// length, removes the head pair and returns it as one atomic step with
// respect to concurrent Enqueue calls.
type Queue struct {
	mu       sync.Mutex
	entries  []*WaitingPlayer // ordered by (JoinedAt, seq)
	byWallet map[string]*WaitingPlayer
	nextSeq  uint64

	clock  clock.Clock
	logger logger.Logger
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		byWallet: make(map[string]*WaitingPlayer),
		clock:    clock.System(),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.logger == nil {
		q.logger = logger.Get().Named("matchmaking")
	}
	return q
}

// Enqueue inserts a player, or updates the connection and wager of an already
// waiting wallet in place without touching its JoinedAt. A connection owns at
// most one waiting entry: joining with another wallet replaces its earlier
// one. It returns the player's 1-based position.
func (q *Queue) Enqueue(ctx context.Context, connectionID, wallet string, wager decimal.Decimal) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range q.entries {
		if p.ConnectionID == connectionID && p.WalletAddress != wallet {
			q.removeLocked(p)
			q.logger.Debug(ctx, "waiting player replaced",
				logger.String("connectionID", connectionID),
				logger.String("previous", p.WalletAddress),
				logger.String("wallet", wallet),
			)
			metrics.RecordQueueRemoval()
			metrics.UpdateQueueLength(len(q.entries))
			break
		}
	}

	if p, ok := q.byWallet[wallet]; ok {
		p.ConnectionID = connectionID
		p.WageredAmount = wager
		q.logger.Debug(ctx, "waiting player refreshed",
			logger.String("wallet", wallet),
			logger.String("connectionID", connectionID),
		)
		metrics.RecordQueueJoin()
		return q.positionLocked(p)
	}

	q.nextSeq++
	p := &WaitingPlayer{
		ConnectionID:  connectionID,
		WalletAddress: wallet,
		WageredAmount: wager,
		JoinedAt:      q.clock.Now(),
		seq:           q.nextSeq,
	}
	q.insertLocked(p)

	q.logger.Debug(ctx, "player queued",
		logger.String("wallet", wallet),
		logger.Int("queueSize", len(q.entries)),
	)
	metrics.RecordQueueJoin()
	metrics.UpdateQueueLength(len(q.entries))
	return q.positionLocked(p)
}

// AttemptMatch removes and returns the two longest-waiting players. It
// reports false, leaving the queue untouched, when fewer than two wait.
func (q *Queue) AttemptMatch(ctx context.Context) (Pair, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) < 2 {
		return Pair{}, false
	}

	a, b := q.entries[0], q.entries[1]
	q.entries = append(q.entries[:0:0], q.entries[2:]...)
	delete(q.byWallet, a.WalletAddress)
	delete(q.byWallet, b.WalletAddress)

	q.logger.Info(ctx, "pair formed",
		logger.String("walletA", a.WalletAddress),
		logger.String("walletB", b.WalletAddress),
		logger.Int("remaining", len(q.entries)),
	)
	metrics.RecordPairFormed()
	metrics.UpdateQueueLength(len(q.entries))
	return Pair{A: *a, B: *b}, true
}

// Requeue returns players taken by AttemptMatch to their original place in
// line. If a wallet re-joined in the meantime, its new connection and wager
// are kept but it regains the earlier JoinedAt.
func (q *Queue) Requeue(ctx context.Context, players ...WaitingPlayer) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range players {
		p := players[i]
		if cur, ok := q.byWallet[p.WalletAddress]; ok {
			if earlier(&p, cur) {
				q.removeLocked(cur)
				cur.JoinedAt, cur.seq = p.JoinedAt, p.seq
				q.insertLocked(cur)
			}
			continue
		}
		q.insertLocked(&p)
	}

	q.logger.Info(ctx, "players requeued",
		logger.Int("count", len(players)),
		logger.Int("queueSize", len(q.entries)),
	)
	metrics.RecordQueueRequeue(len(players))
	metrics.UpdateQueueLength(len(q.entries))
}

// RemoveConnection drops every waiting entry owned by connectionID.
func (q *Queue) RemoveConnection(ctx context.Context, connectionID string) []WaitingPlayer {
	q.mu.Lock()
	defer q.mu.Unlock()

	var removed []WaitingPlayer
	kept := q.entries[:0:0]
	for _, p := range q.entries {
		if p.ConnectionID == connectionID {
			removed = append(removed, *p)
			delete(q.byWallet, p.WalletAddress)
			metrics.RecordQueueRemoval()
			continue
		}
		kept = append(kept, p)
	}
	q.entries = kept

	if len(removed) > 0 {
		q.logger.Debug(ctx, "connection left queue",
			logger.String("connectionID", connectionID),
			logger.Int("removed", len(removed)),
		)
		metrics.UpdateQueueLength(len(q.entries))
	}
	return removed
}

// Position returns the 1-based position of wallet, or 0 when absent.
func (q *Queue) Position(wallet string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.byWallet[wallet]
	if !ok {
		return 0
	}
	return q.positionLocked(p)
}

// Len returns the number of waiting players.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns the waiting players in queue order.
func (q *Queue) Snapshot() []WaitingPlayer {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]WaitingPlayer, len(q.entries))
	for i, p := range q.entries {
		out[i] = *p
	}
	return out
}

func earlier(a, b *WaitingPlayer) bool {
	if a.JoinedAt.Equal(b.JoinedAt) {
		return a.seq < b.seq
	}
	return a.JoinedAt.Before(b.JoinedAt)
}

func (q *Queue) insertLocked(p *WaitingPlayer) {
	i := sort.Search(len(q.entries), func(i int) bool { return earlier(p, q.entries[i]) })
	q.entries = append(q.entries, nil)
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = p
	q.byWallet[p.WalletAddress] = p
}

func (q *Queue) removeLocked(p *WaitingPlayer) {
	for i, e := range q.entries {
		if e == p {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			delete(q.byWallet, p.WalletAddress)
			return
		}
	}
}

func (q *Queue) positionLocked(p *WaitingPlayer) int {
	for i, e := range q.entries {
		if e == p {
			return i + 1
		}
	}
	return 0
}
