package match

import (
	"context"
	"sync"
	"time"

	"github.com/okian/duelarena/internal/domain/clock"
	"github.com/okian/duelarena/internal/domain/matchmaking"
	"github.com/okian/duelarena/internal/domain/model"
	"github.com/okian/duelarena/internal/domain/question"
	"github.com/okian/duelarena/internal/domain/types"
	"github.com/okian/duelarena/pkg/logger"
	"github.com/okian/duelarena/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Notifier delivers outbound messages to connections. Implementations must
// not block and must not call back into the Manager.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Archive keeps finished results for late queries.
type Archive interface {
	Put(ctx context.Context, r types.MatchResult) error
	Get(ctx context.Context, matchID string) (types.MatchResult, bool)
}

// Publisher forwards finished results to external consumers.
type Publisher interface {
	Publish(ctx context.Context, r types.MatchResult) error
}

// Manager owns active matches.
//
// Lock order: a duel's mutex may be held while taking m.mu, never the
// reverse.
type Manager struct {
	bank question.Bank

	mu       sync.RWMutex
	matches  map[string]*duel
	byConn   map[string]string // connectionID -> matchID
	byWallet map[string]string // wallet -> matchID

	clock     clock.Clock
	logger    logger.Logger
	notifier  Notifier
	archive   Archive
	publisher Publisher
	grace     time.Duration
	policy    AbandonPolicy
	tolerance decimal.Decimal
	topic     string
	newID     func() string
}

// NewManager creates a manager drawing question sets from bank.
func NewManager(bank question.Bank, opts ...Option) *Manager {
	m := &Manager{
		bank:      bank,
		matches:   make(map[string]*duel),
		byConn:    make(map[string]string),
		byWallet:  make(map[string]string),
		clock:     clock.System(),
		notifier:  discard{},
		archive:   discard{},
		publisher: discard{},
		grace:     DefaultGracePeriod,
		policy:    PolicyForfeit,
		newID:     defaultID,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.Get().Named("match")
	}
	return m
}

// CreateMatch starts a duel for a queue pair and sends match_found to both
// players. It fails with ErrNoQuestionsAvailable when the bank has no set,
// ErrInvalidPair when both sides share a wallet or connection, and
// ErrPlayerBusy when either side is already seated. Nothing is created on
// error.
func (m *Manager) CreateMatch(ctx context.Context, pair matchmaking.Pair) (string, error) {
	const op = "match.CreateMatch"

	if pair.A.WalletAddress == pair.B.WalletAddress || pair.A.ConnectionID == pair.B.ConnectionID {
		return "", ErrInvalidPair.With(op, nil)
	}

	set, ok := m.bank.QuestionSet(ctx, m.topic)
	if !ok || len(set) == 0 {
		return "", ErrNoQuestionsAvailable.With(op, nil)
	}

	d := &duel{
		id:        m.newID(),
		questions: set,
		status:    StatusActive,
		startedAt: m.clock.Now(),
	}
	for i, p := range []matchmaking.WaitingPlayer{pair.A, pair.B} {
		d.seats[i] = &seat{
			connectionID: p.ConnectionID,
			wallet:       p.WalletAddress,
			wager:        p.WageredAmount,
			connected:    true,
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	m.mu.Lock()
	for _, s := range d.seats {
		_, connBusy := m.byConn[s.connectionID]
		_, walletBusy := m.byWallet[s.wallet]
		if connBusy || walletBusy {
			m.mu.Unlock()
			return "", ErrPlayerBusy.With(op, nil)
		}
	}
	m.matches[d.id] = d
	for _, s := range d.seats {
		m.byConn[s.connectionID] = d.id
		m.byWallet[s.wallet] = d.id
	}
	active := len(m.matches)
	m.mu.Unlock()

	m.logger.Info(ctx, "match created",
		logger.String("matchID", d.id),
		logger.String("playerA", pair.A.WalletAddress),
		logger.String("playerB", pair.B.WalletAddress),
		logger.Int("questions", len(set)),
	)
	metrics.RecordMatchCreated()
	metrics.UpdateActiveMatches(active)

	for _, slot := range []Slot{SlotA, SlotB} {
		m.send(ctx, d.seats[slot], model.TypeMatchFound, d.matchFound(slot))
	}
	return d.id, nil
}

// SubmitAnswer scores answer for the connection's seat on the current
// question. Each seat answers every question once; the index advances when
// both have answered, and the match completes after the last question.
func (m *Manager) SubmitAnswer(ctx context.Context, matchID, connectionID, answer string) (types.MatchUpdate, error) {
	const op = "match.SubmitAnswer"

	d, err := m.lookup(ctx, op, matchID)
	if err != nil {
		return types.MatchUpdate{}, err
	}

	d.mu.Lock()
	if d.status != StatusActive {
		d.mu.Unlock()
		return types.MatchUpdate{}, ErrMatchNotActive.With(op, nil)
	}
	slot, ok := d.slotOf(connectionID)
	if !ok {
		d.mu.Unlock()
		return types.MatchUpdate{}, ErrNotYourTurn.With(op, nil)
	}
	s := d.seats[slot]
	if len(s.answers) > d.index {
		d.mu.Unlock()
		return types.MatchUpdate{}, ErrAlreadyAnswered.With(op, nil)
	}

	now := m.clock.Now()
	q := d.questions[d.index]
	correct := q.Check(answer, m.tolerance)
	s.answers = append(s.answers, Answer{QuestionID: q.ID, Value: answer, Correct: correct, At: now})
	s.lastAnswerAt = now
	if correct {
		s.score++
	}
	metrics.RecordAnswer(correct)

	if len(d.seats[SlotA].answers) > d.index && len(d.seats[SlotB].answers) > d.index {
		d.index++
	}

	finished := false
	if d.index == len(d.questions) {
		d.status = StatusCompleted
		d.finishedAt = now
		d.outcome = d.resolve()
		d.stopTimers()
		finished = true
		m.logger.Info(ctx, "match completed",
			logger.String("matchID", d.id),
			logger.String("winner", d.outcome.Winner),
			logger.String("reason", d.outcome.Reason),
		)
	}

	u := d.update()
	m.broadcast(ctx, d, u)
	var res types.MatchResult
	if finished {
		res = d.result()
	}
	d.mu.Unlock()

	if finished {
		m.retire(ctx, res)
	}
	return u, nil
}

// Abandon marks slot as disconnected and starts its grace timer. If the
// player has not rejoined when it fires, the match is abandoned.
func (m *Manager) Abandon(ctx context.Context, matchID string, slot Slot) error {
	const op = "match.Abandon"

	if slot != SlotA && slot != SlotB {
		return ErrNotParticipant.With(op, nil)
	}
	d, err := m.lookup(ctx, op, matchID)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status != StatusActive {
		return ErrMatchNotActive.With(op, nil)
	}
	s := d.seats[slot]
	if !s.connected {
		return nil
	}
	s.connected = false

	m.mu.Lock()
	if m.byConn[s.connectionID] == d.id {
		delete(m.byConn, s.connectionID)
	}
	m.mu.Unlock()

	s.graceGen++
	gen := s.graceGen
	s.grace = m.clock.AfterFunc(m.grace, func() {
		m.expire(context.WithoutCancel(ctx), matchID, slot, gen)
	})

	m.logger.Info(ctx, "player disconnected from match",
		logger.String("matchID", d.id),
		logger.String("slot", slot.String()),
		logger.Duration("grace", m.grace),
	)
	return nil
}

// Disconnect abandons the seat held by connectionID, if any. It reports
// whether the connection was in an active match.
func (m *Manager) Disconnect(ctx context.Context, connectionID string) bool {
	m.mu.RLock()
	matchID, ok := m.byConn[connectionID]
	d := m.matches[matchID]
	m.mu.RUnlock()
	if !ok || d == nil {
		return false
	}

	d.mu.Lock()
	slot, found := d.slotOf(connectionID)
	d.mu.Unlock()
	if !found {
		return false
	}
	return m.Abandon(ctx, matchID, slot) == nil
}

// Reconnect seats connectionID back into wallet's slot, cancelling its grace
// timer. The connection receives match_found and match_update again.
func (m *Manager) Reconnect(ctx context.Context, matchID, wallet, connectionID string) (types.MatchUpdate, error) {
	const op = "match.Reconnect"

	d, err := m.lookup(ctx, op, matchID)
	if err != nil {
		return types.MatchUpdate{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status != StatusActive {
		return types.MatchUpdate{}, ErrMatchNotActive.With(op, nil)
	}
	slot, ok := d.slotOfWallet(wallet)
	if !ok {
		return types.MatchUpdate{}, ErrNotParticipant.With(op, nil)
	}

	s := d.seats[slot]
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}

	m.mu.Lock()
	if m.byConn[s.connectionID] == d.id {
		delete(m.byConn, s.connectionID)
	}
	m.byConn[connectionID] = d.id
	m.mu.Unlock()

	s.connectionID = connectionID
	s.connected = true

	m.logger.Info(ctx, "player rejoined match",
		logger.String("matchID", d.id),
		logger.String("slot", slot.String()),
	)

	u := d.update()
	m.send(ctx, s, model.TypeMatchFound, d.matchFound(slot))
	m.send(ctx, s, model.TypeMatchUpdate, u)
	return u, nil
}

// Result returns the current view of an active match or the archived result
// of a finished one.
func (m *Manager) Result(ctx context.Context, matchID string) (types.MatchResult, error) {
	m.mu.RLock()
	d := m.matches[matchID]
	m.mu.RUnlock()

	if d != nil {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.result(), nil
	}
	if r, ok := m.archive.Get(ctx, matchID); ok {
		return r, nil
	}
	return types.MatchResult{}, ErrMatchNotFound.With("match.Result", nil)
}

// MatchForConnection returns the active match a connection is seated in.
func (m *Manager) MatchForConnection(connectionID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byConn[connectionID]
	return id, ok
}

// MatchForWallet returns the active match a wallet is playing.
func (m *Manager) MatchForWallet(wallet string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byWallet[wallet]
	return id, ok
}

// ActiveCount returns the number of active matches.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.matches)
}

// Close stops all pending grace timers.
func (m *Manager) Close() {
	m.mu.RLock()
	duels := make([]*duel, 0, len(m.matches))
	for _, d := range m.matches {
		duels = append(duels, d)
	}
	m.mu.RUnlock()

	for _, d := range duels {
		d.mu.Lock()
		d.stopTimers()
		d.mu.Unlock()
	}
}

// expire runs when a grace timer fires.
func (m *Manager) expire(ctx context.Context, matchID string, slot Slot, gen uint64) {
	m.mu.RLock()
	d := m.matches[matchID]
	m.mu.RUnlock()
	if d == nil {
		return
	}

	d.mu.Lock()
	s := d.seats[slot]
	if d.status != StatusActive || s.connected || s.graceGen != gen {
		d.mu.Unlock()
		return
	}
	s.grace = nil

	opp := d.seats[slot.other()]
	d.status = StatusAbandoned
	d.finishedAt = m.clock.Now()
	if m.policy == PolicyForfeit && opp.connected {
		d.outcome = types.Outcome{Winner: opp.wallet, Reason: ReasonForfeit}
	} else {
		d.outcome = types.Outcome{Refund: true, Reason: ReasonAbandoned}
	}
	d.stopTimers()

	m.logger.Info(ctx, "match abandoned",
		logger.String("matchID", d.id),
		logger.String("slot", slot.String()),
		logger.String("winner", d.outcome.Winner),
		logger.Bool("refund", d.outcome.Refund),
	)

	m.broadcast(ctx, d, d.update())
	res := d.result()
	d.mu.Unlock()

	m.retire(ctx, res)
}

// lookup resolves an active match. Finished matches still held in the
// archive report ErrMatchNotActive.
func (m *Manager) lookup(ctx context.Context, op, matchID string) (*duel, error) {
	m.mu.RLock()
	d := m.matches[matchID]
	m.mu.RUnlock()
	if d != nil {
		return d, nil
	}
	if _, ok := m.archive.Get(ctx, matchID); ok {
		return nil, ErrMatchNotActive.With(op, nil)
	}
	return nil, ErrMatchNotFound.With(op, nil)
}

// retire moves a finished match out of the active table.
func (m *Manager) retire(ctx context.Context, r types.MatchResult) {
	if err := m.archive.Put(ctx, r); err != nil {
		m.logger.Error(ctx, "failed to archive match result",
			logger.String("matchID", r.MatchID),
			logger.Error(err),
		)
	}

	m.mu.Lock()
	if d, ok := m.matches[r.MatchID]; ok {
		for _, s := range d.seats {
			if m.byConn[s.connectionID] == r.MatchID {
				delete(m.byConn, s.connectionID)
			}
			if m.byWallet[s.wallet] == r.MatchID {
				delete(m.byWallet, s.wallet)
			}
		}
		delete(m.matches, r.MatchID)
	}
	active := len(m.matches)
	m.mu.Unlock()

	metrics.RecordMatchFinished(r.Status)
	metrics.UpdateActiveMatches(active)

	if err := m.publisher.Publish(ctx, r); err != nil {
		m.logger.Warn(ctx, "failed to publish match result",
			logger.String("matchID", r.MatchID),
			logger.Error(err),
		)
	}
}

func (m *Manager) broadcast(ctx context.Context, d *duel, u types.MatchUpdate) {
	for _, s := range d.seats {
		m.send(ctx, s, model.TypeMatchUpdate, u)
	}
}

func (m *Manager) send(ctx context.Context, s *seat, typ string, payload any) {
	if !s.connected {
		return
	}
	err := m.notifier.Notify(ctx, model.Notification{
		ConnectionID: s.connectionID,
		Type:         typ,
		Payload:      payload,
	})
	if err != nil {
		m.logger.Warn(ctx, "notification dropped",
			logger.String("connectionID", s.connectionID),
			logger.String("type", typ),
			logger.Error(err),
		)
	}
}

// discard is the default collaborator for optional dependencies.
type discard struct{}

func (discard) Notify(context.Context, model.Notification) error { return nil }

func (discard) Put(context.Context, types.MatchResult) error { return nil }

func (discard) Get(context.Context, string) (types.MatchResult, bool) {
	return types.MatchResult{}, false
}

func (discard) Publish(context.Context, types.MatchResult) error { return nil }
