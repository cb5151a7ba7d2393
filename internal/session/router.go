// Package session is the boundary between websocket clients and the core
// engines. The Router decodes inbound envelopes, calls the matchmaking
// queue, the match manager and the scenario engine, and turns their results
// and errors into outbound messages.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/okian/duelarena/internal/domain/dedupe"
	"github.com/okian/duelarena/internal/domain/fault"
	"github.com/okian/duelarena/internal/domain/match"
	"github.com/okian/duelarena/internal/domain/matchmaking"
	"github.com/okian/duelarena/internal/domain/model"
	"github.com/okian/duelarena/internal/domain/types"
	"github.com/okian/duelarena/pkg/logger"
	"github.com/okian/duelarena/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Queue is the matchmaking surface the router needs.
type Queue interface {
	Enqueue(ctx context.Context, connectionID, wallet string, wager decimal.Decimal) int
	AttemptMatch(ctx context.Context) (matchmaking.Pair, bool)
	Requeue(ctx context.Context, players ...matchmaking.WaitingPlayer)
	RemoveConnection(ctx context.Context, connectionID string) []matchmaking.WaitingPlayer
	Len() int
}

// Matches is the match lifecycle surface the router needs.
type Matches interface {
	CreateMatch(ctx context.Context, pair matchmaking.Pair) (string, error)
	SubmitAnswer(ctx context.Context, matchID, connectionID, answer string) (types.MatchUpdate, error)
	Reconnect(ctx context.Context, matchID, wallet, connectionID string) (types.MatchUpdate, error)
	Disconnect(ctx context.Context, connectionID string) bool
	MatchForConnection(connectionID string) (string, bool)
	MatchForWallet(wallet string) (string, bool)
}

// Scenarios is the simulation surface the router needs.
type Scenarios interface {
	Start(ctx context.Context, sessionID, topicID string, params map[string]any) (types.ScenarioUpdate, error)
	TriggerEvent(ctx context.Context, sessionID, eventType string, params map[string]any) (types.ScenarioUpdate, error)
	Recompute(ctx context.Context, sessionID string) (types.ScenarioUpdate, error)
	Stop(ctx context.Context, sessionID string) bool
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithRouterLogger sets the router logger.
func WithRouterLogger(l logger.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDeduper enables replay detection for envelopes carrying a requestId.
func WithDeduper(d dedupe.Deduper) RouterOption {
	return func(r *Router) {
		if d != nil {
			r.dedupe = d
		}
	}
}

// Router implements Handler.
type Router struct {
	queue     Queue
	matches   Matches
	scenarios Scenarios
	notifier  match.Notifier
	dedupe    dedupe.Deduper
	logger    logger.Logger

	// pairMu serializes joins with pairing so the busy check, the enqueue
	// and the seating are not interleaved with another join.
	pairMu sync.Mutex

	liveMu sync.RWMutex
	live   map[string]struct{}
}

// NewRouter creates a router. Every reply goes through notifier so replies
// and match notifications to one connection stay ordered.
func NewRouter(q Queue, m Matches, s Scenarios, notifier match.Notifier, opts ...RouterOption) *Router {
	r := &Router{
		queue:     q,
		matches:   m,
		scenarios: s,
		notifier:  notifier,
		live:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("session").Named("router")
	}
	return r
}

// Connect greets a new connection.
func (r *Router) Connect(ctx context.Context, connectionID string) {
	r.liveMu.Lock()
	r.live[connectionID] = struct{}{}
	r.liveMu.Unlock()

	r.reply(ctx, connectionID, model.TypeConnected, types.Connected{ConnectionID: connectionID})
}

// Disconnect releases everything the connection holds: its queue entry, its
// match seat (which starts the grace period) and its scenario.
func (r *Router) Disconnect(ctx context.Context, connectionID string) {
	r.liveMu.Lock()
	delete(r.live, connectionID)
	r.liveMu.Unlock()

	removed := r.queue.RemoveConnection(ctx, connectionID)
	abandoned := r.matches.Disconnect(ctx, connectionID)
	stopped := r.scenarios.Stop(ctx, connectionID)

	r.logger.Debug(ctx, "session released",
		logger.String("connectionID", connectionID),
		logger.Int("dequeued", len(removed)),
		logger.Bool("matchAbandoned", abandoned),
		logger.Bool("scenarioStopped", stopped),
	)
}

// Handle decodes and routes one inbound frame.
func (r *Router) Handle(ctx context.Context, connectionID string, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || strings.TrimSpace(env.Type) == "" {
		metrics.RecordInboundMessage("invalid")
		r.fail(ctx, connectionID, "", ErrMalformedMessage.With("session.Handle", err))
		return
	}
	metrics.RecordInboundMessage(env.Type)

	var key string
	if env.RequestID != "" {
		key = dedupe.Key(connectionID, env.RequestID)
		if r.dedupe != nil && r.dedupe.SeenAndRecord(ctx, key) {
			r.logger.Debug(ctx, "duplicate request dropped",
				logger.String("connectionID", connectionID),
				logger.String("requestID", env.RequestID),
			)
			return
		}
	}

	if err := r.route(ctx, connectionID, env); err != nil {
		// Rejected requests may be retried with the same id.
		if key != "" && r.dedupe != nil {
			r.dedupe.Unrecord(ctx, key)
		}
		r.fail(ctx, connectionID, env.RequestID, err)
	}
}

func (r *Router) route(ctx context.Context, connectionID string, env Envelope) error {
	switch env.Type {
	case TypeJoinQueue:
		return r.joinQueue(ctx, connectionID, env.Payload)
	case TypeLeaveQueue:
		r.queue.RemoveConnection(ctx, connectionID)
		r.reply(ctx, connectionID, model.TypeLeftQueue, struct{}{})
		return nil
	case TypeSubmitAnswer:
		return r.submitAnswer(ctx, connectionID, env.Payload)
	case TypeRejoinMatch:
		return r.rejoinMatch(ctx, connectionID, env.Payload)
	case TypeStartScenario:
		return r.startScenario(ctx, connectionID, env.Payload)
	case TypeTriggerEvent:
		return r.triggerEvent(ctx, connectionID, env.Payload)
	case TypeStopScenario:
		r.scenarios.Stop(ctx, connectionID)
		r.reply(ctx, connectionID, model.TypeScenarioStopped, struct{}{})
		return nil
	case TypePollScenario:
		u, err := r.scenarios.Recompute(ctx, connectionID)
		if err != nil {
			return err
		}
		r.reply(ctx, connectionID, model.TypeScenarioUpdate, u)
		return nil
	default:
		return ErrUnknownType.With("session.route", nil)
	}
}

func (r *Router) joinQueue(ctx context.Context, connectionID string, raw json.RawMessage) error {
	const op = "session.joinQueue"

	var req joinQueueRequest
	if err := decodePayload(raw, &req); err != nil {
		return ErrMalformedMessage.With(op, err)
	}
	wallet := strings.TrimSpace(req.WalletAddress)
	if wallet == "" {
		return ErrInvalidWallet.With(op, nil)
	}
	if req.WageredAmount == nil || req.WageredAmount.IsNegative() {
		return ErrInvalidWager.With(op, nil)
	}

	// The busy check, the enqueue and the pairing run as one step so a
	// wallet cannot be queued while another join is seating it.
	r.pairMu.Lock()
	defer r.pairMu.Unlock()

	if r.seated(connectionID, wallet) {
		return ErrAlreadyInMatch.With(op, nil)
	}

	pos := r.queue.Enqueue(ctx, connectionID, wallet, *req.WageredAmount)
	r.reply(ctx, connectionID, model.TypeQueued, types.Queued{Position: pos, QueueSize: r.queue.Len()})

	r.pairLocked(ctx)
	return nil
}

// seated reports whether the connection or the wallet holds an active seat.
func (r *Router) seated(connectionID, wallet string) bool {
	if _, ok := r.matches.MatchForConnection(connectionID); ok {
		return true
	}
	_, ok := r.matches.MatchForWallet(wallet)
	return ok
}

// pairLocked drains the queue into matches two players at a time. When no
// question set is available the pair goes back to the queue head and both
// players are told; pairing stops until the next join. A player refused as
// already seated, or sharing the other side's connection, is dropped with
// an error and the rest is requeued. The caller holds pairMu.
func (r *Router) pairLocked(ctx context.Context) {
	for {
		p, ok := r.queue.AttemptMatch(ctx)
		if !ok {
			return
		}

		matchID, err := r.matches.CreateMatch(ctx, p)
		if err != nil {
			kept := r.requeueEligible(ctx, p, err)
			if len(kept) == 2 {
				return
			}
			continue
		}

		// A player may have dropped between being dequeued and being seated.
		for _, wp := range []matchmaking.WaitingPlayer{p.A, p.B} {
			if !r.isLive(wp.ConnectionID) {
				r.matches.Disconnect(ctx, wp.ConnectionID)
			}
		}
		r.logger.Debug(ctx, "pair seated", logger.String("matchID", matchID))
	}
}

// requeueEligible puts back the players of a refused pair that can still
// be matched and reports err to the rest. On a shortage both go back and
// both are told.
func (r *Router) requeueEligible(ctx context.Context, p matchmaking.Pair, err error) []matchmaking.WaitingPlayer {
	var kept []matchmaking.WaitingPlayer
	for i, wp := range []matchmaking.WaitingPlayer{p.A, p.B} {
		drop := !errors.Is(err, match.ErrNoQuestionsAvailable) &&
			(r.seated(wp.ConnectionID, wp.WalletAddress) || (i == 1 && wp.ConnectionID == p.A.ConnectionID))
		if drop {
			r.fail(ctx, wp.ConnectionID, "", err)
			continue
		}
		kept = append(kept, wp)
	}
	r.queue.Requeue(ctx, kept...)
	r.logger.Warn(ctx, "match creation failed",
		logger.String("playerA", p.A.WalletAddress),
		logger.String("playerB", p.B.WalletAddress),
		logger.Int("requeued", len(kept)),
		logger.Error(err),
	)
	if len(kept) == 2 {
		r.fail(ctx, p.A.ConnectionID, "", err)
		r.fail(ctx, p.B.ConnectionID, "", err)
	}
	return kept
}

func (r *Router) submitAnswer(ctx context.Context, connectionID string, raw json.RawMessage) error {
	const op = "session.submitAnswer"

	var req submitAnswerRequest
	if err := decodePayload(raw, &req); err != nil {
		return ErrMalformedMessage.With(op, err)
	}
	if strings.TrimSpace(req.MatchID) == "" {
		return ErrMissingMatchID.With(op, nil)
	}
	answer, ok := answerText(req.Answer)
	if !ok {
		return ErrInvalidAnswer.With(op, nil)
	}

	// The manager broadcasts match_update to both seats.
	_, err := r.matches.SubmitAnswer(ctx, req.MatchID, connectionID, answer)
	return err
}

func (r *Router) rejoinMatch(ctx context.Context, connectionID string, raw json.RawMessage) error {
	const op = "session.rejoinMatch"

	var req rejoinMatchRequest
	if err := decodePayload(raw, &req); err != nil {
		return ErrMalformedMessage.With(op, err)
	}
	if strings.TrimSpace(req.MatchID) == "" {
		return ErrMissingMatchID.With(op, nil)
	}
	wallet := strings.TrimSpace(req.WalletAddress)
	if wallet == "" {
		return ErrInvalidWallet.With(op, nil)
	}
	if id, busy := r.matches.MatchForConnection(connectionID); busy && id != req.MatchID {
		return ErrAlreadyInMatch.With(op, nil)
	}

	// The manager resends match_found and match_update.
	_, err := r.matches.Reconnect(ctx, req.MatchID, wallet, connectionID)
	return err
}

func (r *Router) startScenario(ctx context.Context, connectionID string, raw json.RawMessage) error {
	var req startScenarioRequest
	if err := decodePayload(raw, &req); err != nil {
		return ErrMalformedMessage.With("session.startScenario", err)
	}
	u, err := r.scenarios.Start(ctx, connectionID, strings.TrimSpace(req.TopicID), req.Params)
	if err != nil {
		return err
	}
	r.reply(ctx, connectionID, model.TypeScenarioUpdate, u)
	return nil
}

func (r *Router) triggerEvent(ctx context.Context, connectionID string, raw json.RawMessage) error {
	var req triggerEventRequest
	if err := decodePayload(raw, &req); err != nil {
		return ErrMalformedMessage.With("session.triggerEvent", err)
	}
	u, err := r.scenarios.TriggerEvent(ctx, connectionID, req.EventType, req.EventParams)
	if err != nil {
		return err
	}
	r.reply(ctx, connectionID, model.TypeScenarioUpdate, u)
	return nil
}

func (r *Router) isLive(connectionID string) bool {
	r.liveMu.RLock()
	defer r.liveMu.RUnlock()
	_, ok := r.live[connectionID]
	return ok
}

// fail reports err to the connection. Invariant violations and unclassified
// errors are logged and reported as internal_error.
func (r *Router) fail(ctx context.Context, connectionID, requestID string, err error) {
	code, msg := describe(err)
	metrics.RecordError("router", code)

	if code == fault.CodeInternal {
		r.logger.Error(ctx, "request failed",
			logger.String("connectionID", connectionID),
			logger.Error(err),
		)
	} else {
		r.logger.Debug(ctx, "request rejected",
			logger.String("connectionID", connectionID),
			logger.String("code", code),
			logger.Error(err),
		)
	}

	r.reply(ctx, connectionID, model.TypeError, types.ErrorPayload{
		Code:      code,
		Message:   msg,
		RequestID: requestID,
	})
}

func (r *Router) reply(ctx context.Context, connectionID, typ string, payload any) {
	err := r.notifier.Notify(ctx, model.Notification{
		ConnectionID: connectionID,
		Type:         typ,
		Payload:      payload,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn(ctx, "reply dropped",
			logger.String("connectionID", connectionID),
			logger.String("type", typ),
			logger.Error(err),
		)
	}
}
