// Package match owns active duels: it creates them from queue pairs, scores
// submitted answers in lockstep, resolves winners and handles players who
// drop out.
package match

import (
	"sync"
	"time"

	"github.com/okian/duelarena/internal/domain/clock"
	"github.com/okian/duelarena/internal/domain/question"
	"github.com/okian/duelarena/internal/domain/types"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a match. Active is the only non-terminal state.
type Status string

// Match statuses.
const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Slot identifies a seat in a match.
type Slot int

// Seats. SlotA is the player who waited longer.
const (
	SlotA Slot = iota
	SlotB
)

func (s Slot) String() string {
	if s == SlotA {
		return "A"
	}
	return "B"
}

func (s Slot) other() Slot { return 1 - s }

// AbandonPolicy decides the outcome when a player never comes back.
type AbandonPolicy string

// Abandon policies.
const (
	PolicyForfeit AbandonPolicy = "forfeit"
	PolicyRefund  AbandonPolicy = "refund"
)

// Outcome reasons.
const (
	ReasonScore          = "score"
	ReasonCompletionTime = "completion_time"
	ReasonWager          = "wager"
	ReasonTie            = "tie"
	ReasonForfeit        = "forfeit"
	ReasonAbandoned      = "abandoned"
)

// Answer is one submitted answer.
type Answer struct {
	QuestionID string
	Value      string
	Correct    bool
	At         time.Time
}

type seat struct {
	connectionID string
	wallet       string
	wager        decimal.Decimal
	answers      []Answer // append-only
	score        int
	lastAnswerAt time.Time
	connected    bool
	grace        clock.Timer
	graceGen     uint64 // invalidates callbacks of stopped timers
}

// duel is the mutable state of one match, guarded by its own mutex so
// different matches progress in parallel.
type duel struct {
	mu         sync.Mutex
	id         string
	seats      [2]*seat
	questions  []question.Question
	index      int
	status     Status
	startedAt  time.Time
	finishedAt time.Time
	outcome    types.Outcome
}

func (d *duel) slotOf(connectionID string) (Slot, bool) {
	for i, s := range d.seats {
		if s.connected && s.connectionID == connectionID {
			return Slot(i), true
		}
	}
	return 0, false
}

func (d *duel) slotOfWallet(wallet string) (Slot, bool) {
	for i, s := range d.seats {
		if s.wallet == wallet {
			return Slot(i), true
		}
	}
	return 0, false
}

// resolve decides a completed match: higher score, then the earlier final
// answer, then the higher wager, otherwise a draw.
func (d *duel) resolve() types.Outcome {
	a, b := d.seats[SlotA], d.seats[SlotB]

	switch {
	case a.score != b.score:
		return winner(a, b, a.score > b.score, ReasonScore)
	case !a.lastAnswerAt.Equal(b.lastAnswerAt):
		return winner(a, b, a.lastAnswerAt.Before(b.lastAnswerAt), ReasonCompletionTime)
	case !a.wager.Equal(b.wager):
		return winner(a, b, a.wager.GreaterThan(b.wager), ReasonWager)
	default:
		return types.Outcome{Draw: true, Reason: ReasonTie}
	}
}

func winner(a, b *seat, aWins bool, reason string) types.Outcome {
	if aWins {
		return types.Outcome{Winner: a.wallet, Reason: reason}
	}
	return types.Outcome{Winner: b.wallet, Reason: reason}
}

func (d *duel) update() types.MatchUpdate {
	u := types.MatchUpdate{
		MatchID:              d.id,
		CurrentQuestionIndex: d.index,
		ScoreA:               d.seats[SlotA].score,
		ScoreB:               d.seats[SlotB].score,
		Status:               string(d.status),
	}
	if d.status != StatusActive {
		o := d.outcome
		u.Outcome = &o
	}
	return u
}

func (d *duel) result() types.MatchResult {
	a, b := d.seats[SlotA], d.seats[SlotB]
	return types.MatchResult{
		MatchID:       d.id,
		PlayerA:       a.wallet,
		PlayerB:       b.wallet,
		WagerA:        a.wager.String(),
		WagerB:        b.wager.String(),
		ScoreA:        a.score,
		ScoreB:        b.score,
		QuestionCount: len(d.questions),
		Status:        string(d.status),
		Outcome:       d.outcome,
		StartedAt:     d.startedAt,
		FinishedAt:    d.finishedAt,
	}
}

func (d *duel) matchFound(slot Slot) types.MatchFound {
	opp := d.seats[slot.other()]
	views := make([]types.QuestionView, len(d.questions))
	for i, q := range d.questions {
		views[i] = q.Public()
	}
	return types.MatchFound{
		MatchID:     d.id,
		Slot:        slot.String(),
		Opponent:    types.Opponent{WalletAddress: opp.wallet, WageredAmount: opp.wager},
		QuestionSet: views,
	}
}

func (d *duel) stopTimers() {
	for _, s := range d.seats {
		if s.grace != nil {
			s.grace.Stop()
			s.grace = nil
		}
	}
}
