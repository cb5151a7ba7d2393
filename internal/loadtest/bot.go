package loadtest

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/okian/duelarena/internal/domain/match"
	"github.com/okian/duelarena/internal/domain/model"
	"github.com/okian/duelarena/internal/domain/question"
	"github.com/okian/duelarena/internal/domain/types"
	"github.com/okian/duelarena/internal/session"
	"github.com/okian/duelarena/pkg/logger"
	"github.com/shopspring/decimal"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// bot is one simulated player on its own websocket connection.
type bot struct {
	wallet  string
	wager   decimal.Decimal
	conn    *websocket.Conn
	timeout time.Duration
	log     logger.Logger
}

func dialBot(ctx context.Context, config *Config) (*bot, error) {
	target, err := wsURL(config.BaseURL, config.WSPath)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: config.Timeout}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	b := &bot{
		wallet:  newWallet(),
		wager:   decimal.NewFromInt(randInt(maxWager) + 1),
		conn:    conn,
		timeout: config.Timeout,
	}
	b.log = logger.Named("bot").Named(b.wallet[:10])

	if _, err := b.await(model.TypeConnected); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("await greeting: %w", err)
	}
	return b, nil
}

// play joins the queue and answers every question until the match ends.
func (b *bot) play(ctx context.Context) (Outcome, error) {
	out := Outcome{Wallet: b.wallet}

	if err := b.send(session.TypeJoinQueue, map[string]any{
		"walletAddress": b.wallet,
		"wageredAmount": b.wager.String(),
	}); err != nil {
		return out, err
	}

	f, err := b.await(model.TypeMatchFound)
	if err != nil {
		return out, err
	}
	var found types.MatchFound
	if err := json.Unmarshal(f.Payload, &found); err != nil {
		return out, fmt.Errorf("decode match_found: %w", err)
	}
	if len(found.QuestionSet) == 0 {
		return out, ErrEmptyQuestionSet
	}
	out.MatchID = found.MatchID
	out.Slot = found.Slot
	b.log.Debug(ctx, "match found",
		logger.String("matchID", found.MatchID),
		logger.String("opponent", found.Opponent.WalletAddress),
		logger.Int("questions", len(found.QuestionSet)))

	if err := b.answer(found.MatchID, found.QuestionSet[0]); err != nil {
		return out, err
	}
	out.Answers = 1

	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		f, err := b.next()
		if err != nil {
			return out, err
		}
		if f.Type != model.TypeMatchUpdate {
			continue
		}
		var u types.MatchUpdate
		if err := json.Unmarshal(f.Payload, &u); err != nil {
			return out, fmt.Errorf("decode match_update: %w", err)
		}
		if u.MatchID != found.MatchID {
			continue
		}
		if u.Status != string(match.StatusActive) {
			out.Final = u
			b.log.Debug(ctx, "match finished", logger.String("matchID", u.MatchID), logger.String("status", u.Status))
			return out, nil
		}
		// Lockstep: the index moves once both players have answered.
		if u.CurrentQuestionIndex == out.Answers && out.Answers < len(found.QuestionSet) {
			if err := b.answer(found.MatchID, found.QuestionSet[out.Answers]); err != nil {
				return out, err
			}
			out.Answers++
		}
	}
}

func (b *bot) answer(matchID string, q types.QuestionView) error {
	return b.send(session.TypeSubmitAnswer, map[string]any{
		"matchId": matchID,
		"answer":  guess(q),
	})
}

func (b *bot) send(typ string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	_ = b.conn.SetWriteDeadline(time.Now().Add(b.timeout))
	return b.conn.WriteJSON(session.Envelope{Type: typ, RequestID: uuid.NewString(), Payload: raw})
}

// next reads one frame and turns error frames into errors.
func (b *bot) next() (frame, error) {
	_ = b.conn.SetReadDeadline(time.Now().Add(b.timeout))
	var f frame
	if err := b.conn.ReadJSON(&f); err != nil {
		return frame{}, fmt.Errorf("read: %w", err)
	}
	if f.Type == model.TypeError {
		var e types.ErrorPayload
		_ = json.Unmarshal(f.Payload, &e)
		return f, fmt.Errorf("%w: %s: %s", ErrServerError, e.Code, e.Message)
	}
	return f, nil
}

func (b *bot) await(typ string) (frame, error) {
	for {
		f, err := b.next()
		if err != nil || f.Type == typ {
			return f, err
		}
	}
}

func (b *bot) close() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = b.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
	_ = b.conn.Close()
}

// guess picks a random choice, or a random number for open numeric questions.
func guess(q types.QuestionView) string {
	if len(q.Choices) > 0 {
		return q.Choices[randInt(int64(len(q.Choices)))]
	}
	if q.Kind == string(question.KindNumeric) {
		return strconv.FormatInt(randInt(maxNumericBet), 10)
	}
	return "pass"
}

func wsURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		u.Scheme = "ws"
	}
	u.Path = path
	return u.String(), nil
}

func newWallet() string {
	return "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// randInt returns a uniform value in [0, n).
func randInt(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0
	}
	return v.Int64()
}
