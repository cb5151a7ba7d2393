// Package types contains the wire payload shapes shared by the match
// manager, the session router and the HTTP API.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Opponent describes the other player in a match_found message.
type Opponent struct {
	WalletAddress string          `json:"walletAddress"`
	WageredAmount decimal.Decimal `json:"wageredAmount"`
}

// QuestionView is a question without its expected answer.
type QuestionView struct {
	ID      string   `json:"id"`
	Topic   string   `json:"topic,omitempty"`
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices,omitempty"`
	Kind    string   `json:"kind"`
}

// MatchFound is sent to each player when a match starts.
type MatchFound struct {
	MatchID     string         `json:"matchId"`
	Slot        string         `json:"slot"`
	Opponent    Opponent       `json:"opponent"`
	QuestionSet []QuestionView `json:"questionSet"`
}

// Outcome describes how a finished match was decided.
type Outcome struct {
	Winner string `json:"winner,omitempty"` // winning wallet, empty on draw/refund
	Draw   bool   `json:"draw"`
	Refund bool   `json:"refund"`
	Reason string `json:"reason"`
}

// MatchUpdate reports match progress.
type MatchUpdate struct {
	MatchID              string   `json:"matchId"`
	CurrentQuestionIndex int      `json:"currentQuestionIndex"`
	ScoreA               int      `json:"scoreA"`
	ScoreB               int      `json:"scoreB"`
	Status               string   `json:"status"`
	Outcome              *Outcome `json:"outcome,omitempty"`
}

// MatchResult is the archived view of a finished match.
type MatchResult struct {
	MatchID       string    `json:"matchId"`
	PlayerA       string    `json:"playerA"`
	PlayerB       string    `json:"playerB"`
	WagerA        string    `json:"wagerA"`
	WagerB        string    `json:"wagerB"`
	ScoreA        int       `json:"scoreA"`
	ScoreB        int       `json:"scoreB"`
	QuestionCount int       `json:"questionCount"`
	Status        string    `json:"status"`
	Outcome       Outcome   `json:"outcome"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
}

// Queued acknowledges join_queue.
type Queued struct {
	Position  int `json:"position"`
	QueueSize int `json:"queueSize"`
}

// ScenarioUpdate carries a topic-specific payload.
type ScenarioUpdate struct {
	TopicID string `json:"topicId"`
	Payload any    `json:"payload"`
}

// ErrorPayload is the body of an outbound error message.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// Connected greets a new connection with its id.
type Connected struct {
	ConnectionID string `json:"connectionId"`
}
