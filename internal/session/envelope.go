package session

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Inbound message types.
const (
	TypeJoinQueue     = "join_queue"
	TypeLeaveQueue    = "leave_queue"
	TypeSubmitAnswer  = "submit_answer"
	TypeRejoinMatch   = "rejoin_match"
	TypeStartScenario = "start_scenario"
	TypeTriggerEvent  = "trigger_event"
	TypeStopScenario  = "stop_scenario"
	TypePollScenario  = "poll_scenario"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// outbound is the write-side envelope; Payload is encoded as is.
type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type joinQueueRequest struct {
	WalletAddress string           `json:"walletAddress"`
	WageredAmount *decimal.Decimal `json:"wageredAmount"`
}

type submitAnswerRequest struct {
	MatchID string          `json:"matchId"`
	Answer  json.RawMessage `json:"answer"`
}

type rejoinMatchRequest struct {
	MatchID       string `json:"matchId"`
	WalletAddress string `json:"walletAddress"`
}

type startScenarioRequest struct {
	TopicID string         `json:"topicId"`
	Params  map[string]any `json:"params"`
}

type triggerEventRequest struct {
	EventType   string         `json:"eventType"`
	EventParams map[string]any `json:"eventParams"`
}

// answerText accepts a JSON string or a bare JSON number or bool and
// returns its textual form.
func answerText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	switch raw[0] {
	case '{', '[':
		return "", false
	}
	return string(raw), true
}

// decodePayload unmarshals an optional payload. A missing payload leaves v
// at its zero value.
func decodePayload(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
