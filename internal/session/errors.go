package session

import (
	"errors"

	"github.com/okian/duelarena/internal/domain/fault"
)

// Sentinel errors for this package. Compare with errors.Is.
var (
	ErrMalformedMessage = fault.New("", fault.ErrValidation, "malformed_message")
	ErrUnknownType      = fault.New("", fault.ErrValidation, "unknown_message_type")
	ErrInvalidWallet    = fault.New("", fault.ErrValidation, "invalid_wallet")
	ErrInvalidWager     = fault.New("", fault.ErrValidation, "invalid_wager")
	ErrInvalidAnswer    = fault.New("", fault.ErrValidation, "invalid_answer")
	ErrMissingMatchID   = fault.New("", fault.ErrValidation, "missing_match_id")
	ErrAlreadyInMatch   = fault.New("", fault.ErrValidation, "already_in_match")
)

// Transport errors reported to the dispatcher.
var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrSlowConsumer      = errors.New("send buffer full")
)

// messages are the client-facing descriptions of wire codes.
var messages = map[string]string{
	"malformed_message":      "message could not be parsed",
	"unknown_message_type":   "message type is not supported",
	"invalid_wallet":         "walletAddress is required",
	"invalid_wager":          "wageredAmount must be a non-negative number",
	"invalid_answer":         "answer is required",
	"missing_match_id":       "matchId is required",
	"already_in_match":       "connection or wallet is already playing a match",
	"match_not_found":        "match does not exist",
	"match_not_active":       "match is no longer active",
	"no_questions_available": "no question set is available, you are back in the queue",
	"not_your_turn":          "connection is not seated in this match",
	"already_answered":       "current question already answered",
	"not_participant":        "wallet is not a participant of this match",
	"unknown_topic":          "topicId is not recognized",
	"no_active_scenario":     "no scenario is running for this session",
	"invalid_event":          "eventType is required",
}

// describe returns the wire code and message for err. Errors that are not
// public collapse to internal_error.
func describe(err error) (code, message string) {
	if !fault.Public(err) {
		return fault.CodeInternal, "internal error"
	}
	code = fault.CodeOf(err)
	if msg, ok := messages[code]; ok {
		return code, msg
	}
	return code, code
}
