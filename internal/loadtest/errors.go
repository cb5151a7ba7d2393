package loadtest

import "errors"

var (
	// ErrUnhealthy is returned when the service health check fails.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrServerError wraps an error frame sent to a bot.
	ErrServerError = errors.New("server replied with error")
	// ErrEmptyQuestionSet is returned when a match starts without questions.
	ErrEmptyQuestionSet = errors.New("match started without questions")
	// ErrResultMismatch is returned when bot views and the archive disagree.
	ErrResultMismatch = errors.New("match result mismatch")
	// ErrResultUnavailable is returned when a finished match cannot be fetched.
	ErrResultUnavailable = errors.New("match result unavailable")
	// ErrBotsFailed is returned when at least one bot did not finish its duel.
	ErrBotsFailed = errors.New("bots failed")
)
