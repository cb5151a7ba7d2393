package match

import "github.com/okian/duelarena/internal/domain/fault"

// Sentinel errors for this package. Compare with errors.Is.
var (
	ErrMatchNotFound        = fault.New("", fault.ErrNotFound, "match_not_found")
	ErrMatchNotActive       = fault.New("", fault.ErrNotFound, "match_not_active")
	ErrNoQuestionsAvailable = fault.New("", fault.ErrResourceUnavailable, "no_questions_available")
	ErrNotYourTurn          = fault.New("", fault.ErrValidation, "not_your_turn")
	ErrAlreadyAnswered      = fault.New("", fault.ErrValidation, "already_answered")
	ErrNotParticipant       = fault.New("", fault.ErrValidation, "not_participant")
	ErrInvalidPair          = fault.New("", fault.ErrValidation, "invalid_pair")
	ErrPlayerBusy           = fault.New("", fault.ErrValidation, "already_in_match")
)
