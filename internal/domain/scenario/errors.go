package scenario

import "github.com/okian/duelarena/internal/domain/fault"

// Sentinel errors for this package. Compare with errors.Is.
var (
	ErrUnknownTopic     = fault.New("", fault.ErrNotFound, "unknown_topic")
	ErrNoActiveScenario = fault.New("", fault.ErrNotFound, "no_active_scenario")
	ErrInvalidEvent     = fault.New("", fault.ErrValidation, "invalid_event")
)
