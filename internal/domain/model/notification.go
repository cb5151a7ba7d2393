// Package model contains domain models passed between layers.
package model

import "time"

// Outbound message types.
const (
	TypeConnected       = "connected"
	TypeQueued          = "queued"
	TypeLeftQueue       = "left_queue"
	TypeMatchFound      = "match_found"
	TypeMatchUpdate     = "match_update"
	TypeScenarioUpdate  = "scenario_update"
	TypeScenarioStopped = "scenario_stopped"
	TypeError           = "error"
)

// Notification is an outbound message addressed to one connection.
type Notification struct {
	ConnectionID string    // recipient
	Type         string    // one of the Type* constants
	Payload      any       // JSON-encodable body
	EnqueuedAt   time.Time // set by the outbox when accepted
}
