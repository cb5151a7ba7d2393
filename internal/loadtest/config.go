package loadtest

import (
	"time"

	"github.com/okian/duelarena/internal/domain/types"
)

// Config holds configuration for a bot run.
type Config struct {
	BaseURL    string        // HTTP base URL of the service
	WSPath     string        // websocket route
	Pairs      int           // number of duels to play
	Timeout    time.Duration // per-request and per-read timeout
	OutputFile string        // JSON report destination
	LogFile    string        // log file for test output
	Verbose    bool          // log every bot step
}

// Stats holds run statistics.
type Stats struct {
	BotsStarted     int
	BotsFinished    int
	BotsFailed      int
	MatchesObserved int
	MatchesVerified int
	Answers         int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

// Outcome is what one bot saw of its match.
type Outcome struct {
	Wallet  string            `json:"wallet"`
	MatchID string            `json:"matchId"`
	Slot    string            `json:"slot"`
	Answers int               `json:"answers"`
	Final   types.MatchUpdate `json:"final"`
}

// MatchReport pairs both bots' view of a match with the archived result.
type MatchReport struct {
	MatchID  string            `json:"matchId"`
	Players  []Outcome         `json:"players"`
	Archived types.MatchResult `json:"archived"`
}
