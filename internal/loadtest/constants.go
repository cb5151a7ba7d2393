package loadtest

import "time"

// Runner configuration constants.
const (
	PercentageMultiplier = 100
	directoryPermission  = 0750
	logFilePermission    = 0600
)

// Result lookup retries; results are archived just after the final update.
const (
	resultAttempts = 20
	resultBackoff  = 50 * time.Millisecond
)

// Bot parameters.
const (
	maxWager       = 100
	maxNumericBet  = 5000
	botsPerMatch   = 2
	joinStagger    = 5 * time.Millisecond
	closeWriteWait = time.Second
)
