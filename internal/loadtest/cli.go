package loadtest

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/duelarena/pkg/logger"
)

// SetupLogging sends logs to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		logFile = "duel_bots_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the duel bot tool.
func ShowHelp() {
	os.Stdout.WriteString(`Duel Arena Bot Runner
=====================

Plays concurrent duels against a running duel arena service over websocket
and cross-checks every finished match against GET /matches/{id}.

Usage:
  go run ./cmd/duel-bots [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -ws string
        Websocket path (default "/ws")
  -pairs int
        Number of duels to play (default 50)
  -timeout duration
        Request and read timeout (default 30s)
  -output string
        Report file (default: duel_report_TIMESTAMP.json)
  -log string
        Log file (default: duel_bots_TIMESTAMP.log)
  -verbose
        Log every bot step
  -help
        Show this help message

Examples:
  go run ./cmd/duel-bots -pairs 200
  go run ./cmd/duel-bots -url http://localhost:8080 -verbose
`)
}
