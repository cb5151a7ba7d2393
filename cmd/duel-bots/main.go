package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/duelarena/internal/loadtest"
)

// Default configuration constants.
const (
	defaultPairs       = 50
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		wsPath     = flag.String("ws", "/ws", "Websocket path")
		pairs      = flag.Int("pairs", defaultPairs, "Number of duels to play")
		timeout    = flag.Duration("timeout", defaultTimeout, "Request and read timeout")
		outputFile = flag.String("output", "", "Report file (default: duel_report_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file (default: duel_bots_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Log every bot step")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp()
		return
	}

	if err := loadtest.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &loadtest.Config{
		BaseURL:    *baseURL,
		WSPath:     *wsPath,
		Pairs:      *pairs,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if err := loadtest.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Run failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
