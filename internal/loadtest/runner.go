// Package loadtest drives a running duel arena service with websocket bots
// and checks the archived results against what the bots observed.
package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/duelarena/pkg/logger"
)

// Run executes the complete bot run.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting duel bot run",
		logger.String("baseURL", config.BaseURL),
		logger.String("wsPath", config.WSPath),
		logger.Int("pairs", config.Pairs),
		logger.String("timeout", config.Timeout.String()),
		logger.Bool("verbose", config.Verbose))

	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	outcomes := playDuels(ctx, config, stats)

	reports, err := verifyResults(ctx, config, outcomes, stats)
	if err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	if err := saveReport(ctx, config, reports); err != nil {
		logger.Get().Warn(ctx, "failed to save report", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	if stats.BotsFailed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrBotsFailed, stats.BotsFailed, stats.BotsStarted)
	}
	logger.Get().Info(ctx, "run completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveReport writes the per-match reports to a JSON file.
func saveReport(ctx context.Context, config *Config, reports []MatchReport) error {
	if len(reports) == 0 {
		return fmt.Errorf("no matches to save")
	}

	filename := config.OutputFile
	if filename == "" {
		filename = "duel_report_" + time.Now().Format("20060102_150405") + ".json"
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), logFilePermission); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logger.Get().Info(ctx, "report saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(stats *Stats) {
	var successRate, duelsPerSecond float64

	if stats.BotsStarted > 0 {
		successRate = float64(stats.BotsFinished) / float64(stats.BotsStarted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		duelsPerSecond = float64(stats.MatchesObserved) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("botsStarted", stats.BotsStarted),
		logger.Int("botsFinished", stats.BotsFinished),
		logger.Int("botsFailed", stats.BotsFailed),
		logger.Int("matchesObserved", stats.MatchesObserved),
		logger.Int("matchesVerified", stats.MatchesVerified),
		logger.Int("answers", stats.Answers),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("duelsPerSecond", duelsPerSecond))
}
