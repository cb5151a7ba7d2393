package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/duelarena/internal/domain/types"
	"github.com/okian/duelarena/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request bound to ctx.
func (c *HTTPClient) Get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// fetchResult reads the archived result of a match, retrying while the
// archive has not caught up with the final update.
func fetchResult(ctx context.Context, client *HTTPClient, baseURL, matchID string) (types.MatchResult, error) {
	target := baseURL + "/matches/" + url.PathEscape(matchID)

	var last int
	for attempt := 0; attempt < resultAttempts; attempt++ {
		resp, err := client.Get(ctx, target)
		if err != nil {
			return types.MatchResult{}, fmt.Errorf("get %s: %w", target, err)
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return types.MatchResult{}, fmt.Errorf("read %s: %w", target, err)
		}

		last = resp.StatusCode
		switch resp.StatusCode {
		case http.StatusOK:
			var res types.MatchResult
			if err := json.Unmarshal(body, &res); err != nil {
				return types.MatchResult{}, fmt.Errorf("decode result: %w", err)
			}
			return res, nil
		case http.StatusNotFound:
		default:
			return types.MatchResult{}, fmt.Errorf("%w: %s: status %d", ErrResultUnavailable, matchID, resp.StatusCode)
		}

		select {
		case <-ctx.Done():
			return types.MatchResult{}, ctx.Err()
		case <-time.After(resultBackoff):
		}
	}
	return types.MatchResult{}, fmt.Errorf("%w: %s: status %d", ErrResultUnavailable, matchID, last)
}

// playDuels runs two bots per configured pair concurrently.
func playDuels(ctx context.Context, config *Config, stats *Stats) []Outcome {
	total := config.Pairs * botsPerMatch
	logger.Get().Info(ctx, "starting bots", logger.Int("bots", total))

	var (
		mu       sync.Mutex
		outcomes = make([]Outcome, 0, total)
		finished int64
		failed   int64
		wg       sync.WaitGroup
	)

	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			out, err := runBot(ctx, config)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				logger.Get().Warn(ctx, "bot failed", logger.String("wallet", out.Wallet), logger.Error(err))
				return
			}
			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()

			if n := atomic.AddInt64(&finished, 1); config.Verbose {
				logger.Get().Info(ctx, "progress", logger.Int("finished", int(n)), logger.Int("bots", total))
			}
		}()

		select {
		case <-ctx.Done():
		case <-time.After(joinStagger):
		}
	}
	wg.Wait()

	stats.BotsStarted = total
	stats.BotsFinished = int(atomic.LoadInt64(&finished))
	stats.BotsFailed = int(atomic.LoadInt64(&failed))
	for _, o := range outcomes {
		stats.Answers += o.Answers
	}

	logger.Get().Info(ctx, "bots completed",
		logger.Int("finished", stats.BotsFinished),
		logger.Int("failed", stats.BotsFailed))
	return outcomes
}

func runBot(ctx context.Context, config *Config) (Outcome, error) {
	b, err := dialBot(ctx, config)
	if err != nil {
		return Outcome{}, err
	}
	defer b.close()
	return b.play(ctx)
}
