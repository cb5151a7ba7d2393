package loadtest

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/duelarena/internal/domain/match"
	"github.com/okian/duelarena/pkg/logger"
)

// verifyResults checks that both players of each match saw the same final
// state and that the archived result agrees with it.
func verifyResults(ctx context.Context, config *Config, outcomes []Outcome, stats *Stats) ([]MatchReport, error) {
	logger.Get().Info(ctx, "verifying results", logger.Int("outcomes", len(outcomes)))

	byMatch := make(map[string][]Outcome)
	for _, o := range outcomes {
		byMatch[o.MatchID] = append(byMatch[o.MatchID], o)
	}
	ids := make([]string, 0, len(byMatch))
	for id := range byMatch {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	stats.MatchesObserved = len(ids)

	client := newHTTPClient(config.Timeout)
	reports := make([]MatchReport, 0, len(ids))
	var mismatches int
	for _, id := range ids {
		report := MatchReport{MatchID: id, Players: byMatch[id]}
		sort.Slice(report.Players, func(i, j int) bool { return report.Players[i].Slot < report.Players[j].Slot })

		archived, err := fetchResult(ctx, client, config.BaseURL, id)
		if err != nil {
			return reports, err
		}
		report.Archived = archived
		reports = append(reports, report)

		if err := verifyMatch(report); err != nil {
			mismatches++
			logger.Get().Warn(ctx, "match verification failed", logger.String("matchID", id), logger.Error(err))
			continue
		}
		stats.MatchesVerified++
	}

	if mismatches > 0 {
		return reports, fmt.Errorf("%w: %d of %d matches", ErrResultMismatch, mismatches, len(ids))
	}
	logger.Get().Info(ctx, "result verification completed", logger.Int("matches", stats.MatchesVerified))
	return reports, nil
}

// verifyMatch compares every player's final update with the archived result.
func verifyMatch(r MatchReport) error {
	a := r.Archived
	for _, p := range r.Players {
		f := p.Final
		if f.Status != a.Status {
			return fmt.Errorf("%s saw status %s, archive has %s", p.Wallet, f.Status, a.Status)
		}
		if f.ScoreA != a.ScoreA || f.ScoreB != a.ScoreB {
			return fmt.Errorf("%s saw score %d:%d, archive has %d:%d", p.Wallet, f.ScoreA, f.ScoreB, a.ScoreA, a.ScoreB)
		}
		if f.Outcome == nil || f.Outcome.Winner != a.Outcome.Winner || f.Outcome.Draw != a.Outcome.Draw {
			return fmt.Errorf("%s saw a different outcome than the archive", p.Wallet)
		}

		seat := a.PlayerA
		if p.Slot == match.SlotB.String() {
			seat = a.PlayerB
		}
		if seat != p.Wallet {
			return fmt.Errorf("%s was seated as %s, archive has %s", p.Wallet, p.Slot, seat)
		}
	}
	if a.Outcome.Winner != "" && a.Outcome.Winner != a.PlayerA && a.Outcome.Winner != a.PlayerB {
		return fmt.Errorf("winner %s is not a player", a.Outcome.Winner)
	}
	return nil
}
