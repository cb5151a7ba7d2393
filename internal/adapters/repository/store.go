// Package repository keeps finished match results for late queries.
package repository

import (
	"context"

	"github.com/okian/duelarena/internal/domain/types"
)

// Store provides access to archived match results.
type Store interface {
	// Put archives a finished result. Re-putting a match id replaces it.
	Put(ctx context.Context, r types.MatchResult) error

	// Get returns the result for matchID unless it is unknown or expired.
	Get(ctx context.Context, matchID string) (types.MatchResult, bool)

	// Count returns the number of archived results.
	Count(ctx context.Context) int
}
