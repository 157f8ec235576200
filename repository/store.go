package repository

import (
	"context"
	"errors"
	"time"

	"market-lens/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a saved analysis does not exist
var ErrNotFound = errors.New("not found")

// Snapshot cache keys written by the refresher
const (
	CacheKeyIndices   = "market:indices"
	CacheKeyWatchlist = "market:watchlist"
)

// defaultListLimit caps history listings when the caller passes no limit
const defaultListLimit = 50

// Store persists the analysis history and the market snapshot cache
type Store interface {
	// Health and lifecycle
	Close()
	Health(ctx context.Context) error

	// Saved analyses
	SaveAnalysis(ctx context.Context, a *models.SavedAnalysis) error
	GetAnalysis(ctx context.Context, id uuid.UUID) (*models.SavedAnalysis, error)
	ListAnalyses(ctx context.Context, filter models.AnalysisFilter) ([]models.SavedAnalysis, error)
	ToggleBookmark(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteAnalysis(ctx context.Context, id uuid.UUID) error

	// Snapshot cache
	GetCachedSnapshot(ctx context.Context, key string) (*models.MarketSnapshot, error)
	SetCachedSnapshot(ctx context.Context, key string, snap models.MarketSnapshot, ttl time.Duration) error
	CleanExpiredCache(ctx context.Context) (int64, error)
}

// Compile-time interface verification
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
