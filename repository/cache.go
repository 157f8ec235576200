package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"market-lens/models"

	"github.com/jackc/pgx/v5"
)

// GetCachedSnapshot returns the cached snapshot for key, or nil when it is
// missing or expired
func (s *PostgresStore) GetCachedSnapshot(ctx context.Context, key string) (*models.MarketSnapshot, error) {
	if err := s.checkDB(); err != nil {
		return nil, err
	}
	var data []byte

	// Let the database handle expiry check to avoid timezone issues
	err := s.db.QueryRow(ctx, `
		SELECT data FROM market_snapshot_cache
		WHERE cache_key = $1 AND expires_at > NOW()
	`, key).Scan(&data)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	var snap models.MarketSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return &snap, nil
}

// SetCachedSnapshot stores snap under key with a TTL
func (s *PostgresStore) SetCachedSnapshot(ctx context.Context, key string, snap models.MarketSnapshot, ttl time.Duration) error {
	if err := s.checkDB(); err != nil {
		return err
	}
	jsonData, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO market_snapshot_cache (cache_key, data, expires_at)
		VALUES ($1, $2, NOW() + $3::interval)
		ON CONFLICT (cache_key)
		DO UPDATE SET data = EXCLUDED.data, expires_at = NOW() + $3::interval, created_at = NOW()
	`, key, jsonData, ttl.String())
	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// CleanExpiredCache removes all expired cache entries
func (s *PostgresStore) CleanExpiredCache(ctx context.Context) (int64, error) {
	if err := s.checkDB(); err != nil {
		return 0, err
	}
	result, err := s.db.Exec(ctx, `DELETE FROM market_snapshot_cache WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired cache: %w", err)
	}
	return result.RowsAffected(), nil
}
