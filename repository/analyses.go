package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"market-lens/models"
	"market-lens/observability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const analysisColumns = `id, user_id, title, subject_kind, ticker, sector, timeframe, analysis_kind,
	result, bookmarked, created_at`

// SaveAnalysis inserts a, or replaces the row with the same ID
func (s *PostgresStore) SaveAnalysis(ctx context.Context, a *models.SavedAnalysis) error {
	if err := s.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "saved_analyses")

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	result, err := json.Marshal(a.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis result: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO saved_analyses (`+analysisColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, result = EXCLUDED.result, bookmarked = EXCLUDED.bookmarked
	`, a.ID, a.UserID, a.Title, a.Request.SubjectKind, a.Request.Ticker, a.Request.Sector,
		a.Request.Timeframe, a.Request.AnalysisKind, result, a.Bookmarked, a.CreatedAt)
	if err != nil {
		metrics.RecordDBError("insert", "saved_analyses")
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// GetAnalysis returns a single saved analysis by ID
func (s *PostgresStore) GetAnalysis(ctx context.Context, id uuid.UUID) (*models.SavedAnalysis, error) {
	if err := s.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "saved_analyses")

	row := s.db.QueryRow(ctx, `SELECT `+analysisColumns+` FROM saved_analyses WHERE id = $1`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.RecordDBError("select", "saved_analyses")
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// ListAnalyses returns analyses matching filter, newest first
func (s *PostgresStore) ListAnalyses(ctx context.Context, filter models.AnalysisFilter) ([]models.SavedAnalysis, error) {
	if err := s.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "saved_analyses")

	rows, err := s.db.Query(ctx, `
		SELECT `+analysisColumns+`
		FROM saved_analyses
		WHERE ($1 = '' OR user_id = $1)
		  AND ($2 = '' OR subject_kind = $2)
		  AND (NOT $3 OR bookmarked)
		ORDER BY created_at DESC, id
		LIMIT $4
	`, filter.UserID, string(filter.SubjectKind), filter.BookmarkedOnly, listLimit(filter.Limit))
	if err != nil {
		metrics.RecordDBError("select", "saved_analyses")
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	out := []models.SavedAnalysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			metrics.RecordDBError("select", "saved_analyses")
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analyses: %w", err)
	}
	return out, nil
}

// ToggleBookmark flips the bookmark flag and returns the new value
func (s *PostgresStore) ToggleBookmark(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := s.checkDB(); err != nil {
		return false, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("update", "saved_analyses")

	var bookmarked bool
	err := s.db.QueryRow(ctx, `
		UPDATE saved_analyses SET bookmarked = NOT bookmarked WHERE id = $1 RETURNING bookmarked
	`, id).Scan(&bookmarked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		metrics.RecordDBError("update", "saved_analyses")
		return false, fmt.Errorf("failed to toggle bookmark: %w", err)
	}
	return bookmarked, nil
}

// DeleteAnalysis removes a saved analysis
func (s *PostgresStore) DeleteAnalysis(ctx context.Context, id uuid.UUID) error {
	if err := s.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("delete", "saved_analyses")

	tag, err := s.db.Exec(ctx, `DELETE FROM saved_analyses WHERE id = $1`, id)
	if err != nil {
		metrics.RecordDBError("delete", "saved_analyses")
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanAnalysis scans a saved_analyses row into a SavedAnalysis
func scanAnalysis(row pgx.Row) (*models.SavedAnalysis, error) {
	var a models.SavedAnalysis
	var result []byte

	err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.Request.SubjectKind, &a.Request.Ticker, &a.Request.Sector,
		&a.Request.Timeframe, &a.Request.AnalysisKind, &result, &a.Bookmarked, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(result, &a.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis result: %w", err)
	}
	return &a, nil
}
