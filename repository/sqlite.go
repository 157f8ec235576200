package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"market-lens/models"
	"market-lens/observability"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS saved_analyses (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL DEFAULT '',
		title         TEXT NOT NULL,
		subject_kind  TEXT NOT NULL,
		ticker        TEXT NOT NULL DEFAULT '',
		sector        TEXT NOT NULL DEFAULT '',
		timeframe     TEXT NOT NULL,
		analysis_kind TEXT NOT NULL,
		result        TEXT NOT NULL,
		bookmarked    INTEGER NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_saved_analyses_user_created ON saved_analyses(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS market_snapshot_cache (
		cache_key  TEXT PRIMARY KEY,
		data       TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	)`,
}

// SQLiteStore persists history to an embedded SQLite database. Timestamps
// are stored as Unix nanoseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time; sqlite serializes writes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	observability.Info("sqlite store opened", "path", path)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveAnalysis inserts a, or replaces the row with the same ID
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, a *models.SavedAnalysis) error {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "saved_analyses")

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	result, err := json.Marshal(a.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO saved_analyses (`+analysisColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title, result = excluded.result, bookmarked = excluded.bookmarked`,
		a.ID.String(), a.UserID, a.Title, string(a.Request.SubjectKind), a.Request.Ticker, a.Request.Sector,
		string(a.Request.Timeframe), string(a.Request.AnalysisKind), string(result), a.Bookmarked, a.CreatedAt.UnixNano())
	if err != nil {
		metrics.RecordDBError("insert", "saved_analyses")
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id uuid.UUID) (*models.SavedAnalysis, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "saved_analyses")

	row := s.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM saved_analyses WHERE id = ?`, id.String())
	a, err := scanSQLiteAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.RecordDBError("select", "saved_analyses")
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// ListAnalyses returns analyses matching filter, newest first
func (s *SQLiteStore) ListAnalyses(ctx context.Context, filter models.AnalysisFilter) ([]models.SavedAnalysis, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "saved_analyses")

	rows, err := s.db.QueryContext(ctx, `SELECT `+analysisColumns+`
		FROM saved_analyses
		WHERE (?1 = '' OR user_id = ?1)
		  AND (?2 = '' OR subject_kind = ?2)
		  AND (?3 = 0 OR bookmarked = 1)
		ORDER BY created_at DESC, id
		LIMIT ?4`,
		filter.UserID, string(filter.SubjectKind), filter.BookmarkedOnly, listLimit(filter.Limit))
	if err != nil {
		metrics.RecordDBError("select", "saved_analyses")
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	out := []models.SavedAnalysis{}
	for rows.Next() {
		a, err := scanSQLiteAnalysis(rows)
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

func (s *SQLiteStore) ToggleBookmark(ctx context.Context, id uuid.UUID) (bool, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("update", "saved_analyses")

	var bookmarked bool
	err := s.db.QueryRowContext(ctx,
		`UPDATE saved_analyses SET bookmarked = 1 - bookmarked WHERE id = ? RETURNING bookmarked`,
		id.String()).Scan(&bookmarked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		metrics.RecordDBError("update", "saved_analyses")
		return false, fmt.Errorf("failed to toggle bookmark: %w", err)
	}
	return bookmarked, nil
}

func (s *SQLiteStore) DeleteAnalysis(ctx context.Context, id uuid.UUID) error {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("delete", "saved_analyses")

	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_analyses WHERE id = ?`, id.String())
	if err != nil {
		metrics.RecordDBError("delete", "saved_analyses")
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetCachedSnapshot returns nil without error when key is missing or expired
func (s *SQLiteStore) GetCachedSnapshot(ctx context.Context, key string) (*models.MarketSnapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM market_snapshot_cache WHERE cache_key = ? AND expires_at > ?`,
		key, s.now().UnixNano()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	var snap models.MarketSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return &snap, nil
}

func (s *SQLiteStore) SetCachedSnapshot(ctx context.Context, key string, snap models.MarketSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO market_snapshot_cache (cache_key, data, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		key, string(data), s.now().Add(ttl).UnixNano())
	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CleanExpiredCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM market_snapshot_cache WHERE expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired cache: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAnalysis(row rowScanner) (*models.SavedAnalysis, error) {
	var (
		a                                 models.SavedAnalysis
		id, subject, timeframe, kind, raw string
		createdAt                         int64
	)
	err := row.Scan(&id, &a.UserID, &a.Title, &subject, &a.Request.Ticker, &a.Request.Sector,
		&timeframe, &kind, &raw, &a.Bookmarked, &createdAt)
	if err != nil {
		return nil, err
	}

	if a.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid analysis id %q: %w", id, err)
	}
	a.Request.SubjectKind = models.SubjectKind(subject)
	a.Request.Timeframe = models.AnalysisTimeframe(timeframe)
	a.Request.AnalysisKind = models.AnalysisKind(kind)
	a.CreatedAt = time.Unix(0, createdAt).UTC()

	if err := json.Unmarshal([]byte(raw), &a.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis result: %w", err)
	}
	return &a, nil
}
