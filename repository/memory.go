package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-lens/models"

	"github.com/google/uuid"
)

type cachedSnapshot struct {
	snap      models.MarketSnapshot
	expiresAt time.Time
}

// MemoryStore keeps everything in process. It is the default store when no
// database is configured and the store used by tests.
type MemoryStore struct {
	mu        sync.RWMutex
	analyses  map[uuid.UUID]models.SavedAnalysis
	snapshots map[string]cachedSnapshot
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		analyses:  make(map[uuid.UUID]models.SavedAnalysis),
		snapshots: make(map[string]cachedSnapshot),
		now:       time.Now,
	}
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) Health(ctx context.Context) error {
	return nil
}

// SaveAnalysis inserts or replaces a by ID
func (s *MemoryStore) SaveAnalysis(ctx context.Context, a *models.SavedAnalysis) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[a.ID] = *a
	return nil
}

func (s *MemoryStore) GetAnalysis(ctx context.Context, id uuid.UUID) (*models.SavedAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.analyses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

// ListAnalyses returns matching analyses, newest first
func (s *MemoryStore) ListAnalyses(ctx context.Context, filter models.AnalysisFilter) ([]models.SavedAnalysis, error) {
	s.mu.RLock()
	out := make([]models.SavedAnalysis, 0, len(s.analyses))
	for _, a := range s.analyses {
		if filter.Matches(&a) {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit := listLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ToggleBookmark flips the bookmark flag and returns the new value
func (s *MemoryStore) ToggleBookmark(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.analyses[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.Bookmarked {
		a.Unbookmark()
	} else {
		a.Bookmark()
	}
	s.analyses[id] = a
	return a.Bookmarked, nil
}

func (s *MemoryStore) DeleteAnalysis(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.analyses[id]; !ok {
		return ErrNotFound
	}
	delete(s.analyses, id)
	return nil
}

// GetCachedSnapshot returns nil without error when key is missing or expired
func (s *MemoryStore) GetCachedSnapshot(ctx context.Context, key string) (*models.MarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.snapshots[key]
	if !ok || !s.now().Before(c.expiresAt) {
		return nil, nil
	}
	snap := c.snap
	return &snap, nil
}

func (s *MemoryStore) SetCachedSnapshot(ctx context.Context, key string, snap models.MarketSnapshot, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[key] = cachedSnapshot{snap: snap, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) CleanExpiredCache(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := s.now()
	for k, c := range s.snapshots {
		if !now.Before(c.expiresAt) {
			delete(s.snapshots, k)
			n++
		}
	}
	return n, nil
}
