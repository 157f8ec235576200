package models

import (
	"time"

	"github.com/google/uuid"
)

// SavedAnalysis is a composed analysis kept in the user's history
type SavedAnalysis struct {
	ID         uuid.UUID       `json:"id"`
	UserID     string          `json:"user_id"`
	Title      string          `json:"title"`
	Request    AnalysisRequest `json:"request"`
	Result     AnalysisResult  `json:"result"`
	Bookmarked bool            `json:"bookmarked"`
	CreatedAt  time.Time       `json:"created_at"`
}

func NewSavedAnalysis(userID string, req AnalysisRequest, result AnalysisResult) *SavedAnalysis {
	return &SavedAnalysis{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     req.Title(),
		Request:   req,
		Result:    result,
		CreatedAt: time.Now(),
	}
}

// Bookmark pins the analysis to the bookmarked list
func (s *SavedAnalysis) Bookmark() {
	s.Bookmarked = true
}

// Unbookmark removes the pin
func (s *SavedAnalysis) Unbookmark() {
	s.Bookmarked = false
}

// AnalysisFilter narrows a history listing. Zero values mean "any".
type AnalysisFilter struct {
	UserID         string
	SubjectKind    SubjectKind
	BookmarkedOnly bool
	Limit          int
}

// Matches reports whether s passes every set criterion except Limit
func (f AnalysisFilter) Matches(s *SavedAnalysis) bool {
	if f.UserID != "" && s.UserID != f.UserID {
		return false
	}
	if f.SubjectKind != "" && s.Request.SubjectKind != f.SubjectKind {
		return false
	}
	if f.BookmarkedOnly && !s.Bookmarked {
		return false
	}
	return true
}
