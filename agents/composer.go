package agents

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-lens/internal/rng"
	"market-lens/models"
	"market-lens/observability"
	"market-lens/services"
)

// Composer dispatches analysis requests to the analyst for their subject
// and decorates the result with an optional narrative.
type Composer struct {
	mu       sync.RWMutex
	analysts map[models.SubjectKind]Analyst
	narrator *Narrator
	now      func() time.Time
}

// NewComposer creates a Composer with the four built-in analysts. Ticker
// analyses price off data; every analyst draws from src.
func NewComposer(src rng.Source, data services.MarketData) *Composer {
	c := &Composer{
		analysts: make(map[models.SubjectKind]Analyst),
		now:      time.Now,
	}
	c.RegisterAnalyst(NewTickerAnalyst(src, data))
	c.RegisterAnalyst(NewSectorAnalyst(src))
	c.RegisterAnalyst(NewPortfolioAnalyst(src))
	c.RegisterAnalyst(NewMarketAnalyst(src))
	return c
}

// RegisterAnalyst adds or replaces the analyst for its subject
func (c *Composer) RegisterAnalyst(a Analyst) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analysts[a.Subject()] = a
}

// SetNarrator enables narration; nil disables it
func (c *Composer) SetNarrator(n *Narrator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.narrator = n
}

// Analysts returns the registered analyst names, sorted
func (c *Composer) Analysts() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.analysts))
	for _, a := range c.analysts {
		names = append(names, a.Name())
	}
	sort.Strings(names)
	return names
}

// Compose builds the analysis for req. It does not validate req: an unknown
// subject is analyzed as the market, and empty ticker, sector or kind fall
// back to their defaults.
func (c *Composer) Compose(ctx context.Context, req models.AnalysisRequest) *models.AnalysisResult {
	subject := req.SubjectKind
	if !subject.Valid() {
		subject = models.SubjectMarket
	}
	if req.AnalysisKind == "" {
		req.AnalysisKind = models.AnalysisComprehensive
	}

	metrics := observability.GetMetrics()
	metrics.RecordAnalysisRequest(string(subject), string(req.AnalysisKind))
	timer := metrics.NewTimer()

	c.mu.RLock()
	analyst := c.analysts[subject]
	narrator := c.narrator
	c.mu.RUnlock()

	result := analyst.Analyze(ctx, req)
	if narrator != nil {
		narrator.Narrate(ctx, req, result)
	}
	result.GeneratedAt = c.now()

	timer.ObserveAnalysis(string(subject), "success")
	metrics.RecordRecommendation(string(subject), string(result.Recommendation), result.ConfidenceScore)

	observability.WithSubject(string(subject), string(req.AnalysisKind)).Info("analysis composed",
		"analyst", analyst.Name(),
		"ticker", req.Ticker,
		"sector", req.Sector,
		"recommendation", result.Recommendation,
		"confidence", result.ConfidenceScore,
		"risk", result.RiskLevel,
		"narrated", result.Narrative != "",
		"duration_ms", timer.Duration().Milliseconds())

	return result
}
