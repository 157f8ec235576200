package agents

import (
	"context"
	"testing"
	"time"

	"market-lens/internal/rng"
	"market-lens/models"
	"market-lens/observability"
	"market-lens/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

func newTestComposer(t *testing.T, src rng.Source) (*Composer, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetrics(prometheus.NewRegistry())
	observability.SetMetrics(m)

	c := NewComposer(src, services.NewSyntheticMarketData(rng.New(1)))
	c.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	return c, m
}

func TestComposer_Dispatch(t *testing.T) {
	c, m := newTestComposer(t, rng.NewSequence(0.5))

	tests := []struct {
		req        models.AnalysisRequest
		wantTarget bool
		wantPoints int
	}{
		{models.AnalysisRequest{SubjectKind: models.SubjectTicker, Ticker: "TSLA", AnalysisKind: models.AnalysisFundamental}, true, 4},
		{models.AnalysisRequest{SubjectKind: models.SubjectSector, Sector: "energy", AnalysisKind: models.AnalysisTechnical}, false, 6},
		{models.AnalysisRequest{SubjectKind: models.SubjectPortfolio, AnalysisKind: models.AnalysisSentiment}, false, 5},
		{models.AnalysisRequest{SubjectKind: models.SubjectMarket, AnalysisKind: models.AnalysisComprehensive}, false, 5},
	}

	for _, tt := range tests {
		t.Run(string(tt.req.SubjectKind), func(t *testing.T) {
			result := c.Compose(context.Background(), tt.req)

			if (result.PriceTarget != nil) != tt.wantTarget {
				t.Errorf("price target present = %v, want %v", result.PriceTarget != nil, tt.wantTarget)
			}
			if len(result.KeyPoints) != tt.wantPoints {
				t.Errorf("key points = %d, want %d", len(result.KeyPoints), tt.wantPoints)
			}
			if !result.GeneratedAt.Equal(c.now()) {
				t.Errorf("GeneratedAt = %v", result.GeneratedAt)
			}
		})
	}

	if got := testutil.ToFloat64(m.AnalysisRequestsTotal.WithLabelValues("ticker", "fundamental")); got != 1 {
		t.Errorf("ticker requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RecommendationsTotal.WithLabelValues("sector", "buy")); got != 1 {
		t.Errorf("sector buy recommendations = %v, want 1", got)
	}
}

func TestComposer_TickerUsesQuotePrice(t *testing.T) {
	c, _ := newTestComposer(t, rng.NewSequence(0.5))

	// TSLA fixture price 242.68; buy target is 1.2x with a constant 0.5 source
	result := c.Compose(context.Background(), models.AnalysisRequest{
		SubjectKind:  models.SubjectTicker,
		Ticker:       "TSLA",
		AnalysisKind: models.AnalysisTechnical,
	})
	if want := decimal.RequireFromString("291.22"); !result.PriceTarget.Equal(want) {
		t.Errorf("PriceTarget = %v, want %v", result.PriceTarget, want)
	}
}

func TestComposer_UnknownSubjectIsMarket(t *testing.T) {
	c, m := newTestComposer(t, rng.New(5))

	result := c.Compose(context.Background(), models.AnalysisRequest{SubjectKind: "weather"})
	if result == nil || result.Summary == "" {
		t.Fatal("compose should never return an empty result")
	}
	if result.TechnicalIndicators == nil || result.FundamentalMetrics == nil || result.SentimentAnalysis == nil {
		t.Error("empty kind should default to comprehensive")
	}
	if got := testutil.ToFloat64(m.AnalysisRequestsTotal.WithLabelValues("market", "comprehensive")); got != 1 {
		t.Errorf("market requests = %v, want 1", got)
	}
}

func TestComposer_Narrator(t *testing.T) {
	c, _ := newTestComposer(t, rng.New(5))
	llm := &mockLLM{response: "Markets look calm."}
	c.SetNarrator(NewNarrator(llm))

	result := c.Compose(context.Background(), models.AnalysisRequest{SubjectKind: models.SubjectMarket})
	if result.Narrative != "Markets look calm." {
		t.Errorf("Narrative = %q", result.Narrative)
	}

	c.SetNarrator(nil)
	result = c.Compose(context.Background(), models.AnalysisRequest{SubjectKind: models.SubjectMarket})
	if result.Narrative != "" || llm.calls != 1 {
		t.Errorf("narrator should be disabled: narrative %q, calls %d", result.Narrative, llm.calls)
	}
}

func TestComposer_Analysts(t *testing.T) {
	c, _ := newTestComposer(t, rng.New(1))
	got := c.Analysts()
	want := []string{"Market Analyst", "Portfolio Analyst", "Sector Analyst", "Ticker Analyst"}
	if len(got) != len(want) {
		t.Fatalf("Analysts() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Analysts()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
