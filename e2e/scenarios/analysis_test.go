//go:build e2e
// +build e2e

package scenarios

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"market-lens/e2e"
	"market-lens/e2e/mocks"
	"market-lens/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func setup(t *testing.T) *e2e.TestHarness {
	t.Helper()
	harness := e2e.NewTestHarness(t)
	if err := harness.Setup(); err != nil {
		t.Fatalf("failed to setup test harness: %v", err)
	}
	t.Cleanup(harness.Teardown)
	return harness
}

func TestQuotes_LiveFromAlphaVantage(t *testing.T) {
	harness := setup(t)

	t.Run("equity quote comes from the upstream and is completed", func(t *testing.T) {
		resp := harness.DoRequest(http.MethodGet, "/api/quotes/aapl", "")
		if resp.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
		}

		var quote models.Quote
		if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
			t.Fatalf("failed to decode quote: %v", err)
		}
		if quote.Source != models.QuoteSourceAlphaVantage {
			t.Errorf("expected source alphavantage, got %s", quote.Source)
		}
		if quote.Price.String() != "182.52" {
			t.Errorf("expected price 182.52, got %s", quote.Price)
		}
		if quote.PreviousClose.String() != "180.27" {
			t.Errorf("expected previous close 180.27, got %s", quote.PreviousClose)
		}
		if quote.Name == "" || quote.MarketCap.IsZero() || quote.Stock == nil {
			t.Errorf("expected synthetic enrichment, got %+v", quote)
		}
	})

	t.Run("crypto quote uses the exchange rate endpoint", func(t *testing.T) {
		harness.MockServer().ClearRequestLog()

		resp := harness.DoRequest(http.MethodGet, "/api/quotes/BTC-USD?class=crypto", "")
		if resp.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", resp.Code)
		}

		var quote models.Quote
		if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
			t.Fatalf("failed to decode quote: %v", err)
		}
		if quote.Price.String() != "43250" {
			t.Errorf("expected price 43250, got %s", quote.Price)
		}
		if quote.Crypto == nil || quote.Crypto.Supply == 0 {
			t.Error("expected crypto details with supply filled in")
		}

		log := harness.MockServer().GetRequestLog()
		if len(log) != 1 || log[0].Function != "CURRENCY_EXCHANGE_RATE" || log[0].Symbol != "BTC" {
			t.Errorf("unexpected upstream calls: %+v", log)
		}
		if log[0].APIKey != "e2e-key" {
			t.Errorf("expected configured api key, got %q", log[0].APIKey)
		}
	})

	t.Run("daily series is trimmed to the timeframe", func(t *testing.T) {
		resp := harness.DoRequest(http.MethodGet, "/api/series/AAPL?timeframe=1m", "")
		if resp.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", resp.Code)
		}

		var points []models.HistoricalDataPoint
		if err := json.NewDecoder(resp.Body).Decode(&points); err != nil {
			t.Fatalf("failed to decode series: %v", err)
		}
		if len(points) != models.Timeframe1M.Points() {
			t.Errorf("expected %d points, got %d", models.Timeframe1M.Points(), len(points))
		}
		if points[len(points)-1].Close.String() != "182.52" {
			t.Errorf("expected newest close 182.52, got %s", points[len(points)-1].Close)
		}
	})
}

func TestQuotes_FallbackToSynthetic(t *testing.T) {
	harness := setup(t)

	t.Run("rate limit note serves a synthetic quote", func(t *testing.T) {
		harness.MockServer().SetFailure(mocks.FailRateLimit)

		resp := harness.DoRequest(http.MethodGet, "/api/quotes/MSFT", "")
		if resp.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", resp.Code)
		}

		var quote models.Quote
		if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
			t.Fatalf("failed to decode quote: %v", err)
		}
		if quote.Source != models.QuoteSourceSynthetic {
			t.Errorf("expected synthetic source, got %s", quote.Source)
		}
		if got := testutil.ToFloat64(harness.Metrics.SyntheticFallbacksTotal.WithLabelValues("quote", "rate_limited")); got != 1 {
			t.Errorf("expected 1 rate_limited fallback, got %v", got)
		}
	})

	t.Run("repeated upstream outages open the breaker", func(t *testing.T) {
		harness.MockServer().SetFailure(mocks.FailUnavailable)

		for i := 0; i < 5; i++ {
			resp := harness.DoRequest(http.MethodGet, "/api/quotes/NVDA", "")
			if resp.Code != http.StatusOK {
				t.Fatalf("request %d: expected status 200, got %d", i, resp.Code)
			}
		}

		resp := harness.DoRequest(http.MethodGet, "/api/health", "")
		var health map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode health: %v", err)
		}
		if health["status"] != "degraded" {
			t.Errorf("expected degraded health, got %v", health["status"])
		}

		harness.MockServer().SetFailure(mocks.FailNone)
		harness.MockServer().ClearRequestLog()
		harness.DoRequest(http.MethodGet, "/api/quotes/AAPL", "")
		if n := len(harness.MockServer().GetRequestLog()); n != 0 {
			t.Errorf("open breaker should skip the upstream, saw %d calls", n)
		}
	})
}

func TestAnalysisWorkflow(t *testing.T) {
	harness := setup(t)
	user := []string{"X-User-ID", "dana"}

	var saved models.SavedAnalysis

	t.Run("ticker analysis is saved", func(t *testing.T) {
		body := `{"subject_kind":"ticker","ticker":"AAPL","timeframe":"1m","analysis_kind":"technical"}`
		resp := harness.DoRequest(http.MethodPost, "/api/analyze", body, user...)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
		}
		if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
			t.Fatalf("failed to decode analysis: %v", err)
		}
		if saved.UserID != "dana" {
			t.Errorf("expected user dana, got %q", saved.UserID)
		}
		if len(saved.Result.TechnicalIndicators) == 0 {
			t.Error("expected technical indicators")
		}
		if harness.MockServer().CountFunction("GLOBAL_QUOTE") == 0 {
			t.Error("expected the analysis to read a live quote")
		}
	})

	t.Run("analysis is listed for its owner only", func(t *testing.T) {
		resp := harness.DoRequest(http.MethodGet, "/api/analyses?subject=ticker", "", user...)
		var list struct {
			Analyses []models.SavedAnalysis `json:"analyses"`
			Count    int                    `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			t.Fatalf("failed to decode list: %v", err)
		}
		if list.Count != 1 || list.Analyses[0].ID != saved.ID {
			t.Errorf("expected the saved analysis, got %+v", list)
		}

		resp = harness.DoRequest(http.MethodGet, "/api/analyses/"+saved.ID.String(), "", "X-User-ID", "eve")
		if resp.Code != http.StatusNotFound {
			t.Errorf("expected 404 for another user, got %d", resp.Code)
		}
	})

	t.Run("report renders as markdown and HTML", func(t *testing.T) {
		resp := harness.DoRequest(http.MethodGet, "/api/analyses/"+saved.ID.String()+"/report?format=markdown", "", user...)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", resp.Code)
		}
		if !strings.Contains(resp.Body.String(), "# ") {
			t.Error("expected a markdown heading")
		}

		resp = harness.DoHTMXRequest(http.MethodGet, "/api/analyses/"+saved.ID.String()+"/report", "", user...)
		if !strings.Contains(resp.Header().Get("Content-Type"), "text/html") {
			t.Errorf("expected HTML, got %s", resp.Header().Get("Content-Type"))
		}
		if strings.Contains(resp.Body.String(), "<html") {
			t.Error("HTMX request should get a bare fragment")
		}
	})

	t.Run("bookmark survives a restart", func(t *testing.T) {
		resp := harness.DoRequest(http.MethodPost, "/api/analyses/"+saved.ID.String()+"/bookmark", "", user...)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", resp.Code)
		}

		if err := harness.Restart(); err != nil {
			t.Fatalf("restart: %v", err)
		}

		resp = harness.DoRequest(http.MethodGet, "/api/analyses?bookmarked=true", "", user...)
		var list struct {
			Count int `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			t.Fatalf("failed to decode list: %v", err)
		}
		if list.Count != 1 {
			t.Errorf("expected the bookmarked analysis after restart, got %d", list.Count)
		}
	})

	t.Run("delete removes the analysis", func(t *testing.T) {
		resp := harness.DoRequest(http.MethodDelete, "/api/analyses/"+saved.ID.String(), "", user...)
		if resp.Code != http.StatusOK && resp.Code != http.StatusNoContent {
			t.Fatalf("expected success, got %d", resp.Code)
		}
		resp = harness.DoRequest(http.MethodGet, "/api/analyses/"+saved.ID.String(), "", user...)
		if resp.Code != http.StatusNotFound {
			t.Errorf("expected 404 after delete, got %d", resp.Code)
		}
	})
}
