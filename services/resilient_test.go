package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"market-lens/internal/rng"
	"market-lens/models"
	"market-lens/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

type fakeLive struct {
	name     string
	quote    models.Quote
	quoteErr error
	series   []models.HistoricalDataPoint
	seriesEr error
	calls    int
	gotTF    models.SeriesTimeframe
}

func (f *fakeLive) Name() string { return f.name }

func (f *fakeLive) Quote(ctx context.Context, symbol string, class models.AssetClass) (models.Quote, error) {
	f.calls++
	return f.quote, f.quoteErr
}

func (f *fakeLive) Series(ctx context.Context, symbol string, tf models.SeriesTimeframe) ([]models.HistoricalDataPoint, error) {
	f.calls++
	f.gotTF = tf
	return f.series, f.seriesEr
}

func setupResilientTest(t *testing.T) *observability.Metrics {
	t.Helper()
	SetBreakerRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))
	m := observability.NewMetrics(prometheus.NewRegistry())
	observability.SetMetrics(m)
	return m
}

func TestResilient_NoProvidersIsSynthetic(t *testing.T) {
	setupResilientTest(t)
	r := NewResilientMarketData(NewSyntheticMarketData(rng.New(1)))

	q := r.GetQuote(context.Background(), "AAPL", models.AssetClassStock)
	if q.Source != models.QuoteSourceSynthetic {
		t.Errorf("Source = %q, want synthetic", q.Source)
	}
	if len(r.Providers()) != 0 {
		t.Errorf("Providers() = %v", r.Providers())
	}
}

func TestResilient_LiveQuoteEnriched(t *testing.T) {
	setupResilientTest(t)
	live := &fakeLive{
		name: "fake",
		quote: models.Quote{
			Symbol:     "BTC-USD",
			AssetClass: models.AssetClassCrypto,
			Price:      decimal.NewFromInt(30000),
			Change:     decimal.NewFromInt(500),
			Source:     models.QuoteSourceAlphaVantage,
			Crypto:     &models.CryptoDetails{High24h: decimal.NewFromInt(31500), Low24h: decimal.NewFromInt(28500)},
		},
	}
	r := NewResilientMarketData(NewSyntheticMarketData(rng.New(1)), live)

	q := r.GetQuote(context.Background(), "BTC-USD", models.AssetClassCrypto)

	if q.Source != models.QuoteSourceAlphaVantage {
		t.Errorf("Source = %q, want live source", q.Source)
	}
	if !q.Price.Equal(decimal.NewFromInt(30000)) {
		t.Errorf("Price = %v, want live price", q.Price)
	}
	if !q.PreviousClose.Equal(decimal.NewFromInt(29500)) {
		t.Errorf("PreviousClose = %v, want price - change", q.PreviousClose)
	}
	if q.Name != "Bitcoin" {
		t.Errorf("Name = %q, want filled from fixtures", q.Name)
	}
	if q.Volume == 0 || q.MarketCap.IsZero() || q.Crypto.Supply == 0 {
		t.Errorf("volume, market cap and supply should be filled: %+v", q)
	}
	if !q.Crypto.High24h.Equal(decimal.NewFromInt(31500)) {
		t.Errorf("live 24h high should be kept, got %v", q.Crypto.High24h)
	}
	if !q.Open.Equal(q.Price) {
		t.Errorf("Open = %v, want price when unreported", q.Open)
	}
}

func TestResilient_FallsThroughProviders(t *testing.T) {
	m := setupResilientTest(t)
	first := &fakeLive{name: "first", quoteErr: ErrRateLimited}
	second := &fakeLive{name: "second", quote: models.Quote{
		Symbol: "MSFT", Name: "Microsoft Corp.", AssetClass: models.AssetClassStock,
		Price: decimal.NewFromInt(400), Volume: 1, MarketCap: decimal.NewFromInt(1),
		Stock: &models.StockDetails{}, Source: models.QuoteSourceAlpaca,
	}}
	r := NewResilientMarketData(NewSyntheticMarketData(rng.New(1)), first, second)

	q := r.GetQuote(context.Background(), "MSFT", models.AssetClassStock)
	if q.Source != models.QuoteSourceAlpaca {
		t.Errorf("Source = %q, want second provider", q.Source)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", first.calls, second.calls)
	}
	if got := testutil.ToFloat64(m.SyntheticFallbacksTotal.WithLabelValues("quote", "rate_limited")); got != 0 {
		t.Errorf("no fallback expected, counter = %v", got)
	}
	if got := r.Providers(); len(got) != 2 || got[0] != "first" {
		t.Errorf("Providers() = %v", got)
	}
}

func TestResilient_QuoteFallback(t *testing.T) {
	m := setupResilientTest(t)
	live := &fakeLive{name: "down", quoteErr: ErrSymbolNotFound}
	r := NewResilientMarketData(NewSyntheticMarketData(rng.New(1)), live)

	q := r.GetQuote(context.Background(), "TSLA", models.AssetClassStock)
	if q.Source != models.QuoteSourceSynthetic {
		t.Errorf("Source = %q, want synthetic", q.Source)
	}
	if !q.Price.Equal(decimal.RequireFromString("242.68")) {
		t.Errorf("Price = %v, want TSLA fixture", q.Price)
	}
	if got := testutil.ToFloat64(m.SyntheticFallbacksTotal.WithLabelValues("quote", "not_found")); got != 1 {
		t.Errorf("fallback counter = %v, want 1", got)
	}
}

func TestResilient_OpenBreakerSkipsProvider(t *testing.T) {
	setupResilientTest(t)
	live := &fakeLive{name: "flaky", quoteErr: ErrUpstreamUnavailable}
	r := NewResilientMarketData(NewSyntheticMarketData(rng.New(1)), live)

	for i := 0; i < 10; i++ {
		r.GetQuote(context.Background(), "AAPL", models.AssetClassStock)
	}
	if live.calls != 5 {
		t.Errorf("expected breaker to stop calls after 5 failures, got %d", live.calls)
	}
}

// dailyBars returns n ascending one-day bars closing at 1, 2, ... n
func dailyBars(n int) []models.HistoricalDataPoint {
	bars := make([]models.HistoricalDataPoint, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = models.HistoricalDataPoint{
			Date:  start.AddDate(0, 0, i),
			Close: decimal.NewFromInt(int64(i + 1)),
		}
	}
	return bars
}

func TestResilient_Series(t *testing.T) {
	m := setupResilientTest(t)

	full := dailyBars(models.Timeframe1M.Points())
	r := NewResilientMarketData(NewSyntheticMarketData(rng.New(1)), &fakeLive{name: "ok", series: full})
	got := r.GetHistoricalSeries(context.Background(), "AAPL", models.Timeframe1M)
	if len(got) != len(full) || !got[len(got)-1].Close.Equal(decimal.NewFromInt(int64(len(full)))) {
		t.Errorf("expected the live bars, got %d points", len(got))
	}

	empty := NewResilientMarketData(NewSyntheticMarketData(rng.New(1)), &fakeLive{name: "empty"})
	if got := empty.GetHistoricalSeries(context.Background(), "AAPL", models.Timeframe1M); len(got) != models.Timeframe1M.Points() {
		t.Errorf("expected synthetic series, got %d points", len(got))
	}

	failing := NewResilientMarketData(NewSyntheticMarketData(rng.New(1)), &fakeLive{name: "bad", seriesEr: errors.New("boom")})
	failing.GetHistoricalSeries(context.Background(), "AAPL", models.Timeframe1Y)
	if got := testutil.ToFloat64(m.SyntheticFallbacksTotal.WithLabelValues("series", "other")); got != 1 {
		t.Errorf("series fallback counter = %v, want 1", got)
	}
}

func TestResilient_SeriesLengthMustMatchTimeframe(t *testing.T) {
	tests := []struct {
		name string
		tf   models.SeriesTimeframe
		live int
	}{
		{"recent listing intraday", models.Timeframe1D, 5},
		{"compact daily payload", models.Timeframe3M, 40},
		{"partial week", models.Timeframe5D, 38},
		{"one bar short of a year", models.Timeframe1Y, 51},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := setupResilientTest(t)
			live := &fakeLive{name: "short", series: dailyBars(tt.live)}
			r := NewResilientMarketData(NewSyntheticMarketData(rng.New(1)), live)

			got := r.GetHistoricalSeries(context.Background(), "NEWIPO", tt.tf)
			if len(got) != tt.tf.Points() {
				t.Errorf("%s series length = %d, want %d", tt.tf, len(got), tt.tf.Points())
			}
			for i := 1; i < len(got); i++ {
				if !got[i].Date.After(got[i-1].Date) {
					t.Fatalf("dates not strictly ascending at %d", i)
				}
			}
			if live.calls != 1 {
				t.Errorf("provider calls = %d, want 1", live.calls)
			}
			if n := testutil.ToFloat64(m.SyntheticFallbacksTotal.WithLabelValues("series", "short_series")); n != 1 {
				t.Errorf("short_series fallbacks = %v, want 1", n)
			}
		})
	}
}

func TestResilient_SeriesShortProviderFallsThrough(t *testing.T) {
	setupResilientTest(t)
	short := &fakeLive{name: "short", series: dailyBars(3)}
	full := &fakeLive{name: "full", series: dailyBars(models.Timeframe1M.Points())}
	r := NewResilientMarketData(NewSyntheticMarketData(rng.New(1)), short, full)

	got := r.GetHistoricalSeries(context.Background(), "AAPL", models.Timeframe1M)
	if len(got) != models.Timeframe1M.Points() || !got[0].Close.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected the second provider's bars, got %d points", len(got))
	}
	if short.calls != 1 || full.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", short.calls, full.calls)
	}
}

func TestResilient_SeriesInvalidTimeframe(t *testing.T) {
	setupResilientTest(t)

	live := &fakeLive{name: "ok", series: dailyBars(models.Timeframe1M.Points())}
	r := NewResilientMarketData(NewSyntheticMarketData(rng.New(1)), live)
	got := r.GetHistoricalSeries(context.Background(), "AAPL", models.SeriesTimeframe("10y"))
	if live.gotTF != models.Timeframe1M {
		t.Errorf("provider asked for %q, want 1m", live.gotTF)
	}
	if len(got) != models.Timeframe1M.Points() {
		t.Errorf("length = %d, want %d", len(got), models.Timeframe1M.Points())
	}

	offline := NewResilientMarketData(NewSyntheticMarketData(rng.New(1)), &fakeLive{name: "bad", seriesEr: ErrUpstreamUnavailable})
	if got := offline.GetHistoricalSeries(context.Background(), "AAPL", ""); len(got) != models.Timeframe1M.Points() {
		t.Errorf("synthetic fallback length = %d, want %d", len(got), models.Timeframe1M.Points())
	}
}
