package services

import (
	"context"
	"fmt"

	"market-lens/models"
	"market-lens/observability"
)

// ResilientMarketData asks each live provider in turn, through its circuit
// breaker, and falls back to the synthetic generator when all of them fail.
type ResilientMarketData struct {
	providers []LiveMarketData
	fallback  *SyntheticMarketData
}

// NewResilientMarketData wraps providers, tried in the given order
func NewResilientMarketData(fallback *SyntheticMarketData, providers ...LiveMarketData) *ResilientMarketData {
	return &ResilientMarketData{
		providers: providers,
		fallback:  fallback,
	}
}

// Providers returns the names of the configured live providers
func (r *ResilientMarketData) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

// GetQuote returns the first live quote, completed with synthetic values for
// fields the provider does not report.
func (r *ResilientMarketData) GetQuote(ctx context.Context, symbol string, class models.AssetClass) models.Quote {
	var lastErr error
	for _, p := range r.providers {
		q, err := WithCircuitBreaker(ctx, p.Name(), func() (models.Quote, error) {
			return p.Quote(ctx, symbol, class)
		})
		if err == nil {
			return r.enrich(ctx, q, symbol, class)
		}
		lastErr = err
		observability.Debug("live quote failed",
			"provider", p.Name(),
			"symbol", symbol,
			"error", err)
	}

	if lastErr != nil {
		observability.GetMetrics().RecordSyntheticFallback("quote", errorType(lastErr))
		observability.WithSymbol(symbol).Info("serving synthetic quote", "reason", errorType(lastErr))
	}
	return r.fallback.GetQuote(ctx, symbol, class)
}

// GetHistoricalSeries returns the first live series holding exactly
// tf.Points() bars, or a synthetic one. Unknown timeframes mean 1m.
func (r *ResilientMarketData) GetHistoricalSeries(ctx context.Context, symbol string, tf models.SeriesTimeframe) []models.HistoricalDataPoint {
	if !tf.Valid() {
		tf = models.Timeframe1M
	}

	var lastErr error
	for _, p := range r.providers {
		points, err := WithCircuitBreaker(ctx, p.Name(), func() ([]models.HistoricalDataPoint, error) {
			return p.Series(ctx, symbol, tf)
		})
		if err == nil && len(points) == tf.Points() {
			return points
		}
		if err == nil {
			err = fmt.Errorf("%s %s: got %d bars, want %d: %w", symbol, tf, len(points), tf.Points(), ErrShortSeries)
		}
		lastErr = err
		observability.Debug("live series rejected",
			"provider", p.Name(),
			"symbol", symbol,
			"timeframe", string(tf),
			"error", err)
	}

	if lastErr != nil {
		observability.GetMetrics().RecordSyntheticFallback("series", errorType(lastErr))
	}
	return r.fallback.GetHistoricalSeries(ctx, symbol, tf)
}

// enrich fills the fields a live provider left empty and reconciles
// previous_close = price - change.
func (r *ResilientMarketData) enrich(ctx context.Context, q models.Quote, symbol string, class models.AssetClass) models.Quote {
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	if q.AssetClass == "" {
		q.AssetClass = class
	}

	needsFill := q.Name == "" || q.Volume == 0 || q.MarketCap.IsZero() ||
		(q.AssetClass == models.AssetClassStock && q.Stock == nil) ||
		(q.AssetClass == models.AssetClassCrypto && (q.Crypto == nil || q.Crypto.Supply == 0))

	if needsFill {
		synth := r.fallback.GetQuote(ctx, symbol, q.AssetClass)
		if q.Name == "" {
			q.Name = synth.Name
		}
		if q.Volume == 0 {
			q.Volume = synth.Volume
		}
		if q.MarketCap.IsZero() {
			q.MarketCap = synth.MarketCap
		}
		switch q.AssetClass {
		case models.AssetClassStock:
			if q.Stock == nil {
				q.Stock = synth.Stock
			}
		case models.AssetClassCrypto:
			if q.Crypto == nil {
				q.Crypto = synth.Crypto
			} else if q.Crypto.Supply == 0 && synth.Crypto != nil {
				q.Crypto.Supply = synth.Crypto.Supply
			}
		}
	}

	if q.Open.IsZero() {
		q.Open = q.Price
	}
	q.PreviousClose = q.Price.Sub(q.Change)
	return q
}
