package services

import (
	"context"

	"market-lens/models"
)

// MarketData produces quotes and price series. Implementations never fail:
// unknown symbols and upstream trouble degrade to synthetic values.
type MarketData interface {
	GetQuote(ctx context.Context, symbol string, class models.AssetClass) models.Quote
	GetHistoricalSeries(ctx context.Context, symbol string, tf models.SeriesTimeframe) []models.HistoricalDataPoint
}

// NewsProvider returns recent headlines, newest first
type NewsProvider interface {
	GetNews(ctx context.Context, symbol string, limit int) []models.NewsItem
}

// LiveMarketData is an upstream quote source. Errors are the boundary
// errors ErrSymbolNotFound, ErrUpstreamUnavailable and ErrRateLimited.
type LiveMarketData interface {
	Name() string
	Quote(ctx context.Context, symbol string, class models.AssetClass) (models.Quote, error)
	Series(ctx context.Context, symbol string, tf models.SeriesTimeframe) ([]models.HistoricalDataPoint, error)
}

// LLMService defines the interface for AI/LLM operations via AWS Bedrock
type LLMService interface {
	InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Compile-time interface verification
var _ MarketData = (*SyntheticMarketData)(nil)
var _ MarketData = (*ResilientMarketData)(nil)
var _ NewsProvider = (*NewsFixtures)(nil)
var _ LiveMarketData = (*AlphaVantageService)(nil)
var _ LiveMarketData = (*AlpacaService)(nil)
var _ LLMService = (*BedrockService)(nil)
