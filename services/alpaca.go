package services

import (
	"context"
	"fmt"
	"time"

	"market-lens/models"
	"market-lens/observability"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// alpacaTradeClient is the subset of the trading client used for the market clock
type alpacaTradeClient interface {
	GetClock() (*alpaca.Clock, error)
}

// alpacaDataClient is the subset of the market data client used here
type alpacaDataClient interface {
	GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error)
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaService serves equity quotes and bars from Alpaca market data.
// Crypto pairs are not served and report ErrSymbolNotFound.
type AlpacaService struct {
	tradeClient alpacaTradeClient
	dataClient  alpacaDataClient
}

// NewAlpacaService creates a new AlpacaService instance
func NewAlpacaService(apiKey, apiSecret, baseURL string) *AlpacaService {
	tradeClient := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})

	dataClient := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})

	return &AlpacaService{
		tradeClient: tradeClient,
		dataClient:  dataClient,
	}
}

// Name identifies the provider in breakers and metrics
func (s *AlpacaService) Name() string {
	return BreakerAlpaca
}

// MarketOpen reports whether the US equity session is currently open
func (s *AlpacaService) MarketOpen(ctx context.Context) (bool, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlpaca, "clock")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerAlpaca, "clock")

	clock, err := s.tradeClient.GetClock()
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlpaca, "clock", "unavailable")
		return false, fmt.Errorf("failed to get market clock: %w: %w", ErrUpstreamUnavailable, err)
	}
	return clock.IsOpen, nil
}

// Quote builds a quote from the latest snapshot: last trade price, the
// current daily bar and the previous daily bar for the change.
func (s *AlpacaService) Quote(ctx context.Context, symbol string, class models.AssetClass) (models.Quote, error) {
	if class == models.AssetClassCrypto {
		return models.Quote{}, fmt.Errorf("alpaca crypto quote for %s: %w", symbol, ErrSymbolNotFound)
	}

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlpaca, "snapshot")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerAlpaca, "snapshot")

	snap, err := s.dataClient.GetSnapshot(symbol, marketdata.GetSnapshotRequest{})
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlpaca, "snapshot", "unavailable")
		return models.Quote{}, fmt.Errorf("failed to get snapshot for %s: %w: %w", symbol, ErrUpstreamUnavailable, err)
	}
	if snap == nil || (snap.LatestTrade == nil && snap.DailyBar == nil) {
		metrics.RecordExternalAPIError(BreakerAlpaca, "snapshot", "not_found")
		return models.Quote{}, fmt.Errorf("snapshot for %s: %w", symbol, ErrSymbolNotFound)
	}

	q := models.Quote{
		Symbol:     symbol,
		Name:       CompanyName(symbol),
		AssetClass: models.AssetClassStock,
		Timestamp:  time.Now(),
		Source:     models.QuoteSourceAlpaca,
	}

	if snap.DailyBar != nil {
		q.Price = decimal.NewFromFloat(snap.DailyBar.Close)
		q.Open = decimal.NewFromFloat(snap.DailyBar.Open)
		q.Volume = int64(snap.DailyBar.Volume)
		q.Timestamp = snap.DailyBar.Timestamp
	}
	if snap.LatestTrade != nil {
		q.Price = decimal.NewFromFloat(snap.LatestTrade.Price)
		q.Timestamp = snap.LatestTrade.Timestamp
	}

	if snap.PrevDailyBar != nil {
		prev := decimal.NewFromFloat(snap.PrevDailyBar.Close)
		q.Change = q.Price.Sub(prev).Round(2)
		if !prev.IsZero() {
			q.ChangePercent = q.Change.Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
		}
	}
	q.PreviousClose = q.Price.Sub(q.Change)

	return q, nil
}

// alpacaTimeFrame maps a series horizon onto a bar size and lookback window
func alpacaTimeFrame(tf models.SeriesTimeframe) (marketdata.TimeFrame, time.Duration) {
	switch tf {
	case models.Timeframe1D:
		return marketdata.NewTimeFrame(5, marketdata.Min), 3 * 24 * time.Hour
	case models.Timeframe5D:
		return marketdata.OneHour, 10 * 24 * time.Hour
	case models.Timeframe3M:
		return marketdata.OneDay, 120 * 24 * time.Hour
	case models.Timeframe1Y:
		return marketdata.NewTimeFrame(1, marketdata.Week), 400 * 24 * time.Hour
	default:
		return marketdata.OneDay, 45 * 24 * time.Hour
	}
}

// Series returns the newest tf.Points() bars in ascending order
func (s *AlpacaService) Series(ctx context.Context, symbol string, tf models.SeriesTimeframe) ([]models.HistoricalDataPoint, error) {
	if models.ClassifySymbol(symbol) == models.AssetClassCrypto {
		return nil, fmt.Errorf("alpaca crypto series for %s: %w", symbol, ErrSymbolNotFound)
	}
	if !tf.Valid() {
		tf = models.Timeframe1M
	}

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlpaca, "bars")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerAlpaca, "bars")

	frame, lookback := alpacaTimeFrame(tf)
	end := time.Now()
	bars, err := s.dataClient.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: frame,
		Start:     end.Add(-lookback),
		End:       end,
	})
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlpaca, "bars", "unavailable")
		return nil, fmt.Errorf("failed to get bars for %s: %w: %w", symbol, ErrUpstreamUnavailable, err)
	}
	if len(bars) == 0 {
		metrics.RecordExternalAPIError(BreakerAlpaca, "bars", "not_found")
		return nil, fmt.Errorf("bars for %s: %w", symbol, ErrSymbolNotFound)
	}

	if n := tf.Points(); len(bars) > n {
		bars = bars[len(bars)-n:]
	}

	result := make([]models.HistoricalDataPoint, 0, len(bars))
	for _, bar := range bars {
		result = append(result, models.HistoricalDataPoint{
			Date:   bar.Timestamp,
			Open:   decimal.NewFromFloat(bar.Open),
			High:   decimal.NewFromFloat(bar.High),
			Low:    decimal.NewFromFloat(bar.Low),
			Close:  decimal.NewFromFloat(bar.Close),
			Volume: int64(bar.Volume),
		})
	}

	return result, nil
}
