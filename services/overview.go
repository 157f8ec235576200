package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"market-lens/models"
)

var marketIndices = []models.MarketIndex{
	{Symbol: "SPY", Name: "S&P 500", Value: dec("451.34"), Change: dec("3.78"), ChangePercent: dec("0.84")},
	{Symbol: "QQQ", Name: "Nasdaq 100", Value: dec("378.21"), Change: dec("5.62"), ChangePercent: dec("1.51")},
	{Symbol: "DIA", Name: "Dow Jones", Value: dec("347.89"), Change: dec("1.23"), ChangePercent: dec("0.35")},
	{Symbol: "IWM", Name: "Russell 2000", Value: dec("196.42"), Change: dec("-0.87"), ChangePercent: dec("-0.44")},
	{Symbol: "VIX", Name: "Volatility Index", Value: dec("17.32"), Change: dec("-0.54"), ChangePercent: dec("-3.02")},
}

// MarketOverview assembles the index strip and watchlist rows
type MarketOverview struct {
	data MarketData
	now  func() time.Time
}

// NewMarketOverview builds watchlist rows from data
func NewMarketOverview(data MarketData) *MarketOverview {
	return &MarketOverview{data: data, now: time.Now}
}

// Indices returns the fixed index strip
func (o *MarketOverview) Indices() []models.MarketIndex {
	out := make([]models.MarketIndex, len(marketIndices))
	copy(out, marketIndices)
	return out
}

// Watchlist returns one row per symbol, in the order given
func (o *MarketOverview) Watchlist(ctx context.Context, symbols []string) []models.WatchlistItem {
	items := make([]models.WatchlistItem, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		q := o.data.GetQuote(ctx, sym, models.ClassifySymbol(sym))
		items = append(items, models.WatchlistItem{
			Symbol:        q.Symbol,
			Name:          q.Name,
			Price:         q.Price,
			ChangePercent: q.ChangePercent,
			Volume:        FormatVolume(q.Volume),
			PreviousClose: q.PreviousClose,
		})
	}
	return items
}

// Snapshot returns the indices and watchlist stamped with the current time
func (o *MarketOverview) Snapshot(ctx context.Context, symbols []string) models.MarketSnapshot {
	return models.MarketSnapshot{
		Indices:   o.Indices(),
		Watchlist: o.Watchlist(ctx, symbols),
		UpdatedAt: o.now(),
	}
}

// FormatVolume abbreviates a share or coin volume: 52300000 -> "52.3M"
func FormatVolume(v int64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", float64(v)/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", float64(v)/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", float64(v)/1e3)
	}
	return fmt.Sprintf("%d", v)
}
