package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AssetClass distinguishes equities from crypto pairs
type AssetClass string

const (
	AssetClassStock  AssetClass = "stock"
	AssetClassCrypto AssetClass = "crypto"
)

// ClassifySymbol returns the asset class implied by a symbol: pairs quoted
// against the dollar (BTC-USD) are crypto, everything else is an equity.
func ClassifySymbol(symbol string) AssetClass {
	if strings.HasSuffix(strings.ToUpper(symbol), "-USD") {
		return AssetClassCrypto
	}
	return AssetClassStock
}

// QuoteSource identifies where a quote came from
type QuoteSource string

const (
	QuoteSourceSynthetic    QuoteSource = "synthetic"
	QuoteSourceAlphaVantage QuoteSource = "alphavantage"
	QuoteSourceAlpaca       QuoteSource = "alpaca"
)

// Quote is a current price snapshot. Exactly one of Stock or Crypto is set,
// matching AssetClass.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	AssetClass    AssetClass      `json:"asset_class"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	MarketCap     decimal.Decimal `json:"market_cap"`
	Open          decimal.Decimal `json:"open"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        QuoteSource     `json:"source"`
	Stock         *StockDetails   `json:"stock,omitempty"`
	Crypto        *CryptoDetails  `json:"crypto,omitempty"`
}

// StockDetails holds equity-only quote fields
type StockDetails struct {
	PERatio    *decimal.Decimal `json:"pe_ratio,omitempty"`
	High52Week *decimal.Decimal `json:"high_52_week,omitempty"`
	Low52Week  *decimal.Decimal `json:"low_52_week,omitempty"`
}

// CryptoDetails holds crypto-only quote fields
type CryptoDetails struct {
	Supply  int64           `json:"supply"`
	High24h decimal.Decimal `json:"high_24h"`
	Low24h  decimal.Decimal `json:"low_24h"`
}

// SeriesTimeframe is the horizon of a historical price series
type SeriesTimeframe string

const (
	Timeframe1D SeriesTimeframe = "1d"
	Timeframe5D SeriesTimeframe = "5d"
	Timeframe1M SeriesTimeframe = "1m"
	Timeframe3M SeriesTimeframe = "3m"
	Timeframe1Y SeriesTimeframe = "1y"
)

// SeriesTimeframes lists every supported series horizon
var SeriesTimeframes = []SeriesTimeframe{Timeframe1D, Timeframe5D, Timeframe1M, Timeframe3M, Timeframe1Y}

// Valid reports whether t is a known series timeframe
func (t SeriesTimeframe) Valid() bool {
	switch t {
	case Timeframe1D, Timeframe5D, Timeframe1M, Timeframe3M, Timeframe1Y:
		return true
	}
	return false
}

// Points returns the number of bars in a series of this timeframe.
// 1d is a 6.5h session of 5-minute bars, 5d uses hourly bars, 1m and 3m
// count trading days and 1y counts weeks.
func (t SeriesTimeframe) Points() int {
	switch t {
	case Timeframe1D:
		return 78
	case Timeframe5D:
		return 39
	case Timeframe3M:
		return 66
	case Timeframe1Y:
		return 52
	default:
		return 22
	}
}

// Interval returns the spacing between consecutive bars
func (t SeriesTimeframe) Interval() time.Duration {
	switch t {
	case Timeframe1D:
		return 5 * time.Minute
	case Timeframe5D:
		return time.Hour
	case Timeframe1Y:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// HistoricalDataPoint is one OHLCV bar
type HistoricalDataPoint struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// NewsItem is a headline with an optional sentiment tag
type NewsItem struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Summary     string    `json:"summary"`
	Sentiment   Sentiment `json:"sentiment,omitempty"`
}

// MarketIndex is one entry of the index strip
type MarketIndex struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Value         decimal.Decimal `json:"value"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
}

// WatchlistItem is a compact quote row; Volume is preformatted ("52.3M")
type WatchlistItem struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        string          `json:"volume"`
	PreviousClose decimal.Decimal `json:"previous_close"`
}

// MarketSnapshot is the refreshed market overview served to clients
type MarketSnapshot struct {
	Indices   []MarketIndex   `json:"indices"`
	Watchlist []WatchlistItem `json:"watchlist"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SymbolMatch is a symbol search hit
type SymbolMatch struct {
	Symbol     string     `json:"symbol"`
	Name       string     `json:"name"`
	AssetClass AssetClass `json:"asset_class"`
	Score      float64    `json:"score"`
}
