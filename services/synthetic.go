package services

import (
	"context"
	"math"
	"strings"
	"time"

	"market-lens/internal/rng"
	"market-lens/models"

	"github.com/shopspring/decimal"
)

// SyntheticMarketData generates quotes and OHLCV series from fixture tables
// and a random source. It never fails: unknown symbols get randomly
// parameterised defaults.
type SyntheticMarketData struct {
	src rng.Source
	now func() time.Time
}

// NewSyntheticMarketData creates a generator drawing from src
func NewSyntheticMarketData(src rng.Source) *SyntheticMarketData {
	return &SyntheticMarketData{src: src, now: time.Now}
}

// GetQuote returns a synthetic quote for symbol
func (s *SyntheticMarketData) GetQuote(ctx context.Context, symbol string, class models.AssetClass) models.Quote {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if class == models.AssetClassCrypto {
		return s.cryptoQuote(symbol)
	}
	return s.stockQuote(symbol)
}

func (s *SyntheticMarketData) stockQuote(symbol string) models.Quote {
	q := models.Quote{
		Symbol:     symbol,
		Name:       CompanyName(symbol),
		AssetClass: models.AssetClassStock,
		Timestamp:  s.now(),
		Source:     models.QuoteSourceSynthetic,
	}

	if f, ok := stockFixtures[symbol]; ok {
		pe, high, low := f.peRatio, f.high52, f.low52
		q.Price = f.price
		q.Change = f.change
		q.ChangePercent = f.changePercent
		q.Volume = f.volume
		q.MarketCap = f.marketCap
		q.Open = f.open
		q.PreviousClose = f.open
		q.Stock = &models.StockDetails{PERatio: &pe, High52Week: &high, Low52Week: &low}
		return q
	}

	price := 100 + rng.Uniform(s.src, 0, 200)
	q.Price = roundPrice(price)
	q.Change = round2(rng.Uniform(s.src, -3, 3))
	q.ChangePercent = round2(rng.Uniform(s.src, -3, 3))
	q.PreviousClose = roundPrice(price * (1 + rng.Uniform(s.src, -0.02, 0.02)))
	q.Open = roundPrice(price * (1 + rng.Uniform(s.src, -0.01, 0.01)))
	q.Volume = int64(math.Floor(s.src.Float64()*5e7)) + 1_000_000
	q.MarketCap = decimal.NewFromFloat(math.Floor(s.src.Float64()*5e11) + 1e10)

	pe := decimal.NewFromFloat(math.Floor(s.src.Float64()*50) + 10)
	high := roundPrice(price * (1 + rng.Uniform(s.src, 0.05, 0.35)))
	low := roundPrice(price * (1 - rng.Uniform(s.src, 0.15, 0.45)))
	q.Stock = &models.StockDetails{PERatio: &pe, High52Week: &high, Low52Week: &low}
	return q
}

func (s *SyntheticMarketData) cryptoQuote(symbol string) models.Quote {
	q := models.Quote{
		Symbol:     symbol,
		Name:       CryptoName(symbol),
		AssetClass: models.AssetClassCrypto,
		Timestamp:  s.now(),
		Source:     models.QuoteSourceSynthetic,
	}

	if f, ok := cryptoFixtures[symbol]; ok {
		q.Price = f.price
		q.Change = f.change
		q.ChangePercent = f.changePercent
		q.Volume = f.volume
		q.MarketCap = f.marketCap
		q.PreviousClose = f.price.Sub(f.change)
		q.Open = q.PreviousClose
		q.Crypto = &models.CryptoDetails{Supply: f.supply, High24h: f.high24h, Low24h: f.low24h}
		return q
	}

	price := 100 + rng.Uniform(s.src, 0, 50)
	change := rng.Uniform(s.src, -3, 3)
	q.Price = roundPrice(price)
	q.Change = round2(change)
	q.ChangePercent = round2(rng.Uniform(s.src, -3, 3))
	q.Volume = int64(math.Floor(s.src.Float64()*5e9)) + 100_000_000
	q.MarketCap = decimal.NewFromFloat(math.Floor(s.src.Float64()*5e10) + 1e9)
	q.PreviousClose = q.Price.Sub(q.Change)
	q.Open = roundPrice(price * (1 + rng.Uniform(s.src, -0.01, 0.01)))
	q.Crypto = &models.CryptoDetails{
		Supply:  int64(math.Floor(s.src.Float64()*1e9)) + 10_000_000,
		High24h: roundPrice(price * (1 + rng.Uniform(s.src, 0, 0.05))),
		Low24h:  roundPrice(price * (1 - rng.Uniform(s.src, 0, 0.05))),
	}
	return q
}

// GetHistoricalSeries returns tf.Points() bars ending now, ascending by date.
// Every call restarts the walk from the symbol's base price.
func (s *SyntheticMarketData) GetHistoricalSeries(ctx context.Context, symbol string, tf models.SeriesTimeframe) []models.HistoricalDataPoint {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !tf.Valid() {
		tf = models.Timeframe1M
	}

	crypto := models.ClassifySymbol(symbol) == models.AssetClassCrypto
	volatility := 0.01
	if crypto {
		volatility = 0.02
	}

	base, ok := seriesBasePrices[symbol]
	if !ok {
		base = defaultSeriesBasePrice
	}
	places := int32(2)
	if base < 1 {
		places = 4
	}

	n := tf.Points()
	interval := tf.Interval()
	now := s.now()
	points := make([]models.HistoricalDataPoint, 0, n)

	prev := base
	for i := 0; i < n; i++ {
		change := rng.Uniform(s.src, -volatility, volatility)
		openPx := prev
		closePx := prev + prev*change
		spread := math.Abs(change) * prev
		high := math.Max(openPx, closePx) + rng.Uniform(s.src, 0, spread)
		low := math.Min(openPx, closePx) - rng.Uniform(s.src, 0, spread)

		var volume float64
		if crypto {
			volume = (s.src.Float64()*5e9 + 1e9) * (0.5 + s.src.Float64())
		} else {
			volume = (s.src.Float64()*5e7 + 5e6) * (0.5 + s.src.Float64())
		}

		points = append(points, models.HistoricalDataPoint{
			Date:   now.Add(-time.Duration(n-i) * interval),
			Open:   decimal.NewFromFloat(openPx).Round(places),
			High:   decimal.NewFromFloat(high).Round(places),
			Low:    decimal.NewFromFloat(low).Round(places),
			Close:  decimal.NewFromFloat(closePx).Round(places),
			Volume: int64(math.Floor(volume)),
		})
		prev = closePx
	}

	return points
}

func round2(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// roundPrice keeps four places for sub-dollar prices and two otherwise
func roundPrice(v float64) decimal.Decimal {
	if math.Abs(v) < 1 {
		return decimal.NewFromFloat(v).Round(4)
	}
	return decimal.NewFromFloat(v).Round(2)
}
