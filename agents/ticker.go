package agents

import (
	"context"
	"fmt"
	"math"

	"market-lens/internal/rng"
	"market-lens/models"
	"market-lens/services"

	"github.com/shopspring/decimal"
)

// tickerBonus adds one symbol-specific key point for a few well-known symbols
var tickerBonus = map[string]string{
	"AAPL":    "Recent product launches have been well-received by consumers and critics.",
	"TSLA":    "Production capacity expansion and demand in key markets remain critical factors.",
	"BTC-USD": "Regulatory developments and institutional adoption continue to drive price action.",
}

// TickerAnalyst analyzes a single stock or crypto symbol around its current quote
type TickerAnalyst struct {
	src  rng.Source
	data services.MarketData
}

// NewTickerAnalyst creates a TickerAnalyst that prices off data
func NewTickerAnalyst(src rng.Source, data services.MarketData) *TickerAnalyst {
	return &TickerAnalyst{src: src, data: data}
}

// Name returns the agent name
func (a *TickerAnalyst) Name() string {
	return "Ticker Analyst"
}

// Subject returns the subject kind this analyst handles
func (a *TickerAnalyst) Subject() models.SubjectKind {
	return models.SubjectTicker
}

// Analyze builds a ticker analysis: price levels from the live or synthetic
// quote, then indicators, metrics and sentiment consistent with the scenario.
func (a *TickerAnalyst) Analyze(ctx context.Context, req models.AnalysisRequest) *models.AnalysisResult {
	ticker := req.Ticker
	if ticker == "" {
		ticker = DefaultTicker
	}
	kind := req.AnalysisKind
	if kind == "" {
		kind = models.AnalysisComprehensive
	}

	sc := ProfileFor(models.SubjectTicker).Sample(a.src)
	base := a.basePrice(ctx, ticker)

	target := a.priceTarget(base, sc.Recommendation)
	support, resistance := a.levels(base)

	result := &models.AnalysisResult{
		Recommendation:      sc.Recommendation,
		ConfidenceScore:     sc.Confidence,
		RiskLevel:           sc.Risk,
		PriceTarget:         &target,
		SupportLevels:       support,
		ResistanceLevels:    resistance,
		TechnicalIndicators: a.indicators(base, sc.Bullish),
		FundamentalMetrics:  a.metrics(),
		SentimentAnalysis:   a.sentiment(),
	}
	result.KeyPoints = a.keyPoints(ticker, kind, sc.Bullish, result.SentimentAnalysis)
	result.Summary = a.summary(ticker, kind, sc, target)

	gate(result, kind)
	return result
}

func (a *TickerAnalyst) basePrice(ctx context.Context, ticker string) float64 {
	q := a.data.GetQuote(ctx, ticker, models.ClassifySymbol(ticker))
	if q.Price.IsPositive() {
		return q.Price.InexactFloat64()
	}
	return rng.Uniform(a.src, 100, 300)
}

func (a *TickerAnalyst) priceTarget(base float64, rec models.Recommendation) decimal.Decimal {
	var factor float64
	switch rec {
	case models.RecommendationBuy:
		factor = 1 + (0.1 + a.src.Float64()*0.2)
	case models.RecommendationSell:
		factor = 1 - (0.1 + a.src.Float64()*0.15)
	default:
		factor = 1 + (a.src.Float64()*0.1 - 0.05)
	}
	return decimal.NewFromFloat(base * factor).Round(2)
}

// levels returns three support levels below base, descending, and three
// resistance levels above it, ascending. The bands do not overlap.
func (a *TickerAnalyst) levels(base float64) (support, resistance []decimal.Decimal) {
	bands := [][2]float64{{0.03, 0.02}, {0.06, 0.03}, {0.10, 0.05}}

	support = make([]decimal.Decimal, 0, len(bands))
	for _, b := range bands {
		support = append(support, decimal.NewFromFloat(base*(1-(b[0]+a.src.Float64()*b[1]))).Round(2))
	}
	resistance = make([]decimal.Decimal, 0, len(bands))
	for _, b := range bands {
		resistance = append(resistance, decimal.NewFromFloat(base*(1+(b[0]+a.src.Float64()*b[1]))).Round(2))
	}
	return support, resistance
}

func (a *TickerAnalyst) indicators(base float64, bullish bool) []models.TechnicalIndicator {
	sign := rng.Sign(bullish)

	var rsi float64
	rsiSignal := models.SignalBullish
	if bullish {
		rsi = rng.Uniform(a.src, 40, 70)
	} else {
		rsi = rng.Uniform(a.src, 30, 70)
		rsiSignal = models.SignalNeutral
		if rng.Above(a.src, 0.3) {
			rsiSignal = models.SignalBearish
		}
	}

	macd := sign * a.src.Float64() * 2
	macdSignal := models.SignalNeutral
	if rng.Above(a.src, 0.2) {
		macdSignal = bullBear(bullish)
	}

	ma50 := decimal.NewFromFloat(base * (1 + sign*a.src.Float64()*0.05))
	ma200 := decimal.NewFromFloat(base * (1 - sign*a.src.Float64()*0.1))

	return []models.TechnicalIndicator{
		{Name: "RSI (14)", Value: fmt.Sprintf("%d", int(math.Floor(rsi))), Signal: rsiSignal},
		{Name: "MACD", Value: f2(macd), Signal: macdSignal},
		{Name: "Moving Avg (50)", Value: formatUSD(ma50), Signal: bullBear(bullish)},
		{Name: "Moving Avg (200)", Value: formatUSD(ma200), Signal: bullBear(bullish)},
		{Name: "Bollinger Bands", Value: pick(bullish, "Near upper band", "Near lower band"), Signal: bullBear(bullish)},
	}
}

func (a *TickerAnalyst) metrics() []models.FundamentalMetric {
	pe := rng.Uniform(a.src, 15, 45)
	peCmp := rollComparison(a.src, 0.5, models.ComparisonAbove, models.ComparisonBelow)
	eps := a.src.Float64()*30 - 5
	epsCmp := rollComparison(a.src, 0.6, models.ComparisonAbove, models.ComparisonBelow)
	revenue := a.src.Float64()*25 - 2
	revenueCmp := rollComparison(a.src, 0.6, models.ComparisonAbove, models.ComparisonBelow)
	margin := rng.Uniform(a.src, 5, 30)
	marginCmp := rollComparison(a.src, 0.5, models.ComparisonAbove, models.ComparisonBelow)
	debt := rng.Uniform(a.src, 0.2, 1.7)
	debtCmp := rollComparison(a.src, 0.5, models.ComparisonBelow, models.ComparisonAbove)

	return []models.FundamentalMetric{
		{Name: "P/E Ratio", Value: f2(pe), Comparison: peCmp},
		{Name: "EPS Growth", Value: pct(eps), Comparison: epsCmp},
		{Name: "Revenue Growth", Value: pct(revenue), Comparison: revenueCmp},
		{Name: "Profit Margin", Value: pct(margin), Comparison: marginCmp},
		{Name: "Debt to Equity", Value: f2(debt), Comparison: debtCmp},
	}
}

// rollComparison returns first when a draw exceeds threshold, otherwise
// second or in-line with even odds.
func rollComparison(src rng.Source, threshold float64, first, second models.Comparison) models.Comparison {
	if rng.Above(src, threshold) {
		return first
	}
	if rng.Above(src, 0.5) {
		return second
	}
	return models.ComparisonInLine
}

func (a *TickerAnalyst) sentiment() *models.SentimentAnalysis {
	s := sentimentSection(a.src, 3, 6.5)
	switch {
	case rng.Above(a.src, 0.7):
		s.InsiderActivity = "Recent insider buying detected"
	case rng.Above(a.src, 0.5):
		s.InsiderActivity = "Recent insider selling detected"
	default:
		s.InsiderActivity = "No significant insider activity"
	}
	return s
}

func (a *TickerAnalyst) keyPoints(ticker string, kind models.AnalysisKind, bullish bool, s *models.SentimentAnalysis) []string {
	var points []string

	if kind.IncludesTechnical() {
		points = append(points,
			pick(bullish,
				ticker+" is showing a strong uptrend with positive momentum indicators.",
				ticker+" is in a downtrend with weakening momentum indicators."),
			pick(bullish,
				"The stock is trading above its 50-day moving average, indicating bullish sentiment.",
				"The stock is trading below its 50-day moving average, indicating bearish sentiment."),
			fmt.Sprintf("Volume patterns suggest %s institutional interest.", pick(bullish, "increasing", "decreasing")),
		)
	}

	if kind.IncludesFundamental() {
		points = append(points,
			fmt.Sprintf("%s's financial health appears %s with %s margins.",
				ticker, pick(bullish, "strong", "concerning"), pick(bullish, "improving", "deteriorating")),
			fmt.Sprintf("The company's growth rate is %s the sector average.", pick(bullish, "above", "below")),
			fmt.Sprintf("Valuation metrics suggest the stock is currently %s relative to peers.",
				pick(bullish, "undervalued", "overvalued")),
		)
	}

	if kind.IncludesSentiment() {
		points = append(points,
			fmt.Sprintf("Market sentiment for %s is generally %s based on news and social media analysis.", ticker, s.Overall),
			fmt.Sprintf("Analyst coverage has been %s in recent reports.",
				pick(bullish, "increasingly positive", "increasingly cautious")),
			s.InsiderActivity+" in the past month.",
		)
	}

	if bonus, ok := tickerBonus[ticker]; ok {
		points = append(points, bonus)
	}
	return points
}

func (a *TickerAnalyst) summary(ticker string, kind models.AnalysisKind, sc Scenario, target decimal.Decimal) string {
	var outlook, basis string
	switch kind {
	case models.AnalysisTechnical:
		outlook = pick(sc.Bullish, "technical patterns", "price action")
		basis = "volatility and momentum factors"
	case models.AnalysisFundamental:
		outlook = pick(sc.Bullish, "fundamentals", "financial metrics")
		basis = "financial stability and growth metrics"
	default:
		outlook = pick(sc.Bullish, "overall metrics", "overall performance")
		basis = "a combination of technical, fundamental, and sentiment indicators"
	}

	var middle string
	if sc.Bullish {
		middle = fmt.Sprintf("The stock shows promising %s with a price target of %s.", outlook, formatUSD(target))
	} else {
		middle = fmt.Sprintf("The stock faces challenges in its %s with a price target of %s.", outlook, formatUSD(target))
	}

	return fmt.Sprintf("Our %s analysis of %s indicates a %s recommendation with a %d%% confidence score. %s Risk is assessed as %s based on %s.",
		kind, ticker, upper(sc.Recommendation), sc.Confidence, middle, upper(sc.Risk), basis)
}
