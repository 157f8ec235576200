package agents

import (
	"context"
	"strconv"
	"strings"

	"market-lens/internal/rng"
	"market-lens/models"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Analyst composes the analysis for one subject kind
type Analyst interface {
	// Name returns the analyst name used in logs
	Name() string

	// Subject returns the subject kind this analyst handles
	Subject() models.SubjectKind

	// Analyze builds a result for req. It never fails; missing inputs fall
	// back to defaults.
	Analyze(ctx context.Context, req models.AnalysisRequest) *models.AnalysisResult
}

const (
	DefaultTicker = "AAPL"
	DefaultSector = "technology"
)

// sentimentSection rolls the news and social scores and classifies their
// average. Averages above positiveAbove are positive, below 4.5 negative.
func sentimentSection(src rng.Source, lo, positiveAbove float64) *models.SentimentAnalysis {
	news := rng.Uniform(src, lo, 10)
	social := rng.Uniform(src, lo, 10)
	return &models.SentimentAnalysis{
		Overall:     classifySentiment((news+social)/2, positiveAbove),
		NewsScore:   decimal.NewFromFloat(news).Round(2),
		SocialScore: decimal.NewFromFloat(social).Round(2),
	}
}

func classifySentiment(avg, positiveAbove float64) models.Sentiment {
	switch {
	case avg > positiveAbove:
		return models.SentimentPositive
	case avg < 4.5:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// gate drops the sections the analysis kind does not include
func gate(result *models.AnalysisResult, kind models.AnalysisKind) {
	if !kind.IncludesTechnical() {
		result.TechnicalIndicators = nil
	}
	if !kind.IncludesFundamental() {
		result.FundamentalMetrics = nil
	}
	if !kind.IncludesSentiment() {
		result.SentimentAnalysis = nil
	}
}

func bullBear(bullish bool) models.Signal {
	if bullish {
		return models.SignalBullish
	}
	return models.SignalBearish
}

func aboveBelow(above bool) models.Comparison {
	if above {
		return models.ComparisonAbove
	}
	return models.ComparisonBelow
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

func f2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func f1(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func pct(v float64) string {
	return f2(v) + "%"
}

// formatUSD renders a dollar amount with grouping, e.g. "$28,456.32"
func formatUSD(amount decimal.Decimal) string {
	cur := money.GetCurrency("USD")
	cents := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(cents, cur.Code).Display()
}

// upper renders an enum the way summaries quote it, e.g. "BUY"
func upper[T ~string](s T) string {
	return strings.ToUpper(string(s))
}
