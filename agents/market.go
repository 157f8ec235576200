package agents

import (
	"context"
	"fmt"

	"market-lens/internal/rng"
	"market-lens/models"
)

// MarketAnalyst assesses broad market conditions
type MarketAnalyst struct {
	src rng.Source
}

func NewMarketAnalyst(src rng.Source) *MarketAnalyst {
	return &MarketAnalyst{src: src}
}

// Name returns the agent name
func (a *MarketAnalyst) Name() string {
	return "Market Analyst"
}

// Subject returns the subject kind this analyst handles
func (a *MarketAnalyst) Subject() models.SubjectKind {
	return models.SubjectMarket
}

func (a *MarketAnalyst) Analyze(ctx context.Context, req models.AnalysisRequest) *models.AnalysisResult {
	kind := req.AnalysisKind
	if kind == "" {
		kind = models.AnalysisComprehensive
	}

	sc := ProfileFor(models.SubjectMarket).Sample(a.src)
	bull := sc.Bullish

	points := []string{
		fmt.Sprintf("Market breadth indicators are %s, with %s stocks participating in recent %s.",
			pick(bull, "improving", "deteriorating"), pick(bull, "more", "fewer"), pick(bull, "rallies", "declines")),
		fmt.Sprintf("Volatility indices suggest %s market uncertainty in the near term.", pick(bull, "decreasing", "increasing")),
		fmt.Sprintf("Sector rotation patterns indicate money flows %s cyclical sectors, suggesting %s.",
			pick(bull, "toward", "away from"), pick(bull, "economic optimism", "economic concerns")),
		fmt.Sprintf("Interest rate expectations are %s equity valuations.",
			pick(rng.Above(a.src, 0.5), "supportive of", "creating headwinds for")),
		fmt.Sprintf("Institutional positioning shows %s allocation to equities versus fixed income and cash.",
			pick(bull, "increasing", "decreasing")),
	}

	signal := bullBear(bull)
	indicators := []models.TechnicalIndicator{
		{Name: "Advance/Decline Line", Value: pick(bull, "Uptrend", "Downtrend"), Signal: signal},
		{Name: "VIX Index", Value: f2(rng.Uniform(a.src, 15, 35)), Signal: signal},
		{Name: "Put/Call Ratio", Value: f2(rng.Uniform(a.src, 0.7, 1.3)), Signal: signal},
		{Name: "200-Day Moving Avg", Value: "S&P 500 " + pick(bull, "above", "below"), Signal: signal},
	}

	peCmp := models.ComparisonAbove
	if bull {
		peCmp = models.ComparisonInLine
	}
	pe := rng.Uniform(a.src, 16, 24)
	earnings := rng.Uniform(a.src, 3, 15)
	dividend := rng.Uniform(a.src, 1.5, 2.5)
	dividendCmp := aboveBelow(rng.Above(a.src, 0.5))
	gdp := rng.Uniform(a.src, 1, 4)
	metrics := []models.FundamentalMetric{
		{Name: "S&P 500 P/E Ratio", Value: f2(pe), Comparison: peCmp},
		{Name: "Earnings Growth", Value: pct(earnings), Comparison: aboveBelow(bull)},
		{Name: "Dividend Yield", Value: pct(dividend), Comparison: dividendCmp},
		{Name: "GDP Growth", Value: pct(gdp), Comparison: aboveBelow(bull)},
	}

	sentiment := sentimentSection(a.src, 3, 6)
	sentiment.InsiderActivity = fmt.Sprintf("Corporate insiders showing %s activity",
		pick(rng.Above(a.src, 0.5), "net buying", "net selling"))

	basis := fmt.Sprintf("%s factors", kind)
	if kind == models.AnalysisComprehensive {
		basis = "a combination of technical, fundamental, and sentiment indicators"
	}

	result := &models.AnalysisResult{
		Summary: fmt.Sprintf("Our %s analysis of current market conditions indicates a %s recommendation with %d%% confidence. The broader market appears %s based on %s. Risk is assessed as %s over the near term.",
			kind, upper(sc.Recommendation), sc.Confidence,
			pick(bull, "poised for continued strength", "vulnerable to correction"),
			basis, upper(sc.Risk)),
		KeyPoints:           points,
		Recommendation:      sc.Recommendation,
		ConfidenceScore:     sc.Confidence,
		RiskLevel:           sc.Risk,
		TechnicalIndicators: indicators,
		FundamentalMetrics:  metrics,
		SentimentAnalysis:   sentiment,
	}
	gate(result, kind)
	return result
}
