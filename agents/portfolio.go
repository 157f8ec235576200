package agents

import (
	"context"
	"fmt"
	"math"

	"market-lens/internal/rng"
	"market-lens/models"
)

// PortfolioAnalyst reviews the user's holdings as a whole
type PortfolioAnalyst struct {
	src rng.Source
}

func NewPortfolioAnalyst(src rng.Source) *PortfolioAnalyst {
	return &PortfolioAnalyst{src: src}
}

// Name returns the agent name
func (a *PortfolioAnalyst) Name() string {
	return "Portfolio Analyst"
}

// Subject returns the subject kind this analyst handles
func (a *PortfolioAnalyst) Subject() models.SubjectKind {
	return models.SubjectPortfolio
}

// Analyze builds a portfolio analysis. Volatility wording and the drawdown
// signal follow the sampled risk level rather than the direction.
func (a *PortfolioAnalyst) Analyze(ctx context.Context, req models.AnalysisRequest) *models.AnalysisResult {
	kind := req.AnalysisKind
	if kind == "" {
		kind = models.AnalysisComprehensive
	}

	sc := ProfileFor(models.SubjectPortfolio).Sample(a.src)
	bull := sc.Bullish

	lead := 0.0
	if !bull {
		lead = 2
	}
	relative := a.src.Float64()*4 - lead
	diversified := rng.Above(a.src, 0.5)
	reduces := rng.Above(a.src, 0.5)
	increasing := rng.Above(a.src, 0.5)
	technology := rng.Above(a.src, 0.5)
	dividendShare := int(math.Floor(a.src.Float64() * 60))

	points := []string{
		fmt.Sprintf("Your portfolio %s the S&P 500 by %s%% year-to-date.",
			pick(bull, "is outperforming", "is underperforming"), f1(relative)),
		fmt.Sprintf("Sector allocation appears %s, which %s overall risk.",
			pick(diversified, "well-diversified", "concentrated in a few sectors"), pick(reduces, "reduces", "increases")),
		fmt.Sprintf("%s exposure to %s stocks could improve risk-adjusted returns.",
			pick(increasing, "Increasing", "Reducing"), pick(technology, "technology", "healthcare")),
		fmt.Sprintf("Dividend-paying stocks comprise %d%% of your portfolio, providing income stability.", dividendShare),
		fmt.Sprintf("Portfolio volatility is %s market averages.", byRisk(sc.Risk, "below", "in line with", "above")),
	}

	betaSignal := models.SignalNeutral
	if sc.Risk == models.RiskHigh {
		betaSignal = models.SignalBearish
	}
	sharpeSignal := models.SignalNeutral
	if bull {
		sharpeSignal = models.SignalBullish
	}
	indicators := []models.TechnicalIndicator{
		{Name: "Portfolio Beta", Value: f2(rng.Uniform(a.src, 0.7, 1.3)), Signal: betaSignal},
		{Name: "Sharpe Ratio", Value: f2(rng.Uniform(a.src, 0.8, 2.0)), Signal: sharpeSignal},
		{Name: "Drawdown", Value: pct(rng.Uniform(a.src, 5, 20)),
			Signal: models.Signal(byRisk(sc.Risk, string(models.SignalBullish), string(models.SignalNeutral), string(models.SignalBearish)))},
	}

	pe := rng.Uniform(a.src, 16, 36)
	peCmp := aboveBelow(rng.Above(a.src, 0.5))
	dividend := rng.Uniform(a.src, 1.5, 4)
	dividendCmp := aboveBelow(rng.Above(a.src, 0.5))
	earnings := rng.Uniform(a.src, 5, 20)
	debt := rng.Uniform(a.src, 0.4, 1.6)
	debtCmp := aboveBelow(!rng.Above(a.src, 0.5))
	metrics := []models.FundamentalMetric{
		{Name: "Avg P/E Ratio", Value: f2(pe), Comparison: peCmp},
		{Name: "Dividend Yield", Value: pct(dividend), Comparison: dividendCmp},
		{Name: "Earnings Growth", Value: pct(earnings), Comparison: aboveBelow(bull)},
		{Name: "Debt to Equity", Value: f2(debt), Comparison: debtCmp},
	}

	sentiment := sentimentSection(a.src, 4, 6.5)
	sentiment.InsiderActivity = "Mixed insider activity across portfolio holdings"

	result := &models.AnalysisResult{
		Summary: fmt.Sprintf("Our %s analysis of your portfolio indicates a %s recommendation with %d%% confidence. Your investments are %s in the current market environment. We've identified several opportunities to optimize your holdings for better %s.",
			kind, upper(sc.Recommendation), sc.Confidence,
			pick(bull, "generally well-positioned", "facing some challenges"),
			byRisk(sc.Risk, "growth potential", "risk-adjusted returns", "downside protection")),
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

func byRisk(risk models.RiskLevel, low, medium, high string) string {
	switch risk {
	case models.RiskLow:
		return low
	case models.RiskMedium:
		return medium
	default:
		return high
	}
}
