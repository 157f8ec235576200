package agents

import (
	"context"
	"fmt"
	"math"
	"strings"

	"market-lens/internal/rng"
	"market-lens/models"
)

var sectorBonus = map[string]string{
	"technology": "AI and cloud computing remain key growth drivers for the sector.",
	"healthcare": "Innovation in treatments and aging demographics support long-term growth.",
	"energy":     "Transition to renewable energy is reshaping competitive dynamics.",
}

// SectorAnalyst analyzes an industry sector through its sector ETF
type SectorAnalyst struct {
	src rng.Source
}

func NewSectorAnalyst(src rng.Source) *SectorAnalyst {
	return &SectorAnalyst{src: src}
}

// Name returns the agent name
func (a *SectorAnalyst) Name() string {
	return "Sector Analyst"
}

// Subject returns the subject kind this analyst handles
func (a *SectorAnalyst) Subject() models.SubjectKind {
	return models.SubjectSector
}

// Analyze builds a sector analysis for req.Sector, a slug such as "consumer-goods"
func (a *SectorAnalyst) Analyze(ctx context.Context, req models.AnalysisRequest) *models.AnalysisResult {
	sector := req.Sector
	if sector == "" {
		sector = DefaultSector
	}
	kind := req.AnalysisKind
	if kind == "" {
		kind = models.AnalysisComprehensive
	}
	display := models.FormatSectorName(sector)

	sc := ProfileFor(models.SubjectSector).Sample(a.src)
	bull := sc.Bullish

	points := []string{
		fmt.Sprintf("The %s sector is %s the broader market by %s%%.",
			display, pick(bull, "outperforming", "underperforming"), f1(rng.Uniform(a.src, 1, 6))),
		fmt.Sprintf("%s capital inflows suggest %s investor interest.",
			pick(bull, "Increasing", "Decreasing"), pick(bull, "growing", "waning")),
		fmt.Sprintf("Regulatory environment appears %s for companies in this sector.",
			pick(rng.Above(a.src, 0.5), "favorable", "challenging")),
		fmt.Sprintf("Valuations are %s compared to historical averages.", pick(bull, "attractive", "stretched")),
		fmt.Sprintf("Leading companies in the sector are reporting %s earnings results.", pick(bull, "strong", "mixed")),
	}
	if bonus, ok := sectorBonus[sector]; ok {
		points = append(points, bonus)
	}

	sign := rng.Sign(bull)
	momentum := models.SignalNeutral
	if bull {
		momentum = models.SignalBullish
	}
	var mfi float64
	if bull {
		mfi = rng.Uniform(a.src, 50, 90)
	} else {
		mfi = rng.Uniform(a.src, 10, 50)
	}
	indicators := []models.TechnicalIndicator{
		{Name: "Relative Strength", Value: f2(sign * rng.Uniform(a.src, 0.5, 2.5)), Signal: bullBear(bull)},
		{Name: "Money Flow Index", Value: fmt.Sprintf("%d", int(math.Floor(mfi))), Signal: bullBear(bull)},
		{Name: "Sector Momentum", Value: f2(sign * rng.Uniform(a.src, 0.2, 3.2)), Signal: momentum},
	}

	revenueFloor := 0.0
	if !bull {
		revenueFloor = 5
	}
	metrics := []models.FundamentalMetric{
		{Name: "Avg P/E Ratio", Value: f2(rng.Uniform(a.src, 15, 40)), Comparison: aboveBelow(!bull)},
		{Name: "Revenue Growth", Value: pct(a.src.Float64()*15 - revenueFloor), Comparison: aboveBelow(bull)},
		{Name: "Profit Margin", Value: pct(rng.Uniform(a.src, 5, 25)), Comparison: aboveBelow(bull)},
	}
	dividend := rng.Uniform(a.src, 1, 4)
	metrics = append(metrics, models.FundamentalMetric{
		Name: "Dividend Yield", Value: pct(dividend), Comparison: aboveBelow(rng.Above(a.src, 0.5)),
	})

	sentiment := sentimentSection(a.src, 3, 6)
	sentiment.InsiderActivity = fmt.Sprintf("Insider transactions in the sector show a %s trend",
		pick(rng.Above(a.src, 0.5), "net buying", "net selling"))

	result := &models.AnalysisResult{
		Summary:             a.summary(display, kind, sc),
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

func (a *SectorAnalyst) summary(display string, kind models.AnalysisKind, sc Scenario) string {
	basis := "Technical indicators, fundamentals, and sentiment analysis all"
	if kind != models.AnalysisComprehensive {
		k := string(kind)
		basis = strings.ToUpper(k[:1]) + k[1:] + " indicators"
	}
	return fmt.Sprintf("Our analysis of the %s sector indicates a %s recommendation with %d%% confidence. The sector is %s in the current market environment. %s suggest a %s risk profile for investments in this sector.",
		display, upper(sc.Recommendation), sc.Confidence,
		pick(sc.Bullish, "well-positioned for growth", "facing significant headwinds"),
		basis, sc.Risk)
}
