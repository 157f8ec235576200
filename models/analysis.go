package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SubjectKind is the target of an analysis
type SubjectKind string

const (
	SubjectTicker    SubjectKind = "ticker"
	SubjectPortfolio SubjectKind = "portfolio"
	SubjectMarket    SubjectKind = "market"
	SubjectSector    SubjectKind = "sector"
)

// Valid reports whether k is a known subject kind
func (k SubjectKind) Valid() bool {
	switch k {
	case SubjectTicker, SubjectPortfolio, SubjectMarket, SubjectSector:
		return true
	}
	return false
}

// AnalysisKind selects the analytical lens and therefore which result sections are populated
type AnalysisKind string

const (
	AnalysisTechnical     AnalysisKind = "technical"
	AnalysisFundamental   AnalysisKind = "fundamental"
	AnalysisSentiment     AnalysisKind = "sentiment"
	AnalysisComprehensive AnalysisKind = "comprehensive"
)

// Valid reports whether k is a known analysis kind
func (k AnalysisKind) Valid() bool {
	switch k {
	case AnalysisTechnical, AnalysisFundamental, AnalysisSentiment, AnalysisComprehensive:
		return true
	}
	return false
}

// IncludesTechnical reports whether technical indicators belong in the result
func (k AnalysisKind) IncludesTechnical() bool {
	return k == AnalysisTechnical || k == AnalysisComprehensive
}

// IncludesFundamental reports whether fundamental metrics belong in the result
func (k AnalysisKind) IncludesFundamental() bool {
	return k == AnalysisFundamental || k == AnalysisComprehensive
}

// IncludesSentiment reports whether sentiment analysis belongs in the result
func (k AnalysisKind) IncludesSentiment() bool {
	return k == AnalysisSentiment || k == AnalysisComprehensive
}

// AnalysisTimeframe is the horizon requested for an analysis
type AnalysisTimeframe string

const (
	AnalysisTimeframe1D AnalysisTimeframe = "1d"
	AnalysisTimeframe1W AnalysisTimeframe = "1w"
	AnalysisTimeframe1M AnalysisTimeframe = "1m"
	AnalysisTimeframe3M AnalysisTimeframe = "3m"
	AnalysisTimeframe1Y AnalysisTimeframe = "1y"
)

// Valid reports whether t is a known analysis timeframe
func (t AnalysisTimeframe) Valid() bool {
	switch t {
	case AnalysisTimeframe1D, AnalysisTimeframe1W, AnalysisTimeframe1M, AnalysisTimeframe3M, AnalysisTimeframe1Y:
		return true
	}
	return false
}

// SeriesTimeframe maps the analysis horizon onto the chart series horizon.
// There is no weekly chart; one week is charted with the five-day series.
func (t AnalysisTimeframe) SeriesTimeframe() SeriesTimeframe {
	switch t {
	case AnalysisTimeframe1D:
		return Timeframe1D
	case AnalysisTimeframe1W:
		return Timeframe5D
	case AnalysisTimeframe3M:
		return Timeframe3M
	case AnalysisTimeframe1Y:
		return Timeframe1Y
	default:
		return Timeframe1M
	}
}

// AnalysisRequest describes what to analyze and through which lens
type AnalysisRequest struct {
	SubjectKind  SubjectKind       `json:"subject_kind"`
	Ticker       string            `json:"ticker,omitempty"`
	Sector       string            `json:"sector,omitempty"`
	Timeframe    AnalysisTimeframe `json:"timeframe"`
	AnalysisKind AnalysisKind      `json:"analysis_kind"`
}

// Normalize cleans user input in place: tickers are upper-cased, sector
// slugs lower-cased, and empty timeframe/kind fall back to 1m/comprehensive.
func (r *AnalysisRequest) Normalize() {
	r.Ticker = strings.ToUpper(strings.TrimSpace(r.Ticker))
	r.Sector = strings.ToLower(strings.TrimSpace(r.Sector))
	if r.Timeframe == "" {
		r.Timeframe = AnalysisTimeframe1M
	}
	if r.AnalysisKind == "" {
		r.AnalysisKind = AnalysisComprehensive
	}
}

// Validate checks enum membership and the ticker/sector presence invariant
func (r AnalysisRequest) Validate() error {
	if !r.SubjectKind.Valid() {
		return fmt.Errorf("invalid subject kind %q", r.SubjectKind)
	}
	if !r.Timeframe.Valid() {
		return fmt.Errorf("invalid timeframe %q", r.Timeframe)
	}
	if !r.AnalysisKind.Valid() {
		return fmt.Errorf("invalid analysis kind %q", r.AnalysisKind)
	}

	switch r.SubjectKind {
	case SubjectTicker:
		if r.Ticker == "" {
			return fmt.Errorf("ticker is required for ticker analysis")
		}
		if r.Sector != "" {
			return fmt.Errorf("sector is not allowed for ticker analysis")
		}
	case SubjectSector:
		if r.Sector == "" {
			return fmt.Errorf("sector is required for sector analysis")
		}
		if r.Ticker != "" {
			return fmt.Errorf("ticker is not allowed for sector analysis")
		}
	default:
		if r.Ticker != "" || r.Sector != "" {
			return fmt.Errorf("%s analysis takes neither ticker nor sector", r.SubjectKind)
		}
	}
	return nil
}

// Title returns a short human label for the request
func (r AnalysisRequest) Title() string {
	switch r.SubjectKind {
	case SubjectTicker:
		return fmt.Sprintf("%s %s analysis", r.Ticker, r.AnalysisKind)
	case SubjectSector:
		return fmt.Sprintf("%s sector %s analysis", FormatSectorName(r.Sector), r.AnalysisKind)
	case SubjectPortfolio:
		return fmt.Sprintf("Portfolio %s analysis", r.AnalysisKind)
	default:
		return fmt.Sprintf("Market %s analysis", r.AnalysisKind)
	}
}

// FormatSectorName turns a slug such as "consumer-goods" into "Consumer Goods"
func FormatSectorName(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Recommendation is the suggested action
type Recommendation string

const (
	RecommendationBuy   Recommendation = "buy"
	RecommendationSell  Recommendation = "sell"
	RecommendationHold  Recommendation = "hold"
	RecommendationWatch Recommendation = "watch"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type Signal string

const (
	SignalBullish Signal = "bullish"
	SignalBearish Signal = "bearish"
	SignalNeutral Signal = "neutral"
)

type Comparison string

const (
	ComparisonAbove  Comparison = "above"
	ComparisonBelow  Comparison = "below"
	ComparisonInLine Comparison = "in-line"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// TechnicalIndicator is a named indicator reading with its signal
type TechnicalIndicator struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Signal Signal `json:"signal"`
}

// FundamentalMetric is a named metric compared against its peer group
type FundamentalMetric struct {
	Name       string     `json:"name"`
	Value      string     `json:"value"`
	Comparison Comparison `json:"comparison"`
}

// SentimentAnalysis summarizes news, social and insider sentiment
type SentimentAnalysis struct {
	Overall         Sentiment       `json:"overall"`
	NewsScore       decimal.Decimal `json:"news_score"`
	SocialScore     decimal.Decimal `json:"social_score"`
	InsiderActivity string          `json:"insider_activity"`
}

// AnalysisResult is the composed output of an analysis request.
// Optional sections are nil when the analysis kind excludes them.
type AnalysisResult struct {
	Summary             string               `json:"summary"`
	KeyPoints           []string             `json:"key_points"`
	Recommendation      Recommendation       `json:"recommendation"`
	ConfidenceScore     int                  `json:"confidence_score"`
	RiskLevel           RiskLevel            `json:"risk_level"`
	PriceTarget         *decimal.Decimal     `json:"price_target,omitempty"`
	SupportLevels       []decimal.Decimal    `json:"support_levels,omitempty"`
	ResistanceLevels    []decimal.Decimal    `json:"resistance_levels,omitempty"`
	TechnicalIndicators []TechnicalIndicator `json:"technical_indicators,omitempty"`
	FundamentalMetrics  []FundamentalMetric  `json:"fundamental_metrics,omitempty"`
	SentimentAnalysis   *SentimentAnalysis   `json:"sentiment_analysis,omitempty"`
	Narrative           string               `json:"narrative,omitempty"`
	GeneratedAt         time.Time            `json:"generated_at"`
}
