package agents

import (
	"math"

	"market-lens/internal/rng"
	"market-lens/models"
)

// Scenario is the sampled outlook every section of an analysis agrees with
type Scenario struct {
	Bullish        bool
	Recommendation models.Recommendation
	Confidence     int
	Risk           models.RiskLevel
}

// ScenarioProfile holds the per-subject odds used to sample a Scenario
type ScenarioProfile struct {
	Subject        models.SubjectKind
	BullishAbove   float64
	ConfidenceBase float64
	ConfidenceSpan float64

	recommend func(src rng.Source, bullish bool) models.Recommendation
	risk      func(src rng.Source, bullish bool) models.RiskLevel
}

// Sample draws a scenario. The first draw decides the direction; the
// recommendation, confidence and risk each take fresh draws after it.
func (p ScenarioProfile) Sample(src rng.Source) Scenario {
	bullish := rng.Above(src, p.BullishAbove)
	rec := p.recommend(src, bullish)
	confidence := int(math.Floor(p.ConfidenceBase + src.Float64()*p.ConfidenceSpan))
	return Scenario{
		Bullish:        bullish,
		Recommendation: rec,
		Confidence:     confidence,
		Risk:           p.risk(src, bullish),
	}
}

var (
	tickerProfile = ScenarioProfile{
		Subject:        models.SubjectTicker,
		BullishAbove:   0.4,
		ConfidenceBase: 65,
		ConfidenceSpan: 30,
		recommend: func(src rng.Source, bullish bool) models.Recommendation {
			r := src.Float64()
			if bullish {
				return models.RecommendationBuy
			}
			if r > 0.5 {
				return models.RecommendationHold
			}
			return models.RecommendationSell
		},
		risk: func(src rng.Source, bullish bool) models.RiskLevel {
			r := src.Float64()
			if bullish {
				if r > 0.7 {
					return models.RiskMedium
				}
				return models.RiskLow
			}
			if r > 0.3 {
				return models.RiskHigh
			}
			return models.RiskMedium
		},
	}

	// sector and market share the same odds
	broadProfile = ScenarioProfile{
		BullishAbove:   0.4,
		ConfidenceBase: 60,
		ConfidenceSpan: 30,
		recommend: func(src rng.Source, bullish bool) models.Recommendation {
			r := src.Float64()
			switch {
			case bullish && r > 0.3:
				return models.RecommendationBuy
			case bullish:
				return models.RecommendationWatch
			case r > 0.5:
				return models.RecommendationHold
			default:
				return models.RecommendationSell
			}
		},
		risk: func(src rng.Source, bullish bool) models.RiskLevel {
			r := src.Float64()
			if bullish {
				if r > 0.6 {
					return models.RiskMedium
				}
				return models.RiskLow
			}
			if r > 0.4 {
				return models.RiskHigh
			}
			return models.RiskMedium
		},
	}

	portfolioProfile = ScenarioProfile{
		Subject:        models.SubjectPortfolio,
		BullishAbove:   0.3,
		ConfidenceBase: 65,
		ConfidenceSpan: 25,
		recommend: func(src rng.Source, bullish bool) models.Recommendation {
			r := src.Float64()
			switch {
			case bullish:
				return models.RecommendationHold
			case r > 0.5:
				return models.RecommendationWatch
			default:
				return models.RecommendationSell
			}
		},
		// portfolio risk ignores the direction
		risk: func(src rng.Source, _ bool) models.RiskLevel {
			if rng.Above(src, 0.6) {
				return models.RiskMedium
			}
			if rng.Above(src, 0.5) {
				return models.RiskLow
			}
			return models.RiskHigh
		},
	}
)

// ProfileFor returns the sampling odds for a subject. Unknown subjects get
// the market odds.
func ProfileFor(subject models.SubjectKind) ScenarioProfile {
	switch subject {
	case models.SubjectTicker:
		return tickerProfile
	case models.SubjectPortfolio:
		return portfolioProfile
	case models.SubjectSector:
		p := broadProfile
		p.Subject = models.SubjectSector
		return p
	default:
		p := broadProfile
		p.Subject = models.SubjectMarket
		return p
	}
}
