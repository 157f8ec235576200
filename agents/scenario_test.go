package agents

import (
	"testing"

	"market-lens/internal/rng"
	"market-lens/models"
)

func TestScenarioProfile_Sample(t *testing.T) {
	tests := []struct {
		name    string
		subject models.SubjectKind
		draws   []float64
		want    Scenario
	}{
		{"ticker bullish", models.SubjectTicker, []float64{0.5}, Scenario{true, models.RecommendationBuy, 80, models.RiskLow}},
		{"ticker bullish medium risk", models.SubjectTicker, []float64{0.9, 0.1, 0, 0.8}, Scenario{true, models.RecommendationBuy, 65, models.RiskMedium}},
		{"ticker bearish hold", models.SubjectTicker, []float64{0.3, 0.6, 0, 0.5}, Scenario{false, models.RecommendationHold, 65, models.RiskHigh}},
		{"ticker bearish sell", models.SubjectTicker, []float64{0.1, 0.2, 0.999, 0.2}, Scenario{false, models.RecommendationSell, 94, models.RiskMedium}},
		{"ticker threshold is exclusive", models.SubjectTicker, []float64{0.4, 0.4, 0.5, 0.5}, Scenario{false, models.RecommendationSell, 80, models.RiskHigh}},
		{"sector watch", models.SubjectSector, []float64{0.5, 0.2, 0.5, 0.7}, Scenario{true, models.RecommendationWatch, 75, models.RiskMedium}},
		{"sector bearish hold", models.SubjectSector, []float64{0.2, 0.8, 0.999, 0.3}, Scenario{false, models.RecommendationHold, 89, models.RiskMedium}},
		{"market buy", models.SubjectMarket, []float64{0.9, 0.9, 0, 0.1}, Scenario{true, models.RecommendationBuy, 60, models.RiskLow}},
		{"market bearish sell", models.SubjectMarket, []float64{0.0, 0.5, 0.5, 0.9}, Scenario{false, models.RecommendationSell, 75, models.RiskHigh}},
		{"portfolio hold", models.SubjectPortfolio, []float64{0.5, 0.5, 0.5, 0.7}, Scenario{true, models.RecommendationHold, 77, models.RiskMedium}},
		{"portfolio low risk takes a second draw", models.SubjectPortfolio, []float64{0.5, 0.5, 0.5, 0.4, 0.6}, Scenario{true, models.RecommendationHold, 77, models.RiskLow}},
		{"portfolio bearish sell high risk", models.SubjectPortfolio, []float64{0.2, 0.4, 0.5, 0.55}, Scenario{false, models.RecommendationSell, 77, models.RiskHigh}},
		{"portfolio bearish watch", models.SubjectPortfolio, []float64{0.3, 0.6, 0.0, 0.9}, Scenario{false, models.RecommendationWatch, 65, models.RiskMedium}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProfileFor(tt.subject).Sample(rng.NewSequence(tt.draws...))
			if got != tt.want {
				t.Errorf("Sample() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestScenarioProfile_Ranges(t *testing.T) {
	tests := []struct {
		subject models.SubjectKind
		minConf int
		maxConf int
		allowed []models.Recommendation
	}{
		{models.SubjectTicker, 65, 94, []models.Recommendation{models.RecommendationBuy, models.RecommendationHold, models.RecommendationSell}},
		{models.SubjectSector, 60, 89, []models.Recommendation{models.RecommendationBuy, models.RecommendationWatch, models.RecommendationHold, models.RecommendationSell}},
		{models.SubjectMarket, 60, 89, []models.Recommendation{models.RecommendationBuy, models.RecommendationWatch, models.RecommendationHold, models.RecommendationSell}},
		{models.SubjectPortfolio, 65, 89, []models.Recommendation{models.RecommendationHold, models.RecommendationWatch, models.RecommendationSell}},
	}

	for _, tt := range tests {
		t.Run(string(tt.subject), func(t *testing.T) {
			src := rng.New(99)
			profile := ProfileFor(tt.subject)
			for i := 0; i < 2000; i++ {
				sc := profile.Sample(src)
				if sc.Confidence < tt.minConf || sc.Confidence > tt.maxConf {
					t.Fatalf("confidence %d outside [%d, %d]", sc.Confidence, tt.minConf, tt.maxConf)
				}
				if !containsRec(tt.allowed, sc.Recommendation) {
					t.Fatalf("unexpected recommendation %q", sc.Recommendation)
				}
				if tt.subject == models.SubjectTicker && sc.Bullish && sc.Recommendation != models.RecommendationBuy {
					t.Fatalf("bullish ticker should always be buy, got %q", sc.Recommendation)
				}
			}
		})
	}
}

func TestProfileFor_UnknownIsMarket(t *testing.T) {
	p := ProfileFor(models.SubjectKind("galaxy"))
	if p.Subject != models.SubjectMarket {
		t.Errorf("Subject = %q, want market", p.Subject)
	}
}

func containsRec(list []models.Recommendation, r models.Recommendation) bool {
	for _, v := range list {
		if v == r {
			return true
		}
	}
	return false
}
