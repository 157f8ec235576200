package agents

import (
	"context"
	"strings"
	"testing"

	"market-lens/internal/rng"
	"market-lens/models"

	"github.com/shopspring/decimal"
)

// fixedQuotes is a MarketData that prices every symbol at price
type fixedQuotes struct {
	price   decimal.Decimal
	symbols []string
}

func (f *fixedQuotes) GetQuote(ctx context.Context, symbol string, class models.AssetClass) models.Quote {
	f.symbols = append(f.symbols, symbol)
	return models.Quote{Symbol: symbol, AssetClass: class, Price: f.price}
}

func (f *fixedQuotes) GetHistoricalSeries(ctx context.Context, symbol string, tf models.SeriesTimeframe) []models.HistoricalDataPoint {
	return nil
}

func tickerRequest(ticker string, kind models.AnalysisKind) models.AnalysisRequest {
	return models.AnalysisRequest{
		SubjectKind:  models.SubjectTicker,
		Ticker:       ticker,
		Timeframe:    models.AnalysisTimeframe1M,
		AnalysisKind: kind,
	}
}

func TestTickerAnalyst_ScriptedComprehensive(t *testing.T) {
	data := &fixedQuotes{price: decimal.RequireFromString("178.72")}
	a := NewTickerAnalyst(rng.NewSequence(0.5), data)

	result := a.Analyze(context.Background(), tickerRequest("AAPL", models.AnalysisComprehensive))

	if result.Recommendation != models.RecommendationBuy || result.ConfidenceScore != 80 || result.RiskLevel != models.RiskLow {
		t.Fatalf("unexpected scenario: %s/%d/%s", result.Recommendation, result.ConfidenceScore, result.RiskLevel)
	}
	if result.PriceTarget == nil || !result.PriceTarget.Equal(decimal.RequireFromString("214.46")) {
		t.Errorf("PriceTarget = %v, want 214.46", result.PriceTarget)
	}
	if !result.SupportLevels[0].Equal(decimal.RequireFromString("171.57")) {
		t.Errorf("first support = %v, want 171.57", result.SupportLevels[0])
	}

	if len(result.TechnicalIndicators) != 5 {
		t.Fatalf("expected 5 indicators, got %d", len(result.TechnicalIndicators))
	}
	rsi := result.TechnicalIndicators[0]
	if rsi.Name != "RSI (14)" || rsi.Value != "55" || rsi.Signal != models.SignalBullish {
		t.Errorf("RSI = %+v", rsi)
	}
	macd := result.TechnicalIndicators[1]
	if macd.Value != "1.00" || macd.Signal != models.SignalBullish {
		t.Errorf("MACD = %+v", macd)
	}
	if ma := result.TechnicalIndicators[2]; ma.Value != "$183.19" {
		t.Errorf("Moving Avg (50) = %q, want $183.19", ma.Value)
	}
	if bb := result.TechnicalIndicators[4]; bb.Value != "Near upper band" {
		t.Errorf("Bollinger Bands = %q", bb.Value)
	}

	if len(result.FundamentalMetrics) != 5 {
		t.Fatalf("expected 5 metrics, got %d", len(result.FundamentalMetrics))
	}
	pe := result.FundamentalMetrics[0]
	if pe.Value != "30.00" || pe.Comparison != models.ComparisonInLine {
		t.Errorf("P/E = %+v", pe)
	}

	s := result.SentimentAnalysis
	if s == nil {
		t.Fatal("comprehensive analysis should include sentiment")
	}
	if s.Overall != models.SentimentNeutral {
		t.Errorf("average of 6.5 is not above 6.5, got %q", s.Overall)
	}
	if s.InsiderActivity != "No significant insider activity" {
		t.Errorf("InsiderActivity = %q", s.InsiderActivity)
	}

	if len(result.KeyPoints) != 10 {
		t.Errorf("expected 9 lens points plus the AAPL bonus, got %d", len(result.KeyPoints))
	}
	if last := result.KeyPoints[len(result.KeyPoints)-1]; last != tickerBonus["AAPL"] {
		t.Errorf("last key point = %q, want AAPL bonus", last)
	}

	wantSummary := "Our comprehensive analysis of AAPL indicates a BUY recommendation with a 80% confidence score. " +
		"The stock shows promising overall metrics with a price target of $214.46. " +
		"Risk is assessed as LOW based on a combination of technical, fundamental, and sentiment indicators."
	if result.Summary != wantSummary {
		t.Errorf("Summary =\n%s\nwant\n%s", result.Summary, wantSummary)
	}
}

func TestTickerAnalyst_BearishSummary(t *testing.T) {
	// bearish, sell, confidence 65, high risk
	data := &fixedQuotes{price: decimal.NewFromInt(100)}
	a := NewTickerAnalyst(rng.NewSequence(0.1, 0.1, 0.0, 0.9, 0.0), data)

	result := a.Analyze(context.Background(), tickerRequest("IBM", models.AnalysisTechnical))

	if result.Recommendation != models.RecommendationSell {
		t.Fatalf("Recommendation = %q, want sell", result.Recommendation)
	}
	if !strings.Contains(result.Summary, "The stock faces challenges in its price action") {
		t.Errorf("Summary = %q", result.Summary)
	}
	if !strings.HasSuffix(result.Summary, "Risk is assessed as HIGH based on volatility and momentum factors.") {
		t.Errorf("Summary = %q", result.Summary)
	}
	if len(result.KeyPoints) != 3 {
		t.Errorf("technical analysis of an unlisted symbol has 3 key points, got %d", len(result.KeyPoints))
	}
	if !strings.HasPrefix(result.KeyPoints[0], "IBM is in a downtrend") {
		t.Errorf("KeyPoints[0] = %q", result.KeyPoints[0])
	}
}

func TestTickerAnalyst_PriceLevels(t *testing.T) {
	base := decimal.RequireFromString("178.72")
	a := NewTickerAnalyst(rng.New(7), &fixedQuotes{price: base})
	low := base.Mul(decimal.RequireFromString("0.75"))
	high := base.Mul(decimal.RequireFromString("1.3"))

	for i := 0; i < 500; i++ {
		result := a.Analyze(context.Background(), tickerRequest("AAPL", models.AnalysisTechnical))

		if result.PriceTarget.LessThan(low) || result.PriceTarget.GreaterThan(high) {
			t.Fatalf("price target %v outside [%v, %v]", result.PriceTarget, low, high)
		}
		if len(result.SupportLevels) != 3 || len(result.ResistanceLevels) != 3 {
			t.Fatalf("expected 3 support and 3 resistance levels")
		}
		for j := 0; j < 3; j++ {
			if !result.SupportLevels[j].LessThan(base) || !result.ResistanceLevels[j].GreaterThan(base) {
				t.Fatalf("levels on the wrong side of %v: %v %v", base, result.SupportLevels, result.ResistanceLevels)
			}
			if j > 0 && !result.SupportLevels[j].LessThan(result.SupportLevels[j-1]) {
				t.Fatalf("support not descending: %v", result.SupportLevels)
			}
			if j > 0 && !result.ResistanceLevels[j].GreaterThan(result.ResistanceLevels[j-1]) {
				t.Fatalf("resistance not ascending: %v", result.ResistanceLevels)
			}
		}
	}
}

func TestTickerAnalyst_DefaultsAndQuoteLookup(t *testing.T) {
	data := &fixedQuotes{price: decimal.NewFromInt(30000)}
	a := NewTickerAnalyst(rng.NewSequence(0.5), data)

	result := a.Analyze(context.Background(), models.AnalysisRequest{SubjectKind: models.SubjectTicker})
	if len(data.symbols) != 1 || data.symbols[0] != DefaultTicker {
		t.Errorf("quoted %v, want [%s]", data.symbols, DefaultTicker)
	}
	if !strings.Contains(result.Summary, "comprehensive analysis of AAPL") {
		t.Errorf("Summary = %q", result.Summary)
	}

	a.Analyze(context.Background(), tickerRequest("BTC-USD", models.AnalysisSentiment))
	if data.symbols[1] != "BTC-USD" {
		t.Errorf("quoted %v", data.symbols)
	}
}

func TestSectorAnalyst_Scripted(t *testing.T) {
	a := NewSectorAnalyst(rng.NewSequence(0.5))

	result := a.Analyze(context.Background(), models.AnalysisRequest{
		SubjectKind:  models.SubjectSector,
		Sector:       "consumer-goods",
		AnalysisKind: models.AnalysisTechnical,
	})

	if result.Recommendation != models.RecommendationBuy || result.ConfidenceScore != 75 || result.RiskLevel != models.RiskLow {
		t.Fatalf("unexpected scenario: %s/%d/%s", result.Recommendation, result.ConfidenceScore, result.RiskLevel)
	}
	if len(result.KeyPoints) != 5 {
		t.Errorf("expected 5 key points without a bonus, got %d", len(result.KeyPoints))
	}
	if want := "The Consumer Goods sector is outperforming the broader market by 3.5%."; result.KeyPoints[0] != want {
		t.Errorf("KeyPoints[0] = %q, want %q", result.KeyPoints[0], want)
	}
	want := "Our analysis of the Consumer Goods sector indicates a BUY recommendation with 75% confidence. " +
		"The sector is well-positioned for growth in the current market environment. " +
		"Technical indicators suggest a low risk profile for investments in this sector."
	if result.Summary != want {
		t.Errorf("Summary =\n%s\nwant\n%s", result.Summary, want)
	}
	if mfi := result.TechnicalIndicators[1]; mfi.Value != "70" {
		t.Errorf("Money Flow Index = %q, want 70", mfi.Value)
	}
	if result.PriceTarget != nil || result.SupportLevels != nil {
		t.Error("sector analysis has no price levels")
	}
}

func TestSectorAnalyst_DefaultSectorBonus(t *testing.T) {
	a := NewSectorAnalyst(rng.New(3))
	result := a.Analyze(context.Background(), models.AnalysisRequest{SubjectKind: models.SubjectSector})

	if len(result.KeyPoints) != 6 {
		t.Fatalf("technology gets a bonus point, got %d points", len(result.KeyPoints))
	}
	if !strings.Contains(result.KeyPoints[0], "The Technology sector") {
		t.Errorf("KeyPoints[0] = %q", result.KeyPoints[0])
	}
	if !strings.Contains(result.Summary, "Technical indicators, fundamentals, and sentiment analysis all suggest") {
		t.Errorf("Summary = %q", result.Summary)
	}
}

func TestPortfolioAnalyst_Scripted(t *testing.T) {
	a := NewPortfolioAnalyst(rng.NewSequence(0.5))

	result := a.Analyze(context.Background(), models.AnalysisRequest{
		SubjectKind:  models.SubjectPortfolio,
		AnalysisKind: models.AnalysisComprehensive,
	})

	// 0.5 is not above 0.6 nor 0.5, so risk is high
	if result.Recommendation != models.RecommendationHold || result.ConfidenceScore != 77 || result.RiskLevel != models.RiskHigh {
		t.Fatalf("unexpected scenario: %s/%d/%s", result.Recommendation, result.ConfidenceScore, result.RiskLevel)
	}
	if want := "Your portfolio is outperforming the S&P 500 by 2.0% year-to-date."; result.KeyPoints[0] != want {
		t.Errorf("KeyPoints[0] = %q", result.KeyPoints[0])
	}
	if want := "Dividend-paying stocks comprise 30% of your portfolio, providing income stability."; result.KeyPoints[3] != want {
		t.Errorf("KeyPoints[3] = %q", result.KeyPoints[3])
	}
	if want := "Portfolio volatility is above market averages."; result.KeyPoints[4] != want {
		t.Errorf("KeyPoints[4] = %q", result.KeyPoints[4])
	}
	if beta := result.TechnicalIndicators[0]; beta.Signal != models.SignalBearish {
		t.Errorf("high risk beta should be bearish, got %q", beta.Signal)
	}
	if dd := result.TechnicalIndicators[2]; dd.Signal != models.SignalBearish || dd.Value != "12.50%" {
		t.Errorf("Drawdown = %+v", dd)
	}
	if result.SentimentAnalysis.InsiderActivity != "Mixed insider activity across portfolio holdings" {
		t.Errorf("InsiderActivity = %q", result.SentimentAnalysis.InsiderActivity)
	}
	if !strings.HasSuffix(result.Summary, "optimize your holdings for better downside protection.") {
		t.Errorf("Summary = %q", result.Summary)
	}
}

func TestMarketAnalyst_Scripted(t *testing.T) {
	a := NewMarketAnalyst(rng.NewSequence(0.5))

	result := a.Analyze(context.Background(), models.AnalysisRequest{
		SubjectKind:  models.SubjectMarket,
		AnalysisKind: models.AnalysisFundamental,
	})

	want := "Our fundamental analysis of current market conditions indicates a BUY recommendation with 75% confidence. " +
		"The broader market appears poised for continued strength based on fundamental factors. " +
		"Risk is assessed as LOW over the near term."
	if result.Summary != want {
		t.Errorf("Summary =\n%s\nwant\n%s", result.Summary, want)
	}
	if len(result.KeyPoints) != 5 {
		t.Errorf("expected 5 key points, got %d", len(result.KeyPoints))
	}
	if result.TechnicalIndicators != nil || result.SentimentAnalysis != nil {
		t.Error("fundamental analysis should carry metrics only")
	}
	if pe := result.FundamentalMetrics[0]; pe.Name != "S&P 500 P/E Ratio" || pe.Comparison != models.ComparisonInLine {
		t.Errorf("P/E = %+v", pe)
	}
}

func TestAnalysts_Gating(t *testing.T) {
	analysts := []Analyst{
		NewTickerAnalyst(rng.New(1), &fixedQuotes{price: decimal.NewFromInt(50)}),
		NewSectorAnalyst(rng.New(1)),
		NewPortfolioAnalyst(rng.New(1)),
		NewMarketAnalyst(rng.New(1)),
	}
	kinds := []struct {
		kind                            models.AnalysisKind
		technical, fundamental, feeling bool
	}{
		{models.AnalysisTechnical, true, false, false},
		{models.AnalysisFundamental, false, true, false},
		{models.AnalysisSentiment, false, false, true},
		{models.AnalysisComprehensive, true, true, true},
	}

	for _, a := range analysts {
		for _, k := range kinds {
			t.Run(string(a.Subject())+"/"+string(k.kind), func(t *testing.T) {
				req := models.AnalysisRequest{SubjectKind: a.Subject(), AnalysisKind: k.kind}
				result := a.Analyze(context.Background(), req)

				if got := result.TechnicalIndicators != nil; got != k.technical {
					t.Errorf("technical present = %v, want %v", got, k.technical)
				}
				if got := result.FundamentalMetrics != nil; got != k.fundamental {
					t.Errorf("fundamental present = %v, want %v", got, k.fundamental)
				}
				if got := result.SentimentAnalysis != nil; got != k.feeling {
					t.Errorf("sentiment present = %v, want %v", got, k.feeling)
				}
				if result.Summary == "" || len(result.KeyPoints) == 0 {
					t.Error("summary and key points are always present")
				}
			})
		}
	}
}

func TestClassifySentiment(t *testing.T) {
	tests := []struct {
		avg           float64
		positiveAbove float64
		want          models.Sentiment
	}{
		{6.6, 6.5, models.SentimentPositive},
		{6.5, 6.5, models.SentimentNeutral},
		{6.2, 6, models.SentimentPositive},
		{4.5, 6, models.SentimentNeutral},
		{4.49, 6, models.SentimentNegative},
	}
	for _, tt := range tests {
		if got := classifySentiment(tt.avg, tt.positiveAbove); got != tt.want {
			t.Errorf("classifySentiment(%v, %v) = %q, want %q", tt.avg, tt.positiveAbove, got, tt.want)
		}
	}
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"214.46", "$214.46"},
		{"28456.32", "$28,456.32"},
		{"0.545", "$0.55"},
	}
	for _, tt := range tests {
		if got := formatUSD(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("formatUSD(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
