package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"market-lens/models"
	"market-lens/observability"
	"market-lens/services"
)

const narratorSystemPrompt = `You are a financial commentator writing for retail investors.
You will be given a structured market analysis: a recommendation, a confidence
score, a risk level, key points and optional indicators, metrics and sentiment.

Write one short paragraph (three to five sentences) that explains the analysis
in plain language. Do not invent numbers that are not in the input. Do not give
personalised financial advice. Respond with the paragraph only.`

// defaultNarratorTimeout bounds a single narration call
const defaultNarratorTimeout = 20 * time.Second

// Narrator adds an LLM-written paragraph to a composed analysis. It is
// optional: any failure leaves the analysis as composed.
type Narrator struct {
	llm         services.LLMService
	healthCache *HealthCache
	timeout     time.Duration
}

// NewNarrator creates a Narrator with the default health cache TTL
func NewNarrator(llm services.LLMService) *Narrator {
	return NewNarratorWithCacheTTL(llm, DefaultHealthCacheTTL)
}

// NewNarratorWithCacheTTL creates a Narrator whose failures suppress further
// calls for ttl
func NewNarratorWithCacheTTL(llm services.LLMService, ttl time.Duration) *Narrator {
	return &Narrator{
		llm:         llm,
		healthCache: NewHealthCache(ttl),
		timeout:     defaultNarratorTimeout,
	}
}

// Name returns the agent name
func (n *Narrator) Name() string {
	return "Narrator"
}

// IsAvailable reports whether the narrator will attempt a call
func (n *Narrator) IsAvailable() bool {
	return n.llm != nil && n.healthCache.Allow()
}

// InvalidateHealthCache forgets a cached failure
func (n *Narrator) InvalidateHealthCache() {
	n.healthCache.Invalidate()
}

// Narrate sets result.Narrative. Errors are logged and swallowed.
func (n *Narrator) Narrate(ctx context.Context, req models.AnalysisRequest, result *models.AnalysisResult) {
	if result == nil || !n.IsAvailable() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	text, err := n.llm.InvokeWithPrompt(ctx, narratorSystemPrompt, buildNarratorPrompt(req, result))
	n.healthCache.Record(err)
	if err != nil {
		observability.WithSubject(string(req.SubjectKind), string(req.AnalysisKind)).Warn("narration failed",
			"error", err)
		return
	}

	result.Narrative = strings.TrimSpace(text)
}

func buildNarratorPrompt(req models.AnalysisRequest, result *models.AnalysisResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Subject: %s\n", req.Title())
	fmt.Fprintf(&sb, "Timeframe: %s\n", req.Timeframe)
	fmt.Fprintf(&sb, "Recommendation: %s (confidence %d%%, risk %s)\n",
		upper(result.Recommendation), result.ConfidenceScore, result.RiskLevel)
	if result.PriceTarget != nil {
		fmt.Fprintf(&sb, "Price target: %s\n", formatUSD(*result.PriceTarget))
	}

	sb.WriteString("\nKey points:\n")
	for _, p := range result.KeyPoints {
		fmt.Fprintf(&sb, "- %s\n", p)
	}

	if len(result.TechnicalIndicators) > 0 {
		sb.WriteString("\nTechnical indicators:\n")
		for _, ind := range result.TechnicalIndicators {
			fmt.Fprintf(&sb, "- %s: %s (%s)\n", ind.Name, ind.Value, ind.Signal)
		}
	}
	if len(result.FundamentalMetrics) > 0 {
		sb.WriteString("\nFundamental metrics:\n")
		for _, m := range result.FundamentalMetrics {
			fmt.Fprintf(&sb, "- %s: %s (%s peers)\n", m.Name, m.Value, m.Comparison)
		}
	}
	if s := result.SentimentAnalysis; s != nil {
		fmt.Fprintf(&sb, "\nSentiment: %s (news %s/10, social %s/10). %s.\n",
			s.Overall, s.NewsScore.StringFixed(1), s.SocialScore.StringFixed(1), s.InsiderActivity)
	}

	sb.WriteString("\nSummary: ")
	sb.WriteString(result.Summary)
	return sb.String()
}
