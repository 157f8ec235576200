// Package report renders analyses as Markdown, HTML and terminal text.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"market-lens/models"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// DefaultWidth is the terminal wrap width when none is given
const DefaultWidth = 100

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown lays out a saved analysis as a Markdown document
func Markdown(a models.SavedAnalysis) string {
	return Render(a.Title, a.Request, a.Result)
}

// Render lays out result as Markdown under title
func Render(title string, req models.AnalysisRequest, result models.AnalysisResult) string {
	var b strings.Builder
	r := result

	fmt.Fprintf(&b, "# %s\n\n", title)
	if !r.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "_Generated %s, %s horizon_\n\n", r.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"), req.Timeframe)
	}
	fmt.Fprintf(&b, "**Recommendation:** %s | **Confidence:** %d%% | **Risk:** %s\n\n",
		strings.ToUpper(string(r.Recommendation)), r.ConfidenceScore, r.RiskLevel)
	b.WriteString(r.Summary)
	b.WriteString("\n\n")

	if len(r.KeyPoints) > 0 {
		b.WriteString("## Key points\n\n")
		for _, p := range r.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("\n")
	}

	if r.PriceTarget != nil || len(r.SupportLevels) > 0 || len(r.ResistanceLevels) > 0 {
		b.WriteString("## Price levels\n\n| Level | Price |\n|---|---|\n")
		if r.PriceTarget != nil {
			fmt.Fprintf(&b, "| Target | %s |\n", usd(*r.PriceTarget))
		}
		for i, lvl := range r.SupportLevels {
			fmt.Fprintf(&b, "| Support %d | %s |\n", i+1, usd(lvl))
		}
		for i, lvl := range r.ResistanceLevels {
			fmt.Fprintf(&b, "| Resistance %d | %s |\n", i+1, usd(lvl))
		}
		b.WriteString("\n")
	}

	if len(r.TechnicalIndicators) > 0 {
		b.WriteString("## Technical indicators\n\n| Indicator | Value | Signal |\n|---|---|---|\n")
		for _, ind := range r.TechnicalIndicators {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(ind.Name), cell(ind.Value), ind.Signal)
		}
		b.WriteString("\n")
	}

	if len(r.FundamentalMetrics) > 0 {
		b.WriteString("## Fundamental metrics\n\n| Metric | Value | vs. peers |\n|---|---|---|\n")
		for _, m := range r.FundamentalMetrics {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(m.Name), cell(m.Value), m.Comparison)
		}
		b.WriteString("\n")
	}

	if s := r.SentimentAnalysis; s != nil {
		b.WriteString("## Sentiment\n\n")
		fmt.Fprintf(&b, "- Overall: %s\n", s.Overall)
		fmt.Fprintf(&b, "- News score: %s/10\n", s.NewsScore.StringFixed(2))
		fmt.Fprintf(&b, "- Social score: %s/10\n", s.SocialScore.StringFixed(2))
		if s.InsiderActivity != "" {
			fmt.Fprintf(&b, "- Insider activity: %s\n", s.InsiderActivity)
		}
		b.WriteString("\n")
	}

	if r.Narrative != "" {
		b.WriteString("## Narrative\n\n")
		b.WriteString(r.Narrative)
		b.WriteString("\n")
	}

	return b.String()
}

// HTML converts Markdown to an HTML fragment
func HTML(md string) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return nil, fmt.Errorf("failed to convert markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// Terminal renders Markdown for a terminal. style is a glamour standard
// style name ("dark", "light", "notty", "ascii"); empty selects "notty".
func Terminal(md, style string, width int) (string, error) {
	if style == "" {
		style = "notty"
	}
	if width <= 0 {
		width = DefaultWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

func usd(d decimal.Decimal) string {
	cur := money.GetCurrency(money.USD)
	minor := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, money.USD).Display()
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
