package main

import (
	"fmt"
	"strings"

	"market-lens/models"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

func quotesMarkdown(quotes []models.Quote) string {
	var b strings.Builder
	b.WriteString("| Symbol | Name | Price | Change | Volume | Market cap |\n")
	b.WriteString("|---|---|---:|---:|---:|---:|\n")
	for _, q := range quotes {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			q.Symbol, cell(q.Name), price(q.Price), percent(q.ChangePercent),
			humanize.Comma(q.Volume), marketCap(q.MarketCap))
	}
	return b.String()
}

func seriesMarkdown(symbol string, tf models.SeriesTimeframe, points []models.HistoricalDataPoint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s, %s\n\n", symbol, tf)
	b.WriteString("| Date | Open | High | Low | Close | Volume |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")

	layout := "2006-01-02"
	if tf == models.Timeframe1D || tf == models.Timeframe5D {
		layout = "2006-01-02 15:04"
	}
	for _, p := range points {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			p.Date.Format(layout), p.Open.StringFixed(2), p.High.StringFixed(2),
			p.Low.StringFixed(2), p.Close.StringFixed(2), humanize.Comma(p.Volume))
	}
	return b.String()
}

func newsMarkdown(items []models.NewsItem) string {
	if len(items) == 0 {
		return "_No headlines._\n"
	}
	var b strings.Builder
	for _, n := range items {
		fmt.Fprintf(&b, "- **%s** (%s, %s)", n.Title, n.Source, humanize.Time(n.PublishedAt))
		if n.Sentiment != "" {
			fmt.Fprintf(&b, " _%s_", n.Sentiment)
		}
		b.WriteString("\n")
		if n.Summary != "" {
			fmt.Fprintf(&b, "  %s\n", n.Summary)
		}
	}
	return b.String()
}

func searchMarkdown(matches []models.SymbolMatch) string {
	if len(matches) == 0 {
		return "_No matching symbols._\n"
	}
	var b strings.Builder
	b.WriteString("| Symbol | Name | Class |\n|---|---|---|\n")
	for _, m := range matches {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", m.Symbol, cell(m.Name), m.AssetClass)
	}
	return b.String()
}

func marketMarkdown(indices []models.MarketIndex, watchlist []models.WatchlistItem) string {
	var b strings.Builder
	b.WriteString("## Indices\n\n| Index | Value | Change |\n|---|---:|---:|\n")
	for _, idx := range indices {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(idx.Name), humanize.FormatFloat("#,###.##", idx.Value.InexactFloat64()), percent(idx.ChangePercent))
	}
	b.WriteString("\n## Watchlist\n\n| Symbol | Price | Change | Volume |\n|---|---:|---:|---:|\n")
	for _, w := range watchlist {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", w.Symbol, price(w.Price), percent(w.ChangePercent), w.Volume)
	}
	return b.String()
}

func price(d decimal.Decimal) string {
	return "$" + humanize.FormatFloat("#,###.##", d.InexactFloat64())
}

func percent(d decimal.Decimal) string {
	s := d.StringFixed(2) + "%"
	if d.IsPositive() {
		return "+" + s
	}
	return s
}

// marketCap abbreviates to billions or trillions; zero means not reported
func marketCap(d decimal.Decimal) string {
	if d.IsZero() {
		return "-"
	}
	f := d.InexactFloat64()
	switch {
	case f >= 1e12:
		return fmt.Sprintf("$%sT", humanize.CommafWithDigits(f/1e12, 2))
	case f >= 1e9:
		return fmt.Sprintf("$%sB", humanize.CommafWithDigits(f/1e9, 2))
	default:
		return "$" + humanize.Comma(d.IntPart())
	}
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
