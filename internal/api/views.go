package api

import (
	"context"
	"fmt"
	"io"

	"market-lens/models"

	"github.com/a-h/templ"
)

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
</head>
<body>
`

const pageFoot = "</body>\n</html>\n"

// page wraps body in the shared document shell
func page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, pageHead, templ.EscapeString(title)); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, pageFoot)
		return err
	})
}

// IndexPage lists the index strip and the API surface
func IndexPage(indices []models.MarketIndex, sub models.SubscriptionStatus) templ.Component {
	return page("Market Lens", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		io.WriteString(w, "<h1>Market Lens</h1>\n")
		fmt.Fprintf(w, "<p>Plan: <strong>%s</strong>, %d analyses remaining</p>\n",
			templ.EscapeString(string(sub.Tier)), sub.RemainingAnalyses)

		if err := IndexStrip(indices).Render(ctx, w); err != nil {
			return err
		}

		io.WriteString(w, "<h2>Endpoints</h2>\n<ul>\n")
		for _, ep := range endpoints {
			fmt.Fprintf(w, "<li><code>%s</code></li>\n", templ.EscapeString(ep))
		}
		_, err := io.WriteString(w, "</ul>\n")
		return err
	}))
}

// IndexStrip renders the market index table; it doubles as the HTMX
// fragment for /api/market/indices
func IndexStrip(indices []models.MarketIndex) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		io.WriteString(w, `<table id="indices" hx-get="/api/market/indices" hx-trigger="every 60s" hx-swap="outerHTML">`+"\n")
		io.WriteString(w, "<tr><th>Index</th><th>Value</th><th>Change</th></tr>\n")
		for _, idx := range indices {
			fmt.Fprintf(w, "<tr><td>%s</td><td>%s</td><td>%s%%</td></tr>\n",
				templ.EscapeString(idx.Name),
				idx.Value.StringFixed(2),
				idx.ChangePercent.StringFixed(2))
		}
		_, err := io.WriteString(w, "</table>\n")
		return err
	})
}

// ReportPage embeds an already-rendered report fragment
func ReportPage(title string, fragment []byte) templ.Component {
	return page(title, templ.Raw(string(fragment)))
}

// ErrorState renders an inline error for HTMX swaps
func ErrorState(message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div class="error" role="alert">%s</div>`, templ.EscapeString(message))
		return err
	})
}

var endpoints = []string{
	"POST /api/analyze",
	"POST /api/analyze/batch",
	"GET /api/quotes/{symbol}",
	"GET /api/series/{symbol}",
	"GET /api/news",
	"GET /api/symbols/search",
	"GET /api/market/indices",
	"GET /api/market/watchlist",
	"GET /api/analyses",
	"GET /api/analyses/{id}/report",
	"GET /api/subscription",
	"GET /api/settings",
	"GET /api/health",
	"GET /metrics",
}
