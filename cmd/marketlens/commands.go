package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"market-lens/models"
	"market-lens/report"

	"github.com/google/subcommands"
)

type analyzeCmd struct {
	subject   string
	ticker    string
	sector    string
	timeframe string
	kind      string
	user      string
	markdown  bool
}

func (*analyzeCmd) Name() string     { return "analyze" }
func (*analyzeCmd) Synopsis() string { return "compose and save an analysis report" }
func (*analyzeCmd) Usage() string {
	return `marketlens analyze [-subject ticker|sector|portfolio|market] [-t <ticker>] [-sector <slug>] [-timeframe 1d|1w|1m|3m|1y] [-kind <kind>]

  Composes an analysis, saves it to history and prints the report.
  A bare argument is taken as the ticker.
`
}

func (c *analyzeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.subject, "subject", "", "subject kind (defaults to ticker when a ticker is given, market otherwise)")
	f.StringVar(&c.ticker, "t", "", "ticker symbol")
	f.StringVar(&c.sector, "sector", "", "sector slug, e.g. technology")
	f.StringVar(&c.timeframe, "timeframe", "", "analysis horizon (default 1m)")
	f.StringVar(&c.kind, "kind", "", "technical, fundamental, sentiment or comprehensive (default)")
	f.StringVar(&c.user, "user", "", "account charged for the analysis")
	f.BoolVar(&c.markdown, "md", false, "print raw Markdown")
}

func (c *analyzeCmd) request(args []string) models.AnalysisRequest {
	req := models.AnalysisRequest{
		SubjectKind:  models.SubjectKind(strings.ToLower(c.subject)),
		Ticker:       c.ticker,
		Sector:       c.sector,
		Timeframe:    models.AnalysisTimeframe(strings.ToLower(c.timeframe)),
		AnalysisKind: models.AnalysisKind(strings.ToLower(c.kind)),
	}
	if req.Ticker == "" && len(args) > 0 {
		req.Ticker = args[0]
	}
	if req.SubjectKind == "" {
		switch {
		case req.Ticker != "":
			req.SubjectKind = models.SubjectTicker
		case req.Sector != "":
			req.SubjectKind = models.SubjectSector
		default:
			req.SubjectKind = models.SubjectMarket
		}
	}
	return req
}

func (c *analyzeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Shutdown(ctx)

	saved, err := a.Analyze(ctx, c.user, c.request(f.Args()))
	if err != nil {
		return fail(err)
	}

	md := report.Markdown(*saved)
	if c.markdown {
		fmt.Print(md)
	} else {
		printMarkdown(md)
	}
	fmt.Fprintf(os.Stderr, "saved as %s\n", saved.ID)
	return subcommands.ExitSuccess
}

type quoteCmd struct {
	class string
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "display current quotes" }
func (*quoteCmd) Usage() string {
	return `marketlens quote [-class stock|crypto] <symbol>...
`
}

func (c *quoteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.class, "class", "", "asset class (inferred from the symbol by default)")
}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "at least one symbol is required")
		return subcommands.ExitUsageError
	}
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Shutdown(ctx)

	quotes := make([]models.Quote, 0, f.NArg())
	for _, sym := range f.Args() {
		q, err := a.Quote(ctx, sym, models.AssetClass(c.class))
		if err != nil {
			return fail(err)
		}
		quotes = append(quotes, q)
	}
	printMarkdown(quotesMarkdown(quotes))
	return subcommands.ExitSuccess
}

type seriesCmd struct {
	timeframe string
}

func (*seriesCmd) Name() string     { return "series" }
func (*seriesCmd) Synopsis() string { return "display an OHLCV price series" }
func (*seriesCmd) Usage() string {
	return `marketlens series [-timeframe 1d|5d|1m|3m|1y] <symbol>
`
}

func (c *seriesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.timeframe, "timeframe", string(models.Timeframe1M), "series horizon")
}

func (c *seriesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "exactly one symbol is required")
		return subcommands.ExitUsageError
	}
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Shutdown(ctx)

	tf := models.SeriesTimeframe(strings.ToLower(c.timeframe))
	points, err := a.Series(ctx, f.Arg(0), tf)
	if err != nil {
		return fail(err)
	}
	printMarkdown(seriesMarkdown(strings.ToUpper(f.Arg(0)), tf, points))
	return subcommands.ExitSuccess
}

type newsCmd struct {
	limit int
}

func (*newsCmd) Name() string     { return "news" }
func (*newsCmd) Synopsis() string { return "display recent headlines" }
func (*newsCmd) Usage() string {
	return `marketlens news [-n <count>] [symbol]
`
}

func (c *newsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 10, "number of headlines")
}

func (c *newsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Shutdown(ctx)

	items, err := a.News(ctx, f.Arg(0), c.limit)
	if err != nil {
		return fail(err)
	}
	printMarkdown(newsMarkdown(items))
	return subcommands.ExitSuccess
}

type searchCmd struct {
	limit int
}

func (*searchCmd) Name() string     { return "search" }
func (*searchCmd) Synopsis() string { return "find symbols by ticker or company name" }
func (*searchCmd) Usage() string {
	return `marketlens search [-n <count>] <query>
`
}

func (c *searchCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 10, "maximum number of matches")
}

func (c *searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "a query is required")
		return subcommands.ExitUsageError
	}
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Shutdown(ctx)

	matches, err := a.SearchSymbols(strings.Join(f.Args(), " "), c.limit)
	if err != nil {
		return fail(err)
	}
	printMarkdown(searchMarkdown(matches))
	return subcommands.ExitSuccess
}

type marketCmd struct{}

func (*marketCmd) Name() string     { return "market" }
func (*marketCmd) Synopsis() string { return "display the index strip and watchlist" }
func (*marketCmd) Usage() string {
	return `marketlens market
`
}

func (*marketCmd) SetFlags(*flag.FlagSet) {}

func (*marketCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Shutdown(ctx)

	indices, err := a.Indices(ctx)
	if err != nil {
		return fail(err)
	}
	watchlist, err := a.Watchlist(ctx)
	if err != nil {
		return fail(err)
	}
	printMarkdown(marketMarkdown(indices, watchlist))
	return subcommands.ExitSuccess
}
