// Command marketlens runs analyses and market lookups from the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path"

	"market-lens/config"
	"market-lens/internal/app"
	"market-lens/observability"
	"market-lens/report"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"
)

var (
	style   = flag.String("style", "auto", "glamour style for rendered output (auto, dark, light, notty)")
	width   = flag.Int("width", report.DefaultWidth, "word wrap width")
	verbose = flag.Bool("v", false, "log at info level")
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&analyzeCmd{}, "analysis")
	commander.Register(&quoteCmd{}, "market data")
	commander.Register(&seriesCmd{}, "market data")
	commander.Register(&newsCmd{}, "market data")
	commander.Register(&searchCmd{}, "market data")
	commander.Register(&marketCmd{}, "market data")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// openApp loads .env and config and wires the application quietly
func openApp(ctx context.Context) (*app.App, error) {
	_ = godotenv.Load()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	observability.InitLoggerWithLevel(false, level)
	observability.InitMetrics()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return app.FromConfig(ctx, cfg)
}

// printMarkdown renders md for the terminal, falling back to plain text
func printMarkdown(md string) {
	out, err := report.Terminal(md, *style, *width)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		out = md
	}
	fmt.Print(out)
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}
