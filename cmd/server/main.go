// Command server runs the Market Lens HTTP API with the cron refresher.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-lens/config"
	"market-lens/internal/api"
	"market-lens/internal/app"
	"market-lens/internal/refresher"
	"market-lens/observability"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLoggerWithLevel(cfg.Log.Production, observability.ParseLevel(cfg.Log.Level))
	observability.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.FromConfig(ctx, cfg)
	if err != nil {
		observability.Fatal("failed to initialize application", "error", err)
	}
	application.Startup(ctx)

	refresh := refresher.New(application.Overview(), application.Store(), cfg.Refresh.Watchlist)
	if err := refresh.Register(cfg.Refresh); err != nil {
		observability.Fatal("failed to schedule refresher", "error", err)
	}
	refresh.Start(ctx)

	handler := api.NewHandler(application, cfg)
	router := api.NewRouter(handler, cfg)

	timeout := time.Duration(cfg.HTTP.RequestTimeoutSec) * time.Second
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: timeout + 5*time.Second,
	}

	go func() {
		observability.Info("starting server", "port", cfg.HTTP.Port, "url", fmt.Sprintf("http://localhost:%d", cfg.HTTP.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observability.Fatal("server error", "error", err)
		}
	}()

	<-ctx.Done()
	observability.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("server forced to shutdown", "error", err)
	}
	refresh.Stop()
	application.Shutdown(shutdownCtx)
	observability.Info("server stopped")
}
