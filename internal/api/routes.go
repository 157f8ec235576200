package api

import (
	"net/http"
	"time"

	"market-lens/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(cfg.HTTP.RequestTimeoutSec) * time.Second))
	r.Use(CORSMiddleware(cfg.HTTP.CORSAllowedOrigins))
	r.Use(MetricsMiddleware)

	// Root routes
	r.Get("/", h.HandleIndex)
	r.Get("/index.html", h.HandleIndex)

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)

		// Analysis
		r.Post("/analyze", h.HandleAnalyze)
		r.Post("/analyze/batch", h.HandleAnalyzeBatch)

		// Market data
		r.Get("/quotes/{symbol}", h.HandleGetQuote)
		r.Get("/series/{symbol}", h.HandleGetSeries)
		r.Get("/news", h.HandleGetNews)
		r.Get("/symbols/search", h.HandleSearchSymbols)
		r.Route("/market", func(r chi.Router) {
			r.Get("/indices", h.HandleGetIndices)
			r.Get("/watchlist", h.HandleGetWatchlist)
		})

		// History
		r.Route("/analyses", func(r chi.Router) {
			r.Get("/", h.HandleGetAnalyses)
			r.Get("/{id}", h.HandleGetAnalysis)
			r.Get("/{id}/report", h.HandleGetReport)
			r.Post("/{id}/bookmark", h.HandleToggleBookmark)
			r.Delete("/{id}", h.HandleDeleteAnalysis)
		})

		// Subscription
		r.Get("/subscription", h.HandleGetSubscription)
		r.Put("/subscription", h.HandleChangeTier)
		r.Delete("/subscription", h.HandleCancelSubscription)

		// Provider credentials
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.HandleGetSettings)
			r.Put("/keys", h.HandleUpdateAPIKey)
			r.Delete("/keys/{service}", h.HandleDeleteAPIKey)
		})
	})

	return r
}

// CORSMiddleware returns CORS middleware with the specified allowed origins
func CORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+UserHeader+", HX-Request")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
