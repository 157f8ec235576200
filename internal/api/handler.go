package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"market-lens/config"
	"market-lens/internal/app"
	"market-lens/internal/settings"
	"market-lens/internal/subscription"
	"market-lens/models"
	"market-lens/observability"
	"market-lens/repository"
	"market-lens/search"
	"market-lens/services"

	"github.com/go-chi/chi/v5"
)

// UserHeader selects the subscription account and history owner
const UserHeader = "X-User-ID"

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.-]+$`)

// Handler handles HTTP API requests
type Handler struct {
	app *app.App
	cfg *config.Config
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{app: application, cfg: cfg}
}

// HandleIndex serves the main application page using templ
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	indices, err := h.app.Indices(r.Context())
	if err != nil {
		observability.WithContext(r.Context()).Warn("index page without indices", "error", err)
	}
	h.htmlResponse(w, IndexPage(indices, h.app.Subscription(userID(r))), r)
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := h.app.Health(r.Context())
	status := map[string]interface{}{
		"status":    health.Status,
		"store":     health.Store,
		"analysts":  health.Analysts,
		"providers": health.Providers,
		"symbols":   health.Symbols,
	}

	breakers := services.BreakerRegistry()
	status["circuit_breakers"] = breakers.Status()

	// An open breaker means a live provider is being skipped
	if open := breakers.Open(); len(open) > 0 {
		status["status"] = "degraded"
		status["skipped_providers"] = open
	}

	h.jsonResponse(w, status)
}

// HandleAnalyze composes and saves one analysis
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	saved, err := h.app.Analyze(r.Context(), userID(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, saved)
}

// HandleAnalyzeBatch composes up to app.MaxBatchSize analyses in one call
func (h *Handler) HandleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []models.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		h.jsonError(w, "Invalid JSON request, expected an array of analysis requests", http.StatusBadRequest)
		return
	}

	saved, err := h.app.AnalyzeBatch(r.Context(), userID(r), reqs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, map[string]interface{}{
		"analyses": saved,
		"count":    len(saved),
	})
}

// HandleGetQuote returns a quote for the symbol; ?class= overrides inference
func (h *Handler) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	if err := h.ValidateSymbol(symbol); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	quote, err := h.app.Quote(r.Context(), symbol, models.AssetClass(r.URL.Query().Get("class")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, quote)
}

// HandleGetSeries returns OHLCV points for ?timeframe= (default 1M)
func (h *Handler) HandleGetSeries(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	if err := h.ValidateSymbol(symbol); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tf := models.SeriesTimeframe(strings.ToLower(r.URL.Query().Get("timeframe")))
	points, err := h.app.Series(r.Context(), symbol, tf)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, points)
}

// HandleGetNews returns headlines, optionally about one symbol
func (h *Handler) HandleGetNews(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	if symbol != "" {
		if err := h.ValidateSymbol(symbol); err != nil {
			h.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	items, err := h.app.News(r.Context(), symbol, h.ParseLimitParam(r, 10))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, items)
}

// HandleSearchSymbols ranks directory entries against ?q=
func (h *Handler) HandleSearchSymbols(w http.ResponseWriter, r *http.Request) {
	matches, err := h.app.SearchSymbols(r.URL.Query().Get("q"), h.ParseLimitParam(r, search.DefaultLimit))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, matches)
}

// HandleGetIndices returns the index strip
func (h *Handler) HandleGetIndices(w http.ResponseWriter, r *http.Request) {
	indices, err := h.app.Indices(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if isHTMXRequest(r) {
		h.htmlResponse(w, IndexStrip(indices), r)
		return
	}
	h.jsonResponse(w, indices)
}

// HandleGetWatchlist returns the configured watchlist rows
func (h *Handler) HandleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Watchlist(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, items)
}

// HandleGetAnalyses lists the caller's history
func (h *Handler) HandleGetAnalyses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.AnalysisFilter{
		Limit: h.ParseLimitParam(r, 50),
	}
	if subject := q.Get("subject"); subject != "" {
		filter.SubjectKind = models.SubjectKind(strings.ToLower(subject))
		if !filter.SubjectKind.Valid() {
			h.jsonError(w, fmt.Sprintf("unknown subject %q", subject), http.StatusBadRequest)
			return
		}
	}
	if b := q.Get("bookmarked"); b != "" {
		bookmarked, err := strconv.ParseBool(b)
		if err != nil {
			h.jsonError(w, "bookmarked must be true or false", http.StatusBadRequest)
			return
		}
		filter.BookmarkedOnly = bookmarked
	}

	analyses, err := h.app.ListAnalyses(r.Context(), userID(r), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, map[string]interface{}{
		"analyses": analyses,
		"count":    len(analyses),
	})
}

// HandleGetAnalysis returns one saved analysis
func (h *Handler) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	saved, err := h.app.GetAnalysis(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, saved)
}

// HandleGetReport renders a saved analysis as HTML, or Markdown with
// ?format=markdown
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	uid := userID(r)

	if r.URL.Query().Get("format") == "markdown" {
		md, err := h.app.ReportMarkdown(r.Context(), uid, id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		io.WriteString(w, md)
		return
	}

	saved, err := h.app.GetAnalysis(r.Context(), uid, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	fragment, err := h.app.ReportHTML(r.Context(), uid, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if isHTMXRequest(r) {
		w.Write(fragment)
		return
	}
	ReportPage(saved.Title, fragment).Render(r.Context(), w)
}

// HandleToggleBookmark flips the bookmark flag
func (h *Handler) HandleToggleBookmark(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bookmarked, err := h.app.ToggleBookmark(r.Context(), userID(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, map[string]interface{}{"id": id, "bookmarked": bookmarked})
}

// HandleDeleteAnalysis removes a saved analysis
func (h *Handler) HandleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.app.DeleteAnalysis(r.Context(), userID(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, StatusResponse{Status: "deleted", Message: id})
}

// HandleGetSubscription returns the caller's plan and remaining quota
func (h *Handler) HandleGetSubscription(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.Subscription(userID(r)))
}

// TierRequest changes the caller's plan
type TierRequest struct {
	Tier string `json:"tier"`
}

// HandleChangeTier moves the caller to a new plan and resets the quota
func (h *Handler) HandleChangeTier(w http.ResponseWriter, r *http.Request) {
	var req TierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}
	status, err := h.app.ChangeTier(userID(r), req.Tier)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, status)
}

// HandleCancelSubscription deactivates the caller's plan
func (h *Handler) HandleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.CancelSubscription(userID(r)))
}

// HandleGetSettings returns masked provider credentials
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	masked, err := h.app.Credentials()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, masked)
}

// CredentialRequest updates one provider; blank fields keep their value
type CredentialRequest struct {
	settings.Credential
	Validate bool `json:"validate"`
}

// HandleUpdateAPIKey stores a provider credential, probing it first when
// validate is set
func (h *Handler) HandleUpdateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			h.jsonError(w, "Failed to parse form", http.StatusBadRequest)
			return
		}
		req.Service = settings.ServiceName(r.FormValue("service"))
		req.APIKey = r.FormValue("api_key")
		req.APISecret = r.FormValue("api_secret")
		req.BaseURL = r.FormValue("base_url")
		req.Region = r.FormValue("region")
		req.ModelID = r.FormValue("model_id")
		req.Validate, _ = strconv.ParseBool(r.FormValue("validate"))
	}

	if req.Service == "" {
		h.jsonError(w, "Service name is required", http.StatusBadRequest)
		return
	}

	result, err := h.app.SetCredential(r.Context(), req.Credential, req.Validate)
	if err != nil {
		if errors.Is(err, app.ErrCredentialsInvalid) && result != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":      err.Error(),
				"validation": result,
			})
			return
		}
		h.writeError(w, r, err)
		return
	}

	resp := map[string]interface{}{"status": "saved", "service": req.Service}
	if result != nil {
		resp["validation"] = result
	}
	h.jsonResponse(w, resp)
}

// HandleDeleteAPIKey removes a stored provider credential
func (h *Handler) HandleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	if service == "" {
		h.jsonError(w, "Service name is required", http.StatusBadRequest)
		return
	}
	if err := h.app.DeleteCredential(service); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonResponse(w, StatusResponse{Status: "deleted", Message: service})
}

// Helper functions

// userID reads the caller identity; blank selects the shared local account
func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

// isHTMXRequest checks if the request is from HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// templComponent matches the templ.Component interface
type templComponent interface {
	Render(ctx context.Context, w io.Writer) error
}

// htmlResponse renders a templ component as HTML
func (h *Handler) htmlResponse(w http.ResponseWriter, component templComponent, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		observability.WithContext(r.Context()).Error("failed to render page", "error", err)
	}
}

// htmlError renders an error state as HTML
func (h *Handler) htmlError(w http.ResponseWriter, message string, status int, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	ErrorState(message).Render(r.Context(), w)
}

// ValidateSymbol validates a ticker or crypto pair
func (h *Handler) ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	if len(symbol) > 10 {
		return fmt.Errorf("symbol too long (max 10 characters)")
	}

	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format (alphanumeric, dots, and dashes only)")
	}

	return nil
}

// ParseLimitParam parses the limit query parameter
func (h *Handler) ParseLimitParam(r *http.Request, defaultLimit int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return l
		}
	}
	return defaultLimit
}

// statusFor maps use-case errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrInvalidRequest), errors.Is(err, settings.ErrUnknownService):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, subscription.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, subscription.ErrInactive), errors.Is(err, subscription.ErrFeatureDisabled):
		return http.StatusForbidden
	case errors.Is(err, app.ErrCredentialsInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrQueueFull), errors.Is(err, app.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		observability.WithContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	if errors.Is(err, app.ErrQueueFull) {
		w.Header().Set("Retry-After", "1")
	}
	if isHTMXRequest(r) {
		h.htmlError(w, err.Error(), status, r)
		return
	}
	h.jsonError(w, err.Error(), status)
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// StatusResponse represents a status response
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
