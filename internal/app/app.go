// Package app is the use-case layer shared by the HTTP API and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"market-lens/agents"
	"market-lens/config"
	"market-lens/internal/settings"
	"market-lens/internal/subscription"
	"market-lens/models"
	"market-lens/observability"
	"market-lens/report"
	"market-lens/repository"
	"market-lens/search"
	"market-lens/services"

	"github.com/google/uuid"
)

// MaxBatchSize caps the number of requests in one batch call
const MaxBatchSize = 10

var (
	ErrQueueFull          = errors.New("analysis queue full, too many concurrent requests - try again later")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNotConfigured      = errors.New("component not configured")
	ErrCredentialsInvalid = errors.New("credentials rejected by provider")
)

// Deps are the collaborators App is built from. Store and Accounts default
// to in-memory implementations; Credentials may be nil.
type Deps struct {
	Composer    *agents.Composer
	Data        services.MarketData
	News        services.NewsProvider
	Overview    *services.MarketOverview
	Index       *search.Index
	Store       repository.Store
	Accounts    *subscription.Registry
	Credentials *settings.Store
	Validator   *settings.Validator
}

// App holds application dependencies
type App struct {
	ctx         context.Context
	cfg         *config.Config
	composer    *agents.Composer
	data        services.MarketData
	news        services.NewsProvider
	overview    *services.MarketOverview
	index       *search.Index
	store       repository.Store
	accounts    *subscription.Registry
	creds       *settings.Store
	validator   *settings.Validator
	analysisSem chan struct{}
	latency     time.Duration
	timeout     time.Duration
}

// New creates an App. Missing optional dependencies get defaults.
func New(cfg *config.Config, deps Deps) *App {
	if deps.Store == nil {
		deps.Store = repository.NewMemoryStore()
	}
	if deps.Accounts == nil {
		deps.Accounts = subscription.NewRegistry()
	}
	if deps.Validator == nil {
		deps.Validator = settings.NewValidator()
	}
	if deps.Overview == nil && deps.Data != nil {
		deps.Overview = services.NewMarketOverview(deps.Data)
	}

	limit := cfg.Analysis.ConcurrencyLimit
	if limit < 1 {
		limit = 1
	}

	return &App{
		ctx:         context.Background(),
		cfg:         cfg,
		composer:    deps.Composer,
		data:        deps.Data,
		news:        deps.News,
		overview:    deps.Overview,
		index:       deps.Index,
		store:       deps.Store,
		accounts:    deps.Accounts,
		creds:       deps.Credentials,
		validator:   deps.Validator,
		analysisSem: make(chan struct{}, limit),
		latency:     time.Duration(cfg.Analysis.SimulatedLatencyMs) * time.Millisecond,
		timeout:     time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second,
	}
}

// Startup is called when the app starts
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
}

// Shutdown releases the store and the search index
func (a *App) Shutdown(ctx context.Context) {
	if a.store != nil {
		a.store.Close()
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			observability.Warn("failed to close search index", "error", err)
		}
	}
}

// Store exposes the history store to the refresher
func (a *App) Store() repository.Store {
	return a.store
}

// Overview exposes the market overview to the refresher
func (a *App) Overview() *services.MarketOverview {
	return a.overview
}

// HealthStatus summarizes component availability
type HealthStatus struct {
	Status    string   `json:"status"`
	Store     string   `json:"store"`
	Analysts  []string `json:"analysts"`
	Providers []string `json:"providers"`
	Symbols   int      `json:"symbols"`
}

// Health reports "ok" or "degraded"; a failing store degrades but does not
// stop synthetic analysis
func (a *App) Health(ctx context.Context) HealthStatus {
	h := HealthStatus{Status: "ok", Store: "ok", Providers: []string{"synthetic"}}
	if err := a.store.Health(ctx); err != nil {
		h.Status = "degraded"
		h.Store = err.Error()
	}
	if a.composer != nil {
		h.Analysts = a.composer.Analysts()
	}
	if r, ok := a.data.(*services.ResilientMarketData); ok {
		h.Providers = append(r.Providers(), "synthetic")
	}
	if a.index != nil {
		h.Symbols = a.index.Len()
	}
	return h
}

// Analyze composes one analysis for userID, charges one unit of quota and
// saves the result to history
func (a *App) Analyze(ctx context.Context, userID string, req models.AnalysisRequest) (*models.SavedAnalysis, error) {
	if a.composer == nil {
		return nil, fmt.Errorf("%w: composer", ErrNotConfigured)
	}
	metrics := observability.GetMetrics()
	userID = ownerID(userID)

	req.Normalize()
	if err := req.Validate(); err != nil {
		metrics.RecordAnalysisRejection("invalid")
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	select {
	case a.analysisSem <- struct{}{}:
		defer func() { <-a.analysisSem }()
	default:
		metrics.RecordAnalysisRejection("queue_full")
		return nil, ErrQueueFull
	}

	acct := a.accounts.Get(userID)
	if err := acct.Consume(); err != nil {
		metrics.RecordAnalysisRejection(rejectionReason(err))
		return nil, err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	saved, err := a.analyzeOne(ctx, userID, req)
	if err != nil {
		acct.Refund(1)
		return nil, err
	}
	return saved, nil
}

// AnalyzeBatch runs several requests in order for tiers that include batch
// analysis. Requests are validated and charged up front, all or none.
func (a *App) AnalyzeBatch(ctx context.Context, userID string, reqs []models.AnalysisRequest) ([]models.SavedAnalysis, error) {
	if a.composer == nil {
		return nil, fmt.Errorf("%w: composer", ErrNotConfigured)
	}
	metrics := observability.GetMetrics()
	userID = ownerID(userID)

	if len(reqs) == 0 || len(reqs) > MaxBatchSize {
		metrics.RecordAnalysisRejection("invalid")
		return nil, fmt.Errorf("%w: batch must contain 1 to %d requests, got %d", ErrInvalidRequest, MaxBatchSize, len(reqs))
	}
	for i := range reqs {
		reqs[i].Normalize()
		if err := reqs[i].Validate(); err != nil {
			metrics.RecordAnalysisRejection("invalid")
			return nil, fmt.Errorf("%w: request %d: %v", ErrInvalidRequest, i, err)
		}
	}

	acct := a.accounts.Get(userID)
	if err := acct.Require("batch analysis", func(f models.Features) bool { return f.BatchAnalysis }); err != nil {
		metrics.RecordAnalysisRejection(rejectionReason(err))
		return nil, err
	}

	select {
	case a.analysisSem <- struct{}{}:
		defer func() { <-a.analysisSem }()
	default:
		metrics.RecordAnalysisRejection("queue_full")
		return nil, ErrQueueFull
	}

	if err := acct.ConsumeN(len(reqs)); err != nil {
		metrics.RecordAnalysisRejection(rejectionReason(err))
		return nil, err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	out := make([]models.SavedAnalysis, 0, len(reqs))
	for i, req := range reqs {
		saved, err := a.analyzeOne(ctx, userID, req)
		if err != nil {
			acct.Refund(len(reqs) - i)
			return nil, fmt.Errorf("batch request %d: %w", i, err)
		}
		out = append(out, *saved)
	}

	observability.Info("batch analysis completed", "user_id", userID, "count", len(out))
	return out, nil
}

func (a *App) analyzeOne(ctx context.Context, userID string, req models.AnalysisRequest) (*models.SavedAnalysis, error) {
	if err := a.simulateLatency(ctx); err != nil {
		return nil, err
	}

	result := a.composer.Compose(ctx, req)
	saved := models.NewSavedAnalysis(userID, req, *result)
	saved.CreatedAt = result.GeneratedAt

	if err := a.store.SaveAnalysis(ctx, saved); err != nil {
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}
	return saved, nil
}

// simulateLatency waits the configured delay unless ctx ends first
func (a *App) simulateLatency(ctx context.Context) error {
	if a.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(a.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, subscription.ErrQuotaExceeded):
		return "quota"
	case errors.Is(err, subscription.ErrInactive):
		return "inactive"
	case errors.Is(err, subscription.ErrFeatureDisabled):
		return "tier"
	default:
		return "other"
	}
}

// ListAnalyses returns userID's history, newest first
func (a *App) ListAnalyses(ctx context.Context, userID string, filter models.AnalysisFilter) ([]models.SavedAnalysis, error) {
	filter.UserID = ownerID(userID)
	return a.store.ListAnalyses(ctx, filter)
}

// GetAnalysis returns one of userID's saved analyses. Other users'
// analyses report repository.ErrNotFound.
func (a *App) GetAnalysis(ctx context.Context, userID, id string) (*models.SavedAnalysis, error) {
	parsed, err := ParseUUID(id)
	if err != nil {
		return nil, err
	}
	saved, err := a.store.GetAnalysis(ctx, parsed)
	if err != nil {
		return nil, err
	}
	if saved.UserID != ownerID(userID) {
		return nil, repository.ErrNotFound
	}
	return saved, nil
}

// ToggleBookmark flips the bookmark on one of userID's analyses
func (a *App) ToggleBookmark(ctx context.Context, userID, id string) (bool, error) {
	saved, err := a.GetAnalysis(ctx, userID, id)
	if err != nil {
		return false, err
	}
	return a.store.ToggleBookmark(ctx, saved.ID)
}

func (a *App) DeleteAnalysis(ctx context.Context, userID, id string) error {
	saved, err := a.GetAnalysis(ctx, userID, id)
	if err != nil {
		return err
	}
	return a.store.DeleteAnalysis(ctx, saved.ID)
}

// ReportMarkdown renders a saved analysis as Markdown
func (a *App) ReportMarkdown(ctx context.Context, userID, id string) (string, error) {
	saved, err := a.GetAnalysis(ctx, userID, id)
	if err != nil {
		return "", err
	}
	return report.Markdown(*saved), nil
}

// ReportHTML renders a saved analysis as an HTML fragment
func (a *App) ReportHTML(ctx context.Context, userID, id string) ([]byte, error) {
	md, err := a.ReportMarkdown(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return report.HTML(md)
}

// ownerID maps blank identities to the shared local account, matching the
// subscription registry
func ownerID(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return subscription.DefaultUserID
	}
	return userID
}

// Quote returns a quote; an empty class is inferred from the symbol
func (a *App) Quote(ctx context.Context, symbol string, class models.AssetClass) (models.Quote, error) {
	if a.data == nil {
		return models.Quote{}, fmt.Errorf("%w: market data", ErrNotConfigured)
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return models.Quote{}, fmt.Errorf("%w: symbol is required", ErrInvalidRequest)
	}
	switch class {
	case "":
		class = models.ClassifySymbol(symbol)
	case models.AssetClassStock, models.AssetClassCrypto:
	default:
		return models.Quote{}, fmt.Errorf("%w: unknown asset class %q", ErrInvalidRequest, class)
	}
	return a.data.GetQuote(ctx, symbol, class), nil
}

// Series returns the OHLCV series; an empty timeframe means one month
func (a *App) Series(ctx context.Context, symbol string, tf models.SeriesTimeframe) ([]models.HistoricalDataPoint, error) {
	if a.data == nil {
		return nil, fmt.Errorf("%w: market data", ErrNotConfigured)
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidRequest)
	}
	if tf == "" {
		tf = models.Timeframe1M
	}
	if !tf.Valid() {
		return nil, fmt.Errorf("%w: unknown timeframe %q", ErrInvalidRequest, tf)
	}
	return a.data.GetHistoricalSeries(ctx, symbol, tf), nil
}

func (a *App) News(ctx context.Context, symbol string, limit int) ([]models.NewsItem, error) {
	if a.news == nil {
		return nil, fmt.Errorf("%w: news", ErrNotConfigured)
	}
	return a.news.GetNews(ctx, strings.ToUpper(strings.TrimSpace(symbol)), limit), nil
}

func (a *App) SearchSymbols(q string, limit int) ([]models.SymbolMatch, error) {
	if a.index == nil {
		return nil, fmt.Errorf("%w: search index", ErrNotConfigured)
	}
	return a.index.Search(q, limit)
}

// Indices serves the refresher's cached strip, or builds it live
func (a *App) Indices(ctx context.Context) ([]models.MarketIndex, error) {
	if snap := a.cachedSnapshot(ctx, repository.CacheKeyIndices); snap != nil {
		return snap.Indices, nil
	}
	if a.overview == nil {
		return nil, fmt.Errorf("%w: market overview", ErrNotConfigured)
	}
	return a.overview.Indices(), nil
}

// Watchlist serves the refresher's cached rows, or builds them live
func (a *App) Watchlist(ctx context.Context) ([]models.WatchlistItem, error) {
	if snap := a.cachedSnapshot(ctx, repository.CacheKeyWatchlist); snap != nil {
		return snap.Watchlist, nil
	}
	if a.overview == nil {
		return nil, fmt.Errorf("%w: market overview", ErrNotConfigured)
	}
	return a.overview.Watchlist(ctx, a.cfg.Refresh.Watchlist), nil
}

func (a *App) cachedSnapshot(ctx context.Context, key string) *models.MarketSnapshot {
	snap, err := a.store.GetCachedSnapshot(ctx, key)
	if err != nil {
		observability.Warn("snapshot cache read failed", "key", key, "error", err)
		return nil
	}
	return snap
}

func (a *App) Subscription(userID string) models.SubscriptionStatus {
	return a.accounts.Get(userID).Status()
}

func (a *App) ChangeTier(userID, tier string) (models.SubscriptionStatus, error) {
	t, err := models.ParseTier(tier)
	if err != nil {
		return models.SubscriptionStatus{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	acct := a.accounts.Get(userID)
	if err := acct.ChangeTier(t); err != nil {
		return models.SubscriptionStatus{}, err
	}
	return acct.Status(), nil
}

func (a *App) CancelSubscription(userID string) models.SubscriptionStatus {
	acct := a.accounts.Get(userID)
	acct.Cancel()
	return acct.Status()
}

// Credentials lists provider credentials with secrets masked
func (a *App) Credentials() ([]settings.MaskedCredential, error) {
	if a.creds == nil {
		return nil, fmt.Errorf("%w: credential store", ErrNotConfigured)
	}
	return a.creds.Masked(), nil
}

// SetCredential stores cred, optionally probing the provider first.
// A rejected credential is not stored.
func (a *App) SetCredential(ctx context.Context, cred settings.Credential, validate bool) (*settings.ValidationResult, error) {
	if a.creds == nil {
		return nil, fmt.Errorf("%w: credential store", ErrNotConfigured)
	}
	if !cred.Service.Valid() {
		return nil, fmt.Errorf("%w: unknown service %q", ErrInvalidRequest, cred.Service)
	}
	// blank fields keep their stored value
	if existing := a.creds.Get(cred.Service); existing != nil {
		keep(&cred.APIKey, existing.APIKey)
		keep(&cred.APISecret, existing.APISecret)
		keep(&cred.BaseURL, existing.BaseURL)
		keep(&cred.Region, existing.Region)
		keep(&cred.ModelID, existing.ModelID)
	}

	var result *settings.ValidationResult
	if validate {
		res, err := a.validator.Validate(ctx, &cred)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		if !res.Valid {
			return res, fmt.Errorf("%w: %s", ErrCredentialsInvalid, res.Message)
		}
		result = res
	}

	if err := a.creds.Set(cred); err != nil {
		return nil, err
	}
	observability.Info("provider credential updated", "service", cred.Service, "validated", validate)
	return result, nil
}

func keep(dst *string, stored string) {
	if *dst == "" {
		*dst = stored
	}
}

func (a *App) DeleteCredential(service string) error {
	if a.creds == nil {
		return fmt.Errorf("%w: credential store", ErrNotConfigured)
	}
	svc := settings.ServiceName(service)
	if !svc.Valid() {
		return fmt.Errorf("%w: unknown service %q", ErrInvalidRequest, service)
	}
	return a.creds.Delete(svc)
}

// ParseUUID parses a string UUID
func ParseUUID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid UUID: %v", ErrInvalidRequest, err)
	}
	return parsed, nil
}

// AnalysisSemCapacity returns the capacity of the analysis semaphore (for testing)
func (a *App) AnalysisSemCapacity() int {
	return cap(a.analysisSem)
}
