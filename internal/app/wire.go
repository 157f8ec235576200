package app

import (
	"context"
	"fmt"
	"time"

	"market-lens/agents"
	"market-lens/config"
	"market-lens/internal/rng"
	"market-lens/internal/settings"
	"market-lens/observability"
	"market-lens/repository"
	"market-lens/search"
	"market-lens/services"
)

// FromConfig wires an App from cfg. Stored credentials fill in whatever the
// environment left blank; every live provider is optional and the store
// falls back to memory when none is configured.
func FromConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	creds, err := settings.NewStore(cfg.Settings.Dir, cfg.Settings.Passphrase)
	if err != nil {
		observability.Warn("credential store unavailable", "error", err)
		creds = nil
	} else {
		creds.ApplyTo(cfg)
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	idx, err := search.NewDefaultIndex()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build symbol index: %w", err)
	}

	services.SetBreakerRegistry(services.NewCircuitBreakerRegistry(BreakerConfig(cfg)))

	src := rng.New(cfg.Analysis.Seed)
	data := NewMarketData(cfg, src)
	composer := agents.NewComposer(src, data)
	if narrator := NewNarrator(ctx, cfg); narrator != nil {
		composer.SetNarrator(narrator)
	}

	return New(cfg, Deps{
		Composer:    composer,
		Data:        data,
		News:        services.NewNewsFixtures(),
		Index:       idx,
		Store:       store,
		Credentials: creds,
	}), nil
}

// BreakerConfig converts the breaker section of cfg
func BreakerConfig(cfg *config.Config) services.CircuitBreakerConfig {
	b := cfg.Breaker
	return services.CircuitBreakerConfig{
		MinRequests:  uint32(b.MinRequests),
		FailureRatio: b.FailureRatio,
		Window:       time.Duration(b.WindowSeconds) * time.Second,
		OpenFor:      time.Duration(b.OpenSeconds) * time.Second,
		HalfOpenMax:  uint32(max(b.HalfOpenRequests, 1)),
	}
}

// OpenStore picks postgres, then sqlite, then memory
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch {
	case cfg.HasDatabase():
		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		store, err := repository.NewPostgresStore(connCtx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		observability.Info("using postgres history store")
		return store, nil
	case cfg.HasSQLite():
		store, err := repository.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.Database.SQLitePath, err)
		}
		return store, nil
	default:
		observability.Info("no database configured, history kept in memory")
		return repository.NewMemoryStore(), nil
	}
}

// NewMarketData returns the synthetic generator, fronted by whichever live
// providers have credentials. Alpaca is tried before Alpha Vantage.
func NewMarketData(cfg *config.Config, src rng.Source) services.MarketData {
	synthetic := services.NewSyntheticMarketData(src)

	var live []services.LiveMarketData
	if cfg.HasAlpaca() {
		live = append(live, services.NewAlpacaService(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL))
	}
	if cfg.HasAlphaVantage() {
		live = append(live, services.NewAlphaVantageService(cfg.AlphaVantage.APIKey, cfg.AlphaVantage.BaseURL))
	}
	if len(live) == 0 {
		return synthetic
	}

	resilient := services.NewResilientMarketData(synthetic, live...)
	observability.Info("live market data enabled", "providers", resilient.Providers())
	return resilient
}

// NewNarrator returns nil unless the narrator is enabled and Bedrock is
// reachable
func NewNarrator(ctx context.Context, cfg *config.Config) *agents.Narrator {
	if !cfg.HasBedrock() {
		return nil
	}
	llm, err := services.NewBedrockService(ctx, cfg.Bedrock.Region, cfg.Bedrock.ModelID,
		cfg.Bedrock.MaxTokens, cfg.Bedrock.AnthropicVersion)
	if err != nil {
		observability.Warn("narrator disabled", "error", err)
		return nil
	}
	ttl := time.Duration(cfg.Analysis.HealthCacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = agents.DefaultHealthCacheTTL
	}
	observability.Info("narrator enabled", "model", cfg.Bedrock.ModelID)
	return agents.NewNarratorWithCacheTTL(llm, ttl)
}
