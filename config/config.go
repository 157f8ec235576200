package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names the environment variable that points at an optional YAML config file
const ConfigPathEnv = "MARKET_LENS_CONFIG"

// Config holds all application configuration
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Breaker  BreakerConfig  `yaml:"breaker"`

	// Optional live providers
	AlphaVantage AlphaVantageConfig `yaml:"alpha_vantage"`
	Alpaca       AlpacaConfig       `yaml:"alpaca"`
	Bedrock      BedrockConfig      `yaml:"bedrock"`

	Database DatabaseConfig `yaml:"database"`
	Settings SettingsConfig `yaml:"settings"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port               int    `yaml:"port"`
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"`
	RequestTimeoutSec  int    `yaml:"request_timeout_seconds"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level      string `yaml:"level"`
	Production bool   `yaml:"production"`
}

// AnalysisConfig holds analysis pipeline configuration
type AnalysisConfig struct {
	ConcurrencyLimit      int    `yaml:"concurrency_limit"`
	TimeoutSeconds        int    `yaml:"timeout_seconds"`
	SimulatedLatencyMs    int    `yaml:"simulated_latency_ms"`
	Seed                  uint64 `yaml:"seed"` // 0 draws a random seed at startup
	HealthCacheTTLSeconds int    `yaml:"health_cache_ttl_seconds"`
	NarratorEnabled       bool   `yaml:"narrator_enabled"`
}

// RefreshConfig holds the cron schedules of the market snapshot refresher
type RefreshConfig struct {
	IndicesCron   string   `yaml:"indices_cron"`
	WatchlistCron string   `yaml:"watchlist_cron"`
	Watchlist     []string `yaml:"watchlist"`
}

// BreakerConfig tunes the circuit breaker in front of each live provider
type BreakerConfig struct {
	MinRequests      int     `yaml:"min_requests"`
	FailureRatio     float64 `yaml:"failure_ratio"`
	OpenSeconds      int     `yaml:"open_seconds"`
	WindowSeconds    int     `yaml:"window_seconds"`
	HalfOpenRequests int     `yaml:"half_open_requests"`
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// AlpacaConfig holds Alpaca market data configuration
type AlpacaConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// BedrockConfig holds AWS Bedrock configuration for the narrator
type BedrockConfig struct {
	Region           string `yaml:"region"`
	ModelID          string `yaml:"model_id"`
	MaxTokens        int    `yaml:"max_tokens"`
	AnthropicVersion string `yaml:"anthropic_version"`
}

// DatabaseConfig selects the analysis history store
type DatabaseConfig struct {
	URL        string `yaml:"url"`
	SQLitePath string `yaml:"sqlite_path"`
}

// SettingsConfig locates the encrypted provider credential store
type SettingsConfig struct {
	Dir        string `yaml:"dir"`
	Passphrase string `yaml:"passphrase"`
}

// Load builds the configuration from defaults, the optional YAML file named
// by MARKET_LENS_CONFIG and environment overrides, in that order.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv(ConfigPathEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:               8080,
			CORSAllowedOrigins: "*",
			RequestTimeoutSec:  60,
		},
		Log: LogConfig{
			Level: "info",
		},
		Analysis: AnalysisConfig{
			ConcurrencyLimit:      3,
			TimeoutSeconds:        30,
			SimulatedLatencyMs:    0,
			HealthCacheTTLSeconds: 30,
			NarratorEnabled:       true,
		},
		Refresh: RefreshConfig{
			IndicesCron:   "0 */1 * * * *",
			WatchlistCron: "*/30 * * * * *",
			Watchlist:     []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "BTC-USD", "ETH-USD"},
		},
		Breaker: BreakerConfig{
			MinRequests:      5,
			FailureRatio:     0.5,
			OpenSeconds:      30,
			WindowSeconds:    60,
			HalfOpenRequests: 5,
		},
		AlphaVantage: AlphaVantageConfig{
			BaseURL: "https://www.alphavantage.co/query",
		},
		Alpaca: AlpacaConfig{
			BaseURL: "https://paper-api.alpaca.markets",
		},
		Bedrock: BedrockConfig{
			Region:           "us-east-1",
			ModelID:          "anthropic.claude-3-haiku-20240307-v1:0",
			MaxTokens:        1024,
			AnthropicVersion: "bedrock-2023-05-31",
		},
	}
}

// loadFile overlays a YAML document onto c. A missing file is not an error.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HTTP.Port = getEnvInt("PORT", c.HTTP.Port)
	c.HTTP.CORSAllowedOrigins = getEnvString("CORS_ALLOWED_ORIGINS", c.HTTP.CORSAllowedOrigins)
	c.HTTP.RequestTimeoutSec = getEnvInt("HTTP_REQUEST_TIMEOUT_SECONDS", c.HTTP.RequestTimeoutSec)

	c.Log.Level = getEnvString("LOG_LEVEL", c.Log.Level)
	c.Log.Production = getEnvBool("LOG_PRODUCTION", c.Log.Production)

	c.Analysis.ConcurrencyLimit = getEnvInt("ANALYSIS_CONCURRENCY_LIMIT", c.Analysis.ConcurrencyLimit)
	c.Analysis.TimeoutSeconds = getEnvInt("ANALYSIS_TIMEOUT_SECONDS", c.Analysis.TimeoutSeconds)
	c.Analysis.SimulatedLatencyMs = getEnvIntRange("ANALYSIS_SIMULATED_LATENCY_MS", c.Analysis.SimulatedLatencyMs, 0, 60_000)
	c.Analysis.Seed = getEnvUint64("ANALYSIS_SEED", c.Analysis.Seed)
	c.Analysis.HealthCacheTTLSeconds = getEnvInt("HEALTH_CACHE_TTL_SECONDS", c.Analysis.HealthCacheTTLSeconds)
	c.Analysis.NarratorEnabled = getEnvBool("NARRATOR_ENABLED", c.Analysis.NarratorEnabled)

	c.Refresh.IndicesCron = getEnvString("REFRESH_INDICES_CRON", c.Refresh.IndicesCron)
	c.Refresh.WatchlistCron = getEnvString("REFRESH_WATCHLIST_CRON", c.Refresh.WatchlistCron)
	c.Refresh.Watchlist = getEnvList("WATCHLIST_SYMBOLS", c.Refresh.Watchlist)

	c.Breaker.MinRequests = getEnvInt("BREAKER_MIN_REQUESTS", c.Breaker.MinRequests)
	c.Breaker.OpenSeconds = getEnvInt("BREAKER_OPEN_SECONDS", c.Breaker.OpenSeconds)

	c.AlphaVantage.APIKey = getEnvString("ALPHA_VANTAGE_API_KEY", c.AlphaVantage.APIKey)
	c.AlphaVantage.BaseURL = getEnvString("ALPHA_VANTAGE_BASE_URL", c.AlphaVantage.BaseURL)

	c.Alpaca.APIKey = getEnvString("ALPACA_API_KEY", c.Alpaca.APIKey)
	c.Alpaca.APISecret = getEnvString("ALPACA_API_SECRET", c.Alpaca.APISecret)
	c.Alpaca.BaseURL = getEnvString("ALPACA_BASE_URL", c.Alpaca.BaseURL)

	c.Bedrock.Region = getEnvString("AWS_REGION", c.Bedrock.Region)
	c.Bedrock.ModelID = getEnvString("BEDROCK_MODEL_ID", c.Bedrock.ModelID)
	c.Bedrock.MaxTokens = getEnvInt("BEDROCK_MAX_TOKENS", c.Bedrock.MaxTokens)
	c.Bedrock.AnthropicVersion = getEnvString("BEDROCK_ANTHROPIC_VERSION", c.Bedrock.AnthropicVersion)

	c.Database.URL = getEnvString("DATABASE_URL", c.Database.URL)
	c.Database.SQLitePath = getEnvString("SQLITE_PATH", c.Database.SQLitePath)

	c.Settings.Dir = getEnvString("SETTINGS_DIR", c.Settings.Dir)
	c.Settings.Passphrase = getEnvString("SETTINGS_PASSPHRASE", c.Settings.Passphrase)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.RequestTimeoutSec <= 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT_SECONDS must be positive, got %d", c.HTTP.RequestTimeoutSec)
	}

	if c.Analysis.ConcurrencyLimit <= 0 {
		return fmt.Errorf("ANALYSIS_CONCURRENCY_LIMIT must be positive, got %d", c.Analysis.ConcurrencyLimit)
	}
	if c.Analysis.TimeoutSeconds <= 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT_SECONDS must be positive, got %d", c.Analysis.TimeoutSeconds)
	}
	if c.Analysis.SimulatedLatencyMs < 0 {
		return fmt.Errorf("ANALYSIS_SIMULATED_LATENCY_MS must not be negative, got %d", c.Analysis.SimulatedLatencyMs)
	}
	if c.Analysis.HealthCacheTTLSeconds <= 0 {
		return fmt.Errorf("HEALTH_CACHE_TTL_SECONDS must be positive, got %d", c.Analysis.HealthCacheTTLSeconds)
	}

	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("breaker.failure_ratio must be in (0, 1], got %g", c.Breaker.FailureRatio)
	}
	if c.Breaker.MinRequests <= 0 || c.Breaker.OpenSeconds <= 0 {
		return fmt.Errorf("breaker.min_requests and breaker.open_seconds must be positive")
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"refresh.indices_cron":   c.Refresh.IndicesCron,
		"refresh.watchlist_cron": c.Refresh.WatchlistCron,
	} {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("%s: invalid cron spec %q: %w", name, spec, err)
		}
	}

	if c.HasAlpaca() && c.Alpaca.BaseURL == "" {
		return fmt.Errorf("ALPACA_BASE_URL is required when Alpaca credentials are set")
	}

	return nil
}

// HasDatabase returns true if a postgres URL is configured
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasSQLite returns true if an embedded sqlite path is configured
func (c *Config) HasSQLite() bool {
	return c.Database.SQLitePath != ""
}

// HasAlpaca returns true if Alpaca configuration is available
func (c *Config) HasAlpaca() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}

// HasAlphaVantage returns true if Alpha Vantage configuration is available
func (c *Config) HasAlphaVantage() bool {
	return c.AlphaVantage.APIKey != ""
}

// HasBedrock returns true if the narrator may call Bedrock
func (c *Config) HasBedrock() bool {
	return c.Analysis.NarratorEnabled && c.Bedrock.Region != "" && c.Bedrock.ModelID != ""
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvIntRange(key string, defaultValue, minVal, maxVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= minVal && parsed <= maxVal {
			return parsed
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseUint(val, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	cfg := defaults()
	cfg.Analysis.Seed = 42
	cfg.Analysis.NarratorEnabled = false
	return cfg
}
