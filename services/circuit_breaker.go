package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"market-lens/observability"
)

// Breaker names, one per live dependency
const (
	BreakerAlphaVantage = "alphavantage"
	BreakerAlpaca       = "alpaca"
	BreakerBedrock      = "bedrock"
)

// ErrBreakerOpen is returned without calling the provider while its breaker
// is open or its half-open probe budget is spent.
var ErrBreakerOpen = fmt.Errorf("circuit breaker open: %w", ErrUpstreamUnavailable)

// CircuitBreakerConfig decides when a provider's breaker opens and how it
// recovers. A breaker opens once at least MinRequests calls inside Window
// failed at FailureRatio or worse; it stays open for OpenFor, then lets
// HalfOpenMax probes through.
type CircuitBreakerConfig struct {
	MinRequests  uint32
	FailureRatio float64
	Window       time.Duration
	OpenFor      time.Duration
	HalfOpenMax  uint32
}

// DefaultCircuitBreakerConfig is used until the app installs one built from config
var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MinRequests:  5,
	FailureRatio: 0.5,
	Window:       time.Minute,
	OpenFor:      30 * time.Second,
	HalfOpenMax:  5,
}

// CircuitBreakerRegistry lazily creates one breaker per provider name
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	cfg      CircuitBreakerConfig
}

// NewCircuitBreakerRegistry creates an empty registry
func NewCircuitBreakerRegistry(cfg CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		cfg:      cfg,
	}
}

// Breaker returns the breaker for name, creating it on first use
func (r *CircuitBreakerRegistry) Breaker(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[name]
	if !ok {
		cb = gobreaker.NewCircuitBreaker[any](r.settings(name))
		r.breakers[name] = cb
	}
	return cb
}

func (r *CircuitBreakerRegistry) settings(name string) gobreaker.Settings {
	cfg := r.cfg
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenMax,
		Interval:    cfg.Window,
		Timeout:     cfg.OpenFor,
		// Unknown symbols and caller cancellations say nothing about upstream health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrSymbolNotFound) || errors.Is(err, context.Canceled)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.Warn("circuit breaker state change",
				"provider", name,
				"from", from.String(),
				"to", to.String())

			metrics := observability.GetMetrics()
			metrics.SetCircuitBreakerState(name, stateGauge(to))
			if to == gobreaker.StateOpen {
				metrics.RecordCircuitBreakerTrip(name)
			}
		},
	}
}

// Do runs fn through the named breaker. A done context short-circuits
// before fn is called and is not held against the provider.
func (r *CircuitBreakerRegistry) Do(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	result, err := r.Breaker(name).Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		observability.Debug("provider skipped", "provider", name, "state", err.Error())
		return nil, fmt.Errorf("%s: %w", name, ErrBreakerOpen)
	}
	return result, err
}

// CircuitBreakerStatus is the health view of one breaker
type CircuitBreakerStatus struct {
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	Failures            uint32 `json:"failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// Status reports every breaker created so far, keyed by provider
func (r *CircuitBreakerRegistry) Status() map[string]CircuitBreakerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]CircuitBreakerStatus, len(r.breakers))
	for name, cb := range r.breakers {
		counts := cb.Counts()
		out[name] = CircuitBreakerStatus{
			State:               cb.State().String(),
			Requests:            counts.Requests,
			Failures:            counts.TotalFailures,
			ConsecutiveFailures: counts.ConsecutiveFailures,
		}
	}
	return out
}

// Open returns the sorted names of providers whose breaker is open
func (r *CircuitBreakerRegistry) Open() []string {
	var open []string
	for name, s := range r.Status() {
		if s.State == gobreaker.StateOpen.String() {
			open = append(open, name)
		}
	}
	sort.Strings(open)
	return open
}

var (
	registryMu sync.RWMutex
	registry   = NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)
)

// BreakerRegistry returns the process-wide registry
func BreakerRegistry() *CircuitBreakerRegistry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry
}

// SetBreakerRegistry replaces the process-wide registry
func SetBreakerRegistry(r *CircuitBreakerRegistry) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = r
}

// WithCircuitBreaker runs fn through the named breaker of the process-wide registry
func WithCircuitBreaker[T any](ctx context.Context, name string, fn func() (T, error)) (T, error) {
	result, err := BreakerRegistry().Do(ctx, name, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// stateGauge maps breaker states onto the gauge: 0 closed, 1 half-open, 2 open
func stateGauge(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
