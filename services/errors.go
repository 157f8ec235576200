package services

import (
	"context"
	"errors"
)

// Boundary errors raised by live providers. ResilientMarketData absorbs them
// by falling back to synthetic data; callers of the live services see them directly.
var (
	ErrSymbolNotFound      = errors.New("symbol not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrShortSeries         = errors.New("series shorter than timeframe")
)

// errorType classifies err for metric labels
func errorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSymbolNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrShortSeries):
		return "short_series"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrBreakerOpen):
		return "breaker_open"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}

// retryable reports whether repeating the call could succeed
func retryable(err error) bool {
	return !errors.Is(err, ErrSymbolNotFound) &&
		!errors.Is(err, ErrRateLimited) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
