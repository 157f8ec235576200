// Package mocks provides an HTTP mock of the Alpha Vantage query API for
// E2E tests.
package mocks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockServer serves configurable Alpha Vantage responses
type MockServer struct {
	mu     sync.RWMutex
	server *httptest.Server

	quotes map[string]GlobalQuote
	rates  map[string]ExchangeRate
	daily  map[string]map[string]DailyBar

	failure Failure

	// Request tracking for assertions
	requestLog []RequestLog
}

// RequestLog records incoming requests for test assertions
type RequestLog struct {
	Function string
	Symbol   string
	APIKey   string
}

// NewMockServer creates a new mock server with default responses
func NewMockServer() *MockServer {
	m := &MockServer{
		quotes:     make(map[string]GlobalQuote),
		rates:      make(map[string]ExchangeRate),
		daily:      make(map[string]map[string]DailyBar),
		requestLog: make([]RequestLog, 0),
	}
	m.setDefaults()
	m.server = httptest.NewServer(m)
	return m
}

// URL returns the query endpoint to hand to the Alpha Vantage client
func (m *MockServer) URL() string {
	return m.server.URL + "/query"
}

// Close shuts down the mock server
func (m *MockServer) Close() {
	m.server.Close()
}

// ServeHTTP routes on the "function" query parameter
func (m *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	if symbol == "" {
		symbol = q.Get("from_currency")
	}

	m.mu.Lock()
	m.requestLog = append(m.requestLog, RequestLog{
		Function: q.Get("function"),
		Symbol:   symbol,
		APIKey:   q.Get("apikey"),
	})
	failure := m.failure
	m.mu.Unlock()

	switch failure {
	case FailRateLimit:
		writeJSON(w, map[string]string{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."})
		return
	case FailNotFound:
		writeJSON(w, map[string]string{"Error Message": "Invalid API call."})
		return
	case FailUnavailable:
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	switch q.Get("function") {
	case "GLOBAL_QUOTE":
		m.handleGlobalQuote(w, symbol)
	case "CURRENCY_EXCHANGE_RATE":
		m.handleExchangeRate(w, symbol)
	case "TIME_SERIES_DAILY":
		m.handleDaily(w, symbol)
	case "SYMBOL_SEARCH":
		writeJSON(w, map[string]any{"bestMatches": []any{}})
	default:
		writeJSON(w, map[string]string{"Error Message": "Invalid API call. Unknown function."})
	}
}

func (m *MockServer) handleGlobalQuote(w http.ResponseWriter, symbol string) {
	m.mu.RLock()
	gq, ok := m.quotes[strings.ToUpper(symbol)]
	m.mu.RUnlock()
	if !ok {
		// unknown tickers get an empty object, not an error
		writeJSON(w, map[string]any{"Global Quote": map[string]string{}})
		return
	}
	writeJSON(w, map[string]any{"Global Quote": gq})
}

func (m *MockServer) handleExchangeRate(w http.ResponseWriter, from string) {
	m.mu.RLock()
	rate, ok := m.rates[strings.ToUpper(from)]
	m.mu.RUnlock()
	if !ok {
		writeJSON(w, map[string]string{"Error Message": "Invalid API call."})
		return
	}
	writeJSON(w, map[string]any{"Realtime Currency Exchange Rate": rate})
}

func (m *MockServer) handleDaily(w http.ResponseWriter, symbol string) {
	m.mu.RLock()
	bars, ok := m.daily[strings.ToUpper(symbol)]
	m.mu.RUnlock()
	if !ok {
		writeJSON(w, map[string]string{"Error Message": "Invalid API call."})
		return
	}
	writeJSON(w, map[string]any{
		"Meta Data":           map[string]string{"2. Symbol": symbol},
		"Time Series (Daily)": bars,
	})
}

// GetRequestLog returns all logged requests for assertions
func (m *MockServer) GetRequestLog() []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RequestLog{}, m.requestLog...)
}

// ClearRequestLog clears the request log
func (m *MockServer) ClearRequestLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestLog = make([]RequestLog, 0)
}

// CountFunction returns how many logged requests called function
func (m *MockServer) CountFunction(function string) int {
	n := 0
	for _, r := range m.GetRequestLog() {
		if r.Function == function {
			n++
		}
	}
	return n
}

// SetQuote configures the GLOBAL_QUOTE response for a ticker
func (m *MockServer) SetQuote(q GlobalQuote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[strings.ToUpper(q.Symbol)] = q
}

// SetExchangeRate configures the USD rate of a crypto base currency
func (m *MockServer) SetExchangeRate(from, rate string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[strings.ToUpper(from)] = ExchangeRate{From: from, To: "USD", Rate: rate}
}

// SetDailyBars configures the daily series for a ticker, keyed by date
func (m *MockServer) SetDailyBars(symbol string, bars map[string]DailyBar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.daily[strings.ToUpper(symbol)] = bars
}

// SetFailure makes every following request fail the given way
func (m *MockServer) SetFailure(f Failure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = f
}

func (m *MockServer) setDefaults() {
	m.quotes["AAPL"] = GlobalQuote{
		Symbol:        "AAPL",
		Open:          "180.10",
		High:          "183.00",
		Low:           "179.85",
		Price:         "182.52",
		Volume:        "52300000",
		LatestDay:     "2024-03-01",
		PreviousClose: "180.27",
		Change:        "2.25",
		ChangePercent: "1.2481%",
	}
	m.rates["BTC"] = ExchangeRate{From: "BTC", To: "USD", Rate: "43250.00"}

	// 30 weekday bars ending on the latest trading day
	bars := make(map[string]DailyBar)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; len(bars) < 30; i++ {
		d := day.AddDate(0, 0, -i)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		c := 182.52 - float64(len(bars))*0.5
		bars[d.Format("2006-01-02")] = DailyBar{
			Open:   fmt.Sprintf("%.2f", c-0.4),
			High:   fmt.Sprintf("%.2f", c+1.1),
			Low:    fmt.Sprintf("%.2f", c-1.3),
			Close:  fmt.Sprintf("%.2f", c),
			Volume: "48000000",
		}
	}
	m.daily["AAPL"] = bars
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
