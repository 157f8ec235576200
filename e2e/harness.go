// Package e2e provides end-to-end testing infrastructure for market-lens.
package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"market-lens/config"
	"market-lens/e2e/mocks"
	"market-lens/internal/api"
	"market-lens/internal/app"
	"market-lens/observability"

	"github.com/prometheus/client_golang/prometheus"
)

// TestHarness runs the full router against a mock Alpha Vantage upstream
// and a SQLite history file.
type TestHarness struct {
	t          *testing.T
	ctx        context.Context
	cancel     context.CancelFunc
	mockServer *mocks.MockServer
	app        *app.App
	router     http.Handler
	config     *config.Config
	Metrics    *observability.Metrics
}

// NewTestHarness creates a new test harness. Call Setup before use.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)

	return &TestHarness{
		t:      t,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Setup starts the mock upstream and wires the application.
func (h *TestHarness) Setup() error {
	h.mockServer = mocks.NewMockServer()
	h.config = h.createTestConfig()

	h.Metrics = observability.NewMetrics(prometheus.NewRegistry())
	observability.SetMetrics(h.Metrics)

	return h.start()
}

func (h *TestHarness) start() error {
	application, err := app.FromConfig(h.ctx, h.config)
	if err != nil {
		return fmt.Errorf("failed to wire app: %w", err)
	}
	application.Startup(h.ctx)

	h.app = application
	h.router = api.NewRouter(api.NewHandler(application, h.config), h.config)
	return nil
}

// Restart shuts the application down and wires a fresh one over the same
// history file and credential directory.
func (h *TestHarness) Restart() error {
	h.app.Shutdown(h.ctx)
	return h.start()
}

// createTestConfig creates a configuration pointing to the mock server.
func (h *TestHarness) createTestConfig() *config.Config {
	dir := h.t.TempDir()

	cfg := config.NewTestConfig()
	cfg.AlphaVantage.APIKey = "e2e-key"
	cfg.AlphaVantage.BaseURL = h.mockServer.URL()
	cfg.Database.SQLitePath = filepath.Join(dir, "history.db")
	cfg.Settings.Dir = filepath.Join(dir, "settings")
	return cfg
}

// Teardown cleans up all test resources.
func (h *TestHarness) Teardown() {
	if h.app != nil {
		h.app.Shutdown(context.Background())
	}
	if h.mockServer != nil {
		h.mockServer.Close()
	}
	h.cancel()
}

// Context returns the test context.
func (h *TestHarness) Context() context.Context {
	return h.ctx
}

// MockServer returns the mock upstream for configuring responses.
func (h *TestHarness) MockServer() *mocks.MockServer {
	return h.mockServer
}

// App returns the application instance.
func (h *TestHarness) App() *app.App {
	return h.app
}

// Config returns the test configuration.
func (h *TestHarness) Config() *config.Config {
	return h.config
}

// DoRequest performs an HTTP request against the router. Extra arguments
// are header name/value pairs.
func (h *TestHarness) DoRequest(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

// DoHTMXRequest performs an HTTP request with HTMX headers.
func (h *TestHarness) DoHTMXRequest(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.DoRequest(method, path, body, append([]string{"HX-Request", "true"}, headers...)...)
}
