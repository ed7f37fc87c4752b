package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starquery/starquery/internal/auth"
	"github.com/starquery/starquery/internal/config"
	"github.com/starquery/starquery/internal/nl2sql"
	"github.com/starquery/starquery/internal/query"
	"github.com/starquery/starquery/internal/schema"
	"github.com/starquery/starquery/internal/sqlguard"
)

type fakeEngine struct {
	result query.Result
	err    error
	calls  int
}

func (f *fakeEngine) Execute(context.Context, query.Request) (query.Result, error) {
	f.calls++
	if f.err != nil {
		return query.Result{}, f.err
	}
	return f.result, nil
}

type fakeTranslator struct {
	result nl2sql.Result
	err    error
}

func (f *fakeTranslator) Translate(context.Context, nl2sql.Request) (nl2sql.Result, error) {
	if f.err != nil {
		return nl2sql.Result{}, f.err
	}
	return f.result, nil
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Service.Name = "starquery-api"
	return cfg
}

func testDeps(t *testing.T, engine query.Engine) Dependencies {
	t.Helper()
	catalog := schema.Default()
	validator, err := sqlguard.NewValidator(catalog, sqlguard.Limits{DefaultRowLimit: 1000, MaxRowLimit: 10000})
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	service, err := query.NewService(validator, engine, nil, nil, logger, query.TimeoutPolicy{Default: time.Second, Max: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return Dependencies{
		Logger:  logger,
		Catalog: catalog,
		Queries: service,
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(), testDeps(t, &fakeEngine{}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "starquery-api") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestReadyEndpointReportsFailure(t *testing.T) {
	deps := testDeps(t, &fakeEngine{})
	deps.Readiness = func(context.Context) error { return errors.New("warehouse offline") }
	handler := NewHandler(testConfig(), deps)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(rr.Body.String(), "NOT_READY") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestProtectedRoutesRequireAuthWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Required = true

	validator, err := auth.NewStaticAPIKeyValidator("k1:analyst")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	deps := testDeps(t, &fakeEngine{})
	deps.AuthMiddleware = auth.Middleware(deps.Logger, validator)
	handler := NewHandler(cfg, deps)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tables", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/tables", nil)
	req.Header.Set("X-API-Key", "k1")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, want %d", rr.Code, http.StatusOK)
	}

	// Health stays public even with auth required.
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestCombineReadinessChecksStopsAtFirstFailure(t *testing.T) {
	var secondCalled bool
	combined := CombineReadinessChecks(
		func(context.Context) error { return errors.New("first failed") },
		func(context.Context) error { secondCalled = true; return nil },
	)
	if err := combined(context.Background()); err == nil {
		t.Fatal("expected combined check to fail")
	}
	if secondCalled {
		t.Fatal("second check should not run after first fails")
	}
}

func TestCheckWarehouseConfig(t *testing.T) {
	cfg := testConfig()
	if err := CheckWarehouseConfig(cfg)(context.Background()); err == nil {
		t.Fatal("expected failure for unset warehouse config")
	}
	cfg.Warehouse.Endpoint = "http://localhost:9000"
	cfg.Warehouse.Bucket = "warehouse"
	if err := CheckWarehouseConfig(cfg)(context.Background()); err != nil {
		t.Fatalf("CheckWarehouseConfig() error = %v", err)
	}
}
