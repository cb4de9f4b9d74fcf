package router

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "lead_outreach_backend/internal/http"
	"lead_outreach_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

type testConfig struct {
	allowAll bool
	origins  []string
}

func (c testConfig) GetHTTPAddr() string        { return ":0" }
func (c testConfig) GetCORSAllowAll() bool      { return c.allowAll }
func (c testConfig) GetCORSOrigins() []string   { return c.origins }
func (c testConfig) GetCORSAllowCreds() bool    { return true }
func (c testConfig) GetJWTAccessSecret() string { return "secret" }

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type pingModule struct{}

func (pingModule) Name() string { return "ping" }

func (pingModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	ctx.Admin.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	ctx.V1.GET("/public", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

func newTestApp(cfg testConfig, health apphttp.HealthChecker) *apphttp.App {
	gin.SetMode(gin.TestMode)
	return &apphttp.App{
		Config:  cfg,
		Logger:  logger.NewWithWriter("test", io.Discard),
		Health:  health,
		Modules: []apphttp.Module{pingModule{}},
	}
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Origin", "http://localhost:4200")
	engine.ServeHTTP(w, req)
	return w
}

func TestHealthReflectsDatabase(t *testing.T) {
	healthy := New(newTestApp(testConfig{}, pingFunc(func(context.Context) error { return nil })))
	if w := serve(healthy, http.MethodGet, "/api/health"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	down := New(newTestApp(testConfig{}, pingFunc(func(context.Context) error { return errors.New("down") })))
	if w := serve(down, http.MethodGet, "/api/health"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestModuleGroupsRequireAuth(t *testing.T) {
	engine := New(newTestApp(testConfig{}, nil))

	if w := serve(engine, http.MethodGet, "/api/v1/public"); w.Code != http.StatusNoContent {
		t.Fatalf("expected public route to be open, got %d", w.Code)
	}
	if w := serve(engine, http.MethodGet, "/api/v1/ping"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected protected route to need a token, got %d", w.Code)
	}
	if w := serve(engine, http.MethodGet, "/api/v1/admin/ping"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected admin route to need a token, got %d", w.Code)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	engine := New(newTestApp(testConfig{origins: []string{"http://localhost:4200"}}, nil))

	w := serve(engine, http.MethodGet, "/api/health")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
		t.Fatalf("expected origin to be allowed, got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestCORSDisabledWithoutOrigins(t *testing.T) {
	engine := New(newTestApp(testConfig{}, nil))

	w := serve(engine, http.MethodGet, "/api/health")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header, got %q", got)
	}
}
