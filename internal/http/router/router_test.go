package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apphttp "govcon_outreach_backend/internal/http"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testConfig struct{}

func (testConfig) GetHTTPAddr() string        { return ":0" }
func (testConfig) GetCORSAllowAll() bool      { return true }
func (testConfig) GetCORSOrigins() []string   { return nil }
func (testConfig) GetCORSAllowCreds() bool    { return false }
func (testConfig) GetJWTAccessSecret() string { return "secret" }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type echoModule struct{}

func (echoModule) Name() string { return "echo" }

func (echoModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/public", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	ctx.Protected.GET("/private", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

func newTestEngine(health apphttp.HealthChecker) *gin.Engine {
	return New(&apphttp.App{
		Config:      testConfig{},
		Logger:      logger.New("development"),
		Health:      health,
		RateLimiter: ratelimit.NewMemoryCounter(100, time.Minute),
		Modules:     []apphttp.Module{echoModule{}},
	})
}

func serve(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	if rec := serve(newTestEngine(pinger{}), "/api/health"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := serve(newTestEngine(pinger{err: errors.New("down")}), "/api/health"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestModuleGroups(t *testing.T) {
	engine := newTestEngine(pinger{})

	if rec := serve(engine, "/api/v1/public"); rec.Code != http.StatusNoContent {
		t.Fatalf("public route: expected 204, got %d", rec.Code)
	}
	if rec := serve(engine, "/api/v1/private"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("private route without token: expected 401, got %d", rec.Code)
	}
	if rec := serve(engine, "/metrics"); rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
}
