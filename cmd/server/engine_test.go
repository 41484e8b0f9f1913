package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appcustomer "github.com/crm/backend/internal/application/customer"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	return newTestEngineWith(t, nil)
}

func newTestEngineWith(t *testing.T, tweak func(*config.HTTPConfig)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		App: config.AppConfig{Name: "crm-test", Env: "test"},
		Database: config.DatabaseConfig{
			Driver:      config.DriverSQLite,
			Path:        ":memory:",
			AutoMigrate: true,
		},
		HTTP: config.HTTPConfig{
			MaxBodySize:      256,
			CORSAllowOrigins: []string{"https://crm.example.com"},
			CORSAllowMethods: []string{"GET", "POST", "PATCH"},
			CORSAllowHeaders: []string{"Content-Type"},
			RateLimit:        100,
			RateLimitWindow:  time.Minute,
		},
	}
	if tweak != nil {
		tweak(&cfg.HTTP)
	}

	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormlogger.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrateSchema(cfg, db, zap.NewNop()))

	service := appcustomer.NewService(persistence.NewGormCustomerRepository(db.DB))
	engine, err := newEngine(context.Background(), cfg, zap.NewNop(), noop.NewMeterProvider().Meter("test"), service, db)
	require.NoError(t, err)
	return engine
}

func TestEngine_MiddlewareChain(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("request id and security headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil)
		req.Header.Set(middleware.RequestIDHeader, "req-123")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
		assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
	})

	t.Run("configured origin is allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/customers", nil)
		req.Header.Set("Origin", "https://crm.example.com")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://crm.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		body := `{"name":"` + strings.Repeat("x", 512) + `","email":"a@example.com","phone":"1","address":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/customers", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("health reports the database", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"database":"up"`)
		assert.Contains(t, w.Body.String(), `"max_open_connections":1`)
	})
}

func TestMigrateSchema_Disabled(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: config.DriverPostgres}}
	assert.NoError(t, migrateSchema(cfg, nil, zap.NewNop()))
}

func TestEngine_SwaggerDocs(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		engine := newTestEngine(t)

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("serves the customer endpoints when enabled", func(t *testing.T) {
		engine := newTestEngineWith(t, func(h *config.HTTPConfig) { h.SwaggerEnabled = true })

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))

		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, `"basePath": "/api/v1"`)
		for _, path := range []string{`"/customers"`, `"/customers/recent"`, `"/customers/search"`, `"/customers/{id}"`} {
			assert.Contains(t, body, path)
		}
		assert.Contains(t, body, "searchCustomers")
		assert.Contains(t, body, "updateCustomer")
	})

	t.Run("allowlist rejects other clients", func(t *testing.T) {
		engine := newTestEngineWith(t, func(h *config.HTTPConfig) {
			h.SwaggerEnabled = true
			h.SwaggerAllowIPs = []string{"10.0.0.0/8"}
		})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
