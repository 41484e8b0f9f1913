package main

import (
	"context"

	_ "github.com/crm/backend/docs"
	appcustomer "github.com/crm/backend/internal/application/customer"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/interfaces/http/handler"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/crm/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// newEngine builds the gin engine with the middleware chain and all routes.
// The rate limiter's sweeper stops with ctx.
func newEngine(ctx context.Context, cfg *config.Config, log *zap.Logger, meter metric.Meter, service *appcustomer.Service, db handler.Pinger) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.SpanAttributes(),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			Meter:   meter,
			Enabled: cfg.Telemetry.Enabled,
			Logger:  log,
		}),
		middleware.CORSWithConfig(cors),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	if cfg.HTTP.RateLimit > 0 {
		engine.Use(middleware.RateLimit(middleware.NewRateLimiter(ctx, cfg.HTTP.RateLimit, cfg.HTTP.RateLimitWindow)))
	}

	systemHandler := handler.NewSystemHandler(db)
	router.RegisterHealth(engine, systemHandler)

	router.NewRouter(engine).
		Register(router.SystemRoutes(systemHandler)).
		Register(router.CustomerRoutes(handler.NewCustomerHandler(service))).
		Setup()

	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:    cfg.HTTP.SwaggerEnabled,
			AllowedIPs: cfg.HTTP.SwaggerAllowIPs,
		}),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	return engine, nil
}
