package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	appcustomer "github.com/crm/backend/internal/application/customer"
	"github.com/crm/backend/internal/domain/customer"
	"github.com/crm/backend/internal/infrastructure/cache"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/migration"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/crm/backend"

//	@title			CRM Customer API
//	@version		1.0
//	@description	Customer record store: create, list, search and update customers.

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Server exited: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Telemetry
	telCfg := telemetry.ConfigFrom(cfg.Telemetry)
	tp, err := telemetry.NewTracerProvider(ctx, telCfg, bootLog)
	if err != nil {
		return err
	}
	mp, err := telemetry.NewMeterProvider(ctx, telCfg, cfg.Telemetry.MetricsInterval, bootLog)
	if err != nil {
		return err
	}
	lp, err := telemetry.NewLoggerProvider(ctx, telCfg, cfg.Telemetry.LogsEnabled, bootLog)
	if err != nil {
		return err
	}

	log, err := logger.New(logCfg, telemetry.NewZapOTELCore(lp, telCfg.ServiceName, logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync(log)

	defer func() {
		// providers flush on their own timeout; the signal context is already done
		shutdownCtx := context.Background()
		for _, shutdown := range []func(context.Context) error{lp.Shutdown, mp.Shutdown, tp.Shutdown} {
			if err := shutdown(shutdownCtx); err != nil {
				log.Warn("Telemetry shutdown failed", zap.Error(err))
			}
		}
	}()

	log.Info("Starting customer store",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("database_driver", cfg.Database.Driver),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	dbSystem := "postgresql"
	if cfg.Database.Driver == config.DriverSQLite {
		dbSystem = "sqlite"
	}
	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, log)
	if err := tracing.Register(db.DB); err != nil {
		return err
	}

	meter := mp.Meter(instrumentationName)
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBMetricsEnabled {
		sqlDB, err := db.DB.DB()
		if err != nil {
			return err
		}
		dbMetrics, err := telemetry.NewDBMetrics(meter, sqlDB, cfg.Telemetry.DBSlowQueryThresh, log)
		if err != nil {
			return err
		}
		defer func() { _ = dbMetrics.Close() }()
		if err := db.DB.Use(dbMetrics); err != nil {
			return err
		}
	}

	if err := migrateSchema(cfg, db, log); err != nil {
		return err
	}
	log.Info("Database ready")

	// Customer store
	var repo customer.Repository = persistence.NewGormCustomerRepository(db.DB)
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func(c *redis.Client) {
			_ = c.Close()
		}(client)
		repo = cache.NewRecentCustomersCache(repo, client,
			cache.WithTTL(cfg.Redis.RecentTTL),
			cache.WithCacheLogger(log),
		)
		log.Info("Recent customers cache enabled", zap.String("redis", cfg.Redis.Addr()))
	}

	customerMetrics, err := telemetry.NewCustomerMetrics(meter)
	if err != nil {
		return err
	}
	service := appcustomer.NewService(repo,
		appcustomer.WithMetrics(customerMetrics),
		appcustomer.WithRecentLimit(cfg.Customer.RecentLimit),
	)

	engine, err := newEngine(ctx, cfg, log, meter, service, db)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited")
	return nil
}

// migrateSchema brings the schema up to date when database.auto_migrate is
// set. Postgres runs the SQL migrations; SQLite uses the GORM models.
func migrateSchema(cfg *config.Config, db *persistence.Database, log *zap.Logger) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}
	if cfg.Database.Driver == config.DriverSQLite {
		return db.AutoMigrate(&models.CustomerModel{})
	}

	// the migrator closes its connection, so it gets its own
	sqlDB, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	m, err := migration.New(sqlDB, cfg.Database.MigrationsPath, log)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Error closing migrator", zap.Error(err))
		}
	}()
	return m.Up()
}
