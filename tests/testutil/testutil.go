// Package testutil provides common test utilities for the customer store:
// throwaway databases, a fully wired gin engine and JSON request helpers.
package testutil

import (
	"testing"

	appcustomer "github.com/crm/backend/internal/application/customer"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/crm/backend/internal/interfaces/http/handler"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/crm/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// NewSQLiteDB opens a migrated in-memory store that lives as long as t.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err, "Failed to open sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to ":memory:" is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.CustomerModel{}), "Failed to migrate")
	return db
}

const maxBodyBytes = 1 << 20

// NewEngine wires the customer API over db the way the server does,
// minus telemetry.
func NewEngine(t testing.TB, db *gorm.DB) *gin.Engine {
	t.Helper()

	middleware.SetupValidator()
	service := appcustomer.NewService(persistence.NewGormCustomerRepository(db))
	system := handler.NewSystemHandler(&persistence.Database{DB: db})

	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.BodyLimit(maxBodyBytes))
	router.RegisterHealth(engine, system)
	router.NewRouter(engine).
		Register(router.SystemRoutes(system)).
		Register(router.CustomerRoutes(handler.NewCustomerHandler(service))).
		Setup()
	return engine
}
