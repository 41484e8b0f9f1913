package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestDialector(t *testing.T) {
	t.Run("postgres uses DSN", func(t *testing.T) {
		d, err := Dialector(&config.DatabaseConfig{Driver: config.DriverPostgres, Host: "db", Port: 5432, User: "u", DBName: "crm", SSLMode: "disable"})
		require.NoError(t, err)
		assert.Equal(t, "postgres", d.Name())
	})

	t.Run("sqlite uses path", func(t *testing.T) {
		d, err := Dialector(&config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"})
		require.NoError(t, err)
		assert.Equal(t, "sqlite", d.Name())
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := Dialector(&config.DatabaseConfig{Driver: "oracle"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "oracle")
	})
}

func TestNewDatabase_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "crm.db"),
	}

	db, err := NewDatabase(cfg, WithLogger(gormlogger.Discard))
	require.NoError(t, err)

	require.NoError(t, db.Ping(context.Background()))
	require.NoError(t, db.AutoMigrate(&models.CustomerModel{}))
	assert.True(t, db.DB.Migrator().HasTable("customers"))

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections)

	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(context.Background()))
}

func TestDatabase_PingWithMock(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	// gorm.Open pings once on connect
	mock.ExpectPing()
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	db := &Database{DB: gormDB}

	mock.ExpectPing()
	assert.NoError(t, db.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
