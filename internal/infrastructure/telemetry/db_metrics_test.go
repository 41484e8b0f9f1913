package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type metricsRow struct {
	ID   int64
	Name string
}

func (metricsRow) TableName() string { return "customers" }

func TestDBMetrics_Plugin(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&metricsRow{}))

	m, err := telemetry.NewDBMetrics(provider.Meter("test"), sqlDB, time.Hour, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, db.Use(m))

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&metricsRow{Name: "Alice"}).Error)
	var rows []metricsRow
	require.NoError(t, db.WithContext(ctx).Find(&rows).Error)
	var missing metricsRow
	require.ErrorIs(t, db.WithContext(ctx).First(&missing, 42).Error, gorm.ErrRecordNotFound)

	metrics := collect(t, reader)

	queries, ok := metrics["crm.db.queries"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := map[string]int64{}
	for _, dp := range queries.DataPoints {
		op, _ := dp.Attributes.Value(attribute.Key("db.operation"))
		table, _ := dp.Attributes.Value(attribute.Key("db.sql.table"))
		assert.Equal(t, "customers", table.AsString())
		counts[op.AsString()] = dp.Value
	}
	assert.Equal(t, int64(1), counts["INSERT"])
	assert.Equal(t, int64(2), counts["SELECT"])

	_, hasErrors := metrics["crm.db.query_errors"]
	assert.False(t, hasErrors, "record not found is not a query error")
	_, hasSlow := metrics["crm.db.slow_queries"]
	assert.False(t, hasSlow)

	pool, ok := metrics["crm.db.pool.connections"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	states := map[string]int64{}
	for _, dp := range pool.DataPoints {
		state, _ := dp.Attributes.Value(attribute.Key("state"))
		states[state.AsString()] = dp.Value
	}
	assert.Equal(t, int64(1), states["max"])
}

func TestDBMetrics_RecordQuery(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := telemetry.NewDBMetrics(provider.Meter("test"), nil, 10*time.Millisecond, nil)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordQuery(ctx, "UPDATE", "customers", 50*time.Millisecond, assert.AnError)

	metrics := collect(t, reader)
	slow, ok := metrics["crm.db.slow_queries"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, slow.DataPoints, 1)
	assert.Equal(t, int64(1), slow.DataPoints[0].Value)

	errs, ok := metrics["crm.db.query_errors"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, errs.DataPoints, 1)

	assert.NoError(t, m.Close())
}

func TestDBMetrics_NilSafe(t *testing.T) {
	var m *telemetry.DBMetrics
	assert.NotPanics(t, func() {
		m.RecordQuery(context.Background(), "SELECT", "customers", time.Millisecond, nil)
	})
	assert.NoError(t, m.Close())
}
