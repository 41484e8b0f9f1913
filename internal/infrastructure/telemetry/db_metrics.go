package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBDurationBuckets are boundaries for query latency (seconds).
var DBDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

var (
	AttrDBOperation = attribute.Key("db.operation")
	AttrDBTable     = attribute.Key("db.sql.table")
	AttrDBState     = attribute.Key("state")
)

// DBMetrics records connection pool usage and per-statement query metrics
// for the customer store.
type DBMetrics struct {
	queries       *Counter
	queryDuration *Histogram
	slowQueries   *Counter
	queryErrors   *Counter

	slowThreshold time.Duration
	logger        *zap.Logger
	registration  metric.Registration
}

// NewDBMetrics creates the query instruments and an observable gauge that
// reads pool statistics from sqlDB on every collection.
func NewDBMetrics(meter metric.Meter, sqlDB *sql.DB, slowThreshold time.Duration, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if slowThreshold <= 0 {
		slowThreshold = 200 * time.Millisecond
	}

	m := &DBMetrics{slowThreshold: slowThreshold, logger: logger}

	var err error
	if m.queries, err = NewCounter(meter, "crm.db.queries", "Statements executed by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.slowQueries, err = NewCounter(meter, "crm.db.slow_queries", "Statements slower than the slow query threshold", "{query}"); err != nil {
		return nil, err
	}
	if m.queryErrors, err = NewCounter(meter, "crm.db.query_errors", "Statements that returned an error", "{query}"); err != nil {
		return nil, err
	}
	if m.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "crm.db.query.duration",
		Description: "Statement latency in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}

	if sqlDB != nil {
		pool, err := meter.Int64ObservableGauge("crm.db.pool.connections",
			metric.WithDescription("Connections in the pool by state"),
			metric.WithUnit("{connection}"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create pool gauge: %w", err)
		}
		m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			stats := sqlDB.Stats()
			o.ObserveInt64(pool, int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
			o.ObserveInt64(pool, int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
			o.ObserveInt64(pool, int64(stats.MaxOpenConnections), metric.WithAttributes(AttrDBState.String("max")))
			return nil
		}, pool)
		if err != nil {
			return nil, fmt.Errorf("failed to register pool callback: %w", err)
		}
	}

	return m, nil
}

// RecordQuery records one finished statement.
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	if table == "" {
		table = "unknown"
	}
	attrs := []attribute.KeyValue{AttrDBOperation.String(operation), AttrDBTable.String(table)}

	m.queries.Inc(ctx, attrs...)
	m.queryDuration.RecordDuration(ctx, elapsed, attrs...)
	if elapsed > m.slowThreshold {
		m.slowQueries.Inc(ctx, attrs...)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		m.queryErrors.Inc(ctx, attrs...)
	}
}

// Close unregisters the pool gauge callback.
func (m *DBMetrics) Close() error {
	if m == nil || m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}

type metricsStartKey struct{}

// Name implements gorm.Plugin.
func (m *DBMetrics) Name() string {
	return "crm:db_metrics"
}

// Initialize implements gorm.Plugin by timing create, query, update and row
// statements.
func (m *DBMetrics) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		op     string
		before func(name string, fn func(*gorm.DB)) error
		after  func(name string, fn func(*gorm.DB)) error
	}{
		{"INSERT", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"SELECT", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"UPDATE", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"ROW", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
	}

	for _, h := range hooks {
		op := h.op
		name := strings.ToLower(op)
		if err := h.before("crm_metrics:before_"+name, markMetricsStart); err != nil {
			return err
		}
		if err := h.after("crm_metrics:after_"+name, func(db *gorm.DB) { m.observe(db, op) }); err != nil {
			return err
		}
	}

	m.logger.Info("Database metrics enabled", zap.Duration("slow_query_threshold", m.slowThreshold))
	return nil
}

func markMetricsStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, metricsStartKey{}, time.Now())
	}
}

func (m *DBMetrics) observe(db *gorm.DB, op string) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	start, ok := ctx.Value(metricsStartKey{}).(time.Time)
	if !ok {
		return
	}
	if op == "ROW" {
		op = statementOperation(db.Statement.SQL.String())
	}
	m.RecordQuery(ctx, op, db.Statement.Table, time.Since(start), db.Error)
}

// statementOperation returns the leading SQL verb of a raw statement.
func statementOperation(sql string) string {
	verb, _, _ := strings.Cut(strings.TrimSpace(sql), " ")
	switch verb = strings.ToUpper(verb); verb {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return verb
	default:
		return "OTHER"
	}
}
