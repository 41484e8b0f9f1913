package telemetry_test

import (
	"context"
	"testing"

	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestCustomerMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := telemetry.NewCustomerMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m.RecordOperation(ctx, "create", telemetry.OutcomeSuccess)
	m.RecordOperation(ctx, "create", telemetry.OutcomeSuccess)
	m.RecordOperation(ctx, "update", telemetry.OutcomeNotFound)
	m.RecordRejection(ctx, "create", "email")
	m.RecordSearchResults(ctx, 0)
	m.RecordSearchResults(ctx, 3)

	metrics := collect(t, reader)

	ops, ok := metrics["crm.customer.operations"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := map[string]int64{}
	for _, dp := range ops.DataPoints {
		op, _ := dp.Attributes.Value(attribute.Key("operation"))
		outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
		counts[op.AsString()+"/"+outcome.AsString()] = dp.Value
	}
	assert.Equal(t, int64(2), counts["create/success"])
	assert.Equal(t, int64(1), counts["update/not_found"])

	rejections, ok := metrics["crm.customer.validation_rejections"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, rejections.DataPoints, 1)
	field, _ := rejections.DataPoints[0].Attributes.Value(attribute.Key("field"))
	assert.Equal(t, "email", field.AsString())

	results, ok := metrics["crm.customer.search.results"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var total uint64
	for _, dp := range results.DataPoints {
		total += dp.Count
	}
	assert.Equal(t, uint64(2), total)
}

func TestCustomerMetrics_NilSafe(t *testing.T) {
	var m *telemetry.CustomerMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordOperation(ctx, "create", telemetry.OutcomeSuccess)
		m.RecordRejection(ctx, "create", "name")
		m.RecordSearchResults(ctx, 1)
	})
}

func TestCustomerMetrics_NoopMeter(t *testing.T) {
	m, err := telemetry.NewCustomerMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	m.RecordOperation(context.Background(), "search", telemetry.OutcomeSuccess)
}
