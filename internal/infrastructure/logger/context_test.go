package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	t.Run("returns nop logger when missing", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})

	t.Run("returns attached logger", func(t *testing.T) {
		l := zap.NewExample()
		ctx := WithContext(context.Background(), l)
		assert.Same(t, l, FromContext(ctx))
	})
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, l := WithRequestID(context.Background(), zap.New(core), "req-42")
	l.Info("first")
	FromContext(ctx).Info("second")

	assert.Equal(t, "req-42", GetRequestID(ctx))
	require.Equal(t, 2, recorded.Len())
	for _, entry := range recorded.All() {
		assert.Equal(t, "req-42", entry.ContextMap()["request_id"])
	}
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestL(t *testing.T) {
	t.Run("adds trace fields for a valid span", func(t *testing.T) {
		core, recorded := observer.New(zapcore.InfoLevel)
		traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
		spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
		spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: trace.FlagsSampled,
		})
		ctx := trace.ContextWithSpanContext(WithContext(context.Background(), zap.New(core)), spanCtx)

		L(ctx).Info("traced")

		fields := recorded.All()[0].ContextMap()
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
		assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
	})

	t.Run("no trace fields without a span", func(t *testing.T) {
		core, recorded := observer.New(zapcore.InfoLevel)
		ctx := WithContext(context.Background(), zap.New(core))

		L(ctx).Info("plain")

		assert.NotContains(t, recorded.All()[0].ContextMap(), "trace_id")
	})
}
