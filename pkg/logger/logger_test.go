package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"DEBUG":  zapcore.DebugLevel,
		"warn":   zapcore.WarnLevel,
		" Error": zapcore.ErrorLevel,
		"fatal":  zapcore.InfoLevel,
		"":       zapcore.InfoLevel,
		"loud":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNamedWithoutInit(t *testing.T) {
	prev := Logger
	Logger = nil
	t.Cleanup(func() { Logger = prev })

	assert.NotPanics(t, func() {
		Named("absence").Info("no-op")
		FromContext(context.Background(), "absence").Info("no-op")
	})
}

func TestFromContextAddsTraceFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := Logger
	Logger = zap.New(core)
	t.Cleanup(func() { Logger = prev })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	FromContext(ctx, "day_end").Info("Day end completed", WorkerID(7))
	FromContext(context.Background(), "day_end").Info("Day end completed")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "day_end", fields["component"])
		assert.Equal(t, sc.TraceID().String(), fields["trace_id"])
		assert.Equal(t, int64(7), fields["worker_id"])

		_, hasTrace := entries[1].ContextMap()["trace_id"]
		assert.False(t, hasTrace)
	}
}
