package redis

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingHook 为 Redis 命令创建 span，redis.Nil 不视为错误
type TracingHook struct {
	tracer   trace.Tracer
	commands metric.Int64Counter
	duration metric.Float64Histogram
	attrs    []attribute.KeyValue
}

var _ redis.Hook = (*TracingHook)(nil)

func NewTracingHook(serviceName string) *TracingHook {
	meter := otel.Meter("monofloor/redis")
	h := &TracingHook{
		tracer: otel.Tracer("monofloor/redis"),
		attrs: []attribute.KeyValue{
			semconv.DBSystemRedis,
			attribute.String("service.name", serviceName),
		},
	}
	h.commands, _ = meter.Int64Counter("redis.commands.total",
		metric.WithDescription("Total number of Redis commands"), metric.WithUnit("{command}"))
	h.duration, _ = meter.Float64Histogram("redis.command.duration",
		metric.WithDescription("Redis command duration"), metric.WithUnit("s"))
	return h
}

// InstrumentClient 给客户端挂上 tracing hook
func InstrumentClient(client *redis.Client, serviceName string) {
	client.AddHook(NewTracingHook(serviceName))
}

func (h *TracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		ctx, span := h.tracer.Start(ctx, "redis.dial",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(h.attrs...),
		)
		defer span.End()

		conn, err := next(ctx, network, addr)
		h.finish(span, err)
		return conn, err
	}
}

func (h *TracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		name := cmd.FullName()
		ctx, span := h.tracer.Start(ctx, "redis."+name,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(h.attrs...),
			trace.WithAttributes(attribute.String("db.operation", name)),
		)
		defer span.End()

		start := time.Now()
		err := next(ctx, cmd)
		h.record(ctx, name, start, err)
		h.finish(span, err)
		return err
	}
}

func (h *TracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := h.tracer.Start(ctx, "redis.pipeline",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(h.attrs...),
			trace.WithAttributes(attribute.Int("db.redis.num_cmd", len(cmds))),
		)
		defer span.End()

		start := time.Now()
		err := next(ctx, cmds)
		h.record(ctx, "pipeline", start, err)
		h.finish(span, err)
		return err
	}
}

func (h *TracingHook) record(ctx context.Context, name string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, redis.Nil) {
		status = "error"
	}
	labels := metric.WithAttributes(
		attribute.String("command", name),
		attribute.String("status", status),
	)
	if h.commands != nil {
		h.commands.Add(ctx, 1, labels)
	}
	if h.duration != nil {
		h.duration.Record(ctx, time.Since(start).Seconds(), labels)
	}
}

func (h *TracingHook) finish(span trace.Span, err error) {
	if err == nil || errors.Is(err, redis.Nil) {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
