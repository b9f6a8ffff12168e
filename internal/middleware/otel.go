package middleware

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const apiTracerName = "monofloor/presence-api"

// apiInstruments 设备接口的请求指标，按路由模板与接口分组统计
type apiInstruments struct {
	requests  metric.Int64Counter
	latency   metric.Float64Histogram
	inflight  metric.Int64UpDownCounter
	rejected  metric.Int64Counter
	bodyBytes metric.Int64Histogram
}

var instruments *apiInstruments

// InitMetrics 未调用时中间件只做追踪
func InitMetrics(meter metric.Meter) error {
	var (
		in  apiInstruments
		err error
	)

	if in.requests, err = meter.Int64Counter("mfp.api.requests",
		metric.WithDescription("Device API requests by route, group and status"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}
	if in.latency, err = meter.Float64Histogram("mfp.api.latency",
		metric.WithDescription("Device API latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	); err != nil {
		return err
	}
	if in.inflight, err = meter.Int64UpDownCounter("mfp.api.inflight",
		metric.WithDescription("Device API requests in flight"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}
	if in.rejected, err = meter.Int64Counter("mfp.api.rejected",
		metric.WithDescription("Requests answered with 4xx, by error class"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}
	if in.bodyBytes, err = meter.Int64Histogram("mfp.api.request_body",
		metric.WithDescription("Request body size, dominated by position uploads"),
		metric.WithUnit("By"),
	); err != nil {
		return err
	}

	instruments = &in
	return nil
}

// apiGroup /v1/sessions/:id/close -> sessions
func apiGroup(route string) string {
	parts := strings.Split(strings.TrimPrefix(route, "/"), "/")
	if len(parts) >= 2 && parts[0] == "v1" {
		return parts[1]
	}
	return "other"
}

func statusClass(code int) string {
	switch {
	case code == 401 || code == 403:
		return "auth"
	case code == 429:
		return "rate_limited"
	case code == 409:
		return "conflict"
	case code == 404:
		return "not_found"
	default:
		return "invalid"
	}
}

// OpenTelemetryMiddleware 每个请求一个 span，附带工人与会话 ID
func OpenTelemetryMiddleware() app.HandlerFunc {
	tracer := otel.Tracer(apiTracerName)

	return func(ctx context.Context, c *app.RequestContext) {
		started := time.Now()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		route = strings.ToValidUTF8(route, "")
		method := string(c.Method())
		group := apiGroup(route)

		spanCtx, span := tracer.Start(ctx, "presence.api "+method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethod(method),
				semconv.HTTPRoute(route),
				attribute.String("presence.api.group", group),
			))
		defer span.End()

		if requestID := c.GetHeader("X-Request-Id"); len(requestID) > 0 {
			span.SetAttributes(attribute.String("presence.request_id", strings.ToValidUTF8(string(requestID), "")))
		}
		if group == "sessions" {
			if id, err := strconv.ParseInt(c.Param("id"), 10, 64); err == nil {
				span.SetAttributes(attribute.Int64("presence.session_id", id))
			}
		}

		if instruments != nil {
			instruments.inflight.Add(ctx, 1, metric.WithAttributes(attribute.String("group", group)))
			defer instruments.inflight.Add(ctx, -1, metric.WithAttributes(attribute.String("group", group)))
		}

		c.Next(spanCtx)

		// 认证在路由组内执行，结束后才能拿到工人 ID
		if workerID, ok := GetWorkerID(spanCtx, c); ok {
			span.SetAttributes(attribute.Int64("presence.worker_id", workerID))
		}

		status := c.Response.StatusCode()
		span.SetAttributes(semconv.HTTPStatusCode(status))
		switch {
		case status >= 500:
			span.SetStatus(codes.Error, "server error")
			if last := c.Errors.Last(); last != nil {
				span.RecordError(last)
			}
		case status >= 400:
			span.SetStatus(codes.Error, statusClass(status))
		default:
			span.SetStatus(codes.Ok, "")
		}

		if instruments == nil {
			return
		}
		attrs := metric.WithAttributes(
			semconv.HTTPRoute(route),
			attribute.String("group", group),
			semconv.HTTPStatusCode(status),
		)
		instruments.requests.Add(ctx, 1, attrs)
		instruments.latency.Record(ctx, time.Since(started).Seconds(), attrs)
		if status >= 400 && status < 500 {
			instruments.rejected.Add(ctx, 1, metric.WithAttributes(
				attribute.String("group", group),
				attribute.String("class", statusClass(status)),
			))
		}
		if size := int64(c.Request.Header.ContentLength()); size > 0 {
			instruments.bodyBytes.Record(ctx, size, metric.WithAttributes(attribute.String("group", group)))
		}
	}
}

// NewServerTracerConfig hertz 服务端追踪：server 选项与配套中间件
func NewServerTracerConfig(opts ...hertztracing.Option) (config.Option, app.HandlerFunc) {
	tracer, cfg := hertztracing.NewServerTracer(opts...)
	return tracer, hertztracing.ServerMiddleware(cfg)
}
