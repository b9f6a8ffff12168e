package otel

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/RodrigoCConte/monofloor-admin-sub002/config"
)

// Component 进程角色，写入 resource，三个进程共用同一个服务名前缀
type Component string

const (
	ComponentAPI       Component = "api"
	ComponentWorker    Component = "worker"
	ComponentScheduler Component = "scheduler"
)

const defaultSampleRatio = 0.1

type Config struct {
	Component   Component
	ServiceName string
	Version     string
	Environment string
	Endpoint    string
	SampleRatio float64
	// Timezone 工作日时区，日结类 span 按它解读日期
	Timezone string
}

// FromAppConfig 从全局配置取值
func FromAppConfig(c *config.Config, component Component, version string) Config {
	return Config{
		Component:   component,
		ServiceName: c.ServiceName,
		Version:     version,
		Environment: c.Environment,
		Endpoint:    c.OTLPEndpoint,
		SampleRatio: c.OTelSampleRatio,
		Timezone:    c.WorkdayTimezone,
	}
}

// Shutdown 刷新并关闭 provider
type Shutdown func(context.Context) error

// Start 安装全局 tracer/meter provider。未配置 endpoint 时返回错误，调用方只记日志
func Start(ctx context.Context, cfg Config) (Shutdown, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("otlp endpoint is empty")
	}
	endpoint := hostPort(cfg.Endpoint)

	res, err := resource.New(ctx,
		resource.WithAttributes(cfg.attributes()...),
		resource.WithHost(),
		resource.WithOSType(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build otel resource: %w", err)
	}

	spanExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create span exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.sampler()),
	)

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(cfg.exportInterval()),
			sdkmetric.WithTimeout(5*time.Second),
		)),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(parent context.Context) error {
		ctx, cancel := context.WithTimeout(parent, 5*time.Second)
		defer cancel()
		return stderrors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func (c Config) attributes() []attribute.KeyValue {
	name := c.ServiceName
	if c.Component != "" {
		name += "-" + string(c.Component)
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
		semconv.ServiceNamespace("monofloor"),
		semconv.DeploymentEnvironment(c.environment()),
		attribute.String("presence.component", string(c.Component)),
	}
	if c.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(c.Version))
	}
	if c.Timezone != "" {
		attrs = append(attrs, attribute.String("presence.workday_timezone", c.Timezone))
	}
	return attrs
}

func (c Config) environment() string {
	if c.Environment == "" {
		return "development"
	}
	return c.Environment
}

// sampler 开发环境与调度进程全量采样：调度任务一天只有几十次，每次都要能追溯
func (c Config) sampler() sdktrace.Sampler {
	if c.environment() == "development" || c.Component == ComponentScheduler {
		return sdktrace.AlwaysSample()
	}
	ratio := c.SampleRatio
	if ratio <= 0 {
		ratio = defaultSampleRatio
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func (c Config) exportInterval() time.Duration {
	if c.Component == ComponentScheduler {
		return 30 * time.Second
	}
	return 15 * time.Second
}

// hostPort otlp grpc exporter 只接受 host:port
func hostPort(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimSuffix(endpoint, "/")
}
