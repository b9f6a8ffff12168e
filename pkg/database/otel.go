package database

import (
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	spanKey  = "otel:span"
	startKey = "otel:start_time"
)

// PluginConfig 插件配置
type PluginConfig struct {
	ServiceName  string
	MaxSQLLength int
}

// Plugin 为每条 SQL 创建一个 client span，并记录耗时
type Plugin struct {
	cfg      PluginConfig
	tracer   trace.Tracer
	queries  metric.Int64Counter
	duration metric.Float64Histogram
}

func NewPlugin(cfg PluginConfig) *Plugin {
	if cfg.MaxSQLLength <= 0 {
		cfg.MaxSQLLength = 1000
	}
	meter := otel.Meter("monofloor/gorm")
	p := &Plugin{
		cfg:    cfg,
		tracer: otel.Tracer("monofloor/gorm"),
	}
	// 指标创建失败时只保留 tracing
	p.queries, _ = meter.Int64Counter("db_queries_total",
		metric.WithDescription("Total number of database queries"))
	p.duration, _ = meter.Float64Histogram("db_query_duration_seconds",
		metric.WithDescription("Database query duration in seconds"), metric.WithUnit("s"))
	return p
}

func (p *Plugin) Name() string {
	return "otel_plugin"
}

// Initialize 注册回调
func (p *Plugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("otel:before_create", p.before("db.insert")),
		cb.Create().After("gorm:create").Register("otel:after_create", p.after),
		cb.Query().Before("gorm:query").Register("otel:before_query", p.before("db.select")),
		cb.Query().After("gorm:query").Register("otel:after_query", p.after),
		cb.Update().Before("gorm:update").Register("otel:before_update", p.before("db.update")),
		cb.Update().After("gorm:update").Register("otel:after_update", p.after),
		cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("db.delete")),
		cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after),
		cb.Row().Before("gorm:row").Register("otel:before_row", p.before("db.row")),
		cb.Row().After("gorm:row").Register("otel:after_row", p.after),
		cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("db.raw")),
		cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after),
	)
}

func (p *Plugin) before(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		attrs := []attribute.KeyValue{
			semconv.DBSystemPostgreSQL,
			attribute.String("db.operation", operation),
			attribute.String("service.name", p.cfg.ServiceName),
		}
		if table := db.Statement.Table; table != "" {
			attrs = append(attrs, attribute.String("db.table", table))
		}

		ctx, span := p.tracer.Start(db.Statement.Context, operation,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attrs...),
		)
		db.InstanceSet(spanKey, span)
		db.InstanceSet(startKey, time.Now())
		db.Statement.Context = ctx
	}
}

func (p *Plugin) after(db *gorm.DB) {
	v, ok := db.InstanceGet(spanKey)
	if !ok {
		return
	}
	span, ok := v.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	// SQL 在执行后才完整，此时再截断写入
	sql := db.Statement.SQL.String()
	if len(sql) > p.cfg.MaxSQLLength {
		sql = sql[:p.cfg.MaxSQLLength] + "..."
	}
	span.SetAttributes(
		semconv.DBStatement(strings.TrimSpace(sql)),
		attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
	)

	status := "success"
	switch {
	case db.Error == nil, errors.Is(db.Error, gorm.ErrRecordNotFound):
		span.SetStatus(codes.Ok, "")
	default:
		status = "error"
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}

	ctx := db.Statement.Context
	labels := metric.WithAttributes(
		attribute.String("db.table", db.Statement.Table),
		attribute.String("db.status", status),
	)
	if p.queries != nil {
		p.queries.Add(ctx, 1, labels)
	}
	if start, ok := db.InstanceGet(startKey); ok && p.duration != nil {
		if t, ok := start.(time.Time); ok {
			p.duration.Record(ctx, time.Since(t).Seconds(), labels)
		}
	}
}
