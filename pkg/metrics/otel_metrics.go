package metrics

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics 引擎业务指标。未初始化时所有记录方法都是空操作
type OTelMetrics struct {
	PositionsTotal       metric.Int64Counter
	GeofenceTransitions  metric.Int64Counter
	SessionsOpenedTotal  metric.Int64Counter
	SessionsClosedTotal  metric.Int64Counter
	LunchAlertsTotal     metric.Int64Counter
	AbsencesTotal        metric.Int64Counter
	PublishFailuresTotal metric.Int64Counter
	JobDuration          metric.Float64Histogram
}

var (
	metrics *OTelMetrics
	meter   = otel.Meter("monofloor-presence")
)

// InitMetrics 初始化 OpenTelemetry 指标
func InitMetrics() error {
	m := &OTelMetrics{}
	var err error

	if m.PositionsTotal, err = meter.Int64Counter("presence_positions_total",
		metric.WithDescription("Position reports processed, by result"),
		metric.WithUnit("{position}")); err != nil {
		return err
	}
	if m.GeofenceTransitions, err = meter.Int64Counter("presence_geofence_transitions_total",
		metric.WithDescription("Geofence transitions, by direction"),
		metric.WithUnit("{transition}")); err != nil {
		return err
	}
	if m.SessionsOpenedTotal, err = meter.Int64Counter("work_sessions_opened_total",
		metric.WithDescription("Work sessions opened"),
		metric.WithUnit("{session}")); err != nil {
		return err
	}
	if m.SessionsClosedTotal, err = meter.Int64Counter("work_sessions_closed_total",
		metric.WithDescription("Work sessions closed, by reason"),
		metric.WithUnit("{session}")); err != nil {
		return err
	}
	if m.LunchAlertsTotal, err = meter.Int64Counter("lunch_alerts_total",
		metric.WithDescription("Lunch overrun alerts, by threshold"),
		metric.WithUnit("{alert}")); err != nil {
		return err
	}
	if m.AbsencesTotal, err = meter.Int64Counter("absences_detected_total",
		metric.WithDescription("Absences detected, by kind"),
		metric.WithUnit("{absence}")); err != nil {
		return err
	}
	if m.PublishFailuresTotal, err = meter.Int64Counter("event_publish_failures_total",
		metric.WithDescription("Events that could not be published, by topic"),
		metric.WithUnit("{event}")); err != nil {
		return err
	}
	if m.JobDuration, err = meter.Float64Histogram("scheduler_job_duration_seconds",
		metric.WithDescription("Scheduled job duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return err
	}

	metrics = m
	return nil
}

// GetMetrics 获取全局指标实例，可能为 nil
func GetMetrics() *OTelMetrics {
	return metrics
}

func (m *OTelMetrics) RecordPosition(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.PositionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *OTelMetrics) RecordTransition(ctx context.Context, direction string) {
	if m == nil {
		return
	}
	m.GeofenceTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("direction", direction)))
}

func (m *OTelMetrics) RecordSessionOpened(ctx context.Context, outOfArea bool) {
	if m == nil {
		return
	}
	m.SessionsOpenedTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("out_of_area", outOfArea)))
}

func (m *OTelMetrics) RecordSessionClosed(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.SessionsClosedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *OTelMetrics) RecordLunchAlert(ctx context.Context, threshold int) {
	if m == nil {
		return
	}
	m.LunchAlertsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("threshold", strconv.Itoa(threshold))))
}

func (m *OTelMetrics) RecordAbsence(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.AbsencesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *OTelMetrics) RecordPublishFailure(ctx context.Context, topic string) {
	if m == nil {
		return
	}
	m.PublishFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *OTelMetrics) RecordJob(ctx context.Context, job string, seconds float64, failed bool) {
	if m == nil {
		return
	}
	m.JobDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("job", job),
		attribute.Bool("failed", failed),
	))
}
