package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/RodrigoCConte/monofloor-admin-sub002/config"
)

func TestFromAppConfig(t *testing.T) {
	cfg := FromAppConfig(&config.Config{
		ServiceName:     "monofloor-presence",
		Environment:     "production",
		OTLPEndpoint:    "http://collector:4317/",
		OTelSampleRatio: 0.25,
		WorkdayTimezone: "America/Sao_Paulo",
	}, ComponentWorker, "1.4.0")

	assert.Equal(t, ComponentWorker, cfg.Component)
	assert.Equal(t, "1.4.0", cfg.Version)
	assert.Equal(t, "collector:4317", hostPort(cfg.Endpoint))

	attrs := attribute.NewSet(cfg.attributes()...)
	name, ok := attrs.Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "monofloor-presence-worker", name.AsString())
	tz, ok := attrs.Value("presence.workday_timezone")
	require.True(t, ok)
	assert.Equal(t, "America/Sao_Paulo", tz.AsString())
}

func TestSamplerByComponent(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"development samples everything", Config{Component: ComponentAPI}, "AlwaysOnSampler"},
		{"scheduler samples everything", Config{Component: ComponentScheduler, Environment: "production"}, "AlwaysOnSampler"},
		{"api uses ratio", Config{Component: ComponentAPI, Environment: "production", SampleRatio: 0.5}, "TraceIDRatioBased{0.5}"},
		{"missing ratio falls back", Config{Component: ComponentWorker, Environment: "staging"}, "TraceIDRatioBased{0.1}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.cfg.sampler().Description(), tt.want)
		})
	}
}

func TestStartRequiresEndpoint(t *testing.T) {
	shutdown, err := Start(context.Background(), Config{Component: ComponentAPI})
	assert.Error(t, err)
	assert.Nil(t, shutdown)
}
