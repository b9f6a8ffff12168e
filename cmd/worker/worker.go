package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/config"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/bootstrap"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/queue"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/logger"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/metrics"
	pkgotel "github.com/RodrigoCConte/monofloor-admin-sub002/pkg/otel"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/snowflake"
	"github.com/RodrigoCConte/monofloor-admin-sub002/storage"
	"github.com/RodrigoCConte/monofloor-admin-sub002/storage/database"
	"github.com/RodrigoCConte/monofloor-admin-sub002/storage/redis"
)

// version 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

func main() {
	logger.Init("worker")
	defer logger.Sync()

	if err := config.Cfg.Validate(); err != nil {
		logger.Logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if config.Cfg.OTLPEndpoint != "" {
		shutdown, err := pkgotel.Start(ctx, pkgotel.FromAppConfig(&config.Cfg, pkgotel.ComponentWorker, version))
		if err != nil {
			logger.Logger.Warn("Failed to initialize OpenTelemetry", zap.Error(err))
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}
	if err := metrics.InitMetrics(); err != nil {
		logger.Logger.Warn("Failed to initialize engine metrics", zap.Error(err))
	}

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	// 多副本部署时 SNOWFLAKE_MACHINE_ID 需要各不相同
	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	engine, err := bootstrap.New(bootstrap.Options{
		DB:     database.DB(),
		Redis:  redis.Client(),
		Logger: logger.Logger,
	})
	if err != nil {
		logger.Logger.Fatal("Failed to assemble engine", zap.Error(err))
	}

	logger.Logger.Info("Worker service starting",
		zap.String("service", config.Cfg.ServiceName+"-worker"),
		zap.String("environment", config.Cfg.Environment),
	)

	queue.StartAllConsumers(ctx, queue.NewPositionHandler(engine.Presence, engine.Markers))

	logger.Logger.Info("Worker service shutting down gracefully")
}
