package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/config"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/bootstrap"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/handler"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/middleware"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/router"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/logger"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/metrics"
	pkgotel "github.com/RodrigoCConte/monofloor-admin-sub002/pkg/otel"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/snowflake"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/token"
	"github.com/RodrigoCConte/monofloor-admin-sub002/storage"
	"github.com/RodrigoCConte/monofloor-admin-sub002/storage/database"
	"github.com/RodrigoCConte/monofloor-admin-sub002/storage/redis"
)

// version 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

func main() {
	logger.Init("api")
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

	// 链路追踪可选，未配置 endpoint 时只打日志
	if config.Cfg.OTLPEndpoint != "" {
		shutdown, err := pkgotel.Start(ctx, pkgotel.FromAppConfig(&config.Cfg, pkgotel.ComponentAPI, version))
		if err != nil {
			logger.Logger.Warn("Failed to initialize OpenTelemetry", zap.Error(err))
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
				}
			}()
		}
	}
	if err := metrics.InitMetrics(); err != nil {
		logger.Logger.Warn("Failed to initialize engine metrics", zap.Error(err))
	}
	if err := middleware.InitMetrics(otel.Meter("monofloor/presence-api")); err != nil {
		logger.Logger.Fatal("Failed to initialize HTTP metrics", zap.Error(err))
	}

	// 初始化存储层，记得关闭外部连接
	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	// token 在中间件前初始化，middleware 依赖 token
	if err := token.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize token package", zap.Error(err))
	}
	if err := middleware.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize middlewares", zap.Error(err))
	}

	engine, err := bootstrap.New(bootstrap.Options{
		DB:     database.DB(),
		Redis:  redis.Client(),
		Logger: logger.Logger,
	})
	if err != nil {
		logger.Logger.Fatal("Failed to assemble engine", zap.Error(err))
	}

	addr := net.JoinHostPort(config.Cfg.ServerHost, config.Cfg.ServerPort)
	tracerOpt, tracingMW := middleware.NewServerTracerConfig()
	h := server.Default(server.WithHostPorts(addr), tracerOpt)
	h.Use(tracingMW)

	router.Register(h, handler.New(engine), redis.Client())

	logger.Logger.Info("Server starting",
		zap.String("service", config.Cfg.ServiceName),
		zap.String("addr", addr),
		zap.String("environment", config.Cfg.Environment),
		zap.String("workday_timezone", config.Cfg.WorkdayTimezone),
	)

	go func() {
		<-ctx.Done()
		logger.Logger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()

	h.Spin()

	logger.Logger.Info("Server shutting down gracefully")
}
