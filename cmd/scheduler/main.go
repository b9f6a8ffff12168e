package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/config"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/bootstrap"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/schedule"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/clock"
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
	logger.Init("scheduler")
	defer logger.Sync()

	if err := config.Cfg.Validate(); err != nil {
		logger.Logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Logger.Info("Scheduler received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if config.Cfg.OTLPEndpoint != "" {
		shutdown, err := pkgotel.Start(ctx, pkgotel.FromAppConfig(&config.Cfg, pkgotel.ComponentScheduler, version))
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
		logger.Logger.Fatal("Failed to initialize storage for scheduler", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake for scheduler", zap.Error(err))
	}

	engine, err := bootstrap.New(bootstrap.Options{
		DB:     database.DB(),
		Redis:  redis.Client(),
		Logger: logger.Logger,
	})
	if err != nil {
		logger.Logger.Fatal("Failed to assemble engine", zap.Error(err))
	}

	deps := engine.Deps
	sweeper := schedule.NewAutoCheckoutSweeper(deps, engine.Sessions, engine.Presence, engine.Locker)
	lunch := schedule.NewLunchScheduler(deps, engine.Lunch, engine.Markers, engine.Locker, config.Cfg.LunchTickInterval)
	dayEnd := schedule.NewDayEndScheduler(deps, engine.Sessions, engine.Worktime, engine.Markers, engine.Locker)
	absence := schedule.NewAbsenceScheduler(deps, engine.Absence, engine.Markers, engine.Locker)

	logger.Logger.Info("Scheduler service starting",
		zap.String("service", config.Cfg.ServiceName+"-scheduler"),
		zap.String("environment", config.Cfg.Environment),
		zap.Duration("sweep_interval", config.Cfg.SweepInterval),
		zap.Duration("lunch_tick_interval", config.Cfg.LunchTickInterval),
	)

	var wg sync.WaitGroup
	loop := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	loop(func() {
		runEvery(ctx, "auto_checkout", config.Cfg.SweepInterval, config.Cfg.SweepInterval, func(runCtx context.Context) error {
			_, err := sweeper.Sweep(runCtx)
			return err
		})
	})
	loop(func() {
		runEvery(ctx, "lunch_tick", config.Cfg.LunchTickInterval, config.Cfg.LunchTickInterval, func(runCtx context.Context) error {
			_, err := lunch.Tick(runCtx)
			return err
		})
	})
	loop(func() {
		runDaily(ctx, "day_end", config.Cfg.EndOfShiftAt, 30*time.Minute, func(runCtx context.Context) error {
			_, err := dayEnd.RunToday(runCtx)
			return err
		})
	})
	loop(func() {
		runDaily(ctx, "break_review", config.Cfg.BreakReviewAt, 10*time.Minute, func(runCtx context.Context) error {
			_, err := lunch.ReviewPreviousDay(runCtx)
			return err
		})
	})
	loop(func() {
		runDaily(ctx, "absence_detection", config.Cfg.AbsenceDetectionAt, 10*time.Minute, func(runCtx context.Context) error {
			_, err := absence.DetectToday(runCtx)
			return err
		})
	})

	<-ctx.Done()
	wg.Wait()

	logger.Logger.Info("Scheduler service shutting down gracefully")
}

// runEvery 周期任务，每次运行单独设超时
func runEvery(ctx context.Context, job string, interval, timeout time.Duration, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce(ctx, job, timeout, fn)
		}
	}
}

// runDaily 每天在工作日时区的 hhmm 触发一次。重复触发由 Redis 日任务标记去重
func runDaily(ctx context.Context, job, hhmm string, timeout time.Duration, fn func(context.Context) error) {
	loc := config.Cfg.Location()

	for {
		now := time.Now()
		next, err := clock.NextAt(now, hhmm, loc)
		if err != nil {
			logger.Logger.Error("Invalid daily job time, job disabled",
				zap.String("job", job),
				zap.String("at", hhmm),
				zap.Error(err),
			)
			return
		}

		delay := next.Sub(now)
		logger.Logger.Info("Scheduled next daily run",
			zap.String("job", job),
			zap.Time("next_run", next),
			zap.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			runOnce(ctx, job, timeout, fn)
		}
	}
}

func runOnce(ctx context.Context, job string, timeout time.Duration, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := fn(runCtx); err != nil {
		logger.Logger.Error("Scheduled job run failed",
			zap.String("job", job),
			zap.Error(err),
		)
	}
}
