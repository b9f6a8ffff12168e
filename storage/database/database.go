package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	"github.com/RodrigoCConte/monofloor-admin-sub002/config"
	dbotel "github.com/RodrigoCConte/monofloor-admin-sub002/pkg/database"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/logger"
)

const maxTracedSQL = 1000

var (
	mu sync.Mutex
	db *gorm.DB
)

// GormConfig 服务与测试共用的 gorm 配置
func GormConfig() *gorm.Config {
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		// 唯一索引冲突统一转换为 gorm.ErrDuplicatedKey，开班冲突依赖它
		TranslateError: true,
	}
}

// Init 打开主库（可选只读副本）、挂追踪插件并迁移表结构。失败不缓存
func Init() error {
	mu.Lock()
	defer mu.Unlock()
	if db != nil {
		return nil
	}

	log := logger.Named("database")
	cfg := &config.Cfg

	gormDB, err := open(cfg)
	if err != nil {
		log.Error("Failed to open database",
			zap.String("host", cfg.PostgreSQLHost),
			zap.String("database", cfg.PostgreSQLDatabase),
			zap.Error(err),
		)
		return err
	}

	if err := MigrateDB(gormDB); err != nil {
		closeGorm(gormDB)
		return err
	}

	db = gormDB
	log.Info("Database ready",
		zap.String("host", cfg.PostgreSQLHost),
		zap.String("database", cfg.PostgreSQLDatabase),
		zap.Bool("replica", cfg.PostgreSQLReplicaHost != ""),
	)
	return nil
}

func open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := GormConfig()
	gormCfg.PrepareStmt = true

	gormDB, err := gorm.Open(postgres.Open(cfg.GetDSN()), gormCfg)
	if err != nil {
		return nil, err
	}

	// 报表类只读查询走副本
	if replica := cfg.GetReplicaDSN(); replica != "" {
		if err := gormDB.Use(dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{postgres.Open(replica)},
			Policy:   dbresolver.RandomPolicy{},
		})); err != nil {
			closeGorm(gormDB)
			return nil, fmt.Errorf("failed to register read replica: %w", err)
		}
	}

	if err := gormDB.Use(dbotel.NewPlugin(dbotel.PluginConfig{
		ServiceName:  cfg.ServiceName,
		MaxSQLLength: maxTracedSQL,
	})); err != nil {
		logger.Named("database").Warn("Failed to register database tracing plugin", zap.Error(err))
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.PostgreSQLMaxIdle)
	sqlDB.SetMaxOpenConns(cfg.PostgreSQLMaxOpen)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	sqlDB.SetConnMaxLifetime(2 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return gormDB, nil
}

func DB() *gorm.DB {
	mu.Lock()
	defer mu.Unlock()
	return db
}

// Close 在 ctx 到期前等待连接池关闭
func Close(ctx context.Context) error {
	mu.Lock()
	g := db
	db = nil
	mu.Unlock()

	if g == nil {
		return nil
	}
	sqlDB, err := g.DB()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- sqlDB.Close() }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func closeGorm(g *gorm.DB) {
	if sqlDB, err := g.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
