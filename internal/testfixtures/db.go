package testfixtures

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/repository"
	"github.com/RodrigoCConte/monofloor-admin-sub002/storage/database"
)

var dbSeq atomic.Int64

// NewDB 每个测试独立的内存 SQLite，结构与线上一致
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库只在连接存活期间存在
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.MigrateDB(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewRepositories 基于新建的测试库构造全部仓储
func NewRepositories(t testing.TB) (*gorm.DB, *repository.Repositories) {
	db := NewDB(t)
	return db, repository.New(db)
}

// NewRedis 启动 miniredis 并返回客户端
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}
