package storage

import (
	"context"
	"fmt"

	"github.com/RodrigoCConte/monofloor-admin-sub002/storage/database"
	"github.com/RodrigoCConte/monofloor-admin-sub002/storage/mq"
	"github.com/RodrigoCConte/monofloor-admin-sub002/storage/redis"
)

type backend struct {
	name  string
	init  func() error
	close func(context.Context) error
}

// 会话与日结落 Postgres，锁和缓存在 Redis，位置事件走 RabbitMQ
var backends = []backend{
	{name: "postgres", init: database.Init, close: database.Close},
	{name: "redis", init: redis.Init, close: redis.Close},
	{name: "rabbitmq", init: mq.Init, close: mq.Close},
}

// Init 按顺序初始化，任一失败时关闭已打开的后端
func Init() error {
	for i, b := range backends {
		if err := b.init(); err != nil {
			closeBackends(context.Background(), backends[:i])
			return fmt.Errorf("failed to initialize %s: %w", b.name, err)
		}
	}
	return nil
}
