package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/RodrigoCConte/monofloor-admin-sub002/storage/redis"
)

// 通过 SETNX 实现的分布式锁，保证多副本下同一时刻只有一个实例执行扫描
const (
	lockPrefix = "lock"
)

// 只删除自己持有的锁，避免锁过期后误删其他实例的锁
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client goredis.Cmdable
	owner  string
}

func NewRedisLocker(client goredis.Cmdable) *RedisLocker {
	return &RedisLocker{client: client, owner: uuid.NewString()}
}

// TryLock 获取成功返回 true；锁被其他实例持有返回 false
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, redis.Key(lockPrefix, key), l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return ok, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key string) error {
	if err := unlockScript.Run(ctx, l.client, []string{redis.Key(lockPrefix, key)}, l.owner).Err(); err != nil && err != goredis.Nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}
