package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/RodrigoCConte/monofloor-admin-sub002/storage/redis"
)

const (
	// 空值缓存标识
	emptyValueFlag = "__EMPTY__"
	// 空值缓存TTL，较短时间避免长期占用
	emptyValueTTL = 1 * time.Minute
	// TTL 随机抖动上限，避免同一批 key 同时过期
	ttlJitterMax = 30 * time.Second
)

// ProtectedCache 带空值保护的 JSON 缓存。命中空值时返回 (true, nil) 且不写 dest
type ProtectedCache struct {
	client    goredis.Cmdable
	keyPrefix string
	ttl       time.Duration
	emptyTTL  time.Duration
}

func NewProtectedCache(client goredis.Cmdable, keyPrefix string, ttl time.Duration) *ProtectedCache {
	return &ProtectedCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		emptyTTL:  emptyValueTTL,
	}
}

// Set value 为 nil 时写入空值标识
func (pc *ProtectedCache) Set(ctx context.Context, key string, value interface{}) error {
	cacheKey := redis.Key(pc.keyPrefix, key)

	if value == nil {
		return pc.client.Set(ctx, cacheKey, emptyValueFlag, pc.emptyTTL).Err()
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return pc.client.Set(ctx, cacheKey, data, pc.ttl+jitter()).Err()
}

// Get 未命中返回 (false, nil)
func (pc *ProtectedCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := pc.client.Get(ctx, redis.Key(pc.keyPrefix, key)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache: %w", err)
	}

	if data == emptyValueFlag {
		return true, nil
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

func (pc *ProtectedCache) Delete(ctx context.Context, key string) error {
	return pc.client.Del(ctx, redis.Key(pc.keyPrefix, key)).Err()
}

// BatchDelete 批量删除缓存
func (pc *ProtectedCache) BatchDelete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	cacheKeys := make([]string, len(keys))
	for i, key := range keys {
		cacheKeys[i] = redis.Key(pc.keyPrefix, key)
	}
	return pc.client.Del(ctx, cacheKeys...).Err()
}

func jitter() time.Duration {
	return time.Duration(rand.Int63n(int64(ttlJitterMax)))
}
