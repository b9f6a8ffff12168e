package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RodrigoCConte/monofloor-admin-sub002/config"
	redisotel "github.com/RodrigoCConte/monofloor-admin-sub002/pkg/redis"
)

const defaultPrefix = "mfp"

var (
	mu     sync.Mutex
	client *redis.Client
)

// Options 由全局配置生成连接参数。
// Redis 只承载锁、日结缓存、限流与消息去重，读写超时取短值
func Options(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolTimeout:  2 * time.Second,
		MinIdleConns: 4,
		MaxRetries:   2,
	}
}

// Init 建立连接并 Ping。失败不缓存，下次调用会重试
func Init() error {
	mu.Lock()
	defer mu.Unlock()
	if client != nil {
		return nil
	}

	c := redis.NewClient(Options(&config.Cfg))
	redisotel.InstrumentClient(c, config.Cfg.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to ping redis at %s: %w", config.Cfg.RedisAddr, err)
	}

	client = c
	return nil
}

func Client() *redis.Client {
	mu.Lock()
	defer mu.Unlock()
	if client == nil {
		panic("redis client not initialized")
	}
	return client
}

func Close(ctx context.Context) error {
	mu.Lock()
	c := client
	client = nil
	mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Close()
}

// Key 拼接带前缀的 key，空段跳过：Key("lock", "day_end") -> mfp:lock:day_end
func Key(parts ...string) string {
	prefix := config.Cfg.RedisPrefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	segs := make([]string, 0, len(parts)+1)
	segs = append(segs, prefix)
	for _, part := range parts {
		if part != "" {
			segs = append(segs, part)
		}
	}
	return strings.Join(segs, ":")
}
