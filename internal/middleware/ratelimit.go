package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/logger"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/response"
	"github.com/RodrigoCConte/monofloor-admin-sub002/storage/redis"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
	KeyPrefix   string
	// 超限后的封禁时长，0 表示只拒绝当前窗口
	BlockDuration time.Duration
}

// PositionRateLimitConfig 定位上报。App 正常约 30s 一次，留足补传余量
var PositionRateLimitConfig = RateLimitConfig{
	Window:      time.Minute,
	MaxRequests: 30,
	KeyPrefix:   "rate:positions",
}

// SessionRateLimitConfig 开工/下班/午休等状态变更
var SessionRateLimitConfig = RateLimitConfig{
	Window:        time.Minute,
	MaxRequests:   10,
	KeyPrefix:     "rate:sessions",
	BlockDuration: 5 * time.Minute,
}

// RefreshRateLimitConfig 刷新令牌未认证，只能按 IP 限流
var RefreshRateLimitConfig = RateLimitConfig{
	Window:        time.Minute,
	MaxRequests:   5,
	KeyPrefix:     "rate:refresh",
	BlockDuration: 15 * time.Minute,
}

// RateLimiter 基于 zset 的滑动窗口限流
type RateLimiter struct {
	client goredis.Cmdable
	config RateLimitConfig
	now    func() time.Time
}

func NewRateLimiter(client goredis.Cmdable, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config, now: time.Now}
}

// identify 已认证请求按工人限流，否则按 IP
func (rl *RateLimiter) identify(ctx context.Context, c *app.RequestContext) string {
	if workerID, ok := GetWorkerID(ctx, c); ok {
		return "worker:" + strconv.FormatInt(workerID, 10)
	}
	return "ip:" + c.ClientIP()
}

// Allow 返回是否放行以及窗口内已有的请求数
func (rl *RateLimiter) Allow(ctx context.Context, identity string) (bool, int, error) {
	key := redis.Key(rl.config.KeyPrefix, identity)
	now := rl.now()
	windowStart := now.Add(-rl.config.Window)

	pipe := rl.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, key, goredis.Z{
		Score:  float64(now.UnixNano()),
		Member: now.UnixNano(),
	})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, rl.config.Window+10*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to execute rate limit pipeline: %w", err)
	}

	count := int(card.Val())
	return count <= rl.config.MaxRequests, count, nil
}

func (rl *RateLimiter) blockKey(identity string) string {
	return redis.Key(rl.config.KeyPrefix, "block", identity)
}

func (rl *RateLimiter) Block(ctx context.Context, identity string) error {
	if rl.config.BlockDuration <= 0 {
		return nil
	}
	return rl.client.Set(ctx, rl.blockKey(identity), "1", rl.config.BlockDuration).Err()
}

func (rl *RateLimiter) IsBlocked(ctx context.Context, identity string) (bool, error) {
	if rl.config.BlockDuration <= 0 {
		return false, nil
	}
	n, err := rl.client.Exists(ctx, rl.blockKey(identity)).Result()
	return n > 0, err
}

// Handler 放在认证之后，才能按工人区分
func (rl *RateLimiter) Handler() app.HandlerFunc {
	log := logger.Named("ratelimit")

	return func(ctx context.Context, c *app.RequestContext) {
		identity := rl.identify(ctx, c)

		blocked, err := rl.IsBlocked(ctx, identity)
		if err != nil {
			// Redis 故障时放行，不阻断打卡
			log.Error("Failed to check block status", zap.String("identity", identity), zap.Error(err))
			c.Next(ctx)
			return
		}
		if blocked {
			response.Error(ctx, c, errors.TooManyRequests)
			c.Abort()
			return
		}

		allowed, count, err := rl.Allow(ctx, identity)
		if err != nil {
			log.Error("Failed to check rate limit", zap.String("identity", identity), zap.Error(err))
			c.Next(ctx)
			return
		}

		remaining := rl.config.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(rl.config.MaxRequests))
		c.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Response.Header.Set("X-RateLimit-Reset", strconv.FormatInt(rl.now().Add(rl.config.Window).Unix(), 10))

		if !allowed {
			if err := rl.Block(ctx, identity); err != nil {
				log.Error("Failed to block identity", zap.String("identity", identity), zap.Error(err))
			}
			log.Warn("Rate limit exceeded", zap.String("identity", identity), zap.String("path", string(c.Path())))
			response.Error(ctx, c, errors.TooManyRequests)
			c.Abort()
			return
		}

		c.Next(ctx)
	}
}

// RateLimitMiddleware 每个配置一个限流器，同前缀的路由共享额度
func RateLimitMiddleware(client goredis.Cmdable, config RateLimitConfig) app.HandlerFunc {
	return NewRateLimiter(client, config).Handler()
}
