package cache

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/RodrigoCConte/monofloor-admin-sub002/storage/redis"
)

const (
	messageProcessedPrefix = "message:processed"
	jobDonePrefix          = "job:done"

	processingTTL = 24 * time.Hour
	processedTTL  = 48 * time.Hour
	jobDoneTTL    = 72 * time.Hour
)

// Markers 消息幂等与每日任务完成标记
type Markers struct {
	client goredis.Cmdable
}

func NewMarkers(client goredis.Cmdable) *Markers {
	return &Markers{client: client}
}

// TryMarkMessageProcessing 尝试原子性地标记消息正在处理（使用 SETNX）
// 返回 true 表示成功标记（首次处理），false 表示已被标记（重复消息或正在处理）
func (m *Markers) TryMarkMessageProcessing(ctx context.Context, messageID string) (bool, error) {
	ok, err := m.client.SetNX(ctx, redis.Key(messageProcessedPrefix, messageID), "processing", processingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processing: %w", err)
	}
	return ok, nil
}

// UnmarkMessageProcessing 处理失败时清除标记，允许重投后重试
func (m *Markers) UnmarkMessageProcessing(ctx context.Context, messageID string) error {
	return m.client.Del(ctx, redis.Key(messageProcessedPrefix, messageID)).Err()
}

// MarkMessageProcessed 处理成功后延长标记
func (m *Markers) MarkMessageProcessed(ctx context.Context, messageID string) error {
	return m.client.Set(ctx, redis.Key(messageProcessedPrefix, messageID), "completed", processedTTL).Err()
}

// IsJobDone 某个每日任务在 date 是否已完成
func (m *Markers) IsJobDone(ctx context.Context, job, date string) (bool, error) {
	n, err := m.client.Exists(ctx, redis.Key(jobDonePrefix, job, date)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check job marker: %w", err)
	}
	return n > 0, nil
}

// MarkJobDone 记录每日任务完成，重启后不会重复执行
func (m *Markers) MarkJobDone(ctx context.Context, job, date string) error {
	return m.client.Set(ctx, redis.Key(jobDonePrefix, job, date), time.Now().UTC().Format(time.RFC3339), jobDoneTTL).Err()
}
