package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/clock"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/metrics"
)

// Locker 跨副本互斥，由 cache.RedisLocker 实现
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// JobMarker 每日任务完成标记，由 cache.Markers 实现
type JobMarker interface {
	IsJobDone(ctx context.Context, job, date string) (bool, error)
	MarkJobDone(ctx context.Context, job, date string) error
}

// runner 同一进程内不重入；配置了 locker 时同一时刻只有一个副本执行。
// hold=true 时锁不主动释放，等 TTL 过期，周期任务据此保证每个周期只跑一次。
type runner struct {
	name    string
	locker  Locker
	lockTTL time.Duration
	hold    bool
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
}

// run 返回 false 表示本次被跳过
func (r *runner) run(ctx context.Context, fn func(context.Context) error) (bool, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		r.logger.Info("Job already running, skipping", zap.String("job", r.name))
		return false, nil
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	if r.locker != nil {
		ok, err := r.locker.TryLock(ctx, r.name, r.lockTTL)
		if err != nil {
			r.logger.Error("Failed to acquire job lock", zap.String("job", r.name), zap.Error(err))
			return false, err
		}
		if !ok {
			r.logger.Debug("Job locked by another replica, skipping", zap.String("job", r.name))
			return false, nil
		}
		if !r.hold {
			defer func() {
				if err := r.locker.Unlock(context.WithoutCancel(ctx), r.name); err != nil {
					r.logger.Warn("Failed to release job lock", zap.String("job", r.name), zap.Error(err))
				}
			}()
		}
	}

	startTime := time.Now()
	err := fn(ctx)
	metrics.GetMetrics().RecordJob(ctx, r.name, time.Since(startTime).Seconds(), err != nil)

	return true, err
}

// holdTTL 周期锁略短于周期，避免下个周期因锁未过期而被跳过
func holdTTL(interval time.Duration) time.Duration {
	ttl := interval * 9 / 10
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}

func workDate(t time.Time, loc *time.Location) string {
	return clock.DayOf(t, loc).Format(model.DateLayout)
}
