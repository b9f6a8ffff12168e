package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/repository"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/clock"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/metrics"
)

// maxRangeDays 按日期范围查询时最多跨越的天数
const maxRangeDays = 62

// Deps 各服务共享的依赖，由 bootstrap 组装，测试中替换为内存实现
type Deps struct {
	Repos        *repository.Repositories
	Publisher    Publisher
	Gamification Gamification
	Clock        clock.Clock
	Policy       Policy
	Logger       *zap.Logger
}

func (d Deps) WithDefaults() Deps {
	if d.Publisher == nil {
		d.Publisher = nopPublisher{}
	}
	if d.Gamification == nil {
		d.Gamification = nopGamification{}
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Policy.Location == nil {
		d.Policy.Location = DefaultPolicy().Location
	}
	return d
}

// publish 通知失败只记日志与指标
func (d Deps) publish(ctx context.Context, topic string, payload interface{}) {
	if err := d.Publisher.Publish(ctx, topic, payload); err != nil {
		d.Logger.Warn("failed to publish event",
			zap.String("topic", topic),
			zap.Error(err),
		)
		metrics.GetMetrics().RecordPublishFailure(ctx, topic)
	}
}

// workDate 按工作日时区取 t 所属日期
func (d Deps) workDate(t time.Time) string {
	return clock.DayOf(t, d.Policy.location()).Format(model.DateLayout)
}

// checkDateRange from、to 均为 YYYY-MM-DD，闭区间
func (d Deps) checkDateRange(from, to string) error {
	loc := d.Policy.location()
	start, err := clock.ParseDate(from, loc)
	if err != nil {
		return errors.DateInvalid
	}
	end, err := clock.ParseDate(to, loc)
	if err != nil {
		return errors.DateInvalid
	}
	if end.Before(start) {
		return fmt.Errorf("%w: to must not be before from", errors.InvalidRequest)
	}
	if end.After(start.AddDate(0, 0, maxRangeDays)) {
		return fmt.Errorf("%w: range must not exceed %d days", errors.InvalidRequest, maxRangeDays)
	}
	return nil
}
