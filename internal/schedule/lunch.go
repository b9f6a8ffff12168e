package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/service"
)

const (
	lunchTickJob   = "lunch_tick"
	breakReviewJob = "break_review"
)

// LunchScheduler 午休巡检（每分钟）与跳过午休的次日复核
type LunchScheduler struct {
	service.Deps
	lunch   *service.LunchService
	markers JobMarker
	tick    *runner
	review  *runner
}

func NewLunchScheduler(deps service.Deps, lunch *service.LunchService, markers JobMarker, locker Locker, tickInterval time.Duration) *LunchScheduler {
	deps = deps.WithDefaults()
	log := deps.Logger.Named("lunch_scheduler")
	return &LunchScheduler{
		Deps:    deps,
		lunch:   lunch,
		markers: markers,
		tick: &runner{
			name:    lunchTickJob,
			locker:  locker,
			lockTTL: holdTTL(tickInterval),
			hold:    true,
			logger:  log,
		},
		review: &runner{
			name:    breakReviewJob,
			locker:  locker,
			lockTTL: 10 * time.Minute,
			logger:  log,
		},
	}
}

// Tick 被跳过时返回 nil 报告
func (s *LunchScheduler) Tick(ctx context.Context) (*service.LunchTickReport, error) {
	var report *service.LunchTickReport
	_, err := s.tick.run(ctx, func(ctx context.Context) error {
		var err error
		report, err = s.lunch.Tick(ctx)
		return err
	})
	if report != nil && (report.Prompted > 0 || report.Alerts > 0 || report.TimedOut > 0 || report.Failed() > 0) {
		s.Logger.Info("Lunch tick completed",
			zap.String("run_id", report.RunID),
			zap.Int("prompted", report.Prompted),
			zap.Int("alerts", report.Alerts),
			zap.Int("timed_out", report.TimedOut),
			zap.Int("failed", report.Failed()),
		)
	}
	return report, err
}

// ReviewPreviousDay 复核工作日时区下的前一天，完成后打标记防止重复执行
func (s *LunchScheduler) ReviewPreviousDay(ctx context.Context) (*service.BreakReviewReport, error) {
	date := workDate(s.Clock.Now().In(s.Policy.Location).AddDate(0, 0, -1), s.Policy.Location)
	return s.Review(ctx, date)
}

func (s *LunchScheduler) Review(ctx context.Context, date string) (*service.BreakReviewReport, error) {
	var report *service.BreakReviewReport
	_, err := s.review.run(ctx, func(ctx context.Context) error {
		done, err := s.markers.IsJobDone(ctx, breakReviewJob, date)
		if err != nil {
			return err
		}
		if done {
			s.Logger.Info("Break review already done, skipping", zap.String("date", date))
			return nil
		}

		report, err = s.lunch.ReviewSkippedBreaks(ctx, date)
		if err != nil {
			return err
		}
		s.Logger.Info("Break review completed",
			zap.String("date", date),
			zap.String("run_id", report.RunID),
			zap.Int("penalized", report.Penalized),
			zap.Int("failed", report.Failed()),
		)
		// 有失败时不打标记，下次调度重试；已扣分的记录由 CAS 保证不重复
		if report.Failed() > 0 {
			return nil
		}
		return s.markers.MarkJobDone(ctx, breakReviewJob, date)
	})
	return report, err
}
