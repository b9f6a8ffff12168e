package schedule

// 收工：关闭仍未结束的会话，再做当日工时汇总

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/service"
)

const dayEndJob = "day_end"

// DayEndReport 收工关闭与日结两步的结果
type DayEndReport struct {
	Close       *service.CloseAllReport    `json:"close,omitempty"`
	Aggregation *service.AggregationReport `json:"aggregation,omitempty"`
	Date        string                     `json:"date"`
	Skipped     bool                       `json:"skipped"`
}

type DayEndScheduler struct {
	service.Deps
	sessions *service.SessionService
	worktime *service.WorktimeService
	markers  JobMarker
	runner   *runner
}

func NewDayEndScheduler(deps service.Deps, sessions *service.SessionService, worktime *service.WorktimeService,
	markers JobMarker, locker Locker) *DayEndScheduler {
	deps = deps.WithDefaults()
	return &DayEndScheduler{
		Deps:     deps,
		sessions: sessions,
		worktime: worktime,
		markers:  markers,
		runner: &runner{
			name:    dayEndJob,
			locker:  locker,
			lockTTL: 30 * time.Minute,
			logger:  deps.Logger.Named("day_end"),
		},
	}
}

// RunToday 汇总工作日时区下的当天
func (s *DayEndScheduler) RunToday(ctx context.Context) (*DayEndReport, error) {
	return s.Run(ctx, workDate(s.Clock.Now(), s.Policy.Location))
}

func (s *DayEndScheduler) Run(ctx context.Context, date string) (*DayEndReport, error) {
	report := &DayEndReport{Date: date, Skipped: true}

	_, err := s.runner.run(ctx, func(ctx context.Context) error {
		done, err := s.markers.IsJobDone(ctx, dayEndJob, date)
		if err != nil {
			return err
		}
		if done {
			s.Logger.Info("Day end already done, skipping", zap.String("date", date))
			return nil
		}
		report.Skipped = false

		report.Close, err = s.sessions.CloseOpenSessions(ctx, model.CloseReasonEndOfShift)
		if err != nil {
			return err
		}

		report.Aggregation, err = s.worktime.AggregateDay(ctx, date)
		if err != nil {
			return err
		}

		s.Logger.Info("Day end completed",
			zap.String("date", date),
			zap.Int("closed", report.Close.Closed),
			zap.Int("close_failed", report.Close.Failed()),
			zap.Int("summaries", len(report.Aggregation.Summaries)),
			zap.Int("payroll_errors", report.Aggregation.PayrollErrors),
			zap.Int("aggregation_failed", report.Aggregation.Failed()),
		)

		// 未知岗位重跑也无法修复，不阻止打标记
		if report.Close.Failed() > 0 || report.Aggregation.Failed() > report.Aggregation.PayrollErrors {
			return nil
		}
		return s.markers.MarkJobDone(ctx, dayEndJob, date)
	})
	return report, err
}
