package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/service"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/clock"
)

const absenceJob = "absence_detection"

type AbsenceScheduler struct {
	service.Deps
	absence *service.AbsenceService
	markers JobMarker
	runner  *runner
}

func NewAbsenceScheduler(deps service.Deps, absence *service.AbsenceService, markers JobMarker, locker Locker) *AbsenceScheduler {
	deps = deps.WithDefaults()
	return &AbsenceScheduler{
		Deps:    deps,
		absence: absence,
		markers: markers,
		runner: &runner{
			name:    absenceJob,
			locker:  locker,
			lockTTL: 10 * time.Minute,
			logger:  deps.Logger.Named("absence_scheduler"),
		},
	}
}

// DetectToday 先补查前一天（覆盖上次检测之后才开始的任务），再检测工作日时区下的当天
func (s *AbsenceScheduler) DetectToday(ctx context.Context) (*service.AbsenceReport, error) {
	today := clock.DayOf(s.Clock.Now(), s.Policy.Location)
	yesterday := today.AddDate(0, 0, -1).Format(model.DateLayout)
	if _, err := s.Detect(ctx, yesterday); err != nil {
		s.Logger.Warn("Absence catch-up for previous day failed",
			zap.String("date", yesterday),
			zap.Error(err),
		)
	}
	return s.Detect(ctx, today.Format(model.DateLayout))
}

// Detect 插入本身是幂等的。仍有未开始的任务或有失败时不写完成标记
func (s *AbsenceScheduler) Detect(ctx context.Context, date string) (*service.AbsenceReport, error) {
	var report *service.AbsenceReport
	_, err := s.runner.run(ctx, func(ctx context.Context) error {
		done, err := s.markers.IsJobDone(ctx, absenceJob, date)
		if err != nil {
			return err
		}
		if done {
			s.Logger.Debug("Absence detection already done, skipping", zap.String("date", date))
			return nil
		}

		report, err = s.absence.DetectAbsences(ctx, date)
		if err != nil {
			return err
		}
		s.Logger.Info("Absence detection completed",
			zap.String("date", date),
			zap.String("run_id", report.RunID),
			zap.Int("inserted", report.Inserted),
			zap.Int("unreported", report.Unreported),
			zap.Int("pending", report.Pending),
			zap.Int("failed", report.Failed()),
		)
		if report.Failed() > 0 || report.Pending > 0 {
			return nil
		}
		return s.markers.MarkJobDone(ctx, absenceJob, date)
	})
	return report, err
}
