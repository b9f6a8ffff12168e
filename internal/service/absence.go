package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/clock"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/metrics"
)

// AbsenceReport 缺勤检测结果
type AbsenceReport struct {
	Report
	Date       string `json:"date"`
	Inserted   int    `json:"inserted"`
	Notified   int    `json:"notified"`
	Unreported int    `json:"unreported"`
	// Pending 检测时尚未开始的任务数，需要之后再检测一次
	Pending int `json:"pending"`
}

// AbsenceService 排班任务没有对应会话时记录缺勤
type AbsenceService struct {
	Deps
	schedule ScheduleProvider
}

func NewAbsenceService(deps Deps, schedule ScheduleProvider) *AbsenceService {
	return &AbsenceService{Deps: deps.WithDefaults(), schedule: schedule}
}

// DetectAbsences 重复执行是幂等的：只有新插入的记录才会扣分、重置倍率
func (s *AbsenceService) DetectAbsences(ctx context.Context, date string) (*AbsenceReport, error) {
	day, err := clock.ParseDate(date, s.Policy.location())
	if err != nil {
		return nil, errors.DateInvalid
	}
	report := &AbsenceReport{Report: NewReport(s.Clock.Now()), Date: date}

	workers, err := s.Repos.Workers.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	for _, w := range workers {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Processed++
		if err := s.detectWorker(ctx, w, day, date, report); err != nil {
			s.Logger.Error("absence detection failed",
				zap.Int64("worker_id", w.ID),
				zap.String("date", date),
				zap.Error(err),
			)
			report.Fail(w.ID, err)
		}
	}

	report.FinishedAt = s.Clock.Now()
	s.Logger.Info("absence detection finished",
		zap.String("date", date),
		zap.String("run_id", report.RunID),
		zap.Int("inserted", report.Inserted),
		zap.Int("pending", report.Pending),
		zap.Int("failed", report.Failed()),
	)
	return report, nil
}

func (s *AbsenceService) detectWorker(ctx context.Context, w *model.Worker, day time.Time, date string, report *AbsenceReport) error {
	tasks, err := s.schedule.ScheduledTasksForWorker(ctx, w.ID, day)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	notice, err := s.Repos.Absences.GetNotice(ctx, w.ID, date)
	if err != nil {
		return err
	}

	now := s.Clock.Now()
	for _, task := range tasks {
		if task.StartsAt.After(now) {
			report.Pending++
			continue
		}

		sessions, err := s.Repos.Sessions.ListOverlapping(ctx, w.ID, task.StartsAt, task.EndsAt)
		if err != nil {
			return err
		}
		if len(sessions) > 0 {
			continue
		}

		rec := &model.AbsenceRecord{
			WorkerID:       w.ID,
			AbsenceDate:    date,
			SiteID:         task.SiteID,
			ScheduledStart: task.StartsAt,
			ScheduledEnd:   task.EndsAt,
			TaskRef:        task.TaskRef,
			Kind:           model.AbsenceKindUnreported,
		}
		xp := s.Policy.AbsenceUnreportedXP
		if notice != nil {
			rec.Kind = model.AbsenceKindNotified
			rec.Reason = notice.Reason
			xp = s.Policy.AbsenceNotifiedXP
		}

		inserted, err := s.Repos.Absences.InsertIfAbsent(ctx, rec)
		if err != nil {
			return err
		}
		if !inserted {
			continue
		}

		report.Inserted++
		if rec.Kind == model.AbsenceKindNotified {
			report.Notified++
		} else {
			report.Unreported++
		}
		metrics.GetMetrics().RecordAbsence(ctx, string(rec.Kind))

		if err := s.applySideEffects(ctx, rec, xp); err != nil {
			return err
		}
	}
	return nil
}

// applySideEffects 失败时仍写回已生效的部分，记录不会被重新处理
func (s *AbsenceService) applySideEffects(ctx context.Context, rec *model.AbsenceRecord, xp int) error {
	applied := 0
	reset := false

	var effectErr error
	if xp > 0 {
		if err := s.Gamification.ApplyPenalty(ctx, rec.WorkerID, xp, "absence_"+string(rec.Kind)); err != nil {
			effectErr = fmt.Errorf("failed to apply absence penalty: %w", err)
		} else {
			applied = xp
		}
	}
	if effectErr == nil && rec.Kind == model.AbsenceKindUnreported {
		if err := s.Gamification.ResetMultiplier(ctx, rec.WorkerID); err != nil {
			effectErr = fmt.Errorf("failed to reset multiplier: %w", err)
		} else {
			reset = true
		}
	}

	if err := s.Repos.Absences.UpdatePenalty(ctx, rec.ID, applied, reset); err != nil {
		return fmt.Errorf("failed to record absence penalty: %w", err)
	}
	rec.XPPenalty, rec.MultiplierReset = applied, reset

	s.Logger.Info("absence recorded",
		zap.Int64("worker_id", rec.WorkerID),
		zap.Int64("site_id", rec.SiteID),
		zap.String("kind", string(rec.Kind)),
		zap.Int("xp_penalty", applied),
		zap.Bool("multiplier_reset", reset),
	)
	return effectErr
}

// ReportAbsence 工人提前报备缺勤，同一天重复报备覆盖原因
func (s *AbsenceService) ReportAbsence(ctx context.Context, workerID int64, date, reason string) (*model.AbsenceNotice, error) {
	if _, err := clock.ParseDate(date, s.Policy.location()); err != nil {
		return nil, errors.DateInvalid
	}
	reason = strings.TrimSpace(reason)
	if reason == "" || len(reason) > 300 {
		return nil, fmt.Errorf("%w: reason must be 1-300 characters", errors.InvalidRequest)
	}
	if _, err := s.Repos.Workers.Get(ctx, workerID); err != nil {
		return nil, err
	}

	notice := &model.AbsenceNotice{
		WorkerID:   workerID,
		NoticeDate: date,
		Reason:     reason,
		ReportedAt: s.Clock.Now(),
	}
	if err := s.Repos.Absences.UpsertNotice(ctx, notice); err != nil {
		return nil, err
	}
	return s.Repos.Absences.GetNotice(ctx, workerID, date)
}

// ListAbsences 某工人 [from, to] 内的缺勤记录
func (s *AbsenceService) ListAbsences(ctx context.Context, workerID int64, from, to string) ([]*model.AbsenceRecord, error) {
	if err := s.checkDateRange(from, to); err != nil {
		return nil, err
	}
	return s.Repos.Absences.ListForWorker(ctx, workerID, from, to)
}
