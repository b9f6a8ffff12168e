package schedule

// 自动下班：定位静默确认后按 GPS_LOST 关闭，超长会话按 INACTIVITY 关闭

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/service"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
)

const autoCheckoutJob = "auto_checkout"

// OfflineMarker 由 service.PresenceService 实现
type OfflineMarker interface {
	MarkOffline(ctx context.Context, workerID int64) error
}

// SweepReport 一次扫描的结果
type SweepReport struct {
	service.Report
	Closed        map[model.CloseReason]int `json:"closed"`
	Silent        int                       `json:"silent"`
	AlreadyClosed int                       `json:"already_closed"`
	Skipped       bool                      `json:"skipped"`
}

type AutoCheckoutSweeper struct {
	service.Deps
	closer  service.SessionCloser
	offline OfflineMarker
	runner  *runner
}

func NewAutoCheckoutSweeper(deps service.Deps, closer service.SessionCloser, offline OfflineMarker, locker Locker) *AutoCheckoutSweeper {
	deps = deps.WithDefaults()
	log := deps.Logger.Named(autoCheckoutJob)
	return &AutoCheckoutSweeper{
		Deps:    deps,
		closer:  closer,
		offline: offline,
		runner: &runner{
			name:    autoCheckoutJob,
			locker:  locker,
			lockTTL: holdTTL(deps.Policy.SweepInterval),
			hold:    true,
			logger:  log,
		},
	}
}

// Sweep 每个周期执行一次。单个工人失败记入报告，不中断整批
func (s *AutoCheckoutSweeper) Sweep(ctx context.Context) (*SweepReport, error) {
	now := s.Clock.Now()
	report := &SweepReport{
		Report: service.NewReport(now),
		Closed: make(map[model.CloseReason]int),
	}

	ran, err := s.runner.run(ctx, func(ctx context.Context) error {
		return s.sweep(ctx, now, report)
	})
	report.Skipped = !ran
	report.FinishedAt = s.Clock.Now()
	return report, err
}

func (s *AutoCheckoutSweeper) sweep(ctx context.Context, now time.Time, report *SweepReport) error {
	sessions, err := s.Repos.Sessions.ListOpen(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return nil
	}

	workerIDs := make([]int64, 0, len(sessions))
	for _, session := range sessions {
		workerIDs = append(workerIDs, session.WorkerID)
	}
	snaps, err := s.Repos.Presence.GetMany(ctx, workerIDs)
	if err != nil {
		return err
	}

	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Processed++

		if err := s.sweepSession(ctx, session, snaps[session.WorkerID], now, report); err != nil {
			s.Logger.Error("Failed to sweep session",
				zap.Int64("session_id", session.ID),
				zap.Int64("worker_id", session.WorkerID),
				zap.Error(err),
			)
			report.Fail(session.WorkerID, err)
		}
	}

	s.Logger.Info("Auto checkout sweep completed",
		zap.String("run_id", report.RunID),
		zap.Int("sessions", report.Processed),
		zap.Int("silent", report.Silent),
		zap.Int("gps_lost", report.Closed[model.CloseReasonGPSLost]),
		zap.Int("inactivity", report.Closed[model.CloseReasonInactivity]),
		zap.Int("already_closed", report.AlreadyClosed),
		zap.Int("failed", report.Failed()),
	)
	return nil
}

func (s *AutoCheckoutSweeper) sweepSession(ctx context.Context, session *model.WorkSession, snap *model.PresenceSnapshot,
	now time.Time, report *SweepReport) error {
	if limit := s.Policy.MaxSessionDuration; limit > 0 && now.Sub(session.OpenedAt) > limit {
		_, err := s.close(ctx, session, model.CloseReasonInactivity, report)
		return err
	}

	// 开工时写入快照失败的会话只受最长时长约束
	if snap == nil {
		return nil
	}

	if !s.silent(snap, now) {
		if snap.ConsecutiveMisses > 0 {
			return s.Repos.Presence.ResetMisses(ctx, session.WorkerID)
		}
		return nil
	}
	report.Silent++

	misses, ok, err := s.Repos.Presence.IncrementMisses(ctx, session.WorkerID, snap.LastSeenAt)
	if err != nil {
		return err
	}
	if !ok {
		// 读取后有新定位写入
		return nil
	}
	if misses < s.Policy.GPSConfirmMisses {
		s.Logger.Debug("Worker silent, waiting for confirmation",
			zap.Int64("worker_id", session.WorkerID),
			zap.Int("misses", misses),
		)
		return nil
	}

	fresh, err := s.Repos.Presence.Get(ctx, session.WorkerID)
	if err != nil {
		return err
	}
	if fresh == nil || !s.silent(fresh, now) {
		return nil
	}

	closed, err := s.close(ctx, session, model.CloseReasonGPSLost, report)
	if err != nil || !closed {
		return err
	}
	return s.offline.MarkOffline(ctx, session.WorkerID)
}

// silent GPS 关闭，或超过静默阈值没有新定位
func (s *AutoCheckoutSweeper) silent(snap *model.PresenceSnapshot, now time.Time) bool {
	return !snap.GPSEnabled || now.Sub(snap.LastSeenAt) > s.Policy.GPSSilenceThreshold
}

func (s *AutoCheckoutSweeper) close(ctx context.Context, session *model.WorkSession, reason model.CloseReason, report *SweepReport) (bool, error) {
	_, err := s.closer.CloseSession(ctx, service.CloseRequest{SessionID: session.ID, Reason: reason})
	if stderrors.Is(err, errors.SessionNotOpen) {
		report.AlreadyClosed++
		return false, nil
	}
	if err != nil {
		return false, err
	}

	report.Closed[reason]++
	s.Logger.Info("Session closed automatically",
		zap.Int64("session_id", session.ID),
		zap.Int64("worker_id", session.WorkerID),
		zap.String("reason", string(reason)),
	)
	return true, nil
}
