package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/clock"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/metrics"
)

const skippedBreakReason = "skipped_break"

// LunchTickReport 午休巡检结果
type LunchTickReport struct {
	Report
	Prompted int `json:"prompted"`
	Alerts   int `json:"alerts"`
	TimedOut int `json:"timed_out"`
}

// BreakReviewReport 跳过午休的次日复核
type BreakReviewReport struct {
	Report
	Penalized int `json:"penalized"`
}

// LunchService 午休状态机：NOT_STARTED -> PROMPTED -> ON_BREAK -> RETURNED，或 SKIPPED。
// 只标注会话，不会开启或拆分会话。
type LunchService struct {
	Deps
	closer SessionCloser
}

func NewLunchService(deps Deps, closer SessionCloser) *LunchService {
	return &LunchService{Deps: deps.WithDefaults(), closer: closer}
}

// Tick 每分钟执行：到点提醒、午休超时告警与超时关闭
func (s *LunchService) Tick(ctx context.Context) (*LunchTickReport, error) {
	now := s.Clock.Now()
	report := &LunchTickReport{Report: NewReport(now)}

	sessions, err := s.Repos.Sessions.ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Processed++
		if err := s.tickSession(ctx, session, now, report); err != nil {
			s.Logger.Error("lunch tick failed",
				zap.Int64("worker_id", session.WorkerID),
				zap.Int64("session_id", session.ID),
				zap.Error(err),
			)
			report.Fail(session.WorkerID, err)
		}
	}

	report.FinishedAt = s.Clock.Now()
	return report, nil
}

func (s *LunchService) tickSession(ctx context.Context, session *model.WorkSession, now time.Time, report *LunchTickReport) error {
	elapsed := now.Sub(session.OpenedAt)

	rec, err := s.Repos.Lunch.GetBySession(ctx, session.ID)
	if err != nil {
		return err
	}
	if rec == nil {
		if elapsed < s.Policy.LunchPromptAfter {
			return nil
		}
		rec, err = s.Repos.Lunch.GetOrCreate(ctx, s.newRecord(session))
		if err != nil {
			return err
		}
	}

	switch rec.State {
	case model.LunchStateNotStarted:
		if elapsed < s.Policy.LunchPromptAfter {
			return nil
		}
		ok, err := s.Repos.Lunch.Transition(ctx, rec.ID,
			[]model.LunchState{model.LunchStateNotStarted},
			map[string]interface{}{"state": model.LunchStatePrompted, "prompted_at": now.UTC()},
		)
		if err != nil || !ok {
			return err
		}
		report.Prompted++
		s.publish(ctx, model.TopicLunchPrompt, &model.LunchPromptEvent{
			WorkerID:  session.WorkerID,
			SessionID: session.ID,
			At:        now,
		})

	case model.LunchStateOnBreak:
		return s.checkBreak(ctx, session, rec, now, report)
	}
	return nil
}

func (s *LunchService) checkBreak(ctx context.Context, session *model.WorkSession, rec *model.LunchRecord, now time.Time, report *LunchTickReport) error {
	if rec.BreakStart == nil {
		return nil
	}
	onBreak := now.Sub(*rec.BreakStart)

	if s.Policy.LunchTimeoutAfter > 0 && onBreak > s.Policy.LunchTimeoutAfter {
		_, err := s.closer.CloseSession(ctx, CloseRequest{SessionID: session.ID, Reason: model.CloseReasonLunchTimeout})
		if err != nil {
			if stderrors.Is(err, errors.SessionNotOpen) {
				return nil
			}
			return err
		}
		report.TimedOut++
		return nil
	}

	minutes := int(onBreak / time.Minute)
	thresholds := slices.Clone(s.Policy.LunchAlertMinutes)
	slices.Sort(thresholds)
	for _, threshold := range thresholds {
		if minutes < threshold {
			break
		}
		ok, err := s.Repos.Lunch.AppendAlert(ctx, rec, threshold)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		report.Alerts++
		metrics.GetMetrics().RecordLunchAlert(ctx, threshold)
		s.publish(ctx, model.TopicLunchAlert, &model.LunchAlertEvent{
			WorkerID:         session.WorkerID,
			SessionID:        session.ID,
			ThresholdMinutes: threshold,
			ElapsedMinutes:   minutes,
			At:               now,
		})
	}
	return nil
}

func (s *LunchService) newRecord(session *model.WorkSession) *model.LunchRecord {
	return &model.LunchRecord{
		SessionID:  session.ID,
		WorkerID:   session.WorkerID,
		WorkDate:   s.workDate(session.OpenedAt),
		State:      model.LunchStateNotStarted,
		AlertsSent: model.IntList{},
	}
}

// StartBreak 工人在客户端点击开始午休
func (s *LunchService) StartBreak(ctx context.Context, workerID int64) (*model.LunchRecord, error) {
	session, err := s.openSession(ctx, workerID)
	if err != nil {
		return nil, err
	}

	rec, err := s.Repos.Lunch.GetOrCreate(ctx, s.newRecord(session))
	if err != nil {
		return nil, err
	}
	if !rec.State.CanStartBreak() {
		return nil, errors.LunchTransitionInvalid
	}

	ok, err := s.Repos.Lunch.Transition(ctx, rec.ID,
		[]model.LunchState{model.LunchStateNotStarted, model.LunchStatePrompted},
		map[string]interface{}{"state": model.LunchStateOnBreak, "break_start": s.Clock.Now().UTC()},
	)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.LunchTransitionInvalid
	}
	return s.Repos.Lunch.GetBySession(ctx, session.ID)
}

// EndBreak 工人结束午休
func (s *LunchService) EndBreak(ctx context.Context, workerID int64) (*model.LunchRecord, error) {
	session, err := s.openSession(ctx, workerID)
	if err != nil {
		return nil, err
	}

	rec, err := s.Repos.Lunch.GetBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.LunchNotFound
	}

	ok, err := s.Repos.Lunch.Transition(ctx, rec.ID,
		[]model.LunchState{model.LunchStateOnBreak},
		map[string]interface{}{"state": model.LunchStateReturned, "break_end": s.Clock.Now().UTC()},
	)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.LunchTransitionInvalid
	}
	return s.Repos.Lunch.GetBySession(ctx, session.ID)
}

func (s *LunchService) openSession(ctx context.Context, workerID int64) (*model.WorkSession, error) {
	session, err := s.Repos.Sessions.FindOpenByWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.NoOpenSession
	}
	return session, nil
}

// AdjustBreak 事后人工补录午休，清除跳过标记。已扣分的记录不可再调整
func (s *LunchService) AdjustBreak(ctx context.Context, sessionID int64, start, end time.Time) (*model.LunchRecord, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: break end must be after start", errors.InvalidRequest)
	}

	session, err := s.Repos.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rec, err := s.Repos.Lunch.GetOrCreate(ctx, s.newRecord(session))
	if err != nil {
		return nil, err
	}

	err = s.Repos.Lunch.Adjust(ctx, rec.ID, map[string]interface{}{
		"state":       model.LunchStateReturned,
		"break_start": start.UTC(),
		"break_end":   end.UTC(),
		"skipped":     false,
		"adjusted":    true,
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("lunch break adjusted",
		zap.Int64("worker_id", session.WorkerID),
		zap.Int64("session_id", session.ID),
		zap.Time("break_start", start),
		zap.Time("break_end", end),
	)
	return s.Repos.Lunch.GetBySession(ctx, session.ID)
}

// OnSessionClosed 会话关闭时收尾午休记录
func (s *LunchService) OnSessionClosed(ctx context.Context, session *model.WorkSession) error {
	if session.ClosedAt == nil {
		return nil
	}
	closedAt := session.ClosedAt.UTC()
	longShift, err := s.breakOwed(ctx, session)
	if err != nil {
		return err
	}

	rec, err := s.Repos.Lunch.GetBySession(ctx, session.ID)
	if err != nil {
		return err
	}
	if rec == nil {
		if !longShift {
			return nil
		}
		if rec, err = s.Repos.Lunch.GetOrCreate(ctx, s.newRecord(session)); err != nil {
			return err
		}
	}

	updates := map[string]interface{}{"finalized_at": closedAt}
	switch rec.State {
	case model.LunchStateNotStarted, model.LunchStatePrompted:
		if longShift {
			updates["state"] = model.LunchStateSkipped
			updates["skipped"] = true
		}
	case model.LunchStateOnBreak:
		updates["state"] = model.LunchStateReturned
		updates["break_end"] = closedAt
	}

	ok, err := s.Repos.Lunch.Transition(ctx, rec.ID, []model.LunchState{rec.State}, updates)
	if err != nil {
		return err
	}
	if ok && updates["skipped"] == true {
		s.Logger.Info("lunch break skipped",
			zap.Int64("worker_id", session.WorkerID),
			zap.Int64("session_id", session.ID),
			zap.String("hours_worked", session.Hours().StringFixed(2)),
		)
	}
	return nil
}

// breakOwed 当天已关闭会话的总工时超过强制线，且当天其他会话既没有休息也没有被标记跳过。
// 一天最多只标记一次跳过。
func (s *LunchService) breakOwed(ctx context.Context, session *model.WorkSession) (bool, error) {
	loc := s.Policy.location()
	from, to := clock.DayBounds(clock.DayOf(session.OpenedAt, loc), loc)

	sessions, err := s.Repos.Sessions.ListClosedOpenedBetween(ctx, session.WorkerID, from, to)
	if err != nil {
		return false, err
	}
	total := decimal.Zero
	counted := false
	for _, ss := range sessions {
		if ss.ID == session.ID {
			counted = true
		}
		total = total.Add(ss.Hours())
	}
	if !counted {
		total = total.Add(session.Hours())
	}
	if !total.GreaterThan(decimal.NewFromFloat(s.Policy.BreakMandatoryHours)) {
		return false, nil
	}

	records, err := s.Repos.Lunch.ListForWorkerDate(ctx, session.WorkerID, s.workDate(session.OpenedAt))
	if err != nil {
		return false, err
	}
	for _, rec := range records {
		if rec.SessionID == session.ID {
			continue
		}
		if rec.Skipped || rec.BreakDuration() > 0 {
			return false, nil
		}
	}
	return true, nil
}

// ReviewSkippedBreaks 对 date 当天跳过午休的记录扣分，每条只扣一次
func (s *LunchService) ReviewSkippedBreaks(ctx context.Context, date string) (*BreakReviewReport, error) {
	if _, err := clock.ParseDate(date, s.Policy.location()); err != nil {
		return nil, errors.DateInvalid
	}
	report := &BreakReviewReport{Report: NewReport(s.Clock.Now())}

	records, err := s.Repos.Lunch.ListPendingPenalties(ctx, date)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		report.Processed++
		ok, err := s.Repos.Lunch.MarkPenaltyApplied(ctx, rec.ID)
		if err != nil {
			report.Fail(rec.WorkerID, err)
			continue
		}
		if !ok {
			continue
		}

		if s.Policy.SkippedBreakXP > 0 {
			if err := s.Gamification.ApplyPenalty(ctx, rec.WorkerID, s.Policy.SkippedBreakXP, skippedBreakReason); err != nil {
				if clearErr := s.Repos.Lunch.ClearPenaltyApplied(ctx, rec.ID); clearErr != nil {
					s.Logger.Error("failed to roll back penalty mark", zap.Int64("lunch_id", rec.ID), zap.Error(clearErr))
				}
				report.Fail(rec.WorkerID, fmt.Errorf("failed to apply skipped break penalty: %w", err))
				continue
			}
		}
		report.Penalized++
	}

	report.FinishedAt = s.Clock.Now()
	s.Logger.Info("skipped break review finished",
		zap.String("date", date),
		zap.String("run_id", report.RunID),
		zap.Int("penalized", report.Penalized),
		zap.Int("failed", report.Failed()),
	)
	return report, nil
}

// BreakMinutes 某工人某日已完成午休的总分钟数
func (s *LunchService) BreakMinutes(ctx context.Context, workerID int64, date string) (int, error) {
	records, err := s.Repos.Lunch.ListForWorkerDate(ctx, workerID, date)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, rec := range records {
		total += int(rec.BreakDuration() / time.Minute)
	}
	return total, nil
}
