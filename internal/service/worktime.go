package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/payroll"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/clock"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
)

var minutesPerHour = decimal.NewFromInt(60)

// BreakSource 提供某工人某日的已休分钟数
type BreakSource interface {
	BreakMinutes(ctx context.Context, workerID int64, date string) (int, error)
}

// AggregationReport 日结批处理结果
type AggregationReport struct {
	Report
	Date          string                    `json:"date"`
	Summaries     []*model.DailyWorkSummary `json:"-"`
	PayrollErrors int                       `json:"payroll_errors"`
}

// WorktimeService 把当天已关闭的会话汇总成工时桶与薪资
type WorktimeService struct {
	Deps
	calc   *payroll.Calculator
	breaks BreakSource
	cache  SummaryCache
}

// NewWorktimeService cache 可为 nil
func NewWorktimeService(deps Deps, calc *payroll.Calculator, breaks BreakSource, cache SummaryCache) *WorktimeService {
	if calc == nil {
		calc = payroll.NewCalculator(nil)
	}
	return &WorktimeService{Deps: deps.WithDefaults(), calc: calc, breaks: breaks, cache: cache}
}

// AggregateWorker 重新计算并整行替换某工人某日的汇总。
// 当天没有已关闭会话时返回 nil, nil。岗位未知时汇总照常写入（薪资为零），并返回 UnknownRoleError。
func (s *WorktimeService) AggregateWorker(ctx context.Context, workerID int64, date string) (*model.DailyWorkSummary, error) {
	loc := s.Policy.location()
	day, err := clock.ParseDate(date, loc)
	if err != nil {
		return nil, errors.DateInvalid
	}
	from, to := clock.DayBounds(day, loc)

	sessions, err := s.Repos.Sessions.ListClosedOpenedBetween(ctx, workerID, from, to)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	worker, err := s.Repos.Workers.Get(ctx, workerID)
	if err != nil {
		return nil, err
	}

	siteIDs := make([]int64, 0, len(sessions))
	for _, session := range sessions {
		siteIDs = append(siteIDs, session.SiteID)
	}
	sites, err := s.Repos.Sites.GetMany(ctx, siteIDs)
	if err != nil {
		return nil, err
	}

	taken := 0
	if s.breaks != nil {
		if taken, err = s.breaks.BreakMinutes(ctx, workerID, date); err != nil {
			return nil, err
		}
	}

	hours := make([]decimal.Decimal, len(sessions))
	total := decimal.Zero
	for i, session := range sessions {
		hours[i] = session.Hours()
		total = total.Add(hours[i])
	}

	required := s.Policy.RequiredBreakMinutes(total)
	shortfall := max(required-taken, 0)

	paid := total.Sub(decimal.NewFromInt(int64(shortfall)).Div(minutesPerHour)).Round(2)
	if paid.IsNegative() {
		paid = decimal.Zero
	}
	deductFromTail(hours, total.Sub(paid))

	buckets := s.allocate(sessions, hours, sites)
	breakdown, payErr := s.calc.Calculate(worker.Role, buckets)

	summary := &model.DailyWorkSummary{
		WorkerID:              workerID,
		WorkDate:              date,
		Role:                  worker.Role,
		SessionCount:          len(sessions),
		TotalHours:            total,
		PaidHours:             paid,
		HoursNormal:           buckets.Normal,
		HoursOvertime:         buckets.Overtime,
		HoursTravelNormal:     buckets.TravelNormal,
		HoursTravelOvertime:   buckets.TravelOvertime,
		BreakRequiredMinutes:  required,
		BreakTakenMinutes:     taken,
		BreakShortfallMinutes: shortfall,
		PenaltyFlag:           shortfall > 0,
		NormalPay:             breakdown.NormalPay,
		OvertimePay:           breakdown.OvertimePay,
		TravelNormalPay:       breakdown.TravelNormalPay,
		TravelOvertimePay:     breakdown.TravelOvertimePay,
		TotalPayment:          breakdown.Total,
		ComputedAt:            s.Clock.Now(),
	}
	if payErr != nil {
		summary.PayrollError = payErr.Error()
		s.Logger.Warn("payroll degraded to zero",
			zap.Int64("worker_id", workerID),
			zap.String("date", date),
			zap.String("role", worker.Role),
			zap.Error(payErr),
		)
	}

	if err := s.Repos.Summaries.Replace(ctx, summary); err != nil {
		return nil, err
	}
	s.invalidate(ctx, workerID, date)

	return summary, payErr
}

// deductFromTail 从当天最后的会话开始扣除午休不足
func deductFromTail(hours []decimal.Decimal, deduction decimal.Decimal) {
	for i := len(hours) - 1; i >= 0 && deduction.IsPositive(); i-- {
		take := decimal.Min(hours[i], deduction)
		hours[i] = hours[i].Sub(take)
		deduction = deduction.Sub(take)
	}
}

// allocate 按时间顺序填充正常工时（差旅与非差旅共享每日上限），超出部分计入加班
func (s *WorktimeService) allocate(sessions []*model.WorkSession, hours []decimal.Decimal, sites map[int64]*model.Site) payroll.Hours {
	normalCap := decimal.NewFromFloat(s.Policy.DailyNormalHours)
	used := decimal.Zero
	b := payroll.Hours{
		Normal:         decimal.Zero,
		Overtime:       decimal.Zero,
		TravelNormal:   decimal.Zero,
		TravelOvertime: decimal.Zero,
	}

	for i, session := range sessions {
		h := hours[i]
		normal := decimal.Min(h, decimal.Max(normalCap.Sub(used), decimal.Zero))
		overtime := h.Sub(normal)
		used = used.Add(normal)

		if site, ok := sites[session.SiteID]; ok && site.IsTravelMode {
			b.TravelNormal = b.TravelNormal.Add(normal)
			b.TravelOvertime = b.TravelOvertime.Add(overtime)
			continue
		}
		b.Normal = b.Normal.Add(normal)
		b.Overtime = b.Overtime.Add(overtime)
	}
	return b
}

// AggregateDay 对当天所有有会话的工人逐个汇总，单个失败不影响其余
func (s *WorktimeService) AggregateDay(ctx context.Context, date string) (*AggregationReport, error) {
	loc := s.Policy.location()
	day, err := clock.ParseDate(date, loc)
	if err != nil {
		return nil, errors.DateInvalid
	}
	from, to := clock.DayBounds(day, loc)

	report := &AggregationReport{Report: NewReport(s.Clock.Now()), Date: date}

	workerIDs, err := s.Repos.Sessions.WorkerIDsWithSessionsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	for _, workerID := range workerIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Processed++

		summary, err := s.AggregateWorker(ctx, workerID, date)
		if summary != nil {
			report.Summaries = append(report.Summaries, summary)
		}
		if err == nil {
			continue
		}

		var roleErr *errors.UnknownRoleError
		if stderrors.As(err, &roleErr) {
			report.PayrollErrors++
		} else {
			s.Logger.Error("failed to aggregate worker",
				zap.Int64("worker_id", workerID),
				zap.String("date", date),
				zap.Error(err),
			)
		}
		report.Fail(workerID, err)
	}

	report.FinishedAt = s.Clock.Now()
	s.Logger.Info("daily aggregation finished",
		zap.String("date", date),
		zap.String("run_id", report.RunID),
		zap.Int("workers", report.Processed),
		zap.Int("summaries", len(report.Summaries)),
		zap.Int("failed", report.Failed()),
	)
	return report, nil
}

// GetDailySummary 读缓存，未命中时回源并缓存（包括不存在的结果）
func (s *WorktimeService) GetDailySummary(ctx context.Context, workerID int64, date string) (*model.DailyWorkSummary, error) {
	if _, err := clock.ParseDate(date, s.Policy.location()); err != nil {
		return nil, errors.DateInvalid
	}
	key := summaryKey(workerID, date)

	if s.cache != nil {
		var cached model.DailyWorkSummary
		hit, err := s.cache.Get(ctx, key, &cached)
		switch {
		case err != nil:
			s.Logger.Warn("summary cache read failed", zap.String("key", key), zap.Error(err))
		case hit && cached.ID == 0:
			return nil, errors.SummaryNotFound
		case hit:
			return &cached, nil
		}
	}

	summary, err := s.Repos.Summaries.Get(ctx, workerID, date)
	if err != nil {
		if stderrors.Is(err, errors.SummaryNotFound) {
			s.store(ctx, key, nil)
		}
		return nil, err
	}
	s.store(ctx, key, summary)
	return summary, nil
}

// ListDailySummaries 某工人 [from, to] 内已生成的日结，不经过缓存
func (s *WorktimeService) ListDailySummaries(ctx context.Context, workerID int64, from, to string) ([]*model.DailyWorkSummary, error) {
	if err := s.checkDateRange(from, to); err != nil {
		return nil, err
	}
	return s.Repos.Summaries.ListForWorker(ctx, workerID, from, to)
}

// store value 为 nil 时缓存空结果
func (s *WorktimeService) store(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.Logger.Warn("summary cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *WorktimeService) invalidate(ctx context.Context, workerID int64, date string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, summaryKey(workerID, date)); err != nil {
		s.Logger.Warn("summary cache invalidation failed", zap.Int64("worker_id", workerID), zap.Error(err))
	}
}

func summaryKey(workerID int64, date string) string {
	return fmt.Sprintf("%d:%s", workerID, date)
}
