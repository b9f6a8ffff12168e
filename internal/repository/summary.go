package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
)

type SummaryRepository struct {
	db *gorm.DB
}

func (r *SummaryRepository) Get(ctx context.Context, workerID int64, date string) (*model.DailyWorkSummary, error) {
	var s model.DailyWorkSummary
	err := r.db.WithContext(ctx).
		Where("worker_id = ? AND work_date = ?", workerID, date).
		Take(&s).Error
	if err != nil {
		if isNotFound(err) {
			return nil, errors.SummaryNotFound
		}
		return nil, fmt.Errorf("failed to query daily summary: %w", err)
	}
	return &s, nil
}

// Replace 整行替换某工人某日的汇总，并在同一事务中按差值调整工人累计工时。
// 重复计算同一天不会重复累加。
func (r *SummaryRepository) Replace(ctx context.Context, s *model.DailyWorkSummary) error {
	s.ComputedAt = utc(s.ComputedAt)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev model.DailyWorkSummary
		err := tx.Where("worker_id = ? AND work_date = ?", s.WorkerID, s.WorkDate).Take(&prev).Error

		delta := s.PaidHours
		switch {
		case err == nil:
			s.ID = prev.ID
			s.CreatedAt = prev.CreatedAt
			delta = s.PaidHours.Sub(prev.PaidHours)
			if err := tx.Save(s).Error; err != nil {
				return fmt.Errorf("failed to replace daily summary: %w", err)
			}
		case isNotFound(err):
			if err := tx.Create(s).Error; err != nil {
				return fmt.Errorf("failed to create daily summary: %w", err)
			}
		default:
			return fmt.Errorf("failed to query daily summary: %w", err)
		}

		if delta.IsZero() {
			return nil
		}
		return addWorkerHours(tx, s.WorkerID, delta)
	})
}

// addWorkerHours 在数据库内原子累加，结果不低于 0
func addWorkerHours(tx *gorm.DB, workerID int64, delta decimal.Decimal) error {
	delta = delta.Round(2)
	res := tx.Model(&model.Worker{}).
		Where("id = ?", workerID).
		Update("total_hours", gorm.Expr("CASE WHEN total_hours + ? < 0 THEN 0 ELSE total_hours + ? END", delta, delta))
	if res.Error != nil {
		return fmt.Errorf("failed to update worker totals: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.WorkerNotFound
	}
	return nil
}

// ListForWorker 某工人 [from, to] 日期范围内的汇总
func (r *SummaryRepository) ListForWorker(ctx context.Context, workerID int64, from, to string) ([]*model.DailyWorkSummary, error) {
	var rows []*model.DailyWorkSummary
	err := r.db.WithContext(ctx).
		Where("worker_id = ? AND work_date >= ? AND work_date <= ?", workerID, from, to).
		Order("work_date").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list daily summaries: %w", err)
	}
	return rows, nil
}
