package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
)

type AbsenceRepository struct {
	db *gorm.DB
}

// InsertIfAbsent 幂等插入，返回是否为新记录
func (r *AbsenceRepository) InsertIfAbsent(ctx context.Context, rec *model.AbsenceRecord) (bool, error) {
	rec.ScheduledStart = utc(rec.ScheduledStart)
	rec.ScheduledEnd = utc(rec.ScheduledEnd)

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "worker_id"}, {Name: "absence_date"}, {Name: "site_id"}, {Name: "scheduled_start"},
			},
			DoNothing: true,
		}).
		Create(rec)
	if res.Error != nil {
		return false, fmt.Errorf("failed to insert absence record: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// UpdatePenalty 写回实际施加的处罚
func (r *AbsenceRepository) UpdatePenalty(ctx context.Context, id int64, xp int, multiplierReset bool) error {
	return r.db.WithContext(ctx).
		Model(&model.AbsenceRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"xp_penalty": xp, "multiplier_reset": multiplierReset}).Error
}

// ListForWorker 某工人 [from, to] 日期范围内的缺勤记录，日期为 YYYY-MM-DD
func (r *AbsenceRepository) ListForWorker(ctx context.Context, workerID int64, from, to string) ([]*model.AbsenceRecord, error) {
	var rows []*model.AbsenceRecord
	err := r.db.WithContext(ctx).
		Where("worker_id = ? AND absence_date >= ? AND absence_date <= ?", workerID, from, to).
		Order("absence_date, scheduled_start").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list absence records: %w", err)
	}
	return rows, nil
}

// UpsertNotice 同一天重复报备时更新原因
func (r *AbsenceRepository) UpsertNotice(ctx context.Context, n *model.AbsenceNotice) error {
	n.ReportedAt = utc(n.ReportedAt)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "worker_id"}, {Name: "notice_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"reason", "reported_at", "updated_at"}),
		}).
		Create(n).Error
	if err != nil {
		return fmt.Errorf("failed to save absence notice: %w", err)
	}
	return nil
}

// GetNotice 没有报备时返回 nil, nil
func (r *AbsenceRepository) GetNotice(ctx context.Context, workerID int64, date string) (*model.AbsenceNotice, error) {
	var n model.AbsenceNotice
	err := r.db.WithContext(ctx).Where("worker_id = ? AND notice_date = ?", workerID, date).Take(&n).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query absence notice: %w", err)
	}
	return &n, nil
}

// ScheduleRepository 读取项目系统写入的排班
type ScheduleRepository struct {
	db *gorm.DB
}

func (r *ScheduleRepository) Create(ctx context.Context, a *model.ScheduledAssignment) error {
	a.StartsAt = utc(a.StartsAt)
	a.EndsAt = utc(a.EndsAt)
	return r.db.WithContext(ctx).Create(a).Error
}

// ScheduledTasksForWorker 返回 date 所在日（按 date 自身时区）开始的排班
func (r *ScheduleRepository) ScheduledTasksForWorker(ctx context.Context, workerID int64, date time.Time) ([]*model.ScheduledAssignment, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	end := start.AddDate(0, 0, 1)

	var rows []*model.ScheduledAssignment
	err := r.db.WithContext(ctx).
		Where("worker_id = ? AND starts_at >= ? AND starts_at < ?", workerID, utc(start), utc(end)).
		Order("starts_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled assignments: %w", err)
	}
	return rows, nil
}
