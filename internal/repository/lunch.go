package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
)

type LunchRepository struct {
	db *gorm.DB
}

// GetBySession 没有记录时返回 nil, nil
func (r *LunchRepository) GetBySession(ctx context.Context, sessionID int64) (*model.LunchRecord, error) {
	var rec model.LunchRecord
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&rec).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query lunch record: %w", err)
	}
	return &rec, nil
}

// GetOrCreate 惰性创建午休记录，并发创建时以先写入者为准
func (r *LunchRepository) GetOrCreate(ctx context.Context, rec *model.LunchRecord) (*model.LunchRecord, error) {
	if rec.AlertsSent == nil {
		rec.AlertsSent = model.IntList{}
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "session_id"}}, DoNothing: true}).
		Create(rec).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create lunch record: %w", err)
	}

	stored, err := r.GetBySession(ctx, rec.SessionID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("lunch record for session %d vanished", rec.SessionID)
	}
	return stored, nil
}

// Transition 以当前状态为条件做 CAS，from 为允许的起始状态
func (r *LunchRepository) Transition(ctx context.Context, id int64, from []model.LunchState, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.LunchRecord{}).
		Where("id = ? AND state IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition lunch record: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// AppendAlert 记录已发送的阈值告警。以旧列表为条件 CAS，保证同一阈值只记录一次
func (r *LunchRepository) AppendAlert(ctx context.Context, rec *model.LunchRecord, threshold int) (bool, error) {
	if rec.AlertsSent.Contains(threshold) {
		return false, nil
	}

	next := append(model.IntList{}, rec.AlertsSent...)
	next = append(next, threshold)

	res := r.db.WithContext(ctx).
		Model(&model.LunchRecord{}).
		Where("id = ? AND state = ? AND alerts_sent = ?", rec.ID, model.LunchStateOnBreak, rec.AlertsSent).
		Update("alerts_sent", next)
	if res.Error != nil {
		return false, fmt.Errorf("failed to record lunch alert: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	rec.AlertsSent = next
	return true, nil
}

// ListForWorkerDate 某工人某日的全部午休记录
func (r *LunchRepository) ListForWorkerDate(ctx context.Context, workerID int64, date string) ([]*model.LunchRecord, error) {
	var records []*model.LunchRecord
	err := r.db.WithContext(ctx).
		Where("worker_id = ? AND work_date = ?", workerID, date).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list lunch records: %w", err)
	}
	return records, nil
}

// ListPendingPenalties 某日被标记为跳过且尚未扣分的记录
func (r *LunchRepository) ListPendingPenalties(ctx context.Context, date string) ([]*model.LunchRecord, error) {
	var records []*model.LunchRecord
	err := r.db.WithContext(ctx).
		Where("work_date = ? AND skipped = ? AND penalty_applied = ?", date, true, false).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list skipped lunch records: %w", err)
	}
	return records, nil
}

// MarkPenaltyApplied CAS，保证每条记录只扣一次分
func (r *LunchRepository) MarkPenaltyApplied(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.LunchRecord{}).
		Where("id = ? AND skipped = ? AND penalty_applied = ?", id, true, false).
		Update("penalty_applied", true)
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark penalty applied: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Adjust 人工补录午休，覆盖时间并清除跳过标记
func (r *LunchRepository) Adjust(ctx context.Context, id int64, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&model.LunchRecord{}).
		Where("id = ? AND penalty_applied = ?", id, false).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to adjust lunch record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.LunchTransitionInvalid
	}
	return nil
}

// ClearPenaltyApplied 扣分投递失败时回滚标记，下次复核重试
func (r *LunchRepository) ClearPenaltyApplied(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.LunchRecord{}).
		Where("id = ?", id).
		Update("penalty_applied", false).Error
}
