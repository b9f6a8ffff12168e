package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
)

type SessionRepository struct {
	db *gorm.DB
}

// Create 插入新会话。同一工人已有未关闭会话时返回 gorm.ErrDuplicatedKey
func (r *SessionRepository) Create(ctx context.Context, s *model.WorkSession) error {
	s.OpenedAt = utc(s.OpenedAt)
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SessionRepository) Get(ctx context.Context, id int64) (*model.WorkSession, error) {
	var s model.WorkSession
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		if isNotFound(err) {
			return nil, errors.SessionNotFound
		}
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return &s, nil
}

// FindOpenByWorker 没有未关闭会话时返回 nil, nil
func (r *SessionRepository) FindOpenByWorker(ctx context.Context, workerID int64) (*model.WorkSession, error) {
	var s model.WorkSession
	err := r.db.WithContext(ctx).
		Where("worker_id = ? AND closed_at IS NULL", workerID).
		Take(&s).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query open session: %w", err)
	}
	return &s, nil
}

// ListOpen 所有未关闭会话
func (r *SessionRepository) ListOpen(ctx context.Context) ([]*model.WorkSession, error) {
	var sessions []*model.WorkSession
	err := r.db.WithContext(ctx).
		Where("closed_at IS NULL").
		Order("id").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open sessions: %w", err)
	}
	return sessions, nil
}

// CloseParams 关闭会话时写入的字段
type CloseParams struct {
	ClosedAt      time.Time
	Reason        model.CloseReason
	HoursWorked   decimal.Decimal
	CloseDistance *float64
}

// Close 以 closed_at IS NULL 为条件做 CAS，返回本次调用是否真正关闭了会话
func (r *SessionRepository) Close(ctx context.Context, id int64, p CloseParams) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.WorkSession{}).
		Where("id = ? AND closed_at IS NULL", id).
		Updates(map[string]interface{}{
			"closed_at":      utc(p.ClosedAt),
			"close_reason":   p.Reason,
			"is_auto_closed": p.Reason.IsAutomatic(),
			"hours_worked":   decimal.NullDecimal{Decimal: p.HoursWorked, Valid: true},
			"close_distance": p.CloseDistance,
			"updated_at":     utc(p.ClosedAt),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to close session: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ClaimManual 系统关闭后不久到达的手动下班接管关闭原因，工时保持不变
func (r *SessionRepository) ClaimManual(ctx context.Context, id int64, autoClosedSince time.Time, closeDistance *float64) (bool, error) {
	updates := map[string]interface{}{
		"close_reason":   model.CloseReasonManual,
		"is_auto_closed": false,
	}
	if closeDistance != nil {
		updates["close_distance"] = *closeDistance
	}

	res := r.db.WithContext(ctx).
		Model(&model.WorkSession{}).
		Where("id = ? AND is_auto_closed = ? AND closed_at >= ?", id, true, utc(autoClosedSince)).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim session close: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListClosedOpenedBetween 某工人在 [from, to) 内开工且已关闭的会话，按开工时间排序
func (r *SessionRepository) ListClosedOpenedBetween(ctx context.Context, workerID int64, from, to time.Time) ([]*model.WorkSession, error) {
	var sessions []*model.WorkSession
	err := r.db.WithContext(ctx).
		Where("worker_id = ? AND opened_at >= ? AND opened_at < ? AND closed_at IS NOT NULL", workerID, utc(from), utc(to)).
		Order("opened_at, id").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list closed sessions: %w", err)
	}
	return sessions, nil
}

// WorkerIDsWithSessionsBetween 在 [from, to) 内有已关闭会话的工人
func (r *SessionRepository) WorkerIDsWithSessionsBetween(ctx context.Context, from, to time.Time) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.WorkSession{}).
		Where("opened_at >= ? AND opened_at < ? AND closed_at IS NOT NULL", utc(from), utc(to)).
		Distinct().
		Order("worker_id").
		Pluck("worker_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list workers with sessions: %w", err)
	}
	return ids, nil
}

// ListOverlapping 与 [from, to) 有交集的会话（含未关闭）
func (r *SessionRepository) ListOverlapping(ctx context.Context, workerID int64, from, to time.Time) ([]*model.WorkSession, error) {
	var sessions []*model.WorkSession
	err := r.db.WithContext(ctx).
		Where("worker_id = ? AND opened_at < ? AND (closed_at IS NULL OR closed_at > ?)", workerID, utc(to), utc(from)).
		Order("opened_at").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list overlapping sessions: %w", err)
	}
	return sessions, nil
}
