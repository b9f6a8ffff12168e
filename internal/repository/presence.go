package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
)

// ErrSnapshotChanged 快照在读取后被其他写入者更新
var ErrSnapshotChanged = errors.New("presence snapshot changed concurrently")

type PresenceRepository struct {
	db *gorm.DB
}

// Get 没有快照时返回 nil, nil
func (r *PresenceRepository) Get(ctx context.Context, workerID int64) (*model.PresenceSnapshot, error) {
	var s model.PresenceSnapshot
	err := r.db.WithContext(ctx).Where("worker_id = ?", workerID).Take(&s).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query presence snapshot: %w", err)
	}
	return &s, nil
}

// GetMany 批量读取快照
func (r *PresenceRepository) GetMany(ctx context.Context, workerIDs []int64) (map[int64]*model.PresenceSnapshot, error) {
	result := make(map[int64]*model.PresenceSnapshot, len(workerIDs))
	if len(workerIDs) == 0 {
		return result, nil
	}

	var snaps []*model.PresenceSnapshot
	if err := r.db.WithContext(ctx).Where("worker_id IN ?", workerIDs).Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("failed to query presence snapshots: %w", err)
	}
	for _, s := range snaps {
		result[s.WorkerID] = s
	}
	return result, nil
}

// Save 写入新快照。prev 为读取时的旧快照（nil 表示首次写入）。
// 以 last_seen_at 和 consecutive_misses 做 CAS，巡检期间的计数变化不会被覆盖；
// 成功后旧快照追加到轨迹表，被抢先时返回 ErrSnapshotChanged。
func (r *PresenceRepository) Save(ctx context.Context, next, prev *model.PresenceSnapshot) error {
	next.LastSeenAt = utc(next.LastSeenAt)

	if prev == nil {
		err := r.db.WithContext(ctx).Create(next).Error
		if IsDuplicate(err) {
			return ErrSnapshotChanged
		}
		if err != nil {
			return fmt.Errorf("failed to create presence snapshot: %w", err)
		}
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.PresenceSnapshot{}).
			Where("worker_id = ? AND last_seen_at = ? AND consecutive_misses = ?",
				next.WorkerID, utc(prev.LastSeenAt), prev.ConsecutiveMisses).
			Updates(map[string]interface{}{
				"session_id":         next.SessionID,
				"latitude":           next.Latitude,
				"longitude":          next.Longitude,
				"accuracy":           next.Accuracy,
				"gps_enabled":        next.GPSEnabled,
				"online":             next.Online,
				"last_seen_at":       next.LastSeenAt,
				"consecutive_misses": next.ConsecutiveMisses,
				"area_status":        next.AreaStatus,
				"distance_meters":    next.DistanceMeters,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update presence snapshot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrSnapshotChanged
		}

		if err := tx.Create(model.HistoryFrom(prev)).Error; err != nil {
			return fmt.Errorf("failed to append presence history: %w", err)
		}
		return nil
	})
}

// IncrementMisses 仅当 last_seen_at 未变化（期间没有新定位）时累加，返回累加后的次数。
// ok=false 表示期间有新定位写入，本次不计数。
func (r *PresenceRepository) IncrementMisses(ctx context.Context, workerID int64, lastSeenAt time.Time) (misses int, ok bool, err error) {
	res := r.db.WithContext(ctx).
		Model(&model.PresenceSnapshot{}).
		Where("worker_id = ? AND last_seen_at = ?", workerID, utc(lastSeenAt)).
		Update("consecutive_misses", gorm.Expr("consecutive_misses + 1"))
	if res.Error != nil {
		return 0, false, fmt.Errorf("failed to increment misses: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}

	var snap model.PresenceSnapshot
	if err := r.db.WithContext(ctx).Select("consecutive_misses").Where("worker_id = ?", workerID).Take(&snap).Error; err != nil {
		return 0, false, fmt.Errorf("failed to read misses: %w", err)
	}
	return snap.ConsecutiveMisses, true, nil
}

// ResetMisses 信号恢复时清零
func (r *PresenceRepository) ResetMisses(ctx context.Context, workerID int64) error {
	return r.db.WithContext(ctx).
		Model(&model.PresenceSnapshot{}).
		Where("worker_id = ? AND consecutive_misses > 0", workerID).
		Update("consecutive_misses", 0).Error
}

// DetachSession 会话结束后解除快照与会话的关联，并清空围栏判定
func (r *PresenceRepository) DetachSession(ctx context.Context, workerID, sessionID int64, online bool) error {
	return r.db.WithContext(ctx).
		Model(&model.PresenceSnapshot{}).
		Where("worker_id = ? AND session_id = ?", workerID, sessionID).
		Updates(map[string]interface{}{
			"session_id":         nil,
			"area_status":        model.AreaStatusUnknown,
			"distance_meters":    nil,
			"consecutive_misses": 0,
			"online":             online,
		}).Error
}

// History 轨迹回放，[from, to) 按时间排序
func (r *PresenceRepository) History(ctx context.Context, workerID int64, from, to time.Time) ([]*model.PresenceHistory, error) {
	var points []*model.PresenceHistory
	err := r.db.WithContext(ctx).
		Where("worker_id = ? AND recorded_at >= ? AND recorded_at < ?", workerID, utc(from), utc(to)).
		Order("recorded_at, id").
		Find(&points).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query presence history: %w", err)
	}
	return points, nil
}

// MarkOffline 只改在线标记，不影响 CAS 使用的 last_seen_at
func (r *PresenceRepository) MarkOffline(ctx context.Context, workerID int64) error {
	return r.db.WithContext(ctx).
		Model(&model.PresenceSnapshot{}).
		Where("worker_id = ?", workerID).
		Update("online", false).Error
}
