package service

import (
	"context"
	"time"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
)

// Publisher 通知通道。发布失败只记录，不重试、不阻塞状态机
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// Gamification 积分系统
type Gamification interface {
	ApplyPenalty(ctx context.Context, workerID int64, amount int, reason string) error
	ResetMultiplier(ctx context.Context, workerID int64) error
}

// ScheduleProvider 排班来源，date 按其自身时区取整天
type ScheduleProvider interface {
	ScheduledTasksForWorker(ctx context.Context, workerID int64, date time.Time) ([]*model.ScheduledAssignment, error)
}

// SummaryCache 日结读缓存，命中空值时返回 (true, nil) 且不写 dest
type SummaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
}

// SessionObserver 会话关闭后的回调，在关闭成功后同步调用
type SessionObserver interface {
	OnSessionClosed(ctx context.Context, session *model.WorkSession) error
}

// SessionCloser 供午休超时等内部流程关闭会话
type SessionCloser interface {
	CloseSession(ctx context.Context, req CloseRequest) (*model.WorkSession, error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, interface{}) error { return nil }

type nopGamification struct{}

func (nopGamification) ApplyPenalty(context.Context, int64, int, string) error { return nil }
func (nopGamification) ResetMultiplier(context.Context, int64) error           { return nil }
