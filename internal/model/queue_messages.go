package model

import "time"

// 事件主题（RabbitMQ routing key）
const (
	TopicOutOfArea             = "presence.out_of_area"
	TopicBackInArea            = "presence.back_in_area"
	TopicLunchPrompt           = "lunch.prompt"
	TopicLunchAlert            = "lunch.alert"
	TopicSessionClosed         = "session.closed"
	TopicGamificationPenalty   = "gamification.penalty"
	TopicGamificationMultReset = "gamification.multiplier_reset"
)

// EventMessage 发往事件交换机的统一信封
type EventMessage struct {
	Payload    interface{} `json:"payload"`
	MessageID  string      `json:"message_id"` // 消息唯一ID，下游用于幂等
	EventKey   string      `json:"event_key"`
	OccurredAt string      `json:"occurred_at"`
}

// PositionMessage 设备网关投递的定位点
type PositionMessage struct {
	MessageID  string    `json:"message_id"`
	WorkerID   int64     `json:"worker_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	GPSEnabled bool      `json:"gps_enabled"`
	RecordedAt time.Time `json:"recorded_at"`
}

// GeofenceEvent 离开/回到工地
type GeofenceEvent struct {
	WorkerID       int64     `json:"worker_id"`
	SessionID      int64     `json:"session_id"`
	SiteID         int64     `json:"site_id"`
	DistanceMeters float64   `json:"distance_meters"`
	RadiusMeters   float64   `json:"radius_meters"`
	At             time.Time `json:"at"`
}

// LunchPromptEvent 提醒工人开始午休
type LunchPromptEvent struct {
	WorkerID  int64     `json:"worker_id"`
	SessionID int64     `json:"session_id"`
	At        time.Time `json:"at"`
}

// LunchAlertEvent 午休超过某个阈值
type LunchAlertEvent struct {
	WorkerID         int64     `json:"worker_id"`
	SessionID        int64     `json:"session_id"`
	ThresholdMinutes int       `json:"threshold_minutes"`
	ElapsedMinutes   int       `json:"elapsed_minutes"`
	At               time.Time `json:"at"`
}

// SessionClosedEvent 客户端据 Reason 解释系统关闭
type SessionClosedEvent struct {
	WorkerID     int64       `json:"worker_id"`
	SessionID    int64       `json:"session_id"`
	Reason       CloseReason `json:"reason"`
	IsAutoClosed bool        `json:"is_auto_closed"`
	HoursWorked  string      `json:"hours_worked"`
	ClosedAt     time.Time   `json:"closed_at"`
}

// PenaltyEvent 发给积分系统的扣分请求
type PenaltyEvent struct {
	WorkerID int64  `json:"worker_id"`
	Amount   int    `json:"amount"`
	Reason   string `json:"reason"`
}

// MultiplierResetEvent 重置连续出勤倍率
type MultiplierResetEvent struct {
	WorkerID int64 `json:"worker_id"`
}
