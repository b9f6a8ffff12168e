package model

import "time"

// AreaStatus 电子围栏判定结果，空串表示尚无判定
type AreaStatus string

const (
	AreaStatusUnknown AreaStatus = ""
	AreaStatusIn      AreaStatus = "IN_AREA"
	AreaStatusOut     AreaStatus = "OUT_OF_AREA"
)

// PresenceSnapshot 每个工人一行，原地覆盖；被覆盖的旧值写入 presence_history。
type PresenceSnapshot struct {
	WorkerID          int64      `gorm:"primaryKey;autoIncrement:false" json:"worker_id"`
	SessionID         *int64     `json:"session_id,omitempty"`
	Latitude          float64    `json:"latitude"`
	Longitude         float64    `json:"longitude"`
	Accuracy          float64    `json:"accuracy"`
	GPSEnabled        bool       `gorm:"not null" json:"gps_enabled"`
	Online            bool       `gorm:"not null" json:"online"`
	LastSeenAt        time.Time  `gorm:"not null;index" json:"last_seen_at"`
	ConsecutiveMisses int        `gorm:"not null" json:"consecutive_misses"`
	AreaStatus        AreaStatus `gorm:"type:varchar(16)" json:"area_status"`
	DistanceMeters    *float64   `json:"distance_meters,omitempty"`
	UpdatedAt         time.Time  `gorm:"not null" json:"updated_at"`
}

func (PresenceSnapshot) TableName() string {
	return "presence_snapshots"
}

// PresenceHistory 只追加的轨迹，用于回放
type PresenceHistory struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	WorkerID       int64      `gorm:"not null;index:idx_presence_history_worker_time" json:"worker_id"`
	SessionID      *int64     `json:"session_id,omitempty"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	Accuracy       float64    `json:"accuracy"`
	GPSEnabled     bool       `gorm:"not null" json:"gps_enabled"`
	AreaStatus     AreaStatus `gorm:"type:varchar(16)" json:"area_status"`
	DistanceMeters *float64   `json:"distance_meters,omitempty"`
	RecordedAt     time.Time  `gorm:"not null;index:idx_presence_history_worker_time" json:"recorded_at"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
}

func (PresenceHistory) TableName() string {
	return "presence_history"
}

// HistoryFrom 将即将被覆盖的快照转成轨迹点
func HistoryFrom(s *PresenceSnapshot) *PresenceHistory {
	return &PresenceHistory{
		WorkerID:       s.WorkerID,
		SessionID:      s.SessionID,
		Latitude:       s.Latitude,
		Longitude:      s.Longitude,
		Accuracy:       s.Accuracy,
		GPSEnabled:     s.GPSEnabled,
		AreaStatus:     s.AreaStatus,
		DistanceMeters: s.DistanceMeters,
		RecordedAt:     s.LastSeenAt,
	}
}
