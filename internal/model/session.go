package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CloseReason 会话结束原因
type CloseReason string

const (
	CloseReasonManual       CloseReason = "MANUAL"
	CloseReasonEndOfShift   CloseReason = "END_OF_SHIFT"
	CloseReasonGPSLost      CloseReason = "GPS_LOST"
	CloseReasonInactivity   CloseReason = "INACTIVITY"
	CloseReasonLunchTimeout CloseReason = "LUNCH_TIMEOUT"
)

func (r CloseReason) Valid() bool {
	switch r {
	case CloseReasonManual, CloseReasonEndOfShift, CloseReasonGPSLost, CloseReasonInactivity, CloseReasonLunchTimeout:
		return true
	}
	return false
}

// IsAutomatic 除 MANUAL 外都是系统关闭
func (r CloseReason) IsAutomatic() bool {
	return r != CloseReasonManual
}

// WorkSession 一次连续的有薪在岗（打卡）。
// 每个工人最多一条 closed_at 为空的记录，由部分唯一索引保证。
type WorkSession struct {
	RecordModel
	WorkerID        int64               `gorm:"not null;index:idx_work_sessions_worker_opened;uniqueIndex:idx_work_sessions_open_worker,where:closed_at IS NULL" json:"worker_id"`
	SiteID          int64               `gorm:"not null;index" json:"site_id"`
	OpenedAt        time.Time           `gorm:"not null;index:idx_work_sessions_worker_opened" json:"opened_at"`
	OpenLatitude    float64             `json:"open_latitude"`
	OpenLongitude   float64             `json:"open_longitude"`
	OpenDistance    *float64            `json:"open_distance,omitempty"`
	OpenedOutOfArea bool                `gorm:"not null" json:"opened_out_of_area"`
	ClosedAt        *time.Time          `gorm:"index" json:"closed_at,omitempty"`
	CloseDistance   *float64            `json:"close_distance,omitempty"`
	CloseReason     CloseReason         `gorm:"type:varchar(20)" json:"close_reason,omitempty"`
	IsAutoClosed    bool                `gorm:"not null" json:"is_auto_closed"`
	HoursWorked     decimal.NullDecimal `gorm:"type:numeric(8,2)" json:"hours_worked"`
}

func (WorkSession) TableName() string {
	return "work_sessions"
}

func (s *WorkSession) IsOpen() bool {
	return s.ClosedAt == nil
}

// Hours 已关闭会话的工时，未关闭时为 0
func (s *WorkSession) Hours() decimal.Decimal {
	if !s.HoursWorked.Valid {
		return decimal.Zero
	}
	return s.HoursWorked.Decimal
}

// HoursBetween 计算工时：按小时保留两位小数，负值记为 0
func HoursBetween(openedAt, closedAt time.Time) decimal.Decimal {
	elapsed := closedAt.Sub(openedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	seconds := decimal.NewFromInt(int64(elapsed / time.Second))
	return seconds.Div(decimal.NewFromInt(3600)).Round(2)
}
