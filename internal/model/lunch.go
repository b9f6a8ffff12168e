package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"slices"
	"time"
)

// LunchState 午休状态机
type LunchState string

const (
	LunchStateNotStarted LunchState = "NOT_STARTED"
	LunchStatePrompted   LunchState = "PROMPTED"
	LunchStateOnBreak    LunchState = "ON_BREAK"
	LunchStateReturned   LunchState = "RETURNED"
	LunchStateSkipped    LunchState = "SKIPPED"
)

// CanStartBreak 未开始或已提醒时可以开始午休
func (s LunchState) CanStartBreak() bool {
	return s == LunchStateNotStarted || s == LunchStatePrompted
}

// LunchRecord 每个会话一条，午休窗口开始时惰性创建
type LunchRecord struct {
	RecordModel
	SessionID      int64      `gorm:"not null;uniqueIndex" json:"session_id"`
	WorkerID       int64      `gorm:"not null;index:idx_lunch_records_worker_date" json:"worker_id"`
	WorkDate       string     `gorm:"type:varchar(10);not null;index:idx_lunch_records_worker_date" json:"work_date"`
	State          LunchState `gorm:"type:varchar(16);not null" json:"state"`
	PromptedAt     *time.Time `json:"prompted_at,omitempty"`
	BreakStart     *time.Time `json:"break_start,omitempty"`
	BreakEnd       *time.Time `json:"break_end,omitempty"`
	AlertsSent     IntList    `gorm:"type:text" json:"alerts_sent"`
	Skipped        bool       `gorm:"not null;index" json:"skipped"`
	PenaltyApplied bool       `gorm:"not null" json:"penalty_applied"`
	Adjusted       bool       `gorm:"not null" json:"adjusted"`
	FinalizedAt    *time.Time `json:"finalized_at,omitempty"`
}

func (LunchRecord) TableName() string {
	return "lunch_records"
}

// BreakDuration 已完成的午休时长
func (l *LunchRecord) BreakDuration() time.Duration {
	if l.BreakStart == nil || l.BreakEnd == nil || l.BreakEnd.Before(*l.BreakStart) {
		return 0
	}
	return l.BreakEnd.Sub(*l.BreakStart)
}

// IntList 以 JSON 数组形式落库的整数列表
type IntList []int

func (l IntList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *IntList) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = IntList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("failed to scan IntList value")
	}
	if len(raw) == 0 {
		*l = IntList{}
		return nil
	}
	return json.Unmarshal(raw, (*[]int)(l))
}

func (l IntList) Contains(v int) bool {
	return slices.Contains(l, v)
}
