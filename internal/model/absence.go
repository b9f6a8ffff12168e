package model

import "time"

// AbsenceKind 缺勤类型：提前报备 / 未报备
type AbsenceKind string

const (
	AbsenceKindNotified   AbsenceKind = "notified"
	AbsenceKindUnreported AbsenceKind = "unreported"
)

// AbsenceRecord 排班任务没有对应会话时生成，(工人, 日期, 工地, 开始时间) 唯一
type AbsenceRecord struct {
	RecordModel
	WorkerID        int64       `gorm:"not null;uniqueIndex:idx_absence_records_assignment" json:"worker_id"`
	AbsenceDate     string      `gorm:"type:varchar(10);not null;uniqueIndex:idx_absence_records_assignment;index" json:"absence_date"`
	SiteID          int64       `gorm:"not null;uniqueIndex:idx_absence_records_assignment" json:"site_id"`
	ScheduledStart  time.Time   `gorm:"not null;uniqueIndex:idx_absence_records_assignment" json:"scheduled_start"`
	ScheduledEnd    time.Time   `gorm:"not null" json:"scheduled_end"`
	TaskRef         string      `gorm:"type:varchar(64)" json:"task_ref,omitempty"`
	Kind            AbsenceKind `gorm:"type:varchar(16);not null" json:"kind"`
	Reason          string      `gorm:"type:varchar(300)" json:"reason,omitempty"`
	XPPenalty       int         `gorm:"not null" json:"xp_penalty"`
	MultiplierReset bool        `gorm:"not null" json:"multiplier_reset"`
}

func (AbsenceRecord) TableName() string {
	return "absence_records"
}

// AbsenceNotice 工人提前报备的缺勤
type AbsenceNotice struct {
	RecordModel
	WorkerID   int64     `gorm:"not null;uniqueIndex:idx_absence_notices_worker_date" json:"worker_id"`
	NoticeDate string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_absence_notices_worker_date" json:"notice_date"`
	Reason     string    `gorm:"type:varchar(300)" json:"reason"`
	ReportedAt time.Time `gorm:"not null" json:"reported_at"`
}

func (AbsenceNotice) TableName() string {
	return "absence_notices"
}

// ScheduledAssignment 项目排班（由项目/任务系统写入，本服务只读）
type ScheduledAssignment struct {
	RecordModel
	WorkerID int64     `gorm:"not null;index:idx_scheduled_assignments_worker_start" json:"worker_id"`
	SiteID   int64     `gorm:"not null" json:"site_id"`
	TaskRef  string    `gorm:"type:varchar(64)" json:"task_ref"`
	StartsAt time.Time `gorm:"not null;index:idx_scheduled_assignments_worker_start" json:"starts_at"`
	EndsAt   time.Time `gorm:"not null" json:"ends_at"`
}

func (ScheduledAssignment) TableName() string {
	return "scheduled_assignments"
}
