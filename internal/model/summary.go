package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyWorkSummary 工人某日的工时与薪资汇总。重新计算时整行替换。
type DailyWorkSummary struct {
	RecordModel
	WorkerID     int64  `gorm:"not null;uniqueIndex:idx_daily_work_summaries_worker_date" json:"worker_id"`
	WorkDate     string `gorm:"type:varchar(10);not null;uniqueIndex:idx_daily_work_summaries_worker_date;index" json:"work_date"`
	Role         string `gorm:"type:varchar(32);not null" json:"role"`
	SessionCount int    `gorm:"not null" json:"session_count"`

	TotalHours          decimal.Decimal `gorm:"type:numeric(8,2);not null" json:"total_hours"`
	PaidHours           decimal.Decimal `gorm:"type:numeric(8,2);not null" json:"paid_hours"`
	HoursNormal         decimal.Decimal `gorm:"type:numeric(8,2);not null" json:"hours_normal"`
	HoursOvertime       decimal.Decimal `gorm:"type:numeric(8,2);not null" json:"hours_overtime"`
	HoursTravelNormal   decimal.Decimal `gorm:"type:numeric(8,2);not null" json:"hours_travel_normal"`
	HoursTravelOvertime decimal.Decimal `gorm:"type:numeric(8,2);not null" json:"hours_travel_overtime"`

	BreakRequiredMinutes  int  `gorm:"not null" json:"break_required_minutes"`
	BreakTakenMinutes     int  `gorm:"not null" json:"break_taken_minutes"`
	BreakShortfallMinutes int  `gorm:"not null" json:"break_shortfall_minutes"`
	PenaltyFlag           bool `gorm:"not null" json:"penalty_flag"`

	NormalPay         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"normal_pay"`
	OvertimePay       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"overtime_pay"`
	TravelNormalPay   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"travel_normal_pay"`
	TravelOvertimePay decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"travel_overtime_pay"`
	TotalPayment      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_payment"`
	PayrollError      string          `gorm:"type:varchar(200)" json:"payroll_error,omitempty"`

	ComputedAt time.Time `gorm:"not null" json:"computed_at"`
}

func (DailyWorkSummary) TableName() string {
	return "daily_work_summaries"
}

// BucketSum 四个工时桶之和，应等于 PaidHours
func (s *DailyWorkSummary) BucketSum() decimal.Decimal {
	return s.HoursNormal.Add(s.HoursOvertime).Add(s.HoursTravelNormal).Add(s.HoursTravelOvertime)
}
