package service

import (
	"time"

	"github.com/shopspring/decimal"
)

// GeofencePolicy 开工时位置在围栏外的处理方式
type GeofencePolicy string

const (
	GeofencePolicyFlag   GeofencePolicy = "flag"
	GeofencePolicyReject GeofencePolicy = "reject"
)

// Policy 引擎的全部业务阈值
type Policy struct {
	Location *time.Location

	SweepInterval        time.Duration
	GPSSilenceThreshold  time.Duration
	GPSConfirmMisses     int
	MaxSessionDuration   time.Duration
	ManualPriorityWindow time.Duration
	GeofencePolicy       GeofencePolicy
	// 设备时钟允许领先服务器的最大值，超出的定位点直接拒绝
	MaxClockSkew time.Duration

	LunchPromptAfter    time.Duration
	LunchAlertMinutes   []int
	LunchTimeoutAfter   time.Duration
	BreakMandatoryHours float64
	SkippedBreakXP      int

	LongBreakHours     float64
	LongBreakInclusive bool
	LongBreakMinutes   int
	ShortBreakHours    float64
	ShortBreakMinutes  int
	DailyNormalHours   float64

	AbsenceUnreportedXP int
	AbsenceNotifiedXP   int
}

func DefaultPolicy() Policy {
	return Policy{
		Location:             time.UTC,
		SweepInterval:        30 * time.Second,
		GPSSilenceThreshold:  60 * time.Second,
		GPSConfirmMisses:     2,
		MaxSessionDuration:   16 * time.Hour,
		ManualPriorityWindow: 30 * time.Second,
		GeofencePolicy:       GeofencePolicyFlag,
		MaxClockSkew:         2 * time.Minute,
		LunchPromptAfter:     4 * time.Hour,
		LunchAlertMinutes:    []int{70, 80, 90},
		LunchTimeoutAfter:    120 * time.Minute,
		BreakMandatoryHours:  6,
		SkippedBreakXP:       20,
		LongBreakHours:       6,
		LongBreakInclusive:   true,
		LongBreakMinutes:     60,
		ShortBreakHours:      4,
		ShortBreakMinutes:    15,
		DailyNormalHours:     8,
		AbsenceUnreportedXP:  50,
		AbsenceNotifiedXP:    0,
	}
}

// RequiredBreakMinutes 按当日总工时确定应休时长
func (p Policy) RequiredBreakMinutes(totalHours decimal.Decimal) int {
	long := decimal.NewFromFloat(p.LongBreakHours)
	short := decimal.NewFromFloat(p.ShortBreakHours)

	if totalHours.GreaterThan(long) || (p.LongBreakInclusive && totalHours.Equal(long)) {
		return p.LongBreakMinutes
	}
	if totalHours.GreaterThanOrEqual(short) {
		return p.ShortBreakMinutes
	}
	return 0
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}
