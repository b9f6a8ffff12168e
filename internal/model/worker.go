package model

import (
	"github.com/shopspring/decimal"

	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/geo"
)

// WorkerStatus 工人状态枚举
type WorkerStatus string

const (
	WorkerStatusActive   WorkerStatus = "active"
	WorkerStatusInactive WorkerStatus = "inactive"
)

// Worker 现场施工人员。Role 对应费率表中的岗位。
type Worker struct {
	BaseModel
	Name         string          `gorm:"type:varchar(100);not null" json:"name"`
	Role         string          `gorm:"type:varchar(32);not null;index" json:"role"`
	Status       WorkerStatus    `gorm:"type:varchar(16);not null;index" json:"status"`
	TotalHours   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_hours"`
	TotalAreaM2  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_area_m2"`
	ProjectCount int             `gorm:"not null" json:"project_count"`
}

func (Worker) TableName() string {
	return "workers"
}

func (w *Worker) IsActive() bool {
	return w.Status == WorkerStatusActive
}

// Site 施工工地。坐标与半径任一缺失即视为没有电子围栏。
type Site struct {
	BaseModel
	Name         string   `gorm:"type:varchar(200);not null" json:"name"`
	Address      string   `gorm:"type:varchar(300)" json:"address,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	RadiusMeters *float64 `json:"radius_meters,omitempty"`
	IsTravelMode bool     `gorm:"not null" json:"is_travel_mode"`
}

func (Site) TableName() string {
	return "sites"
}

// Geofence 返回围栏中心与半径，ok=false 表示围栏不可用
func (s *Site) Geofence() (center geo.Point, radius float64, ok bool) {
	if s.Latitude == nil || s.Longitude == nil || s.RadiusMeters == nil || *s.RadiusMeters <= 0 {
		return geo.Point{}, 0, false
	}
	return geo.Point{Latitude: *s.Latitude, Longitude: *s.Longitude}, *s.RadiusMeters, true
}
