package dto

import (
	"time"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/service"
)

// ========== 会话相关 DTO ==========

// OpenSessionRequest 开工请求，工人 ID 取自令牌
type OpenSessionRequest struct {
	Position service.Reading `json:"position"`
	SiteID   int64           `json:"site_id" validate:"required,gt=0"`
}

// CloseSessionRequest 手动下班，定位可选
type CloseSessionRequest struct {
	Position *service.Reading `json:"position,omitempty"`
}

// PositionHistoryItem 轨迹点
type PositionHistoryItem struct {
	RecordedAt time.Time `json:"recorded_at"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	GPSEnabled bool      `json:"gps_enabled"`

	AreaStatus model.AreaStatus `json:"area_status"`
}

// HistoryItems 轨迹表转换为接口输出
func HistoryItems(points []*model.PresenceHistory) []PositionHistoryItem {
	items := make([]PositionHistoryItem, 0, len(points))
	for _, p := range points {
		items = append(items, PositionHistoryItem{
			RecordedAt: p.RecordedAt,
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
			Accuracy:   p.Accuracy,
			GPSEnabled: p.GPSEnabled,
			AreaStatus: p.AreaStatus,
		})
	}
	return items
}

// AdjustBreakRequest 事后补录午休
type AdjustBreakRequest struct {
	BreakStart time.Time `json:"break_start" validate:"required"`
	BreakEnd   time.Time `json:"break_end" validate:"required"`
}
