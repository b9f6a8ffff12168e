package service

import (
	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/geo"
)

// Classification 一次围栏判定
type Classification struct {
	Status         model.AreaStatus
	DistanceMeters float64
	RadiusMeters   float64
	HasGeofence    bool
}

// GeofenceEvaluator 判定定位点是否在工地围栏内
type GeofenceEvaluator struct {
	log *zap.Logger
}

func NewGeofenceEvaluator(log *zap.Logger) *GeofenceEvaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &GeofenceEvaluator{log: log}
}

// Classify 工地没有可用围栏时按在场处理
func (g *GeofenceEvaluator) Classify(site *model.Site, p geo.Point) Classification {
	center, radius, ok := site.Geofence()
	if !ok {
		g.log.Debug("geofence unavailable, treating as in area",
			zap.Int64("site_id", site.ID),
			zap.Error(&errors.StaleGeofenceError{SiteID: site.ID}),
		)
		return Classification{Status: model.AreaStatusIn}
	}

	distance := geo.Distance(p, center)
	status := model.AreaStatusIn
	if distance > radius {
		status = model.AreaStatusOut
	}
	return Classification{
		Status:         status,
		DistanceMeters: distance,
		RadiusMeters:   radius,
		HasGeofence:    true,
	}
}

// Transition 返回需要发布的主题，空串表示没有状态变化。
// 之前没有判定时不产生事件。
func Transition(prev, next model.AreaStatus) string {
	switch {
	case prev == model.AreaStatusIn && next == model.AreaStatusOut:
		return model.TopicOutOfArea
	case prev == model.AreaStatusOut && next == model.AreaStatusIn:
		return model.TopicBackInArea
	}
	return ""
}
