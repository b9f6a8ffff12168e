package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/repository"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/geo"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/metrics"
)

const maxSnapshotRetries = 3

// Reading 设备上报的一次定位。GPS 关闭时坐标可以为零值
type Reading struct {
	Timestamp  time.Time `json:"timestamp" validate:"required"`
	Latitude   float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude  float64   `json:"longitude" validate:"gte=-180,lte=180"`
	Accuracy   float64   `json:"accuracy" validate:"gte=0"`
	GPSEnabled bool      `json:"gps_enabled"`
}

func (r Reading) Point() geo.Point {
	return geo.Point{Latitude: r.Latitude, Longitude: r.Longitude}
}

// PositionResult Accepted=false 表示定位点早于已记录的快照，被丢弃
type PositionResult struct {
	Snapshot   *model.PresenceSnapshot `json:"snapshot"`
	Transition string                  `json:"transition,omitempty"`
	Accepted   bool                    `json:"accepted"`
}

type PresenceService struct {
	Deps
	geofence *GeofenceEvaluator
}

func NewPresenceService(deps Deps, geofence *GeofenceEvaluator) *PresenceService {
	deps = deps.WithDefaults()
	if geofence == nil {
		geofence = NewGeofenceEvaluator(deps.Logger)
	}
	return &PresenceService{Deps: deps, geofence: geofence}
}

// RecordPosition 写入定位快照，有未结束会话时做围栏判定并发布进出事件
func (s *PresenceService) RecordPosition(ctx context.Context, workerID int64, r Reading) (*PositionResult, error) {
	if err := validateStruct(r, errors.PositionInvalid); err != nil {
		metrics.GetMetrics().RecordPosition(ctx, "invalid")
		return nil, err
	}
	if r.Timestamp.After(s.Clock.Now().Add(s.Policy.MaxClockSkew)) {
		metrics.GetMetrics().RecordPosition(ctx, "invalid")
		return nil, fmt.Errorf("%w: timestamp is in the future", errors.PositionInvalid)
	}

	for attempt := 0; attempt < maxSnapshotRetries; attempt++ {
		res, err := s.recordOnce(ctx, workerID, r)
		if stderrors.Is(err, repository.ErrSnapshotChanged) {
			s.Logger.Debug("presence snapshot changed, retrying",
				zap.Int64("worker_id", workerID),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		return res, err
	}
	return nil, fmt.Errorf("failed to record position for worker %d: %w", workerID, repository.ErrSnapshotChanged)
}

func (s *PresenceService) recordOnce(ctx context.Context, workerID int64, r Reading) (*PositionResult, error) {
	prev, err := s.Repos.Presence.Get(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if prev != nil && !r.Timestamp.After(prev.LastSeenAt) {
		metrics.GetMetrics().RecordPosition(ctx, "stale")
		return &PositionResult{Accepted: false, Snapshot: prev}, nil
	}

	next := &model.PresenceSnapshot{
		WorkerID:   workerID,
		GPSEnabled: r.GPSEnabled,
		Online:     true,
		LastSeenAt: r.Timestamp,
	}
	if prev != nil {
		next.SessionID = prev.SessionID
		next.Latitude, next.Longitude, next.Accuracy = prev.Latitude, prev.Longitude, prev.Accuracy
		next.ConsecutiveMisses = prev.ConsecutiveMisses
		next.AreaStatus = prev.AreaStatus
		next.DistanceMeters = prev.DistanceMeters
	}
	if r.GPSEnabled {
		next.Latitude, next.Longitude, next.Accuracy = r.Latitude, r.Longitude, r.Accuracy
		next.ConsecutiveMisses = 0
	}

	session, err := s.Repos.Sessions.FindOpenByWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}

	var (
		topic string
		event *model.GeofenceEvent
	)
	switch {
	case session == nil:
		next.SessionID = nil
		next.AreaStatus = model.AreaStatusUnknown
		next.DistanceMeters = nil

	case !r.GPSEnabled:
		if prev == nil || prev.SessionID == nil || *prev.SessionID != session.ID {
			next.AreaStatus = model.AreaStatusUnknown
			next.DistanceMeters = nil
		}
		next.SessionID = &session.ID

	default:
		site, err := s.Repos.Sites.Get(ctx, session.SiteID)
		if err != nil {
			return nil, err
		}
		c := s.geofence.Classify(site, r.Point())

		prevStatus := model.AreaStatusUnknown
		if prev != nil && prev.SessionID != nil && *prev.SessionID == session.ID {
			prevStatus = prev.AreaStatus
		}

		next.SessionID = &session.ID
		next.AreaStatus = c.Status
		next.DistanceMeters = nil
		if c.HasGeofence {
			d := c.DistanceMeters
			next.DistanceMeters = &d
		}

		if topic = Transition(prevStatus, c.Status); topic != "" {
			event = &model.GeofenceEvent{
				WorkerID:       workerID,
				SessionID:      session.ID,
				SiteID:         site.ID,
				DistanceMeters: c.DistanceMeters,
				RadiusMeters:   c.RadiusMeters,
				At:             r.Timestamp,
			}
		}
	}

	if err := s.Repos.Presence.Save(ctx, next, prev); err != nil {
		return nil, err
	}
	metrics.GetMetrics().RecordPosition(ctx, "accepted")

	if event != nil {
		s.Logger.Info("geofence transition",
			zap.Int64("worker_id", workerID),
			zap.Int64("session_id", event.SessionID),
			zap.String("topic", topic),
			zap.Float64("distance_meters", event.DistanceMeters),
		)
		metrics.GetMetrics().RecordTransition(ctx, topic)
		s.publish(ctx, topic, event)
	}

	return &PositionResult{Accepted: true, Snapshot: next, Transition: topic}, nil
}

// Snapshot 没有快照时返回 nil, nil
func (s *PresenceService) Snapshot(ctx context.Context, workerID int64) (*model.PresenceSnapshot, error) {
	return s.Repos.Presence.Get(ctx, workerID)
}

func (s *PresenceService) MarkOffline(ctx context.Context, workerID int64) error {
	if err := s.Repos.Presence.MarkOffline(ctx, workerID); err != nil {
		return fmt.Errorf("failed to mark worker %d offline: %w", workerID, err)
	}
	return nil
}

// History 轨迹回放
func (s *PresenceService) History(ctx context.Context, workerID int64, from, to time.Time) ([]*model.PresenceHistory, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: empty time range", errors.InvalidRequest)
	}
	return s.Repos.Presence.History(ctx, workerID, from, to)
}
