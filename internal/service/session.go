package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/repository"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/metrics"
)

// OpenRequest 开工（打卡上班）
type OpenRequest struct {
	Position Reading `json:"position"`
	WorkerID int64   `json:"worker_id" validate:"required"`
	SiteID   int64   `json:"site_id" validate:"required"`
}

// CloseRequest 下班或系统关闭。Position 可为空
type CloseRequest struct {
	Position  *Reading          `json:"position,omitempty"`
	Reason    model.CloseReason `json:"reason"`
	SessionID int64             `json:"session_id"`
}

// SessionService 工作会话的开启与关闭
type SessionService struct {
	Deps
	geofence *GeofenceEvaluator

	mu        sync.RWMutex
	observers []SessionObserver
}

func NewSessionService(deps Deps, geofence *GeofenceEvaluator) *SessionService {
	deps = deps.WithDefaults()
	if geofence == nil {
		geofence = NewGeofenceEvaluator(deps.Logger)
	}
	return &SessionService{Deps: deps, geofence: geofence}
}

// Observe 注册会话关闭回调
func (s *SessionService) Observe(o SessionObserver) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

func (s *SessionService) OpenSession(ctx context.Context, req OpenRequest) (*model.WorkSession, error) {
	if err := validateStruct(req, errors.InvalidRequest); err != nil {
		return nil, err
	}

	worker, err := s.Repos.Workers.Get(ctx, req.WorkerID)
	if err != nil {
		return nil, err
	}
	if !worker.IsActive() {
		return nil, errors.WorkerInactive
	}

	existing, err := s.Repos.Sessions.FindOpenByWorker(ctx, req.WorkerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, s.alreadyOpen(ctx, existing)
	}

	site, err := s.Repos.Sites.Get(ctx, req.SiteID)
	if err != nil {
		return nil, err
	}

	session := &model.WorkSession{
		WorkerID:      req.WorkerID,
		SiteID:        req.SiteID,
		OpenedAt:      s.Clock.Now(),
		OpenLatitude:  req.Position.Latitude,
		OpenLongitude: req.Position.Longitude,
	}

	status := model.AreaStatusUnknown
	if req.Position.GPSEnabled {
		c := s.geofence.Classify(site, req.Position.Point())
		status = c.Status
		if c.HasGeofence {
			d := c.DistanceMeters
			session.OpenDistance = &d
		}
		if c.Status == model.AreaStatusOut {
			if s.Policy.GeofencePolicy == GeofencePolicyReject {
				return nil, &errors.OutsideGeofenceError{
					SiteID:         site.ID,
					DistanceMeters: c.DistanceMeters,
					RadiusMeters:   c.RadiusMeters,
				}
			}
			session.OpenedOutOfArea = true
		}
	}

	if err := s.Repos.Sessions.Create(ctx, session); err != nil {
		if repository.IsDuplicate(err) {
			// 并发开工，以先写入者为准
			existing, findErr := s.Repos.Sessions.FindOpenByWorker(ctx, req.WorkerID)
			if findErr == nil && existing != nil {
				return nil, s.alreadyOpen(ctx, existing)
			}
			return nil, &errors.AlreadyOpenError{SiteID: site.ID, SiteName: site.Name}
		}
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	s.attachSnapshot(ctx, session, req.Position, status)

	s.Logger.Info("session opened",
		zap.Int64("worker_id", session.WorkerID),
		zap.Int64("session_id", session.ID),
		zap.Int64("site_id", session.SiteID),
		zap.Bool("opened_out_of_area", session.OpenedOutOfArea),
	)
	metrics.GetMetrics().RecordSessionOpened(ctx, session.OpenedOutOfArea)
	return session, nil
}

// attachSnapshot 以开工定位初始化快照的围栏状态，不产生进出事件
func (s *SessionService) attachSnapshot(ctx context.Context, session *model.WorkSession, r Reading, status model.AreaStatus) {
	for attempt := 0; attempt < maxSnapshotRetries; attempt++ {
		prev, err := s.Repos.Presence.Get(ctx, session.WorkerID)
		if err != nil {
			s.Logger.Warn("failed to load presence snapshot", zap.Int64("worker_id", session.WorkerID), zap.Error(err))
			return
		}

		next := &model.PresenceSnapshot{WorkerID: session.WorkerID}
		if prev != nil {
			*next = *prev
		}
		next.SessionID = &session.ID
		next.AreaStatus = status
		next.DistanceMeters = session.OpenDistance
		next.ConsecutiveMisses = 0
		next.Online = true

		if r.GPSEnabled && (prev == nil || r.Timestamp.After(prev.LastSeenAt)) {
			next.Latitude, next.Longitude, next.Accuracy = r.Latitude, r.Longitude, r.Accuracy
			next.GPSEnabled = true
			next.LastSeenAt = r.Timestamp
		}
		if next.LastSeenAt.IsZero() {
			next.LastSeenAt = session.OpenedAt
		}

		err = s.Repos.Presence.Save(ctx, next, prev)
		if stderrors.Is(err, repository.ErrSnapshotChanged) {
			continue
		}
		if err != nil {
			s.Logger.Warn("failed to attach presence snapshot", zap.Int64("worker_id", session.WorkerID), zap.Error(err))
		}
		return
	}
}

func (s *SessionService) alreadyOpen(ctx context.Context, existing *model.WorkSession) error {
	e := &errors.AlreadyOpenError{SessionID: existing.ID, SiteID: existing.SiteID}
	if site, err := s.Repos.Sites.Get(ctx, existing.SiteID); err == nil {
		e.SiteName = site.Name
	} else {
		e.SiteName = fmt.Sprintf("#%d", existing.SiteID)
	}
	return e
}

// CloseSession 关闭会话。并发关闭时只有一方成功，其余得到 NotOpenError；
// 系统关闭后短时间内到达的手动下班会接管关闭原因。
func (s *SessionService) CloseSession(ctx context.Context, req CloseRequest) (*model.WorkSession, error) {
	if !req.Reason.Valid() {
		return nil, errors.CloseReasonInvalid
	}
	if req.Position != nil {
		if err := validateStruct(*req.Position, errors.PositionInvalid); err != nil {
			return nil, err
		}
	}

	session, err := s.Repos.Sessions.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	closeDistance, err := s.closeDistance(ctx, session, req.Position)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	if !session.IsOpen() {
		return s.claimOrReject(ctx, session, req.Reason, now, closeDistance, false)
	}

	hours := model.HoursBetween(session.OpenedAt, now)
	closed, err := s.Repos.Sessions.Close(ctx, session.ID, repository.CloseParams{
		ClosedAt:      now,
		Reason:        req.Reason,
		HoursWorked:   hours,
		CloseDistance: closeDistance,
	})
	if err != nil {
		return nil, err
	}
	if !closed {
		current, err := s.Repos.Sessions.Get(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		return s.claimOrReject(ctx, current, req.Reason, now, closeDistance, true)
	}

	current, err := s.Repos.Sessions.Get(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	s.afterClose(ctx, current)
	return current, nil
}

func (s *SessionService) closeDistance(ctx context.Context, session *model.WorkSession, r *Reading) (*float64, error) {
	if r == nil || !r.GPSEnabled {
		return nil, nil
	}
	site, err := s.Repos.Sites.Get(ctx, session.SiteID)
	if err != nil {
		return nil, err
	}
	c := s.geofence.Classify(site, r.Point())
	if !c.HasGeofence {
		return nil, nil
	}
	d := c.DistanceMeters
	return &d, nil
}

// claimOrReject 会话已被关闭：手动下班在优先窗口内接管，否则返回 NotOpenError
func (s *SessionService) claimOrReject(ctx context.Context, session *model.WorkSession, reason model.CloseReason,
	now time.Time, closeDistance *float64, conflict bool,
) (*model.WorkSession, error) {
	notOpen := &errors.NotOpenError{SessionID: session.ID, Conflict: conflict}

	if reason != model.CloseReasonManual || !session.IsAutoClosed || session.ClosedAt == nil {
		return nil, notOpen
	}
	if now.Sub(*session.ClosedAt) > s.Policy.ManualPriorityWindow {
		return nil, notOpen
	}

	claimed, err := s.Repos.Sessions.ClaimManual(ctx, session.ID, now.Add(-s.Policy.ManualPriorityWindow), closeDistance)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, notOpen
	}

	current, err := s.Repos.Sessions.Get(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("manual close claimed automatic closure",
		zap.Int64("worker_id", current.WorkerID),
		zap.Int64("session_id", current.ID),
		zap.String("auto_reason", string(session.CloseReason)),
	)
	s.publish(ctx, model.TopicSessionClosed, closedEvent(current))
	return current, nil
}

func (s *SessionService) afterClose(ctx context.Context, session *model.WorkSession) {
	online := session.CloseReason != model.CloseReasonGPSLost
	if err := s.Repos.Presence.DetachSession(ctx, session.WorkerID, session.ID, online); err != nil {
		s.Logger.Warn("failed to detach presence snapshot",
			zap.Int64("worker_id", session.WorkerID),
			zap.Int64("session_id", session.ID),
			zap.Error(err),
		)
	}

	s.mu.RLock()
	observers := append([]SessionObserver(nil), s.observers...)
	s.mu.RUnlock()
	for _, o := range observers {
		if err := o.OnSessionClosed(ctx, session); err != nil {
			s.Logger.Error("session close observer failed",
				zap.Int64("session_id", session.ID),
				zap.Error(err),
			)
		}
	}

	s.Logger.Info("session closed",
		zap.Int64("worker_id", session.WorkerID),
		zap.Int64("session_id", session.ID),
		zap.String("reason", string(session.CloseReason)),
		zap.String("hours_worked", session.Hours().StringFixed(2)),
	)
	metrics.GetMetrics().RecordSessionClosed(ctx, string(session.CloseReason))
	s.publish(ctx, model.TopicSessionClosed, closedEvent(session))
}

func closedEvent(session *model.WorkSession) *model.SessionClosedEvent {
	e := &model.SessionClosedEvent{
		WorkerID:     session.WorkerID,
		SessionID:    session.ID,
		Reason:       session.CloseReason,
		IsAutoClosed: session.IsAutoClosed,
		HoursWorked:  session.Hours().StringFixed(2),
	}
	if session.ClosedAt != nil {
		e.ClosedAt = *session.ClosedAt
	}
	return e
}

// GetOpenSession 没有未结束会话时返回 errors.NoOpenSession
func (s *SessionService) GetOpenSession(ctx context.Context, workerID int64) (*model.WorkSession, error) {
	session, err := s.Repos.Sessions.FindOpenByWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.NoOpenSession
	}
	return session, nil
}

func (s *SessionService) GetSession(ctx context.Context, id int64) (*model.WorkSession, error) {
	return s.Repos.Sessions.Get(ctx, id)
}

// CloseAllReport 批量关闭结果
type CloseAllReport struct {
	Report
	Closed        int `json:"closed"`
	AlreadyClosed int `json:"already_closed"`
}

// CloseOpenSessions 以同一原因关闭所有未结束会话（收工时使用）
func (s *SessionService) CloseOpenSessions(ctx context.Context, reason model.CloseReason) (*CloseAllReport, error) {
	if !reason.Valid() {
		return nil, errors.CloseReasonInvalid
	}
	report := &CloseAllReport{Report: NewReport(s.Clock.Now())}

	sessions, err := s.Repos.Sessions.ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Processed++

		_, err := s.CloseSession(ctx, CloseRequest{SessionID: session.ID, Reason: reason})
		switch {
		case err == nil:
			report.Closed++
		case stderrors.Is(err, errors.SessionNotOpen):
			report.AlreadyClosed++
		default:
			report.Fail(session.WorkerID, err)
		}
	}

	report.FinishedAt = s.Clock.Now()
	return report, nil
}
