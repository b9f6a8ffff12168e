package handler

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model/dto"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/service"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/response"
)

// OpenSession 开工打卡
// POST /v1/sessions
func (h *Handler) OpenSession(ctx context.Context, c *app.RequestContext) {
	workerID, ok := workerID(ctx, c)
	if !ok {
		return
	}

	var req dto.OpenSessionRequest
	if !h.bindJSON(ctx, c, &req) {
		return
	}

	session, err := h.engine.Sessions.OpenSession(ctx, service.OpenRequest{
		WorkerID: workerID,
		SiteID:   req.SiteID,
		Position: req.Position,
	})
	if err != nil {
		var already *errors.AlreadyOpenError
		if stderrors.As(err, &already) {
			response.ErrorWithDetails(ctx, c, err, map[string]interface{}{
				"session_id": already.SessionID,
				"site_id":    already.SiteID,
			})
			return
		}
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, session)
}

// CloseSession 手动下班
// POST /v1/sessions/:id/close
func (h *Handler) CloseSession(ctx context.Context, c *app.RequestContext) {
	workerID, ok := workerID(ctx, c)
	if !ok {
		return
	}
	sessionID, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}

	var req dto.CloseSessionRequest
	if !h.bindJSON(ctx, c, &req) {
		return
	}

	if _, err := h.ownSession(ctx, workerID, sessionID); err != nil {
		response.Error(ctx, c, err)
		return
	}

	session, err := h.engine.Sessions.CloseSession(ctx, service.CloseRequest{
		SessionID: sessionID,
		Reason:    model.CloseReasonManual,
		Position:  req.Position,
	})
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, session)
}

// GetOpenSession 当前未结束的会话
// GET /v1/sessions/open
func (h *Handler) GetOpenSession(ctx context.Context, c *app.RequestContext) {
	workerID, ok := workerID(ctx, c)
	if !ok {
		return
	}

	session, err := h.engine.Sessions.GetOpenSession(ctx, workerID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, session)
}

// GetSession 会话详情，只能查看自己的会话
// GET /v1/sessions/:id
func (h *Handler) GetSession(ctx context.Context, c *app.RequestContext) {
	workerID, ok := workerID(ctx, c)
	if !ok {
		return
	}
	sessionID, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}

	session, err := h.ownSession(ctx, workerID, sessionID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, session)
}

// ownSession 别人的会话按不存在处理
func (h *Handler) ownSession(ctx context.Context, workerID, sessionID int64) (*model.WorkSession, error) {
	session, err := h.engine.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.WorkerID != workerID {
		return nil, errors.SessionNotFound
	}
	return session, nil
}

// RecordPosition App 前台定位上报，网关批量上报走 MQ
// POST /v1/positions
func (h *Handler) RecordPosition(ctx context.Context, c *app.RequestContext) {
	workerID, ok := workerID(ctx, c)
	if !ok {
		return
	}

	var reading service.Reading
	if len(c.Request.Body()) == 0 {
		response.Error(ctx, c, errors.PositionInvalid)
		return
	}
	if err := c.BindJSON(&reading); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := h.engine.Presence.RecordPosition(ctx, workerID, reading)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// GetPositionHistory 轨迹回放，from/to 为 RFC3339
// GET /v1/positions/history
func (h *Handler) GetPositionHistory(ctx context.Context, c *app.RequestContext) {
	workerID, ok := workerID(ctx, c)
	if !ok {
		return
	}

	from, errFrom := time.Parse(time.RFC3339, c.Query("from"))
	to, errTo := time.Parse(time.RFC3339, c.Query("to"))
	if errFrom != nil || errTo != nil {
		response.BindError(ctx, c, stderrors.New("from and to must be RFC3339 timestamps"))
		return
	}

	points, err := h.engine.Presence.History(ctx, workerID, from, to)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, dto.HistoryItems(points))
}
