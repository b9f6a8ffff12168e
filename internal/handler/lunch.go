package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model/dto"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/response"
)

// StartBreak 开始午休
// POST /v1/lunch/start
func (h *Handler) StartBreak(ctx context.Context, c *app.RequestContext) {
	workerID, ok := workerID(ctx, c)
	if !ok {
		return
	}

	rec, err := h.engine.Lunch.StartBreak(ctx, workerID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, rec)
}

// EndBreak 结束午休
// POST /v1/lunch/end
func (h *Handler) EndBreak(ctx context.Context, c *app.RequestContext) {
	workerID, ok := workerID(ctx, c)
	if !ok {
		return
	}

	rec, err := h.engine.Lunch.EndBreak(ctx, workerID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, rec)
}

// AdjustBreak 下班后补录忘记打卡的午休，已扣分的记录不能再改
// POST /v1/sessions/:id/lunch/adjust
func (h *Handler) AdjustBreak(ctx context.Context, c *app.RequestContext) {
	workerID, ok := workerID(ctx, c)
	if !ok {
		return
	}
	sessionID, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}

	var req dto.AdjustBreakRequest
	if !h.bindJSON(ctx, c, &req) {
		return
	}
	if _, err := h.ownSession(ctx, workerID, sessionID); err != nil {
		response.Error(ctx, c, err)
		return
	}

	rec, err := h.engine.Lunch.AdjustBreak(ctx, sessionID, req.BreakStart, req.BreakEnd)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, rec)
}
