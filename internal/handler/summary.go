package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model/dto"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/response"
)

// GetDailySummary 某日工时与薪资汇总
// GET /v1/summaries/:date
func (h *Handler) GetDailySummary(ctx context.Context, c *app.RequestContext) {
	workerID, ok := workerID(ctx, c)
	if !ok {
		return
	}

	summary, err := h.engine.Worktime.GetDailySummary(ctx, workerID, c.Param("date"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, summary)
}

// ListDailySummaries 日期范围内的日结
// GET /v1/summaries?from=2025-03-01&to=2025-03-31
func (h *Handler) ListDailySummaries(ctx context.Context, c *app.RequestContext) {
	workerID, ok := workerID(ctx, c)
	if !ok {
		return
	}

	summaries, err := h.engine.Worktime.ListDailySummaries(ctx, workerID, c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, summaries)
}

// ReportAbsence 提前报备缺勤，当天检测时不扣分
// POST /v1/absences/notice
func (h *Handler) ReportAbsence(ctx context.Context, c *app.RequestContext) {
	workerID, ok := workerID(ctx, c)
	if !ok {
		return
	}

	var req dto.AbsenceNoticeRequest
	if !h.bindJSON(ctx, c, &req) {
		return
	}

	notice, err := h.engine.Absence.ReportAbsence(ctx, workerID, req.Date, req.Reason)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, notice)
}

// ListAbsences 日期范围内被记录的缺勤
// GET /v1/absences?from=2025-03-01&to=2025-03-31
func (h *Handler) ListAbsences(ctx context.Context, c *app.RequestContext) {
	workerID, ok := workerID(ctx, c)
	if !ok {
		return
	}

	records, err := h.engine.Absence.ListAbsences(ctx, workerID, c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, records)
}
