package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/go-playground/validator/v10"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/bootstrap"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/middleware"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/response"
)

// Handler HTTP 适配层，只做参数解析与身份提取，判定逻辑全部在 service
type Handler struct {
	engine   *bootstrap.Engine
	validate *validator.Validate
}

func New(engine *bootstrap.Engine) *Handler {
	return &Handler{
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// workerID 认证中间件之后一定存在，缺失时按未认证处理
func workerID(ctx context.Context, c *app.RequestContext) (int64, bool) {
	id, ok := middleware.GetWorkerID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return 0, false
	}
	return id, true
}

// bindJSON 空请求体视为零值
func (h *Handler) bindJSON(ctx context.Context, c *app.RequestContext, req interface{}) bool {
	if len(c.Request.Body()) > 0 {
		if err := c.BindJSON(req); err != nil {
			response.BindError(ctx, c, err)
			return false
		}
	}
	if err := h.validate.Struct(req); err != nil {
		response.BindError(ctx, c, err)
		return false
	}
	return true
}

func pathID(ctx context.Context, c *app.RequestContext, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(ctx, c, fmt.Errorf("%w: %s must be a positive integer", errors.InvalidRequest, name))
		return 0, false
	}
	return id, true
}
