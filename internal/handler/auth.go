package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model/dto"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/logger"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/response"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/token"
)

// RefreshToken 刷新访问令牌。停用的工人不再续签
// POST /v1/auth/token/refresh
func (h *Handler) RefreshToken(ctx context.Context, c *app.RequestContext) {
	var req dto.RefreshTokenRequest
	if !h.bindJSON(ctx, c, &req) {
		return
	}

	workerID, err := token.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		logger.Named("auth").Info("Refresh token rejected", zap.Error(err))
		response.Error(ctx, c, errors.InvalidToken)
		return
	}

	worker, err := h.engine.Deps.Repos.Workers.Get(ctx, workerID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	if !worker.IsActive() {
		response.Error(ctx, c, errors.WorkerInactive)
		return
	}

	access, refresh, expiresIn, err := token.GenerateTokenPair(workerID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, dto.TokenPairResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    expiresIn,
	})
}
