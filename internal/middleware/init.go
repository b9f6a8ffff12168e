package middleware

import (
	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/logger"
)

// Init 初始化所有中间件，须在 token.Init 之后调用
func Init() error {
	if err := initAuthMiddleware(); err != nil {
		logger.Named("middleware").Error("Failed to initialize auth middleware", zap.Error(err))
		return err
	}

	logger.Named("middleware").Info("All middlewares initialized successfully")
	return nil
}
