package middleware

import (
	"context"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"

	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/response"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/token"
)

const (
	IdentityKey = token.IdentityKey
)

var (
	authMiddleware *jwt.HertzJWTMiddleware
)

func initAuthMiddleware() error {
	// 复用 token 包的生成器，保证签发与校验使用同一套密钥和过期时间
	sharedGenerator := token.GetGenerator()
	if sharedGenerator == nil {
		return fmt.Errorf("token generator not initialized, call token.Init() first")
	}

	mw, err := jwt.New(&jwt.HertzJWTMiddleware{
		Realm:       "monofloor presence",
		Key:         sharedGenerator.Key,
		Timeout:     sharedGenerator.Timeout,
		MaxRefresh:  sharedGenerator.MaxRefresh,
		IdentityKey: sharedGenerator.IdentityKey,
		TimeFunc:    sharedGenerator.TimeFunc,

		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(ctx, c)
			workerID, err := token.ParseIdentity(claims[IdentityKey])
			if err != nil {
				return nil
			}
			return workerID
		},

		// 刷新令牌不能当作访问令牌使用
		Authorizator: func(data interface{}, ctx context.Context, c *app.RequestContext) bool {
			if _, ok := data.(int64); !ok {
				return false
			}
			tokenType, _ := jwt.ExtractClaims(ctx, c)["type"].(string)
			return tokenType != "refresh"
		},

		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			response.Error(ctx, c, fmt.Errorf("%w: %s", errors.Unauthorized, message))
		},

		TokenLookup:   "header: Authorization, query: token",
		TokenHeadName: "Bearer",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize auth middleware: %w", err)
	}

	authMiddleware = mw
	return nil
}

func AuthMiddleware() app.HandlerFunc {
	if authMiddleware == nil {
		panic("AuthMiddleware not initialized, call Init() first")
	}
	return authMiddleware.MiddlewareFunc()
}

// GetWorkerID 从请求上下文中获取工人 ID
func GetWorkerID(ctx context.Context, c *app.RequestContext) (int64, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return 0, false
	}

	id, ok := v.(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}
