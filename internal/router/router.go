package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	goredis "github.com/redis/go-redis/v9"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/handler"
	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/middleware"
)

// Register 注册路由。限流放在认证之后，按工人计数
func Register(h *server.Hertz, hd *handler.Handler, rdb goredis.Cmdable) {
	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.CORSMiddleware())
	h.Use(middleware.OpenTelemetryMiddleware())

	v1 := h.Group("/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/token/refresh", middleware.RateLimitMiddleware(rdb, middleware.RefreshRateLimitConfig), hd.RefreshToken)
	}

	sessions := v1.Group("/sessions", middleware.AuthMiddleware())
	{
		write := middleware.RateLimitMiddleware(rdb, middleware.SessionRateLimitConfig)

		sessions.POST("", write, hd.OpenSession)
		// 静态路径优先于 :id
		sessions.GET("/open", hd.GetOpenSession)
		sessions.GET("/:id", hd.GetSession)
		sessions.POST("/:id/close", write, hd.CloseSession)
		sessions.POST("/:id/lunch/adjust", write, hd.AdjustBreak)
	}

	positions := v1.Group("/positions", middleware.AuthMiddleware())
	{
		positions.POST("", middleware.RateLimitMiddleware(rdb, middleware.PositionRateLimitConfig), hd.RecordPosition)
		positions.GET("/history", hd.GetPositionHistory)
	}

	lunch := v1.Group("/lunch", middleware.AuthMiddleware(), middleware.RateLimitMiddleware(rdb, middleware.SessionRateLimitConfig))
	{
		lunch.POST("/start", hd.StartBreak)
		lunch.POST("/end", hd.EndBreak)
	}

	summaries := v1.Group("/summaries", middleware.AuthMiddleware())
	{
		summaries.GET("", hd.ListDailySummaries)
		summaries.GET("/:date", hd.GetDailySummary)
	}

	absences := v1.Group("/absences", middleware.AuthMiddleware())
	{
		absences.GET("", hd.ListAbsences)
		absences.POST("/notice", hd.ReportAbsence)
	}
}
