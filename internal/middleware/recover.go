package middleware

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/RodrigoCConte/monofloor-admin-sub002/config"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/logger"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/response"
)

// RecoverConfig recover 中间件配置
type RecoverConfig struct {
	// 是否记录调用栈
	EnableStackTrace bool
	// 是否在响应中返回 panic 详情
	ExposeDetails bool
	// 是否记录请求体（定位上报的小请求体）
	LogRequestBody bool
	// 是否写入当前 span
	RecordInSpan bool
}

// NewRecoverConfig 生产环境不返回 panic 详情
func NewRecoverConfig() RecoverConfig {
	return RecoverConfig{
		EnableStackTrace: true,
		ExposeDetails:    !config.Cfg.IsProduction(),
		LogRequestBody:   true,
		RecordInSpan:     true,
	}
}

// RecoverMiddleware 创建 recover 中间件
func RecoverMiddleware() app.HandlerFunc {
	return RecoverMiddlewareWithConfig(NewRecoverConfig())
}

func RecoverMiddlewareWithConfig(cfg RecoverConfig) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(ctx, c, r, cfg)
			}
		}()

		c.Next(ctx)
	}
}

func handlePanic(ctx context.Context, c *app.RequestContext, r interface{}, cfg RecoverConfig) {
	var stack string
	if cfg.EnableStackTrace {
		stack = stackTrace(4)
	}

	logPanic(ctx, c, r, stack, cfg)

	if cfg.RecordInSpan {
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.RecordError(fmt.Errorf("panic: %v", r))
			span.SetStatus(codes.Error, "panic recovered")
		}
	}

	def := errors.Definition{Code: "INTERNAL_SERVER_ERROR", Message: "Internal server error"}
	if !cfg.ExposeDetails {
		response.Error(ctx, c, def)
		c.Abort()
		return
	}

	def.Message = fmt.Sprintf("Internal error: %v", r)
	details := map[string]interface{}{
		"panic":     fmt.Sprintf("%v", r),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if stack != "" {
		details["stack"] = stack
	}
	response.ErrorWithDetails(ctx, c, def, details)
	c.Abort()
}

// stackTrace 只保留业务调用栈
func stackTrace(skip int) string {
	var sb strings.Builder
	for i := skip; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "/runtime/") {
			continue
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		fmt.Fprintf(&sb, "%s:%d %s\n", file, line, fn.Name())
	}
	return sb.String()
}

func logPanic(ctx context.Context, c *app.RequestContext, r interface{}, stack string, cfg RecoverConfig) {
	fields := []zap.Field{
		zap.String("panic", fmt.Sprintf("%v", r)),
		zap.String("path", string(c.Path())),
		zap.String("method", string(c.Method())),
		zap.String("client_ip", c.ClientIP()),
	}

	if requestID := string(c.GetHeader("X-Request-Id")); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if workerID, ok := GetWorkerID(ctx, c); ok {
		fields = append(fields, logger.WorkerID(workerID))
	}

	if cfg.LogRequestBody {
		body := c.Request.Body()
		if len(body) > 0 && len(body) < 1024 && strings.Contains(string(c.ContentType()), "json") {
			fields = append(fields, zap.ByteString("body", body))
		}
	}
	if stack != "" {
		fields = append(fields, zap.String("stack", stack))
	}

	fields = append(fields, zap.Bool("severe", isSeverePanic(r)))
	logger.FromContext(ctx, "recover").Error("Panic recovered", fields...)
}

// isSeverePanic 运行时致命错误单独提级
func isSeverePanic(r interface{}) bool {
	if r == nil {
		return false
	}
	msg := fmt.Sprintf("%v", r)
	for _, pattern := range []string{
		"out of memory",
		"concurrent map",
		"nil pointer dereference",
		"index out of range",
		"slice bounds out of range",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
