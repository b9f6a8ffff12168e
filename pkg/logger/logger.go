package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzap "github.com/hertz-contrib/logger/zap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/RodrigoCConte/monofloor-admin-sub002/config"
)

var (
	Logger *zap.Logger
	sink   io.Closer
)

var hlogLevels = map[zapcore.Level]hlog.Level{
	zapcore.DebugLevel: hlog.LevelDebug,
	zapcore.InfoLevel:  hlog.LevelInfo,
	zapcore.WarnLevel:  hlog.LevelWarn,
	zapcore.ErrorLevel: hlog.LevelError,
}

// Init 初始化全局 logger 并接管 hertz 的 hlog。
// process 为 api / worker / scheduler，写进每条日志
func Init(process string) {
	level := zap.NewAtomicLevelAt(parseLevel(config.Cfg.LoggerLevel))

	hz := hertzzap.NewLogger(
		hertzzap.WithCoreEnc(newEncoder(useConsole())),
		hertzzap.WithCoreWs(openSink(config.Cfg.LoggerOutputPath)),
		hertzzap.WithCoreLevel(level),
		hertzzap.WithZapOptions(
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
			zap.Fields(
				zap.String("service", config.Cfg.ServiceName),
				zap.String("process", process),
			),
		),
	)
	hlog.SetLogger(hz)
	if hl, ok := hlogLevels[level.Level()]; ok {
		hlog.SetLevel(hl)
	}

	Logger = hz.Logger()
	Logger.Info("Logger initialized",
		zap.Stringer("level", level.Level()),
		zap.String("environment", config.Cfg.Environment),
		zap.String("workday_timezone", config.Cfg.WorkdayTimezone),
	)
}

// Named 返回带 component 字段的子 logger，未初始化时返回 Nop
func Named(component string) *zap.Logger {
	if Logger == nil {
		return zap.NewNop()
	}
	return Logger.Named(component).With(zap.String("component", component))
}

// FromContext 在 Named 基础上附加当前 span 的 trace_id/span_id，便于与链路对照
func FromContext(ctx context.Context, component string) *zap.Logger {
	l := Named(component)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// WorkerID 统一工人字段名
func WorkerID(id int64) zap.Field {
	return zap.Int64("worker_id", id)
}

func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
	if sink != nil {
		_ = sink.Close()
	}
}

func useConsole() bool {
	return config.Cfg.IsDevelopment() || strings.EqualFold(config.Cfg.LoggerFormat, "text")
}

func newEncoder(console bool) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeCaller = zapcore.ShortCallerEncoder

	if console {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(ec)
}

func openSink(path string) zapcore.WriteSyncer {
	switch strings.ToLower(path) {
	case "", "stdout":
		return zapcore.AddSync(os.Stdout)
	case "stderr":
		return zapcore.AddSync(os.Stderr)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		panic("failed to open log file: " + err.Error())
	}
	sink = file
	return zapcore.AddSync(file)
}

// parseLevel 未知级别按 info 处理
func parseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl < zapcore.DebugLevel || lvl > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return lvl
}
