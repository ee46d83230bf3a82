package logger

import (
	"context"
	"log/slog"
)

// Logger 各组件共用的结构化日志接口，参数为 key, value 交替的属性
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	// Enabled 拼接开销较大的调试信息（如截断后的 sql、脱敏后的命令行）前先判断级别
	Enabled(ctx context.Context, level slog.Level) bool

	With(args ...any) Logger
	WithGroup(name string) Logger
}
