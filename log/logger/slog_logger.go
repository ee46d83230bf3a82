package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hatlonely/datadb/log/writer"
	"github.com/hatlonely/datadb/ref"
	"github.com/pkg/errors"
)

type SLogOptions struct {
	Level string `cfg:"level" def:"info" validate:"omitempty,oneof=debug info warn error"`
	// Format text 或 json
	Format string `cfg:"format" def:"text" validate:"omitempty,oneof=text json"`
	// Output 为空时输出到标准错误
	Output     *ref.TypeOptions `cfg:"output"`
	TimeFormat string           `cfg:"timeFormat"`
	AddSource  bool             `cfg:"addSource"`
	Fields     map[string]any   `cfg:"fields"`
}

const writerNamespace = "github.com/hatlonely/datadb/log/writer"

// SLog 基于 log/slog 的 Logger 实现
type SLog struct {
	slogger *slog.Logger
}

func NewSLogWithOptions(options *SLogOptions) (*SLog, error) {
	if options == nil {
		return nil, errors.New("options cannot be nil")
	}

	var w writer.Writer
	var err error
	if options.Output != nil && options.Output.Type != "" {
		w, err = ref.Build[writer.Writer](options.Output, writerNamespace)
	} else {
		w, err = writer.NewConsoleWriterWithOptions(nil)
	}
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create writer")
	}

	return NewSLog(w, options)
}

// NewSLog 输出到指定 io.Writer，Output 配置被忽略
func NewSLog(w io.Writer, options *SLogOptions) (*SLog, error) {
	if options == nil {
		options = &SLogOptions{}
	}
	level, err := parseLevel(options.Level)
	if err != nil {
		return nil, err
	}

	handlerOptions := &slog.HandlerOptions{Level: level, AddSource: options.AddSource}
	if options.TimeFormat != "" && options.TimeFormat != time.RFC3339 {
		layout := options.TimeFormat
		handlerOptions.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(a.Key, a.Value.Time().Format(layout))
			}
			return a
		}
	}

	var handler slog.Handler
	switch strings.ToLower(options.Format) {
	case "", "text":
		handler = slog.NewTextHandler(w, handlerOptions)
	case "json":
		handler = slog.NewJSONHandler(w, handlerOptions)
	default:
		return nil, errors.Errorf("unsupported format: %s", options.Format)
	}

	slogger := slog.New(handler)
	if len(options.Fields) > 0 {
		args := make([]any, 0, len(options.Fields)*2)
		for k, v := range options.Fields {
			args = append(args, k, v)
		}
		slogger = slogger.With(args...)
	}
	return &SLog{slogger: slogger}, nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.Errorf("unknown level: %s", level)
}

func (l *SLog) Debug(msg string, args ...any) { l.slogger.Debug(msg, args...) }
func (l *SLog) Info(msg string, args ...any)  { l.slogger.Info(msg, args...) }
func (l *SLog) Warn(msg string, args ...any)  { l.slogger.Warn(msg, args...) }
func (l *SLog) Error(msg string, args ...any) { l.slogger.Error(msg, args...) }

func (l *SLog) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slogger.DebugContext(ctx, msg, args...)
}

func (l *SLog) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, args...)
}

func (l *SLog) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, args...)
}

func (l *SLog) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, args...)
}

func (l *SLog) Enabled(ctx context.Context, level slog.Level) bool {
	return l.slogger.Enabled(ctx, level)
}

func (l *SLog) With(args ...any) Logger {
	return &SLog{slogger: l.slogger.With(args...)}
}

func (l *SLog) WithGroup(name string) Logger {
	return &SLog{slogger: l.slogger.WithGroup(name)}
}

var _ Logger = (*SLog)(nil)
