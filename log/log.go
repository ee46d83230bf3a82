package log

import (
	"io"
	"sync/atomic"

	"github.com/hatlonely/datadb/log/logger"
	"github.com/hatlonely/datadb/log/writer"
	"github.com/hatlonely/datadb/ref"
	"github.com/pkg/errors"
)

const (
	LoggerNamespace = "github.com/hatlonely/datadb/log/logger"
	WriterNamespace = "github.com/hatlonely/datadb/log/writer"
)

var defaultLogger atomic.Pointer[logger.Logger]

func init() {
	ref.MustRegister(LoggerNamespace, "SLog", logger.NewSLogWithOptions)
	ref.MustRegister(WriterNamespace, "ConsoleWriter", writer.NewConsoleWriterWithOptions)
	ref.MustRegister(WriterNamespace, "FileWriter", writer.NewFileWriterWithOptions)

	l, err := logger.NewSLogWithOptions(&logger.SLogOptions{Level: "info", Format: "text"})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	SetDefault(l)
}

// Default 进程级默认日志器，文本格式输出到标准错误
func Default() logger.Logger {
	return *defaultLogger.Load()
}

func SetDefault(l logger.Logger) {
	defaultLogger.Store(&l)
}

// NewLoggerWithOptions 通过 ref 创建日志器，options 为空时返回 Default()
func NewLoggerWithOptions(options *ref.TypeOptions) (logger.Logger, error) {
	if options == nil || options.Type == "" {
		return Default(), nil
	}
	l, err := ref.Build[logger.Logger](options, LoggerNamespace)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create logger %s", options.Type)
	}
	return l, nil
}

// Discard 丢弃所有日志
func Discard() logger.Logger {
	l, _ := logger.NewSLog(io.Discard, &logger.SLogOptions{Level: "error"})
	return l
}
