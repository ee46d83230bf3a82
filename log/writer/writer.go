package writer

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// Writer 日志输出器
type Writer interface {
	io.Writer
	io.Closer
}

type ConsoleWriterOptions struct {
	// Target stdout 或 stderr，导出数据可能写到 stdout，默认 stderr
	Target string `cfg:"target" def:"stderr" validate:"omitempty,oneof=stdout stderr"`
}

// ConsoleWriter 写到标准输出或标准错误，Close 不关闭底层文件
type ConsoleWriter struct {
	out *os.File
}

func NewConsoleWriterWithOptions(options *ConsoleWriterOptions) (*ConsoleWriter, error) {
	if options == nil {
		options = &ConsoleWriterOptions{}
	}
	switch options.Target {
	case "", "stderr":
		return &ConsoleWriter{out: os.Stderr}, nil
	case "stdout":
		return &ConsoleWriter{out: os.Stdout}, nil
	}
	return nil, errors.Errorf("unknown console target: %s", options.Target)
}

func (c *ConsoleWriter) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

func (c *ConsoleWriter) Close() error {
	return nil
}
