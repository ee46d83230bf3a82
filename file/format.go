package file

import (
	"github.com/pkg/errors"
)

const (
	TypeCSV     = "csv"
	TypeJSON    = "json"
	TypeMsgpack = "msgpack"
)

const (
	JSONEachLine    = "each_line"
	JSONSingleBlock = "single_block"
)

// Format 文件的序列化格式
type Format interface {
	Type() string
}

// CsvFormat 分隔文本格式
//
// Quote/Escape 为空表示不使用；HeaderRow 小于 1 表示没有表头；DataStart 为数据起始行（从 1 开始）
type CsvFormat struct {
	Delimiter   string `cfg:"delimiter" def:","`
	Quote       string `cfg:"quote"`
	Escape      string `cfg:"escape"`
	NullValue   string `cfg:"null"`
	NewLine     string `cfg:"newLine" def:"\n"`
	HeaderRow   int    `cfg:"headerRow"`
	DataStart   int    `cfg:"dataStart"`
	DoubleQuote bool   `cfg:"doubleQuote"`
	Bom         string `cfg:"bom"`
	Encoding    string `cfg:"encoding" def:"UTF-8"`
}

// NewCsvFormat 常见的 csv 格式：双引号包裹，双引号加倍转义，无表头
func NewCsvFormat() *CsvFormat {
	return &CsvFormat{
		Delimiter:   ",",
		Quote:       `"`,
		NullValue:   `\N`,
		NewLine:     "\n",
		HeaderRow:   -1,
		DataStart:   1,
		DoubleQuote: true,
		Encoding:    "UTF-8",
	}
}

func NewCsvFormatWithOptions(options *CsvFormat) (*CsvFormat, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	f := *options
	if f.Delimiter == "" {
		f.Delimiter = ","
	}
	if f.NewLine == "" {
		f.NewLine = "\n"
	}
	return &f, nil
}

func (f *CsvFormat) Type() string {
	return TypeCSV
}

func (f *CsvFormat) HasQuote() bool {
	return f.Quote != ""
}

func (f *CsvFormat) HasEscape() bool {
	return f.Escape != ""
}

func (f *CsvFormat) HasHeader() bool {
	return f.HeaderRow > 0
}

// DataStartRow 数据实际起始行，至少在表头之后
func (f *CsvFormat) DataStartRow() int {
	start := f.DataStart
	if f.HeaderRow > 0 && start <= f.HeaderRow {
		start = f.HeaderRow + 1
	}
	if start < 1 {
		start = 1
	}
	return start
}

// JsonFormat 每行一个对象，或整个文件一个数组
type JsonFormat struct {
	FileType string `cfg:"fileType" def:"each_line" validate:"omitempty,oneof=each_line single_block"`
}

func NewJsonFormat() *JsonFormat {
	return &JsonFormat{FileType: JSONEachLine}
}

func (f *JsonFormat) Type() string {
	return TypeJSON
}

func (f *JsonFormat) EachLine() bool {
	return f.FileType == "" || f.FileType == JSONEachLine
}

// MsgpackFormat 连续的 msgpack map，每行一个
type MsgpackFormat struct{}

func NewMsgpackFormat() *MsgpackFormat {
	return &MsgpackFormat{}
}

func (f *MsgpackFormat) Type() string {
	return TypeMsgpack
}

// ParseFormat 按名称创建默认格式，命令行使用
func ParseFormat(name string) (Format, error) {
	switch name {
	case TypeCSV:
		return NewCsvFormat(), nil
	case TypeJSON, "jsonl":
		return NewJsonFormat(), nil
	case TypeMsgpack:
		return NewMsgpackFormat(), nil
	}
	return nil, errors.Errorf("unknown format: %s", name)
}
