package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/hatlonely/datadb/rdb"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const timeLayout = "2006-01-02 15:04:05"

// Writer 把行写入文件，按文件声明的压缩和编码输出
type Writer struct {
	file   File
	format Format
	append bool
}

// NewWriter format 为空时使用文件自身声明的格式
func NewWriter(f File, format Format) (*Writer, error) {
	if format == nil {
		if fa, ok := f.(FormatAware); ok {
			format = fa.Format()
		}
	}
	if format == nil {
		return nil, errors.Wrapf(rdb.ErrRequiresDeclaredFormat, "no format for %s", f)
	}
	switch format.(type) {
	case *CsvFormat, *JsonFormat, *MsgpackFormat:
	default:
		return nil, errors.Wrapf(rdb.ErrUnsupportedFormat, "format %s", format.Type())
	}
	return &Writer{file: f, format: format}, nil
}

// Append 追加写入而不是覆盖
func (w *Writer) Append() *Writer {
	w.append = true
	return w
}

type rowEncoder interface {
	begin(columns []string) error
	encode(row *rdb.Row) error
	end() error
}

// InsertAll 写入所有行，返回写入行数
func (w *Writer) InsertAll(ctx context.Context, rows iter.Seq2[*rdb.Row, error]) (n int, err error) {
	fw, err := w.file.Writer(w.append)
	if err != nil {
		return 0, err
	}
	out, err := wrapWriter(fw, compressionOf(w.file), encodingOf(w.file))
	if err != nil {
		_ = fw.Close()
		return 0, err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", w.file)
		}
	}()

	bw := bufio.NewWriter(out)
	enc := w.encoder(bw)

	started := false
	for row, rerr := range rows {
		if rerr != nil {
			return n, rerr
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if !started {
			if err := enc.begin(row.Columns); err != nil {
				return n, err
			}
			started = true
		}
		if err := enc.encode(row); err != nil {
			return n, errors.WithMessagef(err, "failed to write row %d to %s", n+1, w.file)
		}
		n++
	}
	if !started {
		if err := enc.begin(nil); err != nil {
			return n, err
		}
	}
	if err := enc.end(); err != nil {
		return n, err
	}
	if err := bw.Flush(); err != nil {
		return n, errors.Wrapf(err, "failed to flush %s", w.file)
	}
	return n, nil
}

func (w *Writer) encoder(bw *bufio.Writer) rowEncoder {
	switch f := w.format.(type) {
	case *CsvFormat:
		return &csvEncoder{w: bw, format: f}
	case *JsonFormat:
		return &jsonEncoder{w: bw, eachLine: f.EachLine()}
	default:
		return &msgpackEncoder{enc: msgpack.NewEncoder(bw)}
	}
}

type csvEncoder struct {
	w      *bufio.Writer
	format *CsvFormat
}

func (e *csvEncoder) begin(columns []string) error {
	if e.format.Bom != "" {
		if _, err := e.w.WriteString("\ufeff"); err != nil {
			return err
		}
	}
	if !e.format.HasHeader() || columns == nil {
		return nil
	}
	// 表头之前的行留空
	for i := 1; i < e.format.HeaderRow; i++ {
		if _, err := e.w.WriteString(e.format.NewLine); err != nil {
			return err
		}
	}
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	return e.writeRecord(values)
}

func (e *csvEncoder) encode(row *rdb.Row) error {
	return e.writeRecord(row.Values)
}

func (e *csvEncoder) end() error {
	return nil
}

func (e *csvEncoder) writeRecord(values []any) error {
	for i, v := range values {
		if i > 0 {
			if _, err := e.w.WriteString(e.format.Delimiter); err != nil {
				return err
			}
		}
		if _, err := e.w.WriteString(e.field(v)); err != nil {
			return err
		}
	}
	_, err := e.w.WriteString(e.format.NewLine)
	return err
}

func (e *csvEncoder) field(v any) string {
	if v == nil {
		return e.format.NullValue
	}
	s := formatValue(v)
	f := e.format
	if f.HasQuote() {
		switch {
		case f.DoubleQuote:
			s = strings.ReplaceAll(s, f.Quote, f.Quote+f.Quote)
		case f.HasEscape():
			s = strings.ReplaceAll(s, f.Escape, f.Escape+f.Escape)
			s = strings.ReplaceAll(s, f.Quote, f.Escape+f.Quote)
		}
		return f.Quote + s + f.Quote
	}
	if f.HasEscape() {
		s = strings.ReplaceAll(s, f.Escape, f.Escape+f.Escape)
		s = strings.ReplaceAll(s, f.Delimiter, f.Escape+f.Delimiter)
		s = strings.ReplaceAll(s, "\n", f.Escape+"\n")
	}
	return s
}

// formatValue 标量转文本，时间统一为 yyyy-mm-dd hh:mm:ss
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case time.Time:
		return t.Format(timeLayout)
	}
	return fmt.Sprint(v)
}

type jsonEncoder struct {
	w        *bufio.Writer
	eachLine bool
	count    int
}

func (e *jsonEncoder) begin(columns []string) error {
	if !e.eachLine {
		_, err := e.w.WriteString("[")
		return err
	}
	return nil
}

// encode 按列顺序输出对象
func (e *jsonEncoder) encode(row *rdb.Row) error {
	if !e.eachLine && e.count > 0 {
		if _, err := e.w.WriteString(",\n"); err != nil {
			return err
		}
	}
	e.count++
	if err := e.w.WriteByte('{'); err != nil {
		return err
	}
	for i, column := range row.Columns {
		if i > 0 {
			if err := e.w.WriteByte(','); err != nil {
				return err
			}
		}
		key, err := json.Marshal(column)
		if err != nil {
			return err
		}
		var value any
		if i < len(row.Values) {
			value = jsonValue(row.Values[i])
		}
		val, err := json.Marshal(value)
		if err != nil {
			return errors.Wrapf(err, "json.Marshal column %s failed", column)
		}
		e.w.Write(key)
		e.w.WriteByte(':')
		e.w.Write(val)
	}
	if err := e.w.WriteByte('}'); err != nil {
		return err
	}
	if e.eachLine {
		return e.w.WriteByte('\n')
	}
	return nil
}

func (e *jsonEncoder) end() error {
	if !e.eachLine {
		_, err := e.w.WriteString("]\n")
		return err
	}
	return nil
}

func jsonValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(timeLayout)
	}
	return v
}

type msgpackEncoder struct {
	enc *msgpack.Encoder
}

func (e *msgpackEncoder) begin(columns []string) error {
	return nil
}

func (e *msgpackEncoder) encode(row *rdb.Row) error {
	if err := e.enc.EncodeMapLen(len(row.Columns)); err != nil {
		return err
	}
	for i, column := range row.Columns {
		if err := e.enc.EncodeString(column); err != nil {
			return err
		}
		var value any
		if i < len(row.Values) {
			value = row.Values[i]
		}
		if b, ok := value.([]byte); ok {
			value = string(b)
		}
		if err := e.enc.Encode(value); err != nil {
			return errors.Wrapf(err, "msgpack encode column %s failed", column)
		}
	}
	return nil
}

func (e *msgpackEncoder) end() error {
	return nil
}
