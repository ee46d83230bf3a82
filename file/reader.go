package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/hatlonely/datadb/rdb"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Reader 按文件格式逐行读取
type Reader struct {
	file    File
	format  Format
	columns []string
}

// NewReader format 为空时使用文件自身声明的格式
func NewReader(f File, format Format) (*Reader, error) {
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
	return &Reader{file: f, format: format}, nil
}

// SetColumns 没有表头的 csv 使用这些列名，未设置时为 column_1, column_2 ...
func (r *Reader) SetColumns(columns ...string) *Reader {
	r.columns = columns
	return r
}

// Rows 惰性读取，迭代结束或中断时关闭文件
func (r *Reader) Rows(ctx context.Context) iter.Seq2[*rdb.Row, error] {
	return func(yield func(*rdb.Row, error) bool) {
		fr, err := r.file.Reader()
		if err != nil {
			yield(nil, err)
			return
		}
		in, err := wrapReader(fr, compressionOf(r.file), encodingOf(r.file))
		if err != nil {
			_ = fr.Close()
			yield(nil, err)
			return
		}
		defer in.Close()

		guarded := func(row *rdb.Row, err error) bool {
			if err == nil {
				if cerr := ctx.Err(); cerr != nil {
					yield(nil, cerr)
					return false
				}
			}
			return yield(row, err)
		}

		switch f := r.format.(type) {
		case *CsvFormat:
			r.readCsv(in, f, guarded)
		case *JsonFormat:
			r.readJson(in, guarded)
		case *MsgpackFormat:
			r.readMsgpack(in, guarded)
		}
	}
}

type csvField struct {
	value  strings.Builder
	raw    strings.Builder
	quoted bool
}

type csvScanner struct {
	r      *bufio.Reader
	format *CsvFormat
}

func (s *csvScanner) match(token string) bool {
	if token == "" {
		return false
	}
	b, _ := s.r.Peek(len(token))
	return string(b) == token
}

func (s *csvScanner) skip(token string) {
	_, _ = s.r.Discard(len(token))
}

// next 读取一条记录，文件结束返回 io.EOF
func (s *csvScanner) next() ([]*csvField, error) {
	f := s.format
	var fields []*csvField
	field := &csvField{}
	read := false
	for {
		switch {
		case s.match(f.Delimiter):
			s.skip(f.Delimiter)
			fields = append(fields, field)
			field = &csvField{}
			read = true
			continue
		case s.match(f.NewLine):
			s.skip(f.NewLine)
			return append(fields, field), nil
		case f.HasQuote() && field.raw.Len() == 0 && !field.quoted && s.match(f.Quote):
			s.skip(f.Quote)
			field.quoted = true
			read = true
			if err := s.quoted(field); err != nil {
				return nil, err
			}
			continue
		case f.HasEscape() && s.match(f.Escape):
			s.skip(f.Escape)
			field.raw.WriteString(f.Escape)
			ch, _, err := s.r.ReadRune()
			if err != nil {
				return nil, errors.Wrap(err, "unexpected end of file after escape")
			}
			field.raw.WriteRune(ch)
			field.value.WriteRune(ch)
			read = true
			continue
		}
		ch, _, err := s.r.ReadRune()
		if err == io.EOF {
			if !read {
				return nil, io.EOF
			}
			return append(fields, field), nil
		}
		if err != nil {
			return nil, err
		}
		read = true
		field.raw.WriteRune(ch)
		field.value.WriteRune(ch)
	}
}

func (s *csvScanner) quoted(field *csvField) error {
	f := s.format
	for {
		switch {
		case f.HasEscape() && f.Escape != f.Quote && s.match(f.Escape):
			s.skip(f.Escape)
			ch, _, err := s.r.ReadRune()
			if err != nil {
				return errors.Wrap(err, "unexpected end of file after escape")
			}
			field.value.WriteRune(ch)
			continue
		case s.match(f.Quote):
			s.skip(f.Quote)
			if (f.DoubleQuote || f.Escape == f.Quote) && s.match(f.Quote) {
				s.skip(f.Quote)
				field.value.WriteString(f.Quote)
				continue
			}
			return nil
		}
		ch, _, err := s.r.ReadRune()
		if err != nil {
			return errors.Wrap(err, "unterminated quoted field")
		}
		field.value.WriteRune(ch)
	}
}

func (r *Reader) readCsv(in io.Reader, f *CsvFormat, yield func(*rdb.Row, error) bool) {
	br := bufio.NewReader(in)
	if b, err := br.Peek(3); err == nil && string(b) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}
	s := &csvScanner{r: br, format: f}
	columns := r.columns
	start := f.DataStartRow()
	for line := 1; ; line++ {
		fields, err := s.next()
		if err == io.EOF {
			return
		}
		if err != nil {
			yield(nil, errors.WithMessagef(err, "failed to parse line %d of %s", line, r.file))
			return
		}
		if f.HasHeader() && line == f.HeaderRow {
			columns = make([]string, len(fields))
			for i, field := range fields {
				columns[i] = field.value.String()
			}
			continue
		}
		if line < start {
			continue
		}
		// 空行
		if len(fields) == 1 && !fields[0].quoted && fields[0].raw.Len() == 0 {
			continue
		}
		values := make([]any, len(fields))
		for i, field := range fields {
			if !field.quoted && field.raw.String() == f.NullValue {
				continue
			}
			values[i] = field.value.String()
		}
		if !yield(rdb.NewRow(columnNames(columns, len(values)), values), nil) {
			return
		}
	}
}

func columnNames(columns []string, n int) []string {
	if len(columns) >= n {
		return columns[:n]
	}
	names := make([]string, n)
	copy(names, columns)
	for i := len(columns); i < n; i++ {
		names[i] = fmt.Sprintf("column_%d", i+1)
	}
	return names
}

// readJson 同时支持每行一个对象和整个数组，对象按键出现顺序保留列
func (r *Reader) readJson(in io.Reader, yield func(*rdb.Row, error) bool) {
	dec := json.NewDecoder(in)
	dec.UseNumber()
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			yield(nil, errors.Wrapf(err, "failed to decode %s", r.file))
			return
		}
		switch tok {
		case json.Delim('['):
			for dec.More() {
				if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
					yield(nil, errors.Errorf("expected object in %s, got %v: %v", r.file, tok, err))
					return
				}
				row, err := decodeJsonObject(dec)
				if !yield(row, err) || err != nil {
					return
				}
			}
			if _, err := dec.Token(); err != nil {
				yield(nil, errors.Wrapf(err, "failed to decode %s", r.file))
				return
			}
		case json.Delim('{'):
			row, err := decodeJsonObject(dec)
			if !yield(row, err) || err != nil {
				return
			}
		default:
			yield(nil, errors.Errorf("unexpected token %v in %s", tok, r.file))
			return
		}
	}
}

func decodeJsonObject(dec *json.Decoder) (*rdb.Row, error) {
	row := &rdb.Row{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "dec.Token failed")
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.Errorf("unexpected key %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, errors.Wrapf(err, "failed to decode value of %s", key)
		}
		if n, ok := value.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				value = i
			} else if f, err := n.Float64(); err == nil {
				value = f
			}
		}
		row.Columns = append(row.Columns, key)
		row.Values = append(row.Values, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "dec.Token failed")
	}
	return row, nil
}

func (r *Reader) readMsgpack(in io.Reader, yield func(*rdb.Row, error) bool) {
	dec := msgpack.NewDecoder(bufio.NewReader(in))
	for {
		n, err := dec.DecodeMapLen()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(nil, errors.Wrapf(err, "failed to decode %s", r.file))
			return
		}
		row := &rdb.Row{Columns: make([]string, 0, n), Values: make([]any, 0, n)}
		for i := 0; i < n; i++ {
			key, err := dec.DecodeString()
			if err != nil {
				yield(nil, errors.Wrapf(err, "failed to decode key in %s", r.file))
				return
			}
			value, err := dec.DecodeInterface()
			if err != nil {
				yield(nil, errors.Wrapf(err, "failed to decode value of %s in %s", key, r.file))
				return
			}
			row.Columns = append(row.Columns, key)
			row.Values = append(row.Values, value)
		}
		if !yield(row, nil) {
			return
		}
	}
}
