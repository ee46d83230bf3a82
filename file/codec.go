package file

import (
	"io"
	"strings"

	"github.com/hatlonely/datadb/rdb"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// lookupEncoding utf-8 或空返回 nil，表示不需要转码
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), nil
	case "utf-16":
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errors.Wrapf(rdb.ErrUnsupportedEncoding, "%s: %v", name, err)
	}
	return enc, nil
}

func compressionOf(f File) string {
	if c, ok := f.(CompressionAware); ok {
		return strings.ToLower(c.Compression())
	}
	return CompressionNone
}

func encodingOf(f File) string {
	if e, ok := f.(EncodingAware); ok {
		return e.Encoding()
	}
	return ""
}

type multiCloser struct {
	io.Writer
	closers []io.Closer
}

// Close 由内向外依次关闭
func (m *multiCloser) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// wrapWriter 按文件声明的压缩和编码包装输出流，写入顺序为 编码 -> 压缩 -> 文件
func wrapWriter(w io.WriteCloser, compression string, encodingName string) (io.WriteCloser, error) {
	closers := []io.Closer{}
	var out io.Writer = w

	switch compression {
	case "", CompressionNone, CompressionUnknown:
	case CompressionGzip:
		gz := gzip.NewWriter(out)
		out = gz
		closers = append(closers, gz)
	default:
		return nil, errors.Wrapf(rdb.ErrUnsupportedCompression, "unable to write a %s compressed file", compression)
	}

	enc, err := lookupEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		tw := transform.NewWriter(out, enc.NewEncoder())
		out = tw
		closers = append([]io.Closer{tw}, closers...)
	}

	closers = append(closers, w)
	return &multiCloser{Writer: out, closers: closers}, nil
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// wrapReader 与 wrapWriter 相反，文件 -> 解压 -> 解码
func wrapReader(r io.ReadCloser, compression string, encodingName string) (io.ReadCloser, error) {
	closers := []io.Closer{r}
	var in io.Reader = r

	switch compression {
	case "", CompressionNone, CompressionUnknown:
	case CompressionGzip:
		gz, err := gzip.NewReader(in)
		if err != nil {
			return nil, errors.Wrap(err, "gzip.NewReader failed")
		}
		in = gz
		closers = append([]io.Closer{gz}, closers...)
	default:
		return nil, errors.Wrapf(rdb.ErrUnsupportedCompression, "unable to read a %s compressed file", compression)
	}

	enc, err := lookupEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		in = transform.NewReader(in, enc.NewDecoder())
	}

	return &readCloser{Reader: in, closers: closers}, nil
}
