package file

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ReFormatOptions 转换时的附加参数
type ReFormatOptions struct {
	// KeepOld 为 true 时保留源文件，结果写入新文件
	KeepOld bool
	// Columns 源文件是无表头 csv 时的列名
	Columns []string
}

// ReFormat 把本地文件从 from 格式转换为 to 格式
//
// 结果先写到同目录下的临时文件，KeepOld 为 false 时再覆盖源文件。返回的文件已声明 to 格式
func ReFormat(ctx context.Context, src *LocalFile, from Format, to Format, options *ReFormatOptions) (*LocalFile, error) {
	if options == nil {
		options = &ReFormatOptions{}
	}
	reader, err := NewReader(src, from)
	if err != nil {
		return nil, err
	}
	reader.SetColumns(options.Columns...)

	dst := NewTempFile(filepath.Dir(src.Path())).
		WithCompression(src.Compression()).
		WithEncoding(src.Encoding()).
		WithFormat(to)
	writer, err := NewWriter(dst, to)
	if err != nil {
		return nil, err
	}
	if _, err := writer.InsertAll(ctx, reader.Rows(ctx)); err != nil {
		_ = dst.Delete()
		return nil, errors.WithMessagef(err, "failed to reformat %s", src)
	}

	if options.KeepOld {
		return dst, nil
	}
	if err := os.Rename(dst.Path(), src.Path()); err != nil {
		_ = dst.Delete()
		return nil, errors.Wrapf(err, "failed to replace %s", src)
	}
	src.SetFormat(to)
	return src, nil
}
