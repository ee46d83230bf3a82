package importer

import (
	"context"
	"strings"

	"github.com/hatlonely/datadb/file"
	"github.com/hatlonely/datadb/log"
	"github.com/hatlonely/datadb/log/logger"
	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/dialect"
	"github.com/hatlonely/datadb/rdb/helper"
	"github.com/hatlonely/datadb/ref"
	"github.com/pkg/errors"
)

type RedshiftFileImporterOptions struct {
	Import *dialect.ImportOptions `cfg:"import"`
	Logger *ref.TypeOptions       `cfg:"logger"`
}

// RedshiftFileImporter 通过 COPY 把对象存储上的文件导入表，数据不经过本进程
type RedshiftFileImporter struct {
	table   rdb.Table
	dialect *dialect.RedshiftDialect
	helper  *helper.RedshiftHelper
	options *dialect.ImportOptions
	logger  logger.Logger
}

func NewRedshiftFileImporter(table rdb.Table) (*RedshiftFileImporter, error) {
	return NewRedshiftFileImporterWithOptions(table, nil)
}

func NewRedshiftFileImporterWithOptions(table rdb.Table, options *RedshiftFileImporterOptions) (*RedshiftFileImporter, error) {
	if options == nil {
		options = &RedshiftFileImporterOptions{}
	}
	d, ok := table.Adapter().Dialect().(*dialect.RedshiftDialect)
	if !ok {
		return nil, errors.Wrapf(rdb.ErrUnsupportedDialect, "the provided table: %s is not a redshift table", table.FullName())
	}
	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "log.NewLoggerWithOptions failed")
	}
	h, err := helper.ForDialect(d, &helper.Options{Logger: options.Logger})
	if err != nil {
		return nil, err
	}
	return &RedshiftFileImporter{
		table:   table,
		dialect: d,
		helper:  h.(*helper.RedshiftHelper),
		options: options.Import,
		logger:  l,
	}, nil
}

func (i *RedshiftFileImporter) WithLogger(l logger.Logger) *RedshiftFileImporter {
	i.logger = l
	i.helper.SetLogger(l)
	return i
}

// Import 文件必须位于对象存储并声明了 COPY 可读的格式
func (i *RedshiftFileImporter) Import(ctx context.Context, f file.File) (rdb.Table, error) {
	if _, ok := f.(file.ObjectStorage); !ok {
		return nil, errors.Wrapf(rdb.ErrRequiresObjectStorage, "the supplied file: %s is required to be in S3 for import into redshift", f)
	}
	aware, ok := f.(file.FormatAware)
	if !ok || aware.Format() == nil {
		return nil, errors.Wrapf(rdb.ErrRequiresDeclaredFormat, "no formatting could be determined from the supplied file: %s", f)
	}
	format := aware.Format()
	if !i.helper.IsValidImportFormat(format) {
		return nil, errors.Wrapf(rdb.ErrUnsupportedFormat, "the supplied file: %s does not have a valid format for redshift", f)
	}

	var sql string
	var bind []any
	var err error
	switch format := format.(type) {
	case *file.JsonFormat:
		sql, bind, err = i.dialect.ImportFromJson(ctx, i.table, f, i.options)
	case *file.CsvFormat:
		sql, bind, err = i.dialect.ImportFromCsv(ctx, i.table, f, format, i.options)
	default:
		return nil, errors.Wrapf(rdb.ErrUnsupportedFormat, "the format type: %s can not be used to import into redshift", format.Type())
	}
	if err != nil {
		return nil, err
	}

	i.logger.InfoContext(ctx, "copying file into table", "table", i.table.FullName(), "file", f.String(), "format", format.Type())
	if _, err := i.table.Adapter().Query(ctx, strings.TrimSpace(sql), bind...); err != nil {
		return nil, errors.WithMessagef(err, "failed to copy %s into %s", f, i.table.FullName())
	}
	return i.table, nil
}
