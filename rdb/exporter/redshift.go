package exporter

import (
	"context"
	"strings"

	"github.com/hatlonely/datadb/file"
	"github.com/hatlonely/datadb/log"
	"github.com/hatlonely/datadb/log/logger"
	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/dialect"
	"github.com/hatlonely/datadb/rdb/helper"
	"github.com/pkg/errors"
)

// NewRedshiftExportQuery 把查询包装成 UNLOAD 语句
//
// UNLOAD 的查询本身作为字面量传入，原查询的绑定参数先用 Adapter 的 QuoteValue 内联进 sql
func NewRedshiftExportQuery(ctx context.Context, base *rdb.QueryNode, f file.File, format *file.CsvFormat) (*rdb.QueryNode, error) {
	d, ok := base.Adapter().Dialect().(*dialect.RedshiftDialect)
	if !ok {
		return nil, errors.Wrapf(rdb.ErrUnsupportedDialect, "the supplied base query must be a redshift query, got %s", base.Adapter().Dialect().Name())
	}
	injected, err := injectBind(base)
	if err != nil {
		return nil, err
	}
	sql, bind, err := d.ExportToCsv(ctx, injected, f, format)
	if err != nil {
		return nil, err
	}
	return rdb.NewQueryNode(base.Adapter(), strings.TrimSpace(sql), bind...), nil
}

// injectBind 按从左到右的顺序替换每个 ?，占位符和参数数量必须一致
func injectBind(query *rdb.QueryNode) (string, error) {
	bind := query.Bind()
	var sb strings.Builder
	n := 0
	for _, ch := range query.SQL() {
		if ch != '?' {
			sb.WriteRune(ch)
			continue
		}
		if n >= len(bind) {
			return "", errors.Wrapf(rdb.ErrBindMismatch, "more placeholders than the %d parameters supplied", len(bind))
		}
		quoted, err := query.Adapter().QuoteValue(bind[n])
		if err != nil {
			return "", errors.WithMessagef(err, "failed to quote parameter %d", n)
		}
		sb.WriteString(quoted)
		n++
	}
	if n != len(bind) {
		return "", errors.Wrapf(rdb.ErrBindMismatch, "%d placeholders in query but %d parameters supplied", n, len(bind))
	}
	return sb.String(), nil
}

func requireObjectStorage(f file.File) error {
	if f == nil {
		return errors.Wrap(rdb.ErrRequiresObjectStorage, "no file supplied")
	}
	if _, ok := f.(file.ObjectStorage); !ok {
		return errors.Wrapf(rdb.ErrRequiresObjectStorage, "the supplied file: %s should be a s3 file", f)
	}
	return nil
}

// RedshiftQueryExporter 通过 UNLOAD 在服务端直接把结果写到对象存储
type RedshiftQueryExporter struct {
	file   file.File
	logger logger.Logger
}

func NewRedshiftQueryExporter(f file.File) (*RedshiftQueryExporter, error) {
	if err := requireObjectStorage(f); err != nil {
		return nil, err
	}
	return &RedshiftQueryExporter{file: f, logger: log.Default()}, nil
}

func (e *RedshiftQueryExporter) WithLogger(l logger.Logger) *RedshiftQueryExporter {
	e.logger = l
	return e
}

// Export 使用 UNLOAD 的默认格式，完成后把格式写回文件
func (e *RedshiftQueryExporter) Export(ctx context.Context, query *rdb.QueryNode) (file.File, error) {
	h, err := helper.ForDialect(query.Adapter().Dialect(), nil)
	if err != nil {
		return nil, err
	}
	format := h.DefaultExportFormat().(*file.CsvFormat)

	e.logger.InfoContext(ctx, "exporting redshift query to file", "file", e.file.String())
	unload, err := NewRedshiftExportQuery(ctx, query, e.file, format)
	if err != nil {
		return nil, err
	}
	if _, err := unload.Query(ctx); err != nil {
		return nil, errors.WithMessagef(err, "failed to unload to %s", e.file)
	}

	if aware, ok := e.file.(file.FormatAware); ok {
		aware.SetFormat(format)
	}
	return e.file, nil
}

// RedshiftTableExporter 生成 SELECT 后交给 RedshiftQueryExporter
type RedshiftTableExporter struct {
	file   file.File
	logger logger.Logger
}

func NewRedshiftTableExporter(f file.File) (*RedshiftTableExporter, error) {
	if err := requireObjectStorage(f); err != nil {
		return nil, err
	}
	return &RedshiftTableExporter{file: f, logger: log.Default()}, nil
}

func (e *RedshiftTableExporter) WithLogger(l logger.Logger) *RedshiftTableExporter {
	e.logger = l
	return e
}

func (e *RedshiftTableExporter) Export(ctx context.Context, table rdb.Table) (file.File, error) {
	query, err := selectQuery(table)
	if err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "exporting redshift table to file", "table", table.FullName(), "file", e.file.String())

	exporter, err := NewRedshiftQueryExporter(e.file)
	if err != nil {
		return nil, err
	}
	return exporter.WithLogger(e.logger).Export(ctx, query)
}

var (
	_ Query = (*RedshiftQueryExporter)(nil)
	_ Table = (*RedshiftTableExporter)(nil)
)
