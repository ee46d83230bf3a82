package exporter

import (
	"context"
	"strings"

	"github.com/hatlonely/datadb/file"
	"github.com/hatlonely/datadb/log"
	"github.com/hatlonely/datadb/log/logger"
	"github.com/hatlonely/datadb/rdb"
)

// Query 把查询结果导出到文件
type Query interface {
	Export(ctx context.Context, query *rdb.QueryNode) (file.File, error)
}

// Table 把整张表导出到文件
type Table interface {
	Export(ctx context.Context, table rdb.Table) (file.File, error)
}

// QueryExporter 逐行读取查询结果写入文件，数据经过本进程
type QueryExporter struct {
	file   file.File
	format file.Format
	logger logger.Logger
}

// NewQueryExporter f 为空时导出到临时文件，format 为空时使用文件声明的格式，都没有时使用每行一个 json 对象
func NewQueryExporter(f file.File, format file.Format) *QueryExporter {
	return &QueryExporter{file: f, format: format, logger: log.Default()}
}

func (e *QueryExporter) WithLogger(l logger.Logger) *QueryExporter {
	e.logger = l
	return e
}

func (e *QueryExporter) Export(ctx context.Context, query *rdb.QueryNode) (file.File, error) {
	if e.file == nil {
		e.file = file.NewTempFile(file.DefaultTempDir())
	}
	if e.format == nil {
		e.format = e.resolveFormat()
	}

	writer, err := file.NewWriter(e.file, e.format)
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "exporting generic query to file", "file", e.file.String(), "format", e.format.Type())
	n, err := writer.InsertAll(ctx, query.Fetch(ctx))
	if err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "exported rows", "file", e.file.String(), "rows", n)
	return e.file, nil
}

// resolveFormat 文件未声明格式时把默认格式写回文件
func (e *QueryExporter) resolveFormat() file.Format {
	aware, ok := e.file.(file.FormatAware)
	if ok && aware.Format() != nil {
		return aware.Format()
	}
	format := file.NewJsonFormat()
	if ok {
		aware.SetFormat(format)
	}
	return format
}

// TableExporter 通用路径，生成 SELECT 后交给 QueryExporter
type TableExporter struct {
	file   file.File
	format file.Format
	logger logger.Logger
}

func NewTableExporter(f file.File, format file.Format) *TableExporter {
	return &TableExporter{file: f, format: format, logger: log.Default()}
}

func (e *TableExporter) WithLogger(l logger.Logger) *TableExporter {
	e.logger = l
	return e
}

func (e *TableExporter) Export(ctx context.Context, table rdb.Table) (file.File, error) {
	query, err := selectQuery(table)
	if err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "exporting table", "table", table.FullName())
	return NewQueryExporter(e.file, e.format).WithLogger(e.logger).Export(ctx, query)
}

func selectQuery(table rdb.Table) (*rdb.QueryNode, error) {
	sql, bind, err := table.Adapter().Dialect().SelectSyntax(table)
	if err != nil {
		return nil, err
	}
	return rdb.NewQueryNode(table.Adapter(), strings.TrimSpace(sql), bind...).SetColumns(table.Columns()...), nil
}

var (
	_ Query = (*QueryExporter)(nil)
	_ Table = (*TableExporter)(nil)
)
