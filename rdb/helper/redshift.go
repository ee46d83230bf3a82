package helper

import (
	"context"
	"strings"

	"github.com/hatlonely/datadb/file"
	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/dialect"
)

// RedshiftHelper 数仓方言的表操作
type RedshiftHelper struct {
	base
	redshift *dialect.RedshiftDialect
}

func NewRedshiftHelper() *RedshiftHelper {
	h, _ := NewRedshiftHelperWithOptions(nil)
	return h
}

func NewRedshiftHelperWithOptions(options *Options) (*RedshiftHelper, error) {
	timezone := ""
	if options != nil {
		timezone = options.Timezone
	}
	d, err := dialect.NewRedshiftDialectWithOptions(&dialect.RedshiftDialectOptions{Timezone: timezone})
	if err != nil {
		return nil, err
	}
	b, err := newBase(d, options)
	if err != nil {
		return nil, err
	}
	return &RedshiftHelper{base: b, redshift: d}, nil
}

// RedshiftDialect 返回具体方言，COPY/UNLOAD 需要
func (h *RedshiftHelper) RedshiftDialect() *dialect.RedshiftDialect {
	return h.redshift
}

func (h *RedshiftHelper) CreateTableLike(ctx context.Context, newTable, oldTable rdb.Table) error {
	return h.createTableLike(ctx, newTable, oldTable, h.DescribeTable)
}

// CreateTable 第一个主键列作为 DISTKEY，其余主键列和索引列合并为一个 SORTKEY
func (h *RedshiftHelper) CreateTable(ctx context.Context, table rdb.Table, columns []rdb.ColumnSpec) error {
	h.logger.InfoContext(ctx, "creating table with columns", "table", table.FullName(), "columns", columnNames(columns))

	var definitions, dist, index []string
	var sorted []rdb.ColumnSpec
	for _, column := range columns {
		switch {
		case column.Primary && len(dist) == 0:
			key, err := h.dialect.PrimaryKeyDefinition(column)
			if err != nil {
				return err
			}
			dist = append(dist, key)
		case column.Primary || column.Index:
			sorted = append(sorted, column)
		}

		definition, err := h.dialect.ColumnDefinition(column)
		if err != nil {
			return err
		}
		definitions = append(definitions, definition)
	}
	if len(sorted) > 0 {
		key, err := h.redshift.SortKeyDefinition(sorted...)
		if err != nil {
			return err
		}
		index = append(index, key)
	}
	return h.createTable(ctx, table, definitions, dist, index)
}

// DescribeTable 读取 pg_table_def 的 column/type/notnull/distkey/sortkey
func (h *RedshiftHelper) DescribeTable(ctx context.Context, table rdb.Table) (rdb.TableDescription, error) {
	sql, bind, err := h.dialect.DescribeTable(table)
	if err != nil {
		return nil, err
	}
	rows, err := table.Adapter().FetchAll(ctx, strings.TrimSpace(sql), bind...)
	if err != nil {
		return nil, err
	}
	description := make(rdb.TableDescription, 0, len(rows))
	for _, row := range rows {
		description = append(description, &rdb.ColumnDescription{
			Schema:   table.Schema(),
			Table:    table.Name(),
			Column:   row.String("column"),
			Type:     row.String("type"),
			Nullable: !row.Bool("notnull"),
			Primary:  row.Bool("distkey"),
			Index:    row.Int("sortkey") != 0,
		})
	}
	return description, nil
}

// CreateSyntax 多行 ddl 按返回顺序以换行拼接
func (h *RedshiftHelper) CreateSyntax(ctx context.Context, table rdb.Table) (string, bool, error) {
	sql, bind, err := h.dialect.CreateSyntax(table)
	if err != nil {
		return "", false, err
	}
	rows, err := table.Adapter().FetchAll(ctx, strings.TrimSpace(sql), bind...)
	if err != nil || len(rows) == 0 {
		return "", false, err
	}
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = row.String("ddl")
	}
	return strings.Join(lines, "\n"), true, nil
}

// DefaultExportFormat UNLOAD 产出的格式
func (h *RedshiftHelper) DefaultExportFormat() file.Format {
	return &file.CsvFormat{
		Delimiter: ",",
		NewLine:   "\n",
		Quote:     `"`,
		NullValue: `\N`,
		HeaderRow: -1,
		DataStart: 1,
		Escape:    `\`,
		Encoding:  "UTF-8",
	}
}

func (h *RedshiftHelper) DefaultImportFormat() file.Format {
	return file.NewJsonFormat()
}

func (h *RedshiftHelper) IsValidExportFormat(format file.Format) bool {
	f, ok := format.(*file.CsvFormat)
	return ok &&
		f.NewLine == "\n" &&
		f.Quote == `"` &&
		f.Escape == `\` &&
		strings.EqualFold(f.Encoding, "UTF-8") &&
		!f.DoubleQuote &&
		f.Bom == ""
}

// IsValidImportFormat COPY 能直接读取的格式：反斜杠转义或双引号加倍的 csv，或每行一个对象的 json
func (h *RedshiftHelper) IsValidImportFormat(format file.Format) bool {
	switch f := format.(type) {
	case *file.CsvFormat:
		return f.NewLine == "\n" &&
			f.Quote == `"` &&
			((f.Escape == `\` && !f.DoubleQuote) || (!f.HasEscape() && f.DoubleQuote)) &&
			strings.EqualFold(f.Encoding, "UTF-8") &&
			f.Bom == ""
	case *file.JsonFormat:
		return f.EachLine()
	}
	return false
}

var _ Helper = (*RedshiftHelper)(nil)
