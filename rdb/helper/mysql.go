package helper

import (
	"context"
	"strings"

	"github.com/hatlonely/datadb/file"
	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/dialect"
)

// MysqlHelper 通用方言的表操作
type MysqlHelper struct {
	base
}

func NewMysqlHelper() *MysqlHelper {
	h, _ := NewMysqlHelperWithOptions(nil)
	return h
}

func NewMysqlHelperWithOptions(options *Options) (*MysqlHelper, error) {
	b, err := newBase(dialect.NewMysqlDialect(), options)
	if err != nil {
		return nil, err
	}
	return &MysqlHelper{base: b}, nil
}

func (h *MysqlHelper) CreateTableLike(ctx context.Context, newTable, oldTable rdb.Table) error {
	return h.createTableLike(ctx, newTable, oldTable, h.DescribeTable)
}

// CreateTable 主键列不再重复建索引
func (h *MysqlHelper) CreateTable(ctx context.Context, table rdb.Table, columns []rdb.ColumnSpec) error {
	h.logger.DebugContext(ctx, "creating table with columns", "table", table.FullName(), "columns", columnNames(columns))

	var definitions, primary, index []string
	for _, column := range columns {
		definition, err := h.dialect.ColumnDefinition(column)
		if err != nil {
			return err
		}
		definitions = append(definitions, definition)

		switch {
		case column.Primary:
			key, err := h.dialect.PrimaryKeyDefinition(column)
			if err != nil {
				return err
			}
			primary = append(primary, key)
		case column.Index:
			key, err := h.dialect.IndexDefinition(column)
			if err != nil {
				return err
			}
			index = append(index, key)
		}
	}
	return h.createTable(ctx, table, definitions, primary, index)
}

// DescribeTable 读取 DESCRIBE 的 Field/Type/Null/Key
func (h *MysqlHelper) DescribeTable(ctx context.Context, table rdb.Table) (rdb.TableDescription, error) {
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
		key := row.String("Key")
		description = append(description, &rdb.ColumnDescription{
			Schema:   table.Schema(),
			Table:    table.Name(),
			Column:   row.String("Field"),
			Type:     row.String("Type"),
			Nullable: row.String("Null") == "YES",
			Primary:  strings.ToUpper(key) == "PRI",
			Index:    key != "",
		})
	}
	return description, nil
}

func (h *MysqlHelper) CreateSyntax(ctx context.Context, table rdb.Table) (string, bool, error) {
	sql, bind, err := h.dialect.CreateSyntax(table)
	if err != nil {
		return "", false, err
	}
	row, err := table.Adapter().FetchRow(ctx, strings.TrimSpace(sql), bind...)
	if err != nil || row == nil {
		return "", false, err
	}
	return row.String("Create Table"), true, nil
}

// DefaultExportFormat mysqldump 导出的原始格式
func (h *MysqlHelper) DefaultExportFormat() file.Format {
	return &file.CsvFormat{
		Delimiter: ",",
		NewLine:   "\n",
		Quote:     "'",
		NullValue: "NULL",
		HeaderRow: -1,
		DataStart: 1,
		Escape:    `\`,
		Encoding:  "UTF-8",
	}
}

func (h *MysqlHelper) DefaultImportFormat() file.Format {
	return &file.CsvFormat{
		Delimiter: ",",
		NewLine:   "\n",
		Quote:     `"`,
		Escape:    `\`,
		NullValue: `\N`,
		HeaderRow: 0,
		DataStart: 1,
		Encoding:  "UTF-8",
	}
}

func (h *MysqlHelper) IsValidExportFormat(format file.Format) bool {
	f, ok := format.(*file.CsvFormat)
	return ok &&
		f.Delimiter == "," &&
		f.NewLine == "\n" &&
		f.Quote == "'" &&
		f.NullValue == "NULL" &&
		f.Escape == `\` &&
		strings.EqualFold(f.Encoding, "UTF-8") &&
		!f.DoubleQuote &&
		!f.HasHeader() &&
		f.Bom == ""
}

func (h *MysqlHelper) IsValidImportFormat(format file.Format) bool {
	f, ok := format.(*file.CsvFormat)
	return ok &&
		f.NullValue == `\N` &&
		!f.DoubleQuote &&
		strings.EqualFold(f.Encoding, "UTF-8") &&
		f.Bom == ""
}

var _ Helper = (*MysqlHelper)(nil)
