package dialect

import (
	"strings"

	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/formatter"
	"github.com/pkg/errors"
)

// baseDialect 各方言共用的 SQL 生成逻辑，只依赖标识符引号
type baseDialect struct {
	formatter *formatter.SyntaxFormatter
}

func newBaseDialect(f *formatter.SyntaxFormatter, quote string) baseDialect {
	if f == nil {
		f = formatter.NewSyntaxFormatter()
	}
	return baseDialect{formatter: f.SetIdentifierQuote(quote)}
}

func (d *baseDialect) IdentifierQuote() string {
	return d.formatter.IdentifierQuote()
}

func (d *baseDialect) Formatter() *formatter.SyntaxFormatter {
	return d.formatter
}

func (d *baseDialect) format(syntax string, params map[string]any) (string, error) {
	sql, err := d.formatter.Format(syntax, params)
	if err != nil {
		return "", errors.WithMessage(err, "failed to format sql")
	}
	return sql, nil
}

// columnList 引号包裹后以逗号连接，不带空格
func (d *baseDialect) columnList(columns []string) string {
	quoted := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = d.formatter.QuoteIdentifier(column)
	}
	return strings.Join(quoted, ",")
}

func (d *baseDialect) DropColumn(table rdb.Table, column string) (string, []any, error) {
	sql, err := d.format(
		"ALTER TABLE {table:schema|q}.{table:table|q} DROP COLUMN {column|q}",
		map[string]any{"table": table, "column": column},
	)
	return sql, nil, err
}

func (d *baseDialect) DoesTableExist(table rdb.Table) (string, []any, error) {
	return "SELECT table_name\nFROM information_schema.tables\nWHERE table_schema = ?\n  AND table_name = ?",
		[]any{table.Schema(), table.Name()}, nil
}

func (d *baseDialect) DeleteFromTable(table rdb.Table, where string) (string, []any, error) {
	sql, err := d.format(
		"DELETE FROM {table:schema|q}.{table:table|q}\n{where}",
		map[string]any{"table": table, "where": prefixed("WHERE ", where)},
	)
	return sql, nil, err
}

func (d *baseDialect) CopyTable(from, to rdb.Table) (string, []any, error) {
	toColumns := ""
	if len(to.Columns()) > 0 {
		toColumns = " (" + d.columnList(to.Columns()) + ")"
	}
	fromColumns := "*"
	if len(from.Columns()) > 0 {
		fromColumns = d.columnList(from.Columns())
	}
	sql, err := d.format(
		"INSERT INTO {to:schema|q}.{to:table|q}{toColumns}\nSELECT {fromColumns} FROM {from:schema|q}.{from:table|q}",
		map[string]any{"from": from, "to": to, "toColumns": toColumns, "fromColumns": fromColumns},
	)
	return sql, nil, err
}

// SelectSyntax 只有 SourceTable 的 where 会生效，且总是加括号
func (d *baseDialect) SelectSyntax(table rdb.Table) (string, []any, error) {
	columns := "*"
	if len(table.Columns()) > 0 {
		columns = d.columnList(table.Columns())
	}
	where := ""
	if source, ok := table.(rdb.SourceTable); ok && source.Where() != "" {
		where = " WHERE (" + source.Where() + ")"
	}
	sql, err := d.format(
		"SELECT {columns} FROM {table:schema|q}.{table:table|q}{where}",
		map[string]any{"table": table, "columns": columns, "where": where},
	)
	return sql, nil, err
}

// InsertSyntax 每行一组占位符，bind 按行优先展开
func (d *baseDialect) InsertSyntax(table rdb.Table, rows [][]any) (string, []any, error) {
	if len(rows) == 0 {
		return "", nil, errors.Errorf("no rows to insert into %s", table.FullName())
	}
	columns := ""
	if len(table.Columns()) > 0 {
		columns = " (" + d.columnList(table.Columns()) + ")"
	}
	groups := make([]string, 0, len(rows))
	bind := make([]any, 0, len(rows)*len(rows[0]))
	for _, row := range rows {
		groups = append(groups, "("+strings.TrimSuffix(strings.Repeat("?,", len(row)), ",")+")")
		bind = append(bind, row...)
	}
	sql, err := d.format(
		"INSERT INTO {table:schema|q}.{table:table|q}{columns} VALUES {values}",
		map[string]any{"table": table, "columns": columns, "values": strings.Join(groups, ",")},
	)
	return sql, bind, err
}

func prefixed(prefix string, clause string) string {
	if clause == "" {
		return ""
	}
	return prefix + clause
}
