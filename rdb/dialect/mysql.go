package dialect

import (
	"strings"

	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/formatter"
)

const MysqlName = "mysql"

// MysqlDialect 通用方言，MySQL 语法，反引号包裹标识符
type MysqlDialect struct {
	baseDialect
}

func NewMysqlDialect() *MysqlDialect {
	return NewMysqlDialectWithFormatter(nil)
}

// NewMysqlDialectWithFormatter formatter 的标识符引号会被改为反引号
func NewMysqlDialectWithFormatter(f *formatter.SyntaxFormatter) *MysqlDialect {
	return &MysqlDialect{baseDialect: newBaseDialect(f, "`")}
}

func (d *MysqlDialect) Name() string {
	return MysqlName
}

func (d *MysqlDialect) CreateTableLike(oldTable, newTable rdb.Table) (string, []any, error) {
	sql, err := d.format(
		"CREATE TABLE {new:schema|q}.{new:table|q} LIKE {old:schema|q}.{old:table|q}",
		map[string]any{"old": oldTable, "new": newTable},
	)
	return sql, nil, err
}

func (d *MysqlDialect) DeleteTableJoin(source, join rdb.Table, on, where string) (string, []any, error) {
	sql, err := d.format(
		"DELETE {source:schema|q}.{source:table|q}\nFROM {source:schema|q}.{source:table|q}\nJOIN {join:schema|q}.{join:table|q}\nON {on}\n{where}",
		map[string]any{"source": source, "join": join, "on": on, "where": prefixed("WHERE ", where)},
	)
	return sql, nil, err
}

func (d *MysqlDialect) DeleteTableJoinSoftDelete(source, join rdb.Table, on, where string) (string, []any, error) {
	softUpdated, err := d.softUpdated("source", source)
	if err != nil {
		return "", nil, err
	}
	sql, err := d.format(
		"UPDATE {source:schema|q}.{source:table|q}\nJOIN {join:schema|q}.{join:table|q}\nON {on}\nSET{softUpdated}\n {source:softDeleted|q} = CURRENT_TIMESTAMP\n{where}",
		map[string]any{
			"source":      source,
			"join":        join,
			"on":          on,
			"softUpdated": softUpdated,
			"where":       prefixed("WHERE ", where),
		},
	)
	return sql, nil, err
}

func (d *MysqlDialect) DeleteFromTableSoftDelete(table rdb.Table, where string) (string, []any, error) {
	softUpdated, err := d.softUpdated("table", table)
	if err != nil {
		return "", nil, err
	}
	sql, err := d.format(
		"UPDATE {table:schema|q}.{table:table|q}\nSET{softUpdated}\n {table:softDeleted|q} = CURRENT_TIMESTAMP\n{where}",
		map[string]any{"table": table, "softUpdated": softUpdated, "where": prefixed("WHERE ", where)},
	)
	return sql, nil, err
}

// softUpdated 表声明了更新时间列时才生成赋值片段，末尾带逗号
func (d *MysqlDialect) softUpdated(name string, table rdb.Table) (string, error) {
	if table.SoftUpdated() == "" {
		return "", nil
	}
	return d.format(" {"+name+":softUpdated|q} = CURRENT_TIMESTAMP,", map[string]any{name: table})
}

func (d *MysqlDialect) CreateTable(table rdb.Table, columns, primary, index []string) (string, []any, error) {
	lines := make([]string, 0, len(columns)+len(primary)+len(index))
	lines = append(lines, columns...)
	lines = append(lines, primary...)
	lines = append(lines, index...)
	sql, err := d.format(
		"CREATE TABLE {table:schema|q}.{table:table|q} (\n  {definitions}\n)",
		map[string]any{"table": table, "definitions": strings.Join(lines, ",\n  ")},
	)
	return sql, nil, err
}

func (d *MysqlDialect) ColumnDefinition(column rdb.ColumnSpec) (string, error) {
	nullable := "NOT NULL"
	if column.Nullable {
		nullable = "NULL"
	}
	return d.format("{column:column|q} {column:type} {nullable}", map[string]any{"column": column, "nullable": nullable})
}

func (d *MysqlDialect) PrimaryKeyDefinition(column rdb.ColumnSpec) (string, error) {
	return d.format("PRIMARY KEY ({column:column|q})", map[string]any{"column": column})
}

func (d *MysqlDialect) IndexDefinition(column rdb.ColumnSpec) (string, error) {
	return d.format("KEY {column:column|q} ({column:column|q})", map[string]any{"column": column})
}

func (d *MysqlDialect) DescribeTable(table rdb.Table) (string, []any, error) {
	sql, err := d.format("DESCRIBE {table:schema|q}.{table:table|q}", map[string]any{"table": table})
	return sql, nil, err
}

func (d *MysqlDialect) CreateSyntax(table rdb.Table) (string, []any, error) {
	sql, err := d.format("SHOW CREATE TABLE {table:schema|q}.{table:table|q}", map[string]any{"table": table})
	return sql, nil, err
}

var _ rdb.Dialect = (*MysqlDialect)(nil)
