package helper

import (
	"context"
	"strings"

	"github.com/hatlonely/datadb/file"
	"github.com/hatlonely/datadb/log"
	"github.com/hatlonely/datadb/log/logger"
	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/dialect"
	"github.com/hatlonely/datadb/ref"
	"github.com/pkg/errors"
)

// Helper 绑定到某个方言的表操作，SQL 由方言生成，通过表自身的 Adapter 执行
type Helper interface {
	Dialect() rdb.Dialect

	CreateTableLike(ctx context.Context, newTable, oldTable rdb.Table) error
	CreateTable(ctx context.Context, table rdb.Table, columns []rdb.ColumnSpec) error
	DescribeTable(ctx context.Context, table rdb.Table) (rdb.TableDescription, error)
	// CreateSyntax 表不存在时 found 为 false
	CreateSyntax(ctx context.Context, table rdb.Table) (ddl string, found bool, err error)
	DoesTableExist(ctx context.Context, table rdb.Table) (bool, error)
	DeleteTableJoin(ctx context.Context, source, join rdb.Table, on, where string) (rdb.Result, error)
	DeleteFromTable(ctx context.Context, table rdb.Table, where string) (rdb.Result, error)
	CopyTable(ctx context.Context, from, to rdb.Table) (rdb.Result, error)

	DefaultExportFormat() file.Format
	DefaultImportFormat() file.Format
	IsValidExportFormat(format file.Format) bool
	IsValidImportFormat(format file.Format) bool
}

// Options 各 Helper 共用的配置
type Options struct {
	// Logger 为空时使用 log.Default()
	Logger *ref.TypeOptions `cfg:"logger"`
	// Timezone 仅 Redshift 使用
	Timezone string `cfg:"timezone"`
}

// base Helper 中与方言无关的流程
type base struct {
	dialect rdb.Dialect
	logger  logger.Logger
}

func newBase(d rdb.Dialect, options *Options) (base, error) {
	var loggerOptions *ref.TypeOptions
	if options != nil {
		loggerOptions = options.Logger
	}
	l, err := log.NewLoggerWithOptions(loggerOptions)
	if err != nil {
		return base{}, errors.WithMessage(err, "log.NewLoggerWithOptions failed")
	}
	return base{dialect: d, logger: l}, nil
}

func (h *base) Dialect() rdb.Dialect {
	return h.dialect
}

func (h *base) Logger() logger.Logger {
	return h.logger
}

func (h *base) SetLogger(l logger.Logger) {
	h.logger = l
}

type describeFunc func(ctx context.Context, table rdb.Table) (rdb.TableDescription, error)

// createTableLike 建表后，如果新表声明了列，删除原表中多出来的列，按 describe 返回的顺序逐个删除
func (h *base) createTableLike(ctx context.Context, newTable, oldTable rdb.Table, describe describeFunc) error {
	if err := rdb.SameAdapter(newTable, oldTable); err != nil {
		return err
	}

	h.logger.InfoContext(ctx, "creating table like", "new", newTable.FullName(), "old", oldTable.FullName())

	db := newTable.Adapter()
	sql, bind, err := h.dialect.CreateTableLike(oldTable, newTable)
	if err != nil {
		return err
	}
	if _, err := db.Query(ctx, strings.TrimSpace(sql), bind...); err != nil {
		return errors.WithMessagef(err, "failed to create table %s like %s", newTable.FullName(), oldTable.FullName())
	}

	declared := newTable.Columns()
	if len(declared) == 0 {
		return nil
	}
	description, err := describe(ctx, newTable)
	if err != nil {
		return err
	}
	original := description.Columns()
	if len(original) <= len(declared) {
		return nil
	}

	keep := make(map[string]struct{}, len(declared))
	for _, column := range declared {
		keep[column] = struct{}{}
	}
	var diff []string
	for _, column := range original {
		if _, ok := keep[column]; !ok {
			diff = append(diff, column)
		}
	}

	h.logger.InfoContext(ctx, "table definition is different to original table, dropping columns",
		"columns", strings.Join(diff, ","), "table", newTable.FullName())

	for _, column := range diff {
		sql, bind, err := h.dialect.DropColumn(newTable, column)
		if err != nil {
			return err
		}
		if _, err := db.Query(ctx, strings.TrimSpace(sql), bind...); err != nil {
			return errors.WithMessagef(err, "failed to drop column %s from %s", column, newTable.FullName())
		}
	}
	return nil
}

func (h *base) DoesTableExist(ctx context.Context, table rdb.Table) (bool, error) {
	sql, bind, err := h.dialect.DoesTableExist(table)
	if err != nil {
		return false, err
	}
	name, err := table.Adapter().FetchOne(ctx, strings.TrimSpace(sql), bind...)
	if err != nil {
		return false, err
	}
	if name == nil {
		return false, nil
	}
	return rdb.ToString(name) == table.Name(), nil
}

func (h *base) DeleteTableJoin(ctx context.Context, source, join rdb.Table, on, where string) (rdb.Result, error) {
	if err := rdb.SameAdapter(source, join); err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "deleting entries from table with a join", "table", source.FullName(), "join", join.FullName())

	var sql string
	var bind []any
	var err error
	if source.SoftDeleted() != "" {
		h.logger.InfoContext(ctx, "deletion table uses soft deleted, updating", "table", source.FullName())
		sql, bind, err = h.dialect.DeleteTableJoinSoftDelete(source, join, on, where)
	} else {
		sql, bind, err = h.dialect.DeleteTableJoin(source, join, on, where)
	}
	if err != nil {
		return nil, err
	}
	return source.Adapter().Query(ctx, strings.TrimSpace(sql), bind...)
}

func (h *base) DeleteFromTable(ctx context.Context, table rdb.Table, where string) (rdb.Result, error) {
	h.logger.InfoContext(ctx, "deleting entries from table", "table", table.FullName())

	var sql string
	var bind []any
	var err error
	if table.SoftDeleted() != "" {
		h.logger.InfoContext(ctx, "deletion table uses soft deleted, updating", "table", table.FullName())
		sql, bind, err = h.dialect.DeleteFromTableSoftDelete(table, where)
	} else {
		sql, bind, err = h.dialect.DeleteFromTable(table, where)
	}
	if err != nil {
		return nil, err
	}
	return table.Adapter().Query(ctx, strings.TrimSpace(sql), bind...)
}

func (h *base) CopyTable(ctx context.Context, from, to rdb.Table) (rdb.Result, error) {
	if err := rdb.SameAdapter(from, to); err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "copying the contents of table", "from", from.FullName(), "to", to.FullName())

	sql, bind, err := h.dialect.CopyTable(from, to)
	if err != nil {
		return nil, err
	}
	return to.Adapter().Query(ctx, strings.TrimSpace(sql), bind...)
}

func (h *base) createTable(ctx context.Context, table rdb.Table, columns, primary, index []string) error {
	sql, bind, err := h.dialect.CreateTable(table, columns, primary, index)
	if err != nil {
		return err
	}
	if _, err := table.Adapter().Query(ctx, strings.TrimSpace(sql), bind...); err != nil {
		return errors.WithMessagef(err, "failed to create table %s", table.FullName())
	}
	return nil
}

func columnNames(columns []rdb.ColumnSpec) string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Column
	}
	return strings.Join(names, ",")
}

// New 按方言名称创建 Helper
func New(name string, options *Options) (Helper, error) {
	var h Helper
	var err error
	switch name {
	case dialect.MysqlName:
		h, err = NewMysqlHelperWithOptions(options)
	case dialect.RedshiftName:
		h, err = NewRedshiftHelperWithOptions(options)
	default:
		return nil, errors.Wrapf(rdb.ErrUnsupportedDialect, "no helper for dialect %s", name)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// ForDialect 使用已有的方言实例创建 Helper
func ForDialect(d rdb.Dialect, options *Options) (Helper, error) {
	switch d := d.(type) {
	case *dialect.MysqlDialect:
		h, err := NewMysqlHelperWithOptions(options)
		if err != nil {
			return nil, err
		}
		h.dialect = d
		return h, nil
	case *dialect.RedshiftDialect:
		h, err := NewRedshiftHelperWithOptions(options)
		if err != nil {
			return nil, err
		}
		h.dialect, h.redshift = d, d
		return h, nil
	case nil:
		return nil, errors.Wrap(rdb.ErrUnsupportedDialect, "dialect is nil")
	}
	return nil, errors.Wrapf(rdb.ErrUnsupportedDialect, "no helper for dialect %s", d.Name())
}
