package rdb

import (
	"context"
	"iter"

	"github.com/pkg/errors"
)

var (
	ErrMismatchedAdapter      = errors.New("mismatched adapter")
	ErrUnknownField           = errors.New("unknown field")
	ErrUnsupportedCompression = errors.New("unsupported compression")
	ErrUnsupportedEncoding    = errors.New("unsupported encoding")
	ErrInvalidLocation        = errors.New("invalid location")
	ErrInvalidChunkSize       = errors.New("invalid chunk size")
	ErrDestinationExists      = errors.New("destination exists")
	ErrRequiresLocalFile      = errors.New("requires local file")
	ErrRequiresObjectStorage  = errors.New("requires object storage")
	ErrRequiresDeclaredFormat = errors.New("requires declared format")
	ErrUnsupportedFormat      = errors.New("unsupported format")
	ErrUnsupportedDialect     = errors.New("unsupported dialect")
	ErrBindMismatch           = errors.New("bind mismatch")
	ErrDumpFailed             = errors.New("dump failed")
)

// Result 语句执行结果，database/sql 的 sql.Result 天然满足
type Result interface {
	RowsAffected() (int64, error)
}

// Adapter 数据库执行能力的抽象
//
// 一个 Adapter 只暴露一个 Dialect，多张表可以共享同一个 Adapter，
// 连接层面的并发安全由具体实现负责
type Adapter interface {
	// Query 执行语句，不关心结果集
	Query(ctx context.Context, query string, bind ...any) (Result, error)
	// Fetch 惰性返回结果集，遍历结束或提前退出时释放底层资源
	Fetch(ctx context.Context, query string, bind ...any) iter.Seq2[*Row, error]
	// FetchAll 一次性读取所有行
	FetchAll(ctx context.Context, query string, bind ...any) ([]*Row, error)
	// FetchRow 返回第一行，无结果时返回 nil, nil
	FetchRow(ctx context.Context, query string, bind ...any) (*Row, error)
	// FetchOne 返回第一行第一列，无结果时返回 nil, nil
	FetchOne(ctx context.Context, query string, bind ...any) (any, error)
	// QuoteValue 按方言规则转义字面量，和标识符引用不是一回事
	QuoteValue(value any) (string, error)

	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	Dialect() Dialect
}

// Dialect 某一类数据库引擎的 SQL 生成策略
//
// 所有语句生成方法返回 (sql, bind, err)，sql 可能带有模板排版产生的首尾空白，
// 调用方执行前需要 strings.TrimSpace
type Dialect interface {
	Name() string
	IdentifierQuote() string

	DoesTableExist(table Table) (string, []any, error)
	CreateTableLike(oldTable, newTable Table) (string, []any, error)
	CreateTable(table Table, columns, primary, index []string) (string, []any, error)
	ColumnDefinition(column ColumnSpec) (string, error)
	PrimaryKeyDefinition(column ColumnSpec) (string, error)
	IndexDefinition(column ColumnSpec) (string, error)
	DropColumn(table Table, column string) (string, []any, error)
	CopyTable(from, to Table) (string, []any, error)
	DeleteFromTable(table Table, where string) (string, []any, error)
	DeleteFromTableSoftDelete(table Table, where string) (string, []any, error)
	DeleteTableJoin(source, join Table, on, where string) (string, []any, error)
	DeleteTableJoinSoftDelete(source, join Table, on, where string) (string, []any, error)
	SelectSyntax(table Table) (string, []any, error)
	InsertSyntax(table Table, rows [][]any) (string, []any, error)
	DescribeTable(table Table) (string, []any, error)
	CreateSyntax(table Table) (string, []any, error)
}

// SameAdapter 两张表必须使用同一个 Adapter
func SameAdapter(first, second Table) error {
	if first.Adapter() != second.Adapter() {
		return errors.Wrapf(ErrMismatchedAdapter, "the adapter is different for: %s and %s", first.FullName(), second.FullName())
	}
	return nil
}
