// Package rdbtest 提供记录执行语句的内存 Adapter，用于 helper/importer/exporter 的单元测试
package rdbtest

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/hatlonely/datadb/rdb"
)

// Call 一次 Adapter 调用
type Call struct {
	Method string
	SQL    string
	Bind   []any
}

type result int64

func (r result) RowsAffected() (int64, error) { return int64(r), nil }

// Adapter 按调用顺序记录所有语句
//
// OnQuery/OnFetch 为空时 Query 成功返回、Fetch 返回空结果集
type Adapter struct {
	OnQuery func(sql string, bind []any) error
	OnFetch func(sql string, bind []any) ([]*rdb.Row, error)

	dialect rdb.Dialect
	mu      sync.Mutex
	calls   []Call
	inTx    bool
}

func NewAdapter(dialect rdb.Dialect) *Adapter {
	return &Adapter{dialect: dialect}
}

func (a *Adapter) record(method string, sql string, bind []any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, Call{Method: method, SQL: sql, Bind: bind})
}

// Calls 返回目前为止的调用记录
func (a *Adapter) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Call(nil), a.calls...)
}

// Statements 返回所有调用的 SQL
func (a *Adapter) Statements() []string {
	var statements []string
	for _, c := range a.Calls() {
		statements = append(statements, c.SQL)
	}
	return statements
}

func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = nil
}

func (a *Adapter) InTransaction() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inTx
}

func (a *Adapter) Query(ctx context.Context, sql string, bind ...any) (rdb.Result, error) {
	a.record("query", sql, bind)
	if a.OnQuery != nil {
		if err := a.OnQuery(sql, bind); err != nil {
			return nil, err
		}
	}
	return result(0), nil
}

func (a *Adapter) rows(method string, sql string, bind []any) ([]*rdb.Row, error) {
	a.record(method, sql, bind)
	if a.OnFetch == nil {
		return nil, nil
	}
	return a.OnFetch(sql, bind)
}

func (a *Adapter) Fetch(ctx context.Context, sql string, bind ...any) iter.Seq2[*rdb.Row, error] {
	return func(yield func(*rdb.Row, error) bool) {
		rows, err := a.rows("fetch", sql, bind)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, row := range rows {
			if !yield(row, nil) {
				return
			}
		}
	}
}

func (a *Adapter) FetchAll(ctx context.Context, sql string, bind ...any) ([]*rdb.Row, error) {
	return a.rows("fetchAll", sql, bind)
}

func (a *Adapter) FetchRow(ctx context.Context, sql string, bind ...any) (*rdb.Row, error) {
	rows, err := a.rows("fetchRow", sql, bind)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (a *Adapter) FetchOne(ctx context.Context, sql string, bind ...any) (any, error) {
	rows, err := a.rows("fetchOne", sql, bind)
	if err != nil || len(rows) == 0 || rows[0].Len() == 0 {
		return nil, err
	}
	return rows[0].Values[0], nil
}

// QuoteValue 单引号包裹，内部单引号加倍
func (a *Adapter) QuoteValue(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(v), nil
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	}
	return "'" + strings.ReplaceAll(fmt.Sprint(value), "'", "''") + "'", nil
}

func (a *Adapter) Begin(ctx context.Context) error {
	a.record("begin", "", nil)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inTx = true
	return nil
}

func (a *Adapter) Commit() error {
	a.record("commit", "", nil)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inTx = false
	return nil
}

func (a *Adapter) Rollback() error {
	a.record("rollback", "", nil)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inTx = false
	return nil
}

func (a *Adapter) Dialect() rdb.Dialect {
	return a.dialect
}
