package rdb

import (
	"context"
	"iter"
)

// QueryNode 绑定到某个 Adapter 的原始查询
//
// bind 按从左到右的顺序对应 sql 中的 ? 占位符，columns 仅作说明用途，不与结果集校验
type QueryNode struct {
	adapter Adapter
	sql     string
	bind    []any
	columns []string
}

func NewQueryNode(adapter Adapter, sql string, bind ...any) *QueryNode {
	return &QueryNode{
		adapter: adapter,
		sql:     sql,
		bind:    bind,
	}
}

func (q *QueryNode) Adapter() Adapter  { return q.adapter }
func (q *QueryNode) SQL() string       { return q.sql }
func (q *QueryNode) Bind() []any       { return q.bind }
func (q *QueryNode) Columns() []string { return q.columns }

func (q *QueryNode) SetAdapter(adapter Adapter) *QueryNode {
	q.adapter = adapter
	return q
}

func (q *QueryNode) SetSQL(sql string) *QueryNode {
	q.sql = sql
	return q
}

func (q *QueryNode) SetBind(bind ...any) *QueryNode {
	q.bind = bind
	return q
}

func (q *QueryNode) SetColumns(columns ...string) *QueryNode {
	q.columns = columns
	return q
}

func (q *QueryNode) Query(ctx context.Context) (Result, error) {
	return q.adapter.Query(ctx, q.sql, q.bind...)
}

func (q *QueryNode) Fetch(ctx context.Context) iter.Seq2[*Row, error] {
	return q.adapter.Fetch(ctx, q.sql, q.bind...)
}

func (q *QueryNode) FetchAll(ctx context.Context) ([]*Row, error) {
	return q.adapter.FetchAll(ctx, q.sql, q.bind...)
}

func (q *QueryNode) FetchRow(ctx context.Context) (*Row, error) {
	return q.adapter.FetchRow(ctx, q.sql, q.bind...)
}

func (q *QueryNode) FetchOne(ctx context.Context) (any, error) {
	return q.adapter.FetchOne(ctx, q.sql, q.bind...)
}

func (q *QueryNode) String() string {
	sql := q.sql
	if len(sql) > 18 {
		sql = sql[:18]
	}
	return "Query: " + sql + "..."
}

// Clone 浅拷贝
func (q *QueryNode) Clone() *QueryNode {
	c := *q
	return &c
}
