package rdb

import (
	"fmt"

	"github.com/pkg/errors"
)

// Table 表描述
//
// Columns 为空表示全部列；SoftDeleted 非空时删除操作走软删除路径
type Table interface {
	Adapter() Adapter
	Schema() string
	Name() string
	FullName() string
	Columns() []string
	SoftAdded() string
	SoftUpdated() string
	SoftDeleted() string

	// NamedField 供模板按字段名取值
	NamedField(name string) (any, error)
}

// SourceTable 带过滤条件的表，Where 是一段原样插入的布尔表达式
type SourceTable interface {
	Table
	Where() string
}

// SoftColumns 软删除相关的列名，为空表示未声明
type SoftColumns struct {
	Added   string `cfg:"added"`
	Updated string `cfg:"updated"`
	Deleted string `cfg:"deleted"`
}

type TableNode struct {
	adapter Adapter
	schema  string
	name    string
	columns []string
	soft    SoftColumns
}

func NewTableNode(adapter Adapter, schema string, name string) *TableNode {
	return &TableNode{
		adapter: adapter,
		schema:  schema,
		name:    name,
	}
}

func (t *TableNode) Adapter() Adapter    { return t.adapter }
func (t *TableNode) Schema() string      { return t.schema }
func (t *TableNode) Name() string        { return t.name }
func (t *TableNode) Columns() []string   { return t.columns }
func (t *TableNode) SoftAdded() string   { return t.soft.Added }
func (t *TableNode) SoftUpdated() string { return t.soft.Updated }
func (t *TableNode) SoftDeleted() string { return t.soft.Deleted }

func (t *TableNode) FullName() string {
	return fmt.Sprintf("%s.%s", t.schema, t.name)
}

func (t *TableNode) String() string {
	return t.FullName()
}

func (t *TableNode) SetAdapter(adapter Adapter) *TableNode {
	t.adapter = adapter
	return t
}

func (t *TableNode) SetSchema(schema string) *TableNode {
	t.schema = schema
	return t
}

func (t *TableNode) SetName(name string) *TableNode {
	t.name = name
	return t
}

func (t *TableNode) SetColumns(columns ...string) *TableNode {
	t.columns = columns
	return t
}

func (t *TableNode) SetSoftAdded(column string) *TableNode {
	t.soft.Added = column
	return t
}

func (t *TableNode) SetSoftUpdated(column string) *TableNode {
	t.soft.Updated = column
	return t
}

func (t *TableNode) SetSoftDeleted(column string) *TableNode {
	t.soft.Deleted = column
	return t
}

func (t *TableNode) SetSoftColumns(soft SoftColumns) *TableNode {
	t.soft = soft
	return t
}

// Clone 浅拷贝，列切片与原对象共享底层数组
func (t *TableNode) Clone() *TableNode {
	c := *t
	return &c
}

func (t *TableNode) NamedField(name string) (any, error) {
	switch name {
	case "schema":
		return t.schema, nil
	case "table", "name":
		return t.name, nil
	case "fullName":
		return t.FullName(), nil
	case "softAdded":
		return t.soft.Added, nil
	case "softUpdated":
		return t.soft.Updated, nil
	case "softDeleted":
		return t.soft.Deleted, nil
	}
	return nil, errors.Wrapf(ErrUnknownField, "table %s has no field %s", t.FullName(), name)
}

// SourceTableNode 带 where 条件的表，setter 返回 *SourceTableNode 以便和 SetWhere 链式调用
type SourceTableNode struct {
	TableNode
	where string
}

func NewSourceTableNode(adapter Adapter, schema string, name string) *SourceTableNode {
	return &SourceTableNode{
		TableNode: TableNode{
			adapter: adapter,
			schema:  schema,
			name:    name,
		},
	}
}

func (t *SourceTableNode) Where() string {
	return t.where
}

func (t *SourceTableNode) SetWhere(where string) *SourceTableNode {
	t.where = where
	return t
}

func (t *SourceTableNode) SetAdapter(adapter Adapter) *SourceTableNode {
	t.TableNode.SetAdapter(adapter)
	return t
}

func (t *SourceTableNode) SetSchema(schema string) *SourceTableNode {
	t.TableNode.SetSchema(schema)
	return t
}

func (t *SourceTableNode) SetName(name string) *SourceTableNode {
	t.TableNode.SetName(name)
	return t
}

func (t *SourceTableNode) SetColumns(columns ...string) *SourceTableNode {
	t.TableNode.SetColumns(columns...)
	return t
}

func (t *SourceTableNode) SetSoftAdded(column string) *SourceTableNode {
	t.TableNode.SetSoftAdded(column)
	return t
}

func (t *SourceTableNode) SetSoftUpdated(column string) *SourceTableNode {
	t.TableNode.SetSoftUpdated(column)
	return t
}

func (t *SourceTableNode) SetSoftDeleted(column string) *SourceTableNode {
	t.TableNode.SetSoftDeleted(column)
	return t
}

func (t *SourceTableNode) SetSoftColumns(soft SoftColumns) *SourceTableNode {
	t.TableNode.SetSoftColumns(soft)
	return t
}

func (t *SourceTableNode) Clone() *SourceTableNode {
	c := *t
	return &c
}

func (t *SourceTableNode) NamedField(name string) (any, error) {
	if name == "where" {
		return t.where, nil
	}
	return t.TableNode.NamedField(name)
}

// ColumnSpec 建表用的列定义
type ColumnSpec struct {
	Column   string `cfg:"column" validate:"required"`
	Type     string `cfg:"type" validate:"required"`
	Nullable bool   `cfg:"nullable"`
	Primary  bool   `cfg:"primary"`
	Index    bool   `cfg:"index"`
}

func (c ColumnSpec) NamedField(name string) (any, error) {
	switch name {
	case "column", "name":
		return c.Column, nil
	case "type":
		return c.Type, nil
	case "nullable":
		return c.Nullable, nil
	case "primary":
		return c.Primary, nil
	case "index":
		return c.Index, nil
	}
	return nil, errors.Wrapf(ErrUnknownField, "column %s has no field %s", c.Column, name)
}

// ColumnDescription 从数据库读取到的列信息
type ColumnDescription struct {
	Schema   string `json:"schema"`
	Table    string `json:"table"`
	Column   string `json:"column"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Primary  bool   `json:"primary"`
	Index    bool   `json:"index"`
}

// TableDescription 按数据库返回顺序排列的列信息
type TableDescription []*ColumnDescription

func (d TableDescription) Columns() []string {
	columns := make([]string, 0, len(d))
	for _, c := range d {
		columns = append(columns, c.Column)
	}
	return columns
}

func (d TableDescription) Get(column string) (*ColumnDescription, bool) {
	for _, c := range d {
		if c.Column == column {
			return c, true
		}
	}
	return nil, false
}

func (d TableDescription) Map() map[string]*ColumnDescription {
	m := make(map[string]*ColumnDescription, len(d))
	for _, c := range d {
		m[c.Column] = c
	}
	return m
}
