package rdb

import (
	"fmt"
	"slices"
)

// Row 结果集中的一行，保留列顺序
type Row struct {
	Columns []string
	Values  []any
}

func NewRow(columns []string, values []any) *Row {
	return &Row{Columns: columns, Values: values}
}

// NewRowFromMap 按给定列顺序从 map 构造一行
func NewRowFromMap(columns []string, data map[string]any) *Row {
	values := make([]any, len(columns))
	for i, column := range columns {
		values[i] = data[column]
	}
	return &Row{Columns: columns, Values: values}
}

func (r *Row) Len() int {
	return len(r.Values)
}

func (r *Row) Get(column string) (any, bool) {
	idx := slices.Index(r.Columns, column)
	if idx < 0 || idx >= len(r.Values) {
		return nil, false
	}
	return r.Values[idx], true
}

// String 读取列的字符串形式，列不存在或为 NULL 时返回空串
func (r *Row) String(column string) string {
	v, ok := r.Get(column)
	if !ok {
		return ""
	}
	return ToString(v)
}

// Int 读取列的整数形式，无法转换时返回 0
func (r *Row) Int(column string) int64 {
	v, ok := r.Get(column)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int16:
		return int64(n)
	case int8:
		return int64(n)
	case uint64:
		return int64(n)
	case uint32:
		return int64(n)
	case uint16:
		return int64(n)
	case uint8:
		return int64(n)
	case uint:
		return int64(n)
	case float64:
		return int64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	}
	var n int64
	if _, err := fmt.Sscan(ToString(v), &n); err != nil {
		return 0
	}
	return n
}

// Bool 读取列的布尔形式，兼容驱动把 BOOLEAN 返回为整数或字符串的情况
func (r *Row) Bool(column string) bool {
	v, ok := r.Get(column)
	if !ok || v == nil {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "t" || b == "true" || b == "TRUE" || b == "1"
	case []byte:
		s := string(b)
		return s == "t" || s == "true" || s == "TRUE" || s == "1"
	}
	return r.Int(column) != 0
}

func (r *Row) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, column := range r.Columns {
		if i < len(r.Values) {
			m[column] = r.Values[i]
		}
	}
	return m
}

// ToString 驱动返回值转字符串，nil 视为空串
func ToString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}
