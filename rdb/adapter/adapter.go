// Package adapter 提供 rdb.Adapter 的具体实现：database/sql、gorm 以及带观测能力的装饰器
package adapter

import (
	"database/sql"
	"iter"
	"strconv"
	"strings"

	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/dialect"
	"github.com/hatlonely/datadb/ref"
	"github.com/pkg/errors"
)

const Namespace = "github.com/hatlonely/datadb/rdb/adapter"

func init() {
	ref.MustRegister(Namespace, "SQLAdapter", NewSQLWithOptions)
	ref.MustRegister(Namespace, "GormAdapter", NewGormWithOptions)
	ref.MustRegister(Namespace, "ObservableAdapter", NewObservableWithOptions)
}

// NewAdapterWithOptions 按配置创建 Adapter，namespace 为空时使用本包
func NewAdapterWithOptions(options *ref.TypeOptions) (rdb.Adapter, error) {
	a, err := ref.Build[rdb.Adapter](options, Namespace)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create adapter")
	}
	return a, nil
}

// NewDialect 按名称创建方言，name 为空时由驱动推断：
// mysql/sqlite3 使用通用方言，pgx/postgres 使用 Redshift 方言
func NewDialect(name string, driver string, timezone string) (rdb.Dialect, error) {
	if name == "" {
		switch driver {
		case "pgx", "postgres":
			name = dialect.RedshiftName
		default:
			name = dialect.MysqlName
		}
	}
	switch name {
	case dialect.MysqlName:
		return dialect.NewMysqlDialect(), nil
	case dialect.RedshiftName:
		return dialect.NewRedshiftDialectWithOptions(&dialect.RedshiftDialectOptions{Timezone: timezone})
	}
	return nil, errors.Wrapf(rdb.ErrUnsupportedDialect, "unknown dialect %s", name)
}

// fetchRows 惰性读取结果集，[]byte 统一转成 string
func fetchRows(open func() (*sql.Rows, error)) iter.Seq2[*rdb.Row, error] {
	return func(yield func(*rdb.Row, error) bool) {
		rows, err := open()
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			yield(nil, errors.Wrap(err, "rows.Columns failed"))
			return
		}
		for rows.Next() {
			values := make([]any, len(columns))
			pointers := make([]any, len(columns))
			for i := range values {
				pointers[i] = &values[i]
			}
			if err := rows.Scan(pointers...); err != nil {
				yield(nil, errors.Wrap(err, "rows.Scan failed"))
				return
			}
			for i, v := range values {
				if b, ok := v.([]byte); ok {
					values[i] = string(b)
				}
			}
			if !yield(rdb.NewRow(columns, values), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, errors.Wrap(err, "rows.Err"))
		}
	}
}

func collect(seq iter.Seq2[*rdb.Row, error], limit int) ([]*rdb.Row, error) {
	var result []*rdb.Row
	for row, err := range seq {
		if err != nil {
			return nil, err
		}
		result = append(result, row)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func fetchRow(seq iter.Seq2[*rdb.Row, error]) (*rdb.Row, error) {
	rows, err := collect(seq, 1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func fetchOne(seq iter.Seq2[*rdb.Row, error]) (any, error) {
	row, err := fetchRow(seq)
	if err != nil || row == nil || row.Len() == 0 {
		return nil, err
	}
	return row.Values[0], nil
}

// rebind 把 ? 占位符改写为 $1,$2...，跳过引号内的问号
func rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
