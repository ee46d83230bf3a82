package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hatlonely/datadb/rdb"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// quoteFunc 把字符串转义为字面量
type quoteFunc func(s string) string

// mysqlEscaper 与 mysql_real_escape_string 的处理一致
var mysqlEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"'", "\\'",
	"\"", "\\\"",
	"\x00", "\\0",
	"\n", "\\n",
	"\r", "\\r",
	"\x1a", "\\Z",
)

func quoteMysql(s string) string {
	return "'" + mysqlEscaper.Replace(s) + "'"
}

func quoteStandard(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoterForDriver pgx/postgres 使用 pq.QuoteLiteral，反斜杠会改写成 E'' 形式
func quoterForDriver(driver string) quoteFunc {
	switch driver {
	case "mysql":
		return quoteMysql
	case "pgx", "postgres":
		return pq.QuoteLiteral
	}
	return quoteStandard
}

// quoteValue 把 Go 值转成 SQL 字面量，数值不加引号，nil 为 NULL
func quoteValue(quote quoteFunc, value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case string:
		return quote(v), nil
	case []byte:
		return quote(string(v)), nil
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case time.Time:
		return quote(v.Format("2006-01-02 15:04:05")), nil
	case fmt.Stringer:
		return quote(v.String()), nil
	}
	return "", errors.Errorf("cannot quote value of type %T", value)
}

var utilityKeywords = []string{"COPY", "UNLOAD"}

func isUtilityStatement(query string) bool {
	head := strings.TrimLeft(query, " \t\r\n(")
	for _, keyword := range utilityKeywords {
		if len(head) >= len(keyword) && strings.EqualFold(head[:len(keyword)], keyword) {
			return true
		}
	}
	return false
}

// inlineBind 从左到右把每个 ? 替换成字面量，引号内的 ? 保持原样，占位符和参数数量必须一致
func inlineBind(quote quoteFunc, query string, bind []any) (string, error) {
	var sb strings.Builder
	n := 0
	var inQuote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '\'' || c == '"':
			inQuote = c
		}
		if c != '?' || inQuote != 0 {
			sb.WriteByte(c)
			continue
		}
		if n >= len(bind) {
			return "", errors.Wrapf(rdb.ErrBindMismatch, "more placeholders than the %d parameters supplied", len(bind))
		}
		literal, err := quoteValue(quote, bind[n])
		if err != nil {
			return "", errors.WithMessagef(err, "failed to quote parameter %d", n)
		}
		sb.WriteString(literal)
		n++
	}
	if n != len(bind) {
		return "", errors.Wrapf(rdb.ErrBindMismatch, "%d placeholders in query but %d parameters supplied", n, len(bind))
	}
	return sb.String(), nil
}
