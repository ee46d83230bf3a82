package dialect

import (
	"context"
	"fmt"
	"strings"

	"github.com/hatlonely/datadb/file"
	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/formatter"
	"github.com/pkg/errors"
)

const (
	RedshiftName            = "redshift"
	DefaultRedshiftTimezone = "Europe/London"
)

type RedshiftDialectOptions struct {
	// Timezone 软删除时间戳从 UTC 转换到的时区
	Timezone string `cfg:"timezone" def:"Europe/London"`
}

// RedshiftDialect 数仓方言，双引号包裹标识符，支持 COPY/UNLOAD
type RedshiftDialect struct {
	baseDialect
	timezone string
}

func NewRedshiftDialect() *RedshiftDialect {
	d, _ := NewRedshiftDialectWithOptions(&RedshiftDialectOptions{})
	return d
}

func NewRedshiftDialectWithOptions(options *RedshiftDialectOptions) (*RedshiftDialect, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	timezone := options.Timezone
	if timezone == "" {
		timezone = DefaultRedshiftTimezone
	}
	return &RedshiftDialect{baseDialect: newBaseDialect(nil, `"`), timezone: timezone}, nil
}

// SetFormatter formatter 的标识符引号会被改为双引号
func (d *RedshiftDialect) SetFormatter(f *formatter.SyntaxFormatter) *RedshiftDialect {
	d.baseDialect = newBaseDialect(f, `"`)
	return d
}

func (d *RedshiftDialect) Name() string {
	return RedshiftName
}

func (d *RedshiftDialect) Timezone() string {
	return d.timezone
}

func (d *RedshiftDialect) CreateTableLike(oldTable, newTable rdb.Table) (string, []any, error) {
	sql, err := d.format(
		"CREATE TABLE {new:schema|q}.{new:table|q} (LIKE {old:schema|q}.{old:table|q})",
		map[string]any{"old": oldTable, "new": newTable},
	)
	return sql, nil, err
}

func (d *RedshiftDialect) DeleteTableJoin(source, join rdb.Table, on, where string) (string, []any, error) {
	sql, err := d.format(
		"DELETE FROM\n {source:schema|q}.{source:table|q}\nUSING\n {join:schema|q}.{join:table|q}\nWHERE\n {on}\n {where}",
		map[string]any{"source": source, "join": join, "on": on, "where": andWhere(where)},
	)
	return sql, nil, err
}

func (d *RedshiftDialect) DeleteTableJoinSoftDelete(source, join rdb.Table, on, where string) (string, []any, error) {
	softUpdated, err := d.softUpdated("source", source)
	if err != nil {
		return "", nil, err
	}
	sql, err := d.format(
		"UPDATE {source:schema|q}.{source:table|q}\nSET{softUpdated}\n {source:softDeleted|q} = CONVERT_TIMEZONE('UTC', '{timezone}', GETDATE())\nFROM {join:schema|q}.{join:table|q}\nWHERE {on}\n {where}",
		map[string]any{
			"source":      source,
			"join":        join,
			"on":          on,
			"softUpdated": softUpdated,
			"where":       andWhere(where),
			"timezone":    d.timezone,
		},
	)
	return sql, nil, err
}

func (d *RedshiftDialect) DeleteFromTableSoftDelete(table rdb.Table, where string) (string, []any, error) {
	softUpdated, err := d.softUpdated("table", table)
	if err != nil {
		return "", nil, err
	}
	sql, err := d.format(
		"UPDATE {table:schema|q}.{table:table|q}\nSET{softUpdated}\n {table:softDeleted|q} = CONVERT_TIMEZONE('UTC', '{timezone}', GETDATE())\n{where}",
		map[string]any{
			"table":       table,
			"softUpdated": softUpdated,
			"where":       prefixed("WHERE ", where),
			"timezone":    d.timezone,
		},
	)
	return sql, nil, err
}

func (d *RedshiftDialect) softUpdated(name string, table rdb.Table) (string, error) {
	if table.SoftUpdated() == "" {
		return "", nil
	}
	return d.format(
		" {"+name+":softUpdated|q} = CONVERT_TIMEZONE('UTC', '{timezone}', GETDATE()),",
		map[string]any{name: table, "timezone": d.timezone},
	)
}

// CreateTable 只取第一个 DISTKEY，排序键逐行追加
func (d *RedshiftDialect) CreateTable(table rdb.Table, columns, primary, index []string) (string, []any, error) {
	distKey := ""
	if len(primary) > 0 {
		distKey = primary[0]
	}
	sql, err := d.format(
		"CREATE TABLE {table:schema|q}.{table:table|q} (\n  {columns}\n)\n{primary}\n{index}",
		map[string]any{
			"table":   table,
			"columns": strings.Join(columns, ",\n  "),
			"primary": distKey,
			"index":   strings.Join(index, "\n  "),
		},
	)
	return sql, nil, err
}

// ColumnDefinition 可空列不加后缀
func (d *RedshiftDialect) ColumnDefinition(column rdb.ColumnSpec) (string, error) {
	notNull := ""
	if !column.Nullable {
		notNull = " NOT NULL"
	}
	return d.format("{column:column|q} {column:type}{notNull}", map[string]any{"column": column, "notNull": notNull})
}

func (d *RedshiftDialect) PrimaryKeyDefinition(column rdb.ColumnSpec) (string, error) {
	return d.format("DISTKEY({column:column|q})", map[string]any{"column": column})
}

func (d *RedshiftDialect) IndexDefinition(column rdb.ColumnSpec) (string, error) {
	return d.SortKeyDefinition(column)
}

// SortKeyDefinition 多个排序列合并为一个复合 SORTKEY
func (d *RedshiftDialect) SortKeyDefinition(columns ...rdb.ColumnSpec) (string, error) {
	if len(columns) == 0 {
		return "", errors.New("no sort key columns")
	}
	names := make([]string, 0, len(columns))
	for _, column := range columns {
		if column.Column == "" {
			return "", errors.Wrap(formatter.ErrInvalidLookup, "sort key column has no name")
		}
		names = append(names, column.Column)
	}
	return "SORTKEY(" + d.columnList(names) + ")", nil
}

func (d *RedshiftDialect) DescribeTable(table rdb.Table) (string, []any, error) {
	return "SELECT *\nFROM pg_table_def\nWHERE schemaname = ?\n  AND tablename = ?",
		[]any{table.Schema(), table.Name()}, nil
}

func (d *RedshiftDialect) CreateSyntax(table rdb.Table) (string, []any, error) {
	return redshiftCreateSyntax, []any{table.Schema(), table.Name()}, nil
}

// ImportOptions COPY 的附加参数
type ImportOptions struct {
	TruncateColumns bool   `cfg:"truncateColumns" def:"true"`
	MaxErrors       int    `cfg:"maxErrors"`
	TimeFormat      string `cfg:"timeFormat" def:"YYYY-MM-DD HH:MI:SS"`
	DateFormat      string `cfg:"dateFormat" def:"YYYY-MM-DD"`
}

func DefaultImportOptions() *ImportOptions {
	return &ImportOptions{
		TruncateColumns: true,
		TimeFormat:      "YYYY-MM-DD HH:MI:SS",
		DateFormat:      "YYYY-MM-DD",
	}
}

func (o *ImportOptions) orDefault() *ImportOptions {
	if o == nil {
		return DefaultImportOptions()
	}
	c := *o
	if c.TimeFormat == "" {
		c.TimeFormat = "YYYY-MM-DD HH:MI:SS"
	}
	if c.DateFormat == "" {
		c.DateFormat = "YYYY-MM-DD"
	}
	return &c
}

// s3Location 文件所在的 URI 和内联凭证
func (d *RedshiftDialect) s3Location(ctx context.Context, f file.File) (string, string, error) {
	storage, ok := f.(file.ObjectStorage)
	if !ok {
		return "", "", errors.Wrapf(rdb.ErrInvalidLocation, "the supplied file: %s is not a S3 location", f)
	}
	credentials, err := storage.Credentials(ctx)
	if err != nil {
		return "", "", err
	}
	uri := fmt.Sprintf("s3://%s/%s", storage.Bucket(), storage.Key())
	return uri, fmt.Sprintf("aws_access_key_id=%s;aws_secret_access_key=%s", credentials.AccessKeyID, credentials.SecretAccessKey), nil
}

func (d *RedshiftDialect) copyColumns(table rdb.Table) string {
	if len(table.Columns()) == 0 {
		return ""
	}
	return "(" + d.columnList(table.Columns()) + ")"
}

// ImportFromCsv 从 S3 上的分隔文本 COPY 到表
func (d *RedshiftDialect) ImportFromCsv(ctx context.Context, table rdb.Table, f file.File, format *file.CsvFormat, options *ImportOptions) (string, []any, error) {
	options = options.orDefault()
	uri, credentials, err := d.s3Location(ctx, f)
	if err != nil {
		return "", nil, err
	}

	bind := []any{
		uri,
		credentials,
		format.Delimiter,
		format.NullValue,
		options.MaxErrors,
		options.TimeFormat,
		options.DateFormat,
	}

	csvFormat := "CSV QUOTE AS ?"
	if format.HasEscape() {
		csvFormat = " ESCAPE"
		if format.HasQuote() {
			csvFormat = "REMOVEQUOTES" + csvFormat
		}
	} else {
		bind = append(bind, format.Quote)
	}

	truncateColumns := ""
	if options.TruncateColumns {
		truncateColumns = "TRUNCATECOLUMNS"
	}

	ignoreHeaders := ""
	if start := format.DataStartRow(); start > 1 {
		ignoreHeaders = "IGNOREHEADERS AS ?"
		bind = append(bind, start-1)
	}

	compression, err := RedshiftCompression(f)
	if err != nil {
		return "", nil, err
	}
	encoding, bind, err := d.encodingClause(f, bind)
	if err != nil {
		return "", nil, err
	}

	sql, err := d.format(
		`COPY {table:schema|q}.{table:table|q}
{columns}
FROM ?
WITH CREDENTIALS AS ?
FORMAT
DELIMITER AS ?
NULL AS ?
COMPUPDATE ON
ACCEPTANYDATE
IGNOREBLANKLINES
MAXERROR AS ?
TIMEFORMAT AS ?
DATEFORMAT AS ?
{csvFormat}
{truncateColumns}
{ignoreHeaders}
{compression}
{encoding}`,
		map[string]any{
			"table":           table,
			"columns":         d.copyColumns(table),
			"csvFormat":       csvFormat,
			"truncateColumns": truncateColumns,
			"ignoreHeaders":   ignoreHeaders,
			"compression":     compression,
			"encoding":        encoding,
		},
	)
	return sql, bind, err
}

// ImportFromJson 从 S3 上的 json 文件 COPY 到表，按列名自动匹配
func (d *RedshiftDialect) ImportFromJson(ctx context.Context, table rdb.Table, f file.File, options *ImportOptions) (string, []any, error) {
	options = options.orDefault()
	uri, credentials, err := d.s3Location(ctx, f)
	if err != nil {
		return "", nil, err
	}

	bind := []any{uri, credentials, options.MaxErrors, options.TimeFormat, options.DateFormat}

	compression, err := RedshiftCompression(f)
	if err != nil {
		return "", nil, err
	}
	encoding, bind, err := d.encodingClause(f, bind)
	if err != nil {
		return "", nil, err
	}

	sql, err := d.format(
		`COPY {table:schema|q}.{table:table|q}
{columns}
FROM ?
WITH CREDENTIALS AS ?
FORMAT
JSON AS 'auto'
COMPUPDATE ON
ACCEPTANYDATE
MAXERROR AS ?
TIMEFORMAT AS ?
DATEFORMAT AS ?
{compression}
{encoding}`,
		map[string]any{
			"table":       table,
			"columns":     d.copyColumns(table),
			"compression": compression,
			"encoding":    encoding,
		},
	)
	return sql, bind, err
}

// ExportToCsv UNLOAD 查询结果到 S3，查询本身作为第一个绑定参数
func (d *RedshiftDialect) ExportToCsv(ctx context.Context, query string, f file.File, format *file.CsvFormat) (string, []any, error) {
	uri, credentials, err := d.s3Location(ctx, f)
	if err != nil {
		return "", nil, err
	}

	bind := []any{query, uri, credentials, format.Delimiter, format.NullValue}

	addQuotes := ""
	if format.HasQuote() {
		addQuotes = "ADDQUOTES"
	}
	escape := ""
	if format.HasEscape() {
		escape = "ESCAPE"
	}
	compression, err := RedshiftCompression(f)
	if err != nil {
		return "", nil, err
	}
	encoding, bind, err := d.encodingClause(f, bind)
	if err != nil {
		return "", nil, err
	}

	sql, err := d.format(
		`UNLOAD
(?)
TO ?
CREDENTIALS ?
DELIMITER ?
NULL AS ?
{addQuotes}
{escape}
{compression}
{encoding}`,
		map[string]any{
			"addQuotes":   addQuotes,
			"escape":      escape,
			"compression": compression,
			"encoding":    encoding,
		},
	)
	return sql, bind, err
}

func (d *RedshiftDialect) encodingClause(f file.File, bind []any) (string, []any, error) {
	encoding, err := RedshiftEncoding(f)
	if err != nil || encoding == "" {
		return "", bind, err
	}
	return "ENCODING AS ?", append(bind, encoding), nil
}

// RedshiftCompression 文件压缩方式对应的 COPY/UNLOAD 关键字，未压缩返回空串
func RedshiftCompression(f file.File) (string, error) {
	aware, ok := f.(file.CompressionAware)
	if !ok {
		return "", nil
	}
	switch strings.ToLower(aware.Compression()) {
	case file.CompressionGzip:
		return "GZIP", nil
	case file.CompressionBzip2:
		return "BZIP2", nil
	case file.CompressionLzop:
		return "LZOP", nil
	case file.CompressionNone, file.CompressionUnknown:
		return "", nil
	}
	return "", errors.Wrapf(rdb.ErrUnsupportedCompression, "redshift is unable to handle a %s compressed file", aware.Compression())
}

// RedshiftEncoding 文件编码对应的 ENCODING 取值，未声明编码返回空串
func RedshiftEncoding(f file.File) (string, error) {
	aware, ok := f.(file.EncodingAware)
	if !ok {
		return "", nil
	}
	switch strings.ToLower(aware.Encoding()) {
	case "utf-8":
		return "UTF8", nil
	case "utf-16le":
		return "UTF16LE", nil
	case "utf-16be":
		return "UTF16BE", nil
	case "utf-16":
		return "UTF16", nil
	case "":
		return "", nil
	}
	return "", errors.Wrapf(rdb.ErrUnsupportedEncoding, "redshift is unable to handle a %s encoded file", aware.Encoding())
}

func andWhere(where string) string {
	if where == "" {
		return ""
	}
	return "AND (" + where + ")"
}

var _ rdb.Dialect = (*RedshiftDialect)(nil)
