package importer

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/hatlonely/datadb/file"
	"github.com/hatlonely/datadb/log"
	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/adapter"
	"github.com/hatlonely/datadb/rdb/dialect"
	"github.com/hatlonely/datadb/rdb/rdbtest"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func sequence(n int) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{i, fmt.Sprintf("name-%d", i)}
	}
	return rows
}

func TestIteratorImporter(t *testing.T) {
	Convey("测试 IteratorImporter", t, func() {
		ctx := context.Background()
		a := rdbtest.NewAdapter(dialect.NewMysqlDialect())
		table := rdb.NewTableNode(a, "schema", "table")

		Convey("默认批次大小为 100", func() {
			importer := NewIteratorImporter(table).WithLogger(log.Discard())
			So(importer.BatchSize(), ShouldEqual, 100)

			got, err := importer.Import(ctx, slices.Values(sequence(250)))
			So(err, ShouldBeNil)
			So(got, ShouldEqual, table)

			calls := a.Calls()
			So(calls, ShouldHaveLength, 3)
			So(calls[0].Bind, ShouldHaveLength, 200)
			So(calls[1].Bind, ShouldHaveLength, 200)
			So(calls[2].Bind, ShouldHaveLength, 100)
			So(calls[0].Bind[0], ShouldEqual, 0)
			So(calls[2].Bind[98], ShouldEqual, 249)
		})

		Convey("指定批次大小", func() {
			importer, err := NewIteratorImporterWithOptions(table, &IteratorImporterOptions{BatchSize: 2})
			So(err, ShouldBeNil)
			importer.WithLogger(log.Discard())

			_, err = importer.Import(ctx, slices.Values([][]any{{"first", "second"}, {"third", "fourth"}, {"fifth", "sixth"}}))
			So(err, ShouldBeNil)
			So(a.Calls(), ShouldResemble, []rdbtest.Call{
				{Method: "query", SQL: "INSERT INTO `schema`.`table` VALUES (?,?),(?,?)", Bind: []any{"first", "second", "third", "fourth"}},
				{Method: "query", SQL: "INSERT INTO `schema`.`table` VALUES (?,?)", Bind: []any{"fifth", "sixth"}},
			})
		})

		Convey("空序列不执行任何语句", func() {
			_, err := NewIteratorImporter(table).WithLogger(log.Discard()).Import(ctx, slices.Values([][]any{}))
			So(err, ShouldBeNil)
			So(a.Calls(), ShouldBeEmpty)
		})

		Convey("批次大小非法", func() {
			_, err := NewIteratorImporterWithOptions(table, &IteratorImporterOptions{BatchSize: 0})
			So(errors.Is(err, rdb.ErrInvalidChunkSize), ShouldBeTrue)
		})

		Convey("某一批失败后停止", func() {
			count := 0
			a.OnQuery = func(sql string, bind []any) error {
				count++
				if count == 2 {
					return errors.New("duplicate entry")
				}
				return nil
			}
			importer, _ := NewIteratorImporterWithOptions(table, &IteratorImporterOptions{BatchSize: 1})
			importer.WithLogger(log.Discard())
			_, err := importer.Import(ctx, slices.Values(sequence(5)))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "duplicate entry")
			So(a.Calls(), ShouldHaveLength, 2)
		})
	})
}

func TestIteratorImporterSqlite(t *testing.T) {
	Convey("测试 sqlite 上的分批导入", t, func() {
		ctx := context.Background()
		a, err := adapter.NewSQLWithOptions(&adapter.SQLOptions{Driver: "sqlite3", Database: ":memory:", MaxConns: 1, MaxIdle: 1})
		So(err, ShouldBeNil)
		defer a.Close()

		_, err = a.Query(ctx, "CREATE TABLE users (id INTEGER, name TEXT)")
		So(err, ShouldBeNil)

		table := rdb.NewTableNode(a, "main", "users").SetColumns("id", "name")
		importer, err := NewIteratorImporterWithOptions(table, &IteratorImporterOptions{BatchSize: 7})
		So(err, ShouldBeNil)
		importer.WithLogger(log.Discard())

		_, err = importer.Import(ctx, slices.Values(sequence(30)))
		So(err, ShouldBeNil)

		count, err := a.FetchOne(ctx, "SELECT COUNT(*) FROM users")
		So(err, ShouldBeNil)
		So(count, ShouldEqual, int64(30))
		last, err := a.FetchOne(ctx, "SELECT name FROM users WHERE id = ?", 29)
		So(err, ShouldBeNil)
		So(last, ShouldEqual, "name-29")

		Convey("从行序列导入", func() {
			target := rdb.NewTableNode(a, "main", "copy").SetColumns("id", "name")
			_, err := a.Query(ctx, "CREATE TABLE copy (id INTEGER, name TEXT)")
			So(err, ShouldBeNil)

			// 单连接下不能边读边写，先读出全部行
			all, err := a.FetchAll(ctx, "SELECT name, id FROM users ORDER BY id")
			So(err, ShouldBeNil)
			var fetchErr error
			rows := Values(func(yield func(*rdb.Row, error) bool) {
				for _, row := range all {
					if !yield(row, nil) {
						return
					}
				}
			}, []string{"id", "name"}, &fetchErr)
			_, err = NewIteratorImporter(target).WithLogger(log.Discard()).Import(ctx, rows)
			So(err, ShouldBeNil)
			So(fetchErr, ShouldBeNil)

			name, _ := a.FetchOne(ctx, "SELECT name FROM copy WHERE id = 3")
			So(name, ShouldEqual, "name-3")
		})
	})
}

func TestRedshiftFileImporter(t *testing.T) {
	Convey("测试 RedshiftFileImporter", t, func() {
		ctx := context.Background()
		a := rdbtest.NewAdapter(dialect.NewRedshiftDialect())
		table := rdb.NewTableNode(a, "schema", "table")
		credentials := file.StaticCredentials{AccessKeyID: "key", SecretAccessKey: "secret"}

		importer, err := NewRedshiftFileImporter(table)
		So(err, ShouldBeNil)
		importer.WithLogger(log.Discard())

		Convey("非 redshift 表", func() {
			_, err := NewRedshiftFileImporter(rdb.NewTableNode(rdbtest.NewAdapter(dialect.NewMysqlDialect()), "schema", "table"))
			So(errors.Is(err, rdb.ErrUnsupportedDialect), ShouldBeTrue)
		})

		Convey("本地文件", func() {
			_, err := importer.Import(ctx, file.NewLocalFile("/tmp/data.json").WithFormat(file.NewJsonFormat()))
			So(errors.Is(err, rdb.ErrRequiresObjectStorage), ShouldBeTrue)
			So(a.Calls(), ShouldBeEmpty)
		})

		Convey("未声明格式", func() {
			_, err := importer.Import(ctx, file.NewS3File("bucket", "key", credentials))
			So(errors.Is(err, rdb.ErrRequiresDeclaredFormat), ShouldBeTrue)
		})

		Convey("格式不被 COPY 支持", func() {
			f := file.NewS3File("bucket", "key", credentials).WithFormat(&file.JsonFormat{FileType: file.JSONSingleBlock})
			_, err := importer.Import(ctx, f)
			So(errors.Is(err, rdb.ErrUnsupportedFormat), ShouldBeTrue)

			_, err = importer.Import(ctx, file.NewS3File("bucket", "key", credentials).WithFormat(file.NewMsgpackFormat()))
			So(errors.Is(err, rdb.ErrUnsupportedFormat), ShouldBeTrue)
		})

		Convey("json 文件", func() {
			f := file.NewS3File("bucket", "path/data.json", credentials).WithFormat(file.NewJsonFormat())
			got, err := importer.Import(ctx, f)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, table)

			calls := a.Calls()
			So(calls, ShouldHaveLength, 1)
			So(calls[0].SQL, ShouldStartWith, `COPY "schema"."table"`)
			So(calls[0].SQL, ShouldContainSubstring, "JSON AS 'auto'")
			So(calls[0].Bind[0], ShouldEqual, "s3://bucket/path/data.json")
			So(calls[0].Bind[1], ShouldEqual, "aws_access_key_id=key;aws_secret_access_key=secret")
		})

		Convey("csv 文件", func() {
			f := file.NewS3File("bucket", "data.csv", credentials).WithFormat(file.NewCsvFormat()).WithCompression(file.CompressionGzip)
			_, err := importer.Import(ctx, f)
			So(err, ShouldBeNil)

			calls := a.Calls()
			So(calls, ShouldHaveLength, 1)
			So(calls[0].SQL, ShouldContainSubstring, "CSV QUOTE AS ?")
			So(calls[0].SQL, ShouldContainSubstring, "TRUNCATECOLUMNS")
			So(calls[0].SQL, ShouldEndWith, "GZIP")
			So(calls[0].Bind[2], ShouldEqual, ",")
		})

		Convey("执行失败", func() {
			a.OnQuery = func(sql string, bind []any) error { return errors.New("S3ServiceException") }
			_, err := importer.Import(ctx, file.NewS3File("bucket", "key", credentials).WithFormat(file.NewJsonFormat()))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "S3ServiceException")
		})
	})
}
