package adapter

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/dialect"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func newMockAdapter(t *testing.T, driver string) (*SQLAdapter, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	d, err := NewDialect("", driver, "")
	if err != nil {
		t.Fatal(err)
	}
	return NewSQLAdapter(db, driver, d), mock
}

func TestSQLAdapter(t *testing.T) {
	Convey("测试 SQLAdapter", t, func() {
		ctx := context.Background()
		a, mock := newMockAdapter(t, "mysql")
		So(a.Dialect().Name(), ShouldEqual, dialect.MysqlName)

		Convey("Query", func() {
			mock.ExpectExec("DELETE FROM `s`.`t`\nWHERE id > ?").WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 2))
			res, err := a.Query(ctx, "DELETE FROM `s`.`t`\nWHERE id > ?", 3)
			So(err, ShouldBeNil)
			n, _ := res.RowsAffected()
			So(n, ShouldEqual, 2)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("Query 失败", func() {
			mock.ExpectExec("DROP TABLE x").WillReturnError(errors.New("denied"))
			_, err := a.Query(ctx, "DROP TABLE x")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "denied")
		})

		Convey("Fetch 惰性读取，[]byte 转为字符串", func() {
			mock.ExpectQuery("DESCRIBE `s`.`t`").WillReturnRows(
				sqlmock.NewRows([]string{"Field", "Type", "Null", "Key"}).
					AddRow([]byte("id"), "int(11)", "NO", "PRI").
					AddRow("name", "varchar(64)", "YES", ""),
			)
			var fields []any
			for row, err := range a.Fetch(ctx, "DESCRIBE `s`.`t`") {
				So(err, ShouldBeNil)
				v, _ := row.Get("Field")
				fields = append(fields, v)
			}
			So(fields, ShouldResemble, []any{"id", "name"})
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("Fetch 提前退出关闭结果集", func() {
			mock.ExpectQuery("SELECT * FROM `s`.`t`").WillReturnRows(
				sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3),
			).RowsWillBeClosed()
			for row := range a.Fetch(ctx, "SELECT * FROM `s`.`t`") {
				So(row.Int("id"), ShouldEqual, 1)
				break
			}
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("Fetch 扫描出错", func() {
			mock.ExpectQuery("SELECT 1").WillReturnRows(
				sqlmock.NewRows([]string{"a"}).AddRow(1).AddRow(2).RowError(1, errors.New("broken pipe")),
			)
			rows, err := a.FetchAll(ctx, "SELECT 1")
			So(rows, ShouldBeNil)
			So(err, ShouldNotBeNil)
		})

		Convey("FetchRow 和 FetchOne", func() {
			mock.ExpectQuery("SHOW CREATE TABLE `s`.`t`").WillReturnRows(
				sqlmock.NewRows([]string{"Table", "Create Table"}).AddRow("t", "CREATE TABLE `t` ()"),
			)
			row, err := a.FetchRow(ctx, "SHOW CREATE TABLE `s`.`t`")
			So(err, ShouldBeNil)
			So(row.String("Create Table"), ShouldEqual, "CREATE TABLE `t` ()")

			mock.ExpectQuery("SELECT table_name FROM x").WillReturnRows(sqlmock.NewRows([]string{"table_name"}))
			v, err := a.FetchOne(ctx, "SELECT table_name FROM x")
			So(err, ShouldBeNil)
			So(v, ShouldBeNil)
		})

		Convey("事务", func() {
			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO t VALUES (?)").WithArgs(1).WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectCommit()

			So(a.Begin(ctx), ShouldBeNil)
			So(a.Begin(ctx), ShouldNotBeNil)
			_, err := a.Query(ctx, "INSERT INTO t VALUES (?)", 1)
			So(err, ShouldBeNil)
			So(a.Commit(), ShouldBeNil)
			So(a.Commit(), ShouldNotBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("回滚", func() {
			mock.ExpectBegin()
			mock.ExpectRollback()
			So(a.Begin(ctx), ShouldBeNil)
			So(a.Rollback(), ShouldBeNil)
			So(a.Rollback(), ShouldNotBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})
	})
}

func TestSQLAdapterRebind(t *testing.T) {
	Convey("测试 pgx 驱动的占位符改写", t, func() {
		ctx := context.Background()
		a, mock := newMockAdapter(t, "pgx")
		So(a.Dialect().Name(), ShouldEqual, dialect.RedshiftName)

		mock.ExpectQuery("SELECT *\nFROM pg_table_def\nWHERE schemaname = $1\n  AND tablename = $2").
			WithArgs("s", "t").
			WillReturnRows(sqlmock.NewRows([]string{"column"}).AddRow("id"))
		rows, err := a.FetchAll(ctx, "SELECT *\nFROM pg_table_def\nWHERE schemaname = ?\n  AND tablename = ?", "s", "t")
		So(err, ShouldBeNil)
		So(rows, ShouldHaveLength, 1)
		So(mock.ExpectationsWereMet(), ShouldBeNil)
	})
}

func TestSQLAdapterUtilityStatement(t *testing.T) {
	Convey("测试 COPY/UNLOAD 在 pgx 驱动上内联参数", t, func() {
		ctx := context.Background()
		a, mock := newMockAdapter(t, "pgx")

		Convey("COPY 参数写进 sql 文本", func() {
			query := "COPY \"s\".\"t\"\nFROM ?\nWITH CREDENTIALS AS ?\nMAXERROR AS ?"
			bind := []any{"s3://b/k", "aws_access_key_id=x;aws_secret_access_key=y", 0}
			want := "COPY \"s\".\"t\"\nFROM 's3://b/k'\nWITH CREDENTIALS AS 'aws_access_key_id=x;aws_secret_access_key=y'\nMAXERROR AS 0"

			sql, args, err := a.statement(query, bind)
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, want)
			So(args, ShouldBeNil)

			mock.ExpectExec(want).WillReturnResult(sqlmock.NewResult(0, 0))
			_, err = a.Query(ctx, query, bind...)
			So(err, ShouldBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("UNLOAD 子查询里的引号被转义", func() {
			query := "UNLOAD\n(?)\nTO ?\nDELIMITER ?\nNULL AS ?"
			bind := []any{"SELECT * FROM t WHERE note = 'it''s'", "s3://b/k/", ",", "NULL"}
			want := "UNLOAD\n('SELECT * FROM t WHERE note = ''it''''s''')\nTO 's3://b/k/'\nDELIMITER ','\nNULL AS 'NULL'"

			sql, args, err := a.statement(query, bind)
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, want)
			So(args, ShouldBeNil)

			mock.ExpectExec(want).WillReturnResult(sqlmock.NewResult(0, 0))
			_, err = a.Query(ctx, query, bind...)
			So(err, ShouldBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("引号内的问号不是占位符", func() {
			sql, _, err := a.statement("copy t from ? delimiter '?'", []any{"s3://b/k"})
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "copy t from 's3://b/k' delimiter '?'")
		})

		Convey("参数数量不一致", func() {
			_, _, err := a.statement("COPY t FROM ? CREDENTIALS ?", []any{"s3://b/k"})
			So(errors.Is(err, rdb.ErrBindMismatch), ShouldBeTrue)
			_, _, err = a.statement("COPY t FROM ?", []any{"s3://b/k", "extra"})
			So(errors.Is(err, rdb.ErrBindMismatch), ShouldBeTrue)
		})

		Convey("普通语句仍然改写成 $n", func() {
			sql, args, err := a.statement("DELETE FROM t WHERE id = ?", []any{1})
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "DELETE FROM t WHERE id = $1")
			So(args, ShouldResemble, []any{1})
		})

		Convey("mysql 驱动不内联", func() {
			m, _ := newMockAdapter(t, "mysql")
			sql, args, err := m.statement("COPY t FROM ?", []any{"x"})
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "COPY t FROM ?")
			So(args, ShouldResemble, []any{"x"})
		})

		Convey("识别语句类型", func() {
			So(isUtilityStatement("  (unload ('select 1') to 's3://b')"), ShouldBeTrue)
			So(isUtilityStatement("\nCopy t FROM 's3://b'"), ShouldBeTrue)
			So(isUtilityStatement("SELECT 'COPY'"), ShouldBeFalse)
			So(isUtilityStatement("CO"), ShouldBeFalse)
		})
	})
}

func TestRebind(t *testing.T) {
	Convey("测试 rebind", t, func() {
		So(rebind("SELECT 1"), ShouldEqual, "SELECT 1")
		So(rebind("a = ? AND b = ?"), ShouldEqual, "a = $1 AND b = $2")
		So(rebind("a = '?' AND \"b?\" = ? AND c = ?"), ShouldEqual, "a = '?' AND \"b?\" = $1 AND c = $2")
		So(rebind("?"+strings.Repeat(",?", 10)), ShouldEqual, "$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11")
	})
}

func TestQuoteValue(t *testing.T) {
	Convey("测试 QuoteValue", t, func() {
		ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		cases := []struct {
			driver string
			value  any
			want   string
		}{
			{"mysql", "it's", `'it\'s'`},
			{"mysql", "a\\b\nc", `'a\\b\nc'`},
			{"pgx", "it's", `'it''s'`},
			{"pgx", `a\b`, ` E'a\\b'`},
			{"postgres", ts, `'2024-01-02 03:04:05'`},
			{"sqlite3", "it's", `'it''s'`},
			{"sqlite3", nil, "NULL"},
			{"sqlite3", 42, "42"},
			{"sqlite3", 1.5, "1.5"},
			{"sqlite3", true, "TRUE"},
			{"sqlite3", []byte("x"), "'x'"},
		}
		for _, c := range cases {
			a, _ := newMockAdapter(t, c.driver)
			quoted, err := a.QuoteValue(c.value)
			So(err, ShouldBeNil)
			So(quoted, ShouldEqual, c.want)
		}

		a, _ := newMockAdapter(t, "mysql")
		_, err := a.QuoteValue(struct{}{})
		So(err, ShouldNotBeNil)
	})
}

func TestBuildDSN(t *testing.T) {
	Convey("测试 DSN 拼接", t, func() {
		dsn, err := buildDSN(&SQLOptions{Driver: "mysql", Host: "db", Username: "u", Password: "p", Database: "app", Charset: "utf8mb4"})
		So(err, ShouldBeNil)
		So(dsn, ShouldStartWith, "u:p@tcp(db:3306)/app?")
		So(dsn, ShouldContainSubstring, "parseTime=true")
		So(dsn, ShouldContainSubstring, "charset=utf8mb4")

		dsn, _ = buildDSN(&SQLOptions{Driver: "pgx", Host: "cluster", Port: "5439", Username: "u", Password: "p", Database: "dev"})
		So(dsn, ShouldEqual, "postgres://u:p@cluster:5439/dev")

		dsn, _ = buildDSN(&SQLOptions{Driver: "sqlite3", Database: ":memory:"})
		So(dsn, ShouldEqual, ":memory:")

		dsn, _ = buildDSN(&SQLOptions{Driver: "mysql", DSN: "raw"})
		So(dsn, ShouldEqual, "raw")

		_, err = buildDSN(&SQLOptions{Driver: "oracle"})
		So(err, ShouldNotBeNil)
	})
}

func TestNewDialect(t *testing.T) {
	Convey("测试 NewDialect", t, func() {
		d, err := NewDialect("", "sqlite3", "")
		So(err, ShouldBeNil)
		So(d.Name(), ShouldEqual, dialect.MysqlName)

		d, err = NewDialect("redshift", "mysql", "UTC")
		So(err, ShouldBeNil)
		So(d.(*dialect.RedshiftDialect).Timezone(), ShouldEqual, "UTC")

		_, err = NewDialect("oracle", "", "")
		So(errors.Is(err, rdb.ErrUnsupportedDialect), ShouldBeTrue)
	})
}
