package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/adapter"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func run(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestCommands(t *testing.T) {
	Convey("测试命令行", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		database := filepath.Join(dir, "test.db")

		db, err := adapter.NewSQLWithOptions(&adapter.SQLOptions{Driver: "sqlite3", Database: database, MaxConns: 1})
		So(err, ShouldBeNil)
		for _, ddl := range []string{
			"CREATE TABLE users (id INTEGER, name TEXT, deleted_at TEXT)",
			"CREATE TABLE archive (id INTEGER, name TEXT)",
		} {
			_, err := db.Query(ctx, ddl)
			So(err, ShouldBeNil)
		}
		So(db.Close(), ShouldBeNil)

		configFile := filepath.Join(dir, "datadb.yaml")
		So(os.WriteFile(configFile, []byte(strings.Join([]string{
			"logger:",
			"  type: SLog",
			"  options:",
			"    level: error",
			"adapter:",
			"  type: SQLAdapter",
			"  options:",
			"    driver: sqlite3",
			"    database: " + database,
			"batchSize: 2",
			"",
		}, "\n")), 0644), ShouldBeNil)

		input := filepath.Join(dir, "users.json")
		So(os.WriteFile(input, []byte("{\"id\":1,\"name\":\"alice\"}\n{\"id\":2,\"name\":\"bob\"}\n{\"id\":3,\"name\":\"carol\"}\n"), 0644), ShouldBeNil)

		_, err = run("--config", configFile, "import", input, "main.users", "--format", "json", "--columns", "id,name", "--transaction")
		So(err, ShouldBeNil)

		Convey("导出", func() {
			output := filepath.Join(dir, "out.csv")
			out, err := run("-c", configFile, "export", "main.users", "-o", output, "-f", "csv", "--columns", "id,name", "--where", "id > 1")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, output)
			b, err := os.ReadFile(output)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "\"2\",\"bob\"\n\"3\",\"carol\"\n")
		})

		Convey("拷贝", func() {
			out, err := run("-c", configFile, "copy", "main.users", "main.archive", "--columns", "id,name")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "3 rows affected")
		})

		Convey("删除", func() {
			out, err := run("-c", configFile, "delete", "main.users", "--where", "id = 1")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "1 rows affected")

			out, err = run("-c", configFile, "delete", "main.users", "--soft-deleted", "deleted_at", "--where", "id > 2")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "1 rows affected")
		})

		Convey("通过 dsn 指定连接", func() {
			out, err := run("--driver", "sqlite3", "--dsn", database, "copy", "main.users", "main.archive", "--columns", "id,name")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "3 rows affected")
		})

		Convey("导出到已存在的文件", func() {
			_, err := run("-c", configFile, "export", "main.users", "--native", "-o", input)
			So(err, ShouldNotBeNil)
			So(errors.Is(err, rdb.ErrDestinationExists), ShouldBeTrue)
		})

		Convey("参数错误", func() {
			_, err := run("exists", "main.users")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "no adapter configured")

			_, err = run("-c", configFile, "exists", "users")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "schema.table")

			_, err = run("-c", configFile, "delete", "main.users", "--join", "main.archive")
			So(err, ShouldNotBeNil)

			_, err = run("-c", configFile, "export", "main.users", "-o", "s3://bucket/key")
			So(errors.Is(err, rdb.ErrRequiresLocalFile), ShouldBeTrue)
		})
	})
}
