package dialect

import (
	"strings"
	"testing"

	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/formatter"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func trimmed(sql string, bind []any, err error) (string, []any, error) {
	return strings.TrimSpace(sql), bind, err
}

func TestMysqlDialect(t *testing.T) {
	Convey("测试 MysqlDialect", t, func() {
		d := NewMysqlDialect()
		table := rdb.NewTableNode(nil, "schema", "table")

		So(d.Name(), ShouldEqual, "mysql")
		So(d.IdentifierQuote(), ShouldEqual, "`")

		Convey("select 指定列", func() {
			sql, bind, err := d.SelectSyntax(table.SetColumns("col1", "col2"))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "SELECT `col1`,`col2` FROM `schema`.`table`")
			So(bind, ShouldBeEmpty)
		})

		Convey("select 全部列", func() {
			sql, _, err := d.SelectSyntax(table)
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "SELECT * FROM `schema`.`table`")
		})

		Convey("select 带 where 的源表", func() {
			source := rdb.NewSourceTableNode(nil, "schema", "table").SetWhere("a = 1 OR b = 2")
			sql, _, err := d.SelectSyntax(source)
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "SELECT * FROM `schema`.`table` WHERE (a = 1 OR b = 2)")

			source.SetWhere("")
			sql, _, _ = d.SelectSyntax(source)
			So(sql, ShouldEqual, "SELECT * FROM `schema`.`table`")
		})

		Convey("insert 多行", func() {
			sql, bind, err := d.InsertSyntax(table, [][]any{{"a", "b", "c", "d"}, {"e", "f", "g", "h"}})
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "INSERT INTO `schema`.`table` VALUES (?,?,?,?),(?,?,?,?)")
			So(bind, ShouldResemble, []any{"a", "b", "c", "d", "e", "f", "g", "h"})

			sql, bind, err = d.InsertSyntax(table.SetColumns("x", "y"), [][]any{{1, 2}})
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "INSERT INTO `schema`.`table` (`x`,`y`) VALUES (?,?)")
			So(bind, ShouldResemble, []any{1, 2})

			_, _, err = d.InsertSyntax(table, nil)
			So(err, ShouldNotBeNil)
		})

		Convey("create table like", func() {
			sql, bind, err := d.CreateTableLike(table, rdb.NewTableNode(nil, "schema", "new"))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "CREATE TABLE `schema`.`new` LIKE `schema`.`table`")
			So(bind, ShouldBeEmpty)
		})

		Convey("drop column", func() {
			sql, _, err := d.DropColumn(table, "col`1")
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "ALTER TABLE `schema`.`table` DROP COLUMN `col``1`")
		})

		Convey("表是否存在", func() {
			sql, bind, err := trimmed(d.DoesTableExist(table))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "SELECT table_name\nFROM information_schema.tables\nWHERE table_schema = ?\n  AND table_name = ?")
			So(bind, ShouldResemble, []any{"schema", "table"})
		})

		Convey("delete from table", func() {
			sql, _, err := trimmed(d.DeleteFromTable(table, ""))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "DELETE FROM `schema`.`table`")

			sql, _, err = trimmed(d.DeleteFromTable(table, "id > 3"))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "DELETE FROM `schema`.`table`\nWHERE id > 3")
		})

		Convey("软删除", func() {
			table.SetSoftDeleted("deleted_at")
			sql, _, err := trimmed(d.DeleteFromTableSoftDelete(table, "id > 3"))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "UPDATE `schema`.`table`\nSET\n `deleted_at` = CURRENT_TIMESTAMP\nWHERE id > 3")

			table.SetSoftUpdated("updated_at")
			sql, _, err = trimmed(d.DeleteFromTableSoftDelete(table, ""))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "UPDATE `schema`.`table`\nSET `updated_at` = CURRENT_TIMESTAMP,\n `deleted_at` = CURRENT_TIMESTAMP")
		})

		Convey("关联删除", func() {
			join := rdb.NewTableNode(nil, "schema", "join")
			sql, _, err := trimmed(d.DeleteTableJoin(table, join, "`table`.`id` = `join`.`id`", ""))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "DELETE `schema`.`table`\nFROM `schema`.`table`\nJOIN `schema`.`join`\nON `table`.`id` = `join`.`id`")

			sql, _, err = trimmed(d.DeleteTableJoin(table, join, "a = b", "c = 1"))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "DELETE `schema`.`table`\nFROM `schema`.`table`\nJOIN `schema`.`join`\nON a = b\nWHERE c = 1")

			table.SetSoftDeleted("deleted").SetSoftUpdated("updated")
			sql, _, err = trimmed(d.DeleteTableJoinSoftDelete(table, join, "a = b", "c = 1"))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "UPDATE `schema`.`table`\nJOIN `schema`.`join`\nON a = b\nSET `updated` = CURRENT_TIMESTAMP,\n `deleted` = CURRENT_TIMESTAMP\nWHERE c = 1")
		})

		Convey("copy table", func() {
			to := rdb.NewTableNode(nil, "schema", "to")
			sql, _, err := d.CopyTable(table, to)
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "INSERT INTO `schema`.`to`\nSELECT * FROM `schema`.`table`")

			sql, _, err = d.CopyTable(table.SetColumns("a", "b"), to.SetColumns("c", "d"))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "INSERT INTO `schema`.`to` (`c`,`d`)\nSELECT `a`,`b` FROM `schema`.`table`")
		})

		Convey("create table", func() {
			id := rdb.ColumnSpec{Column: "id", Type: "int(11)", Primary: true}
			name := rdb.ColumnSpec{Column: "name", Type: "varchar(255)", Nullable: true, Index: true}

			def, err := d.ColumnDefinition(id)
			So(err, ShouldBeNil)
			So(def, ShouldEqual, "`id` int(11) NOT NULL")
			def2, _ := d.ColumnDefinition(name)
			So(def2, ShouldEqual, "`name` varchar(255) NULL")
			pk, _ := d.PrimaryKeyDefinition(id)
			So(pk, ShouldEqual, "PRIMARY KEY (`id`)")
			idx, _ := d.IndexDefinition(name)
			So(idx, ShouldEqual, "KEY `name` (`name`)")

			sql, bind, err := d.CreateTable(table, []string{def, def2}, []string{pk}, []string{idx})
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "CREATE TABLE `schema`.`table` (\n  `id` int(11) NOT NULL,\n  `name` varchar(255) NULL,\n  PRIMARY KEY (`id`),\n  KEY `name` (`name`)\n)")
			So(bind, ShouldBeEmpty)

			_, err = d.ColumnDefinition(rdb.ColumnSpec{Column: "x"})
			So(errors.Is(err, formatter.ErrInvalidLookup), ShouldBeTrue)
		})

		Convey("describe 和建表语句", func() {
			sql, _, err := d.DescribeTable(table)
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "DESCRIBE `schema`.`table`")

			sql, _, err = d.CreateSyntax(table)
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "SHOW CREATE TABLE `schema`.`table`")
		})

		Convey("缺少 schema", func() {
			_, _, err := d.SelectSyntax(rdb.NewTableNode(nil, "", "table"))
			So(errors.Is(err, formatter.ErrInvalidLookup), ShouldBeTrue)
		})

		Convey("共享 formatter 时改为反引号", func() {
			f := formatter.NewSyntaxFormatter()
			d := NewMysqlDialectWithFormatter(f)
			So(f.IdentifierQuote(), ShouldEqual, "`")
			So(d.Formatter(), ShouldEqual, f)
		})
	})
}
