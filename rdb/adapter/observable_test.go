package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hatlonely/datadb/log"
	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/dialect"
	"github.com/hatlonely/datadb/rdb/rdbtest"
	"github.com/hatlonely/datadb/ref"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestObservableAdapter(t *testing.T) {
	Convey("测试 ObservableAdapter", t, func() {
		ctx := context.Background()
		inner := rdbtest.NewAdapter(dialect.NewMysqlDialect())
		registry := prometheus.NewRegistry()
		logPath := filepath.Join(t.TempDir(), "adapter.log")

		obs, err := NewObservableAdapter(inner, &ObservableOptions{
			Name:          "test_rdb",
			EnableMetrics: true,
			EnableLogging: true,
			EnableTracing: true,
			Logger: &ref.TypeOptions{
				Namespace: log.LoggerNamespace,
				Type:      "SLog",
				Options: map[string]any{
					"level":  "debug",
					"output": map[string]any{"namespace": log.WriterNamespace, "type": "FileWriter", "options": map[string]any{"path": logPath}},
				},
			},
		}, registry)
		So(err, ShouldBeNil)
		So(obs.Unwrap(), ShouldEqual, inner)
		So(obs.Dialect(), ShouldEqual, inner.Dialect())

		Convey("成功和失败都被计数", func() {
			_, err := obs.Query(ctx, "DELETE FROM t")
			So(err, ShouldBeNil)
			inner.OnQuery = func(sql string, bind []any) error { return errors.New("deadlock") }
			_, err = obs.Query(ctx, "DELETE FROM t")
			So(err, ShouldNotBeNil)

			So(testutil.ToFloat64(obs.metrics.operations.WithLabelValues("query", "success")), ShouldEqual, 1)
			So(testutil.ToFloat64(obs.metrics.operations.WithLabelValues("query", "error")), ShouldEqual, 1)
			So(testutil.ToFloat64(obs.metrics.active.WithLabelValues("query")), ShouldEqual, 0)

			data, err := os.ReadFile(logPath)
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, "adapter operation failed")
			So(string(data), ShouldContainSubstring, "deadlock")
		})

		Convey("Fetch 统计遍历过的行数", func() {
			inner.OnFetch = func(sql string, bind []any) ([]*rdb.Row, error) {
				return []*rdb.Row{
					rdb.NewRow([]string{"id"}, []any{1}),
					rdb.NewRow([]string{"id"}, []any{2}),
					rdb.NewRow([]string{"id"}, []any{3}),
				}, nil
			}
			for row, err := range obs.Fetch(ctx, "SELECT id FROM t") {
				So(err, ShouldBeNil)
				if row.Int("id") == 2 {
					break
				}
			}
			So(testutil.ToFloat64(obs.metrics.rows.WithLabelValues("fetch")), ShouldEqual, 2)
			So(testutil.ToFloat64(obs.metrics.operations.WithLabelValues("fetch", "success")), ShouldEqual, 1)

			rows, err := obs.FetchAll(ctx, "SELECT id FROM t")
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 3)
			So(testutil.ToFloat64(obs.metrics.rows.WithLabelValues("fetchAll")), ShouldEqual, 3)

			row, err := obs.FetchRow(ctx, "SELECT id FROM t")
			So(err, ShouldBeNil)
			So(row.Int("id"), ShouldEqual, 1)
			v, err := obs.FetchOne(ctx, "SELECT id FROM t")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 1)
		})

		Convey("事务透传", func() {
			So(obs.Begin(ctx), ShouldBeNil)
			So(inner.InTransaction(), ShouldBeTrue)
			So(obs.Commit(), ShouldBeNil)
			So(obs.Begin(ctx), ShouldBeNil)
			So(obs.Rollback(), ShouldBeNil)
			So(inner.InTransaction(), ShouldBeFalse)
			So(testutil.ToFloat64(obs.metrics.operations.WithLabelValues("begin", "success")), ShouldEqual, 2)
		})

		Convey("同名指标重复注册时复用", func() {
			again, err := NewObservableAdapter(inner, &ObservableOptions{Name: "test_rdb", EnableMetrics: true}, registry)
			So(err, ShouldBeNil)
			So(again.metrics.operations, ShouldEqual, obs.metrics.operations)
		})

		Convey("QuoteValue 不计入指标", func() {
			q, err := obs.QuoteValue("a'b")
			So(err, ShouldBeNil)
			So(q, ShouldEqual, "'a''b'")
		})
	})

	Convey("测试通过配置创建 ObservableAdapter", t, func() {
		a, err := NewAdapterWithOptions(&ref.TypeOptions{
			Type: "ObservableAdapter",
			Options: map[string]any{
				"name":          "config_rdb",
				"adapter": map[string]any{
					"type":    "SQLAdapter",
					"options": map[string]any{"driver": "sqlite3", "database": ":memory:", "maxConns": 1},
				},
			},
		})
		So(err, ShouldBeNil)
		v, err := a.FetchOne(context.Background(), "SELECT 1")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, int64(1))

		_, err = NewObservableWithOptions(&ObservableOptions{})
		So(err, ShouldNotBeNil)
	})
}
