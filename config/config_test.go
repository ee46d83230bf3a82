package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type adapterOptions struct {
	Driver   string        `cfg:"driver" def:"mysql" validate:"oneof=mysql sqlite3 pgx"`
	Host     string        `cfg:"host" def:"localhost"`
	Port     int           `cfg:"port" def:"3306"`
	Timeout  time.Duration `cfg:"timeout" def:"5s"`
	Tables   []string      `cfg:"tables"`
	Labels   map[string]string
	Logger   *typeOptions `cfg:"logger"`
	Database string       `cfg:"database" validate:"required"`
}

type typeOptions struct {
	Type    string `cfg:"type"`
	Options any    `cfg:"options"`
}

func writeConfig(t *testing.T, name string, content string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("测试 Load", t, func() {
		cases := map[string]string{
			"datadb.json": `{"driver": "sqlite3", "port": 13306, "database": "app", "tables": ["a", "b"], "labels": {"env": "test"}, "logger": {"type": "SLog", "options": {"level": "debug"}}}`,
			"datadb.yaml": "driver: sqlite3\nport: 13306\ndatabase: app\ntables: [a, b]\nlabels:\n  env: test\nlogger:\n  type: SLog\n  options:\n    level: debug\n",
			"datadb.toml": "driver = \"sqlite3\"\nport = 13306\ndatabase = \"app\"\ntables = [\"a\", \"b\"]\n[labels]\nenv = \"test\"\n[logger]\ntype = \"SLog\"\n[logger.options]\nlevel = \"debug\"\n",
			"datadb.ini":  "driver = sqlite3\nport = 13306\ndatabase = app\ntables = a,b\n[labels]\nenv = test\n[logger]\ntype = SLog\n[logger.options]\nlevel = debug\n",
		}
		for name, content := range cases {
			Convey(name, func() {
				var options adapterOptions
				So(Load(writeConfig(t, name, content), &options), ShouldBeNil)
				So(options.Driver, ShouldEqual, "sqlite3")
				So(options.Host, ShouldEqual, "localhost")
				So(options.Port, ShouldEqual, 13306)
				So(options.Timeout, ShouldEqual, 5*time.Second)
				So(options.Tables, ShouldResemble, []string{"a", "b"})
				So(options.Labels, ShouldResemble, map[string]string{"env": "test"})
				So(options.Logger.Type, ShouldEqual, "SLog")
				So(options.Logger.Options, ShouldNotBeNil)
				So(options.Database, ShouldEqual, "app")
			})
		}

		Convey("校验失败", func() {
			var options adapterOptions
			err := Load(writeConfig(t, "bad.yaml", "driver: oracle\ndatabase: app\n"), &options)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "driver")
		})

		Convey("不支持的扩展名", func() {
			var options adapterOptions
			So(Load(writeConfig(t, "datadb.xml", "<x/>"), &options), ShouldNotBeNil)
		})

		Convey("文件不存在", func() {
			var options adapterOptions
			So(Load(filepath.Join(t.TempDir(), "missing.json"), &options), ShouldNotBeNil)
		})
	})
}

func TestDecode(t *testing.T) {
	Convey("测试 Decode", t, func() {
		Convey("字段名忽略大小写，未知键被忽略", func() {
			var options adapterOptions
			So(Decode(map[string]any{"DRIVER": "pgx", "unknown": 1, "timeout": "1m"}, &options), ShouldBeNil)
			So(options.Driver, ShouldEqual, "pgx")
			So(options.Timeout, ShouldEqual, time.Minute)
		})

		Convey("类型不匹配", func() {
			var options adapterOptions
			So(Decode(map[string]any{"port": "not-a-number"}, &options), ShouldNotBeNil)
			So(Decode(map[string]any{"tables": 1}, &options), ShouldNotBeNil)
			So(Decode("x", &options), ShouldNotBeNil)
		})

		Convey("非指针", func() {
			So(Decode(map[string]any{}, adapterOptions{}), ShouldNotBeNil)
			So(Decode(map[string]any{}, nil), ShouldNotBeNil)
		})
	})
}

func TestSetDefaults(t *testing.T) {
	Convey("测试 SetDefaults", t, func() {
		options := adapterOptions{Port: 1}
		So(SetDefaults(&options), ShouldBeNil)
		So(options.Driver, ShouldEqual, "mysql")
		So(options.Port, ShouldEqual, 1)
		So(options.Logger, ShouldBeNil)

		type bad struct {
			Port int `def:"abc"`
		}
		So(SetDefaults(&bad{}), ShouldNotBeNil)
	})
}
