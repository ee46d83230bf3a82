package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hatlonely/datadb/ref"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewLoggerWithOptions(t *testing.T) {
	Convey("测试 NewLoggerWithOptions", t, func() {
		Convey("未配置时使用默认日志器", func() {
			l, err := NewLoggerWithOptions(nil)
			So(err, ShouldBeNil)
			So(l, ShouldEqual, Default())
		})

		Convey("通过配置树输出到文件", func() {
			path := filepath.Join(t.TempDir(), "datadb.log")
			l, err := NewLoggerWithOptions(&ref.TypeOptions{
				Type: "SLog",
				Options: map[string]any{
					"level":  "debug",
					"format": "json",
					"output": map[string]any{
						"namespace": WriterNamespace,
						"type":      "FileWriter",
						"options":   map[string]any{"path": path},
					},
				},
			})
			So(err, ShouldBeNil)
			l.Debug("dropping columns", "table", "s.t")

			data, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, `"table":"s.t"`)
		})

		Convey("未注册的类型", func() {
			_, err := NewLoggerWithOptions(&ref.TypeOptions{Type: "Zap"})
			So(err, ShouldNotBeNil)
		})

		Convey("非法级别在校验阶段失败", func() {
			_, err := NewLoggerWithOptions(&ref.TypeOptions{Type: "SLog", Options: map[string]any{"level": "trace"}})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestSetDefault(t *testing.T) {
	Convey("测试 SetDefault", t, func() {
		old := Default()
		defer SetDefault(old)

		d := Discard()
		SetDefault(d)
		So(Default(), ShouldEqual, d)
	})
}
