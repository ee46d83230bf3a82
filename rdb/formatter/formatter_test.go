package formatter

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

type testObject struct {
	fields map[string]any
}

func (o *testObject) NamedField(name string) (any, error) {
	v, ok := o.fields[name]
	if !ok {
		return nil, errors.Errorf("no field %s", name)
	}
	return v, nil
}

func TestSyntaxFormatter_Format(t *testing.T) {
	Convey("测试 SyntaxFormatter.Format", t, func() {
		f := NewSyntaxFormatter()

		Convey("默认引用符为双引号", func() {
			So(f.IdentifierQuote(), ShouldEqual, `"`)
		})

		Convey("参数不存在时原样返回", func() {
			syntax := "select {stuff} from {table}"
			out, err := f.Format(syntax, nil)
			So(err, ShouldBeNil)
			So(out, ShouldEqual, syntax)
		})

		Convey("参数不存在时带 |q 的占位符也原样返回", func() {
			out, err := f.Format("select {stuff|q}", map[string]any{"other": "x"})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "select {stuff|q}")
		})

		Convey("参数为 nil 视为不存在", func() {
			out, err := f.Format("select {stuff}", map[string]any{"stuff": nil})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "select {stuff}")
		})

		Convey("简单替换", func() {
			out, err := f.Format("select {stuff} from {table}", map[string]any{
				"stuff": "*",
				"table": "table",
			})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "select * from table")
		})

		Convey("非字符串标量", func() {
			out, err := f.Format("limit {n}", map[string]any{"n": 10})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "limit 10")
		})

		Convey("标量忽略字段限定", func() {
			out, err := f.Format("select {stuff:name}", map[string]any{"stuff": "x"})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "select x")
		})

		Convey("紧贴额外花括号的占位符不替换", func() {
			out, err := f.Format("select {{stuff} from {stuff}} where {stuff}", map[string]any{"stuff": "cake"})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "select {{stuff} from {stuff}} where cake")
		})

		Convey("对象字段取值", func() {
			obj := &testObject{fields: map[string]any{"name": "foo"}}
			out, err := f.Format("select * from {table:name}", map[string]any{"table": obj})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "select * from foo")
		})

		Convey("map 字段取值", func() {
			out, err := f.Format("select * from {foo:name}", map[string]any{"foo": map[string]any{"name": "value"}})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "select * from value")

			out, err = f.Format("select * from {foo:name}", map[string]any{"foo": map[string]string{"name": "value"}})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "select * from value")
		})

		Convey("引用字面量", func() {
			out, err := f.Format("select * from {name|q}", map[string]any{"name": "table"})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, `select * from "table"`)
		})

		Convey("引用对象字段", func() {
			obj := &testObject{fields: map[string]any{"name": "foo"}}
			out, err := f.Format("select * from {mock:name|q}", map[string]any{"mock": obj})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, `select * from "foo"`)
		})

		Convey("引用 map 字段", func() {
			out, err := f.Format("select * from {foo:name|q}", map[string]any{"foo": map[string]any{"name": "bar"}})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, `select * from "bar"`)
		})

		Convey("自定义引用符并加倍内部引用符", func() {
			f.SetIdentifierQuote("`")
			out, err := f.Format("select {col|q} from {table|q}", map[string]any{"col": "col`name", "table": "table"})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "select `col``name` from `table`")
		})

		Convey("双引号内部加倍", func() {
			out, err := f.Format("{x|q}", map[string]any{"x": `a"b"c`})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, `"a""b""c"`)
		})

		Convey("对象没有字段限定", func() {
			_, err := f.Format("select {obj}", map[string]any{"obj": &testObject{}})
			So(errors.Is(err, ErrMissingFieldSpecifier), ShouldBeTrue)
		})

		Convey("map 没有字段限定", func() {
			_, err := f.Format("select {arr}", map[string]any{"arr": map[string]any{}})
			So(errors.Is(err, ErrMissingFieldSpecifier), ShouldBeTrue)
		})

		Convey("对象字段不存在", func() {
			_, err := f.Format("select {obj:name}", map[string]any{"obj": &testObject{}})
			So(errors.Is(err, ErrInvalidLookup), ShouldBeTrue)
		})

		Convey("map 缺少键", func() {
			_, err := f.Format("select {arr:name}", map[string]any{"arr": map[string]any{}})
			So(errors.Is(err, ErrInvalidLookup), ShouldBeTrue)
		})

		Convey("对象字段为空值", func() {
			for _, v := range []any{nil, "", false, 0} {
				obj := &testObject{fields: map[string]any{"name": v}}
				_, err := f.Format("select {obj:name}", map[string]any{"obj": obj})
				So(errors.Is(err, ErrInvalidLookup), ShouldBeTrue)
			}
		})

		Convey("切片按下标取值", func() {
			out, err := f.Format("select {cols:1|q}", map[string]any{"cols": []string{"id", "name"}})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, `select "name"`)

			out, err = f.Format("select {raw}", map[string]any{"raw": []byte("id")})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "select id")
		})

		Convey("切片不能按名字取值", func() {
			for _, v := range []any{[]string{"p"}, [1]string{"p"}} {
				_, err := f.Format("{x:y}", map[string]any{"x": v})
				So(errors.Is(err, ErrInvalidLookup), ShouldBeTrue)
			}
			_, err := f.Format("{x:3}", map[string]any{"x": []string{"p"}})
			So(errors.Is(err, ErrInvalidLookup), ShouldBeTrue)
			_, err = f.Format("{x:0}", map[string]any{"x": []string{""}})
			So(errors.Is(err, ErrInvalidLookup), ShouldBeTrue)
		})

		Convey("切片没有下标", func() {
			_, err := f.Format("select {x}", map[string]any{"x": []string{"p"}})
			So(errors.Is(err, ErrMissingFieldSpecifier), ShouldBeTrue)
		})

		Convey("map 值为空", func() {
			_, err := f.Format("select {arr:name}", map[string]any{"arr": map[string]any{"name": nil}})
			So(errors.Is(err, ErrInvalidLookup), ShouldBeTrue)
		})
	})
}

func TestNewSyntaxFormatterWithOptions(t *testing.T) {
	Convey("测试 NewSyntaxFormatterWithOptions", t, func() {
		_, err := NewSyntaxFormatterWithOptions(nil)
		So(err, ShouldNotBeNil)

		f, err := NewSyntaxFormatterWithOptions(&SyntaxFormatterOptions{IdentifierQuote: "`"})
		So(err, ShouldBeNil)
		So(f.QuoteIdentifier("a"), ShouldEqual, "`a`")

		f, err = NewSyntaxFormatterWithOptions(&SyntaxFormatterOptions{})
		So(err, ShouldBeNil)
		So(f.QuoteIdentifier("a"), ShouldEqual, `"a"`)
	})
}
