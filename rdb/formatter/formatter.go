package formatter

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const DefaultIdentifierQuote = `"`

var (
	ErrMissingFieldSpecifier = errors.New("missing field specifier")
	ErrInvalidLookup         = errors.New("invalid lookup")
)

// FieldGetter 可以按字段名被模板取值的对象
type FieldGetter interface {
	NamedField(name string) (any, error)
}

// {name} {name:field} {name|q} {name:field|q}
var placeholderRegex = regexp.MustCompile(`(?i)\{(\w+)(?::(\w+))?(\|q)?\}`)

type SyntaxFormatterOptions struct {
	IdentifierQuote string `cfg:"identifierQuote" def:"\""`
}

// SyntaxFormatter SQL 模板替换
//
// 参数不存在时占位符原样保留，不做引用；前后紧贴额外花括号的占位符不会被替换
type SyntaxFormatter struct {
	identifierQuote string
}

func NewSyntaxFormatter() *SyntaxFormatter {
	return &SyntaxFormatter{identifierQuote: DefaultIdentifierQuote}
}

func NewSyntaxFormatterWithOptions(options *SyntaxFormatterOptions) (*SyntaxFormatter, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	f := NewSyntaxFormatter()
	if options.IdentifierQuote != "" {
		f.identifierQuote = options.IdentifierQuote
	}
	return f, nil
}

func (f *SyntaxFormatter) SetIdentifierQuote(quote string) *SyntaxFormatter {
	f.identifierQuote = quote
	return f
}

func (f *SyntaxFormatter) IdentifierQuote() string {
	return f.identifierQuote
}

// QuoteIdentifier 用引用符包裹，内部出现的引用符加倍
func (f *SyntaxFormatter) QuoteIdentifier(identifier string) string {
	q := f.identifierQuote
	return q + strings.ReplaceAll(identifier, q, q+q) + q
}

func (f *SyntaxFormatter) Format(syntax string, params map[string]any) (string, error) {
	matches := placeholderRegex.FindAllStringSubmatchIndex(syntax, -1)
	if len(matches) == 0 {
		return syntax, nil
	}

	var buf strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > 0 && syntax[start-1] == '{' {
			continue
		}
		if end < len(syntax) && syntax[end] == '}' {
			continue
		}

		name := syntax[m[2]:m[3]]
		field := ""
		if m[4] >= 0 {
			field = syntax[m[4]:m[5]]
		}
		quote := m[6] >= 0 && syntax[m[6]:m[7]] == "|q"

		buf.WriteString(syntax[last:start])
		last = end

		value, ok := params[name]
		if !ok || isNil(value) {
			buf.WriteString(syntax[start:end])
			continue
		}

		resolved, err := f.resolve(name, field, value)
		if err != nil {
			return "", err
		}
		if quote {
			resolved = f.QuoteIdentifier(resolved)
		}
		buf.WriteString(resolved)
	}
	buf.WriteString(syntax[last:])

	return buf.String(), nil
}

func (f *SyntaxFormatter) resolve(name string, field string, value any) (string, error) {
	if getter, ok := value.(FieldGetter); ok {
		if field == "" {
			return "", errors.Wrapf(ErrMissingFieldSpecifier, "no field supplied in syntax for object: %s", name)
		}
		v, err := getter.NamedField(field)
		if err != nil {
			return "", errors.Wrapf(ErrInvalidLookup, "lookup of %s on %s failed: %v", field, name, err)
		}
		if isFalsy(v) {
			return "", errors.Wrapf(ErrInvalidLookup, "the result of %s on %s is not valid", field, name)
		}
		return toString(v), nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Map {
		if field == "" {
			return "", errors.Wrapf(ErrMissingFieldSpecifier, "no key supplied in syntax for map: %s", name)
		}
		if rv.Type().Key().Kind() != reflect.String {
			return "", errors.Wrapf(ErrInvalidLookup, "map %s is not keyed by string", name)
		}
		mv := rv.MapIndex(reflect.ValueOf(field).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return "", errors.Wrapf(ErrInvalidLookup, "missing %s for map %s", field, name)
		}
		v := mv.Interface()
		if isFalsy(v) {
			return "", errors.Wrapf(ErrInvalidLookup, "the value for %s on map %s is not valid", field, name)
		}
		return toString(v), nil
	}

	// 切片和数组按下标取值，[]byte 仍当作字符串
	if _, raw := value.([]byte); !raw && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		if field == "" {
			return "", errors.Wrapf(ErrMissingFieldSpecifier, "no index supplied in syntax for list: %s", name)
		}
		idx, err := strconv.Atoi(field)
		if err != nil || idx < 0 || idx >= rv.Len() {
			return "", errors.Wrapf(ErrInvalidLookup, "missing %s for list %s", field, name)
		}
		v := rv.Index(idx).Interface()
		if isFalsy(v) {
			return "", errors.Wrapf(ErrInvalidLookup, "the value for %s on list %s is not valid", field, name)
		}
		return toString(v), nil
	}

	return toString(value), nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// isFalsy nil、空串、false、数值 0、空集合都视为无效
func isFalsy(v any) bool {
	if isNil(v) {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() == 0
	}
	return rv.IsZero()
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}
