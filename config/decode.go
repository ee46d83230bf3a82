package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Decode 把 Load 得到的通用配置树按 cfg tag 绑定到 object
//
// 字段名优先取 cfg tag，没有 tag 时按字段名忽略大小写匹配，
// 字符串会按目标类型解析，便于 ini 和命令行覆盖
func Decode(src any, object any) error {
	if object == nil {
		return errors.New("object cannot be nil")
	}
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.Errorf("object must be a non-nil pointer, got %T", object)
	}
	return decodeValue(src, rv.Elem(), "")
}

func decodeValue(src any, dst reflect.Value, path string) error {
	srcValue := reflect.ValueOf(src)
	for srcValue.IsValid() && (srcValue.Kind() == reflect.Ptr || srcValue.Kind() == reflect.Interface) {
		if srcValue.IsNil() {
			return nil
		}
		srcValue = srcValue.Elem()
	}
	if !srcValue.IsValid() {
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return decodeValue(srcValue.Interface(), dst.Elem(), path)
	}

	if dst.Kind() == reflect.Interface {
		if dst.Type().NumMethod() == 0 || srcValue.Type().Implements(dst.Type()) {
			dst.Set(srcValue)
			return nil
		}
		return errors.Errorf("%s: cannot assign %v to %v", path, srcValue.Type(), dst.Type())
	}

	if n, ok := srcValue.Interface().(json.Number); ok {
		return parseScalar(dst, n.String(), path)
	}

	if dst.Type() == reflect.TypeOf(time.Duration(0)) {
		switch srcValue.Kind() {
		case reflect.String:
			return parseScalar(dst, srcValue.String(), path)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			dst.SetInt(srcValue.Int())
			return nil
		}
	}

	if srcValue.Type().AssignableTo(dst.Type()) {
		dst.Set(srcValue)
		return nil
	}

	switch dst.Kind() {
	case reflect.Struct:
		return decodeStruct(srcValue, dst, path)
	case reflect.Map:
		return decodeMap(srcValue, dst, path)
	case reflect.Slice:
		return decodeSlice(srcValue, dst, path)
	}

	if srcValue.Kind() == reflect.String {
		return parseScalar(dst, srcValue.String(), path)
	}
	if isNumber(srcValue.Kind()) && isNumber(dst.Kind()) {
		dst.Set(srcValue.Convert(dst.Type()))
		return nil
	}
	return errors.Errorf("%s: cannot convert %v to %v", path, srcValue.Type(), dst.Type())
}

func decodeStruct(src, dst reflect.Value, path string) error {
	if src.Kind() != reflect.Map {
		return errors.Errorf("%s: expected map for %v, got %v", path, dst.Type(), src.Type())
	}
	keys := make(map[string]reflect.Value, src.Len())
	for _, key := range src.MapKeys() {
		keys[strings.ToLower(toString(key))] = src.MapIndex(key)
	}

	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag := strings.Split(field.Tag.Get("cfg"), ",")[0]; tag == "-" {
			continue
		} else if tag != "" {
			name = tag
		}
		value, ok := keys[strings.ToLower(name)]
		if !ok {
			continue
		}
		if err := decodeValue(value.Interface(), dst.Field(i), join(path, name)); err != nil {
			return err
		}
	}
	return nil
}

func decodeMap(src, dst reflect.Value, path string) error {
	if src.Kind() != reflect.Map {
		return errors.Errorf("%s: expected map, got %v", path, src.Type())
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMapWithSize(dst.Type(), src.Len()))
	}
	for _, key := range src.MapKeys() {
		k := reflect.New(dst.Type().Key()).Elem()
		if err := decodeValue(key.Interface(), k, path); err != nil {
			return err
		}
		v := reflect.New(dst.Type().Elem()).Elem()
		if err := decodeValue(src.MapIndex(key).Interface(), v, join(path, toString(key))); err != nil {
			return err
		}
		dst.SetMapIndex(k, v)
	}
	return nil
}

func decodeSlice(src, dst reflect.Value, path string) error {
	// 逗号分隔的字符串也可以绑定到切片
	if src.Kind() == reflect.String {
		return parseScalar(dst, src.String(), path)
	}
	if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
		return errors.Errorf("%s: expected list, got %v", path, src.Type())
	}
	out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
	for i := 0; i < src.Len(); i++ {
		if err := decodeValue(src.Index(i).Interface(), out.Index(i), join(path, strconv.Itoa(i))); err != nil {
			return err
		}
	}
	dst.Set(out)
	return nil
}

// parseScalar 把字符串解析成 dst 的类型，def tag 与 ini 的值都走这里
func parseScalar(dst reflect.Value, value string, path string) error {
	switch dst.Kind() {
	case reflect.String:
		dst.SetString(value)
	case reflect.Bool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(err, "%s: invalid bool %q", path, value)
		}
		dst.SetBool(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if dst.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return errors.Wrapf(err, "%s: invalid duration %q", path, value)
			}
			dst.SetInt(int64(d))
			return nil
		}
		v, err := strconv.ParseInt(value, 0, dst.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "%s: invalid int %q", path, value)
		}
		dst.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(value, 0, dst.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "%s: invalid uint %q", path, value)
		}
		dst.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(value, dst.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "%s: invalid float %q", path, value)
		}
		dst.SetFloat(v)
	case reflect.Slice:
		parts := strings.Split(value, ",")
		out := reflect.MakeSlice(dst.Type(), len(parts), len(parts))
		for i, part := range parts {
			if err := parseScalar(out.Index(i), strings.TrimSpace(part), join(path, strconv.Itoa(i))); err != nil {
				return err
			}
		}
		dst.Set(out)
	default:
		return errors.Errorf("%s: cannot parse %q as %v", path, value, dst.Type())
	}
	return nil
}

func isNumber(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toString(v reflect.Value) string {
	for v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.Kind() == reflect.String {
		return v.String()
	}
	return fmt.Sprint(v.Interface())
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
