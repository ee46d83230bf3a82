package config

import (
	"reflect"

	"github.com/pkg/errors"
)

// SetDefaults 为零值字段填充 def tag 的默认值，嵌套结构体递归处理，
// 值为 nil 的结构体指针不会被分配
func SetDefaults(object any) error {
	if object == nil {
		return errors.New("object cannot be nil")
	}
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.Errorf("object must be a non-nil pointer, got %T", object)
	}
	return setDefaults(rv.Elem(), "")
}

func setDefaults(rv reflect.Value, path string) error {
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := rv.Field(i)
		if !field.IsExported() {
			continue
		}

		if value.Kind() == reflect.Struct || value.Kind() == reflect.Ptr {
			if err := setDefaults(value, join(path, field.Name)); err != nil {
				return err
			}
		}

		def, ok := field.Tag.Lookup("def")
		if !ok || value.Kind() == reflect.Ptr || !value.IsZero() {
			continue
		}
		if err := parseScalar(value, def, join(path, field.Name)); err != nil {
			return errors.WithMessage(err, "invalid def tag")
		}
	}
	return nil
}
