package config

import (
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// 错误信息使用 cfg tag 中的字段名
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			if name, ok := field.Tag.Lookup("cfg"); ok && name != "" && name != "-" {
				return name
			}
			return field.Name
		})
	})
	return validate
}

// Validate 按 validate tag 校验结构体，非结构体直接通过
func Validate(object any) error {
	rv := reflect.ValueOf(object)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil
	}
	if err := instance().Struct(rv.Interface()); err != nil {
		return errors.Wrap(err, "validate failed")
	}
	return nil
}
