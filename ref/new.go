// Package ref 按 namespace:type 注册构造函数，根据配置创建对象
package ref

import (
	"reflect"
	"sync"

	"github.com/hatlonely/datadb/config"
	"github.com/pkg/errors"
)

// TypeOptions 配置中描述一个可构造对象
type TypeOptions struct {
	Namespace string `cfg:"namespace"`
	Type      string `cfg:"type"`
	Options   any    `cfg:"options"`
}

// Convertable 能把自身转换成构造函数参数类型的配置数据
type Convertable interface {
	ConvertTo(object any) error
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// constructor 形如 func() T、func(O) T、func() (T, error)、func(O) (T, error)
type constructor struct {
	fn           reflect.Value
	optionsType  reflect.Type
	returnsError bool
}

func newConstructor(fn any) (*constructor, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, errors.Errorf("constructor must be a function, got %T", fn)
	}
	t := v.Type()
	if t.NumIn() > 1 {
		return nil, errors.Errorf("constructor must have 0 or 1 input parameters, got %d", t.NumIn())
	}
	if t.NumOut() != 1 && t.NumOut() != 2 {
		return nil, errors.Errorf("constructor must have 1 or 2 return values, got %d", t.NumOut())
	}
	if t.NumOut() == 2 && !t.Out(1).Implements(errorType) {
		return nil, errors.New("second return value must be error")
	}

	c := &constructor{fn: v, returnsError: t.NumOut() == 2}
	if t.NumIn() == 1 {
		c.optionsType = t.In(0)
	}
	return c, nil
}

func (c *constructor) new(options any) (any, error) {
	var args []reflect.Value
	if c.optionsType != nil {
		arg, err := c.convert(options)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	results := c.fn.Call(args)
	if c.returnsError && !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	return results[0].Interface(), nil
}

// convert 把 options 转成构造函数的参数类型
//
// 类型已经匹配时直接使用；Convertable 调用 ConvertTo；
// map 之类的配置树通过 config.Bind 绑定，同时填充默认值并校验
func (c *constructor) convert(options any) (reflect.Value, error) {
	if options == nil {
		if c.optionsType.Kind() == reflect.Ptr {
			return reflect.Zero(c.optionsType), nil
		}
		return reflect.Value{}, errors.Errorf("constructor requires %v but got nil", c.optionsType)
	}
	if v := reflect.ValueOf(options); v.Type().AssignableTo(c.optionsType) {
		return v, nil
	}

	isPtr := c.optionsType.Kind() == reflect.Ptr
	target := reflect.New(c.optionsType)
	if isPtr {
		target = reflect.New(c.optionsType.Elem())
	}

	if convertable, ok := options.(Convertable); ok {
		if err := convertable.ConvertTo(target.Interface()); err != nil {
			return reflect.Value{}, errors.WithMessagef(err, "failed to convert options to %v", c.optionsType)
		}
	} else if err := config.Bind(options, target.Interface()); err != nil {
		return reflect.Value{}, errors.WithMessagef(err, "failed to bind options to %v", c.optionsType)
	}

	if isPtr {
		return target, nil
	}
	return target.Elem(), nil
}

var registry sync.Map

// Register 同一个 key 重复注册同一个函数是幂等的，注册不同函数返回错误
func Register(namespace string, typ string, fn any) error {
	key := namespace + ":" + typ
	c, err := newConstructor(fn)
	if err != nil {
		return errors.WithMessagef(err, "invalid constructor for %s", key)
	}
	if existing, loaded := registry.LoadOrStore(key, c); loaded {
		if existing.(*constructor).fn.Pointer() != c.fn.Pointer() {
			return errors.Errorf("constructor for %s already registered with different function", key)
		}
	}
	return nil
}

// RegisterT 以 T 的包路径和类型名作为 namespace 和 type
func RegisterT[T any](fn any) error {
	namespace, typ, err := typeKey[T]()
	if err != nil {
		return err
	}
	return Register(namespace, typ, fn)
}

func MustRegister(namespace string, typ string, fn any) {
	if err := Register(namespace, typ, fn); err != nil {
		panic(err)
	}
}

func MustRegisterT[T any](fn any) {
	if err := RegisterT[T](fn); err != nil {
		panic(err)
	}
}

func New(namespace string, typ string, options any) (any, error) {
	value, ok := registry.Load(namespace + ":" + typ)
	if !ok {
		return nil, errors.Errorf("constructor not found for %s:%s", namespace, typ)
	}
	return value.(*constructor).new(options)
}

func NewT[T any](options any) (T, error) {
	var zero T
	namespace, typ, err := typeKey[T]()
	if err != nil {
		return zero, err
	}
	return cast[T](New(namespace, typ, options))
}

// Build 按 TypeOptions 创建对象并断言为 T，namespace 为空时使用 defaultNamespace
func Build[T any](options *TypeOptions, defaultNamespace string) (T, error) {
	var zero T
	if options == nil || options.Type == "" {
		return zero, errors.New("type cannot be empty")
	}
	namespace := options.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	obj, err := New(namespace, options.Type, options.Options)
	if err != nil {
		return zero, err
	}
	return cast[T](obj, nil)
}

func cast[T any](obj any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	t, ok := obj.(T)
	if !ok {
		return zero, errors.Errorf("created object %T is not %v", obj, reflect.TypeOf((*T)(nil)).Elem())
	}
	return t, nil
}

func typeKey[T any]() (string, string, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return "", "", errors.Errorf("cannot determine package path or type name for %v", t)
	}
	return t.PkgPath(), t.Name(), nil
}
