package graph

import (
	"reflect"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// tagName 是结构体字段上用于指定属性名的 tag。
const tagName = "objgraph"

type fieldKey struct {
	typ  reflect.Type
	name string
}

// fieldCache 缓存 (结构体类型, 属性名) 到字段下标路径的映射，未找到时缓存 nil。
var fieldCache sync.Map

// fieldIndex 按以下顺序查找结构体字段：
//   - objgraph tag 等于 name；
//   - 导出字段名等于 name；
//   - 导出字段名忽略大小写等于 name。
//
// 嵌入结构体中提升的字段同样参与查找。
func fieldIndex(typ reflect.Type, name string) []int {
	key := fieldKey{typ: typ, name: name}
	if cached, ok := fieldCache.Load(key); ok {
		return cached.([]int)
	}

	var byTag, byName, byFold []int
	for _, f := range reflect.VisibleFields(typ) {
		if !f.IsExported() {
			continue
		}
		if tag, ok := f.Tag.Lookup(tagName); ok {
			if tagged, _, _ := strings.Cut(tag, ","); tagged == name && byTag == nil {
				byTag = f.Index
			}
			continue
		}
		switch {
		case f.Name == name && byName == nil:
			byName = f.Index
		case strings.EqualFold(f.Name, name) && byFold == nil:
			byFold = f.Index
		}
	}

	index := byTag
	if index == nil {
		index = byName
	}
	if index == nil {
		index = byFold
	}
	fieldCache.Store(key, index)
	return index
}

// indirect 解开指针与接口，遇到 nil 时返回无效值。
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// isAbsent 判断值是否视为“不存在”：无效值或 nil 的指针、接口、map、切片、函数、通道。
func isAbsent(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

// readField 按名称读取结构体字段或字符串键 map 的值。
func readField(source any, name string) (any, bool) {
	v := indirect(reflect.ValueOf(source))
	if !v.IsValid() {
		return nil, false
	}

	var field reflect.Value
	switch v.Kind() {
	case reflect.Struct:
		index := fieldIndex(v.Type(), name)
		if index == nil {
			return nil, false
		}
		f, err := v.FieldByIndexErr(index)
		if err != nil {
			// 经过 nil 的嵌入指针
			return nil, false
		}
		field = f
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		field = v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
	default:
		return nil, false
	}

	if isAbsent(field) {
		return nil, false
	}
	return field.Interface(), true
}

// writeField 按名称把 value 写入结构体字段或字符串键 map，必要时转换类型。
func writeField(target any, name string, value any) error {
	v := reflect.ValueOf(target)
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return errors.Newf("cannot assign %q into nil %s", name, v.Type())
		}
		if v.Kind() == reflect.Ptr && v.Elem().Kind() == reflect.Struct {
			v = v.Elem()
			break
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return errors.Newf("cannot assign %q into nil target", name)
	}

	switch v.Kind() {
	case reflect.Struct:
		if !v.CanSet() {
			return errors.Newf("cannot assign %q into unaddressable %s", name, v.Type())
		}
		index := fieldIndex(v.Type(), name)
		if index == nil {
			return errors.Newf("%s has no field for property %q", v.Type(), name)
		}
		field, err := fieldByIndexAlloc(v, index)
		if err != nil {
			return err
		}
		converted, err := convert(value, field.Type())
		if err != nil {
			return err
		}
		field.Set(converted)
		return nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return errors.Newf("cannot assign %q into %s", name, v.Type())
		}
		if v.IsNil() {
			return errors.Newf("cannot assign %q into nil %s", name, v.Type())
		}
		converted, err := convert(value, v.Type().Elem())
		if err != nil {
			return err
		}
		v.SetMapIndex(reflect.ValueOf(name).Convert(v.Type().Key()), converted)
		return nil
	default:
		return errors.Newf("cannot assign %q into %s", name, v.Type())
	}
}

// fieldType 返回 writeField 写入 name 时的目标类型，无法确定时返回 nil。
func fieldType(target any, name string) reflect.Type {
	t := reflect.TypeOf(target)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return nil
	}
	switch t.Kind() {
	case reflect.Struct:
		index := fieldIndex(t, name)
		if index == nil {
			return nil
		}
		return t.FieldByIndex(index).Type
	case reflect.Map:
		if t.Key().Kind() == reflect.String {
			return t.Elem()
		}
	}
	return nil
}

// fieldByIndexAlloc 与 FieldByIndex 相同，但会为路径上的 nil 嵌入指针分配内存。
// 未导出的嵌入指针无法分配，返回错误。
func fieldByIndexAlloc(v reflect.Value, index []int) (reflect.Value, error) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, errors.Newf("cannot set embedded pointer to unexported struct %s", v.Type().Elem())
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, nil
}
