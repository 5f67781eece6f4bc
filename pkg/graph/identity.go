package graph

import (
	"reflect"
)

// identity 标识一个运行期实例：同一类型下指向同一内存的值视为同一实例。
type identity struct {
	typ reflect.Type
	ptr uintptr
	len int
}

// identityOf 返回实例的身份。结构体等不可寻址的值没有身份，彼此永不相等。
func identityOf(v reflect.Value) (identity, bool) {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if v.IsNil() {
			return identity{}, false
		}
		return identity{typ: v.Type(), ptr: v.Pointer()}, true
	case reflect.Slice:
		if v.IsNil() {
			return identity{}, false
		}
		return identity{typ: v.Type(), ptr: v.Pointer(), len: v.Len()}, true
	default:
		return identity{}, false
	}
}
