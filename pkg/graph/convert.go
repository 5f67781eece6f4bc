package graph

import (
	"math"
	"math/big"
	"reflect"

	"github.com/cockroachdb/errors"
)

var bigIntType = reflect.TypeOf(big.Int{})

// convert 把反序列化得到的通用值转换为目标类型。
//
// 规则：
//   - nil 转为零值；可直接赋值时原样返回；
//   - 指针可解引用到值类型，值也可取址到指针类型；
//   - 数值在整数、无符号数、浮点数之间转换，溢出或丢失精度时报错；
//   - []any 逐元素转换为目标切片或数组；
//   - 无法赋值的 wild object（空 map）保持零值。
func convert(value any, typ reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(typ), nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(typ) {
		return v, nil
	}
	if wild, ok := value.(map[string]any); ok && len(wild) == 0 {
		return reflect.Zero(typ), nil
	}

	switch {
	case v.Kind() == reflect.Ptr && !v.IsNil() && v.Type().Elem().AssignableTo(typ):
		return v.Elem(), nil
	case typ.Kind() == reflect.Ptr:
		elem, err := convert(value, typ.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(typ.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	}

	switch src := value.(type) {
	case int64:
		return convertInt(src, typ)
	case uint64:
		return convertUint(src, typ)
	case float64:
		return convertFloat(src, typ)
	case *big.Int:
		if src.IsInt64() {
			return convertInt(src.Int64(), typ)
		}
		if src.IsUint64() {
			return convertUint(src.Uint64(), typ)
		}
	case []any:
		return convertSlice(src, typ)
	}

	if v.Type().ConvertibleTo(typ) && sameKindFamily(v.Kind(), typ.Kind()) {
		return v.Convert(typ), nil
	}
	return reflect.Value{}, errors.Newf("cannot convert %T to %s", value, typ)
}

// sameKindFamily 限制 reflect 转换只发生在同类值之间，例如 string 到具名 string。
func sameKindFamily(a, b reflect.Kind) bool {
	if a == b {
		return true
	}
	return a == reflect.Slice && b == reflect.String
}

func convertInt(n int64, typ reflect.Type) (reflect.Value, error) {
	out := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if out.OverflowInt(n) {
			return reflect.Value{}, errors.Newf("%d overflows %s", n, typ)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if n < 0 || out.OverflowUint(uint64(n)) {
			return reflect.Value{}, errors.Newf("%d overflows %s", n, typ)
		}
		out.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		out.SetFloat(float64(n))
	default:
		if typ == bigIntType {
			out.Set(reflect.ValueOf(*big.NewInt(n)))
			break
		}
		return reflect.Value{}, errors.Newf("cannot convert int64 to %s", typ)
	}
	return out, nil
}

func convertUint(n uint64, typ reflect.Type) (reflect.Value, error) {
	if n <= math.MaxInt64 {
		return convertInt(int64(n), typ)
	}
	out := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		if out.OverflowUint(n) {
			return reflect.Value{}, errors.Newf("%d overflows %s", n, typ)
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		out.SetFloat(float64(n))
	default:
		if typ == bigIntType {
			out.Set(reflect.ValueOf(*new(big.Int).SetUint64(n)))
			break
		}
		return reflect.Value{}, errors.Newf("%d overflows %s", n, typ)
	}
	return out, nil
}

func convertFloat(f float64, typ reflect.Type) (reflect.Value, error) {
	out := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.Float32, reflect.Float64:
		if out.OverflowFloat(f) {
			return reflect.Value{}, errors.Newf("%v overflows %s", f, typ)
		}
		out.SetFloat(f)
		return out, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return reflect.Value{}, errors.Newf("%v is not representable as %s", f, typ)
		}
		return convertInt(int64(f), typ)
	default:
		return reflect.Value{}, errors.Newf("cannot convert float64 to %s", typ)
	}
}

func convertSlice(elems []any, typ reflect.Type) (reflect.Value, error) {
	var out reflect.Value
	switch typ.Kind() {
	case reflect.Slice:
		out = reflect.MakeSlice(typ, len(elems), len(elems))
	case reflect.Array:
		if typ.Len() != len(elems) {
			return reflect.Value{}, errors.Newf("cannot convert %d elements to %s", len(elems), typ)
		}
		out = reflect.New(typ).Elem()
	default:
		return reflect.Value{}, errors.Newf("cannot convert array to %s", typ)
	}
	for i, elem := range elems {
		converted, err := convert(elem, typ.Elem())
		if err != nil {
			return reflect.Value{}, errors.Wrapf(err, "element %d", i)
		}
		out.Index(i).Set(converted)
	}
	return out, nil
}
