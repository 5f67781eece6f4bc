package wire

import (
	"math/big"
)

// Kind 是线上数据模型中值的分类。
type Kind int

const (
	KindInvalid Kind = iota
	KindPrimitive
	KindObject
	KindWildObject
	KindArray
	KindReference
)

var kindNames = map[Kind]string{
	KindInvalid:    "invalid",
	KindPrimitive:  "primitive",
	KindObject:     "object",
	KindWildObject: "wild_object",
	KindArray:      "array",
	KindReference:  "reference",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Value 是线上数据模型中的一个值。
//
// 取值范围：
//   - 原始值：nil、bool、各类整数、float32/float64、string、[]byte、*big.Int；
//   - 结构化记录：*Object、*WildObject、*Array、*Reference。
//
// 解码得到的整数统一为 int64，超出 int64 范围的无符号数为 uint64，浮点数统一为 float64。
type Value = any

// Property 是对象记录中的一个属性，按 schema 声明顺序保存。
type Property struct {
	Name  string
	Value Value
}

// Object 是带 schema 的对象记录。
type Object struct {
	// SchemaIndex 指向 Serialized.Schemas 中的下标。
	SchemaIndex int
	// ConstructorArguments 为构造时需要重放的参数，nil 表示不存在。
	ConstructorArguments []Value
	// Properties 按 schema 声明顺序（自身属性在前，父链在后）排列。
	Properties []Property
}

// Lookup 按名称查找属性。
func (o *Object) Lookup(name string) (Value, bool) {
	for i := range o.Properties {
		if o.Properties[i].Name == name {
			return o.Properties[i].Value, true
		}
	}
	return nil, false
}

// Set 设置属性值，已存在时原地替换，否则追加到末尾。
func (o *Object) Set(name string, v Value) {
	for i := range o.Properties {
		if o.Properties[i].Name == name {
			o.Properties[i].Value = v
			return
		}
	}
	o.Properties = append(o.Properties, Property{Name: name, Value: v})
}

// WildObject 标记一个没有 schema 的对象，其内部结构不被保留。
type WildObject struct{}

// Array 是数组记录。
type Array struct {
	Elements []Value
}

// Reference 指向 Serialized.SharedObjects 中的一个槽位。
type Reference struct {
	Index int
}

// KindOf 返回值的分类，不支持的动态类型返回 KindInvalid。
func KindOf(v Value) Kind {
	switch v.(type) {
	case nil, bool, string, []byte, *big.Int,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return KindPrimitive
	case *Object:
		return KindObject
	case *WildObject:
		return KindWildObject
	case *Array:
		return KindArray
	case *Reference:
		return KindReference
	default:
		return KindInvalid
	}
}

// IsShareable 判断值能否出现在 SharedObjects 中。
func IsShareable(v Value) bool {
	switch KindOf(v) {
	case KindObject, KindArray, KindWildObject:
		return true
	default:
		return false
	}
}
