package graph

import (
	"github.com/lk2023060901/objgraph-go/pkg/schema"
)

const (
	// defaultResolveConcurrency 是 schema 解析扇出的默认并发度。
	defaultResolveConcurrency = 8

	// DefaultMaxDepth 是遍历对象图时默认允许的最大递归深度，共享引用链同样计入。
	DefaultMaxDepth = 10000
)

func maxDepthOrDefault(n int) int {
	if n <= 0 {
		return DefaultMaxDepth
	}
	return n
}

// SerializeOptions 控制一次序列化。
type SerializeOptions struct {
	// Classifier 识别实例所属的 schema，必填。
	Classifier schema.Classifier

	// BeforeEncode 在每个值被分类之前调用，返回值代替原值被序列化。
	BeforeEncode func(value any) any

	// MaxDepth 限制递归深度，超过时返回 ErrGraphTooDeep；非正数时取 DefaultMaxDepth。
	MaxDepth int
}

// Slot 描述反序列化时刚刚写入的位置：对象属性（Index 为 -1）或数组下标。
type Slot struct {
	Property *schema.PropertySchema
	Index    int
}

// IsProperty 判断写入位置是否为对象属性。
func (s Slot) IsProperty() bool {
	return s.Property != nil
}

// AfterAssignFunc 在反序列化写入每个属性或数组元素时被同步调用。
//
// 对象属性：在写入前调用，返回值即实际写入的值。
// 数组元素：在写入后调用，返回值写回该元素。container 是最终写入对象图的切片，
// 钩子可以保留它，稍后（例如异步加载完成时）再替换其中的元素。
type AfterAssignFunc func(value any, slot Slot, container any) any

// DeserializeOptions 控制一次反序列化。
type DeserializeOptions struct {
	// Resolver 把 schema 标识解析为描述符，必填。
	Resolver schema.Resolver

	AfterPropertyAssigned AfterAssignFunc

	// ResolveConcurrency 为 schema 解析的最大并发数，非正数时取默认值。
	ResolveConcurrency int

	// MaxDepth 限制递归深度，超过时返回 ErrGraphTooDeep；非正数时取 DefaultMaxDepth。
	MaxDepth int
}

func (opts DeserializeOptions) maxDepth() int {
	return maxDepthOrDefault(opts.MaxDepth)
}

func (opts DeserializeOptions) resolveConcurrency() int {
	if opts.ResolveConcurrency <= 0 {
		return defaultResolveConcurrency
	}
	return opts.ResolveConcurrency
}
