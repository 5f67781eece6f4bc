package schema

import (
	"context"
	"fmt"
	"reflect"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
	"github.com/lk2023060901/objgraph-go/pkg/util/typeutil"
)

// ID 是不透明的 schema 标识，必须能以线上格式表示（字符串、整数或由它们组成的 map）。
// 标识之间的相等性由 Classifier.IDsEqual 定义。
type ID = any

// ObjectSchema 描述一类对象如何构造、如何读写属性。
//
// 描述符本身是被动数据，由注册表持有，序列化与反序列化过程中只读。
type ObjectSchema struct {
	// Name 仅用于日志与错误信息。
	Name string

	// Type 是描述的 Go 类型，分配式构造与按类型分类时使用。
	Type reflect.Type

	// Construct 是工厂函数。
	//   - ConstructWithoutNew 为 true：直接调用 Construct(args...)，返回值即实例；
	//   - ConstructWithoutNew 为 false：Construct 作为分配器（不带参数调用），
	//     为空时按 Type 分配零值实例，之后若实例实现 Initializer 则以构造参数调用 Init。
	Construct           func(args ...any) (any, error)
	ConstructWithoutNew bool

	// ConstructArguments 从现有实例中提取构造时需要重放的参数，可为空。
	ConstructArguments func(instance any) []any

	// Properties 按声明顺序排列，整条继承链内名称唯一。
	Properties []*PropertySchema

	// Extends 是父描述符，属性处理时子在前、父在后。
	Extends *ObjectSchema

	// ValueType 为 true 时实例永不去重，每次出现都是独立副本。
	ValueType bool
}

// PropertySchema 描述对象上的一个属性。
type PropertySchema struct {
	Name string

	// Optional 为 true 时：序列化遇到缺失值直接省略，反序列化遇到缺失跳过。
	Optional bool

	// Assign 自定义写入方式，为空时按名称写入字段或 map 键。
	Assign func(target any, value any) error

	// Get 自定义读取方式，第二个返回值表示属性是否存在。
	// 为空时按名称反射读取。
	Get func(source any) (any, bool)
}

// Initializer 由以分配方式构造的实例实现，用于接收重放的构造参数。
type Initializer interface {
	Init(args ...any) error
}

// Resolver 把 schema 标识解析为描述符，(nil, nil) 表示不存在。
type Resolver interface {
	Resolve(ctx context.Context, id ID) (*ObjectSchema, error)
}

// Classifier 负责识别实例所属的 schema，以及比较两个标识。
type Classifier interface {
	Classify(instance any) (*ObjectSchema, ID, bool)
	IDsEqual(a, b ID) bool
}

// Finder 同时具备解析与分类能力。
type Finder interface {
	Resolver
	Classifier
}

// ResolverFunc 把普通函数适配为 Resolver。
type ResolverFunc func(ctx context.Context, id ID) (*ObjectSchema, error)

func (f ResolverFunc) Resolve(ctx context.Context, id ID) (*ObjectSchema, error) {
	return f(ctx, id)
}

func (s *ObjectSchema) String() string {
	if s == nil {
		return "<nil>"
	}
	if s.Name != "" {
		return s.Name
	}
	if s.Type != nil {
		return s.Type.String()
	}
	return "<anonymous>"
}

// Chain 返回从自身开始沿 Extends 向上的描述符列表。
// 继承链成环时在重复处截断。
func (s *ObjectSchema) Chain() []*ObjectSchema {
	seen := typeutil.NewSet[*ObjectSchema]()
	var chain []*ObjectSchema
	for cur := s; cur != nil && !seen.Contain(cur); cur = cur.Extends {
		seen.Insert(cur)
		chain = append(chain, cur)
	}
	return chain
}

// AllProperties 按处理顺序返回整条继承链上的属性：自身属性在前，父链在后。
func (s *ObjectSchema) AllProperties() []*PropertySchema {
	var props []*PropertySchema
	for _, cur := range s.Chain() {
		props = append(props, cur.Properties...)
	}
	return props
}

// Property 在整条继承链上按名称查找属性。
func (s *ObjectSchema) Property(name string) (*PropertySchema, bool) {
	for _, p := range s.AllProperties() {
		if p != nil && p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Validate 检查描述符是否可用：
//   - 继承链不成环；
//   - 属性非空、名称非空且在整条链上唯一；
//   - 至少有一种可用的构造方式。
func (s *ObjectSchema) Validate() error {
	if s == nil {
		return merr.WrapErrSchemaInvalid("<nil>", "nil schema")
	}
	chain := s.Chain()
	depth := 0
	for cur := s; cur != nil; cur = cur.Extends {
		depth++
		if depth > len(chain) {
			return merr.WrapErrSchemaInvalid(s.String(), "cyclic extends chain")
		}
	}

	names := typeutil.NewSet[string]()
	for _, cur := range chain {
		for i, p := range cur.Properties {
			if p == nil {
				return merr.WrapErrSchemaInvalid(cur.String(), fmt.Sprintf("property #%d is nil", i))
			}
			if p.Name == "" {
				return merr.WrapErrSchemaInvalid(cur.String(), fmt.Sprintf("property #%d has empty name", i))
			}
			if names.Contain(p.Name) {
				return merr.WrapErrSchemaInvalid(cur.String(), fmt.Sprintf("duplicate property %q", p.Name))
			}
			names.Insert(p.Name)
		}
	}

	if s.ConstructWithoutNew && s.Construct == nil {
		return merr.WrapErrSchemaInvalid(s.String(), "plain construction requires a factory")
	}
	if !s.ConstructWithoutNew && s.Construct == nil && s.Type == nil {
		return merr.WrapErrSchemaInvalid(s.String(), "allocation requires a type or an allocator")
	}
	return nil
}

// New 按描述符的构造协议创建实例。
func (s *ObjectSchema) New(args ...any) (any, error) {
	if s.ConstructWithoutNew {
		if s.Construct == nil {
			return nil, merr.WrapErrConstructFailed(s.String(), errors.New("no factory"))
		}
		instance, err := s.Construct(args...)
		if err != nil {
			return nil, merr.WrapErrConstructFailed(s.String(), err)
		}
		return instance, nil
	}

	instance, err := s.allocate()
	if err != nil {
		return nil, merr.WrapErrConstructFailed(s.String(), err)
	}
	if init, ok := instance.(Initializer); ok {
		if err := init.Init(args...); err != nil {
			return nil, merr.WrapErrConstructFailed(s.String(), err)
		}
	} else if len(args) > 0 {
		return nil, merr.WrapErrConstructFailed(s.String(),
			errors.Newf("%d constructor arguments but %T does not implement Initializer", len(args), instance))
	}
	return instance, nil
}

// allocate 分配零值实例；非指针、非 map 类型返回指向零值的指针。
func (s *ObjectSchema) allocate() (any, error) {
	if s.Construct != nil {
		instance, err := s.Construct()
		if err != nil {
			return nil, err
		}
		if instance == nil {
			return nil, errors.New("allocator returned nil")
		}
		return instance, nil
	}
	if s.Type == nil {
		return nil, errors.New("no type to allocate")
	}
	switch s.Type.Kind() {
	case reflect.Ptr:
		return reflect.New(s.Type.Elem()).Interface(), nil
	case reflect.Map:
		return reflect.MakeMap(s.Type).Interface(), nil
	default:
		return reflect.New(s.Type).Interface(), nil
	}
}
