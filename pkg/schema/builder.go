package schema

import (
	"reflect"
)

// PropertyOption 调整单个属性描述。
type PropertyOption func(*PropertySchema)

// AsOptional 把属性标记为可选。
func AsOptional() PropertyOption {
	return func(p *PropertySchema) {
		p.Optional = true
	}
}

// WithAssign 指定自定义写入方式。
func WithAssign(fn func(target any, value any) error) PropertyOption {
	return func(p *PropertySchema) {
		p.Assign = fn
	}
}

// WithGetter 指定自定义读取方式。
func WithGetter(fn func(source any) (any, bool)) PropertyOption {
	return func(p *PropertySchema) {
		p.Get = fn
	}
}

// Builder 以链式调用组装 ObjectSchema，Build 时统一校验。
//
//	animal := schema.Of[*Animal]("Animal").
//		ConstructArguments(func(v any) []any { return []any{v.(*Animal).Name} }).
//		Property("age").
//		Property("owner", schema.AsOptional()).
//		MustBuild()
type Builder struct {
	s *ObjectSchema
}

// NewObject 以名称和 Go 类型开始构建描述符。
func NewObject(name string, typ reflect.Type) *Builder {
	return &Builder{s: &ObjectSchema{Name: name, Type: typ}}
}

// Of 以类型参数开始构建描述符。
func Of[T any](name string) *Builder {
	return NewObject(name, reflect.TypeOf((*T)(nil)).Elem())
}

func (b *Builder) Property(name string, opts ...PropertyOption) *Builder {
	p := &PropertySchema{Name: name}
	for _, opt := range opts {
		opt(p)
	}
	b.s.Properties = append(b.s.Properties, p)
	return b
}

func (b *Builder) Optional(name string, opts ...PropertyOption) *Builder {
	return b.Property(name, append([]PropertyOption{AsOptional()}, opts...)...)
}

func (b *Builder) ValueType() *Builder {
	b.s.ValueType = true
	return b
}

// Reconstruct 使用普通工厂函数构造实例，构造参数原样传入。
func (b *Builder) Reconstruct(fn func(args ...any) (any, error)) *Builder {
	b.s.Construct = fn
	b.s.ConstructWithoutNew = true
	return b
}

// Allocate 指定分配器，实例随后通过 Initializer 接收构造参数。
func (b *Builder) Allocate(fn func() any) *Builder {
	b.s.Construct = func(...any) (any, error) {
		return fn(), nil
	}
	b.s.ConstructWithoutNew = false
	return b
}

func (b *Builder) ConstructArguments(fn func(instance any) []any) *Builder {
	b.s.ConstructArguments = fn
	return b
}

func (b *Builder) Extends(parent *ObjectSchema) *Builder {
	b.s.Extends = parent
	return b
}

func (b *Builder) Build() (*ObjectSchema, error) {
	if err := b.s.Validate(); err != nil {
		return nil, err
	}
	return b.s, nil
}

// MustBuild 与 Build 相同，校验失败时 panic，适合包级变量初始化。
func (b *Builder) MustBuild() *ObjectSchema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
