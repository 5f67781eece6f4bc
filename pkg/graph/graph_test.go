package graph

import (
	"context"
	"math/big"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"

	"github.com/lk2023060901/objgraph-go/internal/wire"
	"github.com/lk2023060901/objgraph-go/pkg/schema"
	"github.com/lk2023060901/objgraph-go/pkg/schema/registry"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
	"github.com/lk2023060901/objgraph-go/pkg/util/typeutil"
)

type Species string

type Sample struct {
	Title    string `objgraph:"title"`
	Count    uint8
	Ratio    float32
	Enabled  bool
	Kind     Species
	Grid     [3]int
	Blob     []byte
	Scores   []float64
	Big      *big.Int
	Children []*Sample
}

type Person struct {
	Name string
	Pets []*Animal
}

type Animal struct {
	Name  string
	Age   int8
	Owner *Person
	Tags  []string
	Extra any
}

type Vec3 struct {
	X, Y, Z float64
}

type Mesh struct {
	Positions []*Vec3
}

type Node struct {
	Name string
	Next *Node
}

type Link struct {
	Next *Link
}

type Base struct {
	ID int64
}

type Derived struct {
	Base
	Label string
}

type Pet struct {
	name string
	Age  int
}

type Texture struct {
	Path string
}

type AssetRef struct {
	Path string
}

type Material struct {
	Name   string
	Albedo any
}

type Palette struct {
	Textures []*Texture
}

type GraphSuite struct {
	suite.Suite
	ctx context.Context

	reg       *registry.Registry
	petBuilds *atomic.Int32
}

func (s *GraphSuite) SetupTest() {
	s.ctx = context.Background()
	s.reg = registry.New()
	s.petBuilds = atomic.NewInt32(0)

	base := schema.Of[*Base]("Base").Property("ID").MustBuild()
	schemas := map[string]*schema.ObjectSchema{
		"Sample": schema.Of[*Sample]("Sample").
			Property("title").Property("count").Property("Ratio").Property("Enabled").
			Property("Kind").Property("Grid").Property("Blob").Property("Scores").
			Optional("Big").Optional("Children").
			MustBuild(),
		"Person": schema.Of[*Person]("Person").Property("Name").Optional("Pets").MustBuild(),
		"Animal": schema.Of[*Animal]("Animal").
			Property("Name").Property("Age").Optional("Owner").Property("Tags").Optional("Extra").
			MustBuild(),
		"Vec3":    schema.Of[*Vec3]("Vec3").Property("X").Property("Y").Property("Z").ValueType().MustBuild(),
		"Mesh":    schema.Of[*Mesh]("Mesh").Property("Positions").MustBuild(),
		"Node":    schema.Of[*Node]("Node").Property("Name").Optional("Next").MustBuild(),
		"Link":    schema.Of[*Link]("Link").Optional("Next").ValueType().MustBuild(),
		"Base":    base,
		"Derived": schema.Of[*Derived]("Derived").Property("Label").Extends(base).MustBuild(),
		"Pet": schema.Of[*Pet]("Pet").
			Reconstruct(func(args ...any) (any, error) {
				s.petBuilds.Inc()
				if len(args) != 1 {
					return nil, errors.Newf("want 1 argument, got %d", len(args))
				}
				return &Pet{name: args[0].(string)}, nil
			}).
			ConstructArguments(func(v any) []any { return []any{v.(*Pet).name} }).
			Property("Age").
			MustBuild(),
		"AssetRef": schema.Of[*AssetRef]("AssetRef").Property("Path").MustBuild(),
		"Material": schema.Of[*Material]("Material").Property("Name").Property("Albedo").MustBuild(),
		"Texture":  schema.Of[*Texture]("Texture").Property("Path").MustBuild(),
		"Palette":  schema.Of[*Palette]("Palette").Property("Textures").MustBuild(),
	}
	for name, sch := range schemas {
		s.Require().NoError(s.reg.Register(sch, name))
	}
}

func (s *GraphSuite) serializeOpts() SerializeOptions {
	return SerializeOptions{Classifier: s.reg}
}

func (s *GraphSuite) deserializeOpts() DeserializeOptions {
	return DeserializeOptions{Resolver: s.reg}
}

func (s *GraphSuite) roundTrip(root any) any {
	blob, err := Serialize(s.ctx, root, s.serializeOpts())
	s.Require().NoError(err)
	got, err := Deserialize(s.ctx, blob, s.deserializeOpts())
	s.Require().NoError(err)
	return got
}

func (s *GraphSuite) encodeEnvelope(env *wire.Serialized) []byte {
	blob, err := wire.Encode(env)
	s.Require().NoError(err)
	return blob
}

func (s *GraphSuite) TestRoundTripIdentity() {
	huge, ok := new(big.Int).SetString("-98765432109876543210", 10)
	s.Require().True(ok)
	original := &Sample{
		Title:   "root",
		Count:   200,
		Ratio:   0.5,
		Enabled: true,
		Kind:    "cat",
		Grid:    [3]int{1, -2, 3},
		Blob:    []byte{0xde, 0xad},
		Scores:  []float64{1.5, 2},
		Children: []*Sample{
			{Title: "leaf", Grid: [3]int{}, Scores: []float64{}, Blob: []byte{1}},
		},
	}
	got := s.roundTrip(original)
	s.Equal(original, got)

	original.Big = huge
	got = s.roundTrip(original)
	s.Require().IsType(&Sample{}, got)
	s.Equal(0, huge.Cmp(got.(*Sample).Big))

	s.Equal("plain", s.roundTrip("plain"))
	s.Equal(int64(7), s.roundTrip(7))
	s.Nil(s.roundTrip(nil))
	s.Equal([]any{int64(1), "two", []any{true}}, s.roundTrip([]any{1, "two", []bool{true}}))
}

func (s *GraphSuite) TestSharingPreserved() {
	owner := &Person{Name: "alice"}
	cat := &Animal{Name: "cat", Age: 3, Owner: owner, Tags: []string{"indoor"}}
	dog := &Animal{Name: "dog", Age: 5, Owner: owner, Tags: []string{}}
	owner.Pets = []*Animal{cat, dog}

	env, err := SerializeEnvelope(s.ctx, []*Animal{cat, dog, cat}, s.serializeOpts())
	s.Require().NoError(err)
	s.Len(env.SharedObjects, 3)
	s.Len(env.Schemas, 2)

	got := s.roundTrip([]*Animal{cat, dog, cat})
	s.Require().IsType([]any{}, got)
	list := got.([]any)
	s.Require().Len(list, 3)
	rcat, rdog := list[0].(*Animal), list[1].(*Animal)
	s.Same(rcat, list[2].(*Animal))
	s.Same(rcat.Owner, rdog.Owner)
	s.Equal("alice", rcat.Owner.Name)
	s.Require().Len(rcat.Owner.Pets, 2)
	s.Same(rcat, rcat.Owner.Pets[0])
	s.Same(rdog, rcat.Owner.Pets[1])
	s.Equal([]string{"indoor"}, rcat.Tags)
}

func (s *GraphSuite) TestValueTypesCopied() {
	v := &Vec3{X: 1, Y: 2, Z: 3}
	mesh := &Mesh{Positions: []*Vec3{v, v, v}}

	env, err := SerializeEnvelope(s.ctx, mesh, s.serializeOpts())
	s.Require().NoError(err)
	s.Len(env.SharedObjects, 1)
	positions, ok := env.SharedObjects[0].(*wire.Object).Lookup("Positions")
	s.Require().True(ok)
	for _, elem := range positions.(*wire.Array).Elements {
		s.IsType(&wire.Object{}, elem)
	}

	got := s.roundTrip(mesh).(*Mesh)
	s.Require().Len(got.Positions, 3)
	set := typeutil.NewSet(got.Positions...)
	s.Equal(3, set.Len())
	for _, p := range got.Positions {
		s.Equal(*v, *p)
	}
}

func (s *GraphSuite) TestCyclesTerminate() {
	a := &Node{Name: "a"}
	b := &Node{Name: "b", Next: a}
	a.Next = b

	got := s.roundTrip(a).(*Node)
	s.Equal("a", got.Name)
	s.Equal("b", got.Next.Name)
	s.Same(got, got.Next.Next)

	self := &Node{Name: "self"}
	self.Next = self
	gotSelf := s.roundTrip(self).(*Node)
	s.Same(gotSelf, gotSelf.Next)
}

func (s *GraphSuite) TestSchemaTableDedup() {
	animals := make([]*Animal, 10)
	for i := range animals {
		animals[i] = &Animal{Name: "a", Age: int8(i)}
	}
	env, err := SerializeEnvelope(s.ctx, animals, s.serializeOpts())
	s.Require().NoError(err)
	s.Equal([]any{"Animal"}, env.Schemas)
	s.Require().Len(env.SharedObjects, 10)
	for _, shared := range env.SharedObjects {
		s.Equal(0, shared.(*wire.Object).SchemaIndex)
	}
}

func (s *GraphSuite) TestRequiredPropertyEnforced() {
	env := wire.NewSerialized()
	env.Root = &wire.Reference{Index: 0}
	env.SharedObjects = []wire.Value{
		&wire.Object{SchemaIndex: 0, Properties: []wire.Property{{Name: "Age", Value: int64(1)}, {Name: "Tags", Value: nil}}},
	}
	env.Schemas = []any{"Animal"}

	got, err := Deserialize(s.ctx, s.encodeEnvelope(env), s.deserializeOpts())
	s.Nil(got)
	s.ErrorIs(err, merr.ErrPropertyMissing)
	s.True(merr.IsStructuralError(err))

	// 可选属性缺失时跳过。
	env.SharedObjects[0].(*wire.Object).Set("Name", "rex")
	got, err = Deserialize(s.ctx, s.encodeEnvelope(env), s.deserializeOpts())
	s.Require().NoError(err)
	s.Equal(&Animal{Name: "rex", Age: 1}, got)
}

func (s *GraphSuite) TestOptionalOmitted() {
	env, err := SerializeEnvelope(s.ctx, &Animal{Name: "stray"}, s.serializeOpts())
	s.Require().NoError(err)
	obj := env.SharedObjects[0].(*wire.Object)
	_, hasOwner := obj.Lookup("Owner")
	s.False(hasOwner)
	tags, hasTags := obj.Lookup("Tags")
	s.True(hasTags)
	s.Nil(tags)
	s.Equal([]string{"Name", "Age", "Tags"}, propertyNames(obj))
}

func (s *GraphSuite) TestConstructorArguments() {
	pet := &Pet{name: "rex", Age: 4}
	env, err := SerializeEnvelope(s.ctx, pet, s.serializeOpts())
	s.Require().NoError(err)
	obj := env.SharedObjects[0].(*wire.Object)
	s.Equal([]wire.Value{"rex"}, obj.ConstructorArguments)
	s.Equal([]string{"Age"}, propertyNames(obj))

	got := s.roundTrip(pet).(*Pet)
	s.Equal("rex", got.name)
	s.Equal(4, got.Age)
}

func (s *GraphSuite) TestConstructorArgumentsSelfReference() {
	env := wire.NewSerialized()
	env.Root = &wire.Reference{Index: 0}
	env.SharedObjects = []wire.Value{
		&wire.Object{SchemaIndex: 0, ConstructorArguments: []wire.Value{&wire.Reference{Index: 0}}, Properties: []wire.Property{{Name: "Age", Value: int64(1)}}},
	}
	env.Schemas = []any{"Pet"}
	_, err := DeserializeEnvelope(s.ctx, env, s.deserializeOpts())
	s.ErrorIs(err, merr.ErrConstructFailed)
	s.Equal(int32(0), s.petBuilds.Load())
}

func (s *GraphSuite) TestInheritanceOrder() {
	d := &Derived{Base: Base{ID: 42}, Label: "child"}
	env, err := SerializeEnvelope(s.ctx, d, s.serializeOpts())
	s.Require().NoError(err)
	s.Equal([]string{"Label", "ID"}, propertyNames(env.SharedObjects[0].(*wire.Object)))

	blob, err := wire.Encode(env)
	s.Require().NoError(err)
	var order []string
	opts := s.deserializeOpts()
	opts.AfterPropertyAssigned = func(value any, slot Slot, container any) any {
		if slot.IsProperty() {
			order = append(order, slot.Property.Name)
		}
		return value
	}
	got, err := Deserialize(s.ctx, blob, opts)
	s.Require().NoError(err)
	s.Equal(d, got)
	s.Equal([]string{"Label", "ID"}, order)
}

func (s *GraphSuite) TestCyclicValueType() {
	l := &Link{}
	l.Next = l
	_, err := Serialize(s.ctx, l, s.serializeOpts())
	s.ErrorIs(err, merr.ErrCyclicValueType)
	s.True(merr.IsStructuralError(err))

	chain := &Link{Next: &Link{}}
	got := s.roundTrip(chain).(*Link)
	s.NotNil(got.Next)
	s.Nil(got.Next.Next)
}

func (s *GraphSuite) TestWildObjects() {
	a := &Animal{Name: "odd", Tags: []string{}, Extra: map[string]int{"legs": 3}}
	env, err := SerializeEnvelope(s.ctx, a, s.serializeOpts())
	s.Require().NoError(err)
	extra, ok := env.SharedObjects[0].(*wire.Object).Lookup("Extra")
	s.True(ok)
	s.Equal(&wire.WildObject{}, extra)

	got := s.roundTrip(a).(*Animal)
	s.Equal(map[string]any{}, got.Extra)

	// wild object 无法赋值给具体类型时保持零值。
	env = wire.NewSerialized()
	env.Root = &wire.Reference{Index: 0}
	env.SharedObjects = []wire.Value{&wire.Object{SchemaIndex: 0, Properties: []wire.Property{
		{Name: "Name", Value: "p"},
		{Name: "Pets", Value: &wire.WildObject{}},
	}}}
	env.Schemas = []any{"Person"}
	person, err := DeserializeEnvelope(s.ctx, env, s.deserializeOpts())
	s.Require().NoError(err)
	s.Nil(person.(*Person).Pets)
}

func (s *GraphSuite) TestSharedArraysAndWildObjects() {
	env := wire.NewSerialized()
	env.Root = &wire.Array{Elements: []wire.Value{
		&wire.Reference{Index: 0}, &wire.Reference{Index: 0},
		&wire.Reference{Index: 1}, &wire.Reference{Index: 1},
	}}
	env.SharedObjects = []wire.Value{
		&wire.Array{Elements: []wire.Value{int64(1), &wire.Reference{Index: 0}}},
		&wire.WildObject{},
	}
	got, err := DeserializeEnvelope(s.ctx, env, s.deserializeOpts())
	s.Require().NoError(err)
	root := got.([]any)
	first, second := root[0].([]any), root[1].([]any)
	s.Equal(reflect.ValueOf(first).Pointer(), reflect.ValueOf(second).Pointer())
	// 共享数组引用自身。
	s.Equal(reflect.ValueOf(first).Pointer(), reflect.ValueOf(first[1]).Pointer())
	s.Equal(reflect.ValueOf(root[2]).Pointer(), reflect.ValueOf(root[3]).Pointer())
}

func (s *GraphSuite) TestHooks() {
	tex := &Texture{Path: "wood.png"}
	m := &Material{Name: "floor", Albedo: tex}

	blob, err := Serialize(s.ctx, m, SerializeOptions{
		Classifier: s.reg,
		BeforeEncode: func(v any) any {
			if t, ok := v.(*Texture); ok {
				return &AssetRef{Path: t.Path}
			}
			return v
		},
	})
	s.Require().NoError(err)

	loaded := map[string]*Texture{"wood.png": tex}
	got, err := Deserialize(s.ctx, blob, DeserializeOptions{
		Resolver: s.reg,
		AfterPropertyAssigned: func(value any, slot Slot, container any) any {
			if ref, ok := value.(*AssetRef); ok && slot.IsProperty() && slot.Property.Name == "Albedo" {
				s.IsType(&Material{}, container)
				s.Equal(-1, slot.Index)
				return loaded[ref.Path]
			}
			return value
		},
	})
	s.Require().NoError(err)
	s.Same(tex, got.(*Material).Albedo)

	blob, err = Serialize(s.ctx, []any{1, 2, 3}, s.serializeOpts())
	s.Require().NoError(err)
	var slots []int
	got, err = Deserialize(s.ctx, blob, DeserializeOptions{
		Resolver: s.reg,
		AfterPropertyAssigned: func(value any, slot Slot, container any) any {
			s.False(slot.IsProperty())
			s.Len(container, 3)
			s.Equal(value, container.([]any)[slot.Index])
			slots = append(slots, slot.Index)
			return value.(int64) * 2
		},
	})
	s.Require().NoError(err)
	s.Equal([]any{int64(2), int64(4), int64(6)}, got)
	s.Equal([]int{0, 1, 2}, slots)
}

func (s *GraphSuite) TestArrayHookDeferredReplacement() {
	p := &Palette{Textures: []*Texture{{Path: "pending"}, {Path: "stone.png"}}}
	blob, err := Serialize(s.ctx, p, s.serializeOpts())
	s.Require().NoError(err)

	type pending struct {
		container any
		index     int
	}
	var deferred []pending
	got, err := Deserialize(s.ctx, blob, DeserializeOptions{
		Resolver: s.reg,
		AfterPropertyAssigned: func(value any, slot Slot, container any) any {
			if tex, ok := value.(*Texture); ok && !slot.IsProperty() && tex.Path == "pending" {
				deferred = append(deferred, pending{container: container, index: slot.Index})
			}
			return value
		},
	})
	s.Require().NoError(err)
	s.Require().Len(deferred, 1)

	// 反序列化返回之后再替换元素，结果必须反映到对象图中。
	loaded := &Texture{Path: "moss.png"}
	d := deferred[0]
	textures, ok := d.container.([]*Texture)
	s.Require().True(ok, "container is %T", d.container)
	textures[d.index] = loaded

	palette := got.(*Palette)
	s.Same(loaded, palette.Textures[0])
	s.Equal("stone.png", palette.Textures[1].Path)
}

func (s *GraphSuite) TestDepthLimit() {
	var head *Node
	for i := 0; i < 100; i++ {
		head = &Node{Name: "n", Next: head}
	}
	_, err := Serialize(s.ctx, head, SerializeOptions{Classifier: s.reg, MaxDepth: 64})
	s.ErrorIs(err, merr.ErrGraphTooDeep)
	s.True(merr.IsStructuralError(err))

	blob, err := Serialize(s.ctx, head, s.serializeOpts())
	s.Require().NoError(err)
	_, err = Deserialize(s.ctx, blob, DeserializeOptions{Resolver: s.reg, MaxDepth: 64})
	s.ErrorIs(err, merr.ErrGraphTooDeep)
	got, err := Deserialize(s.ctx, blob, s.deserializeOpts())
	s.Require().NoError(err)
	s.Equal(head, got)

	// 每个共享对象引用下一个，链长远超默认上限时返回错误而不是耗尽栈。
	const n = 5 * DefaultMaxDepth
	env := wire.NewSerialized()
	env.Root = &wire.Reference{Index: 0}
	env.Schemas = []any{"Node"}
	env.SharedObjects = make([]wire.Value, n)
	for i := range env.SharedObjects {
		var next wire.Value
		if i+1 < n {
			next = &wire.Reference{Index: i + 1}
		}
		env.SharedObjects[i] = &wire.Object{Properties: []wire.Property{
			{Name: "Name", Value: "n"},
			{Name: "Next", Value: next},
		}}
	}
	_, err = DeserializeEnvelope(s.ctx, env, s.deserializeOpts())
	s.ErrorIs(err, merr.ErrGraphTooDeep)
}

func (s *GraphSuite) TestSchemaNotFoundBeforeConstruction() {
	env := wire.NewSerialized()
	env.Root = &wire.Array{Elements: []wire.Value{
		&wire.Reference{Index: 0},
		&wire.Object{SchemaIndex: 1},
	}}
	env.SharedObjects = []wire.Value{&wire.Object{
		SchemaIndex:          0,
		ConstructorArguments: []wire.Value{"rex"},
		Properties:           []wire.Property{{Name: "Age", Value: int64(1)}},
	}}
	env.Schemas = []any{"Pet", "Missing"}

	_, err := Deserialize(s.ctx, s.encodeEnvelope(env), s.deserializeOpts())
	s.ErrorIs(err, merr.ErrSchemaNotFound)
	s.True(merr.IsSchemaError(err))
	s.Equal(int32(0), s.petBuilds.Load())

	failing := schema.ResolverFunc(func(ctx context.Context, id schema.ID) (*schema.ObjectSchema, error) {
		if id == "Missing" {
			return nil, errors.New("registry unavailable")
		}
		return s.reg.Resolve(ctx, id)
	})
	_, err = Deserialize(s.ctx, s.encodeEnvelope(env), DeserializeOptions{Resolver: failing})
	s.ErrorIs(err, merr.ErrSchemaResolveFailed)
	s.True(merr.IsRetryableErr(err))
	s.Equal(int32(0), s.petBuilds.Load())

	panicking := schema.ResolverFunc(func(context.Context, schema.ID) (*schema.ObjectSchema, error) {
		panic("boom")
	})
	_, err = Deserialize(s.ctx, s.encodeEnvelope(env), DeserializeOptions{Resolver: panicking})
	s.ErrorIs(err, merr.ErrServiceInternal)
}

func (s *GraphSuite) TestResolveOncePerSchemaConcurrently() {
	var mu sync.Mutex
	calls := map[any]int{}
	running, peak := atomic.NewInt32(0), atomic.NewInt32(0)
	resolver := schema.ResolverFunc(func(ctx context.Context, id schema.ID) (*schema.ObjectSchema, error) {
		n := running.Inc()
		defer running.Dec()
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		mu.Lock()
		calls[id]++
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		return s.reg.Resolve(ctx, id)
	})

	root := []any{}
	for i := 0; i < 5; i++ {
		root = append(root, &Animal{Name: "a", Tags: []string{}}, &Person{Name: "p"}, &Node{Name: "n"}, &Vec3{})
	}
	blob, err := Serialize(s.ctx, root, s.serializeOpts())
	s.Require().NoError(err)

	_, err = Deserialize(s.ctx, blob, DeserializeOptions{Resolver: resolver, ResolveConcurrency: 2})
	s.Require().NoError(err)
	s.Len(calls, 4)
	for id, n := range calls {
		s.Equal(1, n, id)
	}
	s.LessOrEqual(peak.Load(), int32(2))
}

func (s *GraphSuite) TestMapTargets() {
	reg := registry.New()
	s.Require().NoError(reg.Register(schema.Of[map[string]any]("Bag").Property("a").Optional("b").MustBuild(), "Bag"))

	blob, err := Serialize(s.ctx, map[string]any{"a": 1, "c": "ignored"}, SerializeOptions{Classifier: reg})
	s.Require().NoError(err)
	got, err := Deserialize(s.ctx, blob, DeserializeOptions{Resolver: reg})
	s.Require().NoError(err)
	s.Equal(map[string]any{"a": int64(1)}, got)
}

func (s *GraphSuite) TestAssignErrors() {
	env := wire.NewSerialized()
	env.Root = &wire.Reference{Index: 0}
	env.SharedObjects = []wire.Value{&wire.Object{SchemaIndex: 0, Properties: []wire.Property{
		{Name: "Name", Value: "big"},
		{Name: "Age", Value: int64(1000)},
		{Name: "Tags", Value: nil},
	}}}
	env.Schemas = []any{"Animal"}
	_, err := DeserializeEnvelope(s.ctx, env, s.deserializeOpts())
	s.ErrorIs(err, merr.ErrAssignFailed)

	env.SharedObjects[0].(*wire.Object).Set("Age", int64(1))
	env.SharedObjects[0].(*wire.Object).Set("Tags", &wire.Array{Elements: []wire.Value{int64(5)}})
	_, err = DeserializeEnvelope(s.ctx, env, s.deserializeOpts())
	s.ErrorIs(err, merr.ErrAssignFailed)
}

func (s *GraphSuite) TestInvalidInput() {
	_, err := Deserialize(s.ctx, []byte{0xc1, 0x01}, s.deserializeOpts())
	s.True(merr.IsDecodeError(err))

	blob, err := Serialize(s.ctx, &Node{Name: "n"}, s.serializeOpts())
	s.Require().NoError(err)
	_, err = Deserialize(s.ctx, blob[:len(blob)-2], s.deserializeOpts())
	s.True(merr.IsDecodeError(err))

	env := &wire.Serialized{Version: "2.0.0"}
	_, err = DeserializeEnvelope(s.ctx, env, s.deserializeOpts())
	s.ErrorIs(err, merr.ErrVersionUnsupported)

	env = &wire.Serialized{Root: &wire.Reference{Index: 3}}
	_, err = DeserializeEnvelope(s.ctx, env, s.deserializeOpts())
	s.ErrorIs(err, merr.ErrReferenceOutOfRange)

	_, err = Serialize(s.ctx, complex(1, 2), s.serializeOpts())
	s.ErrorIs(err, merr.ErrEncodeFailed)

	_, err = Serialize(s.ctx, 1, SerializeOptions{})
	s.ErrorIs(err, merr.ErrParameterMissing)
	_, err = Deserialize(s.ctx, blob, DeserializeOptions{})
	s.ErrorIs(err, merr.ErrParameterMissing)
}

func propertyNames(obj *wire.Object) []string {
	names := make([]string, 0, len(obj.Properties))
	for _, p := range obj.Properties {
		names = append(names, p.Name)
	}
	return names
}

func TestGraph(t *testing.T) {
	suite.Run(t, new(GraphSuite))
}
