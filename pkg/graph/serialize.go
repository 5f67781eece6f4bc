package graph

import (
	"context"
	"math/big"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/objgraph-go/internal/wire"
	"github.com/lk2023060901/objgraph-go/pkg/log"
	"github.com/lk2023060901/objgraph-go/pkg/metrics"
	"github.com/lk2023060901/objgraph-go/pkg/schema"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
	"github.com/lk2023060901/objgraph-go/pkg/util/typeutil"
)

// Serialize 把以 root 为根的对象图序列化为二进制。
func Serialize(ctx context.Context, root any, opts SerializeOptions) ([]byte, error) {
	ctx, span := log.StartSpan(ctx, "objgraph", "serialize")
	defer span.End()

	start := time.Now()
	data, err := serialize(ctx, root, opts)
	metrics.GraphSerializeTotal.WithLabelValues(metrics.StatusLabel(err)).Inc()
	if err != nil {
		log.Ctx(ctx).Debug("serialize failed", zap.Error(err))
		return nil, err
	}
	metrics.GraphLatency.WithLabelValues(metrics.SerializeLabel).Observe(float64(time.Since(start).Milliseconds()))
	metrics.GraphBlobBytes.WithLabelValues(metrics.SerializeLabel).Observe(float64(len(data)))
	return data, nil
}

func serialize(ctx context.Context, root any, opts SerializeOptions) ([]byte, error) {
	env, err := SerializeEnvelope(ctx, root, opts)
	if err != nil {
		return nil, err
	}
	data, err := wire.Encode(env)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Debug("object graph serialized",
		zap.String("root", wire.KindOf(env.Root).String()),
		zap.Int("sharedObjects", len(env.SharedObjects)),
		zap.Int("schemas", len(env.Schemas)),
		zap.Int("bytes", len(data)))
	return data, nil
}

// SerializeEnvelope 遍历对象图并生成信封，不做二进制编码。
func SerializeEnvelope(ctx context.Context, root any, opts SerializeOptions) (*wire.Serialized, error) {
	if opts.Classifier == nil {
		return nil, merr.WrapErrParameterMissing("classifier")
	}
	s := &serializer{
		ctx:        ctx,
		classifier: opts.Classifier,
		before:     opts.BeforeEncode,
		env:        wire.NewSerialized(),
		shared:     map[identity]int{},
		inPlace:    typeutil.NewSet[identity](),
		maxDepth:   maxDepthOrDefault(opts.MaxDepth),
	}
	rootValue, err := s.value(root)
	if err != nil {
		return nil, err
	}
	s.env.Root = rootValue
	if s.env.SharedObjects == nil {
		s.env.SharedObjects = []wire.Value{}
	}
	if s.env.Schemas == nil {
		s.env.Schemas = []any{}
	}

	metrics.GraphSharedObjects.Observe(float64(len(s.env.SharedObjects)))
	if s.wild > 0 {
		metrics.GraphWildObjectsTotal.Add(float64(s.wild))
	}
	return s.env, nil
}

// serializer 持有单次序列化的全部状态。
type serializer struct {
	ctx        context.Context
	classifier schema.Classifier
	before     func(any) any
	env        *wire.Serialized

	// shared 记录已分配共享槽位的实例。
	shared map[identity]int
	// inPlace 记录正在原地序列化的值类型实例，用于发现值类型的环。
	inPlace typeutil.Set[identity]

	wild int

	depth    int
	maxDepth int
}

func (s *serializer) value(v any) (wire.Value, error) {
	s.depth++
	defer func() { s.depth-- }()
	if s.depth > s.maxDepth {
		return nil, merr.WrapErrGraphTooDeep(s.maxDepth)
	}
	if s.before != nil {
		v = s.before(v)
	}
	return s.standard(v)
}

func (s *serializer) standard(v any) (wire.Value, error) {
	if p, ok := primitive(v); ok {
		return p, nil
	}

	rv := reflect.ValueOf(v)
	if isAbsent(rv) {
		return nil, nil
	}
	if p, ok := namedPrimitive(rv); ok {
		return p, nil
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return s.array(rv)
	case reflect.Complex64, reflect.Complex128, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, merr.WrapErrEncodeUnsupportedType(v)
	}

	sch, id, ok := s.classifier.Classify(v)
	if !ok || sch == nil {
		return s.wildObject(v), nil
	}
	if sch.ValueType {
		return s.valueType(v, rv, sch, id)
	}
	return s.sharedObject(v, rv, sch, id)
}

func (s *serializer) array(rv reflect.Value) (wire.Value, error) {
	elems := make([]wire.Value, rv.Len())
	for i := range elems {
		elem, err := s.value(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		elems[i] = elem
	}
	return &wire.Array{Elements: elems}, nil
}

func (s *serializer) wildObject(v any) wire.Value {
	s.wild++
	log.Ctx(s.ctx).RatedDebug(1, "object without schema serialized as wild object",
		zap.String("type", reflect.TypeOf(v).String()))
	return &wire.WildObject{}
}

func (s *serializer) valueType(v any, rv reflect.Value, sch *schema.ObjectSchema, id schema.ID) (wire.Value, error) {
	key, identifiable := identityOf(rv)
	if identifiable {
		if s.inPlace.Contain(key) {
			return nil, merr.WrapErrCyclicValueType(sch.String())
		}
		s.inPlace.Insert(key)
		defer s.inPlace.Remove(key)
	}
	return s.object(v, sch, id)
}

// sharedObject 为实例分配共享槽位并在槽位中原地序列化，使用处总是得到引用。
// 槽位在递归之前登记，因此环上的再次访问直接得到引用。
func (s *serializer) sharedObject(v any, rv reflect.Value, sch *schema.ObjectSchema, id schema.ID) (wire.Value, error) {
	key, identifiable := identityOf(rv)
	if identifiable {
		if index, ok := s.shared[key]; ok {
			return &wire.Reference{Index: index}, nil
		}
	}

	index := len(s.env.SharedObjects)
	s.env.SharedObjects = append(s.env.SharedObjects, nil)
	if identifiable {
		s.shared[key] = index
	}
	obj, err := s.object(v, sch, id)
	if err != nil {
		return nil, err
	}
	s.env.SharedObjects[index] = obj
	return &wire.Reference{Index: index}, nil
}

// object 原地序列化一个对象：先属性（自身在前，父链在后），再构造参数。
func (s *serializer) object(v any, sch *schema.ObjectSchema, id schema.ID) (*wire.Object, error) {
	props := sch.AllProperties()
	obj := &wire.Object{
		SchemaIndex: s.schemaIndex(id),
		Properties:  make([]wire.Property, 0, len(props)),
	}
	for _, p := range props {
		raw, present := readProperty(v, p)
		if !present {
			if p.Optional {
				continue
			}
			raw = nil
		}
		val, err := s.value(raw)
		if err != nil {
			return nil, err
		}
		obj.Properties = append(obj.Properties, wire.Property{Name: p.Name, Value: val})
	}

	if sch.ConstructArguments != nil {
		args := sch.ConstructArguments(v)
		obj.ConstructorArguments = make([]wire.Value, len(args))
		for i, arg := range args {
			val, err := s.value(arg)
			if err != nil {
				return nil, err
			}
			obj.ConstructorArguments[i] = val
		}
	}
	return obj, nil
}

// schemaIndex 返回标识在 schema 表中的下标，首次出现时追加。
func (s *serializer) schemaIndex(id schema.ID) int {
	for i, existing := range s.env.Schemas {
		if s.classifier.IDsEqual(existing, id) {
			return i
		}
	}
	s.env.Schemas = append(s.env.Schemas, id)
	return len(s.env.Schemas) - 1
}

func readProperty(source any, p *schema.PropertySchema) (any, bool) {
	if p.Get != nil {
		v, ok := p.Get(source)
		if ok && isAbsent(reflect.ValueOf(v)) {
			return nil, false
		}
		return v, ok
	}
	return readField(source, p.Name)
}

// primitive 处理内置原始类型，整数统一为 int64/uint64，浮点数统一为 float64。
func primitive(v any) (wire.Value, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case bool, string, int64, uint64, float64:
		return val, true
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case uint:
		return uint64(val), true
	case uint8:
		return uint64(val), true
	case uint16:
		return uint64(val), true
	case uint32:
		return uint64(val), true
	case float32:
		return float64(val), true
	case []byte:
		if val == nil {
			return nil, true
		}
		return append([]byte{}, val...), true
	case *big.Int:
		if val == nil {
			return nil, true
		}
		return new(big.Int).Set(val), true
	default:
		return nil, false
	}
}

// namedPrimitive 处理底层为原始类型的具名类型，例如 type Level int。
func namedPrimitive(rv reflect.Value) (wire.Value, bool) {
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.String:
		return rv.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return append([]byte{}, rv.Bytes()...), true
		}
	}
	return nil, false
}
