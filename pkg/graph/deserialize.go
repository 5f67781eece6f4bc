package graph

import (
	"context"
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/objgraph-go/internal/wire"
	"github.com/lk2023060901/objgraph-go/pkg/log"
	"github.com/lk2023060901/objgraph-go/pkg/metrics"
	"github.com/lk2023060901/objgraph-go/pkg/schema"
	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

// Deserialize 从二进制重建对象图并返回根值。
// 任何错误都不会返回部分重建的对象图。
func Deserialize(ctx context.Context, blob []byte, opts DeserializeOptions) (any, error) {
	ctx, span := log.StartSpan(ctx, "objgraph", "deserialize")
	defer span.End()

	start := time.Now()
	root, err := deserialize(ctx, blob, opts)
	metrics.GraphDeserializeTotal.WithLabelValues(metrics.StatusLabel(err)).Inc()
	if err != nil {
		log.Ctx(ctx).Debug("deserialize failed", zap.Int("bytes", len(blob)), zap.Error(err))
		return nil, err
	}
	metrics.GraphLatency.WithLabelValues(metrics.DeserializeLabel).Observe(float64(time.Since(start).Milliseconds()))
	metrics.GraphBlobBytes.WithLabelValues(metrics.DeserializeLabel).Observe(float64(len(blob)))
	return root, nil
}

func deserialize(ctx context.Context, blob []byte, opts DeserializeOptions) (any, error) {
	env, err := wire.Decode(blob)
	if err != nil {
		return nil, err
	}
	return DeserializeEnvelope(ctx, env, opts)
}

// DeserializeEnvelope 从已解码的信封重建对象图。
//
// 所有 schema 标识在构造任何对象之前一次性并发解析；随后深度优先重建，
// 共享对象在赋值属性之前登记到重建表，环上的再次引用得到同一个实例。
func DeserializeEnvelope(ctx context.Context, env *wire.Serialized, opts DeserializeOptions) (any, error) {
	if env == nil {
		return nil, merr.WrapErrParameterMissing("envelope")
	}
	if opts.Resolver == nil {
		return nil, merr.WrapErrParameterMissing("resolver")
	}
	if env.Version != "" {
		if err := wire.CheckVersion(env.Version); err != nil {
			return nil, err
		}
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}

	schemas, err := resolveSchemas(ctx, opts.Resolver, env.Schemas, opts.resolveConcurrency())
	if err != nil {
		return nil, err
	}

	d := &deserializer{
		env:     env,
		schemas: schemas,
		after:   opts.AfterPropertyAssigned,
		table:   make([]tableSlot, len(env.SharedObjects)),

		maxDepth: opts.maxDepth(),
	}
	root, err := d.value(env.Root)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Debug("object graph deserialized",
		zap.String("root", wire.KindOf(env.Root).String()),
		zap.Int("sharedObjects", len(env.SharedObjects)),
		zap.Int("schemas", len(env.Schemas)))
	return root, nil
}

type slotState int

const (
	slotEmpty slotState = iota
	// slotConstructing 表示正在重建构造参数，实例尚未分配。
	slotConstructing
	slotConstructed
	slotComplete
)

// tableSlot 是重建表中与共享对象一一对应的槽位。
type tableSlot struct {
	state    slotState
	instance any
}

// deserializer 持有单次反序列化的全部状态。
type deserializer struct {
	env     *wire.Serialized
	schemas []*schema.ObjectSchema
	after   AfterAssignFunc
	table   []tableSlot

	depth    int
	maxDepth int
}

func (d *deserializer) value(v wire.Value) (any, error) {
	return d.valueAs(v, nil)
}

// valueAs 重建一个值，typ 为其写入位置的类型，未知时为 nil。
// 数组按 typ 直接分配目标切片，钩子看到的容器就是最终写入的切片。
func (d *deserializer) valueAs(v wire.Value, typ reflect.Type) (any, error) {
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > d.maxDepth {
		return nil, merr.WrapErrGraphTooDeep(d.maxDepth)
	}

	switch rec := v.(type) {
	case *wire.Object:
		sch, err := d.schemaOf(rec)
		if err != nil {
			return nil, err
		}
		instance, err := d.construct(rec, sch)
		if err != nil {
			return nil, err
		}
		if err := d.assignProperties(instance, rec, sch); err != nil {
			return nil, err
		}
		return instance, nil
	case *wire.Array:
		out := newArray(len(rec.Elements), typ)
		if err := d.fillArray(out, rec); err != nil {
			return nil, err
		}
		return out.Interface(), nil
	case *wire.WildObject:
		return map[string]any{}, nil
	case *wire.Reference:
		return d.reference(rec.Index, typ)
	case *big.Int:
		if rec == nil {
			return nil, nil
		}
		return new(big.Int).Set(rec), nil
	default:
		if wire.KindOf(v) != wire.KindPrimitive {
			return nil, merr.WrapErrUnknownValueKind(v)
		}
		return v, nil
	}
}

func (d *deserializer) schemaOf(rec *wire.Object) (*schema.ObjectSchema, error) {
	if rec.SchemaIndex < 0 || rec.SchemaIndex >= len(d.schemas) {
		return nil, merr.WrapErrSchemaIndexOutOfRange(rec.SchemaIndex, len(d.schemas))
	}
	return d.schemas[rec.SchemaIndex], nil
}

// reference 通过重建表解析共享对象：首次访问时构造并登记，随后才递归赋值。
// 共享数组按首次访问时的目标类型分配，之后写入其他类型的位置时会被转换为副本。
func (d *deserializer) reference(index int, typ reflect.Type) (any, error) {
	if index < 0 || index >= len(d.table) {
		return nil, merr.WrapErrReferenceOutOfRange(index, len(d.table))
	}
	slot := &d.table[index]
	switch slot.state {
	case slotConstructed, slotComplete:
		return slot.instance, nil
	case slotConstructing:
		return nil, merr.WrapErrConstructFailed(describeShared(d.env.SharedObjects[index], d.schemas),
			errors.New("constructor arguments reference the object under construction"))
	}

	switch rec := d.env.SharedObjects[index].(type) {
	case *wire.Object:
		sch, err := d.schemaOf(rec)
		if err != nil {
			return nil, err
		}
		slot.state = slotConstructing
		instance, err := d.construct(rec, sch)
		if err != nil {
			return nil, err
		}
		slot.state, slot.instance = slotConstructed, instance
		if err := d.assignProperties(instance, rec, sch); err != nil {
			return nil, err
		}
	case *wire.Array:
		out := newArray(len(rec.Elements), typ)
		slot.state, slot.instance = slotConstructed, out.Interface()
		if err := d.fillArray(out, rec); err != nil {
			return nil, err
		}
	case *wire.WildObject:
		slot.state, slot.instance = slotConstructed, map[string]any{}
	default:
		return nil, merr.WrapErrUnknownValueKind(rec, "shared object")
	}
	slot.state = slotComplete
	return slot.instance, nil
}

func (d *deserializer) construct(rec *wire.Object, sch *schema.ObjectSchema) (any, error) {
	var args []any
	if rec.ConstructorArguments != nil {
		args = make([]any, len(rec.ConstructorArguments))
		for i, raw := range rec.ConstructorArguments {
			arg, err := d.value(raw)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
	}
	return sch.New(args...)
}

// assignProperties 按继承链顺序（自身在前，父链在后）赋值属性。
func (d *deserializer) assignProperties(target any, rec *wire.Object, sch *schema.ObjectSchema) error {
	props := make(map[string]wire.Value, len(rec.Properties))
	for _, p := range rec.Properties {
		props[p.Name] = p.Value
	}

	for _, cur := range sch.Chain() {
		for _, p := range cur.Properties {
			raw, ok := props[p.Name]
			if !ok {
				if p.Optional {
					continue
				}
				return merr.WrapErrPropertyMissing(cur.String(), p.Name)
			}
			var typ reflect.Type
			if p.Assign == nil {
				typ = fieldType(target, p.Name)
			}
			val, err := d.valueAs(raw, typ)
			if err != nil {
				return err
			}
			if d.after != nil {
				val = d.after(val, Slot{Property: p, Index: -1}, target)
			}
			if p.Assign != nil {
				err = p.Assign(target, val)
			} else {
				err = writeField(target, p.Name, val)
			}
			if err != nil {
				return merr.WrapErrAssignFailed(cur.String(), p.Name, err)
			}
		}
	}
	return nil
}

// newArray 分配数组容器：typ 为具体切片类型时分配该类型，否则为 []any。
func newArray(n int, typ reflect.Type) reflect.Value {
	if typ != nil && typ.Kind() == reflect.Slice {
		return reflect.MakeSlice(typ, n, n)
	}
	return reflect.ValueOf(make([]any, n))
}

// fillArray 按下标顺序填充 out。钩子收到的容器就是 out 本身，
// 钩子保存容器后再写入的元素同样会反映在最终的对象图中。
func (d *deserializer) fillArray(out reflect.Value, rec *wire.Array) error {
	container := out.Interface()
	elemType := out.Type().Elem()
	for i, raw := range rec.Elements {
		val, err := d.valueAs(raw, elemType)
		if err != nil {
			return err
		}
		if err := setElem(out, i, val); err != nil {
			return err
		}
		if d.after != nil {
			if err := setElem(out, i, d.after(out.Index(i).Interface(), Slot{Index: i}, container)); err != nil {
				return err
			}
		}
	}
	return nil
}

func setElem(out reflect.Value, i int, val any) error {
	converted, err := convert(val, out.Type().Elem())
	if err != nil {
		return merr.WrapErrAssignFailed(out.Type().String(), fmt.Sprintf("[%d]", i), err)
	}
	out.Index(i).Set(converted)
	return nil
}

func describeShared(v wire.Value, schemas []*schema.ObjectSchema) string {
	if obj, ok := v.(*wire.Object); ok && obj.SchemaIndex >= 0 && obj.SchemaIndex < len(schemas) {
		return schemas[obj.SchemaIndex].String()
	}
	return wire.KindOf(v).String()
}
