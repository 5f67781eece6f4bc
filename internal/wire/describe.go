package wire

import (
	"math/big"
)

// Describe 把信封转换为只含 map/slice/原始值的结构，便于以 JSON 展示。
// 记录类型以 "$object"、"$array"、"$ref"、"$wild" 为键标注。
func Describe(s *Serialized) map[string]any {
	shared := make([]any, len(s.SharedObjects))
	for i, v := range s.SharedObjects {
		shared[i] = DescribeValue(v)
	}
	schemas := make([]any, len(s.Schemas))
	copy(schemas, s.Schemas)
	return map[string]any{
		keyVersion:       s.Version,
		keyRoot:          DescribeValue(s.Root),
		keySharedObjects: shared,
		keySchemas:       schemas,
	}
}

func DescribeValue(v Value) any {
	switch rec := v.(type) {
	case *Object:
		props := make(map[string]any, len(rec.Properties))
		for _, p := range rec.Properties {
			props[p.Name] = DescribeValue(p.Value)
		}
		body := map[string]any{
			keySchema:     rec.SchemaIndex,
			keyProperties: props,
		}
		if rec.ConstructorArguments != nil {
			args := make([]any, len(rec.ConstructorArguments))
			for i, arg := range rec.ConstructorArguments {
				args[i] = DescribeValue(arg)
			}
			body[keyConstructorArguments] = args
		}
		return map[string]any{"$object": body}
	case *Array:
		elems := make([]any, len(rec.Elements))
		for i, elem := range rec.Elements {
			elems[i] = DescribeValue(elem)
		}
		return map[string]any{"$array": elems}
	case *Reference:
		return map[string]any{"$ref": rec.Index}
	case *WildObject:
		return map[string]any{"$wild": true}
	case *big.Int:
		if rec == nil {
			return nil
		}
		return map[string]any{"$bigint": rec.String()}
	default:
		return v
	}
}
