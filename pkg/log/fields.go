package log

import (
	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameSchema    = "schema"
	FieldNameOperation = "op"
	FieldNameKey       = "key"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldSchema 返回描述 schema 名称的字段。
func FieldSchema(name string) zap.Field {
	return zap.String(FieldNameSchema, name)
}

func FieldOperation(op string) zap.Field {
	return zap.String(FieldNameOperation, op)
}

// FieldKey 返回存储 key 字段。
func FieldKey(key string) zap.Field {
	return zap.String(FieldNameKey, key)
}
