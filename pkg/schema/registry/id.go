package registry

import (
	"fmt"

	"github.com/lk2023060901/objgraph-go/pkg/schema"
)

// ModuleExportID 以“模块 + 导出名”标识一个 schema。
// Module 为空表示全局导出。线上格式为 {"module"?: string, "exportName": string}。
type ModuleExportID struct {
	Module     string `msgpack:"module,omitempty" json:"module,omitempty"`
	ExportName string `msgpack:"exportName" json:"exportName"`
}

func (id ModuleExportID) String() string {
	if id.Module == "" {
		return id.ExportName
	}
	return id.Module + "#" + id.ExportName
}

// asModuleExport 把解码得到的 map 或 ModuleExportID 统一为 ModuleExportID。
func asModuleExport(id schema.ID) (ModuleExportID, bool) {
	switch v := id.(type) {
	case ModuleExportID:
		return v, v.ExportName != ""
	case *ModuleExportID:
		if v == nil {
			return ModuleExportID{}, false
		}
		return *v, v.ExportName != ""
	case map[string]any:
		name, ok := v["exportName"].(string)
		if !ok || name == "" {
			return ModuleExportID{}, false
		}
		out := ModuleExportID{ExportName: name}
		if module, present := v["module"]; present && module != nil {
			str, ok := module.(string)
			if !ok {
				return ModuleExportID{}, false
			}
			out.Module = str
		}
		return out, true
	default:
		return ModuleExportID{}, false
	}
}

// intKey 以符号加绝对值表示整数标识，int64 与 uint64 的全部取值都能无损比较。
type intKey struct {
	neg bool
	abs uint64
}

func signedKey(v int64) intKey {
	if v < 0 {
		return intKey{neg: true, abs: uint64(-(v + 1)) + 1}
	}
	return intKey{abs: uint64(v)}
}

// asInteger 把各类整数标识统一为 intKey。
// msgpack 解码时无符号格式会得到 uint8..uint64，有符号格式得到 int8..int64。
func asInteger(id schema.ID) (intKey, bool) {
	switch v := id.(type) {
	case int:
		return signedKey(int64(v)), true
	case int8:
		return signedKey(int64(v)), true
	case int16:
		return signedKey(int64(v)), true
	case int32:
		return signedKey(int64(v)), true
	case int64:
		return signedKey(v), true
	case uint:
		return intKey{abs: uint64(v)}, true
	case uint8:
		return intKey{abs: uint64(v)}, true
	case uint16:
		return intKey{abs: uint64(v)}, true
	case uint32:
		return intKey{abs: uint64(v)}, true
	case uint64:
		return intKey{abs: v}, true
	default:
		return intKey{}, false
	}
}

// IDsEqual 比较两个标识：字符串按值比较，整数按数值比较，模块导出按模块与导出名比较；
// 不同种类的标识永不相等。
func IDsEqual(a, b schema.ID) bool {
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return ok && sa == sb
	}
	if ia, ok := asInteger(a); ok {
		ib, ok := asInteger(b)
		return ok && ia == ib
	}
	if ma, ok := asModuleExport(a); ok {
		mb, ok := asModuleExport(b)
		return ok && ma == mb
	}
	return false
}

func describeID(id schema.ID) string {
	if m, ok := asModuleExport(id); ok {
		return m.String()
	}
	return fmt.Sprint(id)
}
