package wire

import (
	"strconv"

	"github.com/blang/semver/v4"

	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

// CurrentVersion 是当前写出的信封版本。
const CurrentVersion = "1.0.0"

var currentVersion = semver.MustParse(CurrentVersion)

// Serialized 是一次序列化的顶层信封。
//
// 信封与其中的表在每次序列化时新建，只写一次、读一次。
type Serialized struct {
	Version string
	Root    Value
	// SharedObjects 只包含 *Object、*Array、*WildObject。
	SharedObjects []Value
	// Schemas 按首次使用顺序保存去重后的 schema 标识。
	Schemas []any
}

// NewSerialized 创建一个带当前版本号的空信封。
func NewSerialized() *Serialized {
	return &Serialized{Version: CurrentVersion}
}

// CheckVersion 校验信封版本，主版本号不同视为不兼容。
func CheckVersion(version string) error {
	v, err := semver.ParseTolerant(version)
	if err != nil {
		return merr.WrapErrDecodeFailed(err, "parse envelope version")
	}
	if v.Major != currentVersion.Major {
		return merr.WrapErrVersionUnsupported(version, CurrentVersion)
	}
	return nil
}

// Validate 对信封做结构校验：
//   - SharedObjects 中只允许出现可共享的记录；
//   - 所有引用下标与 schema 下标都在范围内；
//   - 不存在无法识别的值类型。
func (s *Serialized) Validate() error {
	for i, shared := range s.SharedObjects {
		if !IsShareable(shared) {
			return merr.WrapErrUnknownValueKind(shared, "shared object at index", strconv.Itoa(i))
		}
		if err := s.validateValue(shared); err != nil {
			return err
		}
	}
	return s.validateValue(s.Root)
}

func (s *Serialized) validateValue(v Value) error {
	switch rec := v.(type) {
	case *Object:
		if rec.SchemaIndex < 0 || rec.SchemaIndex >= len(s.Schemas) {
			return merr.WrapErrSchemaIndexOutOfRange(rec.SchemaIndex, len(s.Schemas))
		}
		for _, arg := range rec.ConstructorArguments {
			if err := s.validateValue(arg); err != nil {
				return err
			}
		}
		for _, p := range rec.Properties {
			if err := s.validateValue(p.Value); err != nil {
				return err
			}
		}
	case *Array:
		for _, elem := range rec.Elements {
			if err := s.validateValue(elem); err != nil {
				return err
			}
		}
	case *Reference:
		if rec.Index < 0 || rec.Index >= len(s.SharedObjects) {
			return merr.WrapErrReferenceOutOfRange(rec.Index, len(s.SharedObjects))
		}
	default:
		if KindOf(v) == KindInvalid {
			return merr.WrapErrUnknownValueKind(v)
		}
	}
	return nil
}
