package wire

import (
	"bytes"
	"math"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

// maxNestingDepth 限制内联记录（数组、值类型对象）的嵌套层数，防止恶意输入耗尽栈。
const maxNestingDepth = 4096

var (
	errTruncated   = errors.New("declared length exceeds remaining input")
	errTooDeep     = errors.New("nesting too deep")
	errBareArray   = errors.New("untagged array in value position")
	errTrailing    = errors.New("trailing bytes after payload")
	errNoVersion   = errors.New("envelope without version")
	errNoSchemaIdx = errors.New("object record without schema index")
	errNoIndex     = errors.New("reference record without index")
	errNotEnvelope = errors.New("envelope is not a map")
)

// Decode 将二进制解码为信封。
//
// 任何格式错误都返回 merr.ErrDecodeFailed；主版本号不兼容返回 merr.ErrVersionUnsupported。
// 解码只负责格式层面的检查，引用与 schema 下标的范围由 Serialized.Validate 校验。
func Decode(data []byte) (*Serialized, error) {
	d := newDecoder(data, 0)
	s, err := d.decodeEnvelope()
	if err != nil {
		return nil, err
	}
	if err := d.expectEOF(); err != nil {
		return nil, err
	}
	if err := CheckVersion(s.Version); err != nil {
		return nil, err
	}
	return s, nil
}

// DecodeValue 单独解码一个值，与 EncodeValue 对应。
func DecodeValue(data []byte) (Value, error) {
	d := newDecoder(data, 0)
	v, err := d.decodeValue()
	if err != nil {
		return nil, err
	}
	if err := d.expectEOF(); err != nil {
		return nil, err
	}
	return v, nil
}

type decoder struct {
	r     *bytes.Reader
	dec   *msgpack.Decoder
	depth int
}

func newDecoder(data []byte, depth int) *decoder {
	r := bytes.NewReader(data)
	return &decoder{
		r:     r,
		dec:   msgpack.NewDecoder(r),
		depth: depth,
	}
}

func (d *decoder) fail(err error, msg ...string) error {
	return merr.WrapErrDecodeFailed(err, msg...)
}

func (d *decoder) expectEOF() error {
	if d.r.Len() != 0 {
		return d.fail(errTrailing)
	}
	return nil
}

// checkLen 拒绝声明长度超过剩余字节数的集合，每个元素至少占 minSize 字节。
func (d *decoder) checkLen(n int, minSize int) error {
	if n < 0 {
		return nil
	}
	if n*minSize > d.r.Len() {
		return d.fail(errTruncated)
	}
	return nil
}

func (d *decoder) decodeEnvelope() (*Serialized, error) {
	c, err := d.dec.PeekCode()
	if err != nil {
		return nil, d.fail(err, "peek envelope")
	}
	if !isMapCode(c) {
		return nil, d.fail(errNotEnvelope)
	}
	n, err := d.dec.DecodeMapLen()
	if err != nil {
		return nil, d.fail(err, "decode envelope")
	}
	if err := d.checkLen(n, 2); err != nil {
		return nil, err
	}

	s := &Serialized{}
	hasVersion := false
	for i := 0; i < n; i++ {
		key, err := d.dec.DecodeString()
		if err != nil {
			return nil, d.fail(err, "decode envelope key")
		}
		switch key {
		case keyVersion:
			if s.Version, err = d.dec.DecodeString(); err != nil {
				return nil, d.fail(err, "decode version")
			}
			hasVersion = true
		case keyRoot:
			if s.Root, err = d.decodeValue(); err != nil {
				return nil, err
			}
		case keySharedObjects:
			if s.SharedObjects, err = d.decodeValues(); err != nil {
				return nil, err
			}
		case keySchemas:
			if s.Schemas, err = d.decodeSchemaIDs(); err != nil {
				return nil, err
			}
		default:
			if err := d.dec.Skip(); err != nil {
				return nil, d.fail(err, "skip unknown envelope key")
			}
		}
	}
	if !hasVersion {
		return nil, d.fail(errNoVersion)
	}
	return s, nil
}

func (d *decoder) decodeSchemaIDs() ([]any, error) {
	n, err := d.dec.DecodeArrayLen()
	if err != nil {
		return nil, d.fail(err, "decode schema table")
	}
	if n < 0 {
		return nil, nil
	}
	if err := d.checkLen(n, 1); err != nil {
		return nil, err
	}
	ids := make([]any, n)
	for i := range ids {
		if ids[i], err = d.dec.DecodeInterfaceLoose(); err != nil {
			return nil, d.fail(err, "decode schema id")
		}
	}
	return ids, nil
}

func (d *decoder) decodeValues() ([]Value, error) {
	n, err := d.dec.DecodeArrayLen()
	if err != nil {
		return nil, d.fail(err, "decode array")
	}
	if n < 0 {
		return nil, nil
	}
	if err := d.checkLen(n, 1); err != nil {
		return nil, err
	}
	values := make([]Value, n)
	for i := range values {
		if values[i], err = d.decodeValue(); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func (d *decoder) decodeValue() (Value, error) {
	c, err := d.dec.PeekCode()
	if err != nil {
		return nil, d.fail(err, "peek value")
	}

	switch {
	case c == msgpcode.Nil:
		if err := d.dec.DecodeNil(); err != nil {
			return nil, d.fail(err)
		}
		return nil, nil
	case c == msgpcode.False || c == msgpcode.True:
		v, err := d.dec.DecodeBool()
		if err != nil {
			return nil, d.fail(err)
		}
		return v, nil
	case msgpcode.IsFixedNum(c),
		c == msgpcode.Int8, c == msgpcode.Int16, c == msgpcode.Int32, c == msgpcode.Int64:
		v, err := d.dec.DecodeInt64()
		if err != nil {
			return nil, d.fail(err)
		}
		return v, nil
	case c == msgpcode.Uint8, c == msgpcode.Uint16, c == msgpcode.Uint32, c == msgpcode.Uint64:
		v, err := d.dec.DecodeUint64()
		if err != nil {
			return nil, d.fail(err)
		}
		if v <= math.MaxInt64 {
			return int64(v), nil
		}
		return v, nil
	case c == msgpcode.Float || c == msgpcode.Double:
		v, err := d.dec.DecodeFloat64()
		if err != nil {
			return nil, d.fail(err)
		}
		return v, nil
	case msgpcode.IsString(c):
		v, err := d.dec.DecodeString()
		if err != nil {
			return nil, d.fail(err)
		}
		return v, nil
	case msgpcode.IsBin(c):
		v, err := d.dec.DecodeBytes()
		if err != nil {
			return nil, d.fail(err)
		}
		return v, nil
	case isMapCode(c):
		// 未带扩展标记的 map 即 wild object，内容不做解释。
		if err := d.dec.Skip(); err != nil {
			return nil, d.fail(err, "skip wild object")
		}
		return &WildObject{}, nil
	case isArrayCode(c):
		return nil, d.fail(errBareArray)
	case msgpcode.IsExt(c):
		return d.decodeExt()
	default:
		return nil, d.fail(errors.Newf("unexpected code 0x%x", c))
	}
}

func (d *decoder) decodeExt() (Value, error) {
	if d.depth >= maxNestingDepth {
		return nil, d.fail(errTooDeep)
	}
	tag, n, err := d.dec.DecodeExtHeader()
	if err != nil {
		return nil, d.fail(err, "decode ext header")
	}
	if err := d.checkLen(n, 1); err != nil {
		return nil, err
	}
	payload := make([]byte, n)
	if err := d.dec.ReadFull(payload); err != nil {
		return nil, d.fail(err, "read ext payload")
	}

	if tag == ExtBigInt {
		return readBigInt(payload)
	}

	sub := newDecoder(payload, d.depth+1)
	var v Value
	switch tag {
	case ExtObject:
		v, err = sub.decodeObjectPayload()
	case ExtArray:
		v, err = sub.decodeArrayPayload()
	case ExtReference:
		v, err = sub.decodeReferencePayload()
	default:
		return nil, d.fail(errors.Newf("unknown ext type %d", tag))
	}
	if err != nil {
		return nil, err
	}
	if err := sub.expectEOF(); err != nil {
		return nil, err
	}
	return v, nil
}

func (d *decoder) decodeIndex() (int, error) {
	v, err := d.dec.DecodeInt64()
	if err != nil {
		return 0, d.fail(err, "decode index")
	}
	if v < 0 || v > math.MaxInt32 {
		return 0, d.fail(errors.Newf("index %d out of bounds", v))
	}
	return int(v), nil
}

func (d *decoder) decodeRecordLen() (int, error) {
	n, err := d.dec.DecodeMapLen()
	if err != nil {
		return 0, d.fail(err, "decode record")
	}
	if err := d.checkLen(n, 2); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *decoder) decodeObjectPayload() (*Object, error) {
	n, err := d.decodeRecordLen()
	if err != nil {
		return nil, err
	}
	obj := &Object{}
	hasSchema := false
	for i := 0; i < n; i++ {
		key, err := d.dec.DecodeString()
		if err != nil {
			return nil, d.fail(err, "decode object key")
		}
		switch key {
		case keySchema:
			if obj.SchemaIndex, err = d.decodeIndex(); err != nil {
				return nil, err
			}
			hasSchema = true
		case keyConstructorArguments:
			args, err := d.decodeValues()
			if err != nil {
				return nil, err
			}
			if args == nil {
				args = []Value{}
			}
			obj.ConstructorArguments = args
		case keyProperties:
			if obj.Properties, err = d.decodeProperties(); err != nil {
				return nil, err
			}
		default:
			if err := d.dec.Skip(); err != nil {
				return nil, d.fail(err)
			}
		}
	}
	if !hasSchema {
		return nil, d.fail(errNoSchemaIdx)
	}
	return obj, nil
}

func (d *decoder) decodeProperties() ([]Property, error) {
	n, err := d.dec.DecodeMapLen()
	if err != nil {
		return nil, d.fail(err, "decode properties")
	}
	if n < 0 {
		return nil, nil
	}
	if err := d.checkLen(n, 2); err != nil {
		return nil, err
	}
	props := make([]Property, n)
	for i := range props {
		if props[i].Name, err = d.dec.DecodeString(); err != nil {
			return nil, d.fail(err, "decode property name")
		}
		if props[i].Value, err = d.decodeValue(); err != nil {
			return nil, err
		}
	}
	return props, nil
}

func (d *decoder) decodeArrayPayload() (*Array, error) {
	n, err := d.decodeRecordLen()
	if err != nil {
		return nil, err
	}
	arr := &Array{}
	for i := 0; i < n; i++ {
		key, err := d.dec.DecodeString()
		if err != nil {
			return nil, d.fail(err, "decode array key")
		}
		if key != keyElements {
			if err := d.dec.Skip(); err != nil {
				return nil, d.fail(err)
			}
			continue
		}
		if arr.Elements, err = d.decodeValues(); err != nil {
			return nil, err
		}
	}
	if arr.Elements == nil {
		arr.Elements = []Value{}
	}
	return arr, nil
}

func (d *decoder) decodeReferencePayload() (*Reference, error) {
	n, err := d.decodeRecordLen()
	if err != nil {
		return nil, err
	}
	ref := &Reference{}
	hasIndex := false
	for i := 0; i < n; i++ {
		key, err := d.dec.DecodeString()
		if err != nil {
			return nil, d.fail(err, "decode reference key")
		}
		if key != keyIndex {
			if err := d.dec.Skip(); err != nil {
				return nil, d.fail(err)
			}
			continue
		}
		if ref.Index, err = d.decodeIndex(); err != nil {
			return nil, err
		}
		hasIndex = true
	}
	if !hasIndex {
		return nil, d.fail(errNoIndex)
	}
	return ref, nil
}

func readBigInt(payload []byte) (*big.Int, error) {
	if len(payload) == 0 {
		return nil, merr.WrapErrDecodeFailedReason("empty big integer payload")
	}
	v := new(big.Int).SetBytes(payload[1:])
	switch payload[0] {
	case 0:
	case 1:
		v.Neg(v)
	default:
		return nil, merr.WrapErrDecodeFailedReason("invalid big integer sign byte")
	}
	return v, nil
}

func isMapCode(c byte) bool {
	return msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32
}

func isArrayCode(c byte) bool {
	return msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32
}
