package wire

import (
	"bytes"
	"math/big"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

// 扩展类型编号，0/1/2 属于持久化格式契约，不可更改。
const (
	ExtObject    int8 = 0
	ExtArray     int8 = 1
	ExtReference int8 = 2
	ExtBigInt    int8 = 3
)

// 信封与记录负载中使用的键名。
const (
	keyVersion       = "version"
	keyRoot          = "root"
	keySharedObjects = "sharedObjects"
	keySchemas       = "schemas"

	keySchema               = "schema"
	keyConstructorArguments = "constructorArguments"
	keyProperties           = "properties"
	keyElements             = "elements"
	keyIndex                = "index"
)

// Encode 将信封编码为二进制。
//
// 信封本身是普通 map；结构化记录以扩展类型写出，负载由同一个支持扩展的编码器
// 递归编码到独立缓冲区后再包上扩展头，调用方传入的结构不会被修改。
func Encode(s *Serialized) ([]byte, error) {
	if s == nil {
		return nil, merr.WrapErrParameterMissing("envelope")
	}
	e := newEncoder()
	if err := e.encodeEnvelope(s); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

// EncodeValue 单独编码一个值，主要用于诊断与测试。
func EncodeValue(v Value) ([]byte, error) {
	e := newEncoder()
	if err := e.encodeValue(v); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

type encoder struct {
	buf *bytes.Buffer
	enc *msgpack.Encoder
}

func newEncoder() *encoder {
	buf := &bytes.Buffer{}
	enc := msgpack.NewEncoder(buf)
	enc.SetSortMapKeys(true)
	return &encoder{buf: buf, enc: enc}
}

func (e *encoder) encodeEnvelope(s *Serialized) error {
	version := s.Version
	if version == "" {
		version = CurrentVersion
	}
	if err := e.enc.EncodeMapLen(4); err != nil {
		return merr.WrapErrEncodeFailed(err)
	}
	if err := e.encodeKey(keyVersion); err != nil {
		return err
	}
	if err := e.enc.EncodeString(version); err != nil {
		return merr.WrapErrEncodeFailed(err)
	}
	if err := e.encodeKey(keyRoot); err != nil {
		return err
	}
	if err := e.encodeValue(s.Root); err != nil {
		return err
	}
	if err := e.encodeKey(keySharedObjects); err != nil {
		return err
	}
	if err := e.encodeValues(s.SharedObjects); err != nil {
		return err
	}
	if err := e.encodeKey(keySchemas); err != nil {
		return err
	}
	if err := e.enc.EncodeArrayLen(len(s.Schemas)); err != nil {
		return merr.WrapErrEncodeFailed(err)
	}
	for _, id := range s.Schemas {
		if err := e.encodeSchemaID(id); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeKey(key string) error {
	if err := e.enc.EncodeString(key); err != nil {
		return merr.WrapErrEncodeFailed(err)
	}
	return nil
}

func (e *encoder) encodeValues(values []Value) error {
	if err := e.enc.EncodeArrayLen(len(values)); err != nil {
		return merr.WrapErrEncodeFailed(err)
	}
	for _, v := range values {
		if err := e.encodeValue(v); err != nil {
			return err
		}
	}
	return nil
}

// encodeSchemaID 编码不透明的 schema 标识。
// 字符串与整数直接写出，其余类型交给 msgpack 的反射编码（map 键排序，结构体按 msgpack tag）。
func (e *encoder) encodeSchemaID(id any) error {
	var err error
	switch v := id.(type) {
	case nil:
		return merr.WrapErrEncodeUnsupportedType(id, "nil schema id")
	case string:
		err = e.enc.EncodeString(v)
	case int:
		err = e.enc.EncodeInt(int64(v))
	case int64:
		err = e.enc.EncodeInt(v)
	case uint64:
		err = e.enc.EncodeUint(v)
	default:
		err = e.enc.Encode(v)
	}
	if err != nil {
		return merr.WrapErrEncodeFailed(err, "encode schema id")
	}
	return nil
}

func (e *encoder) encodeValue(v Value) error {
	var err error
	switch val := v.(type) {
	case nil:
		err = e.enc.EncodeNil()
	case bool:
		err = e.enc.EncodeBool(val)
	case int:
		err = e.enc.EncodeInt(int64(val))
	case int8:
		err = e.enc.EncodeInt(int64(val))
	case int16:
		err = e.enc.EncodeInt(int64(val))
	case int32:
		err = e.enc.EncodeInt(int64(val))
	case int64:
		err = e.enc.EncodeInt(val)
	case uint:
		err = e.enc.EncodeUint(uint64(val))
	case uint8:
		err = e.enc.EncodeUint(uint64(val))
	case uint16:
		err = e.enc.EncodeUint(uint64(val))
	case uint32:
		err = e.enc.EncodeUint(uint64(val))
	case uint64:
		err = e.enc.EncodeUint(val)
	case float32:
		err = e.enc.EncodeFloat64(float64(val))
	case float64:
		err = e.enc.EncodeFloat64(val)
	case string:
		err = e.enc.EncodeString(val)
	case []byte:
		err = e.enc.EncodeBytes(val)
	case *big.Int:
		if val == nil {
			err = e.enc.EncodeNil()
			break
		}
		return e.encodeExt(ExtBigInt, func(payload *bytes.Buffer, _ *encoder) error {
			return writeBigInt(payload, val)
		})
	case *Object:
		return e.encodeExt(ExtObject, func(_ *bytes.Buffer, sub *encoder) error {
			return sub.encodeObjectPayload(val)
		})
	case *Array:
		return e.encodeExt(ExtArray, func(_ *bytes.Buffer, sub *encoder) error {
			if err := sub.enc.EncodeMapLen(1); err != nil {
				return merr.WrapErrEncodeFailed(err)
			}
			if err := sub.encodeKey(keyElements); err != nil {
				return err
			}
			return sub.encodeValues(val.Elements)
		})
	case *Reference:
		return e.encodeExt(ExtReference, func(_ *bytes.Buffer, sub *encoder) error {
			if err := sub.enc.EncodeMapLen(1); err != nil {
				return merr.WrapErrEncodeFailed(err)
			}
			if err := sub.encodeKey(keyIndex); err != nil {
				return err
			}
			if err := sub.enc.EncodeInt(int64(val.Index)); err != nil {
				return merr.WrapErrEncodeFailed(err)
			}
			return nil
		})
	case *WildObject:
		// wild object 不带扩展标记，写成空 map。
		err = e.enc.EncodeMapLen(0)
	default:
		return merr.WrapErrEncodeUnsupportedType(v)
	}
	if err != nil {
		return merr.WrapErrEncodeFailed(err)
	}
	return nil
}

func (e *encoder) encodeObjectPayload(obj *Object) error {
	fields := 2
	if obj.ConstructorArguments != nil {
		fields++
	}
	if err := e.enc.EncodeMapLen(fields); err != nil {
		return merr.WrapErrEncodeFailed(err)
	}
	if err := e.encodeKey(keySchema); err != nil {
		return err
	}
	if err := e.enc.EncodeInt(int64(obj.SchemaIndex)); err != nil {
		return merr.WrapErrEncodeFailed(err)
	}
	if obj.ConstructorArguments != nil {
		if err := e.encodeKey(keyConstructorArguments); err != nil {
			return err
		}
		if err := e.encodeValues(obj.ConstructorArguments); err != nil {
			return err
		}
	}
	if err := e.encodeKey(keyProperties); err != nil {
		return err
	}
	if err := e.enc.EncodeMapLen(len(obj.Properties)); err != nil {
		return merr.WrapErrEncodeFailed(err)
	}
	for _, p := range obj.Properties {
		if err := e.encodeKey(p.Name); err != nil {
			return err
		}
		if err := e.encodeValue(p.Value); err != nil {
			return err
		}
	}
	return nil
}

// encodeExt 用新的编码器把负载写入独立缓冲区，再以 tag 作为扩展类型写出。
func (e *encoder) encodeExt(tag int8, fill func(payload *bytes.Buffer, sub *encoder) error) error {
	sub := newEncoder()
	if err := fill(sub.buf, sub); err != nil {
		return err
	}
	payload := sub.buf.Bytes()
	if err := e.enc.EncodeExtHeader(tag, len(payload)); err != nil {
		return merr.WrapErrEncodeFailed(err)
	}
	if _, err := e.buf.Write(payload); err != nil {
		return merr.WrapErrEncodeFailed(err)
	}
	return nil
}

// writeBigInt 写出符号字节（0 非负，1 负数）与大端序绝对值。
func writeBigInt(buf *bytes.Buffer, v *big.Int) error {
	sign := byte(0)
	if v.Sign() < 0 {
		sign = 1
	}
	if err := buf.WriteByte(sign); err != nil {
		return merr.WrapErrEncodeFailed(err)
	}
	_, err := buf.Write(new(big.Int).Abs(v).Bytes())
	if err != nil {
		return merr.WrapErrEncodeFailed(err)
	}
	return nil
}
