package wire

import (
	"bytes"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

type WireSuite struct {
	suite.Suite
}

func (s *WireSuite) roundTripValue(v Value) Value {
	data, err := EncodeValue(v)
	s.Require().NoError(err)
	got, err := DecodeValue(data)
	s.Require().NoError(err)
	return got
}

func (s *WireSuite) TestPrimitives() {
	s.Nil(s.roundTripValue(nil))
	s.Equal(true, s.roundTripValue(true))
	s.Equal(false, s.roundTripValue(false))
	s.Equal(int64(42), s.roundTripValue(42))
	s.Equal(int64(-7), s.roundTripValue(int8(-7)))
	s.Equal(int64(math.MinInt64), s.roundTripValue(int64(math.MinInt64)))
	s.Equal(int64(300), s.roundTripValue(uint16(300)))
	s.Equal(uint64(math.MaxUint64), s.roundTripValue(uint64(math.MaxUint64)))
	s.Equal(1.5, s.roundTripValue(float32(1.5)))
	s.Equal(math.Pi, s.roundTripValue(math.Pi))
	s.Equal("héllo", s.roundTripValue("héllo"))
	s.Equal([]byte{1, 2, 3}, s.roundTripValue([]byte{1, 2, 3}))
}

func (s *WireSuite) TestBigInt() {
	huge, ok := new(big.Int).SetString("-123456789012345678901234567890", 10)
	s.Require().True(ok)
	for _, v := range []*big.Int{big.NewInt(0), big.NewInt(1), big.NewInt(-1), huge} {
		got := s.roundTripValue(v)
		s.IsType(&big.Int{}, got)
		s.Equal(0, v.Cmp(got.(*big.Int)), v.String())
	}
	s.Nil(s.roundTripValue((*big.Int)(nil)))
}

func (s *WireSuite) TestRecords() {
	obj := &Object{
		SchemaIndex:          1,
		ConstructorArguments: []Value{"rex"},
		Properties: []Property{
			{Name: "age", Value: int64(3)},
			{Name: "owner", Value: &Reference{Index: 2}},
			{Name: "tags", Value: &Array{Elements: []Value{"a", int64(1), nil}}},
			{Name: "extra", Value: &WildObject{}},
		},
	}
	s.Equal(obj, s.roundTripValue(obj))

	arr := &Array{Elements: []Value{&Array{Elements: []Value{}}, &Reference{Index: 0}}}
	s.Equal(arr, s.roundTripValue(arr))

	s.Equal(&Reference{Index: 9}, s.roundTripValue(&Reference{Index: 9}))
	s.Equal(&WildObject{}, s.roundTripValue(&WildObject{}))
}

func (s *WireSuite) TestConstructorArgumentsPresence() {
	absent := s.roundTripValue(&Object{SchemaIndex: 0, Properties: []Property{}}).(*Object)
	s.Nil(absent.ConstructorArguments)

	empty := s.roundTripValue(&Object{SchemaIndex: 0, ConstructorArguments: []Value{}, Properties: []Property{}}).(*Object)
	s.NotNil(empty.ConstructorArguments)
	s.Len(empty.ConstructorArguments, 0)
}

func (s *WireSuite) TestEnvelopeRoundTrip() {
	env := &Serialized{
		Version: CurrentVersion,
		Root:    &Reference{Index: 0},
		SharedObjects: []Value{
			&Object{SchemaIndex: 0, Properties: []Property{{Name: "next", Value: &Reference{Index: 0}}}},
			&Array{Elements: []Value{int64(1)}},
			&WildObject{},
		},
		Schemas: []any{
			"Node",
			7,
			map[string]any{"module": "geo", "exportName": "Vec3"},
		},
	}
	data, err := Encode(env)
	s.Require().NoError(err)

	got, err := Decode(data)
	s.Require().NoError(err)
	s.NoError(got.Validate())
	s.Equal(CurrentVersion, got.Version)
	s.Equal(env.Root, got.Root)
	s.Equal(env.SharedObjects, got.SharedObjects)
	s.Require().Len(got.Schemas, 3)
	s.Equal("Node", got.Schemas[0])
	s.EqualValues(7, got.Schemas[1])
	s.Equal(map[string]any{"module": "geo", "exportName": "Vec3"}, got.Schemas[2])

	again, err := Encode(env)
	s.Require().NoError(err)
	s.True(bytes.Equal(data, again))
}

func (s *WireSuite) TestEmptyVersionDefaults() {
	data, err := Encode(&Serialized{Root: "x"})
	s.Require().NoError(err)
	got, err := Decode(data)
	s.Require().NoError(err)
	s.Equal(CurrentVersion, got.Version)
	s.Equal("x", got.Root)
}

func (s *WireSuite) TestEncodeErrors() {
	_, err := EncodeValue(struct{}{})
	s.ErrorIs(err, merr.ErrEncodeFailed)

	_, err = Encode(&Serialized{Schemas: []any{nil}})
	s.ErrorIs(err, merr.ErrEncodeFailed)

	_, err = Encode(nil)
	s.ErrorIs(err, merr.ErrParameterMissing)
}

func (s *WireSuite) TestDecodeErrors() {
	valid, err := Encode(&Serialized{
		Root:          &Reference{Index: 0},
		SharedObjects: []Value{&Object{SchemaIndex: 0, Properties: []Property{{Name: "n", Value: int64(1)}}}},
		Schemas:       []any{"A"},
	})
	s.Require().NoError(err)

	bareArray, err := msgpack.Marshal(map[string]any{"version": CurrentVersion, "root": []any{1}})
	s.Require().NoError(err)
	noVersion, err := msgpack.Marshal(map[string]any{"root": nil})
	s.Require().NoError(err)

	var unknownExt bytes.Buffer
	enc := msgpack.NewEncoder(&unknownExt)
	s.Require().NoError(enc.EncodeMapLen(2))
	s.Require().NoError(enc.EncodeString("version"))
	s.Require().NoError(enc.EncodeString(CurrentVersion))
	s.Require().NoError(enc.EncodeString("root"))
	s.Require().NoError(enc.EncodeExtHeader(9, 1))
	unknownExt.WriteByte(0)

	cases := map[string][]byte{
		"empty":        {},
		"garbage":      {0xc1, 0x00, 0x13},
		"not a map":    {0x93, 0x01, 0x02, 0x03},
		"truncated":    valid[:len(valid)-3],
		"trailing":     append(append([]byte{}, valid...), 0x00),
		"bare array":   bareArray,
		"no version":   noVersion,
		"unknown ext":  unknownExt.Bytes(),
		"huge map len": {0xdf, 0xff, 0xff, 0xff, 0xff},
	}
	for name, data := range cases {
		_, err := Decode(data)
		s.Error(err, name)
		s.ErrorIs(err, merr.ErrDecodeFailed, name)
		s.True(merr.IsDecodeError(err), name)
		s.False(merr.IsStructuralError(err), name)
	}
}

func (s *WireSuite) TestUntaggedMapIsWild() {
	data, err := msgpack.Marshal(map[string]any{"version": CurrentVersion, "root": map[string]any{"a": 1}})
	s.Require().NoError(err)
	got, err := Decode(data)
	s.Require().NoError(err)
	s.Equal(&WildObject{}, got.Root)
}

func (s *WireSuite) TestVersion() {
	data, err := Encode(&Serialized{Version: "2.0.0"})
	s.Require().NoError(err)
	_, err = Decode(data)
	s.ErrorIs(err, merr.ErrVersionUnsupported)
	s.True(merr.IsDecodeError(err))

	data, err = Encode(&Serialized{Version: "1.4.2"})
	s.Require().NoError(err)
	_, err = Decode(data)
	s.NoError(err)

	s.ErrorIs(CheckVersion("not-a-version"), merr.ErrDecodeFailed)
}

func (s *WireSuite) TestValidate() {
	env := &Serialized{
		Root:          &Reference{Index: 1},
		SharedObjects: []Value{&WildObject{}},
	}
	s.ErrorIs(env.Validate(), merr.ErrReferenceOutOfRange)

	env = &Serialized{
		Root:    &Array{Elements: []Value{&Object{SchemaIndex: 2}}},
		Schemas: []any{"A"},
	}
	s.ErrorIs(env.Validate(), merr.ErrSchemaIndexOutOfRange)

	env = &Serialized{
		Root:          &Reference{Index: 0},
		SharedObjects: []Value{&Reference{Index: 0}},
	}
	s.ErrorIs(env.Validate(), merr.ErrUnknownValueKind)

	env = &Serialized{Root: struct{}{}}
	s.ErrorIs(env.Validate(), merr.ErrUnknownValueKind)
	s.True(merr.IsStructuralError(env.Validate()))

	env = &Serialized{
		Root: &Object{
			SchemaIndex:          0,
			ConstructorArguments: []Value{&Reference{Index: 3}},
		},
		Schemas: []any{"A"},
	}
	s.ErrorIs(env.Validate(), merr.ErrReferenceOutOfRange)
}

func (s *WireSuite) TestDescribe() {
	env := &Serialized{
		Version: CurrentVersion,
		Root:    &Reference{Index: 0},
		SharedObjects: []Value{
			&Object{
				SchemaIndex:          0,
				ConstructorArguments: []Value{"rex"},
				Properties:           []Property{{Name: "n", Value: big.NewInt(-5)}},
			},
		},
		Schemas: []any{"Animal"},
	}
	desc := Describe(env)
	s.Equal(CurrentVersion, desc["version"])
	s.Equal(map[string]any{"$ref": 0}, desc["root"])
	s.Equal([]any{map[string]any{"$object": map[string]any{
		"schema":               0,
		"constructorArguments": []any{"rex"},
		"properties":           map[string]any{"n": map[string]any{"$bigint": "-5"}},
	}}}, desc["sharedObjects"])
	s.Equal([]any{"Animal"}, desc["schemas"])
}

func TestWire(t *testing.T) {
	suite.Run(t, new(WireSuite))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindPrimitive, KindOf(nil))
	assert.Equal(t, KindPrimitive, KindOf(uint8(1)))
	assert.Equal(t, KindPrimitive, KindOf(big.NewInt(1)))
	assert.Equal(t, KindObject, KindOf(&Object{}))
	assert.Equal(t, KindWildObject, KindOf(&WildObject{}))
	assert.Equal(t, KindArray, KindOf(&Array{}))
	assert.Equal(t, KindReference, KindOf(&Reference{}))
	assert.Equal(t, KindInvalid, KindOf(map[string]any{}))
	assert.Equal(t, "wild_object", KindWildObject.String())
	assert.Equal(t, "unknown", Kind(99).String())

	assert.True(t, IsShareable(&Array{}))
	assert.False(t, IsShareable(&Reference{}))
	assert.False(t, IsShareable("x"))
}

func TestObjectProperties(t *testing.T) {
	obj := &Object{}
	obj.Set("a", int64(1))
	obj.Set("b", "x")
	obj.Set("a", int64(2))
	require.Len(t, obj.Properties, 2)
	assert.Equal(t, "a", obj.Properties[0].Name)

	v, ok := obj.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, int64(2), v)
	_, ok = obj.Lookup("c")
	assert.False(t, ok)
}
