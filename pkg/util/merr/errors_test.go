// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrSchemaNotFound("Animal")
	errors.Wrap(err, "failed to resolve schema")
	s.ErrorIs(err, ErrSchemaNotFound)
	s.Equal(Code(ErrSchemaNotFound), Code(err))
	s.Equal(TimeoutCode, Code(context.DeadlineExceeded))
	s.Equal(CanceledCode, Code(context.Canceled))
	s.Equal(errUnexpected.errCode, Code(errUnexpected))
	s.Equal(errUnexpected.errCode, Code(errors.New("plain")))
	s.Equal(int32(0), Code(nil))

	sameCodeErr := newGraphError("new error", ErrSchemaNotFound.errCode, false, SchemaError)
	s.True(sameCodeErr.Is(ErrSchemaNotFound))
}

func (s *ErrSuite) TestWrap() {
	// Codec 相关错误。
	s.ErrorIs(WrapErrDecodeFailed(errors.New("short buffer")), ErrDecodeFailed)
	s.ErrorIs(WrapErrDecodeFailed(nil), ErrDecodeFailed)
	s.ErrorIs(WrapErrDecodeFailedReason("trailing bytes", "decode envelope"), ErrDecodeFailed)
	s.ErrorIs(WrapErrVersionUnsupported("2.0.0", "1.0.0"), ErrVersionUnsupported)
	s.ErrorIs(WrapErrEncodeFailed(errors.New("mock")), ErrEncodeFailed)
	s.Nil(WrapErrEncodeFailed(nil))
	s.ErrorIs(WrapErrEncodeUnsupportedType(make(chan int)), ErrEncodeFailed)
	s.ErrorIs(WrapErrContainerCorrupted("bad magic"), ErrContainerCorrupted)

	// Schema 相关错误。
	s.ErrorIs(WrapErrSchemaNotFound("Vec3", "resolve"), ErrSchemaNotFound)
	s.ErrorIs(WrapErrSchemaResolveFailed("Vec3", errors.New("timeout")), ErrSchemaResolveFailed)
	s.Nil(WrapErrSchemaResolveFailed("Vec3", nil))
	s.ErrorIs(WrapErrSchemaInvalid("Vec3", "duplicate property x"), ErrSchemaInvalid)
	s.ErrorIs(WrapErrSchemaAlreadyRegistered("Vec3"), ErrSchemaAlreadyRegistered)

	// 图结构相关错误。
	s.ErrorIs(WrapErrPropertyMissing("Animal", "name"), ErrPropertyMissing)
	s.ErrorIs(WrapErrUnknownValueKind(struct{}{}), ErrUnknownValueKind)
	s.ErrorIs(WrapErrReferenceOutOfRange(3, 2), ErrReferenceOutOfRange)
	s.ErrorIs(WrapErrSchemaIndexOutOfRange(3, 2), ErrSchemaIndexOutOfRange)
	s.ErrorIs(WrapErrConstructFailed("Animal", errors.New("boom")), ErrConstructFailed)
	s.ErrorIs(WrapErrConstructFailed("Animal", nil), ErrConstructFailed)
	s.ErrorIs(WrapErrAssignFailed("Animal", "legs", nil), ErrAssignFailed)
	s.ErrorIs(WrapErrCyclicValueType("Vec3"), ErrCyclicValueType)
	s.ErrorIs(WrapErrGraphTooDeep(10), ErrGraphTooDeep)

	// IO 相关错误。
	s.ErrorIs(WrapErrIoKeyNotFound("assets/a", "failed to read"), ErrIoKeyNotFound)
	s.ErrorIs(WrapErrIoFailed("assets/a", errors.New("disk full")), ErrIoFailed)
	s.Nil(WrapErrIoFailed("assets/a", nil))
	s.ErrorIs(WrapErrIoFailedReason("disk full"), ErrIoFailed)

	// 参数相关错误。
	s.ErrorIs(WrapErrParameterInvalid(8, 0, "resolve concurrency"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterInvalidRange(1, 64, 0, "resolve concurrency"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterInvalidMsg("%s is nil", "classifier"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterMissing("resolver"), ErrParameterMissing)
	s.ErrorIs(WrapErrServiceInternal("never throw out"), ErrServiceInternal)
}

func (s *ErrSuite) TestCategory() {
	s.Equal(DecodeError, Category(WrapErrDecodeFailed(nil)))
	s.Equal(DecodeError, Category(errors.Wrap(WrapErrVersionUnsupported("2.0.0", "1.0.0"), "deserialize")))
	s.Equal(SchemaError, Category(WrapErrSchemaNotFound(1)))
	s.Equal(StructuralError, Category(WrapErrPropertyMissing("Animal", "name")))
	s.Equal(SystemError, Category(WrapErrIoFailedReason("x")))
	s.Equal(SystemError, Category(errors.New("plain")))

	s.True(IsDecodeError(WrapErrDecodeFailed(nil)))
	s.False(IsDecodeError(nil))
	s.True(IsSchemaError(WrapErrSchemaResolveFailed(1, errors.New("x"))))
	s.True(IsStructuralError(WrapErrCyclicValueType("Vec3")))
	s.True(IsStructuralError(WrapErrGraphTooDeep(10)))
	s.False(IsStructuralError(WrapErrDecodeFailed(nil)))

	s.Equal("schema_error", SchemaError.String())

	custom := newGraphError("custom", 9999, false, SystemError, WithCategory(DecodeError), WithDetail("more"))
	s.Equal(DecodeError, Category(custom))
	s.Equal("more", Detail(custom))
}

func (s *ErrSuite) TestRetryable() {
	s.True(IsRetryableErr(WrapErrSchemaResolveFailed("Vec3", errors.New("timeout"))))
	s.True(IsRetryableErr(errors.Wrap(WrapErrIoFailed("k", errors.New("x")), "save")))
	s.False(IsRetryableErr(WrapErrSchemaNotFound("Vec3")))
	s.False(IsRetryableErr(errors.New("plain")))

	s.True(IsCanceledOrTimeout(context.Canceled))
	s.False(IsCanceledOrTimeout(ErrDecodeFailed))
}

func (s *ErrSuite) TestMessage() {
	err := WrapErrPropertyMissing("Animal", "name")
	s.Equal("required property missing[schema=Animal][property=name]", err.Error())
	s.Equal(err.Error(), Detail(err))

	err = WrapErrReferenceOutOfRange(5, 2)
	s.Contains(err.Error(), "5 out of range 0 <= index <= 1")
}

func (s *ErrSuite) TestCombine() {
	var (
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
		errThird  = errors.New("third")
	)

	err := Combine(errFirst, errSecond)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.False(errors.Is(err, errThird))

	s.Equal("first: second", err.Error())
}

func (s *ErrSuite) TestCombineWithNil() {
	err := errors.New("non-nil")

	err = Combine(nil, err)
	s.NotNil(err)
}

func (s *ErrSuite) TestCombineOnlyNil() {
	err := Combine(nil, nil)
	s.Nil(err)
}

func (s *ErrSuite) TestCombineCode() {
	err := Combine(WrapErrSchemaNotFound(10), WrapErrPropertyMissing("Animal", "name"))
	s.Equal(Code(ErrPropertyMissing), Code(err))
	s.Equal(StructuralError, Category(err))
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
