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
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
)

// ErrorCategory 对错误做粗粒度分类，调用方据此决定是否重试、如何上报。
type ErrorCategory int32

const (
	SystemError     ErrorCategory = 0
	DecodeError     ErrorCategory = 1
	SchemaError     ErrorCategory = 2
	StructuralError ErrorCategory = 3
)

var ErrorCategoryName = map[ErrorCategory]string{
	SystemError:     "system_error",
	DecodeError:     "decode_error",
	SchemaError:     "schema_error",
	StructuralError: "structural_error",
}

func (c ErrorCategory) String() string {
	return ErrorCategoryName[c]
}

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Service related
	ErrServiceInternal = newGraphError("service internal error", 5, false, SystemError)

	// Codec related
	ErrDecodeFailed       = newGraphError("decode failed", 100, false, DecodeError)
	ErrVersionUnsupported = newGraphError("unsupported envelope version", 101, false, DecodeError)
	ErrEncodeFailed       = newGraphError("encode failed", 102, false, SystemError)
	ErrContainerCorrupted = newGraphError("asset container corrupted", 103, false, DecodeError)

	// Schema related
	ErrSchemaNotFound          = newGraphError("schema not found", 200, false, SchemaError)
	ErrSchemaResolveFailed     = newGraphError("schema resolve failed", 201, true, SchemaError)
	ErrSchemaInvalid           = newGraphError("invalid schema", 202, false, SchemaError)
	ErrSchemaAlreadyRegistered = newGraphError("schema already registered", 203, false, SchemaError)

	// Graph structure related
	ErrPropertyMissing       = newGraphError("required property missing", 300, false, StructuralError)
	ErrUnknownValueKind      = newGraphError("unknown value kind", 301, false, StructuralError)
	ErrReferenceOutOfRange   = newGraphError("reference index out of range", 302, false, StructuralError)
	ErrSchemaIndexOutOfRange = newGraphError("schema index out of range", 303, false, StructuralError)
	ErrConstructFailed       = newGraphError("construct object failed", 304, false, StructuralError)
	ErrAssignFailed          = newGraphError("assign property failed", 305, false, StructuralError)
	ErrCyclicValueType       = newGraphError("value type instance reaches itself", 306, false, StructuralError)
	ErrGraphTooDeep          = newGraphError("object graph too deep", 307, false, StructuralError)

	// IO related
	ErrIoKeyNotFound = newGraphError("key not found", 1000, false, SystemError)
	ErrIoFailed      = newGraphError("IO failed", 1001, true, SystemError)

	// Parameter related
	ErrParameterInvalid = newGraphError("invalid parameter", 1100, false, SystemError)
	ErrParameterMissing = newGraphError("missing parameter", 1101, false, SystemError)

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to graphError
	errUnexpected = newGraphError("unexpected error", (1<<16)-1, false, SystemError)
)

type errorOption func(*graphError)

func WithDetail(detail string) errorOption {
	return func(err *graphError) {
		err.detail = detail
	}
}

func WithCategory(category ErrorCategory) errorOption {
	return func(err *graphError) {
		err.category = category
	}
}

type graphError struct {
	msg       string
	detail    string
	retriable bool
	errCode   int32
	category  ErrorCategory
}

func newGraphError(msg string, code int32, retriable bool, category ErrorCategory, options ...errorOption) graphError {
	err := graphError{
		msg:       msg,
		detail:    msg,
		retriable: retriable,
		errCode:   code,
		category:  category,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e graphError) code() int32 {
	return e.errCode
}

func (e graphError) Error() string {
	return e.msg
}

func (e graphError) Detail() string {
	return e.detail
}

func (e graphError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(graphError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
