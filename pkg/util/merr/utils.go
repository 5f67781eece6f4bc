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
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code 返回给定错误对应的错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case graphError:
		return specificErr.code()

	default:
		if errors.Is(specificErr, context.Canceled) {
			return CanceledCode
		} else if errors.Is(specificErr, context.DeadlineExceeded) {
			return TimeoutCode
		} else {
			return errUnexpected.code()
		}
	}
}

// IsRetryableErr 判断错误是否值得调用方重试。
// 引擎内部从不重试，重试策略由调用方决定。
func IsRetryableErr(err error) bool {
	if err, ok := errors.Cause(err).(graphError); ok {
		return err.retriable
	}

	return false
}

func IsCanceledOrTimeout(err error) bool {
	return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
}

// Category 返回错误所属的分类，非本包定义的错误一律视为 SystemError。
func Category(err error) ErrorCategory {
	if err, ok := errors.Cause(err).(graphError); ok {
		return err.category
	}
	return SystemError
}

func IsDecodeError(err error) bool {
	return err != nil && Category(err) == DecodeError
}

func IsSchemaError(err error) bool {
	return err != nil && Category(err) == SchemaError
}

func IsStructuralError(err error) bool {
	return err != nil && Category(err) == StructuralError
}

// Detail 返回错误的详细描述，若不是 graphError 则返回 err.Error()。
func Detail(err error) string {
	if err == nil {
		return ""
	}
	if gerr, ok := errors.Cause(err).(graphError); ok {
		return gerr.Detail()
	}
	return err.Error()
}

// Service related
func WrapErrServiceInternal(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrServiceInternal, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Codec related
func WrapErrDecodeFailed(cause error, msg ...string) error {
	desc := "malformed input"
	if cause != nil {
		desc = cause.Error()
	}
	err := wrapFieldsWithDesc(ErrDecodeFailed, desc)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrDecodeFailedReason(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrDecodeFailed, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrVersionUnsupported(version string, current string, msg ...string) error {
	err := wrapFields(ErrVersionUnsupported,
		value("version", version),
		value("current", current),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrEncodeFailed(cause error, msg ...string) error {
	if cause == nil {
		return nil
	}
	err := wrapFieldsWithDesc(ErrEncodeFailed, cause.Error())
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrEncodeUnsupportedType(typ any, msg ...string) error {
	err := wrapFieldsWithDesc(ErrEncodeFailed, "unsupported value type", value("type", fmt.Sprintf("%T", typ)))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrContainerCorrupted(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrContainerCorrupted, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Schema related
func WrapErrSchemaNotFound(id any, msg ...string) error {
	err := wrapFields(ErrSchemaNotFound, value("schemaID", id))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrSchemaResolveFailed(id any, cause error) error {
	if cause == nil {
		return nil
	}
	return wrapFieldsWithDesc(ErrSchemaResolveFailed, cause.Error(), value("schemaID", id))
}

func WrapErrSchemaInvalid(name string, reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrSchemaInvalid, reason, value("schema", name))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrSchemaAlreadyRegistered(id any, msg ...string) error {
	err := wrapFields(ErrSchemaAlreadyRegistered, value("schemaID", id))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Graph structure related
func WrapErrPropertyMissing(schema string, property string, msg ...string) error {
	err := wrapFields(ErrPropertyMissing,
		value("schema", schema),
		value("property", property),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrUnknownValueKind(v any, msg ...string) error {
	err := wrapFields(ErrUnknownValueKind, value("type", fmt.Sprintf("%T", v)))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrReferenceOutOfRange(index int, size int, msg ...string) error {
	err := wrapFields(ErrReferenceOutOfRange, bound("index", index, 0, size-1))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrSchemaIndexOutOfRange(index int, size int, msg ...string) error {
	err := wrapFields(ErrSchemaIndexOutOfRange, bound("index", index, 0, size-1))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrConstructFailed(schema string, cause error) error {
	desc := "no construction protocol"
	if cause != nil {
		desc = cause.Error()
	}
	return wrapFieldsWithDesc(ErrConstructFailed, desc, value("schema", schema))
}

func WrapErrAssignFailed(schema string, property string, cause error) error {
	desc := "not assignable"
	if cause != nil {
		desc = cause.Error()
	}
	return wrapFieldsWithDesc(ErrAssignFailed, desc,
		value("schema", schema),
		value("property", property),
	)
}

func WrapErrCyclicValueType(schema string, msg ...string) error {
	err := wrapFields(ErrCyclicValueType, value("schema", schema))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrGraphTooDeep(limit int, msg ...string) error {
	err := wrapFields(ErrGraphTooDeep, value("limit", limit))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// IO related
func WrapErrIoKeyNotFound(key string, msg ...string) error {
	err := wrapFields(ErrIoKeyNotFound, value("key", key))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrIoFailed(key string, err error) error {
	if err == nil {
		return nil
	}
	return wrapFieldsWithDesc(ErrIoFailed, err.Error(), value("key", key))
}

func WrapErrIoFailedReason(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrIoFailed, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Parameter related
func WrapErrParameterInvalid[T any](expected, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		value("expected", expected),
		value("actual", actual),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidRange[T any](lower, upper, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		bound("value", actual, lower, upper),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidMsg(fmtMsg string, args ...any) error {
	return errors.Wrapf(ErrParameterInvalid, fmtMsg, args...)
}

func WrapErrParameterMissing[T any](param T, msg ...string) error {
	err := wrapFields(ErrParameterMissing,
		value("missing_param", param),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func wrapFields(err graphError, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.detail = err.msg
	return err
}

func wrapFieldsWithDesc(err graphError, desc string, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.msg += ": " + desc
	err.detail = err.msg
	return err
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name,
		value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}

type boundField struct {
	name  string
	value any
	lower any
	upper any
}

func bound(name string, value, lower, upper any) boundField {
	return boundField{
		name,
		value,
		lower,
		upper,
	}
}

func (f boundField) String() string {
	return fmt.Sprintf("%v out of range %v <= %s <= %v", f.value, f.lower, f.name, f.upper)
}
