// Copyright (C) 2019-2020 Zilliz. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License
// is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express
// or implied. See the License for the specific language governing permissions and limitations under the License.

package retry

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

func TestDoSucceedsAfterFailures(t *testing.T) {
	ctx := context.Background()
	n := 0
	err := Do(ctx, func() error {
		n++
		if n < 3 {
			return merr.WrapErrIoFailedReason("transient")
		}
		return nil
	}, Sleep(time.Millisecond))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDoAttempts(t *testing.T) {
	n := 0
	err := Do(context.Background(), func() error {
		n++
		return errors.New("always")
	}, Attempts(3), Sleep(time.Millisecond))
	assert.Error(t, err)
	assert.Equal(t, 3, n)
}

func TestDoUnrecoverable(t *testing.T) {
	n := 0
	cause := errors.New("fatal")
	err := Do(context.Background(), func() error {
		n++
		return Unrecoverable(cause)
	}, Sleep(time.Millisecond))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsRecoverable(err))
	assert.Equal(t, 1, n)
}

func TestDoRetryErr(t *testing.T) {
	n := 0
	err := Do(context.Background(), func() error {
		n++
		return merr.WrapErrSchemaNotFound("Vec3")
	}, Sleep(time.Millisecond), RetryErr(merr.IsRetryableErr))
	assert.ErrorIs(t, err, merr.ErrSchemaNotFound)
	assert.Equal(t, 1, n)
}

func TestDoCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMaxSleepTime(t *testing.T) {
	c := newDefaultConfig()
	Sleep(time.Second)(c)
	assert.Equal(t, 3*time.Second, c.maxSleepTime)
	MaxSleepTime(time.Second)(c)
	assert.Equal(t, 2*time.Second, c.maxSleepTime)
}
