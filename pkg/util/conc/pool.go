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

package conc

import (
	"fmt"

	ants "github.com/panjf2000/ants/v2"

	"github.com/lk2023060901/objgraph-go/pkg/util/merr"
)

// Pool 是基于 ants 的泛型协程池，Submit 返回可等待的 Future。
type Pool[T any] struct {
	inner *ants.Pool
	opt   *poolOption
}

// NewPool 创建容量为 cap 的协程池，cap <= 0 时 panic。
func NewPool[T any](cap int, opts ...PoolOption) *Pool[T] {
	pool, err := NewPoolE[T](cap, opts...)
	if err != nil {
		panic(err)
	}
	return pool
}

// NewPoolE 与 NewPool 相同，但以错误返回代替 panic。
func NewPoolE[T any](cap int, opts ...PoolOption) (*Pool[T], error) {
	if cap <= 0 {
		return nil, merr.WrapErrParameterInvalidRange(1, 1<<16, cap, "pool capacity")
	}
	opt := defaultPoolOption()
	for _, o := range opts {
		o(opt)
	}

	pool, err := ants.NewPool(cap, opt.antsOptions()...)
	if err != nil {
		return nil, merr.WrapErrServiceInternal(err.Error(), "create ants pool")
	}

	return &Pool[T]{
		inner: pool,
		opt:   opt,
	}, nil
}

// Submit 提交一个任务，任务在池中的 worker 上执行。
// 非阻塞模式下池已满时，返回的 Future 直接携带错误。
func (pool *Pool[T]) Submit(method func() (T, error)) *Future[T] {
	future := newFuture[T]()
	err := pool.inner.Submit(func() {
		defer close(future.ch)
		defer func() {
			if x := recover(); x != nil {
				future.err = merr.WrapErrServiceInternal(fmt.Sprintf("panicked with error: %v", x))
				panic(x) // 交给 ants 的 panic handler 处理
			}
		}()

		if pool.opt.preHandler != nil {
			pool.opt.preHandler()
		}

		res, err := method()
		if err != nil {
			future.err = err
		} else {
			future.value = res
		}
	})
	if err != nil {
		future.err = merr.WrapErrServiceInternal(err.Error(), "submit task")
		close(future.ch)
	}

	return future
}

// Cap 返回池的容量。
func (pool *Pool[T]) Cap() int {
	return pool.inner.Cap()
}

// Running 返回正在运行的 worker 数量。
func (pool *Pool[T]) Running() int {
	return pool.inner.Running()
}

// Free 返回空闲 worker 数量。
func (pool *Pool[T]) Free() int {
	return pool.inner.Free()
}

// Release 释放池，之后不能再提交任务。
func (pool *Pool[T]) Release() {
	pool.inner.Release()
}
