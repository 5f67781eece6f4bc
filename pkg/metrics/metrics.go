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

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// objgraphNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	objgraphNamespace = "objgraph"

	// 以下为当前使用的通用标签名。
	statusLabelName  = "status"
	opLabelName      = "op"
	backendLabelName = "backend"

	SuccessLabel = "success"
	FailLabel    = "fail"

	SerializeLabel   = "serialize"
	DeserializeLabel = "deserialize"
)

var (
	// buckets 为耗时直方图的桶划分，单位为毫秒。
	// [1 2 4 8 16 32 64 128 256 512 1024 2048 4096 8192 16384 32768 65536 1.31072e+05]
	buckets = prometheus.ExponentialBuckets(1, 2, 18)

	// sizeBuckets 为数据大小的桶划分，单位为字节，从 64B 到 1GB。
	sizeBuckets = prometheus.ExponentialBuckets(64, 4, 13)

	// countBuckets 为对象个数的桶划分。
	countBuckets = prometheus.ExponentialBuckets(1, 4, 12)

	registerOnce     sync.Once
	metricRegisterer prometheus.Registerer
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标，重复调用只有第一次生效。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		registerGraphMetrics(r)
		registerStoreMetrics(r)
		metricRegisterer = r
	})
}
