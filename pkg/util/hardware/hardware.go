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


package hardware

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"

	"github.com/lk2023060901/objgraph-go/pkg/log"
)

var (
	cpuNumOnce sync.Once
	cpuNum     int
)

// GetCPUNum 返回逻辑 CPU 核数，gopsutil 读取失败时退回 runtime.NumCPU。
func GetCPUNum() int {
	cpuNumOnce.Do(func() {
		n, err := cpu.Counts(true)
		if err != nil || n <= 0 {
			log.Warn("failed to get cpu counts, fallback to runtime.NumCPU", zap.Error(err))
			n = runtime.NumCPU()
		}
		cpuNum = n
	})
	return cpuNum
}
