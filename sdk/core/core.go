// Copyright 2025 Nawi Hub
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package core 提供掃描引擎的亂數核心（PRNG）合約與預設實作。
//
// 設計重點：
//   - 亂數來源一律以「顯式值」在 Combination Builder / Recursive Controller 之間傳遞，
//     絕不使用 process-wide 的全域亂數狀態，避免並行測試互相干擾。
//   - 相同 seed 必須產生相同輸出序列（可重現是本引擎的硬性需求）。
//   - Snapshot/Restore 允許把某一輪掃描的 RNG 狀態留存下來，事後回放。
package core

// PRNG 定義 Core 所需的亂數來源，需同時支援取樣與狀態保存/還原。
type PRNG interface {
	RAND
	Restorable
}

// Restorable 定義可快照與還原的狀態介面。
type Restorable interface {
	// Snapshot 回傳可用於還原的序列化狀態。
	Snapshot() ([]byte, error)
	// Restore 依序列化狀態還原 PRNG 內部狀態。
	Restore([]byte) error
}

// RAND 定義核心亂數取樣能力。
//
// 四個方法（Uint64 / Float64 / UintN / IntN）都交由 PRNG 自己實作：
//   - bounded 生成（UintN/IntN）各家 PRNG 有不同的 fast path，不應由外層統一轉換。
//   - Float64 的精度（53-bit mantissa）與生成方式由實作明確決定。
//   - Uint64 同時讓 PRNG 滿足 math/rand/v2 的 rand.Source，
//     因此可以直接塞進 gonum 的 distuv 分布作為 Src。
type RAND interface {
	// Uint64 回傳非負 uint64 亂數。
	Uint64() uint64
	// Float64 回傳 [0,1) 的浮點亂數。
	Float64() float64
	// UintN 回傳 [0,max) 的 uint 亂數，若 max == 0 回傳 0。
	UintN(uint) uint
	// IntN 回傳 [0,max) 的 int 亂數，若 max <= 0 回傳 -1。
	IntN(int) int
}

// PRNGFactory 以指定 seed 建立新的 PRNG。
//
// 合約：同一實作與版本下，New(seed) 必須是決定性的——相同 seed 產生相同的
// 初始狀態與輸出序列。掃描引擎的 seed 生命週期由 Lab 統一管理：
// 外部未提供時由 Lab 產生並保存 baseSeed，後續所有 worker 的 Flowsheet
// 皆由 baseSeed 以固定算法派生子 seed，因此這裡永遠不需要「不帶 seed 的 New」。
type PRNGFactory interface {
	New(int64) PRNG
}

// DefaultPRNG 實作預設的 PRNGFactory（PCG64）
type DefaultPRNG struct{}

// New 滿足 PRNGFactory 合約
func (d *DefaultPRNG) New(seed int64) PRNG {
	return NewPCG64WithSeed(seed)
}

func Default() *DefaultPRNG {
	return &DefaultPRNG{}
}

// Core 封裝 PRNG，並提供抽樣工具方法。
type Core struct {
	PRNG
}

// New 允許使用外部自實現的 PRNG 建立 Core。
func New(rng PRNG) *Core {
	return &Core{rng}
}

// Float64Range 回傳 [lo, hi) 的均勻亂數。
func (c *Core) Float64Range(lo, hi float64) float64 {
	return lo + (hi-lo)*c.Float64()
}

// Perm 回傳 [0,n) 的隨機排列（Fisher-Yates，就地建構，零額外配置）。
func (c *Core) Perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := c.IntN(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	return p
}
