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

// Package sampling 提供掃描參數的取樣策略（Sampling Strategy）。
//
// 合約：Generate(count, c) 回傳恰好 count 個純量；除了消耗傳入的亂數來源外
// 不得有任何副作用。給定相同 seed 與相同呼叫順序，輸出必須完全可重現。
//
// count <= 0 視為呼叫端的程式錯誤（不是掃描期狀況），一律 fail-fast 回傳 Fatal。
package sampling

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/sdk/core"
)

// Kind 列舉取樣策略種類。
type Kind uint8

const (
	Linear Kind = iota // 區間內等距（決定性）
	Uniform            // [lo, hi) 均勻隨機
	Normal             // 給定 mean/std 的常態隨機
)

var kindMap = map[Kind]string{
	Linear:  "linear",
	Uniform: "uniform",
	Normal:  "normal",
}

func (k Kind) String() string {
	if s, ok := kindMap[k]; ok {
		return s
	}
	return "unknown"
}

// IsRandom 回報此策略是否消耗亂數來源。
// 只要掃描中有任何一個參數是 random 策略，整個掃描就採 random sampling
// （每個參數各抽 num_samples 個值做 column-stack，而不是笛卡兒積）。
func (k Kind) IsRandom() bool {
	return k == Uniform || k == Normal
}

// ParseKind 解析設定檔字串。
func ParseKind(s string) (Kind, error) {
	for k, name := range kindMap {
		if name == s {
			return k, nil
		}
	}
	return 0, errs.Fatalf("unknown sampling kind: %q", s)
}

// Strategy 是取樣策略合約。
type Strategy interface {
	Kind() Kind
	// Generate 回傳 count 個純量。count <= 0 回傳 Fatal。
	Generate(count int, c *core.Core) ([]float64, error)
}

// ============================================================
// ** Linear **
// ============================================================

// LinearSample 在 [Lo, Hi] 之間等距取 Count 個點（含端點，決定性）。
//
// Count 是「fixed 掃描」下此參數自己的格點數；在 random 掃描中 Linear 欄位
// 會改以呼叫端指定的列數等距展開，Count 不參與。
type LinearSample struct {
	Lo    float64
	Hi    float64
	Count int
}

func (s *LinearSample) Kind() Kind { return Linear }

func (s *LinearSample) Generate(count int, _ *core.Core) ([]float64, error) {
	if count <= 0 {
		return nil, errs.Fatalf("sampling: generate count must be > 0, got %d", count)
	}
	out := make([]float64, count)
	if count == 1 {
		out[0] = s.Lo
		return out, nil
	}
	step := (s.Hi - s.Lo) / float64(count-1)
	for i := range out {
		out[i] = s.Lo + float64(i)*step
	}
	// 端點直接落位，避免浮點累加誤差
	out[count-1] = s.Hi
	return out, nil
}

// ============================================================
// ** Uniform **
// ============================================================

// UniformSample 自 [Lo, Hi) 均勻抽樣。
type UniformSample struct {
	Lo float64
	Hi float64
}

func (s *UniformSample) Kind() Kind { return Uniform }

func (s *UniformSample) Generate(count int, c *core.Core) ([]float64, error) {
	if count <= 0 {
		return nil, errs.Fatalf("sampling: generate count must be > 0, got %d", count)
	}
	dist := distuv.Uniform{Min: s.Lo, Max: s.Hi, Src: rand.Source(c)}
	out := make([]float64, count)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out, nil
}

// ============================================================
// ** Normal **
// ============================================================

// NormalSample 以 Mean/Std 常態抽樣。
type NormalSample struct {
	Mean float64
	Std  float64
}

func (s *NormalSample) Kind() Kind { return Normal }

func (s *NormalSample) Generate(count int, c *core.Core) ([]float64, error) {
	if count <= 0 {
		return nil, errs.Fatalf("sampling: generate count must be > 0, got %d", count)
	}
	dist := distuv.Normal{Mu: s.Mean, Sigma: s.Std, Src: rand.Source(c)}
	out := make([]float64, count)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out, nil
}
