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

// Package flowsheet 定義掃描引擎與程序模型之間的合約。
//
// 一個 Flowsheet 是「可固定參數、可求解、可讀取輸出」的模型實例。
// 引擎對模型的認識僅止於這個介面：固定 → 求解 → 取值；
// 求解器本身（代數方程、模擬器、外部程式）由各模型自行封裝。
package flowsheet

import (
	"fmt"

	"github.com/nawi-hub/proteuslib/errs"
)

// Termination 表示一次求解的收斂狀態。
type Termination int

const (
	// Optimal：求解成功，所有輸出欄位可讀。
	Optimal Termination = iota
	// Infeasible：在目前固定的參數組合下無可行解。
	Infeasible
	// MaxIterReached：疊代上限內未收斂。
	MaxIterReached
	// SolverError：求解器自身出錯（非模型問題）。
	SolverError
)

var terminationMap = map[Termination]string{
	Optimal:        "optimal",
	Infeasible:     "infeasible",
	MaxIterReached: "max_iter_reached",
	SolverError:    "solver_error",
}

func (t Termination) String() string {
	if s, ok := terminationMap[t]; ok {
		return s
	}
	return fmt.Sprintf("termination(%d)", int(t))
}

// Result 是一次 Solve 的結果摘要。
type Result struct {
	Termination Termination
	Message     string
}

// Optimal 回報本次求解是否成功收斂。
// 引擎只看這個旗標：false 的樣本一律視為失敗（輸出填 NaN）。
func (r *Result) Optimal() bool {
	return r != nil && r.Termination == Optimal
}

// Flowsheet 是程序模型在掃描期的介面。
//
// ### 合約（非常重要）
//   - **非並行安全 (NOT thread-safe)**：一個 Flowsheet 只能在單一 worker goroutine 使用；
//     每個 worker 由 Builder 建立自己的實例。
//   - Fix / Value 的 field 是模型自己的取值路徑（例如 "feed.pressure"），
//     未知 field 應回傳 Fatal：這是設定檔寫錯，不是模型失敗。
//   - Solve 的「模型不收斂」應表達在 Result.Termination，而不是 error；
//     error 保留給求解器本身的故障。
type Flowsheet interface {
	// Fix 將欄位固定為指定值。
	Fix(field string, v float64) error
	// Value 讀取欄位目前的值；在成功 Solve 之後呼叫才有意義。
	Value(field string) (float64, error)
	// Solve 求解目前固定的參數組合。
	Solve() (*Result, error)
	// Reinitialize 把模型狀態拉回已知的可解起點。
	Reinitialize() error
}

// UnknownField 組出未知欄位的標準錯誤，供模型實作共用。
func UnknownField(field string) error {
	return errs.Fatalf("unknown flowsheet field: %q", field)
}
