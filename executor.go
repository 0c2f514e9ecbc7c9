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

package proteuslib

import (
	"math"

	"github.com/cheggaaa/pb/v3"

	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/sdk/flowsheet"
	"github.com/nawi-hub/proteuslib/spec"
)

// OptimizeFunc 是求解 collaborator：對目前已固定參數的 Flowsheet 執行一次評估。
// 回傳的 Result.Optimal() 決定該樣本成敗；err 代表求解器本身故障，同樣視為樣本失敗。
type OptimizeFunc func(fs flowsheet.Flowsheet) (*flowsheet.Result, error)

// defaultOptimize 直接呼叫模型的 Solve。
func defaultOptimize(fs flowsheet.Flowsheet) (*flowsheet.Result, error) {
	return fs.Solve()
}

// executor 是單一 worker 的逐列評估迴圈。
//
// 每個 worker 擁有自己的 Flowsheet 實例（由 builder 以派生 seed 建立），
// executor 本身沒有任何跨 worker 的共享狀態，唯一的副作用在模型內部。
type executor struct {
	ss       *spec.SweepSetting
	fs       flowsheet.Flowsheet
	optimize OptimizeFunc
}

func newExecutor(ss *spec.SweepSetting, fs flowsheet.Flowsheet, opt OptimizeFunc) *executor {
	if opt == nil {
		opt = defaultOptimize
	}
	return &executor{ss: ss, fs: fs, optimize: opt}
}

// runLocal 評估組合表的 [offset, offset+count) 片段。
//
// 回傳：
//   - outs：count × len(Outputs) row-major 的輸出欄位，失敗列填 NaN。
//   - flags：count 個成功旗標（1/0，走 comm 線路所以用 float64）。
//
// 逐列流程：
//  1. 依參數欄位順序 Fix 本列的值（未知欄位是設定檔 bug，Fatal 中止整輪）。
//  2. 若設定 reinitialize_before_sweep，先 Reinitialize 一次。
//  3. 呼叫 optimize collaborator 並分類成敗。
//  4. 失敗且啟用 reinitialize 時：Reinitialize 後再試一次，仍失敗就定案為失敗列。
//  5. 成功列逐一讀取 output 欄位；失敗列全部填 NaN。
func (e *executor) runLocal(tbl *SampleTable, offset, count int, bar *pb.ProgressBar) (outs, flags []float64, err error) {
	nOut := len(e.ss.Outputs)
	outs = make([]float64, count*nOut)
	flags = make([]float64, count)

	for i := 0; i < count; i++ {
		row := tbl.Row(offset + i)
		for j := range e.ss.Params {
			if ferr := e.fs.Fix(e.ss.Params[j].Field, row[j]); ferr != nil {
				return nil, nil, errs.Wrap(ferr, "fix param failed: "+e.ss.Params[j].Name)
			}
		}

		ok := e.solveOnce(e.ss.ReinitBeforeSolve)
		if !ok && e.ss.Reinit {
			// 一次 reinitialize-and-retry，不再有第二次
			if rerr := e.fs.Reinitialize(); rerr == nil {
				ok = e.solveOnce(false)
			}
		}

		if ok {
			flags[i] = 1
			for j := range e.ss.Outputs {
				v, verr := e.fs.Value(e.ss.Outputs[j].Field)
				if verr != nil {
					return nil, nil, errs.Wrap(verr, "read output failed: "+e.ss.Outputs[j].Name)
				}
				outs[i*nOut+j] = v
			}
		} else {
			for j := 0; j < nOut; j++ {
				outs[i*nOut+j] = math.NaN()
			}
		}

		if bar != nil {
			bar.Increment()
		}
	}
	return outs, flags, nil
}

func (e *executor) solveOnce(reinitFirst bool) bool {
	if reinitFirst {
		if err := e.fs.Reinitialize(); err != nil {
			return false
		}
	}
	res, err := e.optimize(e.fs)
	return err == nil && res.Optimal()
}
