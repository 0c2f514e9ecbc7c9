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
	"time"

	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/sdk/comm"
	"github.com/nawi-hub/proteuslib/stats"
)

const (
	// maxRecursiveRounds 是 recursive 掃描的硬上限：打到上限就帶著已收集的
	// 成功樣本收工（partial delivery），不再補跑。
	maxRecursiveRounds = 10
	// resampleSafety 是下一輪抽樣量的放大係數，攤平成功率估計的雜訊。
	resampleSafety = 2.0
	// lowRateThreshold 以下的單輪成功率會發出警告：多半代表呼叫端的
	// 取樣範圍幾乎全落在不可行區。
	lowRateThreshold = 0.1
)

// RunRecursive 反覆「抽樣→評估→聚合」直到收滿 req_num_samples 個成功樣本
// 或輪數達到上限。回傳只含成功列的結果表（依輪序壓實、裁到要求數）與統計報告。
//
// 每一輪的組合表都由 rank 0 的同一條取樣流生成，因此固定 seed 可重現整段遞迴。
// 打到輪數上限仍未收滿時不回傳錯誤：結果表帶著已收集的成功列，
// 報告標記 Status = partial 並留下警告紀錄。
func (s *Sweep) RunRecursive(opts SweepOptions) (*GlobalResultTable, *stats.SweepReport, time.Duration, error) {
	start := time.Now()

	req := s.ss.ReqNumSamples
	if req < 1 {
		return nil, nil, 0, errs.Warnf("sweep %s: recursive sweep needs req_num_samples >= 1, got %d", s.SweepName, req)
	}
	if !s.ss.IsRandom() {
		return nil, nil, 0, errs.Warnf("sweep %s: recursive sweep needs at least one random param (fixed grids never change between rounds)", s.SweepName)
	}

	report := stats.NewSweepReport(s.SweepName, s.SweepID, s.baseSeed, req)

	// peer 模式：呼叫端已在群組內。report 是各 peer 私有的物件，
	// 而迴圈決策在所有 rank 上重播，因此每個 peer 都自己填報告。
	if opts.Comm != nil && opts.Comm.Size() > 1 {
		g, err := s.runRecursiveRounds(opts.Comm, &opts, report, true)
		if err != nil {
			return nil, nil, 0, err
		}
		return g, report, time.Since(start), nil
	}

	results := make([]*GlobalResultTable, max(1, opts.Workers))
	err := launch(nil, opts.Workers, func(cm *comm.Comm) error {
		g, rerr := s.runRecursiveRounds(cm, &opts, report, false)
		if rerr != nil {
			return rerr
		}
		results[cm.Rank()] = g
		return nil
	})
	if err != nil {
		return nil, nil, 0, err
	}
	return results[0], report, time.Since(start), nil
}

// runRecursiveRounds 是 recursive 掃描的 SPMD 主體。
//
// 狀態機：SAMPLE（定輪量、建表）→ EVALUATE（runRound）→ AGGREGATE（累計成功數）
// → DECIDE（收滿即停，否則以成功率估下一輪量）。所有 rank 看到相同的聚合結果，
// 因此每個 rank 都能獨立做出相同的迴圈決策，不需要額外的控制訊息。
//
// pool 模式下所有 worker 共寫同一份 report，因此只有 rank 0 寫入；
// peer 模式（ownReport=true）每個 peer 的 report 是私有的，每個 rank 都寫。
// 警告訊息永遠只由 rank 0 發出，避免同一事件被重複記錄。
func (s *Sweep) runRecursiveRounds(cm *comm.Comm, opts *SweepOptions, report *stats.SweepReport, ownReport bool) (*GlobalResultTable, error) {
	log := opts.logger()
	req := s.ss.ReqNumSamples

	// 首輪輪量：未指定 num_samples 時直接以目標成功數起跳
	rows := s.ss.NumSamples
	if rows < 1 {
		rows = req
	}

	var (
		tables      []*GlobalResultTable
		cumulative  int
		successRate float64
	)
	for loopCtr := 0; cumulative < req && loopCtr < maxRecursiveRounds; loopCtr++ {
		g, err := s.runRound(cm, opts, rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, g)

		succ := g.NumSuccess()
		cumulative += succ
		successRate = float64(succ) / float64(g.Rows())

		if ownReport || cm.Rank() == 0 {
			report.AddRound(g.Rows(), succ)
		}
		if cm.Rank() == 0 {
			if successRate < lowRateThreshold {
				log.Warn("low success rate",
					"sweep", s.SweepName,
					"round", loopCtr+1,
					"rate", successRate,
					"rows", g.Rows())
			}
		}

		remaining := req - cumulative
		if remaining <= 0 {
			break
		}
		// 下一輪量：以本輪成功率外推，乘上安全係數
		if successRate > 0 {
			rows = int(math.Ceil(resampleSafety * float64(remaining) / successRate))
		} else {
			rows = int(math.Ceil(resampleSafety * float64(remaining)))
		}
	}

	g := filterRecursiveSolves(tables, s.ss.ParamNames(), s.ss.OutputNames(), req)
	if ownReport || cm.Rank() == 0 {
		report.Done(g.Rows())
	}
	if cm.Rank() == 0 {
		if g.Rows() < req {
			log.Warn("recursive sweep under-delivered",
				"sweep", s.SweepName,
				"requested", req,
				"delivered", g.Rows(),
				"rounds", len(tables))
		}
	}
	return g, nil
}

// filterRecursiveSolves 把各輪的成功列依輪序壓實成單一結果表，
// 並裁切到要求的成功數。回傳表的成功旗標全為 true。
func filterRecursiveSolves(tables []*GlobalResultTable, paramNames, outputNames []string, req int) *GlobalResultTable {
	p, o := len(paramNames), len(outputNames)

	total := 0
	for _, t := range tables {
		total += t.NumSuccess()
	}
	keep := min(total, req)

	g := &GlobalResultTable{
		paramNames:  paramNames,
		outputNames: outputNames,
		rows:        keep,
		params:      make([]float64, keep*p),
		outputs:     make([]float64, keep*o),
		success:     make([]bool, keep),
	}
	n := 0
	for _, t := range tables {
		for i := 0; i < t.rows && n < keep; i++ {
			if !t.success[i] {
				continue
			}
			copy(g.params[n*p:(n+1)*p], t.params[i*p:(i+1)*p])
			copy(g.outputs[n*o:(n+1)*o], t.outputs[i*o:(i+1)*o])
			g.success[n] = true
			n++
		}
	}
	return g
}
