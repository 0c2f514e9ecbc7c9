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
	"log/slog"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/sdk/comm"
	"github.com/nawi-hub/proteuslib/sdk/core"
	"github.com/nawi-hub/proteuslib/sdk/flowsheet"
	"github.com/nawi-hub/proteuslib/spec"
)

// SweepOptions 控制一次掃描的執行方式。零值可用：single worker、安靜執行。
type SweepOptions struct {
	// Workers：pool 模式的 worker 數；<= 1 時退回 single 模式。
	// 呼叫端已附掛 peer 群組（Comm != nil 且 size > 1）時此欄位不參與。
	Workers int
	// Comm：呼叫端所屬的 peer 通訊群組（SPMD）。附掛後每個 peer 都必須
	// 以自己的把手呼叫同一個 Run 系列方法。
	Comm *comm.Comm
	// Optimize：評估 collaborator；nil 時直接呼叫 Flowsheet.Solve()。
	Optimize OptimizeFunc
	// ShowProgress：在 stdout 顯示逐列進度條（僅 rank 0）。
	ShowProgress bool
	// Log：引擎警告（低成功率、partial delivery）的去處；nil 時靜默。
	Log *slog.Logger
	// DebugDir：非空時每個 rank 把自己的 local 切片落地成 CSV（除錯用）。
	DebugDir string
}

func (o *SweepOptions) logger() *slog.Logger {
	if o.Log != nil {
		return o.Log
	}
	return slog.New(slog.DiscardHandler)
}

// Sweep 是一份掃描設定的執行把手，由 Lab 建立。
//
// 同一個 Sweep 可重複執行；rank 0 的取樣流（sampling stream)會隨每次執行
// 前進，因此「重現一次掃描」的方式是用相同 seed 重新建立 Sweep，而不是
// 重跑同一個把手。
type Sweep struct {
	SweepName string
	SweepID   spec.SID

	ss       *spec.SweepSetting
	reg      *flowsheet.Registry
	pf       core.PRNGFactory
	baseSeed int64
	core     *core.Core // rank-0 取樣流；worker 的 Flowsheet 用派生 seed
}

func newSweep(ss *spec.SweepSetting, reg *flowsheet.Registry, pf core.PRNGFactory, seed int64) (*Sweep, error) {
	if !reg.IsExist(ss.FlowsheetKey) {
		return nil, errs.Fatalf("flowsheet not registered: %s", ss.FlowsheetKey)
	}
	return &Sweep{
		SweepName: ss.SweepName,
		SweepID:   ss.SweepID,
		ss:        ss,
		reg:       reg,
		pf:        pf,
		baseSeed:  seed,
		core:      core.New(pf.New(seed)),
	}, nil
}

func (s *Sweep) Setting() *spec.SweepSetting { return s.ss }

func (s *Sweep) Seed() int64 { return s.baseSeed }

// PlannedRows 回傳 plain 掃描的組合表列數：
// fixed 掃描為各參數 count 的乘積；random 掃描為 num_samples。
func (s *Sweep) PlannedRows() int {
	if !s.ss.IsRandom() {
		rows := 1
		for i := range s.ss.Params {
			rows *= s.ss.Params[i].Count
		}
		return rows
	}
	return s.ss.NumSamples
}

// Run 執行一次 plain 掃描並回傳全域結果表與用時。
//
// 後端選擇見 launch：附掛 peer 群組 > pool > single。SPMD 模式下每個 peer
// 都必須呼叫 Run（帶各自的 opts.Comm），所有 peer 拿到相同的結果表。
func (s *Sweep) Run(opts SweepOptions) (*GlobalResultTable, time.Duration, error) {
	start := time.Now()

	rows := s.PlannedRows()
	if rows < 1 {
		return nil, 0, errs.Warnf("sweep %s: planned rows must be >= 1, got %d (random sweep needs num_samples)", s.SweepName, rows)
	}

	// peer 模式：呼叫端就是群組的一員，直接跑主體
	if opts.Comm != nil && opts.Comm.Size() > 1 {
		g, err := s.runRound(opts.Comm, &opts, rows)
		return g, time.Since(start), err
	}

	results := make([]*GlobalResultTable, max(1, opts.Workers))
	err := launch(nil, opts.Workers, func(cm *comm.Comm) error {
		g, rerr := s.runRound(cm, &opts, rows)
		if rerr != nil {
			return rerr
		}
		results[cm.Rank()] = g
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return results[0], time.Since(start), nil
}

// runRound 是單輪掃描的 SPMD 主體：建表（rank 0）→ broadcast → partition →
// 逐列評估 → aggregate。recursive 掃描的每一輪也走同一條路徑。
//
// tbl 以 rank 0 的取樣流建立並廣播，保證所有 rank 看到同一張表，
// 也保證 random 掃描在任何 worker 數下消耗相同的亂數序列。
// 進度條只掛在 rank 0 的本地切片上（balanced partition 下足以代表整體進度）。
func (s *Sweep) runRound(cm *comm.Comm, opts *SweepOptions, rows int) (*GlobalResultTable, error) {
	var wire []float64
	if cm.Rank() == 0 {
		tbl, err := buildSampleTable(s.ss, rows, s.core)
		if err != nil {
			return nil, err
		}
		wire = tbl.flatten()
	}
	wire, err := cm.Broadcast(wire, 0)
	if err != nil {
		return nil, err
	}
	tbl, err := tableFromFlat(wire, s.ss.ParamNames())
	if err != nil {
		return nil, err
	}

	offset, count, err := partitionSpan(tbl.Rows(), cm.Size(), cm.Rank())
	if err != nil {
		return nil, err
	}

	c := core.New(s.pf.New(workerSeed(s.baseSeed, cm.Rank())))
	fs, err := s.reg.Build(s.ss.FlowsheetKey, s.ss, c)
	if err != nil {
		return nil, errs.Wrap(err, "build flowsheet failed: "+string(s.ss.FlowsheetKey))
	}

	var bar *pb.ProgressBar
	if opts.ShowProgress && cm.Rank() == 0 {
		bar = pb.StartNew(count)
	}
	exec := newExecutor(s.ss, fs, opts.Optimize)
	outs, flags, err := exec.runLocal(tbl, offset, count, bar)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return nil, err
	}

	if opts.DebugDir != "" {
		if derr := dumpLocalSlice(opts.DebugDir, s.SweepName, cm.Rank(), s.ss, tbl, offset, count, outs, flags); derr != nil {
			opts.logger().Warn("debug dump failed", "err", derr, "rank", cm.Rank())
		}
	}

	return aggregate(cm, tbl, s.ss.OutputNames(), outs, flags)
}
