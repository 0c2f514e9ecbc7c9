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
	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/sdk/comm"
	"github.com/nawi-hub/proteuslib/spec"
)

// GlobalResultTable 是一次掃描（或 recursive 掃描全程）的最終結果表。
//
// 列順序與組合表完全一致，與 worker 數無關；失敗列保留原位、輸出填 NaN。
// 聚合完成後唯讀，所有 rank 都持有一份相同的複本。
type GlobalResultTable struct {
	paramNames  []string
	outputNames []string
	rows        int
	params      []float64 // rows × len(paramNames), row-major
	outputs     []float64 // rows × len(outputNames), row-major
	success     []bool
}

func (g *GlobalResultTable) Rows() int             { return g.rows }
func (g *GlobalResultTable) ParamNames() []string  { return g.paramNames }
func (g *GlobalResultTable) OutputNames() []string { return g.outputNames }

// Success 回傳成功旗標向量（與列對齊）。
func (g *GlobalResultTable) Success() []bool { return g.success }

// NumSuccess 回傳成功列數。
func (g *GlobalResultTable) NumSuccess() int {
	n := 0
	for _, ok := range g.success {
		if ok {
			n++
		}
	}
	return n
}

// Row 回傳第 i 列，欄位順序 [params..., outputs...]（複本）。
func (g *GlobalResultTable) Row(i int) []float64 {
	p, o := len(g.paramNames), len(g.outputNames)
	row := make([]float64, p+o)
	copy(row[:p], g.params[i*p:(i+1)*p])
	copy(row[p:], g.outputs[i*o:(i+1)*o])
	return row
}

// Values 回傳整張表的 row-major 複本，欄位順序 [params..., outputs...]。
func (g *GlobalResultTable) Values() [][]float64 {
	out := make([][]float64, g.rows)
	for i := range out {
		out[i] = g.Row(i)
	}
	return out
}

// Dict 回傳以參數／輸出名稱為 key 的欄位字典（值為該欄的複本）。
// 成功旗標以 1/0 收在 "solve_successful" 欄。
func (g *GlobalResultTable) Dict() map[string][]float64 {
	p, o := len(g.paramNames), len(g.outputNames)
	d := make(map[string][]float64, p+o+1)
	for j, name := range g.paramNames {
		col := make([]float64, g.rows)
		for i := 0; i < g.rows; i++ {
			col[i] = g.params[i*p+j]
		}
		d[name] = col
	}
	for j, name := range g.outputNames {
		col := make([]float64, g.rows)
		for i := 0; i < g.rows; i++ {
			col[i] = g.outputs[i*o+j]
		}
		d[name] = col
	}
	flags := make([]float64, g.rows)
	for i, ok := range g.success {
		if ok {
			flags[i] = 1
		}
	}
	d[spec.SuccessColumn] = flags
	return d
}

// output 欄位的 row-major 原始儲存（results 套件序列化用，不複製）。
func (g *GlobalResultTable) rawOutputs() []float64 { return g.outputs }
func (g *GlobalResultTable) rawParams() []float64  { return g.params }

// aggregate 以集體通訊把每個 rank 的 local 結果組回全域表。
//
// 三組對齊資料各走一輪 allgather：成功旗標、輸出欄位。參數欄位不入線——
// 每個 rank 都持有完整組合表，直接取用。
// 列序重建依據 partitionSpan：gather 結果依 rank 順序串接後，
// 第 r 段的長度必須等於 partitionSpan(rows, size, r) 的預測值，
// 不一致代表 partitioner 與 aggregator 失去同步，屬於合約違反（Fatal）。
func aggregate(cm *comm.Comm, tbl *SampleTable, outputNames []string, localOuts, localFlags []float64) (*GlobalResultTable, error) {
	size := cm.Size()
	rows := tbl.Rows()
	nOut := len(outputNames)

	flagParts, err := cm.AllGather(localFlags)
	if err != nil {
		return nil, err
	}
	outParts, err := cm.AllGather(localOuts)
	if err != nil {
		return nil, err
	}

	g := &GlobalResultTable{
		paramNames:  tbl.Names(),
		outputNames: outputNames,
		rows:        rows,
		params:      make([]float64, rows*tbl.Cols()),
		outputs:     make([]float64, rows*nOut),
		success:     make([]bool, rows),
	}
	copy(g.params, tbl.data)

	for r := 0; r < size; r++ {
		offset, count, perr := partitionSpan(rows, size, r)
		if perr != nil {
			return nil, perr
		}
		if len(flagParts[r]) != count || len(outParts[r]) != count*nOut {
			return nil, errs.Fatalf(
				"aggregation mismatch: rank %d sent %d flags / %d outputs, partition predicts %d rows",
				r, len(flagParts[r]), len(outParts[r]), count)
		}
		for i := 0; i < count; i++ {
			g.success[offset+i] = flagParts[r][i] == 1
		}
		copy(g.outputs[offset*nOut:(offset+count)*nOut], outParts[r])
	}
	return g, nil
}
