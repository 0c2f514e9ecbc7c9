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
	"fmt"

	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/sdk/core"
	"github.com/nawi-hub/proteuslib/sdk/sampling"
	"github.com/nawi-hub/proteuslib/spec"
)

// SampleTable 是一輪掃描的組合表：rows 個樣本 × cols 個參數，
// row-major 連續儲存，欄位順序固定為 SweepSetting.Params 的宣告順序。
//
// 合約：建表之後唯讀；recursive 掃描每一輪建一張新表，絕不就地改寫。
type SampleTable struct {
	names []string
	rows  int
	cols  int
	data  []float64
}

func (t *SampleTable) Rows() int       { return t.rows }
func (t *SampleTable) Cols() int       { return t.cols }
func (t *SampleTable) Names() []string { return t.names }

// Row 回傳第 i 列的 view（不複製）。呼叫端不可修改。
func (t *SampleTable) Row(i int) []float64 {
	return t.data[i*t.cols : (i+1)*t.cols]
}

func (t *SampleTable) At(i, j int) float64 {
	return t.data[i*t.cols+j]
}

// buildSampleTable 依 SweepSetting 組出一輪的組合表。
//
// 取樣型別解析（sampling-type resolution）：
//   - 全部參數皆為 linear ⇒ fixed 掃描：各參數先做 linspace，再取笛卡兒積，
//     rows = Π countᵢ，第一個參數最慢變動（odometer order）。numSamples 會被忽略。
//   - 任一參數為 random ⇒ random 掃描：每個參數各抽 numSamples 個值後 column-stack，
//     rows = numSamples。linear 參數在 random 掃描下改為對 numSamples 均分取點。
//
// 決定性：相同 (setting, numSamples, PRNG 狀態) 必定產出 bit-identical 的表。
// 抽樣依參數宣告順序逐欄進行，因此消耗的亂數序列也是決定性的。
func buildSampleTable(ss *spec.SweepSetting, numSamples int, c *core.Core) (*SampleTable, error) {
	cols := len(ss.Params)
	if cols == 0 {
		return nil, errs.NewFatal("sweep has no params")
	}

	if !ss.IsRandom() {
		return buildCartesian(ss)
	}

	if numSamples < 1 {
		return nil, errs.Fatalf("random sweep needs num_samples >= 1, got %d", numSamples)
	}

	// column-stack：逐參數抽滿 numSamples 個值
	colVals := make([][]float64, cols)
	for j := range ss.Params {
		p := &ss.Params[j]
		st := p.Strategy()
		if p.Kind().IsRandom() {
			vals, err := st.Generate(numSamples, c)
			if err != nil {
				return nil, errs.Wrap(err, fmt.Sprintf("param: %s", p.Name))
			}
			colVals[j] = vals
			continue
		}
		// random 掃描中的 linear 欄：對同一列數均分取點
		lin := &sampling.LinearSample{Lo: p.Lower, Hi: p.Upper}
		vals, err := lin.Generate(numSamples, c)
		if err != nil {
			return nil, errs.Wrap(err, fmt.Sprintf("param: %s", p.Name))
		}
		colVals[j] = vals
	}

	t := &SampleTable{
		names: ss.ParamNames(),
		rows:  numSamples,
		cols:  cols,
		data:  make([]float64, numSamples*cols),
	}
	for i := 0; i < numSamples; i++ {
		for j := 0; j < cols; j++ {
			t.data[i*cols+j] = colVals[j][i]
		}
	}
	return t, nil
}

func buildCartesian(ss *spec.SweepSetting) (*SampleTable, error) {
	cols := len(ss.Params)
	colVals := make([][]float64, cols)
	rows := 1
	for j := range ss.Params {
		p := &ss.Params[j]
		vals, err := p.Strategy().Generate(p.Count, nil)
		if err != nil {
			return nil, errs.Wrap(err, fmt.Sprintf("param: %s", p.Name))
		}
		colVals[j] = vals
		rows *= len(vals)
	}

	t := &SampleTable{
		names: ss.ParamNames(),
		rows:  rows,
		cols:  cols,
		data:  make([]float64, rows*cols),
	}
	// odometer：最後一欄最快變動
	idx := make([]int, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			t.data[i*cols+j] = colVals[j][idx[j]]
		}
		for j := cols - 1; j >= 0; j-- {
			idx[j]++
			if idx[j] < len(colVals[j]) {
				break
			}
			idx[j] = 0
		}
	}
	return t, nil
}

// flatten 把表編碼成可走 comm broadcast 的單一 []float64：
// [rows, cols, data...]。names 不入線，各 rank 由 setting 自行取得。
func (t *SampleTable) flatten() []float64 {
	buf := make([]float64, 2+len(t.data))
	buf[0] = float64(t.rows)
	buf[1] = float64(t.cols)
	copy(buf[2:], t.data)
	return buf
}

func tableFromFlat(buf []float64, names []string) (*SampleTable, error) {
	if len(buf) < 2 {
		return nil, errs.NewFatal("sample table wire buffer too short")
	}
	rows, cols := int(buf[0]), int(buf[1])
	if rows < 0 || cols < 1 || len(buf) != 2+rows*cols {
		return nil, errs.Fatalf("sample table wire buffer malformed: rows=%d cols=%d len=%d", rows, cols, len(buf))
	}
	return &SampleTable{
		names: names,
		rows:  rows,
		cols:  cols,
		data:  buf[2:],
	}, nil
}
