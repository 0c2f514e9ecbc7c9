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

package results

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"

	"github.com/nawi-hub/proteuslib/errs"
)

// InterpolateNaN 回傳結果表的補值副本：成功列原樣保留，失敗列的
// 輸出欄由成功列估計。單一參數時沿參數軸做 piecewise-linear 內插
// （範圍外取端點值）；多參數時用成功列的反距離加權（1/d²）。
// 參數欄永不改動。沒有任何成功列時回報 Warn 級錯誤。
func InterpolateNaN(t Table) ([][]float64, error) {
	nP := len(t.ParamNames())
	nO := len(t.OutputNames())
	success := t.Success()

	rows := make([][]float64, t.Rows())
	okIdx := make([]int, 0, t.Rows())
	for i := range rows {
		rows[i] = t.Row(i)
		if success[i] {
			okIdx = append(okIdx, i)
		}
	}
	if len(okIdx) == 0 {
		return nil, errs.NewWarn("no successful rows to interpolate from")
	}

	if nP == 1 {
		if err := fillByAxis(rows, okIdx, nP, nO); err != nil {
			return nil, err
		}
		return rows, nil
	}
	fillByDistance(rows, okIdx, success, nP, nO)
	return rows, nil
}

// fillByAxis 沿唯一的參數軸補值。重複的 x 只取首次出現，
// 可用點不足兩個時退化為成功列的輸出平均。
func fillByAxis(rows [][]float64, okIdx []int, nP, nO int) error {
	order := append([]int{}, okIdx...)
	sort.Slice(order, func(a, b int) bool { return rows[order[a]][0] < rows[order[b]][0] })

	xs := make([]float64, 0, len(order))
	keep := make([]int, 0, len(order))
	for _, i := range order {
		x := rows[i][0]
		if len(xs) > 0 && x == xs[len(xs)-1] {
			continue
		}
		xs = append(xs, x)
		keep = append(keep, i)
	}

	for j := 0; j < nO; j++ {
		col := nP + j
		fill := func(x float64) float64 { return meanAt(rows, okIdx, col) }
		if len(xs) >= 2 {
			ys := make([]float64, len(keep))
			for k, i := range keep {
				ys[k] = rows[i][col]
			}
			var pl interp.PiecewiseLinear
			if err := pl.Fit(xs, ys); err != nil {
				return errs.Wrap(err, "fit piecewise linear failed")
			}
			fill = pl.Predict
		}
		for i := range rows {
			if math.IsNaN(rows[i][col]) {
				rows[i][col] = fill(rows[i][0])
			}
		}
	}
	return nil
}

// fillByDistance 以成功列的反距離加權估計失敗列的輸出；
// 參數點完全重合時直接取該成功列的值。
func fillByDistance(rows [][]float64, okIdx []int, success []bool, nP, nO int) {
	for i := range rows {
		if success[i] {
			continue
		}
		var wSum float64
		w := make([]float64, len(okIdx))
		exact := -1
		for k, s := range okIdx {
			var d2 float64
			for p := 0; p < nP; p++ {
				dx := rows[i][p] - rows[s][p]
				d2 += dx * dx
			}
			if d2 == 0 {
				exact = s
				break
			}
			w[k] = 1 / d2
			wSum += w[k]
		}
		for j := 0; j < nO; j++ {
			col := nP + j
			if !math.IsNaN(rows[i][col]) {
				continue
			}
			if exact >= 0 {
				rows[i][col] = rows[exact][col]
				continue
			}
			var acc float64
			for k, s := range okIdx {
				acc += w[k] * rows[s][col]
			}
			rows[i][col] = acc / wSum
		}
	}
}

func meanAt(rows [][]float64, idx []int, col int) float64 {
	var sum float64
	for _, i := range idx {
		sum += rows[i][col]
	}
	return sum / float64(len(idx))
}
