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
	"os"
	"path/filepath"
	"strings"

	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/results"
	"github.com/nawi-hub/proteuslib/spec"
)

// dumpLocalSlice 把單一 worker 的本地結果片段落成 CSV，供除錯比對
// 聚合前後的資料。檔名帶 rank 後綴，每個 worker 各寫各的檔。
func dumpLocalSlice(dir, sweepName string, rank int, ss *spec.SweepSetting,
	tbl *SampleTable, offset, count int, outs, flags []float64) error {

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(err, "create debug dir failed")
	}

	header := append(append([]string{}, ss.ParamNames()...), ss.OutputNames()...)
	header = append(header, spec.SuccessColumn)

	nOut := len(ss.OutputNames())
	rows := make([][]float64, count)
	for i := 0; i < count; i++ {
		row := append([]float64{}, tbl.Row(offset+i)...)
		row = append(row, outs[i*nOut:(i+1)*nOut]...)
		rows[i] = append(row, flags[i])
	}

	name := fmt.Sprintf("%s_rank%d.csv", sanitizeFileName(sweepName), rank)
	return results.WriteCSVFile(filepath.Join(dir, name), header, rows)
}

// sanitizeFileName 把掃描名裡不適合進檔名的字元換成底線。
func sanitizeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}
