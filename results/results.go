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

// Package results 負責掃描結果表的落地：CSV（可壓 gzip）、結構化封存
// （JSON + zstd）、以及失敗列的 NaN 補值。
//
// 本套件只認 Table 介面，不綁引擎型別；任何欄位順序為
// [params..., outputs...] 的結果表都能落地。
package results

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/nawi-hub/proteuslib/errs"
)

// Table 是結果表的最小讀取介面。
type Table interface {
	Rows() int
	ParamNames() []string
	OutputNames() []string
	// Row 回傳第 i 列，欄位順序 [params..., outputs...]。
	Row(i int) []float64
	Success() []bool
}

// WriteCSV 以 %.6e 寫出數值表，首列為逗號相連的欄位名。
func WriteCSV(w io.Writer, header []string, rows [][]float64) error {
	if _, err := io.WriteString(w, strings.Join(header, ",")+"\n"); err != nil {
		return errs.Wrap(err, "write csv header failed")
	}
	var sb strings.Builder
	for _, row := range rows {
		sb.Reset()
		for j, v := range row {
			if j > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "%.6e", v)
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return errs.Wrap(err, "write csv row failed")
		}
	}
	return nil
}

// WriteCSVFile 寫出 CSV 檔；路徑以 .gz 結尾時經 gzip 壓縮。
func WriteCSVFile(path string, header []string, rows [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err, "create csv file failed")
	}
	defer f.Close()

	var w io.Writer = f
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}
	return WriteCSV(w, header, rows)
}

// WriteTableCSV 寫出完整結果表：欄位為 params、outputs，
// 末欄 solve_successful 以 1/0 表示成功旗標。
func WriteTableCSV(t Table, path string) error {
	header := append(append([]string{}, t.ParamNames()...), t.OutputNames()...)
	header = append(header, "solve_successful")

	success := t.Success()
	rows := make([][]float64, t.Rows())
	for i := range rows {
		row := t.Row(i)
		flag := 0.0
		if success[i] {
			flag = 1.0
		}
		rows[i] = append(row, flag)
	}
	return WriteCSVFile(path, header, rows)
}

// Column 是封存中的一欄數值。NaN 在 JSON 中以 null 表示，
// 因為 encoding/json 不接受 NaN 字面值。
type Column []float64

func (c Column) MarshalJSON() ([]byte, error) {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range c {
		if i > 0 {
			sb.WriteByte(',')
		}
		if math.IsNaN(v) {
			sb.WriteString("null")
		} else {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			sb.Write(b)
		}
	}
	sb.WriteByte(']')
	return []byte(sb.String()), nil
}

func (c *Column) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Column, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *p
		}
	}
	*c = out
	return nil
}

// Archive 是結果表的結構化封存：逐欄字典 + 成功旗標向量。
type Archive struct {
	Params  map[string]Column `json:"params"`
	Outputs map[string]Column `json:"outputs"`
	Success []bool            `json:"solve_successful"`
}

// NewArchive 由結果表組出封存結構。
func NewArchive(t Table) *Archive {
	p, o := len(t.ParamNames()), len(t.OutputNames())
	a := &Archive{
		Params:  make(map[string]Column, p),
		Outputs: make(map[string]Column, o),
		Success: append([]bool{}, t.Success()...),
	}
	for _, name := range t.ParamNames() {
		a.Params[name] = make(Column, t.Rows())
	}
	for _, name := range t.OutputNames() {
		a.Outputs[name] = make(Column, t.Rows())
	}
	for i := 0; i < t.Rows(); i++ {
		row := t.Row(i)
		for j, name := range t.ParamNames() {
			a.Params[name][i] = row[j]
		}
		for j, name := range t.OutputNames() {
			a.Outputs[name][i] = row[p+j]
		}
	}
	return a
}

// WriteArchive 把結果表封存成 JSON + zstd 檔。
func WriteArchive(t Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err, "create archive file failed")
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return errs.Wrap(err, "create zstd writer failed")
	}
	defer zw.Close()

	if err := json.NewEncoder(zw).Encode(NewArchive(t)); err != nil {
		return errs.Wrap(err, "encode archive failed")
	}
	return nil
}

// ReadArchive 讀回 WriteArchive 產出的封存檔。
func ReadArchive(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, "open archive file failed")
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, errs.Wrap(err, "create zstd reader failed")
	}
	defer zr.Close()

	a := &Archive{}
	if err := json.NewDecoder(zr).Decode(a); err != nil {
		return nil, errs.Wrap(err, "decode archive failed")
	}
	return a, nil
}
