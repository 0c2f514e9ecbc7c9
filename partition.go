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

import "github.com/nawi-hub/proteuslib/errs"

// partitionSpan 計算 rank 在 rows 列工作中分到的連續片段 [offset, offset+count)。
//
// 合約：
//   - (rows, size, rank) 的純函數，不需要任何通訊——每個 rank 都能獨立算出
//     自己與其他所有 rank 的片段（聚合時重建 offset 用）。
//   - 各 rank 的片段互不重疊且覆蓋全部列；任兩個 rank 的 count 差至多 1。
//   - 前 rows%size 個 rank 各多拿一列。
func partitionSpan(rows, size, rank int) (offset, count int, err error) {
	if size < 1 {
		return 0, 0, errs.Fatalf("partition size must be >= 1, got %d", size)
	}
	if rank < 0 || rank >= size {
		return 0, 0, errs.Fatalf("partition rank %d out of range [0,%d)", rank, size)
	}
	if rows < 0 {
		return 0, 0, errs.Fatalf("partition rows must be >= 0, got %d", rows)
	}
	base := rows / size
	rem := rows % size
	if rank < rem {
		count = base + 1
		offset = rank * count
	} else {
		count = base
		offset = rem*(base+1) + (rank-rem)*base
	}
	return offset, count, nil
}
