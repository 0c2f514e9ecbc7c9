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
	"errors"
	"sync"

	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/sdk/comm"
)

// runBody 是掃描主體：每個 worker 以自己的通訊把手跑一份（SPMD）。
type runBody func(cm *comm.Comm) error

// launch 選擇並行後端並執行掃描主體。
//
// 選擇順序（啟動時判定一次，一輪之內絕不混用）：
//  1. 呼叫端已身處 size > 1 的 peer 群組（attached != nil）⇒ peer 模式：
//     呼叫端就是群組的一員，直接在當前 goroutine 跑主體。
//  2. workers > 1 ⇒ pool 模式：引擎自建通訊群組並 fan-out workers 條 goroutine。
//  3. 其他 ⇒ single 模式：size=1 的 trivial 群組，主體在呼叫端 goroutine 跑完。
func launch(attached *comm.Comm, workers int, body runBody) error {
	if attached != nil && attached.Size() > 1 {
		// peer 的失敗必須 Abort 群組，否則其餘 peer 會卡死在集體操作裡等它
		if err := body(attached); err != nil {
			attached.Abort()
			return err
		}
		return nil
	}
	if workers > 1 {
		return launchPool(workers, body)
	}
	return body(comm.Self())
}

// launchPool 自建 size=workers 的通訊群組，每個 rank 一條 goroutine。
//
// 任一 worker 帶錯（或 panic）離開時立刻 Abort 群組：還卡在集體操作裡的
// 同伴會以 comm.ErrAborted 解除阻塞，wg.Wait 才保證返回。回報時優先挑
// 原始失敗，Abort 連帶的錯誤只在沒有其他候選時才當回傳值。
func launchPool(workers int, body runBody) error {
	cms, err := comm.NewGroup(workers)
	if err != nil {
		return err
	}

	wg := new(sync.WaitGroup)
	wg.Add(workers)
	workerErrs := make([]error, workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			werr := func() (berr error) {
				defer func() {
					if r := recover(); r != nil {
						berr = errs.Fatalf("worker %d panicked: %v", i, r)
					}
				}()
				return body(cms[i])
			}()
			if werr != nil {
				cms[i].Abort()
			}
			workerErrs[i] = werr
		}(i)
	}
	wg.Wait()

	var aborted error
	for _, werr := range workerErrs {
		if werr == nil {
			continue
		}
		if errors.Is(werr, comm.ErrAborted) {
			if aborted == nil {
				aborted = werr
			}
			continue
		}
		return werr
	}
	return aborted
}
