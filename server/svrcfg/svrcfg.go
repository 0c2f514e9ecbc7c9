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

package svrcfg

import (
	"log/slog"

	"github.com/nawi-hub/proteuslib"
	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/server/logger"
)

type SvrCfg struct {
	Log *slog.Logger
	// SweepWorkers：API 啟動的掃描預設的 pool worker 數，
	// 請求可以自帶 workers 覆蓋（同樣受上限 clamp）。
	SweepWorkers int
	Lab          *proteuslib.Lab
}

func (sc *SvrCfg) Vaild() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		// 保持安靜、合法
		sc.Log, _ = logger.NewAsync(1024, logger.ModeDev)
	}

	// 1 <= sc.SweepWorkers <= 64
	// for 資源管理
	sc.SweepWorkers = max(1, sc.SweepWorkers)
	sc.SweepWorkers = min(64, sc.SweepWorkers)
	if sc.Lab == nil {
		return errs.NewFatal("lab is required")
	}
	return nil
}
