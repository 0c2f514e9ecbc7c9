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

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// App 統一管理多個 Component 的啟動與關閉。
// 收到 OS 終止信號或任一 Component 出錯時，會對所有元件觸發優雅關閉。
type App struct {
	comps []Component
}

// New 建立一個空的 App。
func New() *App { return &App{} }

// NewWith 建立 App 並一次註冊多個 Component。
func NewWith(comps ...Component) *App {
	app := New()
	for _, c := range comps {
		app.Register(c)
	}
	return app
}

// Register 註冊一個 Component，Run 時由 App 接管其生命週期。
func (a *App) Register(c Component) {
	a.comps = append(a.comps, c)
}

// Run 以 goroutine 並行啟動所有已註冊的 Component，並阻塞直到：
// - 收到 SIGINT/SIGTERM：優雅關閉後回傳 nil（正常結束）。
// - 任一 Component.Run 回傳錯誤：優雅關閉後回傳該錯誤。
// 前提是每個 Component.Run 為阻塞呼叫，代表該元件的整個生命週期。
func (a *App) Run() error {
	// errCh 收集第一個回報錯誤的 Component
	errCh := make(chan error, len(a.comps))
	for _, c := range a.comps {
		go func(c Component) {
			errCh <- c.Run()
		}(c)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	// 兩種退出路徑：OS 信號或 Component 錯誤
	select {
	case <-quit:
		a.gracefulShutdown(5 * time.Second)
		return nil
	case err := <-errCh:
		a.gracefulShutdown(5 * time.Second)
		return err
	}
}

// gracefulShutdown 在 timeout 內依序呼叫所有 Component.Shutdown。
// 無法如期關閉的元件由實作者自行決定強制中止或忽略。
func (a *App) gracefulShutdown(td time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), td)
	defer cancel()
	for _, c := range a.comps {
		if err := c.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stdout, "shutdown err: %v\n", err)
		}
	}
}
