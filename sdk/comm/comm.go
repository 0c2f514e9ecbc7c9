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

// Package comm 提供掃描引擎的 message-passing 工作群組與集體通訊原語
// （broadcast / gather / allgather / barrier）。
//
// 群組由 N 條互相配對的 point-to-point channel 構成，每個成員（rank）握有
// 一個 *Comm 把手。所有集體操作都是 SPMD 合約：群組內「每一個」rank 都必須
// 以相同的順序呼叫相同的集體操作，否則行為未定義（與 MPI 的使用紀律相同）。
// 在此紀律下，per-sender-per-receiver 的 FIFO channel 保證訊息配對正確，
// 不需要 tag 或序號。
//
// 傳遞的 payload 一律在送出前複製，rank 之間不共享底層陣列。
package comm

import (
	"errors"
	"sync"

	"github.com/nawi-hub/proteuslib/errs"
)

// ErrAborted 是群組被 Abort 之後，所有集體操作回傳錯誤的底層 cause。
// 呼叫端可用 errors.Is 區分「原始失敗」與「被失敗的同伴拖垮」。
var ErrAborted = errors.New("comm group aborted")

// Group 是一組 rank 的通訊基盤。
//
// pt[dst][src] 是 src 送往 dst 的專屬通道（cap 1，FIFO）。
// 專屬通道使不同 rank 間的訊息永遠不會互相交錯。
//
// done 在 Abort 時關閉：所有阻塞中的集體操作都會立刻返回錯誤，
// 之後的集體操作也一樣。沒有這條路徑，一個 rank 帶錯離開群組時
// 其餘 rank 會永遠卡在集體操作裡等它。
type Group struct {
	size      int
	pt        [][]chan []float64
	done      chan struct{}
	abortOnce sync.Once
}

// Comm 是單一 rank 對群組的通訊把手。
//
// 同一個 Comm 不可被多個 goroutine 並用；一個 rank 一個 goroutine。
type Comm struct {
	g    *Group
	rank int
}

// NewGroup 建立 n 個成員的通訊群組，回傳每個 rank 的把手（index 即 rank）。
func NewGroup(n int) ([]*Comm, error) {
	if n < 1 {
		return nil, errs.Warnf("comm group size must be >= 1, got %d", n)
	}
	g := &Group{
		size: n,
		pt:   make([][]chan []float64, n),
		done: make(chan struct{}),
	}
	for dst := 0; dst < n; dst++ {
		g.pt[dst] = make([]chan []float64, n)
		for src := 0; src < n; src++ {
			g.pt[dst][src] = make(chan []float64, 1)
		}
	}
	cs := make([]*Comm, n)
	for r := 0; r < n; r++ {
		cs[r] = &Comm{g: g, rank: r}
	}
	return cs, nil
}

// Self 回傳一個 size=1 的單人群組把手（single-worker backend 用）。
func Self() *Comm {
	cs, _ := NewGroup(1)
	return cs[0]
}

func (c *Comm) Rank() int { return c.rank }

func (c *Comm) Size() int { return c.g.size }

// Abort 使整個群組失效。任何 rank 要帶著錯誤離開群組之前都必須呼叫，
// 讓還卡在集體操作裡的同伴立刻解除阻塞並拿到錯誤。重複呼叫無害。
func (c *Comm) Abort() {
	c.g.abortOnce.Do(func() { close(c.g.done) })
}

// abortedErr 在群組已失效時回傳對應錯誤，否則回傳 nil。
func (c *Comm) abortedErr() error {
	select {
	case <-c.g.done:
		return errs.Wrap(ErrAborted, "collective on aborted group")
	default:
		return nil
	}
}

// Broadcast 由 root 將 buf 發給所有成員；每個成員都會取得自己的一份複本。
// root 以外的呼叫端傳入的 buf 會被忽略。
func (c *Comm) Broadcast(buf []float64, root int) ([]float64, error) {
	if root < 0 || root >= c.g.size {
		return nil, errs.Fatalf("broadcast root %d out of range [0,%d)", root, c.g.size)
	}
	if err := c.abortedErr(); err != nil {
		return nil, err
	}
	if c.g.size == 1 {
		return buf, nil
	}
	if c.rank == root {
		for dst := 0; dst < c.g.size; dst++ {
			if dst == root {
				continue
			}
			select {
			case c.g.pt[dst][root] <- cloneBuf(buf):
			case <-c.g.done:
				return nil, errs.Wrap(ErrAborted, "broadcast interrupted")
			}
		}
		return buf, nil
	}
	select {
	case b := <-c.g.pt[c.rank][root]:
		return b, nil
	case <-c.g.done:
		return nil, errs.Wrap(ErrAborted, "broadcast interrupted")
	}
}

// Gather 將每個成員的 local 蒐集到 root，依 rank 順序排列。
// root 取得長度為 Size() 的 slice；其他成員取得 nil。
func (c *Comm) Gather(local []float64, root int) ([][]float64, error) {
	if root < 0 || root >= c.g.size {
		return nil, errs.Fatalf("gather root %d out of range [0,%d)", root, c.g.size)
	}
	if err := c.abortedErr(); err != nil {
		return nil, err
	}
	if c.g.size == 1 {
		return [][]float64{local}, nil
	}
	if c.rank != root {
		select {
		case c.g.pt[root][c.rank] <- cloneBuf(local):
			return nil, nil
		case <-c.g.done:
			return nil, errs.Wrap(ErrAborted, "gather interrupted")
		}
	}
	rows := make([][]float64, c.g.size)
	for src := 0; src < c.g.size; src++ {
		if src == root {
			rows[src] = local
			continue
		}
		select {
		case rows[src] = <-c.g.pt[root][src]:
		case <-c.g.done:
			return nil, errs.Wrap(ErrAborted, "gather interrupted")
		}
	}
	return rows, nil
}

// AllGather 等價於 Gather + 每個成員都拿到完整結果。
//
// 實作為 Size() 次輪流 broadcast：每一輪由 rank=src 當 root。
// 在 SPMD 紀律下這是最簡單且不會 deadlock 的寫法。
func (c *Comm) AllGather(local []float64) ([][]float64, error) {
	rows := make([][]float64, c.g.size)
	for src := 0; src < c.g.size; src++ {
		row, err := c.Broadcast(local, src)
		if err != nil {
			return nil, err
		}
		rows[src] = row
	}
	return rows, nil
}

// AllGatherInt 是 AllGather 的單一整數便捷版（例如各 rank 的成功數）。
func (c *Comm) AllGatherInt(v int) ([]int, error) {
	rows, err := c.AllGather([]float64{float64(v)})
	if err != nil {
		return nil, err
	}
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = int(r[0])
	}
	return out, nil
}

// Barrier 同步所有成員：全員到齊前沒有人離開。
func (c *Comm) Barrier() {
	if c.g.size == 1 {
		return
	}
	// gather 到 rank 0 再由 rank 0 釋放，zero-length payload
	_, _ = c.Gather(nil, 0)
	_, _ = c.Broadcast(nil, 0)
}

func cloneBuf(src []float64) []float64 {
	if src == nil {
		return nil
	}
	dst := make([]float64, len(src))
	copy(dst, src)
	return dst
}
