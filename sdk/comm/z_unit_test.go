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

package comm

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

// runGroup runs fn on every rank of a fresh group and waits for completion.
func runGroup(t *testing.T, n int, fn func(c *Comm)) {
	t.Helper()
	cs, err := NewGroup(n)
	if err != nil {
		t.Fatalf("NewGroup(%d) failed: %v", n, err)
	}
	wg := new(sync.WaitGroup)
	wg.Add(n)
	for _, c := range cs {
		go func(c *Comm) {
			defer wg.Done()
			fn(c)
		}(c)
	}
	wg.Wait()
}

func TestGroupSizeValidation(t *testing.T) {
	if _, err := NewGroup(0); err == nil {
		t.Fatalf("expected error for size 0")
	}
	if c := Self(); c.Rank() != 0 || c.Size() != 1 {
		t.Fatalf("Self() should be rank 0 of size 1")
	}
}

func TestBroadcast(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		var bad atomic.Int32
		runGroup(t, n, func(c *Comm) {
			var payload []float64
			if c.Rank() == 0 {
				payload = []float64{1, 2, 3}
			}
			got, err := c.Broadcast(payload, 0)
			if err != nil || len(got) != 3 || got[0] != 1 || got[2] != 3 {
				bad.Add(1)
			}
		})
		if bad.Load() != 0 {
			t.Fatalf("broadcast failed on %d ranks", n)
		}
	}
}

func TestBroadcastCopiesPayload(t *testing.T) {
	var shared atomic.Int32
	runGroup(t, 2, func(c *Comm) {
		payload := []float64{float64(c.Rank()) + 10}
		got, _ := c.Broadcast(payload, 0)
		if c.Rank() != 0 {
			got[0] = -1 // must not affect the root's buffer
		}
		c.Barrier()
		if c.Rank() == 0 && payload[0] != 10 {
			shared.Add(1)
		}
	})
	if shared.Load() != 0 {
		t.Fatalf("broadcast shared the underlying array")
	}
}

func TestGatherOrdering(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		var bad atomic.Int32
		runGroup(t, n, func(c *Comm) {
			rows, err := c.Gather([]float64{float64(c.Rank() * 100)}, 0)
			if err != nil {
				bad.Add(1)
				return
			}
			if c.Rank() != 0 {
				if rows != nil {
					bad.Add(1)
				}
				return
			}
			for src, row := range rows {
				if len(row) != 1 || row[0] != float64(src*100) {
					bad.Add(1)
				}
			}
		})
		if bad.Load() != 0 {
			t.Fatalf("gather out of order on %d ranks", n)
		}
	}
}

func TestAllGatherInt(t *testing.T) {
	var bad atomic.Int32
	runGroup(t, 4, func(c *Comm) {
		counts, err := c.AllGatherInt(c.Rank() + 1)
		if err != nil || len(counts) != 4 {
			bad.Add(1)
			return
		}
		for i, v := range counts {
			if v != i+1 {
				bad.Add(1)
			}
		}
	})
	if bad.Load() != 0 {
		t.Fatalf("allgather values wrong")
	}
}

func TestBarrierOrdering(t *testing.T) {
	var before atomic.Int32
	var violated atomic.Int32
	runGroup(t, 5, func(c *Comm) {
		before.Add(1)
		c.Barrier()
		// at this point every rank must have passed the pre-barrier step
		if before.Load() != 5 {
			violated.Add(1)
		}
	})
	if violated.Load() != 0 {
		t.Fatalf("barrier released a rank early")
	}
}

func TestAbortUnblocksCollectives(t *testing.T) {
	// one rank leaves the group via Abort while the others sit in a
	// collective that needs it; they must come back with ErrAborted
	// instead of blocking forever
	var bad atomic.Int32
	runGroup(t, 3, func(c *Comm) {
		if c.Rank() == 1 {
			c.Abort()
			return
		}
		if _, err := c.AllGather([]float64{float64(c.Rank())}); !errors.Is(err, ErrAborted) {
			bad.Add(1)
			return
		}
		// the group stays poisoned for every later collective
		if _, err := c.Broadcast([]float64{1}, 0); !errors.Is(err, ErrAborted) {
			bad.Add(1)
		}
	})
	if bad.Load() != 0 {
		t.Fatalf("abort did not release the blocked ranks")
	}
}

func TestRepeatedCollectives(t *testing.T) {
	// successive collectives on the same group must keep matching up
	var bad atomic.Int32
	runGroup(t, 3, func(c *Comm) {
		for round := 0; round < 10; round++ {
			want := float64(round)
			var payload []float64
			if c.Rank() == 0 {
				payload = []float64{want}
			}
			got, err := c.Broadcast(payload, 0)
			if err != nil || got[0] != want {
				bad.Add(1)
				return
			}
			rows, err := c.Gather([]float64{want + float64(c.Rank())}, 0)
			if err != nil {
				bad.Add(1)
				return
			}
			if c.Rank() == 0 && rows[2][0] != want+2 {
				bad.Add(1)
				return
			}
		}
	})
	if bad.Load() != 0 {
		t.Fatalf("collectives drifted across rounds")
	}
}
