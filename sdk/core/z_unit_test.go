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

package core

import (
	"math"
	"slices"
	"testing"
)

func TestCoreDeterminism(t *testing.T) {
	c1 := New(Default().New(7))
	c2 := New(Default().New(7))
	for i := 0; i < 5; i++ {
		if c1.Uint64() != c2.Uint64() {
			t.Fatalf("Uint64 mismatch at %d", i)
		}
	}
	if c1.IntN(10) != c2.IntN(10) {
		t.Fatalf("IntN mismatch")
	}
	if c1.UintN(10) != c2.UintN(10) {
		t.Fatalf("UintN mismatch")
	}
	if c1.Float64() != c2.Float64() {
		t.Fatalf("Float64 mismatch")
	}
}

func TestCoreBounds(t *testing.T) {
	c := New(Default().New(3))
	if got := c.IntN(0); got != -1 {
		t.Fatalf("IntN(0) = %d, want -1", got)
	}
	if got := c.UintN(0); got != 0 {
		t.Fatalf("UintN(0) = %d, want 0", got)
	}
	for i := 0; i < 1000; i++ {
		v := c.Float64()
		if v < 0 || v >= 1 || math.IsNaN(v) {
			t.Fatalf("Float64 out of [0,1): %v", v)
		}
		if n := c.IntN(7); n < 0 || n >= 7 {
			t.Fatalf("IntN(7) out of range: %d", n)
		}
	}
}

func TestCoreFloat64Range(t *testing.T) {
	c := New(Default().New(5))
	for i := 0; i < 1000; i++ {
		v := c.Float64Range(-2, 3)
		if v < -2 || v >= 3 {
			t.Fatalf("Float64Range out of [-2,3): %v", v)
		}
	}
}

func TestCorePerm(t *testing.T) {
	c := New(Default().New(9))
	p := c.Perm(6)
	got := slices.Clone(p)
	slices.Sort(got)
	if !slices.Equal(got, []int{0, 1, 2, 3, 4, 5}) {
		t.Fatalf("Perm is not a permutation: %v", p)
	}
}

func TestSnapshotRestoreReplay(t *testing.T) {
	rng := NewPCG64WithSeed(42)
	snap, err := rng.Snapshot()
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	first := make([]uint64, 8)
	for i := range first {
		first[i] = rng.Uint64()
	}
	if err := rng.Restore(snap); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	for i := range first {
		if got := rng.Uint64(); got != first[i] {
			t.Fatalf("replay diverged at %d", i)
		}
	}
}
