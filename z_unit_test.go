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
	"math"
	"sync"
	"testing"
	"time"

	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/sdk/comm"
	"github.com/nawi-hub/proteuslib/sdk/core"
	"github.com/nawi-hub/proteuslib/sdk/flowsheet"
	"github.com/nawi-hub/proteuslib/spec"
	"github.com/nawi-hub/proteuslib/stats"
)

// ============================================================
// Test fixtures: fake flowsheets
// ============================================================

// sumSheet always solves; output "f.sum" is the sum of fixed fields.
type sumSheet struct {
	vals   map[string]float64
	solved bool
}

func buildSumSheet(_ *spec.SweepSetting, _ *core.Core) (flowsheet.Flowsheet, error) {
	return &sumSheet{vals: map[string]float64{}}, nil
}

func (s *sumSheet) Fix(field string, v float64) error {
	s.vals[field] = v
	s.solved = false
	return nil
}

func (s *sumSheet) Value(field string) (float64, error) {
	if field == "f.sum" {
		total := 0.0
		for _, v := range s.vals {
			total += v
		}
		return total, nil
	}
	if v, ok := s.vals[field]; ok {
		return v, nil
	}
	return math.NaN(), flowsheet.UnknownField(field)
}

func (s *sumSheet) Solve() (*flowsheet.Result, error) {
	s.solved = true
	return &flowsheet.Result{Termination: flowsheet.Optimal}, nil
}

func (s *sumSheet) Reinitialize() error { return nil }

// thresholdSheet solves only when "f.x" <= 0.5; output "f.val" is 2x.
type thresholdSheet struct {
	x float64
}

func buildThresholdSheet(_ *spec.SweepSetting, _ *core.Core) (flowsheet.Flowsheet, error) {
	return &thresholdSheet{}, nil
}

func (s *thresholdSheet) Fix(field string, v float64) error {
	if field != "f.x" {
		return flowsheet.UnknownField(field)
	}
	s.x = v
	return nil
}

func (s *thresholdSheet) Value(field string) (float64, error) {
	if field != "f.val" {
		return math.NaN(), flowsheet.UnknownField(field)
	}
	return 2 * s.x, nil
}

func (s *thresholdSheet) Solve() (*flowsheet.Result, error) {
	if s.x > 0.5 {
		return &flowsheet.Result{Termination: flowsheet.Infeasible}, nil
	}
	return &flowsheet.Result{Termination: flowsheet.Optimal}, nil
}

func (s *thresholdSheet) Reinitialize() error { return nil }

// failSheet never solves.
type failSheet struct{}

func buildFailSheet(_ *spec.SweepSetting, _ *core.Core) (flowsheet.Flowsheet, error) {
	return &failSheet{}, nil
}

func (s *failSheet) Fix(string, float64) error { return nil }

func (s *failSheet) Value(string) (float64, error) { return math.NaN(), nil }

func (s *failSheet) Solve() (*flowsheet.Result, error) {
	return &flowsheet.Result{Termination: flowsheet.SolverError}, nil
}

func (s *failSheet) Reinitialize() error { return nil }

// flakySheet fails the first solve after every Fix and only succeeds
// once Reinitialize has been called since the last failure.
type flakySheet struct {
	x     float64
	fresh bool
}

func buildFlakySheet(_ *spec.SweepSetting, _ *core.Core) (flowsheet.Flowsheet, error) {
	return &flakySheet{}, nil
}

func (s *flakySheet) Fix(field string, v float64) error {
	s.x = v
	s.fresh = false
	return nil
}

func (s *flakySheet) Value(string) (float64, error) { return s.x, nil }

func (s *flakySheet) Solve() (*flowsheet.Result, error) {
	if !s.fresh {
		return &flowsheet.Result{Termination: flowsheet.MaxIterReached}, nil
	}
	return &flowsheet.Result{Termination: flowsheet.Optimal}, nil
}

func (s *flakySheet) Reinitialize() error {
	s.fresh = true
	return nil
}

func testRegistry(t *testing.T) *flowsheet.Registry {
	t.Helper()
	reg := flowsheet.NewRegistry()
	for key, b := range map[spec.FlowsheetKey]flowsheet.Builder{
		"sum":       buildSumSheet,
		"threshold": buildThresholdSheet,
		"fail":      buildFailSheet,
		"flaky":     buildFlakySheet,
	} {
		if err := reg.Register(key, b); err != nil {
			t.Fatalf("register %s failed: %v", key, err)
		}
	}
	return reg
}

func mustSetting(t *testing.T, yaml string) *spec.SweepSetting {
	t.Helper()
	ss, err := spec.GetSweepSettingByYAML([]byte(yaml))
	if err != nil {
		t.Fatalf("parse setting failed: %v", err)
	}
	return ss
}

func mustSweep(t *testing.T, yaml string, seed int64) *Sweep {
	t.Helper()
	s, err := newSweep(mustSetting(t, yaml), testRegistry(t), core.Default(), seed)
	if err != nil {
		t.Fatalf("new sweep failed: %v", err)
	}
	return s
}

const gridSumYAML = `
sweep_name: grid_sum
sweep_id: 1
flowsheet_key: sum
sweep_params:
  - {name: x, field: f.x, sampling: linear, lower: 0, upper: 1, count: 3}
  - {name: y, field: f.y, sampling: linear, lower: 10, upper: 30, count: 3}
outputs:
  - {name: total, field: f.sum}
`

// ============================================================
// Seed derivation
// ============================================================

func Test_WorkerSeed_Deterministic(t *testing.T) {
	if workerSeed(42, 3) != workerSeed(42, 3) {
		t.Fatalf("worker seed is not a pure function")
	}

	seen := map[int64]int{}
	for rank := 0; rank < 8; rank++ {
		s := workerSeed(42, rank)
		if s < 0 {
			t.Fatalf("worker seed must be non-negative, got %d", s)
		}
		if prev, ok := seen[s]; ok {
			t.Fatalf("ranks %d and %d derived the same seed", prev, rank)
		}
		seen[s] = rank
	}
}

func Test_SeedMaker_Unique(t *testing.T) {
	sm := newSeedMaker(7)
	seen := map[int64]bool{}
	for i := 0; i < 1000; i++ {
		s := sm.next()
		if seen[s] {
			t.Fatalf("seed repeated at step %d", i)
		}
		seen[s] = true
	}
}

// ============================================================
// Partitioner
// ============================================================

func Test_PartitionSpan_Coverage(t *testing.T) {
	for _, rows := range []int{1, 5, 9, 10} {
		for _, size := range []int{1, 2, 3, 5} {
			next := 0
			minC, maxC := rows+1, -1
			for rank := 0; rank < size; rank++ {
				offset, count, err := partitionSpan(rows, size, rank)
				if err != nil {
					t.Fatalf("rows=%d size=%d rank=%d: %v", rows, size, rank, err)
				}
				if offset != next {
					t.Fatalf("rows=%d size=%d rank=%d: gap at offset %d (want %d)", rows, size, rank, offset, next)
				}
				next = offset + count
				minC = min(minC, count)
				maxC = max(maxC, count)
			}
			if next != rows {
				t.Fatalf("rows=%d size=%d: covered %d rows", rows, size, next)
			}
			if maxC-minC > 1 {
				t.Fatalf("rows=%d size=%d: unbalanced counts [%d,%d]", rows, size, minC, maxC)
			}
		}
	}
}

func Test_PartitionSpan_Invalid(t *testing.T) {
	if _, _, err := partitionSpan(5, 0, 0); err == nil {
		t.Fatalf("expect error for size 0")
	}
	if _, _, err := partitionSpan(5, 2, 2); err == nil {
		t.Fatalf("expect error for rank out of range")
	}
	if _, _, err := partitionSpan(-1, 2, 0); err == nil {
		t.Fatalf("expect error for negative rows")
	}
}

// ============================================================
// Combination builder
// ============================================================

func Test_BuildCartesian_Order(t *testing.T) {
	ss := mustSetting(t, gridSumYAML)
	tbl, err := buildSampleTable(ss, 9, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if tbl.Rows() != 9 || tbl.Cols() != 2 {
		t.Fatalf("bad shape: %dx%d", tbl.Rows(), tbl.Cols())
	}

	// Last column varies fastest, first column slowest.
	want := [][]float64{
		{0, 10}, {0, 20}, {0, 30},
		{0.5, 10}, {0.5, 20}, {0.5, 30},
		{1, 10}, {1, 20}, {1, 30},
	}
	for i, w := range want {
		row := tbl.Row(i)
		if row[0] != w[0] || row[1] != w[1] {
			t.Fatalf("row %d = %v, want %v", i, row, w)
		}
	}
}

const randomYAML = `
sweep_name: rnd
sweep_id: 2
flowsheet_key: threshold
sweep_params:
  - {name: x, field: f.x, sampling: uniform, lower: 0, upper: 1}
outputs:
  - {name: val, field: f.val}
num_samples: 16
`

func Test_BuildSampleTable_Deterministic(t *testing.T) {
	ss := mustSetting(t, randomYAML)

	build := func() *SampleTable {
		c := core.New(core.NewPCG64WithSeed(99))
		tbl, err := buildSampleTable(ss, 16, c)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		return tbl
	}
	a, b := build(), build()
	for i := 0; i < a.Rows(); i++ {
		if a.At(i, 0) != b.At(i, 0) {
			t.Fatalf("row %d differs: %v vs %v", i, a.At(i, 0), b.At(i, 0))
		}
		if a.At(i, 0) < 0 || a.At(i, 0) >= 1 {
			t.Fatalf("uniform sample out of range: %v", a.At(i, 0))
		}
	}
}

func Test_SampleTable_FlatRoundTrip(t *testing.T) {
	ss := mustSetting(t, gridSumYAML)
	tbl, err := buildSampleTable(ss, 9, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	back, err := tableFromFlat(tbl.flatten(), ss.ParamNames())
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if back.Rows() != tbl.Rows() || back.Cols() != tbl.Cols() {
		t.Fatalf("shape changed: %dx%d", back.Rows(), back.Cols())
	}
	for i := 0; i < tbl.Rows(); i++ {
		for j := 0; j < tbl.Cols(); j++ {
			if back.At(i, j) != tbl.At(i, j) {
				t.Fatalf("cell (%d,%d) changed", i, j)
			}
		}
	}

	if _, err := tableFromFlat([]float64{3, 2}, ss.ParamNames()); err == nil {
		t.Fatalf("expect error for truncated buffer")
	}
}

// ============================================================
// Plain sweep
// ============================================================

func Test_Sweep_Run_Grid(t *testing.T) {
	s := mustSweep(t, gridSumYAML, 1)
	g, _, err := s.Run(SweepOptions{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if g.Rows() != 9 || g.NumSuccess() != 9 {
		t.Fatalf("expect 9 successful rows, got %d/%d", g.NumSuccess(), g.Rows())
	}

	for i := 0; i < g.Rows(); i++ {
		row := g.Row(i)
		if row[2] != row[0]+row[1] {
			t.Fatalf("row %d: sum %v != %v + %v", i, row[2], row[0], row[1])
		}
	}

	d := g.Dict()
	if len(d["total"]) != 9 || len(d["solve_successful"]) != 9 {
		t.Fatalf("bad dict shape: %v", d)
	}
	if d["solve_successful"][0] != 1 {
		t.Fatalf("expect success flag 1, got %v", d["solve_successful"][0])
	}
}

func Test_Sweep_Run_WorkerCountInvariance(t *testing.T) {
	// Same fixed grid must produce an identical table for 1 and 4 workers.
	run := func(workers int) *GlobalResultTable {
		s := mustSweep(t, gridSumYAML, 1)
		g, _, err := s.Run(SweepOptions{Workers: workers})
		if err != nil {
			t.Fatalf("run with %d workers failed: %v", workers, err)
		}
		return g
	}
	a, b := run(1), run(4)
	if a.Rows() != b.Rows() {
		t.Fatalf("row count differs: %d vs %d", a.Rows(), b.Rows())
	}
	for i := 0; i < a.Rows(); i++ {
		ra, rb := a.Row(i), b.Row(i)
		for j := range ra {
			if ra[j] != rb[j] {
				t.Fatalf("row %d col %d differs: %v vs %v", i, j, ra[j], rb[j])
			}
		}
	}
}

const thresholdGridYAML = `
sweep_name: threshold_grid
sweep_id: 3
flowsheet_key: threshold
sweep_params:
  - {name: x, field: f.x, sampling: linear, lower: 0, upper: 1, count: 5}
outputs:
  - {name: val, field: f.val}
`

func Test_Sweep_Run_FailedRowsNaN(t *testing.T) {
	s := mustSweep(t, thresholdGridYAML, 1)
	g, _, err := s.Run(SweepOptions{Workers: 2})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// Grid is 0, 0.25, 0.5, 0.75, 1: three rows pass the threshold.
	if g.NumSuccess() != 3 {
		t.Fatalf("expect 3 successes, got %d", g.NumSuccess())
	}
	success := g.Success()
	for i := 0; i < g.Rows(); i++ {
		out := g.Row(i)[1]
		if success[i] && math.IsNaN(out) {
			t.Fatalf("row %d: successful row holds NaN", i)
		}
		if !success[i] && !math.IsNaN(out) {
			t.Fatalf("row %d: failed row holds value %v", i, out)
		}
	}
}

func Test_Sweep_Run_SingleRow(t *testing.T) {
	s := mustSweep(t, `
sweep_name: one
sweep_id: 4
flowsheet_key: sum
sweep_params:
  - {name: x, field: f.x, sampling: linear, lower: 5, upper: 5, count: 1}
outputs:
  - {name: total, field: f.sum}
`, 1)
	g, _, err := s.Run(SweepOptions{Workers: 3})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if g.Rows() != 1 || g.Row(0)[1] != 5 {
		t.Fatalf("bad single-row result: rows=%d", g.Rows())
	}
}

func Test_Sweep_Run_MissingNumSamples(t *testing.T) {
	s := mustSweep(t, `
sweep_name: no_rows
sweep_id: 5
flowsheet_key: threshold
sweep_params:
  - {name: x, field: f.x, sampling: uniform, lower: 0, upper: 1}
outputs:
  - {name: val, field: f.val}
`, 1)
	_, _, err := s.Run(SweepOptions{})
	if err == nil {
		t.Fatalf("expect error for random sweep without num_samples")
	}
	if e, ok := errs.AsErr(err); !ok || e.ErrLv != errs.Warn {
		t.Fatalf("expect warn level, got %v", err)
	}
}

func Test_Sweep_Run_Retry(t *testing.T) {
	// flaky sheet only solves after a reinitialize: without the retry
	// everything fails, with it everything succeeds.
	noRetry := mustSweep(t, `
sweep_name: flaky_off
sweep_id: 6
flowsheet_key: flaky
sweep_params:
  - {name: x, field: f.x, sampling: linear, lower: 0, upper: 1, count: 4}
outputs:
  - {name: val, field: f.x}
`, 1)
	g, _, err := noRetry.Run(SweepOptions{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if g.NumSuccess() != 0 {
		t.Fatalf("expect 0 successes without retry, got %d", g.NumSuccess())
	}

	withRetry := mustSweep(t, `
sweep_name: flaky_on
sweep_id: 7
flowsheet_key: flaky
sweep_params:
  - {name: x, field: f.x, sampling: linear, lower: 0, upper: 1, count: 4}
outputs:
  - {name: val, field: f.x}
reinitialize: true
`, 1)
	g, _, err = withRetry.Run(SweepOptions{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if g.NumSuccess() != 4 {
		t.Fatalf("expect 4 successes with retry, got %d", g.NumSuccess())
	}
}

// ============================================================
// Peer (SPMD) mode
// ============================================================

func Test_Sweep_Run_PeerGroup(t *testing.T) {
	const peers = 3
	cms, err := comm.NewGroup(peers)
	if err != nil {
		t.Fatalf("new group failed: %v", err)
	}

	sweeps := make([]*Sweep, peers)
	for i := range sweeps {
		sweeps[i] = mustSweep(t, gridSumYAML, 1)
	}

	tables := make([]*GlobalResultTable, peers)
	errList := make([]error, peers)
	var wg sync.WaitGroup
	for i := 0; i < peers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tables[i], _, errList[i] = sweeps[i].Run(SweepOptions{Comm: cms[i]})
		}(i)
	}
	wg.Wait()

	for i := 0; i < peers; i++ {
		if errList[i] != nil {
			t.Fatalf("peer %d failed: %v", i, errList[i])
		}
		if tables[i].Rows() != 9 {
			t.Fatalf("peer %d: bad row count %d", i, tables[i].Rows())
		}
	}
	// Every peer holds the same aggregated table.
	for i := 1; i < peers; i++ {
		for r := 0; r < 9; r++ {
			a, b := tables[0].Row(r), tables[i].Row(r)
			for j := range a {
				if a[j] != b[j] {
					t.Fatalf("peer %d row %d differs", i, r)
				}
			}
		}
	}
}

func Test_Sweep_Run_WorkerErrorReturns(t *testing.T) {
	// An output field the flowsheet does not expose makes one worker
	// fail mid-round. The pool must tear the whole group down and
	// surface the error instead of leaving the other workers blocked
	// in a collective.
	s := mustSweep(t, `
sweep_name: typo
sweep_id: 11
flowsheet_key: sum
sweep_params:
  - {name: x, field: f.x, sampling: linear, lower: 0, upper: 1, count: 2}
outputs:
  - {name: val, field: f.typo}
`, 1)

	errCh := make(chan error, 1)
	go func() {
		_, _, err := s.Run(SweepOptions{Workers: 3})
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expect error for unknown output field")
		}
		if e, ok := errs.AsErr(err); !ok || e.ErrLv != errs.Fatal {
			t.Fatalf("expect fatal level, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after a worker failure")
	}
}

// ============================================================
// Recursive sweep
// ============================================================

const recursiveYAML = `
sweep_name: rec
sweep_id: 8
flowsheet_key: threshold
sweep_params:
  - {name: x, field: f.x, sampling: uniform, lower: 0, upper: 1}
outputs:
  - {name: val, field: f.val}
num_samples: 30
req_num_samples: 20
`

func Test_RunRecursive_Collects(t *testing.T) {
	s := mustSweep(t, recursiveYAML, 12345)
	g, rep, _, err := s.RunRecursive(SweepOptions{Workers: 2})
	if err != nil {
		t.Fatalf("recursive run failed: %v", err)
	}

	if g.Rows() != 20 {
		t.Fatalf("expect exactly 20 delivered rows, got %d", g.Rows())
	}
	for i, ok := range g.Success() {
		if !ok {
			t.Fatalf("row %d of filtered table is not successful", i)
		}
	}
	// Threshold sheet succeeds only below 0.5.
	for i := 0; i < g.Rows(); i++ {
		if x := g.Row(i)[0]; x > 0.5 {
			t.Fatalf("row %d: infeasible sample %v survived filtering", i, x)
		}
	}

	if rep.Status != stats.StatusComplete {
		t.Fatalf("expect complete status, got %s", rep.Status)
	}
	if rep.Delivered != 20 || rep.Requested != 20 {
		t.Fatalf("bad report counters: %+v", rep)
	}
	if len(rep.Rounds) == 0 || len(rep.Rounds) > 10 {
		t.Fatalf("bad round count: %d", len(rep.Rounds))
	}
}

func Test_RunRecursive_Reproducible(t *testing.T) {
	run := func() *GlobalResultTable {
		s := mustSweep(t, recursiveYAML, 777)
		g, _, _, err := s.RunRecursive(SweepOptions{})
		if err != nil {
			t.Fatalf("recursive run failed: %v", err)
		}
		return g
	}
	a, b := run(), run()
	if a.Rows() != b.Rows() {
		t.Fatalf("row counts differ: %d vs %d", a.Rows(), b.Rows())
	}
	for i := 0; i < a.Rows(); i++ {
		ra, rb := a.Row(i), b.Row(i)
		for j := range ra {
			if ra[j] != rb[j] {
				t.Fatalf("row %d differs between identical seeds", i)
			}
		}
	}
}

func Test_RunRecursive_AlwaysFail(t *testing.T) {
	s := mustSweep(t, `
sweep_name: hopeless
sweep_id: 9
flowsheet_key: fail
sweep_params:
  - {name: x, field: f.x, sampling: uniform, lower: 0, upper: 1}
outputs:
  - {name: val, field: f.v}
num_samples: 4
req_num_samples: 5
`, 1)
	g, rep, _, err := s.RunRecursive(SweepOptions{})
	if err != nil {
		t.Fatalf("hitting the round cap must not be an error, got %v", err)
	}
	if g.Rows() != 0 {
		t.Fatalf("expect empty table, got %d rows", g.Rows())
	}
	if rep.Status != stats.StatusPartial {
		t.Fatalf("expect partial status, got %s", rep.Status)
	}
	if len(rep.Rounds) != 10 {
		t.Fatalf("expect 10 rounds before giving up, got %d", len(rep.Rounds))
	}
	if rep.Delivered != 0 {
		t.Fatalf("expect 0 delivered, got %d", rep.Delivered)
	}
}

func Test_RunRecursive_RejectsFixedSweep(t *testing.T) {
	s := mustSweep(t, `
sweep_name: fixed_rec
sweep_id: 10
flowsheet_key: sum
sweep_params:
  - {name: x, field: f.x, sampling: linear, lower: 0, upper: 1, count: 3}
outputs:
  - {name: total, field: f.sum}
req_num_samples: 5
`, 1)
	if _, _, _, err := s.RunRecursive(SweepOptions{}); err == nil {
		t.Fatalf("expect error for recursive sweep over a fixed grid")
	}
}

func Test_RunRecursive_PeerGroupReports(t *testing.T) {
	// In peer mode every rank owns a private report, so every rank
	// must fill it, not just rank 0.
	const peers = 2
	cms, err := comm.NewGroup(peers)
	if err != nil {
		t.Fatalf("new group failed: %v", err)
	}

	sweeps := make([]*Sweep, peers)
	for i := range sweeps {
		sweeps[i] = mustSweep(t, recursiveYAML, 12345)
	}

	reports := make([]*stats.SweepReport, peers)
	errList := make([]error, peers)
	var wg sync.WaitGroup
	for i := 0; i < peers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, reports[i], _, errList[i] = sweeps[i].RunRecursive(SweepOptions{Comm: cms[i]})
		}(i)
	}
	wg.Wait()

	for i := 0; i < peers; i++ {
		if errList[i] != nil {
			t.Fatalf("peer %d failed: %v", i, errList[i])
		}
		rep := reports[i]
		if rep.Status != stats.StatusComplete {
			t.Fatalf("peer %d: expect complete status, got %s", i, rep.Status)
		}
		if rep.Delivered != 20 || rep.Requested != 20 {
			t.Fatalf("peer %d: bad report counters: %+v", i, rep)
		}
		if len(rep.Rounds) == 0 {
			t.Fatalf("peer %d: report has no rounds", i)
		}
	}
	if len(reports[0].Rounds) != len(reports[1].Rounds) {
		t.Fatalf("peers disagree on round count: %d vs %d",
			len(reports[0].Rounds), len(reports[1].Rounds))
	}
}
