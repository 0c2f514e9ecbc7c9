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

package stats

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestSweepReportRounds(t *testing.T) {
	r := NewSweepReport("demo", 1, 42, 5)

	rs := r.AddRound(10, 4)
	if rs.Round != 1 || rs.Rows != 10 || rs.Successes != 4 {
		t.Fatalf("unexpected round stat: %+v", rs)
	}
	if math.Abs(rs.SuccessRate-0.4) > 1e-12 {
		t.Fatalf("unexpected success rate: %v", rs.SuccessRate)
	}
	if !(rs.RateCI.Lo < 0.4 && 0.4 < rs.RateCI.Hi) {
		t.Fatalf("CI should bracket the point estimate: %+v", rs.RateCI)
	}

	r.AddRound(5, 1)
	r.Done(5)
	if r.TotalRows != 15 || r.TotalSuccess != 5 {
		t.Fatalf("unexpected totals: %+v", r)
	}
	if r.Status != StatusComplete {
		t.Fatalf("expected complete status, got %s", r.Status)
	}
}

func TestSweepReportPartialStatus(t *testing.T) {
	r := NewSweepReport("demo", 1, 42, 10)
	r.AddRound(20, 3)
	r.Done(3)
	if r.Status != StatusPartial {
		t.Fatalf("expected partial status, got %s", r.Status)
	}

	// plain sweeps (requested == 0) are always complete
	p := NewSweepReport("plain", 2, 42, 0)
	p.AddRound(9, 0)
	p.Done(0)
	if p.Status != StatusComplete {
		t.Fatalf("plain sweep should be complete, got %s", p.Status)
	}
}

func TestSweepReportDoneIsIdempotent(t *testing.T) {
	r := NewSweepReport("demo", 1, 42, 5)
	r.AddRound(10, 5)
	r.Done(5)
	first := *r
	r.Done(0) // second call must not rewrite anything
	if r.Delivered != first.Delivered || r.Status != first.Status {
		t.Fatalf("Done must be idempotent: %+v vs %+v", first, *r)
	}
}

func TestProportionCICP(t *testing.T) {
	// boundary cases pin to [0,1]
	_, ci := proportionCICP(0, 10, 0.95)
	if ci.Lo != 0 {
		t.Fatalf("k=0 lower bound must be 0, got %v", ci.Lo)
	}
	_, ci = proportionCICP(10, 10, 0.95)
	if ci.Hi != 1 {
		t.Fatalf("k=n upper bound must be 1, got %v", ci.Hi)
	}
	_, ci = proportionCICP(0, 0, 0.95)
	if ci.Lo != 0 || ci.Hi != 1 {
		t.Fatalf("n=0 must give the vacuous interval, got %+v", ci)
	}

	// interval narrows with more samples
	_, wide := proportionCICP(5, 10, 0.95)
	_, narrow := proportionCICP(500, 1000, 0.95)
	if (narrow.Hi - narrow.Lo) >= (wide.Hi - wide.Lo) {
		t.Fatalf("CI should narrow with n: wide=%+v narrow=%+v", wide, narrow)
	}
}

func TestJsonRender(t *testing.T) {
	r := NewSweepReport("demo", 1, 42, 0)
	r.AddRound(9, 9)
	r.Done(9)

	var buf bytes.Buffer
	if err := r.WriteWith(&buf, &JsonSweepReportRender{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var back SweepReport
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back.SweepName != "demo" || back.TotalRows != 9 || len(back.Rounds) != 1 {
		t.Fatalf("unexpected round trip: %+v", back)
	}
}

func TestYAMLRenderFlowStyle(t *testing.T) {
	r := NewSweepReport("demo", 1, 42, 0)
	r.AddRound(3, 2)
	r.Done(2)

	var buf bytes.Buffer
	if err := r.WriteWith(&buf, &YAMLSweepReportRender{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "SweepName: demo") {
		t.Fatalf("unexpected yaml output:\n%s", out)
	}
}
