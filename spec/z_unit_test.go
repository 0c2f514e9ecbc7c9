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

package spec

import (
	"strings"
	"testing"

	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/sdk/sampling"
)

const validYAML = `
sweep_name: ro_demo
sweep_id: 1
flowsheet_key: demo_ro
sweep_params:
  - name: feed_pressure
    field: feed.pressure
    sampling: linear
    lower: 10.0e5
    upper: 50.0e5
    count: 3
  - name: membrane_area
    field: unit.area
    sampling: uniform
    lower: 30
    upper: 60
outputs:
  - name: recovery
    field: unit.recovery
  - name: lcow
    field: costing.lcow
num_samples: 8
seed: 42
reinitialize: true
fixed:
  feed_salinity: 0.035
`

func TestGetSweepSettingByYAML(t *testing.T) {
	ss, err := GetSweepSettingByYAML([]byte(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ss.SweepName != "ro_demo" || ss.SweepID != 1 || ss.FlowsheetKey != "demo_ro" {
		t.Fatalf("unexpected header: %+v", ss)
	}
	if len(ss.Params) != 2 || len(ss.Outputs) != 2 {
		t.Fatalf("unexpected params/outputs: %+v", ss)
	}
	if ss.Params[0].Kind() != sampling.Linear || ss.Params[1].Kind() != sampling.Uniform {
		t.Fatalf("unexpected sampling kinds: %v %v", ss.Params[0].Kind(), ss.Params[1].Kind())
	}
	if !ss.IsRandom() {
		t.Fatalf("uniform param should make the sweep random")
	}
	if !ss.Reinit || ss.ReinitBeforeSolve {
		t.Fatalf("unexpected reinit flags: %+v", ss)
	}
}

func TestGetSweepSettingByJSON(t *testing.T) {
	data := []byte(`{
		"sweep_name": "json_demo",
		"sweep_id": 2,
		"flowsheet_key": "demo_ro",
		"sweep_params": [
			{"name": "p", "field": "f.p", "sampling": "linear", "lower": 0, "upper": 1, "count": 5}
		],
		"outputs": [{"name": "o", "field": "f.o"}]
	}`)
	ss, err := GetSweepSettingByJSON(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ss.SweepID != 2 || ss.IsRandom() {
		t.Fatalf("unexpected setting: %+v", ss)
	}
}

func TestSweepSettingNames(t *testing.T) {
	ss, err := GetSweepSettingByYAML([]byte(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := ss.ParamNames()
	o := ss.OutputNames()
	if p[0] != "feed_pressure" || p[1] != "membrane_area" {
		t.Fatalf("unexpected param names: %v", p)
	}
	if o[0] != "recovery" || o[1] != "lcow" {
		t.Fatalf("unexpected output names: %v", o)
	}
}

func TestSweepSettingRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing name", `
flowsheet_key: k
sweep_params: [{name: a, field: f, sampling: linear, lower: 0, upper: 1, count: 2}]
outputs: [{name: o, field: f}]
`},
		{"missing flowsheet key", `
sweep_name: s
sweep_params: [{name: a, field: f, sampling: linear, lower: 0, upper: 1, count: 2}]
outputs: [{name: o, field: f}]
`},
		{"no params", `
sweep_name: s
flowsheet_key: k
outputs: [{name: o, field: f}]
`},
		{"no outputs", `
sweep_name: s
flowsheet_key: k
sweep_params: [{name: a, field: f, sampling: linear, lower: 0, upper: 1, count: 2}]
`},
		{"duplicate param name", `
sweep_name: s
flowsheet_key: k
sweep_params:
  - {name: a, field: f, sampling: linear, lower: 0, upper: 1, count: 2}
  - {name: a, field: g, sampling: linear, lower: 0, upper: 1, count: 2}
outputs: [{name: o, field: f}]
`},
		{"param output collision", `
sweep_name: s
flowsheet_key: k
sweep_params: [{name: a, field: f, sampling: linear, lower: 0, upper: 1, count: 2}]
outputs: [{name: a, field: f}]
`},
		{"param named like success column", `
sweep_name: s
flowsheet_key: k
sweep_params: [{name: solve_successful, field: f, sampling: linear, lower: 0, upper: 1, count: 2}]
outputs: [{name: o, field: f}]
`},
		{"output named like success column", `
sweep_name: s
flowsheet_key: k
sweep_params: [{name: a, field: f, sampling: linear, lower: 0, upper: 1, count: 2}]
outputs: [{name: solve_successful, field: f}]
`},
		{"linear count zero", `
sweep_name: s
flowsheet_key: k
sweep_params: [{name: a, field: f, sampling: linear, lower: 0, upper: 1}]
outputs: [{name: o, field: f}]
`},
		{"upper below lower", `
sweep_name: s
flowsheet_key: k
sweep_params: [{name: a, field: f, sampling: uniform, lower: 5, upper: 1}]
outputs: [{name: o, field: f}]
`},
		{"negative std", `
sweep_name: s
flowsheet_key: k
sweep_params: [{name: a, field: f, sampling: normal, mean: 0, std: -1}]
outputs: [{name: o, field: f}]
`},
		{"unknown sampling", `
sweep_name: s
flowsheet_key: k
sweep_params: [{name: a, field: f, sampling: lhs, lower: 0, upper: 1}]
outputs: [{name: o, field: f}]
`},
		{"negative num_samples", `
sweep_name: s
flowsheet_key: k
sweep_params: [{name: a, field: f, sampling: uniform, lower: 0, upper: 1}]
outputs: [{name: o, field: f}]
num_samples: -3
`},
	}

	for _, tc := range cases {
		if _, err := GetSweepSettingByYAML([]byte(tc.yaml)); err == nil {
			t.Fatalf("case %q: expected error, got nil", tc.name)
		} else if e, ok := errs.AsErr(err); !ok || e.ErrLv != errs.Fatal {
			t.Fatalf("case %q: expected fatal level error, got %v", tc.name, err)
		}
	}
}

func TestParameterSettingStrategy(t *testing.T) {
	ss, err := GetSweepSettingByYAML([]byte(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ss.Params[0].Strategy().(*sampling.LinearSample); !ok {
		t.Fatalf("expected linear strategy for params[0]")
	}
	if _, ok := ss.Params[1].Strategy().(*sampling.UniformSample); !ok {
		t.Fatalf("expected uniform strategy for params[1]")
	}
}

func TestDecodeFixed(t *testing.T) {
	ss, err := GetSweepSettingByYAML([]byte(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	type roFixed struct {
		FeedSalinity float64 `yaml:"feed_salinity"`
	}
	var fx roFixed
	if err := DecodeFixed(ss, &fx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fx.FeedSalinity != 0.035 {
		t.Fatalf("unexpected fixed value: %v", fx.FeedSalinity)
	}

	// Unknown keys in the fixed block must be rejected.
	type strictFixed struct {
		Other float64 `yaml:"other"`
	}
	var sf strictFixed
	if err := DecodeFixed(ss, &sf); err == nil {
		t.Fatalf("expected unknown-field error")
	} else if !strings.Contains(err.Error(), "decode failed") {
		t.Fatalf("unexpected error: %v", err)
	}
}
