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

package catalog

import (
	"testing"
	"testing/fstest"
)

const cfgYAML = `
sweep_name: demo
sweep_id: 1
flowsheet_key: demo_ro
sweep_params:
  - {name: a, field: f.a, sampling: linear, lower: 0, upper: 1, count: 3}
outputs:
  - {name: o, field: f.o}
`

func demoFS() fstest.MapFS {
	return fstest.MapFS{
		"demo.yaml":  {Data: []byte(cfgYAML)},
		"other.yaml": {Data: []byte(cfgYAML)},
	}
}

func TestCatalogRegisterAndLookup(t *testing.T) {
	c, err := New(demoFS())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Register(Entry{SID: 1, Name: "Demo", ConfigName: "demo.yaml"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// name lookup is case-insensitive
	if _, ok := c.GetByName("  DEMO "); !ok {
		t.Fatalf("expected name lookup to succeed")
	}
	if _, ok := c.GetByID(1); !ok {
		t.Fatalf("expected id lookup to succeed")
	}

	ss, err := c.SweepSettingById(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ss.SweepName != "demo" || len(ss.Params) != 1 {
		t.Fatalf("unexpected setting: %+v", ss)
	}

	if _, err := c.SweepSettingById(99); err == nil {
		t.Fatalf("expected error for unknown id")
	}
}

func TestCatalogRejectsDuplicates(t *testing.T) {
	c, err := New(demoFS())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Register(Entry{SID: 1, Name: "a", ConfigName: "demo.yaml"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Register(Entry{SID: 1, Name: "b", ConfigName: "other.yaml"}); err != ErrDupID {
		t.Fatalf("expected ErrDupID, got %v", err)
	}
	if err := c.Register(Entry{SID: 2, Name: "a", ConfigName: "other.yaml"}); err != ErrDupName {
		t.Fatalf("expected ErrDupName, got %v", err)
	}
	if err := c.Register(Entry{SID: 2, Name: "b", ConfigName: "demo.yaml"}); err == nil {
		t.Fatalf("expected duplicate config error")
	}
	if err := c.Register(Entry{SID: 2, Name: "b", ConfigName: "missing.yaml"}); err == nil {
		t.Fatalf("expected missing config error")
	}
}

func TestCatalogFreeze(t *testing.T) {
	c, err := New(demoFS())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Register(Entry{SID: 1, Name: "a", ConfigName: "demo.yaml"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Freeze()
	if !c.IsFrozen() {
		t.Fatalf("expected frozen catalog")
	}
	if err := c.Register(Entry{SID: 2, Name: "b", ConfigName: "other.yaml"}); err == nil {
		t.Fatalf("expected register-after-freeze error")
	}
	// read paths still work after freeze
	if _, err := c.SweepSettingByName("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCatalogRejectsNestedFS(t *testing.T) {
	nested := fstest.MapFS{
		"sub/demo.yaml": {Data: []byte(cfgYAML)},
	}
	if _, err := New(nested); err == nil {
		t.Fatalf("expected flat-FS violation error")
	}
}

func TestCatalogStableOrder(t *testing.T) {
	c, err := New(demoFS())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = c.Register(
		Entry{SID: 7, Name: "b", ConfigName: "other.yaml"},
		Entry{SID: 3, Name: "a", ConfigName: "demo.yaml"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := c.IDs()
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 7 {
		t.Fatalf("unexpected id order: %v", ids)
	}
	all := c.All()
	if all[0].SID != 3 || all[1].SID != 7 {
		t.Fatalf("unexpected All order: %+v", all)
	}
}
