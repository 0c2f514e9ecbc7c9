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

package demo_flowsheet

import (
	"log"
	"math"

	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/sdk/core"
	"github.com/nawi-hub/proteuslib/sdk/flowsheet"
	"github.com/nawi-hub/proteuslib/spec"
)

// Flowsheets 是 demo 模型的共用註冊表，供 Lab 組裝使用。
var Flowsheets = flowsheet.NewRegistry()

// ============================================================
// ** 註冊 **
// ============================================================

func init() {
	if err := Flowsheets.Register("ro_basic", buildRO); err != nil {
		log.Fatalf("ro_basic register failed: %v", err)
	}
}

// ============================================================
// ** 此模型 Fixed 設定宣告 **
// ============================================================

type fixedRO struct {
	FeedFlow       float64 `yaml:"feed_flow"`       // m3/h
	Temperature    float64 `yaml:"temperature"`     // K
	PumpEfficiency float64 `yaml:"pump_efficiency"` // 0~1
	SaltRejection  float64 `yaml:"salt_rejection"`  // 0~1
}

// ============================================================
// ** 模型本體 **
// ============================================================

// roSheet 是單級 reverse osmosis 的解析模型。
//
// 可固定的欄位：
//   - feed.pressure    進水壓力（bar）
//   - feed.conc_mass   進水鹽濃度（kg/m3）
//   - membrane.area    膜面積（m2）
//   - membrane.A       水通量係數（m3/(m2*h*bar)）
//
// 可讀取的輸出（成功 Solve 後）：
//   - permeate.flow       產水量（m3/h）
//   - permeate.conc_mass  產水鹽濃度（kg/m3）
//   - recovery            回收率
//   - sec                 比能耗（kWh/m3）
type roSheet struct {
	fixed *fixedRO

	// 固定變數（由 Fix 設定）
	pressure float64
	conc     float64
	area     float64
	permA    float64

	// 解（成功 Solve 後有效）
	solved   bool
	permFlow float64
	permConc float64
	recovery float64
	sec      float64
}

func buildRO(ss *spec.SweepSetting, _ *core.Core) (flowsheet.Flowsheet, error) {
	fx := &fixedRO{
		FeedFlow:       10,
		Temperature:    298.15,
		PumpEfficiency: 0.8,
		SaltRejection:  0.99,
	}
	if err := spec.DecodeFixed(ss, fx); err != nil {
		return nil, err
	}
	sheet := &roSheet{fixed: fx}
	sheet.setDefaults()
	return sheet, nil
}

// setDefaults 把可固定的變數放回一組可解的起點。
func (s *roSheet) setDefaults() {
	s.pressure = 50
	s.conc = 35
	s.area = 50
	s.permA = 0.1
	s.solved = false
}

func (s *roSheet) Fix(field string, v float64) error {
	switch field {
	case "feed.pressure":
		s.pressure = v
	case "feed.conc_mass":
		s.conc = v
	case "membrane.area":
		s.area = v
	case "membrane.A":
		s.permA = v
	default:
		return flowsheet.UnknownField(field)
	}
	s.solved = false
	return nil
}

func (s *roSheet) Value(field string) (float64, error) {
	switch field {
	case "feed.pressure":
		return s.pressure, nil
	case "feed.conc_mass":
		return s.conc, nil
	case "membrane.area":
		return s.area, nil
	case "membrane.A":
		return s.permA, nil
	case "permeate.flow", "permeate.conc_mass", "recovery", "sec":
		if !s.solved {
			return math.NaN(), errs.Fatalf("flowsheet not solved: %q", field)
		}
	default:
		return math.NaN(), flowsheet.UnknownField(field)
	}
	switch field {
	case "permeate.flow":
		return s.permFlow, nil
	case "permeate.conc_mass":
		return s.permConc, nil
	case "recovery":
		return s.recovery, nil
	default:
		return s.sec, nil
	}
}

// 常數：van't Hoff 滲透壓 pi = i * c / M * R * T，NaCl i=2。
const (
	gasConstant = 8.314e-5 // bar*m3/(mol*K)
	saltMolMass = 0.05844  // kg/mol
	vantHoffI   = 2.0
)

func (s *roSheet) Solve() (*flowsheet.Result, error) {
	if s.pressure <= 0 || s.conc < 0 || s.area <= 0 || s.permA <= 0 {
		return &flowsheet.Result{
			Termination: flowsheet.SolverError,
			Message:     "nonphysical inputs",
		}, nil
	}

	osmotic := vantHoffI * s.conc / saltMolMass * gasConstant * s.fixed.Temperature
	ndp := s.pressure - osmotic
	if ndp <= 0 {
		// 進水壓力壓不過滲透壓，沒有通量解。
		return &flowsheet.Result{
			Termination: flowsheet.Infeasible,
			Message:     "applied pressure below osmotic pressure",
		}, nil
	}

	perm := s.permA * ndp * s.area
	rec := perm / s.fixed.FeedFlow
	if rec >= 1 {
		// 產水超過進水，質量守恆閉合失敗。
		return &flowsheet.Result{
			Termination: flowsheet.MaxIterReached,
			Message:     "mass balance cannot close (recovery >= 1)",
		}, nil
	}

	s.permFlow = perm
	s.permConc = s.conc * (1 - s.fixed.SaltRejection)
	s.recovery = rec
	// 高壓泵做功攤到每 m3 產水：bar*m3 -> kWh 的換算係數為 1/36。
	s.sec = s.pressure * s.fixed.FeedFlow / (36 * s.fixed.PumpEfficiency * perm)
	s.solved = true
	return &flowsheet.Result{Termination: flowsheet.Optimal}, nil
}

func (s *roSheet) Reinitialize() error {
	// 固定變數保留（Fix 的值是掃描指定的），只重置解狀態。
	s.solved = false
	s.permFlow = 0
	s.permConc = 0
	s.recovery = 0
	s.sec = 0
	return nil
}
