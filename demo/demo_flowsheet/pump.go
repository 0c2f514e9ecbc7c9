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

func init() {
	if err := Flowsheets.Register("pump_train", buildPump); err != nil {
		log.Fatalf("pump_train register failed: %v", err)
	}
}

type fixedPump struct {
	Efficiency float64 `yaml:"efficiency"` // 0~1
	MaxFlow    float64 `yaml:"max_flow"`   // m3/h
}

// pumpSheet 是一段泵送管列的解析模型，用來示範永遠可解、
// 但在操作範圍外會 Infeasible 的掃描對象。
//
// 可固定的欄位：pump.head（m）、pump.flow（m3/h）。
// 輸出：power（kW）。
type pumpSheet struct {
	fixed *fixedPump

	head float64
	flow float64

	solved bool
	power  float64
}

func buildPump(ss *spec.SweepSetting, _ *core.Core) (flowsheet.Flowsheet, error) {
	fx := &fixedPump{
		Efficiency: 0.75,
		MaxFlow:    100,
	}
	if err := spec.DecodeFixed(ss, fx); err != nil {
		return nil, err
	}
	return &pumpSheet{fixed: fx, head: 10, flow: 10}, nil
}

func (s *pumpSheet) Fix(field string, v float64) error {
	switch field {
	case "pump.head":
		s.head = v
	case "pump.flow":
		s.flow = v
	default:
		return flowsheet.UnknownField(field)
	}
	s.solved = false
	return nil
}

func (s *pumpSheet) Value(field string) (float64, error) {
	switch field {
	case "pump.head":
		return s.head, nil
	case "pump.flow":
		return s.flow, nil
	case "power":
		if !s.solved {
			return math.NaN(), errs.Fatalf("flowsheet not solved: %q", field)
		}
		return s.power, nil
	}
	return math.NaN(), flowsheet.UnknownField(field)
}

func (s *pumpSheet) Solve() (*flowsheet.Result, error) {
	if s.head <= 0 || s.flow <= 0 {
		return &flowsheet.Result{
			Termination: flowsheet.SolverError,
			Message:     "nonphysical inputs",
		}, nil
	}
	if s.flow > s.fixed.MaxFlow {
		return &flowsheet.Result{
			Termination: flowsheet.Infeasible,
			Message:     "flow outside pump operating range",
		}, nil
	}

	// P = rho*g*Q*H / eta，rho*g 折成 kW 係數 9.81/3600。
	s.power = 9.81 * s.flow * s.head / (3600 * s.fixed.Efficiency)
	s.solved = true
	return &flowsheet.Result{Termination: flowsheet.Optimal}, nil
}

func (s *pumpSheet) Reinitialize() error {
	s.solved = false
	s.power = 0
	return nil
}
