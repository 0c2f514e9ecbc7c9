// Package spec 定義掃描設定檔（SweepSetting）的結構、解析與基本檢查。
//
// 設定檔以 YAML 或 JSON 提供，解析採 fail-fast：任何欄位不合法都在組裝階段
// 直接回報，絕不帶病進入 runtime（worker 被啟動之前必須擋下）。
package spec

import (
	"fmt"
	"strings"

	"github.com/nawi-hub/proteuslib/errs"
)

// SuccessColumn 是結果表自動附加的成功旗標欄位名。
// 參數與 output 都不得佔用，否則會被旗標向量覆蓋。
const SuccessColumn = "solve_successful"

// SweepSetting 包含啟動一次參數掃描所需的所有高階設定。
//
// 一份 SweepSetting 同時服務 plain 與 recursive 兩種掃描：
//   - plain：NumSamples 指定 random 掃描的列數（fixed 掃描由各參數 Count 的笛卡兒積決定列數）。
//   - recursive：ReqNumSamples 指定要收集的「成功」筆數。
//
// 掃描一旦開始，SweepSetting 視為 immutable。
type SweepSetting struct {
	SweepName    string             `yaml:"sweep_name"    json:"sweep_name"`
	SweepID      SID                `yaml:"sweep_id"      json:"sweep_id"`
	FlowsheetKey FlowsheetKey       `yaml:"flowsheet_key" json:"flowsheet_key"`
	Params       []ParameterSetting `yaml:"sweep_params"  json:"sweep_params"`
	Outputs      []OutputSetting    `yaml:"outputs"       json:"outputs"`

	// NumSamples：random plain 掃描的列數；fixed 掃描必須留空（0）。
	NumSamples int `yaml:"num_samples,omitempty" json:"num_samples,omitempty"`
	// ReqNumSamples：recursive 掃描要求的成功筆數。
	ReqNumSamples int `yaml:"req_num_samples,omitempty" json:"req_num_samples,omitempty"`
	// Seed：亂數種子；<= 0 表示由呼叫端（cmd/server）在執行期補一個加密隨機種子。
	Seed int64 `yaml:"seed,omitempty" json:"seed,omitempty"`

	// ReinitBeforeSolve：每個樣本評估前先強制 reinitialize 一次。
	ReinitBeforeSolve bool `yaml:"reinitialize_before_sweep,omitempty" json:"reinitialize_before_sweep,omitempty"`
	// Reinit：啟用「失敗後 reinitialize 再重試一次」的容錯流程。
	Reinit bool `yaml:"reinitialize,omitempty" json:"reinitialize,omitempty"`

	// Fixed 是 flowsheet 專屬的設定區塊，由各 builder 以 DecodeFixed 解出自己的型別。
	Fixed map[string]any `yaml:"fixed,omitempty" json:"fixed,omitempty"`
}

// init 初始化各子設定並執行基本檢查。
// 先解析所有參數的取樣策略，確定整體 random 與否之後才驗證數值欄位。
func (ss *SweepSetting) init() error {
	for i := range ss.Params {
		if err := ss.Params[i].init(); err != nil {
			return err
		}
	}
	random := ss.IsRandom()
	for i := range ss.Params {
		if err := ss.Params[i].valid(random); err != nil {
			return err
		}
	}
	return ss.valid()
}

// valid 執行最基本的設定檔檢查，如需更多驗證可在此擴充。
func (ss *SweepSetting) valid() error {
	if strings.TrimSpace(ss.SweepName) == "" {
		return errs.NewFatal("sweep_name required")
	}
	if ss.FlowsheetKey == "" {
		return errs.NewFatal(fmt.Sprintf("sweep_name: %s err: flowsheet_key required", ss.SweepName))
	}

	// valid Params
	if len(ss.Params) == 0 {
		return errs.NewFatal(fmt.Sprintf("sweep_name: %s err: empty sweep_params", ss.SweepName))
	}
	seen := map[string]bool{SuccessColumn: true}
	for _, p := range ss.Params {
		if seen[p.Name] {
			return errs.NewFatal(fmt.Sprintf("sweep_name: %s err: param name %q duplicated or reserved", ss.SweepName, p.Name))
		}
		seen[p.Name] = true
	}

	// valid Outputs
	if len(ss.Outputs) == 0 {
		return errs.NewFatal(fmt.Sprintf("sweep_name: %s err: empty outputs", ss.SweepName))
	}
	for _, o := range ss.Outputs {
		if strings.TrimSpace(o.Name) == "" || strings.TrimSpace(o.Field) == "" {
			return errs.NewFatal(fmt.Sprintf("sweep_name: %s err: output name/field required", ss.SweepName))
		}
		if seen[o.Name] {
			return errs.NewFatal(fmt.Sprintf("sweep_name: %s err: output name %q collides or is reserved", ss.SweepName, o.Name))
		}
		seen[o.Name] = true
	}

	if ss.NumSamples < 0 || ss.ReqNumSamples < 0 {
		return errs.NewFatal(fmt.Sprintf("sweep_name: %s err: negative sample count", ss.SweepName))
	}
	return nil
}

// IsRandom 回報此掃描是否為 random sampling
// （任一參數採 random 策略即整體 random，見 sampling.Kind.IsRandom）。
func (ss *SweepSetting) IsRandom() bool {
	for i := range ss.Params {
		if ss.Params[i].kind.IsRandom() {
			return true
		}
	}
	return false
}

// ParamNames 依設定順序回傳參數欄位名。
func (ss *SweepSetting) ParamNames() []string {
	names := make([]string, len(ss.Params))
	for i, p := range ss.Params {
		names[i] = p.Name
	}
	return names
}

// OutputNames 依設定順序回傳 output 欄位名。
func (ss *SweepSetting) OutputNames() []string {
	names := make([]string, len(ss.Outputs))
	for i, o := range ss.Outputs {
		names[i] = o.Name
	}
	return names
}
