package spec

import (
	"fmt"
	"strings"

	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/sdk/sampling"
)

// ParameterSetting 描述單一掃描參數：要改動的 flowsheet 欄位與取值策略。
//
// Sampling 決定哪些數值欄位有效：
//   - linear：Lower / Upper / Count
//   - uniform：Lower / Upper
//   - normal：Mean / Std
type ParameterSetting struct {
	Name     string `yaml:"name"     json:"name"`
	Field    string `yaml:"field"    json:"field"`
	Sampling string `yaml:"sampling" json:"sampling"`

	Lower float64 `yaml:"lower,omitempty" json:"lower,omitempty"`
	Upper float64 `yaml:"upper,omitempty" json:"upper,omitempty"`
	Mean  float64 `yaml:"mean,omitempty"  json:"mean,omitempty"`
	Std   float64 `yaml:"std,omitempty"   json:"std,omitempty"`
	Count int     `yaml:"count,omitempty" json:"count,omitempty"`

	kind sampling.Kind
}

func (p *ParameterSetting) init() error {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Field) == "" {
		return errs.NewFatal("param name/field required")
	}
	k, err := sampling.ParseKind(p.Sampling)
	if err != nil {
		return errs.Wrap(err, fmt.Sprintf("param: %s", p.Name))
	}
	p.kind = k
	return nil
}

// valid 檢查數值欄位。random 掃描中 linear 欄的 Count 不參與列數
// 決定（列數由 num_samples 決定），因此只有 fixed 掃描強制 Count。
func (p *ParameterSetting) valid(isRandom bool) error {
	switch p.kind {
	case sampling.Linear:
		if !isRandom && p.Count < 1 {
			return errs.NewFatal(fmt.Sprintf("param: %s err: linear count must be >= 1, got %d", p.Name, p.Count))
		}
		if p.Upper < p.Lower {
			return errs.NewFatal(fmt.Sprintf("param: %s err: upper %v < lower %v", p.Name, p.Upper, p.Lower))
		}
	case sampling.Uniform:
		if p.Upper < p.Lower {
			return errs.NewFatal(fmt.Sprintf("param: %s err: upper %v < lower %v", p.Name, p.Upper, p.Lower))
		}
	case sampling.Normal:
		if p.Std < 0 {
			return errs.NewFatal(fmt.Sprintf("param: %s err: std must be >= 0, got %v", p.Name, p.Std))
		}
	}
	return nil
}

// Kind 回傳解析後的取樣策略種類；必須在 init 之後呼叫。
func (p *ParameterSetting) Kind() sampling.Kind { return p.kind }

// Strategy 依設定組出對應的取樣策略。
func (p *ParameterSetting) Strategy() sampling.Strategy {
	switch p.kind {
	case sampling.Uniform:
		return &sampling.UniformSample{Lo: p.Lower, Hi: p.Upper}
	case sampling.Normal:
		return &sampling.NormalSample{Mean: p.Mean, Std: p.Std}
	default:
		return &sampling.LinearSample{Lo: p.Lower, Hi: p.Upper, Count: p.Count}
	}
}
