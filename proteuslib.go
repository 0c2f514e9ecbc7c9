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

// Package proteuslib 提供參數掃描引擎的「組裝入口（assembler）」與「運行入口（runtime entry）」。
//
// 你可以把 Lab 視為一個「可被 CLI/後端使用的 runtime」，它負責把下列三個必需的地基組裝在一起，並提供建立 Sweep 的入口：
//  1. Catalog：掃描目錄（Single Source of Truth / SSOT），定義有哪些掃描、各自對應的設定檔名稱（ConfigName）。
//  2. flowsheet.Registry：流程模型註冊表，提供「如何依據設定（FlowsheetKey）建出可求解的 Flowsheet」的 builders。
//  3. PRNGFactory：亂數核心工廠，保證可重現（reproducible）與可審計（auditable）。
//
// 設計重點：
//   - Lab 本身不綁定任何「檔案路徑」概念：設定檔來源一律以 fs.FS 的形式注入。
//   - Lab 會持有一份 Catalog（你要跑哪一批掃描/設定檔）與一份 Registry（你支援哪些流程模型）。
//   - Sweep 是對外提供 Run / RunRecursive 的最小單位；模型開發者主要操作的是 sdk/flowsheet 內的型別。
//
// 典型使用情境：
//   - CLI（cmd/run）：由 Lab 建立 Sweep，跑完把結果落地成 CSV / 封存檔。
//   - 後端服務（HTTP）：由 Lab 建立 Sweep，對外回傳結果表與統計報告。
package proteuslib

import (
	"crypto/rand"
	"fmt"
	"io/fs"
	"math"
	"math/big"
	"path/filepath"
	"strings"
	"time"

	"github.com/nawi-hub/proteuslib/catalog"
	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/sdk/core"
	"github.com/nawi-hub/proteuslib/sdk/flowsheet"
	"github.com/nawi-hub/proteuslib/spec"
)

// Configs 用來把一或多個設定檔來源（fs.FS）打包成 New() 需要的參數。
//
// 為什麼是 fs.FS：
//   - 你可以用 go:embed 把 configs 直接編進 binary（部署最穩定，不依賴工作目錄）。
//   - 也可以用 os.DirFS 在本機開發時讀取目錄。
//
// Lab 不解析「路徑」：它只依賴 fs.FS + ConfigName（檔名）來取得設定內容。
func Configs(cfgs ...fs.FS) []fs.FS {
	return cfgs
}

// Flowsheets 用來把一或多個流程模型註冊表打包成 New() 需要的參數。
//
// 一個 Registry 代表「一個模型模組」提供的 builders 集合。
// New() 會把多個 registries 合併成單一 registry；若出現重複 FlowsheetKey，會以 error 直接失敗（避免行為不確定）。
func Flowsheets(regs ...*flowsheet.Registry) []*flowsheet.Registry {
	return regs
}

// Lab 是「組裝器（assembler）」與「運行入口（runtime entry）」：
//
// 它把三個必需的地基組合起來：
//  1. Catalog：掃描目錄（SSOT），定義有哪些掃描、各自對應的設定檔名稱。
//  2. flowsheet.Registry：提供「如何依據 FlowsheetKey 建出 Flowsheet」的 builders。
//  3. PRNGFactory：亂數核心工廠，保證可重現與可審計。
//
// 使用流程通常分成兩階段：
//   - 註冊/組裝階段（registration/build）：建立 catalog、合併 registries、檢查重複與缺漏。
//   - 執行階段（runtime）：依據掃描 ID 產生 Sweep，並在 Sweep 上執行 Run / RunRecursive。
//
// 重要設計原則：
//   - Catalog 的 ID 唯一性只保證在「同一個 Lab instance」內。
//   - 你要跑哪一批掃描、哪一套設定檔、哪一批模型，必須由 New() 的參數明確決定。
//   - runtime 一旦開始（例如已建立 Sweep 並對外服務），不建議再變更 Catalog/Registry。
//
// 實務例子（概念示意）：
//
//	//	lab, _ := proteuslib.NewAuto(core.Default(), proteuslib.Configs(cfgFS), proteuslib.Flowsheets(reg))
//	//	s, _ := lab.NewSweep(1001)
//	//	g, _, _ := s.Run(proteuslib.SweepOptions{Workers: 4})
type Lab struct {
	cat *catalog.Catalog
	reg *flowsheet.Registry
	pf  core.PRNGFactory
	sum []catalog.Summary
}

// New 建立一個 Lab instance。
//
// 這是「組裝階段（registration/build）」的入口：
//   - 會建立 Catalog（同時做檔名存在性/重複性檢查，避免 runtime 才爆）。
//   - 會合併多個 Registry 成為單一 registry（重複 FlowsheetKey 直接視為錯誤）。
//   - 會保存 PRNGFactory，確保由這個 Lab 建出來的 Sweep 在 RNG 行為上具有一致性。
//
// 參數要求（是合約的一部分）：
//   - pf 不能為 nil：沒有 RNG 工廠就無法建立可重現/可審計的核心。
//   - cfgs 至少一個：沒有設定檔來源，Catalog 無法解析 SweepSetting。
//   - sheets 至少一個：沒有模型 builders，就算解析出設定也無法建出可求解的流程。
func New(pf core.PRNGFactory, cfgs []fs.FS, sheets []*flowsheet.Registry) (*Lab, error) {
	if pf == nil {
		return nil, errs.NewFatal("prng factory required")
	}
	if len(cfgs) == 0 {
		return nil, errs.NewFatal("configs required")
	}
	if len(sheets) == 0 {
		return nil, errs.NewFatal("flowsheet registry required")
	}
	cata, err := catalog.New(cfgs...)
	if err != nil {
		return nil, err
	}
	reg, err := flowsheet.MergeRegistry(sheets...)
	if err != nil {
		return nil, err
	}
	lab := &Lab{
		cat: cata,
		reg: reg,
		pf:  pf,
	}
	return lab, nil
}

// NewAuto 建立一個直接進入執行階段的 Lab instance：
// New + RegisterAll + Freeze 一次做完。
func NewAuto(pf core.PRNGFactory, cfgs []fs.FS, sheets []*flowsheet.Registry) (*Lab, error) {
	lab, err := New(pf, cfgs, sheets)
	if err != nil {
		return nil, err
	}
	if err := lab.RegisterAll(); err != nil {
		return nil, err
	}
	lab.Freeze()
	return lab, nil
}

func (p *Lab) Register(ents ...catalog.Entry) error {
	return p.cat.Register(ents...)
}

// RegisterAll
//
// 會掃描 catalog 持有的設定檔來源（fs.FS），把所有可辨識的設定檔（.yaml/.yml/.json）嘗試解析成
// *spec.SweepSetting，並用設定檔內宣告的 SweepID/SweepName 產生對應的 catalog.Entry 來批次註冊。
//
// 行為特性（重要）：
//  1. Fail-fast：任何一個檔案讀取/解析/基本檢查失敗，都會立刻回傳 error（不會忽略、也不會繼續掃完）。
//  2. 原子性：只有當「全部檔案」都成功解析並通過基本檢查時，才會呼叫 Register(...) 一次性寫入。
//     因此不會出現只註冊了一半、導致 catalog 處於半完成狀態的情況。
//  3. 穩定性：fs.WalkDir 依檔名排序處理，確保行為 determinism（方便重現與除錯）。
//
// 注意：
//   - RegisterAll 只負責「把設定檔宣告的掃描資訊放進 Catalog」。
//
// 流程模型（Builder / Registry）是否支援該 FlowsheetKey，在這裡一併檢查：
// 設定檔指到沒註冊的模型是組裝期錯誤，不留到 runtime。
func (p *Lab) RegisterAll() error {
	cfgs := p.cat.Cfg()
	sources := cfgs.Sources()
	if len(sources) == 0 {
		return errs.NewFatal("configs required")
	}

	entries := make([]catalog.Entry, 0, 64)
	seenID := map[spec.SID]string{}
	seenName := map[string]string{}

	for _, src := range sources {
		walkErr := fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path == "." {
					return nil
				}
				return errs.NewFatal(fmt.Sprintf("configs must be flat (no subdir): %q", path))
			}

			base := filepath.Base(path)
			if strings.Contains(path, "/") && path != base {
				return errs.NewFatal(fmt.Sprintf("configs must be flat (nested path): %q", path))
			}
			if strings.HasPrefix(base, ".") {
				return nil
			}

			ext := strings.ToLower(filepath.Ext(base))
			if ext != ".yaml" && ext != ".yml" && ext != ".json" {
				return nil
			}

			raw, rerr := fs.ReadFile(src, path)
			if rerr != nil {
				return errs.NewFatal(fmt.Sprintf("read config failed: %s", base))
			}

			var (
				ss   *spec.SweepSetting
				serr error
			)
			switch ext {
			case ".yaml", ".yml":
				ss, serr = spec.GetSweepSettingByYAML(raw)
			case ".json":
				ss, serr = spec.GetSweepSettingByJSON(raw)
			default:
				return errs.NewFatal(fmt.Sprintf("unsupported config format: %q", base))
			}
			if serr != nil {
				return errs.NewFatal(fmt.Sprintf("parse sweepsetting failed: %s", base))
			}

			name := strings.TrimSpace(ss.SweepName)
			if name == "" {
				return errs.NewFatal(fmt.Sprintf("sweep name required: %s", base))
			}

			id := spec.SID(ss.SweepID)
			if prev, ok := seenID[id]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate sweep id: %d (config=%s and %s)", id, prev, base))
			}
			if _, ok := p.cat.GetByID(id); ok {
				return errs.NewFatal(fmt.Sprintf("sweep id already registered: %d (config=%s)", id, base))
			}
			seenID[id] = base

			nameKey := strings.ToLower(name)
			if prev, ok := seenName[nameKey]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate sweep name: %s (config=%s and %s)", nameKey, prev, base))
			}
			if _, ok := p.cat.GetByName(name); ok {
				return errs.NewFatal(fmt.Sprintf("sweep name already registered: %s (config=%s)", name, base))
			}
			seenName[nameKey] = base

			if ss.FlowsheetKey == "" {
				return errs.NewFatal(fmt.Sprintf("flowsheet key required: %s", base))
			}
			if !p.reg.IsExist(ss.FlowsheetKey) {
				return errs.NewFatal(fmt.Sprintf("flowsheet not registered: flowsheet=%s (config=%s)", ss.FlowsheetKey, base))
			}

			entries = append(entries, catalog.Entry{
				SID:        id,
				Name:       name,
				ConfigName: base,
			})
			return nil
		})
		if walkErr != nil {
			return walkErr
		}
	}

	if len(entries) == 0 {
		return errs.NewFatal("no config files found to register")
	}

	return p.cat.Register(entries...)
}

func (p *Lab) Freeze() {
	p.cat.Freeze()
}

func (p *Lab) EntryById(id spec.SID) (catalog.Entry, bool) {
	return p.cat.GetByID(id)
}

func (p *Lab) EntryByName(name string) (catalog.Entry, bool) {
	return p.cat.GetByName(name)
}

func (p *Lab) IDs() []spec.SID {
	return p.cat.IDs()
}

func (p *Lab) All() []catalog.Entry {
	return p.cat.All()
}

func (p *Lab) Summary() ([]catalog.Summary, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	if p.sum != nil {
		return p.sum, nil
	}
	ids := p.cat.IDs()
	cs := make([]catalog.Summary, 0, len(ids))
	for _, id := range ids {
		ss, err := p.cat.SweepSettingById(id)
		if err != nil {
			return nil, errs.NewFatal("parse sweep setting failed")
		}
		s := catalog.Summary{
			SID:       id,
			Name:      ss.SweepName,
			Flowsheet: ss.FlowsheetKey,
			NumParams: len(ss.Params),
			IsRandom:  ss.IsRandom(),
		}
		cs = append(cs, s)
	}
	p.sum = cs
	return p.sum, nil
}

// NewSweep 依據 Catalog 內的掃描 ID 建立一個 Sweep。
//
// 行為：
//  1. 由 Catalog 取得對應的 SweepSetting（通常來自 fs.FS 內的 YAML/JSON）。
//  2. 決定 base seed：設定檔有宣告 seed 就用宣告值，否則由 crypto/rand 產生。
//  3. Sweep 建立時即確認 Registry 支援該 FlowsheetKey。
//
// 注意：seed 會被記錄在 Sweep 內，用於追溯/重現；每個 worker 的核心由
// base seed 經確定性推導產生，不靠時間或全域狀態。
func (p *Lab) NewSweep(id spec.SID) (*Sweep, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	ss, err := p.cat.SweepSettingById(id)
	if err != nil {
		return nil, err
	}
	return newSweep(ss, p.reg, p.pf, pickSeed(ss))
}

// NewSweepWithSeed 與 NewSweep 相同，但由呼叫端指定 base seed，
// 覆蓋設定檔的宣告。同一份設定 + 同一個 seed + 同一個 worker 數，
// 結果表 bit-identical。
func (p *Lab) NewSweepWithSeed(id spec.SID, seed int64) (*Sweep, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	ss, err := p.cat.SweepSettingById(id)
	if err != nil {
		return nil, err
	}
	return newSweep(ss, p.reg, p.pf, seed)
}

// NewSweepByJSON 以呼叫端送進來的 JSON 設定建立 Sweep，
// 不經過 Catalog 的 ConfigName 查找，但設定仍須對得上已註冊的目錄。
func (p *Lab) NewSweepByJSON(raw []byte, seed int64) (*Sweep, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	ss, err := spec.GetSweepSettingByJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(ss); err != nil {
		return nil, err
	}
	return newSweep(ss, p.reg, p.pf, seed)
}

func (p *Lab) NewSweepByYAML(raw []byte, seed int64) (*Sweep, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	ss, err := spec.GetSweepSettingByYAML(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(ss); err != nil {
		return nil, err
	}
	return newSweep(ss, p.reg, p.pf, seed)
}

func (p *Lab) validCfg(ss *spec.SweepSetting) error {
	ent, ok := p.cat.GetByID(spec.SID(ss.SweepID))
	if !ok {
		return errs.NewWarn("sid not exist")
	}
	ent2, ok := p.cat.GetByName(ss.SweepName)
	if !ok {
		return errs.NewWarn("sweep name not exist")
	}
	if ent.SID != ent2.SID {
		return errs.NewWarn("sweep id is not matched sweep name")
	}
	if !p.reg.IsExist(ss.FlowsheetKey) {
		return errs.NewWarn("flowsheet not exist")
	}
	return nil
}

// pickSeed 決定 Sweep 的 base seed：設定檔宣告優先，否則取 crypto/rand。
func pickSeed(ss *spec.SweepSetting) int64 {
	if ss.Seed != 0 {
		return ss.Seed
	}
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		// crypto/rand 失敗時退回時間 seed，至少不讓建構失敗。
		return int64(mix63(uint64(time.Now().UnixNano())))
	}
	return n.Int64()
}
