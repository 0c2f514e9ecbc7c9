package stats

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nawi-hub/proteuslib/spec"
)

var lang language.Tag = language.English

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo"`
	Hi float64 `json:"Hi"`
}

// Status 標記掃描是否收滿要求的成功樣本數。
type Status string

const (
	// StatusComplete：plain 掃描跑完，或 recursive 掃描收滿要求的成功數。
	StatusComplete Status = "complete"
	// StatusPartial：recursive 掃描打到輪數上限仍未收滿（partial delivery）。
	StatusPartial Status = "partial"
)

// RoundStat 單輪統計
type RoundStat struct {
	Round       int     `json:"Round"`
	Rows        int     `json:"Rows"`
	Successes   int     `json:"Successes"`
	SuccessRate float64 `json:"SuccessRate"`
	RateCI      CI      `json:"RateCI"`
}

// SweepReport 掃描統計報告
//
// plain 掃描只有一輪；recursive 掃描每輪 AddRound 一次，
// 結束時 Done 會鎖定累計統計與交付狀態。
type SweepReport struct {
	SweepName    string      `json:"SweepName"`
	SweepID      spec.SID    `json:"SweepID"`
	Seed         int64       `json:"Seed"`
	Requested    int         `json:"Requested,omitempty"` // recursive 的目標成功數；plain 為 0
	Delivered    int         `json:"Delivered"`           // 最終結果表交付的成功列數
	TotalRows    int         `json:"TotalRows"`
	TotalSuccess int         `json:"TotalSuccess"`
	SuccessRate  float64     `json:"SuccessRate"`
	RateCI       CI          `json:"RateCI"`
	Status       Status      `json:"Status"`
	Rounds       []RoundStat `json:"Rounds"`
	isDone       bool
}

func NewSweepReport(name string, sid spec.SID, seed int64, requested int) *SweepReport {
	return &SweepReport{
		SweepName: name,
		SweepID:   sid,
		Seed:      seed,
		Requested: requested,
		Rounds:    make([]RoundStat, 0, 10),
	}
}

// ============================================================
// ** 公開方法 **
// ============================================================

// AddRound 記錄一輪的結果並回傳該輪統計（含成功率 95% CI）。
func (s *SweepReport) AddRound(rows, successes int) RoundStat {
	rate := float64(0)
	if rows > 0 {
		rate = float64(successes) / float64(rows)
	}
	_, ci := proportionCICP(successes, rows, 0.95)
	rs := RoundStat{
		Round:       len(s.Rounds) + 1,
		Rows:        rows,
		Successes:   successes,
		SuccessRate: rate,
		RateCI:      ci,
	}
	s.Rounds = append(s.Rounds, rs)
	s.TotalRows += rows
	s.TotalSuccess += successes
	return rs
}

// Done 鎖定累計統計並判定交付狀態。delivered 是最終表實際交付的成功列數。
func (s *SweepReport) Done(delivered int) {
	if s.isDone {
		return
	}
	s.Delivered = delivered
	if s.TotalRows > 0 {
		s.SuccessRate = float64(s.TotalSuccess) / float64(s.TotalRows)
	}
	_, s.RateCI = proportionCICP(s.TotalSuccess, s.TotalRows, 0.95)

	s.Status = StatusComplete
	if s.Requested > 0 && s.Delivered < s.Requested {
		s.Status = StatusPartial
	}
	s.isDone = true
}

func (s *SweepReport) WriteWith(w io.Writer, rep SweepReportRender) error {
	return rep.Write(w, s)
}

func (s *SweepReport) StdOut(ut time.Duration) {
	formatDuration(ut, s.TotalRows)
	sk, sm := s.fmtBasic()
	str := fmtTable(s.SweepName, sk, sm)
	fmt.Println(str)
}

// ============================================================
// ** 內部統計函數 **
// ============================================================

// Clopper–Pearson exact CI for binomial proportion (k successes out of n)
func proportionCICP(k int, n int, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{0, 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	// Beta PPF 映射，處理邊界
	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}

// ============================================================
// ** 內部方法 **
// ============================================================

func formatDuration(d time.Duration, rows int) {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	rps := int(float64(rows) / sec)
	if sec < 60.0 {
		p.Printf("used: %.2f seconds\nrps : %d rows/sec\n", sec, rps)
		return
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		s = s % 60
		p.Printf("used: %dm %ds\nrps : %d rows/sec\n", m, s, rps)
		return
	}
	p.Printf("used: %dh:%dm:%ds\nrps : %d rows/sec\n", h, m, s, rps)
}

// StdOut

func (s *SweepReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	basic := map[string]string{
		"Sweep Name":    p.Sprintf("%s", s.SweepName),
		"Sweep ID":      fmt.Sprintf("%d", s.SweepID),
		"Seed":          fmt.Sprintf("%d", s.Seed),
		"Status":        string(s.Status),
		"Rounds":        p.Sprintf("%d", len(s.Rounds)),
		"Total Rows":    p.Sprintf("%d", s.TotalRows),
		"Total Success": p.Sprintf("%d", s.TotalSuccess),
		"Delivered":     p.Sprintf("%d", s.Delivered),
		"Success Rate":  p.Sprintf("%.2f %%", 100.0*s.SuccessRate),
		"Rate 95% CI":   p.Sprintf("[%.2f%%,%.2f%%]", 100.0*s.RateCI.Lo, 100.0*s.RateCI.Hi),
	}
	keys := []string{"Sweep Name", "Sweep ID", "Seed", "Status", "Rounds", "Total Rows", "Total Success", "Delivered", "Success Rate", "Rate 95% CI"}
	if s.Requested > 0 {
		basic["Requested"] = p.Sprintf("%d", s.Requested)
		keys = append(keys, "Requested")
	}
	return keys, basic
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := 0
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	fmtStr := top
	fmtStr += p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right))
	fmtStr += divider
	for _, k := range keys {
		fmtStr += p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k])))
	}
	fmtStr += divider

	return fmtStr
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
