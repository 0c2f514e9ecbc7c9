package v1

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nawi-hub/proteuslib"
	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/results"
	"github.com/nawi-hub/proteuslib/server/httperr"
	"github.com/nawi-hub/proteuslib/spec"
	"github.com/nawi-hub/proteuslib/stats"
)

// Recursive 以遞迴補抽模式執行隨機掃描 直到收齊要求的成功列數或回合上限
func (sh *SweepHandler) Recursive(w http.ResponseWriter, q *http.Request) {
	// 僅供此 handler 使用的內部結構
	type RecursiveResponse struct {
		SID      spec.SID           `json:"sid"`
		Seed     int64              `json:"seed"`
		Rows     int                `json:"rows"`
		Results  *results.Archive   `json:"results"`
		Stats    *stats.SweepReport `json:"stats"`
		UsedTime int64              `json:"used_ms"`
	}
	// ---
	req, ok := sh.decodeSweepRequest(w, q)
	if !ok {
		return
	}
	sw, err := sh.Lab.NewSweepWithSeed(req.SID, *req.Seed)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, fmt.Sprintf("build sweep err: %d", req.SID)))
		return
	}
	g, report, used, err := sw.RunRecursive(proteuslib.SweepOptions{Workers: req.Workers})
	if err != nil {
		// 這裡的錯誤來自 sweep 尊重錯誤分級
		httperr.Errs(w, errs.Wrap(err, "recursive sweep err"))
		return
	}
	resp := RecursiveResponse{
		SID:      req.SID,
		Seed:     *req.Seed,
		Rows:     g.Rows(),
		Results:  results.NewArchive(g),
		Stats:    report,
		UsedTime: used.Milliseconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
