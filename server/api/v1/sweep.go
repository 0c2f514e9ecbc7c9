package v1

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"strconv"

	"github.com/nawi-hub/proteuslib"
	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/results"
	"github.com/nawi-hub/proteuslib/server/httperr"
	"github.com/nawi-hub/proteuslib/server/svrcfg"
	"github.com/nawi-hub/proteuslib/spec"
)

// maxWorkers 單一請求允許的 pool worker 上限
const maxWorkers = 64

type SweepHandler struct {
	Lab     *proteuslib.Lab
	Workers int // 請求未指定 workers 時的預設值
}

func NewSweepHandler(sCfg *svrcfg.SvrCfg) (*SweepHandler, error) {
	if sCfg.Lab == nil {
		return nil, errs.NewFatal("lab is required")
	}
	return &SweepHandler{Lab: sCfg.Lab, Workers: sCfg.SweepWorkers}, nil
}

// sweepRequest 僅供 handler 內部使用 不對外暴露
// Sweep 與 Recursive 的請求欄位相同 共用同一組解析
type sweepRequest struct {
	SID     spec.SID `json:"sid"`
	Workers int      `json:"workers"`
	Seed    *int64   `json:"seed,omitempty"`
}

// decodeSweepRequest 解析 GET query 或 POST json body。
// 解析失敗時已寫回錯誤回應，回傳 false。
func (sh *SweepHandler) decodeSweepRequest(w http.ResponseWriter, q *http.Request) (*sweepRequest, bool) {
	req := new(sweepRequest)
	if q.Method != http.MethodGet && q.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	if q.Method == http.MethodGet {
		// sid
		if s := q.URL.Query().Get("sid"); s != "" {
			u, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("sid must be non-negative integer"))
				return nil, false
			}
			req.SID = spec.SID(u)
		} else {
			// 直接空值
			httperr.Errs(w, errs.NewWarn("sid is required"))
			return nil, false
		}

		// workers
		if s := q.URL.Query().Get("workers"); s != "" {
			u, err := strconv.Atoi(s)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("workers must be integer"))
				return nil, false
			}
			req.Workers = u
		}

		// seed
		if s := q.URL.Query().Get("seed"); s != "" {
			u, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("seed must be int64"))
				return nil, false
			}
			v := u
			req.Seed = &v
		}
	}
	if q.Method == http.MethodPost {
		if err := json.NewDecoder(q.Body).Decode(req); err != nil {
			httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
			return nil, false
		}
	}

	// 業務檢驗
	if _, ok := sh.Lab.EntryById(req.SID); !ok {
		httperr.Errs(w, errs.NewWarn("sid not found"))
		return nil, false
	}
	if req.Workers == 0 {
		req.Workers = sh.Workers
	}
	if req.Workers < 1 || req.Workers > maxWorkers {
		httperr.Errs(w, errs.NewWarn(fmt.Sprintf("workers must be between 1 to %d", maxWorkers)))
		return nil, false
	}
	if req.Seed == nil {
		rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			httperr.Errs(w, errs.NewWarn("seed generate failed"))
			return nil, false
		}
		v := rnd.Int64()
		req.Seed = &v
	}
	return req, true
}

func (sh *SweepHandler) Sweep(w http.ResponseWriter, q *http.Request) {
	// 僅供此 handler 使用的內部結構
	type SweepResponse struct {
		SID      spec.SID         `json:"sid"`
		Seed     int64            `json:"seed"`
		Rows     int              `json:"rows"`
		Results  *results.Archive `json:"results"`
		UsedTime int64            `json:"used_ms"`
	}
	// ---
	req, ok := sh.decodeSweepRequest(w, q)
	if !ok {
		return
	}
	sw, err := sh.Lab.NewSweepWithSeed(req.SID, *req.Seed)
	if err != nil {
		// 這裡的錯誤來自 lab 尊重錯誤分級
		httperr.Errs(w, errs.Wrap(err, fmt.Sprintf("build sweep err: %d", req.SID)))
		return
	}
	g, used, err := sw.Run(proteuslib.SweepOptions{Workers: req.Workers})
	if err != nil {
		// 這裡的錯誤來自 sweep 尊重錯誤分級
		httperr.Errs(w, errs.Wrap(err, "sweep err"))
		return
	}
	resp := SweepResponse{
		SID:      req.SID,
		Seed:     *req.Seed,
		Rows:     g.Rows(),
		Results:  results.NewArchive(g),
		UsedTime: used.Milliseconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
