package v1

import (
	"crypto/rand"
	"encoding/json"
	"math"
	"math/big"
	"net/http"

	"github.com/nawi-hub/proteuslib"
	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/results"
	"github.com/nawi-hub/proteuslib/server/httperr"
)

// SweepByCfg 傳入 JSON 設定格式 以臨時設定執行一次掃描
// 設定的 sid 與 name 必須對應已註冊的條目（防止匿名設定繞過 catalog）
func (sh *SweepHandler) SweepByCfg(w http.ResponseWriter, r *http.Request) {
	type SweepRequestByJson struct {
		SweepSetting json.RawMessage `json:"cfg"`
		Workers      int             `json:"workers"`
		Seed         *int64          `json:"seed,omitempty"`
	}
	type SweepByCfgResponse struct {
		Seed     int64            `json:"seed"`
		Rows     int              `json:"rows"`
		Results  *results.Archive `json:"results"`
		UsedTime int64            `json:"used_ms"`
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// 1. decode request
	req := new(SweepRequestByJson)
	r.Body = http.MaxBytesReader(w, r.Body, 5<<20) // 5MB
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		httperr.Errs(w, errs.Wrap(err, "json decode failed"))
		return
	}

	// 2. vaild workers / seed
	if req.Workers == 0 {
		req.Workers = sh.Workers
	}
	if req.Workers < 1 || req.Workers > maxWorkers {
		httperr.Errs(w, errs.NewWarn("workers out of range"))
		return
	}
	if req.Seed == nil {
		rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			httperr.Errs(w, errs.NewWarn("seed generate failed"))
			return
		}
		v := rnd.Int64()
		req.Seed = &v
	}

	// 3. NewSweepByJSON
	sw, err := sh.Lab.NewSweepByJSON(req.SweepSetting, *req.Seed)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	g, used, err := sw.Run(proteuslib.SweepOptions{Workers: req.Workers})
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	// 4. 回傳 Json
	resp := SweepByCfgResponse{
		Seed:     *req.Seed,
		Rows:     g.Rows(),
		Results:  results.NewArchive(g),
		UsedTime: used.Milliseconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
