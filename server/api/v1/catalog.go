package v1

import (
	"encoding/json"
	"net/http"

	"github.com/nawi-hub/proteuslib/server/httperr"
)

// Catalog 列出所有已註冊的掃描設定摘要
func (sh *SweepHandler) Catalog(w http.ResponseWriter, q *http.Request) {
	if q.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sum, err := sh.Lab.Summary()
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sum)
}
