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

package api

import (
	"log/slog"
	"net/http"

	v1 "github.com/nawi-hub/proteuslib/server/api/v1"
	"github.com/nawi-hub/proteuslib/server/netsvr"
	"github.com/nawi-hub/proteuslib/server/netsvr/middleware"
	"github.com/nawi-hub/proteuslib/server/svrcfg"
)

// RegisterRoutes 註冊
func RegisterRoutes(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) {
	registerMiddleware(svr, sCfg.Log) // 1. 註冊 middleware
	registerIndex(svr)                // 2. 註冊主頁
	registerV1API(svr, sCfg)          // 3. 註冊 v1 api
}

// 註冊 middleware
func registerMiddleware(svr netsvr.NetSvr, log *slog.Logger) {
	svr.Use(middleware.RequestID)
	svr.Use(middleware.AccessLog(log))
	svr.Use(middleware.Recover)
	svr.Use(middleware.Compression)
}

// 註冊主頁
func registerIndex(svr netsvr.NetSvr) {
	svr.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("proteuslib parameter sweep service\n" +
			"  GET  /v1/catalog\n" +
			"  GET  /v1/sweep?sid=<id>[&workers=N][&seed=S]\n" +
			"  POST /v1/sweep\n" +
			"  POST /v1/sweepbycfg\n" +
			"  GET  /v1/recursive?sid=<id>[&workers=N][&seed=S]\n" +
			"  POST /v1/recursive\n"))
	})
}

// 註冊 v1 api
func registerV1API(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) error {
	s, err := v1.NewSweepHandler(sCfg)
	if err != nil {
		return err
	}
	svr.Group("/v1", func(vOne netsvr.NetRouter) {
		vOne.Get("/catalog", s.Catalog)
		vOne.Get("/sweep", s.Sweep)
		vOne.Get("/recursive", s.Recursive)

		vOne.Post("/sweep", s.Sweep)
		vOne.Post("/sweepbycfg", s.SweepByCfg)
		vOne.Post("/recursive", s.Recursive)
	})
	return nil
}
