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

package demo

import (
	"github.com/nawi-hub/proteuslib"
	"github.com/nawi-hub/proteuslib/catalog"
	"github.com/nawi-hub/proteuslib/demo/demo_configs"
	"github.com/nawi-hub/proteuslib/demo/demo_flowsheet"
	"github.com/nawi-hub/proteuslib/errs"
	"github.com/nawi-hub/proteuslib/sdk/core"
	"github.com/nawi-hub/proteuslib/server/logger"
	"github.com/nawi-hub/proteuslib/server/svrcfg"
)

func New() (*catalog.Catalog, error) {
	return catalog.New(demo_configs.FS)
}

func NewServerConfig() (*svrcfg.SvrCfg, error) {
	lab, err := proteuslib.NewAuto(
		core.Default(),
		proteuslib.Configs(demo_configs.FS),
		proteuslib.Flowsheets(demo_flowsheet.Flowsheets),
	)
	if err != nil {
		return nil, errs.NewFatal("new lab failed:" + err.Error())
	}
	scfg := &svrcfg.SvrCfg{
		Log:          logger.NewDefaultAsyncLogger(logger.ModeDev),
		SweepWorkers: 4,
		Lab:          lab,
	}
	return scfg, nil
}

func NewLab() (*proteuslib.Lab, error) {
	return proteuslib.NewAuto(
		core.Default(),
		proteuslib.Configs(demo_configs.FS),
		proteuslib.Flowsheets(demo_flowsheet.Flowsheets),
	)
}
