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

package main

import (
	"flag"
	"fmt"
	"runtime"

	"github.com/nawi-hub/proteuslib"
	"github.com/nawi-hub/proteuslib/demo/demo_configs"
	"github.com/nawi-hub/proteuslib/demo/demo_flowsheet"
	"github.com/nawi-hub/proteuslib/sdk/core"
	"github.com/nawi-hub/proteuslib/server"
	"github.com/nawi-hub/proteuslib/server/logger"
	"github.com/nawi-hub/proteuslib/server/svrcfg"
)

// This command is intentionally a "lab server" entrypoint for the proteuslib repo.
// It serves the bundled demo flowsheets and configs.
// For production deployments, use a separate scaffold project and run ModeProd.
func main() {
	cfg, err := loadConfigFromFlags()
	if err != nil {
		fmt.Println(err)
		return
	}
	server.Run(cfg)
}

type config struct {
	LogMode string
	Workers int
}

func loadConfigFromFlags() (*svrcfg.SvrCfg, error) {
	cfg := new(config)
	flag.StringVar(&cfg.LogMode, "log-mode", "ModeDev", "log mode: ModeDev|ModeProd|ModeSilence")
	flag.IntVar(&cfg.Workers, "workers", runtime.NumCPU(), "default sweep worker pool size")

	flag.Parse()

	log, _ := logger.NewAsync(4096, cfg.norm())

	lab, err := proteuslib.NewAuto(
		core.Default(),
		proteuslib.Configs(demo_configs.FS),
		proteuslib.Flowsheets(demo_flowsheet.Flowsheets),
	)
	if err != nil {
		return nil, err
	}
	sCfg := &svrcfg.SvrCfg{
		Log:          log,
		SweepWorkers: cfg.Workers,
		Lab:          lab,
	}
	return sCfg, nil
}

func (cfg *config) norm() logger.LogMode {
	switch cfg.LogMode {
	case "ModeDev":
		return logger.ModeDev
	case "ModeProd":
		return logger.ModeProd
	case "ModeSilence":
		return logger.ModeSilence
	default:
		return logger.ModeDev
	}
}
