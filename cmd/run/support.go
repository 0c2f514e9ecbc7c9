package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"math"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/nawi-hub/proteuslib"
	"github.com/nawi-hub/proteuslib/demo/demo_configs"
	"github.com/nawi-hub/proteuslib/demo/demo_flowsheet"
	"github.com/nawi-hub/proteuslib/results"
	"github.com/nawi-hub/proteuslib/sdk/core"
	"github.com/nawi-hub/proteuslib/spec"
	"github.com/nawi-hub/proteuslib/stats"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var cfg *config = new(config)

type config struct {
	name      string
	id        spec.SID
	cfgPath   string
	worker    int
	seed      int64
	recursive bool
	csvPath   string
	debugDir  string
	pprofmode string
}

type sidFlag struct{ p *spec.SID }

func (f sidFlag) String() string { return fmt.Sprint(uint(*f.p)) }
func (f sidFlag) Set(s string) error {
	u, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return err
	}
	*f.p = spec.SID(uint(u))
	return nil
}

func bindVar() {
	// 綁定 Flag 到本地變數的指標 (&)
	flag.Var(sidFlag{&cfg.id}, "sweep", "target sweep id")
	flag.StringVar(&cfg.cfgPath, "cfg", "", "run from a sweep config file (.yaml or .json) instead of -sweep")
	flag.IntVar(&cfg.worker, "worker", 1, "number of workers")
	flag.Int64Var(&cfg.seed, "seed", -1, "int64 seed for random number generator")
	flag.BoolVar(&cfg.recursive, "recursive", false, "re-draw until the requested successes are collected")
	flag.StringVar(&cfg.csvPath, "csv", "", "write the global result table to this CSV path (.gz for gzip)")
	flag.StringVar(&cfg.debugDir, "debug-dir", "", "dump each rank's local slice as CSV into this directory")
	flag.StringVar(&cfg.pprofmode, "p", "", "pprof: '', cpu, heap, allocs")

	flag.Parse()

	// given seed illeagel -> default seed
	if cfg.seed < 1 {
		seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			log.Fatal(err)
		}
		cfg.seed = seed.Int64()
	}
}

// buildSweep 依 flag 決定掃描來源：外部設定檔優先，否則查 catalog。
func buildSweep(lab *proteuslib.Lab) (*proteuslib.Sweep, error) {
	if cfg.cfgPath == "" {
		return lab.NewSweepWithSeed(cfg.id, cfg.seed)
	}
	raw, err := os.ReadFile(cfg.cfgPath)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(cfg.cfgPath, ".json") {
		return lab.NewSweepByJSON(raw, cfg.seed)
	}
	return lab.NewSweepByYAML(raw, cfg.seed)
}

// 這裡解析並分支要執行的掃描模式
func executeSweep() {
	cfg.valid() // 基本檢查

	lab, err := proteuslib.NewAuto(
		core.Default(),
		proteuslib.Configs(demo_configs.FS),
		proteuslib.Flowsheets(demo_flowsheet.Flowsheets),
	)
	if err != nil {
		log.Fatal(err)
	}
	s, err := buildSweep(lab)
	if err != nil {
		log.Fatal(err)
	}
	cfg.name = s.SweepName
	cfg.id = s.SweepID
	// 至此確保可執行
	green := "\033[1;32m"
	reset := "\033[0m"
	p := message.NewPrinter(language.English)

	opts := proteuslib.SweepOptions{
		Workers:      cfg.worker,
		ShowProgress: true,
		DebugDir:     cfg.debugDir,
	}

	var g *proteuslib.GlobalResultTable
	if cfg.recursive {
		p.Printf("%s[RECURSIVE] [SWEEP:%s] [WORKERS:%d] [REQUESTED:%d]%s\n",
			green, cfg.name, cfg.worker, s.Setting().ReqNumSamples, reset)
		tbl, report, used, err := s.RunRecursive(opts)
		if err != nil {
			log.Fatal(err)
		}
		report.StdOut(used)
		g = tbl
	} else {
		p.Printf("%s[SWEEP:%s] [WORKERS:%d] [ROWS:%d]%s\n",
			green, cfg.name, cfg.worker, s.PlannedRows(), reset)
		tbl, used, err := s.Run(opts)
		if err != nil {
			log.Fatal(err)
		}
		report := stats.NewSweepReport(cfg.name, cfg.id, cfg.seed, 0)
		report.AddRound(tbl.Rows(), tbl.NumSuccess())
		report.Done(tbl.NumSuccess())
		report.StdOut(used)
		g = tbl
	}

	if cfg.csvPath != "" {
		if err := results.WriteTableCSV(g, cfg.csvPath); err != nil {
			log.Fatal(err)
		}
		p.Printf("result table written to %s (%d rows)\n", cfg.csvPath, g.Rows())
	}
}

func (cfg *config) valid() {
	// 工作協程檢查(併發數)
	if cfg.worker < 1 {
		log.Fatal("value err : workers must > 0")
	}
	if cfg.worker > 64 {
		p := message.NewPrinter(language.English)
		p.Printf("too much workers: %d resized to 64 workers\n", cfg.worker)
		cfg.worker = 64
	}
}
