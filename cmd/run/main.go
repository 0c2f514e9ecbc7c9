package main

import "github.com/nawi-hub/proteuslib/sdk/perf"

// makefile runner
func main() {
	bindVar()
	perf.RunPProf(executeSweep, cfg.pprofmode)
}
