package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// runTest 等同於：
// 1. go clean -testcache
// 2. go test ./... -cover -count=1 2>&1 | grep -E '^(ok|FAIL)'
func runTest() {
	PrintGreen("running tests")

	// 清 cache；clean 失敗不一定要中斷
	cleanCmd := exec.Command("go", "clean", "-testcache")
	if err := cleanCmd.Run(); err != nil {
		PrintRed(err.Error())
	}

	cmd := exec.Command("go", "test", "./...", "-cover", "-count=1")

	// 取得 stdout 的 pipe，像 grep 一樣逐行過濾
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		panic(err)
	}

	// 等同 shell 的 "2>&1"：編譯錯誤（多半在 stderr）也要讀得到
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		PrintRed(fmt.Sprintf("Error starting go test: %v", err))
		os.Exit(1)
	}

	// 模擬 grep -E '^(ok|FAIL)'
	scanner := bufio.NewScanner(stdoutPipe)
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "ok") {
			PrintGreen(line)
		} else if strings.HasPrefix(line, "FAIL") {
			PrintRed(line)
		} else if strings.Contains(line, "build failed") || strings.Contains(line, "setup failed") {
			// 嚴重錯誤關鍵字要保留，不然過濾太乾淨會看不出為什麼沒反應
			PrintRed(line)
		}
	}

	if err := cmd.Wait(); err != nil {
		// 測試失敗 (exit code != 0)
		PrintRed("\nTests Finished with Errors\n")
		os.Exit(1)
	}
}

// runTestAll：
//
//	go clean -testcache && go test -cover ./...
func runTestAll() {
	PrintGreen("running tests (all with coverage)")

	cleanCmd := exec.Command("go", "clean", "-testcache")
	cleanCmd.Stdout = os.Stdout
	cleanCmd.Stderr = os.Stderr
	if err := cleanCmd.Run(); err != nil {
		PrintRed(fmt.Sprintf("go clean -testcache failed: %v", err))
		os.Exit(1)
	}

	testCmd := exec.Command("go", "test", "./...", "-cover")
	testCmd.Stdout = os.Stdout
	testCmd.Stderr = os.Stderr

	if err := testCmd.Run(); err != nil {
		PrintRed("\nTests (with coverage) finished with errors\n")
		os.Exit(1)
	}
}

// runTestDetail：
//
//	go clean -testcache
//	go test ./... -v -count=1 2>&1 | grep -v '\[no test files\]'
//
// verbose 測試，顯示所有 log，但過濾掉 "[no test files]" 那些行。
func runTestDetail() {
	PrintGreen("running tests (detail)")

	cleanCmd := exec.Command("go", "clean", "-testcache")
	cleanCmd.Stdout = os.Stdout
	cleanCmd.Stderr = os.Stderr
	if err := cleanCmd.Run(); err != nil {
		PrintRed(fmt.Sprintf("go clean -testcache failed: %v", err))
		os.Exit(1)
	}

	cmd := exec.Command("go", "test", "./...", "-v", "-count=1")

	// 合併 stdout/stderr，模擬 "2>&1"
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		PrintRed(fmt.Sprintf("failed to get stdout pipe: %v", err))
		os.Exit(1)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		PrintRed(fmt.Sprintf("Error starting go test: %v", err))
		os.Exit(1)
	}

	scanner := bufio.NewScanner(stdoutPipe)
	for scanner.Scan() {
		line := scanner.Text()

		// 等同 grep -v '\[no test files\]'
		if strings.Contains(line, "[no test files]") {
			continue
		}

		if strings.HasPrefix(line, "ok") {
			PrintGreen(line)
		} else if strings.HasPrefix(line, "FAIL") {
			PrintRed(line)
		} else {
			fmt.Println(line)
		}
	}

	if err := scanner.Err(); err != nil {
		// 通常屬於 IO 問題，不中斷
		PrintRed(fmt.Sprintf("scanner error: %v", err))
	}

	if err := cmd.Wait(); err != nil {
		PrintRed("\nTests (detail) finished with errors\n")
		os.Exit(1)
	}
}
