package mock

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
)

// NewToolchain returns a sandbox that imitates a C compiler and the
// programs it builds, so whole judge calls can run without nsjail or gcc.
//
// Compiling rejects sources with unbalanced braces and otherwise copies
// the source to the -o path. Running a "binary" looks at its source:
// an infinite loop exceeds the CPU limit, a program using scanf adds the
// integers on stdin, "return 1" exits with status 1 and anything else
// exits cleanly without output.
func NewToolchain() *Sandbox {
	return &Sandbox{ExecuteFn: toolchain}
}

func toolchain(_ context.Context, req *domain.ExecRequest) (*domain.ExecutionResult, error) {
	if base := filepath.Base(req.ExePath); base == "gcc" || base == "g++" {
		return compile(req)
	}
	return run(req)
}

func compile(req *domain.ExecRequest) (*domain.ExecutionResult, error) {
	var srcPath, exePath string
	for i, a := range req.Args {
		switch {
		case a == "-o" && i+1 < len(req.Args):
			exePath = req.Args[i+1]
		case strings.HasSuffix(a, ".c") || strings.HasSuffix(a, ".cpp"):
			srcPath = a
		}
	}

	src, err := os.ReadFile(srcPath)
	if err != nil {
		return &domain.ExecutionResult{Result: domain.ResultRuntimeError, ExitCode: 1, Stderr: "gcc: fatal error: " + err.Error()}, nil
	}
	if strings.Count(string(src), "{") != strings.Count(string(src), "}") {
		return &domain.ExecutionResult{
			Result:   domain.ResultRuntimeError,
			ExitCode: 1,
			Stderr:   filepath.Base(srcPath) + ":1:1: error: expected declaration or statement at end of input",
		}, nil
	}
	if err := os.WriteFile(exePath, src, 0o755); err != nil {
		return nil, err
	}
	return &domain.ExecutionResult{Result: domain.ResultSuccess, CPUTimeMs: 120, RealTimeMs: 150, MemoryBytes: 20 << 20}, nil
}

func run(req *domain.ExecRequest) (*domain.ExecutionResult, error) {
	src, err := os.ReadFile(req.ExePath)
	if err != nil {
		return &domain.ExecutionResult{Result: domain.ResultSystemError, ExitCode: -1, Stderr: err.Error()}, nil
	}
	program := string(src)

	switch {
	case strings.Contains(program, "while (1)") || strings.Contains(program, "for (;;)"):
		return &domain.ExecutionResult{
			Result:     domain.ResultCPUTimeLimitExceeded,
			CPUTimeMs:  req.MaxCPUTimeMs + 1,
			RealTimeMs: req.MaxCPUTimeMs + 2,
			ExitCode:   137,
			Signal:     9,
		}, nil
	case strings.Contains(program, "scanf"):
		in, err := os.ReadFile(req.StdinPath)
		if err != nil {
			return nil, err
		}
		sum := 0
		for _, f := range strings.Fields(string(in)) {
			n, _ := strconv.Atoi(f)
			sum += n
		}
		return &domain.ExecutionResult{Result: domain.ResultSuccess, Stdout: strconv.Itoa(sum) + "\n", CPUTimeMs: 1, RealTimeMs: 2, MemoryBytes: 1 << 20}, nil
	case strings.Contains(program, "return 1"):
		return &domain.ExecutionResult{Result: domain.ResultRuntimeError, ExitCode: 1, CPUTimeMs: 1, RealTimeMs: 1}, nil
	default:
		return &domain.ExecutionResult{Result: domain.ResultSuccess, CPUTimeMs: 1, RealTimeMs: 1}, nil
	}
}
