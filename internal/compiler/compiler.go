// Package compiler turns source files into executables through the sandbox.
package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Harsh-BH/sentinel-judge/internal/cmdline"
	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/sandbox"
)

// maxDiagnosticBytes caps the compiler output returned to the caller.
const maxDiagnosticBytes = 64 * 1024

// defaultPath is the PATH handed to compilers that exec helper binaries.
const defaultPath = "PATH=/usr/local/bin:/usr/bin:/bin"

// Compiler runs compile commands from language profiles.
type Compiler struct {
	sb     sandbox.Sandbox
	logger *zap.Logger
}

// New creates a compiler that runs through sb.
func New(sb sandbox.Sandbox, logger *zap.Logger) *Compiler {
	return &Compiler{sb: sb, logger: logger}
}

// Compile writes src to cfg.SrcName inside dir and compiles it there.
func (c *Compiler) Compile(ctx context.Context, cfg domain.CompileConfig, src, dir string) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	srcPath := filepath.Join(dir, cfg.SrcName)
	if err := os.MkdirAll(filepath.Dir(srcPath), 0o755); err != nil {
		return "", domain.WrapError(domain.KindWorkspaceIOError, err)
	}
	if err := os.WriteFile(srcPath, []byte(src), 0o644); err != nil {
		return "", domain.WrapError(domain.KindWorkspaceIOError, err)
	}

	return c.CompileSource(ctx, cfg, srcPath, dir)
}

// CompileSource compiles an existing source file, placing the artifact in outDir.
func (c *Compiler) CompileSource(ctx context.Context, cfg domain.CompileConfig, srcPath, outDir string) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	exePath := filepath.Join(outDir, cfg.ExeName)
	args, err := cmdline.Build(cfg.CompileCommand, map[string]string{
		"src_path": srcPath,
		"exe_dir":  outDir,
		"exe_path": exePath,
	})
	if err != nil {
		return "", domain.NewError(domain.KindInvalidRequest, "compile_command: %v", err)
	}

	realTime := cfg.MaxRealTime
	if realTime <= 0 && cfg.MaxCPUTime > 0 {
		realTime = 3 * cfg.MaxCPUTime
	}

	res, err := c.sb.Execute(ctx, &domain.ExecRequest{
		ExePath:        args[0],
		Args:           args[1:],
		Env:            []string{defaultPath},
		WorkDir:        outDir,
		MaxCPUTimeMs:   cfg.MaxCPUTime,
		MaxRealTimeMs:  realTime,
		MaxMemoryBytes: cfg.MaxMemory,
	})
	if err != nil {
		return "", domain.WrapError(domain.KindSystemError, fmt.Errorf("run compiler: %w", err))
	}
	if res.Result == domain.ResultSystemError {
		return "", domain.NewError(domain.KindSystemError, "compiler sandbox failure: %s", strings.TrimSpace(res.Stderr))
	}

	if res.Result != domain.ResultSuccess || res.ExitCode != 0 {
		c.logger.Debug("Compilation failed",
			zap.String("src_path", srcPath),
			zap.String("result", string(res.Result)),
			zap.Int("exit_code", res.ExitCode),
		)
		return "", domain.NewError(domain.KindCompileError, "%s", diagnostics(res))
	}

	if _, err := os.Stat(exePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.NewError(domain.KindCompileError, "compiler exited cleanly but produced no %s", cfg.ExeName)
		}
		return "", domain.WrapError(domain.KindWorkspaceIOError, err)
	}

	return exePath, nil
}

// diagnostics picks the caller-facing compiler message.
func diagnostics(res *domain.ExecutionResult) string {
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(res.Stdout)
	}
	if msg == "" {
		info, _ := json.Marshal(res)
		msg = "Compiler runtime error, info: " + string(info)
	}
	if len(msg) > maxDiagnosticBytes {
		msg = msg[:maxDiagnosticBytes]
	}
	return msg
}
