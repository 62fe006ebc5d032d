// Package judge runs a compiled submission against a test-case set and
// turns sandbox results into verdicts.
package judge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/Harsh-BH/sentinel-judge/internal/cmdline"
	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/sandbox"
)

const (
	// realTimeMultiplier derives the wall-clock limit from the CPU limit.
	realTimeMultiplier = 3

	// spjCPUMultiplier gives the special judge more CPU than the submission.
	spjCPUMultiplier = 3

	spjMaxMemory = 1024 * 1024 * 1024

	// maxReportedOutput caps per-case output echoed back to the caller.
	maxReportedOutput = 64 * 1024
)

// SPJRun identifies the special judge binary and how to invoke it.
type SPJRun struct {
	ExePath string
	Config  domain.SPJConfig
}

// RunRequest is everything the engine needs for one submission.
type RunRequest struct {
	SubmissionID   string
	WorkDir        string
	ExePath        string
	Run            domain.RunConfig
	MaxCPUTimeMs   int64
	MaxMemoryBytes int64
	Cases          []domain.TestCase
	SPJ            *SPJRun
	CaptureOutput  bool
}

// RunOutcome holds per-case results in index order, up to the first failure.
type RunOutcome struct {
	Results        []domain.CaseResult
	Summary        domain.JudgeSummary
	CapturedOutput *string
}

// Engine executes test cases strictly in order and stops at the first failure.
type Engine struct {
	sb     sandbox.Sandbox
	logger *zap.Logger
}

func NewEngine(sb sandbox.Sandbox, logger *zap.Logger) *Engine {
	return &Engine{sb: sb, logger: logger}
}

type limits struct {
	cpu, real, memory int64
	checkMemoryOnly   bool
}

func limitsFor(req *RunRequest) limits {
	l := limits{
		cpu:             scale(req.MaxCPUTimeMs, req.Run.CPUTimeFactor),
		memory:          scale(req.MaxMemoryBytes, req.Run.MemoryFactor),
		checkMemoryOnly: req.Run.MemoryLimitCheckOnly,
	}
	l.real = scale(l.cpu*realTimeMultiplier, req.Run.RealTimeFactor)
	return l
}

// scale multiplies v by factor, treating a zero factor as 1.
func scale(v int64, factor float64) int64 {
	if factor <= 0 {
		return v
	}
	return int64(float64(v) * factor)
}

// Run judges every case until one fails.
func (e *Engine) Run(ctx context.Context, req *RunRequest) (*RunOutcome, error) {
	lim := limitsFor(req)

	args, err := cmdline.Build(req.Run.Command, map[string]string{
		"exe_path":   req.ExePath,
		"exe_dir":    filepath.Dir(req.ExePath),
		"max_memory": strconv.FormatInt(lim.memory/1024, 10),
	})
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidRequest, "run command: %v", err)
	}

	out := &RunOutcome{}
	for i, tc := range req.Cases {
		res, stdout, err := e.runCase(ctx, req, lim, args, tc)
		if err != nil {
			return nil, err
		}
		if req.CaptureOutput {
			if i == 0 {
				raw := stdout
				out.CapturedOutput = &raw
			}
			trimmed := truncate(stdout, maxReportedOutput)
			res.Output = &trimmed
		}
		out.Results = append(out.Results, *res)

		if res.Verdict != domain.VerdictAccepted {
			e.logger.Debug("Stopping at first failing case",
				zap.String("submission_id", req.SubmissionID),
				zap.Int("test_case", tc.Index),
				zap.String("verdict", string(res.Verdict)),
			)
			break
		}
	}

	out.Summary = Aggregate(out.Results)
	out.Summary.Total = len(req.Cases)
	return out, nil
}

// runCase returns an error only for workspace failures; sandbox trouble
// becomes a SYSTEM_ERROR verdict on the case.
func (e *Engine) runCase(ctx context.Context, req *RunRequest, lim limits, args []string, tc domain.TestCase) (*domain.CaseResult, string, error) {
	inPath := filepath.Join(req.WorkDir, fmt.Sprintf("%d.in", tc.Index))
	if err := os.WriteFile(inPath, tc.Input, 0o644); err != nil {
		return nil, "", domain.WrapError(domain.KindWorkspaceIOError, err)
	}

	sandboxMemory := lim.memory
	if lim.checkMemoryOnly {
		sandboxMemory = 0
	}

	res, err := e.sb.Execute(ctx, &domain.ExecRequest{
		SubmissionID:   req.SubmissionID,
		ExePath:        args[0],
		Args:           args[1:],
		Env:            req.Run.Env,
		WorkDir:        req.WorkDir,
		StdinPath:      inPath,
		MaxCPUTimeMs:   lim.cpu,
		MaxRealTimeMs:  lim.real,
		MaxMemoryBytes: sandboxMemory,
		SeccompRule:    req.Run.SeccompRule,
	})
	if err != nil {
		e.logger.Error("Sandbox execution failed",
			zap.String("submission_id", req.SubmissionID),
			zap.Int("test_case", tc.Index),
			zap.Error(err),
		)
		return &domain.CaseResult{TestCase: tc.Index, Verdict: domain.VerdictSystemError, Result: domain.ResultSystemError}, "", nil
	}

	if lim.checkMemoryOnly && lim.memory > 0 && res.Result == domain.ResultSuccess && res.MemoryBytes > lim.memory {
		res.Result = domain.ResultMemoryLimitExceeded
	}

	cr := &domain.CaseResult{
		TestCase:   tc.Index,
		Result:     res.Result,
		CPUTimeMs:  res.CPUTimeMs,
		RealTimeMs: res.RealTimeMs,
		Memory:     res.MemoryBytes,
		ExitCode:   res.ExitCode,
		Signal:     res.Signal,
	}

	switch {
	case res.Result != domain.ResultSuccess:
		cr.Verdict = domain.VerdictFor(res.Result)
	case req.SPJ != nil:
		cr.Verdict, err = e.runSPJ(ctx, req, lim, tc, inPath, res.Stdout)
		if err != nil {
			return nil, "", err
		}
	case Compare([]byte(res.Stdout), tc.Expected):
		cr.Verdict = domain.VerdictAccepted
	default:
		cr.Verdict = domain.VerdictWrongAnswer
	}

	return cr, res.Stdout, nil
}

func (e *Engine) runSPJ(ctx context.Context, req *RunRequest, lim limits, tc domain.TestCase, inPath, stdout string) (domain.Verdict, error) {
	outPath := filepath.Join(req.WorkDir, fmt.Sprintf("%d.out", tc.Index))
	ansPath := filepath.Join(req.WorkDir, fmt.Sprintf("%d.ans", tc.Index))
	if err := os.WriteFile(outPath, []byte(stdout), 0o644); err != nil {
		return "", domain.WrapError(domain.KindWorkspaceIOError, err)
	}
	if err := os.WriteFile(ansPath, tc.Expected, 0o644); err != nil {
		return "", domain.WrapError(domain.KindWorkspaceIOError, err)
	}

	args, err := cmdline.Build(req.SPJ.Config.Command, map[string]string{
		"exe_path":           req.SPJ.ExePath,
		"exe_dir":            filepath.Dir(req.SPJ.ExePath),
		"in_file_path":       inPath,
		"user_out_file_path": outPath,
		"ans_file_path":      ansPath,
	})
	if err != nil {
		return "", domain.NewError(domain.KindInvalidRequest, "spj command: %v", err)
	}

	spjCPU := lim.cpu * spjCPUMultiplier
	res, err := e.sb.Execute(ctx, &domain.ExecRequest{
		SubmissionID:   req.SubmissionID,
		ExePath:        args[0],
		Args:           args[1:],
		Env:            req.SPJ.Config.Env,
		WorkDir:        req.WorkDir,
		StdinPath:      inPath,
		MaxCPUTimeMs:   spjCPU,
		MaxRealTimeMs:  spjCPU * realTimeMultiplier,
		MaxMemoryBytes: spjMaxMemory,
		SeccompRule:    req.SPJ.Config.SeccompRule,
	})
	if err != nil {
		e.logger.Error("SPJ execution failed",
			zap.String("submission_id", req.SubmissionID),
			zap.Int("test_case", tc.Index),
			zap.Error(err),
		)
		return domain.VerdictSystemError, nil
	}

	switch {
	case res.Result == domain.ResultSuccess && res.ExitCode == 0:
		return domain.VerdictAccepted, nil
	case res.Result == domain.ResultRuntimeError && res.Signal == 0 && res.ExitCode != 0:
		return domain.VerdictWrongAnswer, nil
	default:
		e.logger.Warn("SPJ did not finish cleanly",
			zap.String("submission_id", req.SubmissionID),
			zap.Int("test_case", tc.Index),
			zap.String("result", string(res.Result)),
			zap.Int("exit_code", res.ExitCode),
			zap.Int("signal", res.Signal),
		)
		return domain.VerdictSystemError, nil
	}
}

// Aggregate derives the summary from per-case results. The final verdict is
// the first non-accepted one in index order.
func Aggregate(results []domain.CaseResult) domain.JudgeSummary {
	s := domain.JudgeSummary{Verdict: domain.VerdictAccepted, Total: len(results)}
	verdictSet := false
	for _, r := range results {
		if r.Verdict == domain.VerdictAccepted {
			s.Passed++
		} else if !verdictSet {
			s.Verdict = r.Verdict
			verdictSet = true
		}
		s.MaxCPUTimeMs = max(s.MaxCPUTimeMs, r.CPUTimeMs)
		s.MaxRealTimeMs = max(s.MaxRealTimeMs, r.RealTimeMs)
		s.MaxMemoryBytes = max(s.MaxMemoryBytes, r.Memory)
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
