package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/metrics"
)

const (
	defaultMaxOutputBytes = 16 * 1024 * 1024

	// killGrace is how long past the real-time limit the host waits before
	// killing the whole nsjail process group.
	killGrace = 2 * time.Second

	outputTruncatedMsg = "\n... output truncated ..."
)

var _ Sandbox = (*Nsjail)(nil)

// NsjailOptions configures the nsjail adapter.
type NsjailOptions struct {
	Path           string
	ConfigDir      string
	UID            int
	GID            int
	MaxProcesses   int
	MaxOutputBytes int64
}

// Nsjail runs programs inside an nsjail sandbox.
type Nsjail struct {
	opts   NsjailOptions
	logger *zap.Logger

	versionOnce sync.Once
	version     string
}

// NewNsjail creates a new nsjail adapter.
func NewNsjail(opts NsjailOptions, logger *zap.Logger) *Nsjail {
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = defaultMaxOutputBytes
	}
	return &Nsjail{opts: opts, logger: logger}
}

// Version reports the first line of `nsjail --version`, probed once.
func (n *Nsjail) Version() string {
	n.versionOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		out, err := exec.CommandContext(ctx, n.opts.Path, "--version").CombinedOutput()
		line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
		if err != nil || line == "" {
			n.version = "unknown"
			return
		}
		n.version = line
	})
	return n.version
}

// Execute runs req.ExePath with req.Args in nsjail and classifies the outcome.
func (n *Nsjail) Execute(ctx context.Context, req *domain.ExecRequest) (*domain.ExecutionResult, error) {
	if req.ExePath == "" {
		return nil, errors.New("sandbox: exe path is required")
	}

	var stdin *os.File
	if req.StdinPath != "" {
		f, err := os.Open(req.StdinPath)
		if err != nil {
			return nil, fmt.Errorf("sandbox: open stdin: %w", err)
		}
		defer f.Close()
		stdin = f
	}

	args, err := n.buildArgs(req)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(req.MaxRealTimeMs)*time.Millisecond + killGrace
	runCtx := ctx
	if req.MaxRealTimeMs > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, n.opts.Path, args...)

	// Set up process group for clean termination
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	if stdin != nil {
		cmd.Stdin = stdin
	}

	limit := n.opts.MaxOutputBytes
	if req.MaxOutputBytes > 0 {
		limit = req.MaxOutputBytes
	}
	stdout := &limitedBuffer{limit: int(limit)}
	stderr := &limitedBuffer{limit: int(limit)}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	// nsjail prefixes its log lines with "[I]", "[W]", "[E]", "[F]", "[D]".
	progStderr, nsjailLog := separateNsjailLogs(stderr.String())

	result := &domain.ExecutionResult{
		RealTimeMs: elapsed.Milliseconds(),
		Stdout:     truncateOutput(stdout.String(), stdout.truncated),
		Stderr:     truncateOutput(progStderr, stderr.truncated),
	}

	if cmd.ProcessState != nil {
		if ru, ok := cmd.ProcessState.SysUsage().(*syscall.Rusage); ok && ru != nil {
			result.CPUTimeMs = tvMillis(ru.Utime) + tvMillis(ru.Stime)
			// Maxrss is reported in kilobytes on Linux.
			result.MemoryBytes = int64(ru.Maxrss) * 1024
		}
		result.ExitCode = cmd.ProcessState.ExitCode()
		if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			result.Signal = int(ws.Signal())
		}
	}

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) && runCtx.Err() == nil {
		metrics.SandboxFailures.Inc()
		n.logger.Error("nsjail failed to start",
			zap.String("submission_id", req.SubmissionID),
			zap.String("exe_path", req.ExePath),
			zap.Error(runErr),
		)
		result.Result = domain.ResultSystemError
		result.ExitCode = -1
		result.Stderr = runErr.Error()
		return result, nil
	}

	// nsjail reports a child killed by signal N as exit status 128+N.
	if result.Signal == 0 && result.ExitCode > 128 {
		result.Signal = result.ExitCode - 128
	}

	deadlineHit := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	result.Result = classify(req, result, deadlineHit, nsjailLog)

	n.logger.Debug("nsjail execution completed",
		zap.String("submission_id", req.SubmissionID),
		zap.Duration("elapsed", elapsed),
		zap.Int64("cpu_time_ms", result.CPUTimeMs),
		zap.Int64("memory_bytes", result.MemoryBytes),
		zap.Int("exit_code", result.ExitCode),
		zap.String("result", string(result.Result)),
		zap.String("nsjail_log", nsjailLog),
	)

	return result, nil
}

func (n *Nsjail) buildArgs(req *domain.ExecRequest) ([]string, error) {
	configPath, err := n.configPath(req.SeccompRule)
	if err != nil {
		return nil, err
	}

	args := []string{
		"--config", configPath,
		"--user", strconv.Itoa(n.opts.UID),
		"--group", strconv.Itoa(n.opts.GID),
	}

	if req.WorkDir != "" {
		args = append(args,
			"--bindmount", req.WorkDir+":"+req.WorkDir,
			"--cwd", req.WorkDir,
		)
	}
	// The executable may live outside the workspace (cached special judges).
	if exeDir := filepath.Dir(req.ExePath); filepath.IsAbs(exeDir) && exeDir != req.WorkDir {
		args = append(args, "--bindmount_ro", exeDir+":"+exeDir)
	}

	if req.MaxRealTimeMs > 0 {
		args = append(args, "--time_limit", strconv.FormatInt(ceilSeconds(req.MaxRealTimeMs), 10))
	}
	if req.MaxCPUTimeMs > 0 {
		args = append(args, "--rlimit_cpu", strconv.FormatInt(ceilSeconds(req.MaxCPUTimeMs), 10))
	}
	if req.MaxMemoryBytes > 0 {
		args = append(args, "--cgroup_mem_max", strconv.FormatInt(req.MaxMemoryBytes, 10))
	}

	procs := req.MaxProcesses
	if procs <= 0 {
		procs = n.opts.MaxProcesses
	}
	if procs > 0 {
		args = append(args, "--cgroup_pids_max", strconv.Itoa(procs))
	}

	for _, env := range req.Env {
		args = append(args, "--env", env)
	}

	args = append(args, "--", req.ExePath)
	return append(args, req.Args...), nil
}

// configPath maps a seccomp rule to its jail config, which must be a file
// directly inside ConfigDir.
func (n *Nsjail) configPath(rule string) (string, error) {
	if rule == "" {
		rule = "default"
	}
	name := rule + ".cfg"
	if strings.ContainsAny(rule, `/\`) || !filepath.IsLocal(name) {
		return "", fmt.Errorf("sandbox: seccomp rule %q: %w", rule, domain.ErrUnsafePath)
	}
	return filepath.Join(n.opts.ConfigDir, name), nil
}

// classify orders the checks so that a SIGKILL caused by a time limit is not
// reported as an out-of-memory kill.
func classify(req *domain.ExecRequest, res *domain.ExecutionResult, deadlineHit bool, nsjailLog string) domain.ResultCode {
	switch {
	case req.MaxCPUTimeMs > 0 && (res.CPUTimeMs > req.MaxCPUTimeMs || res.Signal == int(syscall.SIGXCPU)):
		return domain.ResultCPUTimeLimitExceeded
	case deadlineHit || (req.MaxRealTimeMs > 0 && res.RealTimeMs > req.MaxRealTimeMs):
		return domain.ResultRealTimeLimitExceeded
	case req.MaxMemoryBytes > 0 && (res.MemoryBytes > req.MaxMemoryBytes || isOOMKill(res.ExitCode, nsjailLog)):
		return domain.ResultMemoryLimitExceeded
	case res.ExitCode != 0 || res.Signal != 0:
		return domain.ResultRuntimeError
	default:
		return domain.ResultSuccess
	}
}

func tvMillis(tv syscall.Timeval) int64 {
	return int64(tv.Sec)*1000 + int64(tv.Usec)/1000
}

func ceilSeconds(ms int64) int64 {
	return (ms + 999) / 1000
}

// limitedBuffer is a bytes.Buffer that stops accepting writes after a limit.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (lb *limitedBuffer) Write(p []byte) (n int, err error) {
	if lb.truncated {
		return len(p), nil
	}

	remaining := lb.limit - lb.buf.Len()
	if remaining <= 0 {
		lb.truncated = true
		return len(p), nil
	}

	if len(p) > remaining {
		lb.truncated = true
		lb.buf.Write(p[:remaining])
		return len(p), nil
	}

	return lb.buf.Write(p)
}

func (lb *limitedBuffer) String() string {
	return lb.buf.String()
}

func truncateOutput(s string, wasTruncated bool) string {
	if wasTruncated {
		return s + outputTruncatedMsg
	}
	return s
}

// separateNsjailLogs splits nsjail log lines from the program's stderr.
func separateNsjailLogs(rawStderr string) (programStderr, nsjailLogs string) {
	if rawStderr == "" {
		return "", ""
	}

	var progLines, logLines []string
	for _, line := range strings.Split(rawStderr, "\n") {
		if isNsjailLogLine(strings.TrimSpace(line)) {
			logLines = append(logLines, line)
		} else {
			progLines = append(progLines, line)
		}
	}

	return strings.Join(progLines, "\n"), strings.Join(logLines, "\n")
}

func isNsjailLogLine(line string) bool {
	for _, prefix := range []string{"[I]", "[W]", "[E]", "[F]", "[D]"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// isOOMKill reports a cgroup OOM kill: SIGKILL (137) or an nsjail log mention.
func isOOMKill(exitCode int, nsjailLog string) bool {
	if exitCode == 137 {
		return true
	}
	lowerLog := strings.ToLower(nsjailLog)
	return strings.Contains(lowerLog, "oom") ||
		strings.Contains(lowerLog, "memory cgroup") ||
		strings.Contains(lowerLog, "cgroup_mem")
}
