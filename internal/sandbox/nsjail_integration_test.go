//go:build integration

package sandbox

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
)

// ──────────────────────────────────────────────────────
// Integration tests: require nsjail installed
// Run with: go test -tags integration -v ./internal/sandbox/
// ──────────────────────────────────────────────────────

func skipIfNoNsjail(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("nsjail"); err != nil {
		t.Skip("nsjail not found in PATH: skipping integration test")
	}
}

func skipIfNotRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("must run as root for nsjail namespace creation: skipping integration test")
	}
}

func newIntegrationSandbox(t *testing.T) *Nsjail {
	t.Helper()
	skipIfNoNsjail(t)
	skipIfNotRoot(t)

	logger, _ := zap.NewDevelopment()

	nsjailPath, _ := exec.LookPath("nsjail")
	configDir := os.Getenv("WORKER_SANDBOX_CONFIG_DIR")
	if configDir == "" {
		configDir = "../../sandbox/nsjail"
	}

	return NewNsjail(NsjailOptions{
		Path:         nsjailPath,
		ConfigDir:    configDir,
		UID:          65534,
		GID:          65534,
		MaxProcesses: 64,
	}, logger)
}

func TestIntegration_Echo(t *testing.T) {
	sb := newIntegrationSandbox(t)
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o777); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res, err := sb.Execute(ctx, &domain.ExecRequest{
		ExePath:        "/bin/echo",
		Args:           []string{"hello"},
		WorkDir:        dir,
		MaxCPUTimeMs:   1000,
		MaxRealTimeMs:  3000,
		MaxMemoryBytes: 128 << 20,
	})
	if err != nil {
		t.Fatalf("execution error: %v", err)
	}
	if res.Result != domain.ResultSuccess {
		t.Fatalf("expected SUCCESS, got %s (stderr %q)", res.Result, res.Stderr)
	}
	if res.Stdout != "hello\n" {
		t.Errorf("unexpected stdout %q", res.Stdout)
	}
}

func TestIntegration_CPUBusyLoop(t *testing.T) {
	sb := newIntegrationSandbox(t)
	dir := t.TempDir()

	res, err := sb.Execute(context.Background(), &domain.ExecRequest{
		ExePath:        "/bin/sh",
		Args:           []string{"-c", "while :; do :; done"},
		WorkDir:        dir,
		MaxCPUTimeMs:   1,
		MaxRealTimeMs:  3,
		MaxMemoryBytes: 128 << 20,
	})
	if err != nil {
		t.Fatalf("execution error: %v", err)
	}
	if res.Result != domain.ResultCPUTimeLimitExceeded && res.Result != domain.ResultRealTimeLimitExceeded {
		t.Errorf("expected a time limit verdict, got %s", res.Result)
	}
}

func TestIntegration_Version(t *testing.T) {
	sb := newIntegrationSandbox(t)
	if v := sb.Version(); v == "" || v == "unknown" {
		t.Errorf("expected nsjail version, got %q", v)
	}
}
