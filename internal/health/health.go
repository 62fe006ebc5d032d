// Package health reports host load for the ping call.
package health

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/procfs"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
)

// Reporter returns a snapshot of host health.
type Reporter interface {
	Status(ctx context.Context) (*domain.HostStatus, error)
}

var _ Reporter = (*ProcReporter)(nil)

// ProcReporter reads /proc through procfs.
type ProcReporter struct {
	fs       procfs.FS
	interval time.Duration
	version  func() string
}

// NewProcReporter measures CPU usage over interval. version supplies the
// sandbox version string.
func NewProcReporter(interval time.Duration, version func() string) (*ProcReporter, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &ProcReporter{fs: fs, interval: interval, version: version}, nil
}

func (r *ProcReporter) Status(ctx context.Context) (*domain.HostStatus, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	cpu, err := r.cpuPercent(ctx)
	if err != nil {
		return nil, err
	}

	mem, err := r.memoryPercent()
	if err != nil {
		return nil, err
	}

	return &domain.HostStatus{
		Hostname:      hostname,
		CPU:           cpu,
		CPUCore:       runtime.NumCPU(),
		Memory:        mem,
		JudgerVersion: r.version(),
	}, nil
}

func (r *ProcReporter) cpuPercent(ctx context.Context) (float64, error) {
	before, err := r.fs.Stat()
	if err != nil {
		return 0, fmt.Errorf("read /proc/stat: %w", err)
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(r.interval):
	}

	after, err := r.fs.Stat()
	if err != nil {
		return 0, fmt.Errorf("read /proc/stat: %w", err)
	}
	return busyPercent(before.CPUTotal, after.CPUTotal), nil
}

// busyPercent is the share of non-idle time between two samples.
func busyPercent(a, b procfs.CPUStat) float64 {
	total := cpuTotal(b) - cpuTotal(a)
	if total <= 0 {
		return 0
	}
	idle := (b.Idle + b.Iowait) - (a.Idle + a.Iowait)
	return round1(100 * (total - idle) / total)
}

func cpuTotal(s procfs.CPUStat) float64 {
	return s.User + s.Nice + s.System + s.Idle + s.Iowait + s.IRQ + s.SoftIRQ + s.Steal
}

func (r *ProcReporter) memoryPercent() (float64, error) {
	mi, err := r.fs.Meminfo()
	if err != nil {
		return 0, fmt.Errorf("read /proc/meminfo: %w", err)
	}
	if mi.MemTotal == nil || mi.MemAvailable == nil || *mi.MemTotal == 0 {
		return 0, fmt.Errorf("meminfo is missing MemTotal or MemAvailable")
	}
	used := float64(*mi.MemTotal - *mi.MemAvailable)
	return round1(100 * used / float64(*mi.MemTotal)), nil
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
