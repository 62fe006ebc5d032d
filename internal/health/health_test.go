package health

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusyPercent(t *testing.T) {
	a := procfs.CPUStat{User: 100, System: 50, Idle: 800, Iowait: 50}
	b := procfs.CPUStat{User: 130, System: 60, Idle: 850, Iowait: 60}
	// 100 ticks elapsed, 60 of them idle.
	assert.Equal(t, 40.0, busyPercent(a, b))

	assert.Equal(t, 0.0, busyPercent(a, a))
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 33.3, round1(33.333))
	assert.Equal(t, 66.7, round1(66.666))
}

func TestProcReporter_Status(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("procfs is only available on linux")
	}
	r, err := NewProcReporter(10*time.Millisecond, func() string { return "nsjail 3.4" })
	require.NoError(t, err)

	st, err := r.Status(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, st.Hostname)
	assert.Equal(t, runtime.NumCPU(), st.CPUCore)
	assert.GreaterOrEqual(t, st.CPU, 0.0)
	assert.LessOrEqual(t, st.CPU, 100.0)
	assert.Greater(t, st.Memory, 0.0)
	assert.Equal(t, "nsjail 3.4", st.JudgerVersion)
}
