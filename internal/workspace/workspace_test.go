package workspace_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/workspace"
)

func newManager(t *testing.T, opts workspace.Options) *workspace.Manager {
	t.Helper()
	if opts.Base == "" {
		opts.Base = t.TempDir()
	}
	m, err := workspace.NewManager(opts, zap.NewNop())
	require.NoError(t, err)
	return m
}

func TestAcquire_CreatesWritableDir(t *testing.T) {
	m := newManager(t, workspace.Options{})

	ws, err := m.Acquire("sub-1")
	require.NoError(t, err)
	defer ws.Release()

	info, err := os.Stat(ws.Path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o777), info.Mode().Perm())
}

func TestAcquire_Conflict(t *testing.T) {
	m := newManager(t, workspace.Options{})

	ws, err := m.Acquire("dup")
	require.NoError(t, err)
	defer ws.Release()

	_, err = m.Acquire("dup")
	assert.Equal(t, domain.KindWorkspaceConflict, domain.KindOf(err))
}

func TestAcquire_IOError(t *testing.T) {
	base := t.TempDir()
	m := newManager(t, workspace.Options{Base: base})
	require.NoError(t, os.RemoveAll(base))
	// A regular file where the base directory should be.
	require.NoError(t, os.WriteFile(base, []byte("x"), 0o644))
	t.Cleanup(func() { _ = os.Remove(base) })

	_, err := m.Acquire("sub")
	assert.Equal(t, domain.KindWorkspaceIOError, domain.KindOf(err))
}

func TestAcquire_RejectsUnsafeID(t *testing.T) {
	m := newManager(t, workspace.Options{})
	for _, id := range []string{"../x", "a/b", "", ".."} {
		_, err := m.Acquire(id)
		assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err), "id %q", id)
	}
}

func TestRelease_Retain(t *testing.T) {
	m := newManager(t, workspace.Options{Retention: workspace.RetentionRetain})
	ws, err := m.Acquire("keep")
	require.NoError(t, err)
	ws.Release()
	ws.Release()

	_, err = os.Stat(ws.Path)
	assert.NoError(t, err)
}

func TestRelease_Cleanup(t *testing.T) {
	m := newManager(t, workspace.Options{Retention: workspace.RetentionCleanup})
	ws, err := m.Acquire("gone")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Path, "main.c"), []byte("x"), 0o644))
	ws.Release()

	_, err = os.Stat(ws.Path)
	assert.True(t, os.IsNotExist(err))

	// The id can be reused once cleaned.
	ws, err = m.Acquire("gone")
	require.NoError(t, err)
	ws.Release()
}

func TestNewManager_UnknownRetention(t *testing.T) {
	_, err := workspace.NewManager(workspace.Options{Base: t.TempDir(), Retention: "forever"}, zap.NewNop())
	assert.Error(t, err)
}

func TestSweep_MaxAge(t *testing.T) {
	base := t.TempDir()
	m := newManager(t, workspace.Options{Base: base, MaxAge: time.Hour})

	old, err := m.Acquire("old")
	require.NoError(t, err)
	old.Release()
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old.Path, past, past))

	fresh, err := m.Acquire("fresh")
	require.NoError(t, err)
	fresh.Release()

	removed, err := m.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoDirExists(t, old.Path)
	assert.DirExists(t, fresh.Path)
}

func TestSweep_MaxCountKeepsActive(t *testing.T) {
	base := t.TempDir()
	m := newManager(t, workspace.Options{Base: base, MaxCount: 2})

	busy, err := m.Acquire("busy")
	require.NoError(t, err)
	defer busy.Release()
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(busy.Path, past, past))

	for i, id := range []string{"a", "b", "c"} {
		ws, err := m.Acquire(id)
		require.NoError(t, err)
		ws.Release()
		ts := time.Now().Add(time.Duration(i-10) * time.Minute)
		require.NoError(t, os.Chtimes(ws.Path, ts, ts))
	}

	removed, err := m.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.DirExists(t, busy.Path)
	assert.NoDirExists(t, filepath.Join(base, "a"))
	assert.NoDirExists(t, filepath.Join(base, "b"))
	assert.DirExists(t, filepath.Join(base, "c"))
}

func TestSweep_RemovesWithoutHoldingLock(t *testing.T) {
	base := t.TempDir()
	m := newManager(t, workspace.Options{Base: base, MaxAge: time.Hour})

	old, err := m.Acquire("old")
	require.NoError(t, err)
	old.Release()
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old.Path, past, past))

	started := make(chan struct{})
	unblock := make(chan struct{})
	m.SetRemoveAll(func(path string) error {
		close(started)
		<-unblock
		return os.RemoveAll(path)
	})

	done := make(chan int)
	go func() {
		removed, _ := m.Sweep()
		done <- removed
	}()
	<-started

	// Other submissions proceed while the removal is in flight.
	other, err := m.Acquire("other")
	require.NoError(t, err)
	other.Release()

	_, err = m.Acquire("old")
	assert.Equal(t, domain.KindWorkspaceConflict, domain.KindOf(err))

	close(unblock)
	assert.Equal(t, 1, <-done)
	assert.NoDirExists(t, old.Path)

	again, err := m.Acquire("old")
	require.NoError(t, err)
	again.Release()
}
