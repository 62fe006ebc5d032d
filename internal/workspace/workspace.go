// Package workspace allocates one scratch directory per submission.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/metrics"
)

// Retention decides what Release does with a workspace directory.
type Retention string

const (
	// RetentionRetain keeps the directory for post-hoc inspection.
	RetentionRetain Retention = "retain"
	// RetentionCleanup removes the directory on release.
	RetentionCleanup Retention = "cleanup"
)

// dirMode lets the unprivileged sandbox user write into the workspace.
const dirMode = 0o777

// Options configures a Manager.
type Options struct {
	Base      string
	Retention Retention
	MaxAge    time.Duration
	MaxCount  int
}

// Manager hands out workspaces under a base directory and bounds their growth.
type Manager struct {
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]struct{}

	removeAll func(string) error
}

// NewManager creates the base directory if needed.
func NewManager(opts Options, logger *zap.Logger) (*Manager, error) {
	if opts.Base == "" {
		return nil, errors.New("workspace base directory is required")
	}
	if opts.Retention == "" {
		opts.Retention = RetentionRetain
	}
	if opts.Retention != RetentionRetain && opts.Retention != RetentionCleanup {
		return nil, fmt.Errorf("unknown workspace retention %q", opts.Retention)
	}
	if err := os.MkdirAll(opts.Base, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace base: %w", err)
	}
	return &Manager{
		opts:      opts,
		logger:    logger,
		active:    make(map[string]struct{}),
		removeAll: os.RemoveAll,
	}, nil
}

// Workspace is a directory owned by one submission for one call.
type Workspace struct {
	ID   string
	Path string

	m        *Manager
	released sync.Once
}

// Acquire creates <base>/<submissionID>. The directory must not exist yet.
func (m *Manager) Acquire(submissionID string) (*Workspace, error) {
	if err := domain.CheckIdentifier(submissionID); err != nil {
		return nil, domain.NewError(domain.KindInvalidRequest, "submission_id %q: %v", submissionID, err)
	}

	path := filepath.Join(m.opts.Base, submissionID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.active[submissionID]; busy {
		return nil, conflict(submissionID, fs.ErrExist)
	}
	if err := os.Mkdir(path, dirMode); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, conflict(submissionID, err)
		}
		return nil, domain.WrapError(domain.KindWorkspaceIOError, err)
	}
	// Mkdir is subject to the umask.
	if err := os.Chmod(path, dirMode); err != nil {
		_ = os.Remove(path)
		return nil, domain.WrapError(domain.KindWorkspaceIOError, err)
	}

	m.active[submissionID] = struct{}{}
	return &Workspace{ID: submissionID, Path: path, m: m}, nil
}

func conflict(submissionID string, err error) error {
	return &domain.JudgeError{
		Kind:    domain.KindWorkspaceConflict,
		Message: fmt.Sprintf("workspace for submission %s already exists", submissionID),
		Err:     err,
	}
}

// Release ends the call's ownership. Safe to call more than once.
func (w *Workspace) Release() {
	w.released.Do(func() {
		w.m.mu.Lock()
		delete(w.m.active, w.ID)
		w.m.mu.Unlock()

		if w.m.opts.Retention != RetentionCleanup {
			return
		}
		if err := os.RemoveAll(w.Path); err != nil {
			w.m.logger.Warn("Failed to remove workspace",
				zap.String("submission_id", w.ID),
				zap.Error(err),
			)
		}
	})
}

type entry struct {
	name    string
	modTime time.Time
}

// Sweep removes retained workspaces older than MaxAge, then the oldest ones
// beyond MaxCount. Acquired workspaces are never touched.
// It returns the number of directories removed.
func (m *Manager) Sweep() (int, error) {
	dirEntries, err := os.ReadDir(m.opts.Base)
	if err != nil {
		return 0, fmt.Errorf("read workspace base: %w", err)
	}

	victims := m.claimVictims(dirEntries)

	// Victims stay in active while they are removed, so Acquire reports a
	// conflict for them without waiting on the disk.
	removed := 0
	for _, name := range victims {
		if err := m.removeAll(filepath.Join(m.opts.Base, name)); err != nil {
			m.logger.Warn("Failed to sweep workspace", zap.String("submission_id", name), zap.Error(err))
			continue
		}
		removed++
	}

	m.mu.Lock()
	for _, name := range victims {
		delete(m.active, name)
	}
	m.mu.Unlock()

	if removed > 0 {
		metrics.WorkspacesSwept.Add(float64(removed))
		m.logger.Info("Swept workspaces", zap.Int("removed", removed))
	}
	return removed, nil
}

// claimVictims picks the directories to sweep and marks them active.
func (m *Manager) claimVictims(dirEntries []os.DirEntry) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []entry
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		if _, busy := m.active[de.Name()]; busy {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, entry{name: de.Name(), modTime: info.ModTime()})
	}

	// Oldest first.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.Before(candidates[j].modTime)
	})

	now := time.Now()
	excess := 0
	if m.opts.MaxCount > 0 {
		excess = len(candidates) + len(m.active) - m.opts.MaxCount
	}

	var victims []string
	for i, c := range candidates {
		expired := m.opts.MaxAge > 0 && now.Sub(c.modTime) > m.opts.MaxAge
		overCount := i < excess
		if !expired && !overCount {
			continue
		}
		m.active[c.name] = struct{}{}
		victims = append(victims, c.name)
	}
	return victims
}

// RunJanitor sweeps every interval until ctx is cancelled.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sweep(); err != nil {
				m.logger.Error("Workspace sweep failed", zap.Error(err))
			}
		}
	}
}
