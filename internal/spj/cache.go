// Package spj builds special judge binaries once per (test case, version)
// and shares them between submissions.
package spj

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/metrics"
)

// Builder compiles an existing source file into outDir.
type Builder interface {
	CompileSource(ctx context.Context, cfg domain.CompileConfig, srcPath, outDir string) (string, error)
}

// Cache resolves SPJ binaries under <base>/<test_case_id>/.
type Cache struct {
	base    string
	builder Builder
	locker  Locker
	keys    *keyedMutex
	group   singleflight.Group
	logger  *zap.Logger
}

// NewCache creates a cache rooted at the test-case base directory.
// A nil locker means no cross-host coordination.
func NewCache(base string, builder Builder, locker Locker, logger *zap.Logger) *Cache {
	if locker == nil {
		locker = NopLocker{}
	}
	return &Cache{
		base:    base,
		builder: builder,
		locker:  locker,
		keys:    newKeyedMutex(),
		logger:  logger,
	}
}

// Paths returns the deterministic source and binary paths for a key.
func (c *Cache) Paths(testCaseID, version string, cfg domain.CompileConfig) (srcPath, exePath string, err error) {
	if err := domain.CheckIdentifier(testCaseID); err != nil {
		return "", "", domain.NewError(domain.KindInvalidRequest, "test_case_id %q: %v", testCaseID, err)
	}
	if err := domain.CheckIdentifier(version); err != nil {
		return "", "", domain.NewError(domain.KindInvalidRequest, "spj_version %q: %v", version, err)
	}
	cfg = cfg.ForSPJVersion(version)
	if err := cfg.Validate(); err != nil {
		return "", "", err
	}
	if filepath.Clean(cfg.SrcName) == filepath.Clean(cfg.ExeName) {
		return "", "", domain.NewError(domain.KindInvalidRequest, "spj src_name and exe_name must differ")
	}
	dir := filepath.Join(c.base, testCaseID)
	return filepath.Join(dir, cfg.SrcName), filepath.Join(dir, cfg.ExeName), nil
}

// Resolve returns the SPJ binary for (testCaseID, version), seeding the source
// from src and compiling it when the binary is missing. Concurrent callers for
// the same key share one compilation.
func (c *Cache) Resolve(ctx context.Context, testCaseID, version, src string, cfg domain.CompileConfig) (string, error) {
	srcPath, exePath, err := c.Paths(testCaseID, version, cfg)
	if err != nil {
		return "", err
	}

	if isFile(exePath) {
		metrics.SPJCacheLookups.WithLabelValues("hit").Inc()
		return exePath, nil
	}

	key := testCaseID + "/" + version
	_, err, shared := c.group.Do(key, func() (interface{}, error) {
		return nil, c.build(ctx, key, filepath.Join(c.base, testCaseID), cfg.ForSPJVersion(version), src, srcPath, exePath)
	})
	if err != nil {
		metrics.SPJCacheLookups.WithLabelValues("error").Inc()
		return "", err
	}
	if shared {
		c.logger.Debug("Shared SPJ build", zap.String("test_case_id", testCaseID), zap.String("spj_version", version))
	}
	return exePath, nil
}

func (c *Cache) build(ctx context.Context, key, caseDir string, cfg domain.CompileConfig, src, srcPath, exePath string) error {
	unlock := c.keys.Lock(key)
	defer unlock()

	release, err := c.locker.Lock(ctx, key)
	if err != nil {
		return domain.WrapError(domain.KindSystemError, err)
	}
	defer release()

	// Another host may have finished while we waited for the lock.
	if isFile(exePath) {
		metrics.SPJCacheLookups.WithLabelValues("hit").Inc()
		return nil
	}
	metrics.SPJCacheLookups.WithLabelValues("miss").Inc()

	if err := os.MkdirAll(caseDir, 0o755); err != nil {
		return domain.WrapError(domain.KindWorkspaceIOError, err)
	}
	if err := seedSource(srcPath, src); err != nil {
		return domain.WrapError(domain.KindWorkspaceIOError, err)
	}

	tmp, err := os.MkdirTemp(caseDir, ".spj-build-*")
	if err != nil {
		return domain.WrapError(domain.KindWorkspaceIOError, err)
	}
	defer os.RemoveAll(tmp)
	if err := os.Chmod(tmp, 0o777); err != nil {
		return domain.WrapError(domain.KindWorkspaceIOError, err)
	}

	// The sandbox only sees the build directory, so compile a private copy.
	buildSrc := filepath.Join(tmp, cfg.SrcName)
	if err := copyFile(srcPath, buildSrc); err != nil {
		return domain.WrapError(domain.KindWorkspaceIOError, err)
	}

	start := time.Now()
	built, err := c.builder.CompileSource(ctx, cfg, buildSrc, tmp)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.CompileDuration.WithLabelValues("spj", "error").Observe(elapsed)
		if domain.KindOf(err) == domain.KindCompileError {
			c.logger.Info("SPJ compilation failed", zap.String("spj_key", key))
			return &domain.JudgeError{Kind: domain.KindSPJCompileError, Message: domain.MessageOf(err), Err: err}
		}
		return err
	}
	metrics.CompileDuration.WithLabelValues("spj", "ok").Observe(elapsed)

	if err := os.MkdirAll(filepath.Dir(exePath), 0o755); err != nil {
		return domain.WrapError(domain.KindWorkspaceIOError, err)
	}
	if err := os.Chmod(built, 0o755); err != nil {
		return domain.WrapError(domain.KindWorkspaceIOError, err)
	}
	if err := os.Rename(built, exePath); err != nil {
		return domain.WrapError(domain.KindWorkspaceIOError, fmt.Errorf("publish spj binary: %w", err))
	}

	c.logger.Info("SPJ compiled", zap.String("spj_key", key), zap.String("exe_path", exePath))
	return nil
}

// seedSource writes src to path unless a source is already there.
func seedSource(path, src string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".spj-src-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(src); err != nil {
		f.Close()
		return err
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func copyFile(from, to string) error {
	data, err := os.ReadFile(from)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	return os.WriteFile(to, data, 0o644)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
