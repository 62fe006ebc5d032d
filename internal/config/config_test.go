package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
)

func TestLoad_RequiresToken(t *testing.T) {
	t.Setenv("JUDGE_TOKEN", "")

	_, err := Load()
	assert.ErrorIs(t, err, domain.ErrMissingToken)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JUDGE_TOKEN", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Judge.Token)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, int64(16<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, runtime.NumCPU(), cfg.Judge.PoolSize)
	assert.Equal(t, time.Minute, cfg.Judge.SignatureWindow)
	assert.Equal(t, "/judger/run", cfg.Workspace.Base)
	assert.Equal(t, "retain", cfg.Workspace.Retention)
	assert.Equal(t, 24*time.Hour, cfg.Workspace.MaxAge)
	assert.Equal(t, 65534, cfg.Sandbox.RunUID)
	assert.Empty(t, cfg.Redis.URL)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("JUDGE_TOKEN", "secret")
	t.Setenv("API_PORT", "9000")
	t.Setenv("SIGNATURE_WINDOW", "5s")
	t.Setenv("WORKSPACE_RETENTION", "cleanup")
	t.Setenv("JUDGE_POOL_SIZE", "3")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Judge.SignatureWindow)
	assert.Equal(t, "cleanup", cfg.Workspace.Retention)
	assert.Equal(t, 3, cfg.Judge.PoolSize)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
}

func TestLoad_RejectsUnknownRetention(t *testing.T) {
	t.Setenv("JUDGE_TOKEN", "secret")
	t.Setenv("WORKSPACE_RETENTION", "forever")

	_, err := Load()
	assert.Error(t, err)
}
