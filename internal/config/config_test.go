package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mindloom/mindloom/internal/config"
)

func TestLoad_DefaultHostIsLocalhost(t *testing.T) {
	_ = os.Unsetenv("MINDLOOM_HOST")
	cfg := config.Load()
	assert.Equal(t, "127.0.0.1", cfg.Server.Host,
		"Default host must be 127.0.0.1 for security")
}

func TestLoad_CanOverrideHost(t *testing.T) {
	t.Setenv("MINDLOOM_HOST", "0.0.0.0")
	cfg := config.Load()
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"MINDLOOM_PORT", "MINDLOOM_STORAGE_ENGINE", "MINDLOOM_LLM_PROVIDER",
		"MINDLOOM_CACHE_TTL", "MINDLOOM_ASYNC_UPSERTS", "MINDLOOM_LLM_TIMEOUT",
	} {
		_ = os.Unsetenv(key)
	}

	cfg := config.Load()

	assert.Equal(t, 7171, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Engine)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.CacheTTL)
	assert.False(t, cfg.Pipeline.AsyncUpserts)
	assert.Equal(t, 768, cfg.Storage.VectorDim)
	assert.Empty(t, cfg.Security.APIToken)
}

func TestLoad_BackupDefaults(t *testing.T) {
	for _, key := range []string{"MINDLOOM_BACKUP_ENABLED", "MINDLOOM_BACKUP_INTERVAL"} {
		_ = os.Unsetenv(key)
	}

	cfg := config.Load()
	assert.False(t, cfg.Backup.Enabled)
	assert.True(t, cfg.Backup.Verify)
	assert.Equal(t, time.Hour, cfg.Backup.Interval)

	t.Setenv("MINDLOOM_BACKUP_ENABLED", "true")
	t.Setenv("MINDLOOM_BACKUP_INTERVAL", "15m")
	cfg = config.Load()
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Backup.Interval)
}

func TestLoad_IntOverrideAndFallback(t *testing.T) {
	t.Setenv("MINDLOOM_PORT", "9999")
	assert.Equal(t, 9999, config.Load().Server.Port)

	t.Setenv("MINDLOOM_PORT", "not-a-number")
	assert.Equal(t, 7171, config.Load().Server.Port,
		"unparseable values fall back to the default")
}

func TestLoad_BoolOverride(t *testing.T) {
	t.Setenv("MINDLOOM_ASYNC_UPSERTS", "yes")
	assert.True(t, config.Load().Pipeline.AsyncUpserts)

	t.Setenv("MINDLOOM_ASYNC_UPSERTS", "0")
	assert.False(t, config.Load().Pipeline.AsyncUpserts)

	t.Setenv("MINDLOOM_ASYNC_UPSERTS", "maybe")
	assert.False(t, config.Load().Pipeline.AsyncUpserts)
}

func TestLoad_DurationOverrideAndFallback(t *testing.T) {
	t.Setenv("MINDLOOM_CACHE_TTL", "90s")
	assert.Equal(t, 90*time.Second, config.Load().Pipeline.CacheTTL)

	t.Setenv("MINDLOOM_CACHE_TTL", "ninety")
	assert.Equal(t, 5*time.Minute, config.Load().Pipeline.CacheTTL)
}
