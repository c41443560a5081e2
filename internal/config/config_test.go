package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.API.Addr)
	assert.Equal(t, "default", cfg.Queue.Name)
	assert.Equal(t, 30*time.Minute, cfg.Queue.TaskTimeout)
	assert.Equal(t, "Pixelgrade_Images.zip", cfg.Export.ArchiveLabel)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Database.DSN)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("EXPORT_URL_EXPIRY", "2h")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_CAPACITY", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis:6380", cfg.Queue.RedisAddr)
	assert.True(t, cfg.Storage.UseSSL)
	assert.Equal(t, 2*time.Hour, cfg.Export.URLExpiry)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 10, cfg.RateLimit.Capacity)
}

func TestLoadRejectsInvalidRateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_CAPACITY", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestFromViperHonorsOverrides(t *testing.T) {
	v, err := NewViper()
	require.NoError(t, err)
	v.Set("export.archive_label", "holiday.zip")
	v.Set("queue.redis_db", 3)

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "holiday.zip", cfg.Export.ArchiveLabel)
	assert.Equal(t, 3, cfg.Queue.RedisDB)
	assert.Equal(t, cfg.Queue.RedisAddr, cfg.Queue.RedisClientOpt().Addr)
}
