package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "block_ips.json", cfg.Data.BlocklistFile)
	assert.Equal(t, "ai_urls.json", cfg.Data.SourcesFile)
	assert.Equal(t, time.Hour, cfg.Cache.TTL())
	assert.Equal(t, "localhost:6379", cfg.Redis.GetRedisAddr())
	assert.Empty(t, cfg.Refresh.Schedule)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
		"server": {"port": "9000", "environment": "production"},
		"cache": {"ttl_seconds": 600},
		"refresh": {"schedule": "0 */6 * * *"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	t.Setenv("PORT", "9001")
	t.Setenv("UPDATE_SECRET", "s3cret")
	t.Setenv("POSTGRES_DSN", "host=db user=api dbname=blocklist")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Env wins over file
	assert.Equal(t, "9001", cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Environment)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL())
	assert.Equal(t, "0 */6 * * *", cfg.Refresh.Schedule)
	assert.Equal(t, "s3cret", cfg.UpdateSecret)
	assert.Equal(t, "host=db user=api dbname=blocklist", cfg.PostgresDSN)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
