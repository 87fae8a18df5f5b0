// Package config tests for configuration loading and validation.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bodyshop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoadDefaults verifies defaults apply with no file present.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultListenAddr, cfg.Central.ListenAddr)
	assert.Equal(t, DefaultPageSizeDefault, cfg.Central.PageSizeDefault)
	assert.Equal(t, DefaultPageSizeMax, cfg.Central.PageSizeMax)
	assert.Equal(t, DefaultSyncInterval, cfg.Store.SyncInterval.Std())
	assert.Equal(t, DefaultBatchSize, cfg.Store.BatchSize)
	assert.Equal(t, DefaultRetentionWindow, cfg.Store.RetentionWindow.Std())
}

// TestLoadFile verifies YAML values override defaults.
func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
central:
  listen_addr: ":9000"
  jwt_secret: topsecret
  token_ttl: 1h
  page_size_default: 50
  page_size_max: 100
store:
  central_url: http://central.example:9000
  machine_key: key-123
  sync_interval: 30s
  batch_size: 25
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9000", cfg.Central.ListenAddr)
	assert.Equal(t, "topsecret", cfg.Central.JWTSecret)
	assert.Equal(t, time.Hour, cfg.Central.TokenTTL.Std())
	assert.Equal(t, 50, cfg.Central.PageSizeDefault)
	assert.Equal(t, "http://central.example:9000", cfg.Store.CentralURL)
	assert.Equal(t, "key-123", cfg.Store.MachineKey)
	assert.Equal(t, 30*time.Second, cfg.Store.SyncInterval.Std())
	assert.Equal(t, 25, cfg.Store.BatchSize)
}

// TestLoadInvalidDuration verifies malformed durations fail loudly.
func TestLoadInvalidDuration(t *testing.T) {
	path := writeConfig(t, `
store:
  sync_interval: not-a-duration
`)
	_, err := Load(path)
	assert.Error(t, err)
}

// TestEnvOverrides verifies environment variables win over the file.
func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
central:
  jwt_secret: from-file
store:
  central_url: http://file.example
`)

	t.Setenv("BODYSHOP_JWT_SECRET", "from-env")
	t.Setenv("BODYSHOP_CENTRAL_URL", "http://env.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Central.JWTSecret)
	assert.Equal(t, "http://env.example", cfg.Store.CentralURL)
}

// TestValidateCentral verifies fail-fast on missing required settings.
func TestValidateCentral(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Error(t, cfg.ValidateCentral(), "missing jwt secret must fail")

	cfg.Central.JWTSecret = "s"
	assert.NoError(t, cfg.ValidateCentral())

	cfg.Central.PageSizeDefault = cfg.Central.PageSizeMax + 1
	assert.Error(t, cfg.ValidateCentral(), "default page size above max must fail")
}

// TestValidateStore verifies a store cannot start without a central URL.
func TestValidateStore(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Error(t, cfg.ValidateStore())

	cfg.Store.CentralURL = "http://central.example"
	assert.NoError(t, cfg.ValidateStore())
}
