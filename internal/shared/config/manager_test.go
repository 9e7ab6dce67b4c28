package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "poolctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestManager_LoadsDefaultsWhenFileMissing(t *testing.T) {
	mgr, err := NewManager(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	defer mgr.Stop()

	cfg := mgr.Get()
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestManager_LoadsAndAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
pools:
  - name: primary
    driver: sqlite3
    dsn: "file::memory:?cache=shared"
    max_active: 20
logging:
  level: debug
`)
	mgr, err := NewManager(path)
	require.NoError(t, err)
	defer mgr.Stop()

	cfg := mgr.Get()
	require.Len(t, cfg.Pools, 1)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 20, cfg.Pools[0].MaxActive)
	assert.Equal(t, 5, cfg.Pools[0].MaxIdle) // default applied
	assert.Equal(t, 20*time.Second, cfg.Pools[0].MaxCheckoutTime)
}

func TestManager_RejectsDuplicatePoolNames(t *testing.T) {
	path := writeConfig(t, `
pools:
  - name: primary
    driver: sqlite3
    dsn: "a"
  - name: primary
    driver: sqlite3
    dsn: "b"
`)
	_, err := NewManager(path)
	assert.Error(t, err)
}

func TestManager_RejectsMaxIdleAboveMaxActive(t *testing.T) {
	path := writeConfig(t, `
pools:
  - name: primary
    driver: sqlite3
    dsn: "a"
    max_active: 2
    max_idle: 5
`)
	_, err := NewManager(path)
	assert.Error(t, err)
}

func TestManager_OnChangeFiresAfterReload(t *testing.T) {
	path := writeConfig(t, `
pools:
  - name: primary
    driver: sqlite3
    dsn: "a"
`)
	mgr, err := NewManager(path)
	require.NoError(t, err)
	defer mgr.Stop()

	done := make(chan *Config, 1)
	mgr.OnChange(func(cfg *Config) { done <- cfg })

	require.NoError(t, os.WriteFile(path, []byte(`
pools:
  - name: primary
    driver: sqlite3
    dsn: "a"
    max_active: 99
`), 0644))

	select {
	case cfg := <-done:
		assert.Equal(t, 99, cfg.Pools[0].MaxActive)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for config reload callback")
	}
}
