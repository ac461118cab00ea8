package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyprime/alertbar/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, "30s", cfg.Server.ReadTimeout)
	assert.Equal(t, "30s", cfg.Server.WriteTimeout)
	assert.Equal(t, "30s", cfg.Sweep.Lookahead)
	assert.Equal(t, "", cfg.Levels.SeedFile)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.NotEmpty(t, cfg.Storage.Path)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	data := []byte(`
storage:
  path: /tmp/alerts.db
server:
  listen: ":9090"
sweep:
  lookahead: 45s
levels:
  seed_file: /etc/alertbar/levels.yaml
logging:
  level: debug
`)
	err := os.WriteFile(cfgPath, data, 0o644)
	require.NoError(t, err)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/alerts.db", cfg.Storage.Path)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, "45s", cfg.Sweep.Lookahead)
	assert.Equal(t, "/etc/alertbar/levels.yaml", cfg.Levels.SeedFile)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ALERTBAR_LOGGING_LEVEL", "error")
	t.Setenv("ALERTBAR_SERVER_LISTEN", ":7070")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, ":7070", cfg.Server.Listen)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	err := os.WriteFile(cfgPath, []byte("invalid: [yaml"), 0o644)
	require.NoError(t, err)

	_, err = config.Load(cfgPath)
	assert.Error(t, err)
}
