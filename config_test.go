package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, "nebuladiary", cfg.DatabaseName)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "*", cfg.CORSOrigins)
	assert.Equal(t, 10*time.Second, cfg.SearchTimeout)
	assert.Equal(t, defaultJikanURL, cfg.JikanURL)
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "redis://localhost:6379/2")
	t.Setenv("DATABASE_NAME", "diary")
	t.Setenv("PORT", "9090")
	t.Setenv("SEARCH_TIMEOUT", "3s")
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/2", cfg.DatabaseURL)
	assert.Equal(t, "diary", cfg.DatabaseName)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.SearchTimeout)
}

func TestLoadConfigFileAndFlags(t *testing.T) {
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7000\nlog_level: debug\ncors_origins: https://app.example\n"), 0o600))

	cmd := newRootCommand()
	require.NoError(t, cmd.Flags().Set("port", "7100"))

	cfg, err := LoadConfig(path, cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Port, "flags win over the file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://app.example", cfg.CORSOrigins)
}

func TestLoadConfigRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "70000")
	_, err := LoadConfig("", nil)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}
