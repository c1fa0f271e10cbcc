package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written on first run")

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "lossy", cfg.Processing.DecodeMode)
	assert.Equal(t, filepath.Join(dir, "data", "temp"), cfg.GetTempDir())
}

func TestLoadConfig_ReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)

	cfg := DefaultConfig()
	cfg.Server.Port = 9100
	cfg.Processing.DuplicateKeyPolicy = "reject"
	cfg.Storage.TempDirectory = "scratch"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, loaded.Server.Port)
	assert.Equal(t, "reject", loaded.Processing.DuplicateKeyPolicy)
	assert.Equal(t, filepath.Join(dir, "scratch"), loaded.GetTempDir())
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	xmlBody := `<?xml version="1.0" encoding="UTF-8"?>
<SamExtractor><Server><Port>7000</Port></Server></SamExtractor>`
	require.NoError(t, os.WriteFile(path, []byte(xmlBody), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "last-write-wins", cfg.Processing.DuplicateKeyPolicy)
	assert.Equal(t, 50, cfg.Processing.PreviewRows)
}

func TestCleanupDurations(t *testing.T) {
	tests := []struct {
		name     string
		interval int
		timeout  int
		wantInt  time.Duration
		wantTO   time.Duration
	}{
		{"configured", 2, 45, 2 * time.Minute, 45 * time.Minute},
		{"zero falls back", 0, 0, 5 * time.Minute, 30 * time.Minute},
		{"negative falls back", -1, -10, 5 * time.Minute, 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Processing.CleanupIntervalMinutes = tt.interval
			cfg.Processing.SessionTimeoutMinutes = tt.timeout

			assert.Equal(t, tt.wantInt, cfg.CleanupInterval())
			assert.Equal(t, tt.wantTO, cfg.SessionTimeout())
		})
	}
}

func TestLoadConfig_ZeroCleanupInterval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	xmlBody := `<?xml version="1.0" encoding="UTF-8"?>
<SamExtractor><Processing><CleanupIntervalMinutes>0</CleanupIntervalMinutes></Processing></SamExtractor>`
	require.NoError(t, os.WriteFile(path, []byte(xmlBody), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Processing.CleanupIntervalMinutes)
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval())
}

func TestLoadConfig_InvalidXML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("<SamExtractor>"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to parse config file"))
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	t.Setenv("PORT", "9999")
	t.Setenv("SAM_TEMP_DIR", "/tmp/sam-scratch")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "/tmp/sam-scratch", cfg.GetTempDir())
	assert.Equal(t, "debug", cfg.Advanced.LogLevel)
	assert.Equal(t, "0.0.0.0:9999", cfg.GetServerAddr())
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.DataDirectory = filepath.Join(dir, "data")
	cfg.Storage.TempDirectory = filepath.Join(dir, "data", "temp")

	require.NoError(t, cfg.EnsureDirectories())

	for _, d := range []string{cfg.Storage.DataDirectory, cfg.Storage.TempDirectory} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
