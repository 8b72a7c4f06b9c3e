package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfigCoversRegistry(t *testing.T) {
	cfg := GetDefaultConfig()
	for _, lang := range []string{"rust", "go", "python", "typescript", "javascript"} {
		sc, ok := cfg.Servers[lang]
		require.True(t, ok, "missing default for %s", lang)
		assert.NotEmpty(t, sc.Command)
	}
	assert.Equal(t, "gopls", cfg.Servers["go"].Command)
	assert.Equal(t, []string{"--stdio"}, cfg.Servers["typescript"].Args)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.NotZero(t, cfg.Port)
}

func TestLoadConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	original := &Config{
		Port: 9400,
		Servers: map[string]*ServerConfig{
			"rust": {
				Command: "rust-analyzer",
				Env:     map[string]string{"RA_LOG": "info"},
			},
		},
	}
	require.NoError(t, SaveConfig(original, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9400, loaded.Port)
	assert.Equal(t, "127.0.0.1", loaded.Host)
	assert.Equal(t, "rust-analyzer", loaded.Servers["rust"].Command)
	assert.Equal(t, "info", loaded.Servers["rust"].Env["RA_LOG"])
}

func TestLoadConfigRejectsMissingCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servers:\n  go:\n    args: [serve]\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "command is required")
}

func TestLoadConfigRejectsMissingServers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9300\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestServerConfigForFallsBackToRegistry(t *testing.T) {
	cfg := &Config{Servers: map[string]*ServerConfig{}}

	sc, ok := cfg.ServerConfigFor("go")
	require.True(t, ok)
	assert.Equal(t, "gopls", sc.Command)

	_, ok = cfg.ServerConfigFor("cobol")
	assert.False(t, ok)
}

func TestServerConfigForPrefersExplicitEntry(t *testing.T) {
	cfg := &Config{Servers: map[string]*ServerConfig{
		"go": {Command: "/opt/tools/gopls", Args: []string{"serve"}},
	}}

	sc, ok := cfg.ServerConfigFor("go")
	require.True(t, ok)
	assert.Equal(t, "/opt/tools/gopls", sc.Command)
}
