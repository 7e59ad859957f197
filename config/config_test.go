package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yllada/vpn-settings/common"
)

func TestLoadFrom_WritesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "system", cfg.Bus)
	assert.Equal(t, common.ConnmanService, cfg.Service)
	assert.Equal(t, common.TokenDirName, filepath.Base(cfg.TokenDir))
	assert.Equal(t, common.CredentialsDirName, filepath.Base(cfg.CredentialsDir))
	assert.FileExists(t, path)
}

func TestLoadFrom_Validate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")

	data := "bus: tcp\nservice: \"\"\ntoken_dir: /tmp/tokens\nlog_level: loud\nlog_json: true\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "system", cfg.Bus)
	assert.Equal(t, common.ConnmanService, cfg.Service)
	assert.Equal(t, "/tmp/tokens", cfg.TokenDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
}

func TestLoadFrom_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: dark\n"), 0600))

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConfigLoad)
}

func TestSaveTo_RoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Bus = "session"
	cfg.LogLevel = "debug"
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
