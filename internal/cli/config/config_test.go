package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://127.0.0.1:8080", cfg.Server)
	assert.Equal(t, "text", cfg.Output)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.APIKey)
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	assert.True(t, filepath.IsAbs(path), "path should be absolute: %s", path)
	assert.Equal(t, "cli.yaml", filepath.Base(path))
	assert.Equal(t, ".kvmesh", filepath.Base(filepath.Dir(path)))
}

func TestLoad_DefaultFileMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server: https://kv.example.com:8443
api_key: from-file
output: json
timeout: 5s
ca_file: /etc/kvmesh/ca.pem
`), 0o600))

	t.Setenv("KVMESH_CLI_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://kv.example.com:8443", cfg.Server)
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "/etc/kvmesh/ca.pem", cfg.CAFile)
	assert.False(t, cfg.Insecure)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cli.yaml")

	cfg := Default()
	cfg.Server = "http://10.0.0.5:8080"
	cfg.APIKey = "kvm_secret"
	cfg.Timeout = 2 * time.Minute
	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
