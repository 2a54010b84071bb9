package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ftpd.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `root_dir = "/srv/ftp"`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":2121", cfg.ListenAddr)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "/srv/ftp", cfg.RootDir)
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
listen_addr = "0.0.0.0:2221"
workers = 16
log_level = "debug"
root_dir = "/srv/ftp"
pasv_port_min = 40000
pasv_port_max = 40100
bandwidth_limit_bytes_per_sec = 1048576
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:2221", cfg.ListenAddr)
	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.EqualValues(t, 1048576, cfg.BandwidthLimit)
}

func TestLoadRejectsMissingRootDir(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `listen_addr = ":2121"`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsZeroWorkers(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
root_dir = "/srv/ftp"
workers = 0
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvertedPasvRange(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
root_dir = "/srv/ftp"
pasv_port_min = 50000
pasv_port_max = 100
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Error(t, err)
}
