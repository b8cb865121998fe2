package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, defaultRPCAddress, cfg.RPCAddress)
	require.Equal(t, defaultDataDir, cfg.DataDir)
	require.FileExists(t, path)

	// Reloading reads the file that was just written.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPCAddress, reloaded.RPCAddress)
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `RPCAddress = ":9000"
DataDir = "/var/lib/lendpool"
RequestsPerMinute = 120.0
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.RPCAddress)
	require.Equal(t, "/var/lib/lendpool", cfg.DataDir)
	require.EqualValues(t, 120, cfg.RequestsPerMinute)
	require.Equal(t, defaultMetricsAddress, cfg.MetricsAddress)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("Mystery = true\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Mystery")
}

func TestEnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	t.Setenv(envRPCAddress, ":7070")
	t.Setenv(envAuthToken, "secret-token")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.RPCAddress)
	require.Equal(t, "secret-token", cfg.AuthToken)
	require.Equal(t, "***", cfg.Sanitized().AuthToken)
}

func TestValidateRejectsNegativeRateLimit(t *testing.T) {
	cfg := &Config{RPCAddress: ":8080", RequestsPerMinute: -1}
	require.Error(t, cfg.Validate())
}
