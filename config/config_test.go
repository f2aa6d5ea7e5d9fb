package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warden.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[gateway]
command = "gateway --port 9000"
port = 9000
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "gateway --port 9000", cfg.Gateway.Command)
	assert.Equal(t, 9000, cfg.Gateway.Port)

	// Unset sections fall back to defaults
	assert.Equal(t, 30000, cfg.Supervisor.CrashWindowMs)
	assert.Equal(t, 3, cfg.Supervisor.MaxCrashesInWindow)
	assert.Equal(t, 5000, cfg.Supervisor.RestartDelayMs)
	assert.Equal(t, 30000, cfg.Supervisor.StartupTimeoutMs)
	assert.Equal(t, 200, cfg.Supervisor.StderrTailLines)
	assert.Equal(t, 18790, cfg.Server.Port)
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[supervisor]
crash_window_ms = 60000
max_crashes_in_window = 5
state_dir = "/var/lib/warden"

[jobs]
declared_path = "/etc/warden/jobs.json"
default_agent_id = "ops"
watch_declared = true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 60000, cfg.Supervisor.CrashWindowMs)
	assert.Equal(t, 5, cfg.Supervisor.MaxCrashesInWindow)
	assert.Equal(t, "/var/lib/warden", cfg.Supervisor.StateDir)
	assert.Equal(t, "/etc/warden/jobs.json", cfg.Jobs.DeclaredPath)
	assert.Equal(t, "ops", cfg.Jobs.DefaultAgentID)
	assert.True(t, cfg.Jobs.WatchDeclared)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoadFromFileMalformed(t *testing.T) {
	path := writeConfig(t, `[gateway` + "\n")

	_, err := LoadFromFile(path)
	require.Error(t, err)
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.toml")
	require.NoError(t, WriteDefault(path))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Gateway.Command)
	assert.Equal(t, 18789, cfg.Gateway.Port)
	assert.Equal(t, 3, cfg.Supervisor.MaxCrashesInWindow)
	assert.True(t, cfg.Server.Enabled)
}

func TestWriteDefaultRefusesOverwrite(t *testing.T) {
	path := writeConfig(t, "# operator-managed\n")

	err := WriteDefault(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
