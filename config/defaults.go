package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Default file permissions for warden-owned directories and files
const (
	DefaultDirPermissions  = 0o750
	DefaultFilePermissions = 0o644
)

// DefaultStateDir returns the default location for supervisor state files
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".warden"
	}
	return filepath.Join(home, ".warden")
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	stateDir := DefaultStateDir()

	// Gateway defaults
	v.SetDefault("gateway.port", 18789)
	v.SetDefault("gateway.work_dir", "")

	// Supervisor defaults
	v.SetDefault("supervisor.crash_window_ms", 30000)
	v.SetDefault("supervisor.max_crashes_in_window", 3)
	v.SetDefault("supervisor.restart_delay_ms", 5000)
	v.SetDefault("supervisor.startup_timeout_ms", 30000)
	v.SetDefault("supervisor.shutdown_grace_ms", 10000)
	v.SetDefault("supervisor.state_dir", stateDir)
	v.SetDefault("supervisor.stderr_tail_lines", 200)

	// Jobs defaults
	v.SetDefault("jobs.declared_path", filepath.Join(stateDir, "jobs.declared.json"))
	v.SetDefault("jobs.runtime_path", filepath.Join(stateDir, "jobs.runtime.json"))
	v.SetDefault("jobs.default_agent_id", "main")
	v.SetDefault("jobs.watch_declared", false)

	// Status server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 18790)
}
