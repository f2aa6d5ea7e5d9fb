package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/warden/errors"
)

// defaultFileConfig is the shape written by WriteDefault. TOML tags mirror the
// mapstructure keys so a generated file round-trips through Load.
type defaultFileConfig struct {
	Gateway struct {
		Command string `toml:"command"`
		Port    int    `toml:"port"`
	} `toml:"gateway"`
	Supervisor struct {
		CrashWindowMs      int    `toml:"crash_window_ms"`
		MaxCrashesInWindow int    `toml:"max_crashes_in_window"`
		RestartDelayMs     int    `toml:"restart_delay_ms"`
		StartupTimeoutMs   int    `toml:"startup_timeout_ms"`
		StateDir           string `toml:"state_dir"`
	} `toml:"supervisor"`
	Jobs struct {
		DeclaredPath   string `toml:"declared_path"`
		RuntimePath    string `toml:"runtime_path"`
		DefaultAgentID string `toml:"default_agent_id"`
	} `toml:"jobs"`
	Server struct {
		Enabled bool `toml:"enabled"`
		Port    int  `toml:"port"`
	} `toml:"server"`
}

// WriteDefault writes a starter config file with commented defaults to path.
// Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Newf("config file already exists: %s", path)
	}

	stateDir := DefaultStateDir()

	var cfg defaultFileConfig
	cfg.Gateway.Command = "gateway --port 18789"
	cfg.Gateway.Port = 18789
	cfg.Supervisor.CrashWindowMs = 30000
	cfg.Supervisor.MaxCrashesInWindow = 3
	cfg.Supervisor.RestartDelayMs = 5000
	cfg.Supervisor.StartupTimeoutMs = 30000
	cfg.Supervisor.StateDir = stateDir
	cfg.Jobs.DeclaredPath = filepath.Join(stateDir, "jobs.declared.json")
	cfg.Jobs.RuntimePath = filepath.Join(stateDir, "jobs.runtime.json")
	cfg.Jobs.DefaultAgentID = "main"
	cfg.Server.Enabled = true
	cfg.Server.Port = 18790

	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal default config")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			return errors.Wrapf(err, "failed to create config directory %s", dir)
		}
	}

	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write config file %s", path)
	}

	return nil
}
