package config

// Config represents the core Warden configuration
type Config struct {
	Gateway    GatewayConfig    `mapstructure:"gateway" toml:"gateway"`
	Supervisor SupervisorConfig `mapstructure:"supervisor" toml:"supervisor"`
	Jobs       JobsConfig       `mapstructure:"jobs" toml:"jobs"`
	Server     ServerConfig     `mapstructure:"server" toml:"server"`
}

// GatewayConfig describes the supervised child service.
// The command line is opaque to Warden and passed through to the launcher unchanged.
type GatewayConfig struct {
	Command string   `mapstructure:"command" toml:"command"`   // full command line, shell-quoted
	Port    int      `mapstructure:"port" toml:"port"`         // TCP port probed for readiness
	WorkDir string   `mapstructure:"work_dir" toml:"work_dir"` // working directory for the child ("" = inherit)
	Env     []string `mapstructure:"env" toml:"env"`           // extra KEY=VALUE pairs appended to the environment
}

// SupervisorConfig configures the restart loop and circuit breaker
type SupervisorConfig struct {
	CrashWindowMs      int    `mapstructure:"crash_window_ms" toml:"crash_window_ms"`             // sliding window for quick-crash counting (default: 30000)
	MaxCrashesInWindow int    `mapstructure:"max_crashes_in_window" toml:"max_crashes_in_window"` // breaker opens at this count (default: 3)
	RestartDelayMs     int    `mapstructure:"restart_delay_ms" toml:"restart_delay_ms"`           // fixed delay between restarts (default: 5000)
	StartupTimeoutMs   int    `mapstructure:"startup_timeout_ms" toml:"startup_timeout_ms"`       // readiness race budget (default: 30000)
	ShutdownGraceMs    int    `mapstructure:"shutdown_grace_ms" toml:"shutdown_grace_ms"`         // SIGTERM-to-SIGKILL grace (default: 10000)
	StateDir           string `mapstructure:"state_dir" toml:"state_dir"`                         // artifact, stderr tail, lease and lock files live here
	StderrTailLines    int    `mapstructure:"stderr_tail_lines" toml:"stderr_tail_lines"`         // bounded stderr capture (default: 200)
}

// JobsConfig configures declarative job reconciliation
type JobsConfig struct {
	DeclaredPath   string `mapstructure:"declared_path" toml:"declared_path"`       // VCS-managed declared job list (JSON array)
	RuntimePath    string `mapstructure:"runtime_path" toml:"runtime_path"`         // persisted runtime job store (JSON)
	DefaultAgentID string `mapstructure:"default_agent_id" toml:"default_agent_id"` // owner for declared jobs without an agent_id
	WatchDeclared  bool   `mapstructure:"watch_declared" toml:"watch_declared"`     // re-reconcile when the declared file changes
}

// ServerConfig configures the status HTTP server
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled" toml:"enabled"`
	Port    int  `mapstructure:"port" toml:"port"`
}
