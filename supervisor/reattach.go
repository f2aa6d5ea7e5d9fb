package supervisor

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// DiscoverRunning looks for a gateway left running by a previous supervision
// attempt: the lease file names the pid, gopsutil confirms it is still alive.
// Returns nil when there is nothing to re-attach to — a stale or missing
// lease is the normal case, not an error.
//
// The returned handle has no exec.Cmd; exit is observed by polling process
// liveness, and the exit code of a re-attached child is unknown (-1).
func DiscoverRunning(stateDir string, log *zap.SugaredLogger) *ProcessHandle {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	data, err := os.ReadFile(filepath.Join(stateDir, leaseFileName))
	if err != nil {
		return nil
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return nil
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil
	}
	running, err := proc.IsRunning()
	if err != nil || !running {
		return nil
	}

	startedAt := time.Now()
	if createMs, err := proc.CreateTime(); err == nil && createMs > 0 {
		startedAt = time.UnixMilli(createMs)
	}

	handle := &ProcessHandle{
		Pid:       pid,
		StartedAt: startedAt,
		done:      make(chan struct{}),
	}

	go watchLiveness(handle, proc)

	log.Infow("Re-attached to running gateway",
		"pid", pid,
		"started_at", startedAt.Format(time.RFC3339))

	return handle
}

// watchLiveness polls a re-attached process until it disappears
func watchLiveness(handle *ProcessHandle, proc *process.Process) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		running, err := proc.IsRunning()
		if err != nil || !running {
			handle.markExited(-1)
			return
		}
	}
}
