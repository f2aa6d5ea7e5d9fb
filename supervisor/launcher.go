package supervisor

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"
)

// leaseFileName records the pid of the launched child so a restarted
// supervisor can re-attach to a still-running gateway.
const leaseFileName = "gateway.lease"

// Child process status values
const (
	StatusRunning = "running"
	StatusExited  = "exited"
)

// ProcessHandle tracks one launched (or re-attached) gateway child.
// It is not persisted; it lives for the lifetime of the supervising loop.
type ProcessHandle struct {
	Pid       int
	StartedAt time.Time

	cmd  *exec.Cmd // nil for re-attached processes
	done chan struct{}

	mu       sync.Mutex
	exited   bool
	exitCode int
}

// Done returns a channel closed when the child exits
func (h *ProcessHandle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether the child has exited
func (h *ProcessHandle) Exited() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exited
}

// ExitCode returns the child's exit code. Valid once Done is closed;
// -1 when unknown (signal-killed or re-attached).
func (h *ProcessHandle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// Status returns the child status
func (h *ProcessHandle) Status() string {
	if h.Exited() {
		return StatusExited
	}
	return StatusRunning
}

func (h *ProcessHandle) markExited(code int) {
	h.mu.Lock()
	if h.exited {
		h.mu.Unlock()
		return
	}
	h.exited = true
	h.exitCode = code
	h.mu.Unlock()
	close(h.done)
}

// Terminate delivers SIGTERM and waits up to grace for the child to exit,
// then escalates to SIGKILL. Safe to call on an already-exited child.
func (h *ProcessHandle) Terminate(grace time.Duration) {
	if h.Exited() {
		return
	}

	proc, err := os.FindProcess(h.Pid)
	if err != nil {
		return
	}

	proc.Signal(syscall.SIGTERM)

	select {
	case <-h.done:
		return
	case <-time.After(grace):
	}

	proc.Signal(syscall.SIGKILL)

	// The wait goroutine observes the kill and closes done; give it a
	// moment so callers see a settled handle.
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
	}
}

// Launcher starts the gateway child process. The command line and environment
// are opaque: they come from configuration and are passed through unchanged.
type Launcher struct {
	Command  string
	WorkDir  string
	Env      []string
	StateDir string
	Tail     *TailLog
	Logger   *zap.SugaredLogger
}

// CleanStaleLocks removes leftover lock and lease files from a previous,
// possibly killed, gateway instance. Unconditional and idempotent: a stale
// lock must never block the next launch, and correctness does not depend on
// these files being accurate.
func (l *Launcher) CleanStaleLocks() {
	patterns := []string{"*.lock", "*.lease"}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(l.StateDir, pattern))
		if err != nil {
			continue
		}
		for _, path := range matches {
			if err := os.Remove(path); err == nil {
				l.Logger.Debugw("Removed stale lock file", "path", path)
			}
		}
	}
}

// Launch starts the child. Failures here are setup defects (*LaunchError),
// fatal to the supervision loop — a missing executable must not be retried
// silently.
func (l *Launcher) Launch() (*ProcessHandle, error) {
	argv, err := shellquote.Split(l.Command)
	if err != nil {
		return nil, &LaunchError{Command: l.Command, Err: err}
	}
	if len(argv) == 0 {
		return nil, &LaunchError{Command: l.Command, Err: os.ErrInvalid}
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, &LaunchError{Command: l.Command, Err: err}
	}

	cmd := exec.Command(path, argv[1:]...)
	cmd.Dir = l.WorkDir
	cmd.Env = append(os.Environ(), l.Env...)
	cmd.Stdout = os.Stdout
	if l.Tail != nil {
		cmd.Stderr = io.MultiWriter(os.Stderr, l.Tail)
	} else {
		cmd.Stderr = os.Stderr
	}
	// Own process group so termination signals reach the child even if it
	// forks helpers.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Command: l.Command, Err: err}
	}

	handle := &ProcessHandle{
		Pid:       cmd.Process.Pid,
		StartedAt: time.Now(),
		cmd:       cmd,
		done:      make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		code := 0
		if err != nil {
			code = -1
			if exitErr, ok := err.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
			}
		}
		handle.markExited(code)
	}()

	l.writeLease(handle.Pid)

	l.Logger.Infow("Launched gateway",
		"pid", handle.Pid,
		"command", argv[0],
		"args", strings.Join(argv[1:], " "))

	return handle, nil
}

// writeLease records the child pid for re-attach after a supervisor restart.
// Best effort: the lease is advisory.
func (l *Launcher) writeLease(pid int) {
	if err := os.MkdirAll(l.StateDir, 0o750); err != nil {
		return
	}
	path := filepath.Join(l.StateDir, leaseFileName)
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		l.Logger.Warnw("Failed to write gateway lease", "path", path, "error", err)
	}
}
