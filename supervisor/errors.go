package supervisor

import (
	"fmt"

	"github.com/teranos/warden/errors"
)

// LaunchError is fatal: the executable or environment itself is broken.
// It is never retried — a setup defect is not a runtime crash.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %q: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// TimeoutError indicates the child neither became reachable nor exited within
// the startup budget. The child is presumed stuck, not crashed: the caller
// force-terminates and retries instead of feeding the breaker.
type TimeoutError struct {
	Port    int
	Timeout string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("gateway not reachable on port %d within %s", e.Port, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return errors.ErrTimeout }

// ProcessExitError carries the exit code of a child that died before becoming
// reachable, plus whatever diagnosis is available: the persisted error
// artifact and the captured stderr tail. This is what turns a silent crash
// into an immediately diagnosable failure.
type ProcessExitError struct {
	ExitCode int
	Artifact *Artifact // nil when no artifact was written
	Stderr   string    // bounded tail, may be empty
}

func (e *ProcessExitError) Error() string {
	msg := fmt.Sprintf("gateway exited with code %d before becoming reachable", e.ExitCode)
	if e.Artifact != nil {
		msg += fmt.Sprintf(" (%s: %s)", e.Artifact.Error, e.Artifact.Message)
	}
	return msg
}

// BreakerOpenError is terminal: the crash-rate circuit breaker opened and the
// restart loop stopped. The persisted artifact is the source of truth for why.
type BreakerOpenError struct {
	CrashCount int
	Artifact   *Artifact
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open after %d rapid crashes", e.CrashCount)
}
