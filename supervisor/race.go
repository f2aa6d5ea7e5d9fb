package supervisor

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/warden/errors"
)

// RaceOutcome is the single verdict of a startup race
type RaceOutcome struct {
	Ready    bool // port accepted a TCP connection
	ExitCode int  // valid when Ready is false
}

// StartupRace resolves gateway startup without waiting out the full timeout
// when the child crashes instead of becoming reachable. It concurrently
// awaits "port became reachable" and "process exited" and returns whichever
// settles first; the losing wait is abandoned.
//
// Reachability means the port accepts a TCP connection, not that the
// application layer responds.
type StartupRace struct {
	Port          int
	Timeout       time.Duration
	ProbeInterval time.Duration
	Logger        *zap.SugaredLogger
}

// NewStartupRace creates a race detector for the given port and budget
func NewStartupRace(port int, timeout time.Duration, log *zap.SugaredLogger) *StartupRace {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &StartupRace{
		Port:          port,
		Timeout:       timeout,
		ProbeInterval: 250 * time.Millisecond,
		Logger:        log,
	}
}

// Wait races readiness against exit. Exactly one verdict is produced:
//
//   - the port accepts a connection first → (Ready: true, nil)
//   - the process exits first → (ExitCode, nil); the caller consults the
//     error artifact and stderr tail to explain why
//   - neither settles inside the budget → *TimeoutError; the child is
//     presumed stuck, the caller force-terminates and retries
//
// A cancelled context resolves the race as shutdown, not as a verdict.
func (r *StartupRace) Wait(ctx context.Context, handle *ProcessHandle) (RaceOutcome, error) {
	probeCtx, cancelProbe := context.WithCancel(ctx)
	defer cancelProbe()

	ready := make(chan struct{})
	go r.probe(probeCtx, ready)

	timeout := time.NewTimer(r.Timeout)
	defer timeout.Stop()

	select {
	case <-ready:
		r.Logger.Infow("Gateway reachable", "port", r.Port)
		return RaceOutcome{Ready: true}, nil

	case <-handle.Done():
		code := handle.ExitCode()
		r.Logger.Warnw("Gateway exited before becoming reachable",
			"pid", handle.Pid,
			"exit_code", code)
		return RaceOutcome{ExitCode: code}, nil

	case <-timeout.C:
		return RaceOutcome{}, &TimeoutError{Port: r.Port, Timeout: r.Timeout.String()}

	case <-ctx.Done():
		return RaceOutcome{}, errors.Wrap(errors.ErrShutdown, "startup race abandoned")
	}
}

// probe dials the port until it accepts a connection or the context ends
func (r *StartupRace) probe(ctx context.Context, ready chan<- struct{}) {
	addr := fmt.Sprintf("127.0.0.1:%d", r.Port)
	ticker := time.NewTicker(r.ProbeInterval)
	defer ticker.Stop()

	for {
		conn, err := net.DialTimeout("tcp", addr, r.ProbeInterval)
		if err == nil {
			conn.Close()
			close(ready)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
