package supervisor

import (
	"time"

	"go.uber.org/zap"

	"github.com/teranos/warden/internal/util"
)

// Verdict is the breaker's decision after a child exit
type Verdict int

const (
	// VerdictRestart permits another launch attempt
	VerdictRestart Verdict = iota
	// VerdictOpen halts the restart loop; the artifact explains why
	VerdictOpen
)

// CrashWindow tracks a sliding count of rapid child exits. Reset whenever an
// exit's uptime meets or exceeds the window length.
type CrashWindow struct {
	Count         int
	WindowStartMs int64
}

// CircuitBreaker classifies child exits by uptime: a process that ran at
// least the window length before dying was healthy and merely unlucky (the
// window resets), while repeated quick crashes inside one window indicate a
// persistent configuration problem and open the breaker.
//
// The breaker is a one-shot, monotonically progressing state machine; its
// only external input is the uptime sample of each exit.
type CircuitBreaker struct {
	Window     time.Duration
	MaxCrashes int

	artifacts *ArtifactStore
	logger    *zap.SugaredLogger
	window    CrashWindow
	clock     func() time.Time
}

// NewCircuitBreaker creates a breaker writing its open-artifact to artifacts
func NewCircuitBreaker(window time.Duration, maxCrashes int, artifacts *ArtifactStore, log *zap.SugaredLogger) *CircuitBreaker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CircuitBreaker{
		Window:     window,
		MaxCrashes: maxCrashes,
		artifacts:  artifacts,
		logger:     log,
		clock:      time.Now,
	}
}

// SetClock overrides the breaker's clock (tests only)
func (b *CircuitBreaker) SetClock(clock func() time.Time) {
	b.clock = clock
}

// CrashCount returns the current quick-crash count inside the window
func (b *CircuitBreaker) CrashCount() int {
	return b.window.Count
}

// Classify decides, from the uptime of the just-exited child, whether to
// restart or open. On open it persists the startup error artifact with the
// crash count, the last exit code and the captured stderr tail.
func (b *CircuitBreaker) Classify(uptime time.Duration, exitCode int, stderrTail string) Verdict {
	if uptime >= b.Window {
		// Ran long enough to be considered healthy before dying.
		// A late OOM kill is bad luck, not a boot-time defect.
		if b.window.Count > 0 {
			b.logger.Infow("Gateway ran past the crash window, resetting crash count",
				"uptime", uptime.Round(time.Millisecond),
				"previous_count", b.window.Count)
		}
		b.window = CrashWindow{}
		crashWindowCount.Set(0)
		return VerdictRestart
	}

	nowMs := b.clock().UnixMilli()
	if b.window.Count == 0 || nowMs-b.window.WindowStartMs >= b.Window.Milliseconds() {
		b.window = CrashWindow{Count: 1, WindowStartMs: nowMs}
	} else {
		b.window.Count++
	}

	b.logger.Warnw("Gateway crashed quickly",
		"uptime", uptime.Round(time.Millisecond),
		"exit_code", exitCode,
		"crash_count", b.window.Count,
		"max_crashes", b.MaxCrashes)

	crashesTotal.Inc()
	crashWindowCount.Set(float64(b.window.Count))

	if b.window.Count < b.MaxCrashes {
		return VerdictRestart
	}

	artifact := Artifact{
		Error: ErrorKindBreakerOpen,
		Message: "gateway crashed repeatedly within the crash window; " +
			"not restarting to avoid a crash loop",
		ExitCode:   util.Ptr(exitCode),
		CrashCount: util.Ptr(b.window.Count),
		Stderr:     stderrTail,
	}
	if err := b.artifacts.Write(artifact); err != nil {
		b.logger.Errorw("Failed to persist startup error artifact", "error", err)
	}

	breakerOpenTotal.Inc()

	return VerdictOpen
}
