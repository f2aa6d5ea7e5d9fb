// Package supervisor keeps exactly one gateway child process alive inside the
// container, restarting it on unexpected exit until either a clean shutdown
// is requested or the crash-rate circuit breaker opens.
package supervisor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/internal/util"
)

// Phase is the supervisor's externally visible state
type Phase string

const (
	PhaseIdle     Phase = "idle"     // not yet started
	PhaseStarting Phase = "starting" // child launched, readiness race in flight
	PhaseRunning  Phase = "running"  // child reachable
	PhaseStopped  Phase = "stopped"  // graceful shutdown completed
	PhaseFailed   Phase = "failed"   // breaker open or launch defect; artifact explains
)

// Options configures the restart loop
type Options struct {
	CrashWindow    time.Duration
	MaxCrashes     int
	RestartDelay   time.Duration
	StartupTimeout time.Duration
	ShutdownGrace  time.Duration
}

// Supervisor owns the restart loop. Loop state (crash window, current child)
// lives on the struct, not in package globals, so independent supervisors
// could run in one process.
type Supervisor struct {
	opts      Options
	launcher  *Launcher
	breaker   *CircuitBreaker
	artifacts *ArtifactStore
	tail      *TailLog
	race      *StartupRace
	sink      EventSink
	logger    *zap.SugaredLogger

	mu    sync.Mutex
	phase Phase
	child *ProcessHandle

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// New wires a supervisor from its collaborators
func New(opts Options, launcher *Launcher, breaker *CircuitBreaker, artifacts *ArtifactStore, tail *TailLog, race *StartupRace, sink EventSink, log *zap.SugaredLogger) *Supervisor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Supervisor{
		opts:       opts,
		launcher:   launcher,
		breaker:    breaker,
		artifacts:  artifacts,
		tail:       tail,
		race:       race,
		sink:       sink,
		logger:     log,
		phase:      PhaseIdle,
		shutdownCh: make(chan struct{}),
	}
}

// Phase returns the current supervisor phase
func (s *Supervisor) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Child returns the active child handle, or nil
func (s *Supervisor) Child() *ProcessHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.child
}

func (s *Supervisor) setPhase(phase Phase) {
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()
}

func (s *Supervisor) setChild(handle *ProcessHandle) {
	s.mu.Lock()
	s.child = handle
	s.mu.Unlock()
}

func (s *Supervisor) shutdownRequested() bool {
	select {
	case <-s.shutdownCh:
		return true
	default:
		return false
	}
}

func (s *Supervisor) emit(event Event) {
	if s.sink == nil {
		return
	}
	event.Timestamp = time.Now()
	s.sink.SupervisorEvent(event)
}

// Shutdown requests a graceful stop. Idempotent and safe to call
// concurrently with Run: once requested, no further restart occurs, and an
// active child receives a termination request.
func (s *Supervisor) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
		s.emit(Event{Kind: EventShutdown})

		if child := s.Child(); child != nil {
			s.logger.Infow("Terminating gateway for shutdown", "pid", child.Pid)
			child.Terminate(s.opts.ShutdownGrace)
		}
	})
}

// Run blocks until the supervisor reaches a terminal state.
//
// Each iteration launches the child (or, on the first iteration, re-attaches
// to one left running by a previous attempt), races readiness against exit,
// waits for the exit, classifies it, and either restarts after a fixed delay
// or stops. Terminal outcomes:
//
//   - nil: graceful shutdown
//   - *LaunchError: setup defect, never retried
//   - *BreakerOpenError: persistent failure, artifact written
func (s *Supervisor) Run(ctx context.Context) error {
	// Fresh attempt: yesterday's failure must not shadow today's verdict
	if err := s.artifacts.Clear(); err != nil {
		s.logger.Warnw("Failed to clear startup error artifact", "error", err)
	}

	first := true
	for {
		if s.stopRequested(ctx) {
			s.setPhase(PhaseStopped)
			return nil
		}

		s.setPhase(PhaseStarting)

		var handle *ProcessHandle
		if first {
			first = false
			handle = DiscoverRunning(s.launcher.StateDir, s.logger)
		}
		if handle == nil {
			s.tail.Reset()
			s.launcher.CleanStaleLocks()

			launched, err := s.launcher.Launch()
			if err != nil {
				s.setPhase(PhaseFailed)
				s.writeArtifact(Artifact{
					Error:   ErrorKindLaunchFailed,
					Message: err.Error(),
				})
				return err
			}
			handle = launched
		}

		s.setChild(handle)
		childUp.Set(1)
		s.emit(Event{Kind: EventChildStarted, Pid: handle.Pid})

		outcome, raceErr := s.race.Wait(ctx, handle)
		switch {
		case raceErr == nil && outcome.Ready:
			s.setPhase(PhaseRunning)
			s.emit(Event{Kind: EventChildReady, Pid: handle.Pid})

		case raceErr == nil:
			// Exited before becoming reachable. Attach whatever diagnosis
			// exists so the crash is explained now, not after a timeout.
			artifact, _ := s.artifacts.Read()
			exitErr := &ProcessExitError{
				ExitCode: outcome.ExitCode,
				Artifact: artifact,
				Stderr:   s.tail.Tail(),
			}
			s.logger.Warnw("Gateway startup failed", "error", exitErr.Error())

		default:
			var timeoutErr *TimeoutError
			if errors.As(raceErr, &timeoutErr) {
				// Stuck, not crashed: force a fresh attempt without feeding
				// the breaker.
				s.logger.Warnw("Gateway startup timed out, terminating and retrying",
					"pid", handle.Pid,
					"timeout", s.opts.StartupTimeout)
				handle.Terminate(s.opts.ShutdownGrace)
				s.finishChild()
				continue
			}
			// Shutdown arrived mid-race; the race result is discarded.
			s.stopChild(handle)
			return nil
		}

		// Block until the child exits, or shutdown takes it down
		select {
		case <-handle.Done():
		case <-s.shutdownCh:
			s.stopChild(handle)
			return nil
		case <-ctx.Done():
			s.stopChild(handle)
			return nil
		}

		uptime := time.Since(handle.StartedAt)
		exitCode := handle.ExitCode()
		s.finishChild()
		childUptimeSeconds.Observe(uptime.Seconds())
		s.emit(Event{Kind: EventChildExited, Pid: handle.Pid, ExitCode: util.Ptr(exitCode)})

		s.logger.Infow("Gateway exited",
			"pid", handle.Pid,
			"exit_code", exitCode,
			"uptime", uptime.Round(time.Millisecond))

		if s.stopRequested(ctx) {
			s.setPhase(PhaseStopped)
			return nil
		}

		if s.breaker.Classify(uptime, exitCode, s.tail.Tail()) == VerdictOpen {
			s.setPhase(PhaseFailed)
			artifact, _ := s.artifacts.Read()
			s.emit(Event{Kind: EventBreakerOpen, ExitCode: util.Ptr(exitCode)})
			return &BreakerOpenError{CrashCount: s.breaker.CrashCount(), Artifact: artifact}
		}

		restartsTotal.Inc()
		s.logger.Infow("Restarting gateway", "delay", s.opts.RestartDelay)
		select {
		case <-time.After(s.opts.RestartDelay):
		case <-s.shutdownCh:
			s.setPhase(PhaseStopped)
			return nil
		case <-ctx.Done():
			s.setPhase(PhaseStopped)
			return nil
		}
	}
}

func (s *Supervisor) stopRequested(ctx context.Context) bool {
	return s.shutdownRequested() || ctx.Err() != nil
}

// stopChild terminates the child as part of shutdown and settles state
func (s *Supervisor) stopChild(handle *ProcessHandle) {
	handle.Terminate(s.opts.ShutdownGrace)
	s.finishChild()
	s.setPhase(PhaseStopped)
	s.logger.Infow("Supervisor stopped")
}

// finishChild records the end of a child's life in shared state
func (s *Supervisor) finishChild() {
	childUp.Set(0)
	s.setChild(nil)
	if err := s.tail.Persist(s.launcher.StateDir); err != nil {
		s.logger.Debugw("Failed to persist stderr tail", "error", err)
	}
}

func (s *Supervisor) writeArtifact(artifact Artifact) {
	if err := s.artifacts.Write(artifact); err != nil {
		s.logger.Errorw("Failed to write startup error artifact", "error", err)
	}
}
