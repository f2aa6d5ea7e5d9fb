package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/config"
	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/schedule"
	"github.com/teranos/warden/server"
	"github.com/teranos/warden/supervisor"
)

// RunCmd supervises the gateway in the foreground
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Supervise the gateway service",
	Long: `Run the gateway under supervision in foreground mode.

Startup sequence:
- Reconcile the declared scheduled-job list into the runtime store
- Re-attach to a gateway left running by a previous supervisor, or launch one
- Race TCP readiness against process exit (neither waits out the other)
- Restart on crash until the crash-rate circuit breaker opens

The first interrupt requests a graceful stop (the gateway gets SIGTERM and
the shutdown grace period); a second interrupt exits immediately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}
		if cfg.Gateway.Command == "" {
			return errors.New("gateway.command is not configured")
		}

		stateDir := cfg.Supervisor.StateDir
		if stateDir == "" {
			stateDir = config.DefaultStateDir()
		}
		artifacts := supervisor.NewArtifactStore(stateDir)

		// Jobs first: the gateway must wake up to an already-reconciled store
		if _, err := reconcileJobs(cfg, false); err != nil {
			if errors.Is(err, schedule.ErrMalformedDeclared) {
				// A malformed declared list is a config defect on par with a
				// broken gateway command; surface it through the same artifact.
				if werr := artifacts.Write(supervisor.Artifact{
					Error:   supervisor.ErrorKindMalformedState,
					Message: err.Error(),
				}); werr != nil {
					logger.Errorw("Failed to write startup error artifact", "error", werr)
				}
			}
			return err
		}

		store := schedule.NewStore(cfg.Jobs.DeclaredPath, cfg.Jobs.RuntimePath, logger.Logger)

		var watcher *schedule.Watcher
		if cfg.Jobs.WatchDeclared && cfg.Jobs.DeclaredPath != "" {
			watcher, err = schedule.NewWatcher(store, func() error {
				_, rerr := reconcileJobs(cfg, false)
				return rerr
			}, logger.Logger)
			if err != nil {
				logger.Warnw("Declared-file watcher unavailable", "error", err)
			} else {
				watcher.Start()
				defer watcher.Stop()
			}
		}

		opts := supervisor.Options{
			CrashWindow:    time.Duration(cfg.Supervisor.CrashWindowMs) * time.Millisecond,
			MaxCrashes:     cfg.Supervisor.MaxCrashesInWindow,
			RestartDelay:   time.Duration(cfg.Supervisor.RestartDelayMs) * time.Millisecond,
			StartupTimeout: time.Duration(cfg.Supervisor.StartupTimeoutMs) * time.Millisecond,
			ShutdownGrace:  time.Duration(cfg.Supervisor.ShutdownGraceMs) * time.Millisecond,
		}

		tail := supervisor.NewTailLog(cfg.Supervisor.StderrTailLines)
		launcher := &supervisor.Launcher{
			Command:  cfg.Gateway.Command,
			WorkDir:  cfg.Gateway.WorkDir,
			Env:      cfg.Gateway.Env,
			StateDir: stateDir,
			Tail:     tail,
			Logger:   logger.Logger,
		}
		breaker := supervisor.NewCircuitBreaker(opts.CrashWindow, opts.MaxCrashes, artifacts, logger.Logger)
		race := supervisor.NewStartupRace(cfg.Gateway.Port, opts.StartupTimeout, logger.Logger)

		var sink supervisor.EventSink
		var statusServer *server.Server
		if cfg.Server.Enabled {
			statusServer = server.New(cfg.Server.Port, nil, breaker, artifacts, store, logger.Logger)
			sink = statusServer
		}

		sup := supervisor.New(opts, launcher, breaker, artifacts, tail, race, sink, logger.Logger)

		if statusServer != nil {
			statusServer.SetSupervisor(sup)
			if err := statusServer.Start(); err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := statusServer.Shutdown(shutdownCtx); err != nil {
					logger.Warnw("Status server shutdown failed", "error", err)
				}
			}()
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigChan
			fmt.Fprintln(os.Stderr, "\nShutting down gracefully (interrupt again to force)...")
			sup.Shutdown()

			<-sigChan
			fmt.Fprintln(os.Stderr, "Forced exit")
			os.Exit(1)
		}()

		logger.Infow("Warden supervising gateway",
			"command", cfg.Gateway.Command,
			"port", cfg.Gateway.Port,
			"state_dir", stateDir)

		if err := sup.Run(ctx); err != nil {
			var breakerErr *supervisor.BreakerOpenError
			if errors.As(err, &breakerErr) {
				fmt.Fprintf(os.Stderr, "\nGateway crashed %d times in quick succession; giving up.\n", breakerErr.CrashCount)
				fmt.Fprintf(os.Stderr, "Details persisted to %s\n", artifacts.Path())
			}
			return err
		}
		return nil
	},
}
