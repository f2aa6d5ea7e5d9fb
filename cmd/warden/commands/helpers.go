package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/warden/config"
	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/schedule"
)

// loadConfig resolves configuration for a command, honoring --config
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// reconcileJobs runs one declared-into-runtime merge. A missing declared file
// skips the merge entirely; runtime state is then left untouched. The save is
// suppressed when dryRun is set.
func reconcileJobs(cfg *config.Config, dryRun bool) (*schedule.Summary, error) {
	store := schedule.NewStore(cfg.Jobs.DeclaredPath, cfg.Jobs.RuntimePath, logger.Logger)

	declared, err := store.LoadDeclared()
	if err != nil {
		return nil, err
	}
	if declared == nil {
		logger.Debugw("No declared job list, skipping reconciliation",
			"path", cfg.Jobs.DeclaredPath)
		return nil, nil
	}

	runtime, err := store.LoadRuntime()
	if err != nil {
		return nil, err
	}

	reconciler := &schedule.Reconciler{
		DefaultAgentID: cfg.Jobs.DefaultAgentID,
		Logger:         logger.Logger,
	}
	merged, summary := reconciler.Reconcile(declared, runtime)

	if !dryRun {
		if err := store.SaveRuntime(merged); err != nil {
			return nil, errors.Wrap(err, "failed to persist reconciled job list")
		}
	}

	logger.Infow("Reconciled scheduled jobs",
		"matched", summary.Matched,
		"created", summary.Created,
		"runtime_only", summary.RuntimeOnly,
		"duplicates", summary.Duplicates,
		"dry_run", dryRun)

	return &summary, nil
}
