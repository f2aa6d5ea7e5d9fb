package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/warden/errors"
)

// ReconcileCmd merges the declared job list into the runtime store
var ReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Merge the declared job list into the runtime store",
	Long: `Reconcile the declared scheduled-job list into the runtime job store.

Jobs are joined by exact name. Matched jobs take their declarative fields
(schedule, sessionTarget, wakeMode, payload) from the declared side while
keeping runtime identity and execution state. Declared-only entries become
new jobs; runtime-only jobs pass through untouched.

The run command performs this merge automatically before launching the
gateway; this command exists for inspection and CI.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}

		summary, err := reconcileJobs(cfg, dryRun)
		if err != nil {
			return err
		}
		if summary == nil {
			pterm.Info.Printfln("No declared job list at %s, nothing to reconcile", cfg.Jobs.DeclaredPath)
			return nil
		}

		if dryRun {
			pterm.Warning.Println("Dry run: runtime store not written")
		}
		pterm.Success.Printfln("Reconciled: %d matched, %d created, %d runtime-only, %d duplicate declared names",
			summary.Matched, summary.Created, summary.RuntimeOnly, summary.Duplicates)
		return nil
	},
}

func init() {
	ReconcileCmd.Flags().Bool("dry-run", false, "Compute the merge without writing the runtime store")
}
