package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/cmd/warden/commands"
	"github.com/teranos/warden/logger"
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - container gateway supervisor",
	Long: `Warden - process supervisor for a long-lived gateway service.

Warden launches the gateway child process inside its container, keeps it
alive across crashes, and stops restarting when a crash loop indicates a
persistent defect. Before each start it reconciles the declared scheduled-job
list into the runtime job store.

Available commands:
  run       - Supervise the gateway (reconcile jobs, launch, restart on crash)
  reconcile - Merge the declared job list into the runtime store
  jobs      - List runtime scheduled jobs
  status    - Show supervisor state and any startup error
  config    - Manage Warden configuration
  version   - Show version information

Examples:
  warden run                    # Supervise with config from warden.toml
  warden reconcile --dry-run    # Preview the job merge without writing
  warden status                 # Inspect the last startup error`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs instead of console output")
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (overrides discovery)")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ReconcileCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
