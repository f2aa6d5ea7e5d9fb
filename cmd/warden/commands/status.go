package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/warden/config"
	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/supervisor"
)

// StatusCmd shows supervisor state from the state directory
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show supervisor state and any startup error",
	Long: `Inspect Warden's on-disk state: the persisted startup error artifact,
the gateway lease, and whether the leased process is still running.

Reads only the state directory; works whether or not warden run is active.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}
		stateDir := cfg.Supervisor.StateDir
		if stateDir == "" {
			stateDir = config.DefaultStateDir()
		}

		artifacts := supervisor.NewArtifactStore(stateDir)
		artifact, err := artifacts.Read()
		if err != nil {
			return err
		}

		handle := supervisor.DiscoverRunning(stateDir, logger.Logger)

		if jsonOutput {
			payload := map[string]interface{}{
				"stateDir": stateDir,
				"running":  handle != nil,
			}
			if handle != nil {
				payload["pid"] = handle.Pid
				payload["startedAt"] = handle.StartedAt
			}
			if artifact != nil {
				payload["startupError"] = artifact
			}
			out, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return errors.Wrap(err, "failed to marshal status")
			}
			fmt.Println(string(out))
			return nil
		}

		if handle != nil {
			pterm.Success.Printfln("Gateway running (pid %d, started %s)",
				handle.Pid, handle.StartedAt.Format("2006-01-02 15:04:05"))
		} else {
			pterm.Info.Println("Gateway not running")
		}

		if artifact == nil {
			pterm.Info.Println("No startup error recorded")
			return nil
		}

		pterm.Error.Printfln("Startup error: %s", artifact.Error)
		pterm.Println("  " + artifact.Message)
		if artifact.CrashCount != nil {
			pterm.Printfln("  Crashes: %d", *artifact.CrashCount)
		}
		if artifact.ExitCode != nil {
			pterm.Printfln("  Last exit code: %d", *artifact.ExitCode)
		}
		if artifact.Stderr != "" {
			pterm.Println("  Last stderr:")
			pterm.Println(pterm.Gray(artifact.Stderr))
		}
		pterm.Printfln("  Recorded: %s", artifact.Timestamp)
		return nil
	},
}

func init() {
	StatusCmd.Flags().BoolP("json", "j", false, "Output status as JSON")
}
