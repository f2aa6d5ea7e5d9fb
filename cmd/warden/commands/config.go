package commands

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/teranos/warden/config"
	"github.com/teranos/warden/errors"
)

// ConfigCmd manages Warden configuration
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Warden configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// ConfigShowCmd prints the effective merged configuration
var ConfigShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Print the configuration Warden would run with: defaults, layered
config files and WARDEN_* environment overrides, merged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}

		out, err := toml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to render config")
		}
		fmt.Print(string(out))
		return nil
	},
}

// ConfigInitCmd writes a starter config file
var ConfigInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default warden.toml",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "warden.toml"
		if len(args) == 1 {
			path = args[0]
		}

		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote default configuration to %s\n", path)
		return nil
	},
}

func init() {
	ConfigCmd.AddCommand(ConfigShowCmd)
	ConfigCmd.AddCommand(ConfigInitCmd)
}
