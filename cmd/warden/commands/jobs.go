package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/schedule"
)

// JobsCmd lists runtime scheduled jobs
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List runtime scheduled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}

		store := schedule.NewStore(cfg.Jobs.DeclaredPath, cfg.Jobs.RuntimePath, logger.Logger)
		jobs, err := store.LoadRuntime()
		if err != nil {
			return err
		}

		if jsonOutput {
			out, err := json.MarshalIndent(jobs, "", "  ")
			if err != nil {
				return errors.Wrap(err, "failed to marshal jobs")
			}
			fmt.Println(string(out))
			return nil
		}

		if len(jobs) == 0 {
			pterm.Info.Println("No scheduled jobs")
			return nil
		}

		rows := pterm.TableData{{"ID", "NAME", "AGENT", "SCHEDULE", "ENABLED", "UPDATED"}}
		for _, job := range jobs {
			rows = append(rows, []string{
				job.ID,
				job.Name,
				job.AgentID,
				describeSchedule(job.Schedule),
				fmt.Sprintf("%t", job.Enabled),
				time.UnixMilli(job.UpdatedAtMs).Format(time.RFC3339),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

func describeSchedule(s schedule.Schedule) string {
	switch s.Kind {
	case schedule.ScheduleKindCron:
		return "cron " + s.Expr
	case schedule.ScheduleKindInterval:
		return fmt.Sprintf("every %s", time.Duration(s.IntervalMs)*time.Millisecond)
	default:
		return s.Kind
	}
}

func init() {
	JobsCmd.Flags().BoolP("json", "j", false, "Output jobs as JSON")
}
