package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zenvor/report-writer/scheduler"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent pipeline runs and the next scheduled firing.",
	Long: `List the most recent pipeline runs recorded in the run history, newest first,
and the next firing time of the configured daily schedule.`,
	Example: `
  # Show the last 10 runs
  report-writer status

  # Show the last 30 runs
  report-writer status -n 30
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		location := scheduleLocation(cfg)
		next := scheduler.NextFiring(time.Now(), cfg.Schedule.Hour, cfg.Schedule.Minute, location)
		if cfg.Schedule.Enabled {
			fmt.Printf("Next scheduled firing: %s\n", next.Format(time.RFC1123))
		} else {
			fmt.Println("Schedule: disabled")
		}

		history, err := openHistory(cfg)
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		defer history.Close()

		runs, err := history.RecentRuns(statusLimit)
		if err != nil {
			return fmt.Errorf("read run history: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No recorded runs yet.")
			return nil
		}

		fmt.Printf("Recent runs (%d):\n", len(runs))
		for _, run := range runs {
			outcome := "FAILED"
			if run.Success {
				outcome = "ok"
			}
			fmt.Printf("  %s  date=%s  %-6s  commits=%d  trigger=%s  %s\n",
				run.RanAt.Local().Format("2006-01-02 15:04:05"),
				run.ReportDate,
				outcome,
				run.CommitCount,
				run.Trigger,
				summaryHead(run.Summary))
		}
		return nil
	},
}

// summaryHead shortens a stored summary to a single display line.
func summaryHead(summary string) string {
	summary = strings.TrimSpace(summary)
	if idx := strings.IndexByte(summary, '\n'); idx >= 0 {
		summary = summary[:idx] + " ..."
	}
	if len(summary) > 60 {
		summary = summary[:60] + "..."
	}
	return summary
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Number of runs to show")
}
