package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zenvor/report-writer/storage"
)

var (
	rangeProject string
	rangeBranch  string
	rangeStart   string
	rangeEnd     string
)

var rangeCmd = &cobra.Command{
	Use:   "range",
	Short: "Summarize a multi-day commit window for one project.",
	Long: `Fetch and summarize commits for a single project across an inclusive date
range. Nothing is written to the report workbook; the summary is printed.

Useful for ad-hoc reporting outside the daily cadence, e.g. filling a sprint
review or a missed week by hand.`,
	Example: `
  # Summarize one work week for the configured project
  report-writer range --start 2025-03-03 --end 2025-03-07

  # Summarize a different project and branch
  report-writer range --project 202 --branch main --start 2025-03-01 --end 2025-03-31
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		project := strings.TrimSpace(rangeProject)
		if project == "" {
			projects := cfg.ResolveProjects()
			if len(projects) == 0 {
				return fmt.Errorf("no project configured; pass --project")
			}
			project = projects[0].ID
		}

		start, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(rangeStart), time.Local)
		if err != nil {
			return fmt.Errorf("invalid --start value %q (expected YYYY-MM-DD)", rangeStart)
		}
		end, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(rangeEnd), time.Local)
		if err != nil {
			return fmt.Errorf("invalid --end value %q (expected YYYY-MM-DD)", rangeEnd)
		}

		u, history, err := buildUpdater(cfg, storage.TriggerManual)
		if err != nil {
			return err
		}
		if history != nil {
			defer history.Close()
		}

		result, err := u.SummarizeProjectRange(context.Background(), project, start, end, rangeBranch)
		if err != nil {
			return err
		}

		fmt.Printf("Project %s (branch %s), %s to %s: %d commits\n",
			result.ProjectID, result.Branch,
			start.Format("2006-01-02"), end.Format("2006-01-02"),
			result.CommitCount)
		fmt.Println()
		fmt.Println(result.Summary)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rangeCmd)

	rangeCmd.Flags().StringVar(&rangeProject, "project", "", "Project ID (default: first configured project)")
	rangeCmd.Flags().StringVar(&rangeBranch, "branch", "", "Branch override (default: project branch)")
	rangeCmd.Flags().StringVar(&rangeStart, "start", "", "Range start (inclusive), format YYYY-MM-DD")
	rangeCmd.Flags().StringVar(&rangeEnd, "end", "", "Range end (inclusive), format YYYY-MM-DD")
	_ = rangeCmd.MarkFlagRequired("start")
	_ = rangeCmd.MarkFlagRequired("end")
}
