package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zenvor/report-writer/storage"
)

var (
	runFile  string
	runDate  string
	runHours int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Update the report workbook for one date (default: today).",
	Long: `Run the report pipeline once: back up the workbook, fetch commit titles for
every configured project, summarize them, and write the summary into the row
matching the target date.

Without -f the workbook is discovered in the data directory. The hours cell
is only written when it is still empty; content is always overwritten.`,
	Example: `
  # Update today's row in the discovered workbook
  report-writer run

  # Update a specific workbook and date
  report-writer run -f data/report.xlsx -d 2025-03-05

  # Record 6 work hours instead of the default 8
  report-writer run -f data/report.xlsx -w 6
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		document, err := resolveDocument(runFile)
		if err != nil {
			return err
		}
		date, err := parseDateFlag(runDate)
		if err != nil {
			return err
		}

		u, history, err := buildUpdater(cfg, storage.TriggerManual)
		if err != nil {
			return err
		}
		if history != nil {
			defer history.Close()
		}

		if !u.UpdateDailyReport(context.Background(), document, date, runHours) {
			return fmt.Errorf("report update failed for %s (see log output)", date.Format("2006-01-02"))
		}
		fmt.Printf("Report updated: %s, date %s\n", document, date.Format("2006-01-02"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Path to the report workbook (default: discovered in ./data)")
	runCmd.Flags().StringVarP(&runDate, "date", "d", "", "Target date, format YYYY-MM-DD (default: today)")
	runCmd.Flags().IntVarP(&runHours, "work-hours", "w", defaultWorkHours, "Work hours written when the hours cell is empty")
}
