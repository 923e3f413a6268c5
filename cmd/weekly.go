package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zenvor/report-writer/internal/timeutil"
	"github.com/zenvor/report-writer/report"
	"github.com/zenvor/report-writer/weekly"
)

var (
	weeklyMonthlyFile string
	weeklyOutFile     string
	weeklyWeekStart   string
	weeklyUseTemplate bool
	weeklyTemplateDir string
)

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Fill the weekly report from this week's daily entries.",
	Long: `Read the Monday through Friday entries of one week out of the monthly report
workbook and project them, in order, into rows 1-5 of the weekly workbook.
Days without a daily entry are skipped so hand-written rows survive.

With --use-template the weekly workbook is first copied from a template and a
"{week}" token in its title is replaced with the ISO week number.`,
	Example: `
  # Fill this week's report
  report-writer weekly -f data/report.xlsx --weekly-file data/weekly.xlsx

  # Fill a past week
  report-writer weekly -f data/report.xlsx --weekly-file data/weekly-w10.xlsx --week-start 2025-03-03

  # Create the weekly workbook from a template first
  report-writer weekly -f data/report.xlsx --weekly-file data/weekly-w10.xlsx --use-template --template-dir templates
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		monthly, err := resolveDocument(weeklyMonthlyFile)
		if err != nil {
			return err
		}
		if strings.TrimSpace(weeklyOutFile) == "" {
			return fmt.Errorf("--weekly-file is required")
		}

		weekStart := time.Now()
		if strings.TrimSpace(weeklyWeekStart) != "" {
			weekStart, err = time.ParseInLocation("2006-01-02", strings.TrimSpace(weeklyWeekStart), time.Local)
			if err != nil {
				return fmt.Errorf("invalid --week-start value %q (expected YYYY-MM-DD)", weeklyWeekStart)
			}
		}
		monday := timeutil.WeekStart(weekStart)

		store := report.NewStore(report.Columns{
			Date:     cfg.Columns.Date,
			Content:  cfg.Columns.Content,
			Hours:    cfg.Columns.Hours,
			StartRow: cfg.Columns.StartRow,
		}, slog.Default())
		writer := weekly.NewWriter(store, slog.Default())

		if weeklyUseTemplate {
			template, err := findTemplate(weeklyTemplateDir)
			if err != nil {
				return err
			}
			if err := writer.GenerateFromTemplate(monthly, template, weeklyOutFile, monday); err != nil {
				return err
			}
		} else {
			if err := writer.Generate(monthly, weeklyOutFile, monday); err != nil {
				return err
			}
		}

		fmt.Printf("Weekly report written: %s (week of %s)\n", weeklyOutFile, monday.Format("2006-01-02"))
		return nil
	},
}

// findTemplate picks the template workbook from the template directory.
func findTemplate(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.xlsx"))
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", dir, err)
	}
	for _, match := range matches {
		if !strings.HasPrefix(filepath.Base(match), "~$") {
			return match, nil
		}
	}
	return "", fmt.Errorf("no .xlsx template found in %s", dir)
}

func init() {
	rootCmd.AddCommand(weeklyCmd)

	weeklyCmd.Flags().StringVarP(&weeklyMonthlyFile, "file", "f", "", "Path to the monthly report workbook (default: discovered in ./data)")
	weeklyCmd.Flags().StringVar(&weeklyOutFile, "weekly-file", "", "Path to the weekly workbook to fill")
	weeklyCmd.Flags().StringVar(&weeklyWeekStart, "week-start", "", "Monday of the target week, format YYYY-MM-DD (default: this week)")
	weeklyCmd.Flags().BoolVar(&weeklyUseTemplate, "use-template", false, "Copy the weekly workbook from a template before filling")
	weeklyCmd.Flags().StringVar(&weeklyTemplateDir, "template-dir", "templates", "Directory holding the weekly template")
}
