package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zenvor/report-writer/scheduler"
	"github.com/zenvor/report-writer/storage"
	"github.com/zenvor/report-writer/updater"
)

var (
	daemonFile  string
	daemonHours int
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the daily scheduler in the foreground.",
	Long: `Run the report pipeline unattended: once a day at the configured time
(schedule.hour/schedule.minute in schedule.timezone) the pipeline updates the
workbook row for that day.

A firing that wakes up within schedule.misfire_grace_seconds of its slot still
runs; a later one is skipped. SIGINT/SIGTERM stop the daemon after draining an
in-flight run.`,
	Example: `
  # Run the scheduler against the discovered workbook
  report-writer daemon

  # Run against an explicit workbook with info logging
  report-writer daemon -f data/report.xlsx -v
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Schedule.Enabled {
			return fmt.Errorf("schedule is disabled in configuration (schedule.enabled)")
		}

		document, err := resolveDocument(daemonFile)
		if err != nil {
			return err
		}

		u, history, err := buildUpdater(cfg, storage.TriggerScheduled)
		if err != nil {
			return err
		}
		if history != nil {
			defer history.Close()
		}

		location := scheduleLocation(cfg)
		sched, err := scheduler.New(scheduler.Config{
			Hour:         cfg.Schedule.Hour,
			Minute:       cfg.Schedule.Minute,
			Location:     location,
			MisfireGrace: time.Duration(cfg.Schedule.MisfireGraceSeconds) * time.Second,
			HealthProbe: func(ctx context.Context) string {
				return formatHealth(u.HealthCheck(ctx))
			},
		}, func(ctx context.Context, scheduledFor time.Time) {
			u.UpdateDailyReport(ctx, document, scheduledFor.In(location), daemonHours)
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Scheduler running, next firing at %s. Press Ctrl+C to stop.\n",
			scheduler.NextFiring(time.Now(), cfg.Schedule.Hour, cfg.Schedule.Minute, location).Format(time.RFC1123))

		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Println("Scheduler stopped.")
		return nil
	},
}

func formatHealth(status updater.HealthStatus) string {
	return fmt.Sprintf("source=%t ai_credential=%t config=%t",
		status.SourceConnection, status.AICredentialPresent, status.ConfigComplete)
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVarP(&daemonFile, "file", "f", "", "Path to the report workbook (default: discovered in ./data)")
	daemonCmd.Flags().IntVarP(&daemonHours, "work-hours", "w", defaultWorkHours, "Work hours written when the hours cell is empty")
}
