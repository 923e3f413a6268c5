package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zenvor/report-writer/storage"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe source connectivity and configuration completeness.",
	Long: `Check that the GitLab connection works, the AI credential is present, and the
source configuration is complete. Nothing is written.

The same probe runs before every scheduled firing in daemon mode.`,
	Example: `
  # Run the health check
  report-writer health
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
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

		status := u.HealthCheck(context.Background())
		printCheck("Source connection", status.SourceConnection)
		printCheck("AI credential present", status.AICredentialPresent)
		printCheck("Configuration complete", status.ConfigComplete)

		if !status.AllGood() {
			return fmt.Errorf("health check reported problems")
		}
		fmt.Println("All checks passed.")
		return nil
	},
}

func printCheck(label string, ok bool) {
	state := "FAIL"
	if ok {
		state = "ok"
	}
	fmt.Printf("  %-24s %s\n", label+":", state)
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
