package cmd

import "github.com/spf13/cobra"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the report-writer configuration file.",
	Long: `Create and display the report-writer configuration file.

The configuration stores the workbook layout, retry tuning, summarizer
settings, the daily schedule, backup retention, and the GitLab project list.
Credentials can also come from environment variables (GITLAB_URL,
GITLAB_TOKEN, GITLAB_PROJECT_ID, GITLAB_BRANCH, DEEPSEEK_API_KEY).`,
	Example: `
  # Create default config in ./report-writer.yaml
  report-writer config create

  # Show active config and source file
  report-writer config show
`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
