package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zenvor/report-writer/config"
)

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show active configuration values.",
	Long: `Display the currently loaded configuration and the resolved config file path.

This command validates the configuration before printing values. Credentials
are masked.`,
	Example: `
  # Show active configuration
  report-writer config show
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			fmt.Println("Invalid config:", err)
			return
		}

		if configPath := viper.ConfigFileUsed(); configPath != "" {
			fmt.Println("Config file loaded from:", configPath)
		} else {
			fmt.Println("No config file found; defaults and environment variables are active.")
		}

		fmt.Println("Configuration:")
		fmt.Printf("columns.date: %d\n", cfg.Columns.Date)
		fmt.Printf("columns.content: %d\n", cfg.Columns.Content)
		fmt.Printf("columns.hours: %d\n", cfg.Columns.Hours)
		fmt.Printf("columns.start_row: %d\n", cfg.Columns.StartRow)
		fmt.Printf("retry.max_retries: %d\n", cfg.Retry.MaxRetries)
		fmt.Printf("retry.backoff_factor: %g\n", cfg.Retry.BackoffFactor)
		fmt.Printf("retry.timeout_seconds: %d\n", cfg.Retry.TimeoutSeconds)
		fmt.Printf("summarizer.base_url: %s\n", cfg.Summarizer.BaseURL)
		fmt.Printf("summarizer.model: %s\n", cfg.Summarizer.Model)
		fmt.Printf("summarizer.temperature: %g\n", cfg.Summarizer.Temperature)
		fmt.Printf("summarizer.max_tokens: %d\n", cfg.Summarizer.MaxTokens)
		fmt.Printf("schedule.enabled: %t\n", cfg.Schedule.Enabled)
		fmt.Printf("schedule.time: %02d:%02d %s\n", cfg.Schedule.Hour, cfg.Schedule.Minute, cfg.Schedule.Timezone)
		fmt.Printf("schedule.misfire_grace_seconds: %d\n", cfg.Schedule.MisfireGraceSeconds)
		fmt.Printf("backup.enabled: %t\n", cfg.Backup.Enabled)
		fmt.Printf("backup.max_backups: %d\n", cfg.Backup.MaxBackups)
		fmt.Printf("gitlab.url: %s\n", cfg.GitLab.URL)
		fmt.Printf("gitlab.token: %s\n", maskSecret(cfg.GitLab.Token))
		fmt.Printf("gitlab.default_branch: %s\n", cfg.GitLab.DefaultBranch)
		fmt.Printf("deepseek.api_key: %s\n", maskSecret(cfg.Deepseek.APIKey))
		fmt.Printf("history.path: %s\n", cfg.History.Path)

		projects := cfg.ResolveProjects()
		fmt.Printf("projects: %d\n", len(projects))
		for i, project := range projects {
			fmt.Printf("projects[%d].id: %s\n", i, project.ID)
			fmt.Printf("projects[%d].branch: %s\n", i, project.Branch)
		}
	},
}

func maskSecret(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "<unset>"
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + strings.Repeat("*", 6) + value[len(value)-2:]
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
