package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zenvor/report-writer/config"
)

var (
	cfgFile   string
	verbosity int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "report-writer",
	Short: "Pull commit history, summarize it, and fill it into a daily report workbook.",
	Long: `report-writer automates the daily activity report: it fetches commit titles
for the configured GitLab projects, condenses them into a short summary (via a
DeepSeek-compatible endpoint, with a deterministic fallback), and writes the
result into the row of the report workbook matching the target date.

A backup of the workbook is taken before every write, and a daemon mode runs
the pipeline unattended once a day.`,
	Example: `
  # Create configuration file
  report-writer config create

  # One-shot update of today's row
  report-writer run -f data/report.xlsx

  # Update a specific date with 6 hours
  report-writer run -f data/report.xlsx -d 2025-03-05 -w 6

  # Run the daily scheduler in the foreground
  report-writer daemon -f data/report.xlsx

  # Check source connectivity and configuration
  report-writer health

  # Summarize a multi-day window for one project
  report-writer range --project 101 --start 2025-03-03 --end 2025-03-07

  # Fill the weekly report from this week's daily entries
  report-writer weekly -f data/report.xlsx --weekly-file data/weekly.xlsx
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	config.SetDefaults()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file override (default discovery: ./report-writer.yaml, then $HOME/.report-writer.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")

	// Credential overrides; environment variables and the config file fill
	// these when the flags are absent.
	rootCmd.PersistentFlags().String("gitlab-url", "", "GitLab base URL override")
	rootCmd.PersistentFlags().String("gitlab-token", "", "GitLab access token override")
	rootCmd.PersistentFlags().String("project", "", "GitLab project ID override")
	rootCmd.PersistentFlags().String("deepseek-key", "", "DeepSeek API key override")
	_ = viper.BindPFlag(config.KeyGitLabURL, rootCmd.PersistentFlags().Lookup("gitlab-url"))
	_ = viper.BindPFlag(config.KeyGitLabToken, rootCmd.PersistentFlags().Lookup("gitlab-token"))
	_ = viper.BindPFlag(config.KeyGitLabProjectID, rootCmd.PersistentFlags().Lookup("project"))
	_ = viper.BindPFlag(config.KeyDeepseekAPIKey, rootCmd.PersistentFlags().Lookup("deepseek-key"))

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		setupLogging(verbosity)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName("report-writer")
	}

	config.BindEnv()
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in. Defaults and environment
	// variables carry commands that can run without one.
	if err := viper.ReadInConfig(); err == nil {
		slog.Debug("config file loaded", "path", viper.ConfigFileUsed())
	}
}

// setupLogging wires slog to stderr at the level selected by -v flags.
func setupLogging(verbosity int) {
	level := slog.LevelWarn
	switch {
	case verbosity == 1:
		level = slog.LevelInfo
	case verbosity >= 2:
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
