package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zenvor/report-writer/config"
)

var configCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a configuration file from the example template.",
	Long: `Create a new configuration file from the example template.

If a configuration file is already in use, no new file is written.`,
	Example: `
  # Create default config at ./report-writer.yaml
  report-writer config create
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return saveDefaultConfig()
	},
}

func saveDefaultConfig() error {
	configPath := resolveConfigCreatePath(cfgFile, viper.ConfigFileUsed())

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file already exists at: %s\n", configPath)
		return nil
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(config.ExampleYAML()), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	fmt.Printf("New config file created at: %s\n", configPath)
	return nil
}

// resolveConfigCreatePath prefers the --config flag, then the file viper
// already discovered, then the working directory default.
func resolveConfigCreatePath(flagPath, usedPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if usedPath != "" {
		return usedPath
	}
	return "report-writer.yaml"
}

func init() {
	configCmd.AddCommand(configCreateCmd)
}
