package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is overridable at build time with
// -ldflags "-X github.com/zenvor/report-writer/cmd.Version=v1.2.3".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the report-writer version.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("report-writer", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
