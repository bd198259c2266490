package cmd

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sysinv/sysinv/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print the CLI version",
	Example: "sysinv version",
	Run: func(cmd *cobra.Command, args []string) {
		name := color.New(color.FgCyan, color.Bold).Sprint("sysinv")
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s on %s/%s\n", name, version.Version, runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
