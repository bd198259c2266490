package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sysinv/sysinv/pkg/index"
	"github.com/sysinv/sysinv/pkg/source"
)

var refreshCmd = &cobra.Command{
	Use:     "refresh",
	Short:   "Rebuild the installed-package cache from scratch",
	Example: "sysinv refresh --legacy-dir ./inventory/legacy --platform-dir ./inventory/platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		factory := installedFactory(source.WithForceRecreate())

		src, err := factory.Create(source.Details{Type: source.TypeInstalled, Name: "installed"})
		if err != nil {
			return err
		}
		defer src.Close()

		matches, err := src.Search(index.Filter{})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt installed-package cache (%s): %d packages\n",
			src.Tier(), len(matches))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(refreshCmd)
}
