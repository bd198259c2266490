package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/sysinv/sysinv/pkg/index"
	"github.com/sysinv/sysinv/pkg/inventory"
	log "github.com/sysinv/sysinv/pkg/logger"
	"github.com/sysinv/sysinv/pkg/source"
)

var listFormat string

// listEntry is the caller-facing shape of one installed package.
type listEntry struct {
	Identity      string `yaml:"identity"`
	Name          string `yaml:"name"`
	Version       string `yaml:"version"`
	Scope         string `yaml:"scope,omitempty"`
	InstalledType string `yaml:"installed_type,omitempty"`
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List installed packages from the cached inventory",
	Example: "sysinv list --legacy-dir ./inventory/legacy --platform-dir ./inventory/platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		factory := installedFactory()

		src, err := factory.Create(source.Details{Type: source.TypeInstalled, Name: "installed"})
		if err != nil {
			return err
		}
		defer src.Close()

		log.Debug("Created installed source", "tier", src.Tier().String())

		matches, err := src.Search(index.Filter{})
		if err != nil {
			return err
		}

		entries := make([]listEntry, 0, len(matches))
		for _, m := range matches {
			installedType, err := src.Index().GetMetadata(m.ID, inventory.MetadataInstalledType)
			if err != nil {
				return err
			}
			entries = append(entries, listEntry{
				Identity:      m.Record.Identity,
				Name:          m.Record.Name,
				Version:       m.Record.Version,
				Scope:         m.Record.Scope,
				InstalledType: installedType,
			})
		}

		if listFormat == "yaml" {
			out, err := yaml.Marshal(entries)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		}

		for _, e := range entries {
			scope := e.Scope
			if scope == "" {
				scope = "-"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-40s %-30s %-16s %-8s %s\n",
				e.Identity, e.Name, e.Version, scope, e.InstalledType)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listFormat, "format", "table", "Output format: table or yaml")
	RootCmd.AddCommand(listCmd)
}
