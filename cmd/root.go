package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sysinv/sysinv/pkg/config"
	"github.com/sysinv/sysinv/pkg/inventory"
	log "github.com/sysinv/sysinv/pkg/logger"
	"github.com/sysinv/sysinv/pkg/source"
)

var (
	logsLevel   string
	cacheDir    string
	legacyDir   string
	platformDir string
)

// RootCmd is the top-level sysinv command.
var RootCmd = &cobra.Command{
	Use:           "sysinv",
	Short:         "Query the cached inventory of software installed on this machine",
	Long:          `sysinv maintains a locally cached, queryable index of software installed outside the package manager's own bookkeeping, built from the legacy-install inventory and the platform package listing.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger := log.New()
		logger.SetLevel(log.ParseLevel(logsLevel))
		log.SetDefault(logger)
	},
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&logsLevel, "logs-level", "info", "Log level: Trace, Debug, Info, Warning, Error")
	RootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Override the cache base directory (defaults to the XDG cache home)")
	RootCmd.PersistentFlags().StringVar(&legacyDir, "legacy-dir", "", "Directory holding legacy-install manifests (machine/ and user/ subdirectories)")
	RootCmd.PersistentFlags().StringVar(&platformDir, "platform-dir", "", "Directory holding platform package manifests")
}

// installedFactory wires the configured inventories into the installed
// source factory and registers it for lookup by type.
func installedFactory(opts ...source.InstalledFactoryOption) source.Factory {
	cfg := config.NewCacheConfig()
	if cacheDir != "" {
		cfg.BaseDir = cacheDir
	}

	factory := source.NewInstalledFactory(cfg,
		inventory.NewFileScanner(legacyDir),
		inventory.NewFilePlatformEnumerator(platformDir),
		opts...)
	source.Register(source.TypeInstalled, factory)

	registered, _ := source.For(source.TypeInstalled)
	return registered
}
