// Package cmd defines and implements the CLI commands for the nyaa-comments
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geckyzz/nyaa-comments/internal/config"
	"github.com/geckyzz/nyaa-comments/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nyaa-comments",
		Short: "Watches torrent comment sections and notifies a Discord webhook",
		Long: `nyaa-comments scrapes comment sections on Nyaa.si, Sukebei and
AnimeTosho, keeps a local snapshot of previously seen comments, and sends one
webhook notification per newly posted comment in global chronological order.
It can also upload an encrypted backup of the snapshot to Catbox Litterbox.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (also read from NYAA_* environment variables)")

	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newDecryptCmd())
	return cmd
}

// loadConfig builds the typed config and the logger for a command run.
func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
