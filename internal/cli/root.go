// Package cli implements the kohort command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/seuros/kohort/internal/config"
)

// Version is the build version, set by Execute.
var Version string

// Flag overrides shared by every subcommand.
var (
	flagDatabaseURL string
	flagPort        string
	flagDataDir     string
)

// RootCmd represents the root command
var RootCmd = &cobra.Command{
	Use:   "kohort",
	Short: "Customer analytics from the records you already have",
	Long: `Kohort - customer analytics aggregation.

Kohort reads customers, funnel events and payments from PostgreSQL or from
JSON files, and serves funnel conversion, monthly retention cohorts, lifetime
value, churn and revenue over an HTTP API. New customer batches are
deduplicated by email on upload.`,
	SilenceUsage: true,
	// Default to serve command if no subcommand provided
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return runServe(cmd)
		}
		return cmd.Help()
	},
}

// Execute is called by main
func Execute(version string) error {
	Version = version
	RootCmd.Version = version
	return RootCmd.Execute()
}

// loadConfig reads configuration with the persistent flag overrides applied.
func loadConfig() (*config.Config, error) {
	return config.LoadWithOverrides(flagDatabaseURL, flagPort, flagDataDir)
}

func init() {
	RootCmd.PersistentFlags().StringVar(&flagDatabaseURL, "database-url", "", "PostgreSQL connection string (default: memory mode over JSON files)")
	RootCmd.PersistentFlags().StringVar(&flagPort, "port", "", "HTTP port (default: 3000)")
	RootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Directory holding seed files and the upload inbox (default: ./data)")

	RootCmd.AddCommand(serveCmd)

	setupSelfUpgrade()
}
