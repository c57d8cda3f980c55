// Package cmd contains all CLI commands for trendctl
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	applogger "TrendChart/pkg/logger"
)

var (
	timezone string
	logLevel string
	logger   *applogger.Logger
	version  = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trendctl",
	Short: "Date field trending chart tool",
	Long: `trendctl aggregates dated counts into interval buckets aligned to today and
prints the resulting chart dataset as JSON.

Example usage:
  trendctl render --interval 7 --range 30 --input obs.json
  trendctl render --interval 7 --range 30 --input - --today 2024-01-31 < obs.json
  trendctl fetch --server http://localhost:8080 --interval 7 --range 30 --input obs.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = applogger.NewWithWriter(os.Stderr, logLevel)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	rootCmd.Version = version
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&timezone, "tz", "UTC", "time zone used to truncate dates to days")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}
