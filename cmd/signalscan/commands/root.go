package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "signalscan",
	Short: "SignalScan - multi-tier low-float momentum scanner",
	Long: `SignalScan CLI

Three-tier equity scanner: hourly bulk prefilter, streaming validation
and a realtime tick engine feeding channel categorization, with a
rotating multi-vendor news pipeline on the side.

Usage:
  go run ./cmd/signalscan [command]

Examples:
  go run ./cmd/signalscan scan
  go run ./cmd/signalscan status
  go run ./cmd/signalscan test-db`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
