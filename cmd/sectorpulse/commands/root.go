package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sectorpulse",
	Short: "sectorpulse - sector index ingestion and relative-strength ranking",
	Long: `sectorpulse Unified CLI

Ingests daily sector index data into a local store and ranks the
configured universe by benchmark-relative strength.

Usage:
  go run ./cmd/sectorpulse [command]

Examples:
  go run ./cmd/sectorpulse api
  go run ./cmd/sectorpulse collect
  go run ./cmd/sectorpulse rank
  go run ./cmd/sectorpulse velocity`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
