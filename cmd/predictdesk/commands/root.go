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
	Use:   "predictdesk",
	Short: "Prediction market trading desk",
	Long: `PredictDesk CLI

Order placement, position tracking and settlement reconciliation for
binary-outcome prediction markets.

Usage:
  go run ./cmd/predictdesk [command]

Examples:
  go run ./cmd/predictdesk buy 0xcond... Yes 20
  go run ./cmd/predictdesk positions
  go run ./cmd/predictdesk watch`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
