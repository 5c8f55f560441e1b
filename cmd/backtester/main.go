// Command backtester runs, verifies, and reports on Plays against the
// deterministic backtesting engine: a cobra root command with one
// subcommand per operation, structured zerolog startup logging, and a
// plain-text summary printed to stdout at the end of a run.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sawpanic/backtest-engine/internal/xlog"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "backtester",
	Short: "Deterministic event-driven backtester for leveraged-perpetual strategies",
	Long: `backtester runs a Play (a YAML strategy definition) against historical or
synthetic OHLCV data through a deterministic, single-threaded simulated
exchange, and writes content-addressed run artifacts.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		xlog.Configure(true, level)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(runCmd, verifyCmd, reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
