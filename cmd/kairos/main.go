// Package main is the kairos CLI entry point: a cobra root command
// with `run` (execute a backtest) and `report` (regenerate summary.json
// from an existing run's artifacts) subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kairos-alloy/alloy/internal/kairoserr"
)

func main() {
	root := &cobra.Command{
		Use:   "kairos",
		Short: "Deterministic single-asset backtesting and paper-trading engine",
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newReportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeForCLIError(err))
	}
}

func exitCodeForCLIError(err error) int {
	if code := kairoserr.ExitCode(err); code != 0 {
		return code
	}
	return 1
}
