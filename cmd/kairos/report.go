package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kairos-alloy/alloy/internal/artifacts"
	"github.com/kairos-alloy/alloy/internal/config"
	"github.com/kairos-alloy/alloy/internal/metrics"
)

// newReportCmd regenerates a run's summary.json metrics from its
// already-written trades.csv, equity.csv, and config_snapshot.toml,
// exercising the round-trip property that the same artifacts always
// reduce to the same metrics (§8).
func newReportCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Regenerate summary.json metrics from an existing run's artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return regenerateReport(outDir)
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", "", "run artifact directory containing trades.csv, equity.csv and config_snapshot.toml (required)")
	_ = cmd.MarkFlagRequired("out-dir")

	return cmd
}

func regenerateReport(outDir string) error {
	cfg, err := config.Load(filepath.Join(outDir, "config_snapshot.toml"))
	if err != nil {
		return err
	}

	prior, err := artifacts.ReadSummary(outDir)
	if err != nil {
		return err
	}

	trades, err := artifacts.ReadTrades(outDir)
	if err != nil {
		return err
	}
	equity, err := artifacts.ReadEquity(outDir)
	if err != nil {
		return err
	}

	perf := metrics.Calculate(trades, equity, cfg.Run.InitialCapital, cfg.Run.Timeframe, cfg.Risk.RiskFreeRate)

	if err := artifacts.WriteSummary(outDir, artifacts.Summary{
		RunID:      prior.RunID,
		Symbol:     cfg.Run.Symbol,
		Status:     prior.Status,
		TradeCount: len(trades),
		Metrics:    perf,
	}); err != nil {
		return err
	}

	fmt.Printf("regenerated summary.json for run %s: net_profit=%s sharpe=%s max_drawdown=%s win_rate=%s turnover=%s\n",
		prior.RunID, perf.NetProfit.String(), perf.Sharpe.String(), perf.MaxDrawdown.String(), perf.WinRate.String(), perf.Turnover.String())
	return nil
}
