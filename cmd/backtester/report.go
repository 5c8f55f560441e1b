package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/backtest-engine/internal/perf"
)

var reportMarkdown bool

var reportCmd = &cobra.Command{
	Use:   "report <run_dir>",
	Short: "Render a completed run's metrics.json as a terminal table or markdown report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportCmd,
}

func init() {
	reportCmd.Flags().BoolVar(&reportMarkdown, "markdown", false, "render a markdown report instead of a terminal table")
}

func runReportCmd(cmd *cobra.Command, args []string) error {
	runDir := args[0]

	data, err := os.ReadFile(filepath.Join(runDir, "metrics.json"))
	if err != nil {
		return fmt.Errorf("reading metrics.json: %w", err)
	}
	var r perf.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("decoding metrics.json: %w", err)
	}

	if reportMarkdown {
		fmt.Print(renderMarkdown(runDir, r))
		return nil
	}
	fmt.Print(renderTable(r))
	return nil
}

func renderTable(r perf.Report) string {
	var b strings.Builder
	row := func(label string, value string) {
		fmt.Fprintf(&b, "  %-28s %s\n", label, value)
	}
	b.WriteString("Equity\n")
	row("starting_equity", fmt.Sprintf("%.2f", r.StartingEquity))
	row("ending_equity", fmt.Sprintf("%.2f", r.EndingEquity))
	row("total_return_pct", fmt.Sprintf("%.2f", r.TotalReturnPct))
	b.WriteString("Drawdown\n")
	row("max_drawdown_pct", fmt.Sprintf("%.2f", r.MaxDrawdownPct))
	row("recovery_factor", fmt.Sprintf("%.2f", r.RecoveryFactor))
	b.WriteString("Trades\n")
	row("total_trades", fmt.Sprintf("%d", r.TotalTrades))
	row("win_rate_pct", fmt.Sprintf("%.2f", r.WinRatePct))
	row("profit_factor", fmt.Sprintf("%.2f", r.ProfitFactor))
	row("expectancy_usdt", fmt.Sprintf("%.2f", r.ExpectancyUSDT))
	b.WriteString("Risk-adjusted\n")
	row("sharpe_ratio", fmt.Sprintf("%.2f", r.SharpeRatio))
	row("sortino_ratio", fmt.Sprintf("%.2f", r.SortinoRatio))
	row("calmar_ratio", fmt.Sprintf("%.2f", r.CalmarRatio))
	return b.String()
}

func renderMarkdown(runDir string, r perf.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Backtest Report\n\n")
	fmt.Fprintf(&b, "**Generated**: %s\n", time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "**Run directory**: %s\n\n", runDir)

	fmt.Fprintf(&b, "## Executive Summary\n\n")
	fmt.Fprintf(&b, "- **Total return**: %.2f%%\n", r.TotalReturnPct)
	fmt.Fprintf(&b, "- **Max drawdown**: %.2f%%\n", r.MaxDrawdownPct)
	fmt.Fprintf(&b, "- **Trades**: %d (%.1f%% win rate)\n", r.TotalTrades, r.WinRatePct)
	fmt.Fprintf(&b, "- **Profit factor**: %.2f\n\n", r.ProfitFactor)

	fmt.Fprintf(&b, "## Exit Reasons\n\n")
	fmt.Fprintf(&b, "| Reason | Count |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Stop loss | %d |\n", r.ExitsSL)
	fmt.Fprintf(&b, "| Take profit | %d |\n", r.ExitsTP)
	fmt.Fprintf(&b, "| Signal | %d |\n", r.ExitsSignal)
	fmt.Fprintf(&b, "| Liquidation | %d |\n", r.ExitsLiquidation)
	fmt.Fprintf(&b, "| Equity floor | %d |\n\n", r.ExitsEquityFloor)

	fmt.Fprintf(&b, "## Risk-Adjusted Returns\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Sharpe | %.2f |\n", r.SharpeRatio)
	fmt.Fprintf(&b, "| Sortino | %.2f |\n", r.SortinoRatio)
	fmt.Fprintf(&b, "| Calmar | %.2f |\n", r.CalmarRatio)
	fmt.Fprintf(&b, "| VaR 95%% | %.2f%% |\n", r.VaR95Pct)
	fmt.Fprintf(&b, "| CVaR 95%% | %.2f%% |\n", r.CVaR95Pct)

	return b.String()
}
