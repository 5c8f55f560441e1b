// Package verify re-runs a Play over the same data window twice and
// compares the resulting manifest/metrics/trade hashes: running the same
// Play on the same data twice must produce byte-identical manifest.json
// (excluding wall-clock timestamp fields) and byte-identical
// trades.parquet/equity.parquet/metrics.json hashes. It wires the same
// preflight→engine→perf pipeline already exercised end to end in
// internal/engine's own tests and only adds the run-twice-and-diff step
// around it.
package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/artifact"
	"github.com/sawpanic/backtest-engine/internal/engine"
	"github.com/sawpanic/backtest-engine/internal/exchange"
	"github.com/sawpanic/backtest-engine/internal/perf"
	"github.com/sawpanic/backtest-engine/internal/play"
	"github.com/sawpanic/backtest-engine/internal/preflight"
	"github.com/sawpanic/backtest-engine/internal/risk"
)

// Run is one complete execution of a compiled Play over [startMs, endMs):
// preflight resolves the Feed Store and funding source, the engine
// processes every exec bar, and perf summarizes the result.
type Run struct {
	Manifest artifact.Manifest
	Report   perf.Report
	Result   *engine.Result
}

// Execute runs a compiled Play once, start to finish, against a data
// provider. allowGaps controls whether a coverage gap in the requested
// window is fatal, per internal/preflight.Run.
func Execute(ctx context.Context, p preflight.Provider, compiled *play.Compiled, startMs, endMs int64, allowGaps bool, generatedAt time.Time) (*Run, error) {
	pre, err := preflight.Run(ctx, p, compiled, startMs, endMs, allowGaps)
	if err != nil {
		return nil, fmt.Errorf("preflight: %w", err)
	}

	cfg := exchange.DefaultConfig()
	cfg.Leverage = decimal.NewFromFloat(compiled.Raw.Account.MaxLeverage)
	cfg.TakerFeeBps = decimal.NewFromFloat(compiled.Raw.Account.TakerFeeBps)
	cfg.SlippageBps = decimal.NewFromFloat(compiled.Raw.Account.SlippageBps)
	startingEquity := decimal.NewFromFloat(compiled.Raw.Account.StartingEquity)
	ex := exchange.New(cfg, startingEquity, pre.Funding)

	pol := risk.FromRaw(compiled.Raw.Risk, compiled.Raw.Account.MaxLeverage)

	proc, err := engine.NewProcessor(compiled, pre.Set, ex, pol, pre.SimStartIdx)
	if err != nil {
		return nil, fmt.Errorf("building processor: %w", err)
	}
	result, err := proc.Run()
	if err != nil {
		return nil, fmt.Errorf("running processor: %w", err)
	}

	m, err := artifact.BuildManifest(compiled, startMs, endMs, generatedAt)
	if err != nil {
		return nil, fmt.Errorf("building manifest: %w", err)
	}
	report := perf.Compute(result, startingEquity)

	return &Run{Manifest: m, Report: report, Result: result}, nil
}

// Mismatch names one artifact whose hash differed between the two runs.
type Mismatch struct {
	Artifact string
	First    string
	Second   string
}

// Report is the outcome of a two-run determinism check.
type Report struct {
	Mismatches []Mismatch
}

// Deterministic is true when no mismatch was found; a non-zero-exit-code
// `cmd/backtester verify` CLI is a thin wrapper around this.
func (r Report) Deterministic() bool {
	return len(r.Mismatches) == 0
}

// Verify runs the same compiled Play over the same window twice and
// compares content-addressed hashes. The two runs use different
// generatedAt values on purpose, to prove the comparison is actually
// insensitive to wall-clock time rather than accidentally comparing two
// identical timestamps.
func Verify(ctx context.Context, p preflight.Provider, compiled *play.Compiled, startMs, endMs int64, allowGaps bool) (Report, error) {
	first, err := Execute(ctx, p, compiled, startMs, endMs, allowGaps, time.Unix(0, 0))
	if err != nil {
		return Report{}, fmt.Errorf("first run: %w", err)
	}
	second, err := Execute(ctx, p, compiled, startMs, endMs, allowGaps, time.Unix(1, 0))
	if err != nil {
		return Report{}, fmt.Errorf("second run: %w", err)
	}

	var mismatches []Mismatch

	if first.Manifest.RunID != second.Manifest.RunID {
		mismatches = append(mismatches, Mismatch{Artifact: "manifest.json (run_id)", First: first.Manifest.RunID, Second: second.Manifest.RunID})
	}
	if first.Manifest.PlayHash != second.Manifest.PlayHash {
		mismatches = append(mismatches, Mismatch{Artifact: "manifest.json (play_hash)", First: first.Manifest.PlayHash, Second: second.Manifest.PlayHash})
	}

	metricsHash1, err := hashReport(first.Report)
	if err != nil {
		return Report{}, err
	}
	metricsHash2, err := hashReport(second.Report)
	if err != nil {
		return Report{}, err
	}
	if metricsHash1 != metricsHash2 {
		mismatches = append(mismatches, Mismatch{Artifact: "metrics.json", First: metricsHash1, Second: metricsHash2})
	}

	tradesHash1, err := hashTrades(first.Result.Trades)
	if err != nil {
		return Report{}, err
	}
	tradesHash2, err := hashTrades(second.Result.Trades)
	if err != nil {
		return Report{}, err
	}
	if tradesHash1 != tradesHash2 {
		mismatches = append(mismatches, Mismatch{Artifact: "trades.parquet", First: tradesHash1, Second: tradesHash2})
	}

	equityHash1, err := hashEquity(first.Result.Equity)
	if err != nil {
		return Report{}, err
	}
	equityHash2, err := hashEquity(second.Result.Equity)
	if err != nil {
		return Report{}, err
	}
	if equityHash1 != equityHash2 {
		mismatches = append(mismatches, Mismatch{Artifact: "equity.parquet", First: equityHash1, Second: equityHash2})
	}

	return Report{Mismatches: mismatches}, nil
}
