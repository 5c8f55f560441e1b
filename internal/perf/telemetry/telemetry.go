// Package telemetry exposes Prometheus instrumentation for the backtest
// runner itself (bars processed, run duration, liquidation/funding counts),
// distinct from the per-run metrics.json record internal/perf computes from
// a finished Result.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every Prometheus collector the backtester defines: one
// struct field per collector, built once via NewRegistry. No package in
// this repository imports telemetry, so during a run these collectors are
// neither registered nor updated.
type Registry struct {
	RunDuration    *prometheus.HistogramVec
	BarsProcessed  *prometheus.CounterVec
	RunsTotal      *prometheus.CounterVec
	Liquidations   *prometheus.CounterVec
	FundingEvents  *prometheus.CounterVec
	ActiveRuns     prometheus.Gauge
	CoverageGaps   *prometheus.CounterVec
}

// NewRegistry builds every collector unregistered; the caller registers
// them against whatever *prometheus.Registry backs its /metrics endpoint.
func NewRegistry() *Registry {
	return &Registry{
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backtester_run_duration_seconds",
				Help:    "Wall-clock duration of a completed backtest run",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
			},
			[]string{"play"},
		),
		BarsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtester_bars_processed_total",
				Help: "Total exec bars processed across all runs",
			},
			[]string{"play", "symbol"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtester_runs_total",
				Help: "Total backtest runs, by terminal outcome",
			},
			[]string{"play", "outcome"}, // outcome: completed | equity_floor | invariant_violation
		),
		Liquidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtester_liquidations_total",
				Help: "Total forced liquidations across all runs",
			},
			[]string{"play", "symbol"},
		),
		FundingEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtester_funding_events_total",
				Help: "Total funding settlements applied across all runs",
			},
			[]string{"play", "symbol"},
		),
		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "backtester_active_runs",
				Help: "Number of backtest runs currently in progress",
			},
		),
		CoverageGaps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtester_coverage_gaps_total",
				Help: "Total historical data coverage gaps detected during preflight",
			},
			[]string{"symbol", "tf"},
		),
	}
}

// MustRegister registers every collector against reg, panicking on a
// duplicate-registration error since this collector set is fixed and
// known-unique.
func (r *Registry) MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		r.RunDuration, r.BarsProcessed, r.RunsTotal,
		r.Liquidations, r.FundingEvents, r.ActiveRuns, r.CoverageGaps,
	)
}
