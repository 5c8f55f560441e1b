package engine

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/exchange"
)

// EquityPoint is one exec-bar-close sample of the equity curve, the raw
// material for equity.parquet.
type EquityPoint struct {
	TsClose          int64
	Equity           decimal.Decimal
	Cash             decimal.Decimal
	Unrealized       decimal.Decimal
	Drawdown         decimal.Decimal
	Mark             decimal.Decimal
	LiquidationPrice decimal.Decimal // zero when flat
	Leverage         decimal.Decimal // zero when flat
}

// Event is a chronological funding/liquidation/SL/TP record, the raw
// material for events.jsonl.
type Event struct {
	TsMs   int64
	Kind   string // "funding" | "liquidation" | "sl" | "tp" | "signal_exit"
	Detail any
}

// Result is everything the bar processor accumulated across a run, ready
// for internal/perf and internal/artifact to consume.
type Result struct {
	Equity []EquityPoint
	Trades []exchange.Trade
	Events []Event
}
