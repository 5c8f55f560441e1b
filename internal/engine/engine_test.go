package engine

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/bar"
	"github.com/sawpanic/backtest-engine/internal/exchange"
	"github.com/sawpanic/backtest-engine/internal/feed"
	"github.com/sawpanic/backtest-engine/internal/play"
	"github.com/sawpanic/backtest-engine/internal/risk"
)

const priceOnlyPlay = `
version: 1
name: price_cross
symbol: BTCUSDT
timeframes:
  exec: 1m
account:
  starting_equity: 10000
  max_leverage: 1
  taker_fee_bps: 0
  slippage_bps: 0
position_policy: long_only
exit_mode: first_hit
entry:
  order_type: market
risk:
  stop_loss: { type: percent, value: 50 }
  take_profit: { type: percent, value: 50 }
  sizing: { model: percent_equity, percent_pct: 10 }
actions:
  long_entry: ["close", ">", 100]
  long_exit: ["close", "<", 90]
`

func mkExecBar(tsOpen int64, o, h, l, c float64) bar.Bar {
	return bar.Bar{TsOpen: tsOpen, TsClose: tsOpen + 60_000, Open: o, High: h, Low: l, Close: c, Volume: 1}
}

func newTestSet(bars []bar.Bar) *feed.Set {
	set := feed.NewSet("1m", "1m", "1m")
	for _, b := range bars {
		set.Exec.Append(b)
		set.Quote.Append(b)
	}
	return set
}

func TestProcessorEntersOnPriceCrossAndRunsToCompletion(t *testing.T) {
	compiled, err := play.Parse([]byte(priceOnlyPlay))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	bars := []bar.Bar{
		mkExecBar(0, 99, 99, 99, 99),
		mkExecBar(60_000, 99, 102, 99, 101), // crosses the long_entry threshold
		mkExecBar(120_000, 101, 101, 101, 101),
		mkExecBar(180_000, 101, 101, 101, 101),
	}
	set := newTestSet(bars)

	cfg := exchange.DefaultConfig()
	cfg.Leverage = decimal.NewFromFloat(compiled.Raw.Account.MaxLeverage)
	cfg.TakerFeeBps = decimal.NewFromFloat(compiled.Raw.Account.TakerFeeBps)
	cfg.SlippageBps = decimal.NewFromFloat(compiled.Raw.Account.SlippageBps)
	ex := exchange.New(cfg, decimal.NewFromFloat(compiled.Raw.Account.StartingEquity), nil)

	pol := risk.FromRaw(compiled.Raw.Risk, compiled.Raw.Account.MaxLeverage)

	proc, err := NewProcessor(compiled, set, ex, pol, 0)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	result, err := proc.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Equity) != len(bars) {
		t.Fatalf("expected one equity point per exec bar, got %d", len(result.Equity))
	}
	// the close>100 entry fires on exec bar 1 (close=101) and the resulting
	// market order fills at exec bar 2's open, one bar later.
	if ex.Account().Position.IsFlat() {
		t.Fatal("expected an open long position after the close>100 entry fired")
	}
	if ex.Account().Position.StopLoss == nil || ex.Account().Position.TakeProfit == nil {
		t.Fatal("expected the risk policy's SL/TP to be wired onto the position after the entry filled")
	}
}
