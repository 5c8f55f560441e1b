package verify

import (
	"context"
	"testing"

	"github.com/sawpanic/backtest-engine/internal/bar"
	"github.com/sawpanic/backtest-engine/internal/play"
	"github.com/sawpanic/backtest-engine/internal/preflight"
)

const verifyPlay = `
version: 1
name: verify_test
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

type fakeProvider struct {
	bars []bar.Bar
}

func (f fakeProvider) GetOHLCV(ctx context.Context, symbol string, tf bar.Timeframe, startMs, endMs int64) ([]bar.Bar, error) {
	return f.bars, nil
}

func (f fakeProvider) GetFunding(ctx context.Context, symbol string, startMs, endMs int64) ([]preflight.FundingPoint, error) {
	return nil, nil
}

func mkBar(tsOpen int64, o, h, l, c float64) bar.Bar {
	return bar.Bar{TsOpen: tsOpen, TsClose: tsOpen + 60_000, Open: o, High: h, Low: l, Close: c, Volume: 1}
}

func TestVerifyFindsNoMismatchOnDeterministicRun(t *testing.T) {
	compiled, err := play.Parse([]byte(verifyPlay))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	bars := []bar.Bar{
		mkBar(0, 99, 99, 99, 99),
		mkBar(60_000, 99, 102, 99, 101),
		mkBar(120_000, 101, 101, 101, 101),
		mkBar(180_000, 101, 101, 101, 101),
	}
	p := fakeProvider{bars: bars}

	report, err := Verify(context.Background(), p, compiled, 0, 240_000, true)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !report.Deterministic() {
		t.Fatalf("expected deterministic run, got mismatches: %+v", report.Mismatches)
	}
}
