package preflight

import (
	"context"
	"testing"

	"github.com/sawpanic/backtest-engine/internal/bar"
	"github.com/sawpanic/backtest-engine/internal/play"
)

const warmupPlay = `
version: 1
name: warmup_test
symbol: BTCUSDT
timeframes:
  exec: 1m
account:
  starting_equity: 10000
  max_leverage: 1
  taker_fee_bps: 0
  slippage_bps: 0
features:
  fast_sma:
    indicator_type: sma
    params: { length: 5, source: close }
position_policy: long_only
actions:
  long_entry: ["close", ">", 100]
`

type fakeProvider struct {
	bars     []bar.Bar
	funding  []FundingPoint
}

func (f fakeProvider) GetOHLCV(ctx context.Context, symbol string, tf bar.Timeframe, startMs, endMs int64) ([]bar.Bar, error) {
	return f.bars, nil
}

func (f fakeProvider) GetFunding(ctx context.Context, symbol string, startMs, endMs int64) ([]FundingPoint, error) {
	return f.funding, nil
}

func mkBar(tsOpen int64) bar.Bar {
	return bar.Bar{TsOpen: tsOpen, TsClose: tsOpen + 60_000, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}
}

func TestRunResolvesSimStartIdxPastWarmup(t *testing.T) {
	compiled, err := play.Parse([]byte(warmupPlay))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var bars []bar.Bar
	for i := 0; i < 10; i++ {
		bars = append(bars, mkBar(int64(i)*60_000))
	}
	p := fakeProvider{bars: bars}

	res, err := Run(context.Background(), p, compiled, 0, 600_000, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.SimStartIdx != 5 {
		t.Fatalf("expected sim_start_idx=5 (SMA(5) warmup), got %d", res.SimStartIdx)
	}
	if res.Set.Exec.Len() != len(bars) {
		t.Fatalf("expected %d exec bars in the built Feed Store, got %d", len(bars), res.Set.Exec.Len())
	}
}

func TestDetectGapsFindsMissingSpan(t *testing.T) {
	bars := []bar.Bar{mkBar(0), mkBar(60_000), mkBar(240_000)} // hole at 120_000, 180_000
	gaps, err := DetectGaps(bar.Timeframe("1m"), bars)
	if err != nil {
		t.Fatalf("DetectGaps: %v", err)
	}
	if len(gaps) != 1 || gaps[0].MissingCount != 2 {
		t.Fatalf("expected one gap of 2 missing bars, got %+v", gaps)
	}
}
