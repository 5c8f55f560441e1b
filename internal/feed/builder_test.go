package feed

import (
	"math"
	"testing"

	"github.com/sawpanic/backtest-engine/internal/bar"
	"github.com/sawpanic/backtest-engine/internal/play"
)

const smaPlay = `
version: 1
name: sma_builder_test
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
    params: { length: 3, source: close }
position_policy: long_only
actions:
  long_entry: ["close", ">", 100]
`

func TestBuildPopulatesFeatureOutputs(t *testing.T) {
	compiled, err := play.Parse([]byte(smaPlay))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	bars := []bar.Bar{
		{TsOpen: 0, TsClose: 60_000, Open: 10, High: 10, Low: 10, Close: 10, Volume: 1},
		{TsOpen: 60_000, TsClose: 120_000, Open: 20, High: 20, Low: 20, Close: 20, Volume: 1},
		{TsOpen: 120_000, TsClose: 180_000, Open: 30, High: 30, Low: 30, Close: 30, Volume: 1},
		{TsOpen: 180_000, TsClose: 240_000, Open: 40, High: 40, Low: 40, Close: 40, Volume: 1},
	}

	set, err := Build(compiled, RoleBars{Exec: bars})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if set.Exec.Len() != len(bars) {
		t.Fatalf("expected %d exec bars, got %d", len(bars), set.Exec.Len())
	}

	v0, ok := set.Exec.FeatureOutput("fast_sma", "value", 0)
	if !ok {
		t.Fatal("expected a fast_sma.value output at idx 0")
	}
	if !math.IsNaN(v0) {
		t.Fatalf("expected NaN before the 3-bar warmup completed, got %v", v0)
	}

	v2, ok := set.Exec.FeatureOutput("fast_sma", "value", 2)
	if !ok {
		t.Fatal("expected a fast_sma.value output at idx 2")
	}
	if v2 != 20 {
		t.Fatalf("expected SMA(3) of [10,20,30] == 20, got %v", v2)
	}
}
