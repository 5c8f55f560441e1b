package risk

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/exchange"
	"github.com/sawpanic/backtest-engine/internal/play"
)

func TestPercentEquitySizing(t *testing.T) {
	p := FromRaw(play.RawRisk{
		Sizing:     play.RawSizing{Model: "percent_equity", PercentPct: 50},
		StopLoss:   play.RawStopLoss{Type: "percent", Value: 2},
		TakeProfit: play.RawTakeProfit{Type: "percent", Value: 4},
	}, 1)
	sized, err := p.Evaluate(Intent{Side: exchange.SideLong, EntryPrice: decimal.NewFromInt(100)}, decimal.NewFromInt(1000), decimal.Zero, decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// 50% of 1000 equity at 1x leverage = 500 notional / 100 price = 5 qty
	if !sized.Quantity.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected qty 5, got %s", sized.Quantity)
	}
	if !sized.StopLoss.Equal(decimal.NewFromInt(98)) {
		t.Fatalf("expected sl 98, got %s", sized.StopLoss)
	}
	if !sized.TakeProfit.Equal(decimal.NewFromInt(104)) {
		t.Fatalf("expected tp 104, got %s", sized.TakeProfit)
	}
}

func TestRiskBasedSizingUsesStopDistance(t *testing.T) {
	p := FromRaw(play.RawRisk{
		Sizing:   play.RawSizing{Model: "risk_based", RiskPct: 1},
		StopLoss: play.RawStopLoss{Type: "fixed_points", Value: 10},
	}, 1)
	sized, err := p.Evaluate(Intent{Side: exchange.SideLong, EntryPrice: decimal.NewFromInt(100)}, decimal.NewFromInt(10000), decimal.Zero, decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// risk amount = 1% of 10000 = 100; stop distance = 10 -> qty = 10
	if !sized.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected qty 10, got %s", sized.Quantity)
	}
}

func TestDrawdownGuardBlocksEntry(t *testing.T) {
	p := FromRaw(play.RawRisk{MaxDrawdownPct: 10, Sizing: play.RawSizing{Model: "percent_equity", PercentPct: 10}}, 1)
	_, err := p.Evaluate(Intent{Side: exchange.SideLong, EntryPrice: decimal.NewFromInt(100)}, decimal.NewFromInt(850), decimal.NewFromInt(1000), decimal.NewFromInt(1))
	if err == nil {
		t.Fatal("expected drawdown guard to block an entry at 15% drawdown with a 10% cap")
	}
}

func TestBreakevenSignConvention(t *testing.T) {
	p := Policy{Breakeven: play.RawBreakeven{Enabled: true, TriggerPct: 1, OffsetPct: 0.2}}
	entry := decimal.NewFromInt(100)

	// long: price moved +2% in favor, past the 1% trigger
	stop, moved := p.BreakevenStop(exchange.SideLong, entry, decimal.NewFromInt(102))
	if !moved {
		t.Fatal("expected breakeven to trigger for a long up 2%")
	}
	if !stop.Equal(decimal.NewFromFloat(100.2)) {
		t.Fatalf("expected long breakeven stop 100.2, got %s", stop)
	}

	// short: price moved -2% (down is favorable for shorts)
	stop, moved = p.BreakevenStop(exchange.SideShort, entry, decimal.NewFromInt(98))
	if !moved {
		t.Fatal("expected breakeven to trigger for a short down 2%")
	}
	if !stop.Equal(decimal.NewFromFloat(99.8)) {
		t.Fatalf("expected short breakeven stop 99.8, got %s", stop)
	}
}
