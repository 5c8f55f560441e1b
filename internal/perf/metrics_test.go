package perf

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/engine"
	"github.com/sawpanic/backtest-engine/internal/exchange"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func buildResult() *engine.Result {
	return &engine.Result{
		Equity: []engine.EquityPoint{
			{TsClose: 1, Equity: d(1200), Cash: d(1200), Drawdown: d(0), Leverage: d(0)},
			{TsClose: 2, Equity: d(900), Cash: d(900), Drawdown: d(25), Mark: d(100), LiquidationPrice: d(90), Leverage: d(3)},
			{TsClose: 3, Equity: d(1500), Cash: d(1500), Drawdown: d(0), Leverage: d(0)},
		},
		Trades: []exchange.Trade{
			{RealizedPnLUSDT: d(50), EntryFee: d(1), ExitFee: d(1), MAE: d(2), MFE: d(5), DurationBars: 10, ExitReason: exchange.ExitTP},
			{RealizedPnLUSDT: d(-30), EntryFee: d(1), ExitFee: d(1), MAE: d(8), MFE: d(3), DurationBars: 4, ExitReason: exchange.ExitSL},
		},
		Events: []engine.Event{
			{TsMs: 10, Kind: "funding", Detail: exchange.FundingEvent{Payment: d(5)}},
			{TsMs: 20, Kind: "funding", Detail: exchange.FundingEvent{Payment: d(-2)}},
			{TsMs: 30, Kind: "liquidation", Detail: exchange.LiquidationEvent{}},
		},
	}
}

func almostEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}

func TestComputeEquityAndDrawdown(t *testing.T) {
	r := Compute(buildResult(), decimal.NewFromInt(1000))

	if !almostEqual(r.StartingEquity, 1000) {
		t.Fatalf("StartingEquity = %v, want 1000", r.StartingEquity)
	}
	if !almostEqual(r.EndingEquity, 1500) {
		t.Fatalf("EndingEquity = %v, want 1500", r.EndingEquity)
	}
	if !almostEqual(r.PeakEquity, 1500) {
		t.Fatalf("PeakEquity = %v, want 1500", r.PeakEquity)
	}
	if !almostEqual(r.TotalReturnPct, 50) {
		t.Fatalf("TotalReturnPct = %v, want 50", r.TotalReturnPct)
	}
	if !almostEqual(r.MaxDrawdownPct, 25) {
		t.Fatalf("MaxDrawdownPct = %v, want 25", r.MaxDrawdownPct)
	}
	if r.BarsWithPosition != 1 {
		t.Fatalf("BarsWithPosition = %d, want 1", r.BarsWithPosition)
	}
	if !almostEqual(r.AvgLeverage, 3) {
		t.Fatalf("AvgLeverage = %v, want 3", r.AvgLeverage)
	}
	if !almostEqual(r.MaxLeverageUsed, 3) {
		t.Fatalf("MaxLeverageUsed = %v, want 3", r.MaxLeverageUsed)
	}
	if !almostEqual(r.PctBarsWithPosition, 100.0/3.0) {
		t.Fatalf("PctBarsWithPosition = %v, want %v", r.PctBarsWithPosition, 100.0/3.0)
	}
}

func TestComputeLiquidationProximity(t *testing.T) {
	r := Compute(buildResult(), decimal.NewFromInt(1000))

	if !almostEqual(r.MinLiqDistancePct, 10) {
		t.Fatalf("MinLiqDistancePct = %v, want 10", r.MinLiqDistancePct)
	}
	if !almostEqual(r.AvgLiqDistancePct, 10) {
		t.Fatalf("AvgLiqDistancePct = %v, want 10", r.AvgLiqDistancePct)
	}
	if r.BarsNearLiquidation != 1 {
		t.Fatalf("BarsNearLiquidation = %d, want 1", r.BarsNearLiquidation)
	}
	if r.LiquidationCount != 1 {
		t.Fatalf("LiquidationCount = %d, want 1", r.LiquidationCount)
	}
}

func TestComputeTrades(t *testing.T) {
	r := Compute(buildResult(), decimal.NewFromInt(1000))

	if r.WinningTrades != 1 || r.LosingTrades != 1 {
		t.Fatalf("WinningTrades=%d LosingTrades=%d, want 1/1", r.WinningTrades, r.LosingTrades)
	}
	if !almostEqual(r.WinRatePct, 50) {
		t.Fatalf("WinRatePct = %v, want 50", r.WinRatePct)
	}
	if !almostEqual(r.ProfitFactor, 50.0/30.0) {
		t.Fatalf("ProfitFactor = %v, want %v", r.ProfitFactor, 50.0/30.0)
	}
	if !almostEqual(r.ExpectancyUSDT, 10) {
		t.Fatalf("ExpectancyUSDT = %v, want 10", r.ExpectancyUSDT)
	}
	if !almostEqual(r.TotalFeesUSDT, 4) {
		t.Fatalf("TotalFeesUSDT = %v, want 4", r.TotalFeesUSDT)
	}
	if !almostEqual(r.AvgMAEPct, 5) || !almostEqual(r.AvgMFEPct, 4) {
		t.Fatalf("AvgMAEPct=%v AvgMFEPct=%v, want 5/4", r.AvgMAEPct, r.AvgMFEPct)
	}
	if !almostEqual(r.MAEMFERatio, 1.25) {
		t.Fatalf("MAEMFERatio = %v, want 1.25", r.MAEMFERatio)
	}
	if r.ExitsTP != 1 || r.ExitsSL != 1 {
		t.Fatalf("ExitsTP=%d ExitsSL=%d, want 1/1", r.ExitsTP, r.ExitsSL)
	}
	if !almostEqual(r.AvgHoldingBars, 7) || !almostEqual(r.MedianHoldingBars, 7) {
		t.Fatalf("AvgHoldingBars=%v MedianHoldingBars=%v, want 7/7", r.AvgHoldingBars, r.MedianHoldingBars)
	}
	if r.MinHoldingBars != 4 || r.MaxHoldingBars != 10 {
		t.Fatalf("MinHoldingBars=%d MaxHoldingBars=%d, want 4/10", r.MinHoldingBars, r.MaxHoldingBars)
	}
}

func TestComputeFunding(t *testing.T) {
	r := Compute(buildResult(), decimal.NewFromInt(1000))

	if !almostEqual(r.TotalFundingPaidUSDT, 5) {
		t.Fatalf("TotalFundingPaidUSDT = %v, want 5", r.TotalFundingPaidUSDT)
	}
	if !almostEqual(r.TotalFundingReceivedUSDT, 2) {
		t.Fatalf("TotalFundingReceivedUSDT = %v, want 2", r.TotalFundingReceivedUSDT)
	}
	if !almostEqual(r.NetFundingUSDT, -3) {
		t.Fatalf("NetFundingUSDT = %v, want -3", r.NetFundingUSDT)
	}
	if r.FundingEventCount != 2 {
		t.Fatalf("FundingEventCount = %d, want 2", r.FundingEventCount)
	}
	if !almostEqual(r.FundingAsPctOfPnL, -15) {
		t.Fatalf("FundingAsPctOfPnL = %v, want -15", r.FundingAsPctOfPnL)
	}
}

func TestComputeEmptyResult(t *testing.T) {
	r := Compute(&engine.Result{}, decimal.NewFromInt(1000))
	if r.BarsTotal != 0 || r.TotalTrades != 0 {
		t.Fatalf("expected zero-value report for an empty Result, got %+v", r)
	}
}
