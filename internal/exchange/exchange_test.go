package exchange

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/bar"
)

func mkBar(tsOpen int64, o, h, l, c float64) bar.Bar {
	return bar.Bar{TsOpen: tsOpen, TsClose: tsOpen + 60_000, Open: o, High: h, Low: l, Close: c, Volume: 1}
}

func newTestExchange(equity float64) *Exchange {
	cfg := DefaultConfig()
	cfg.Leverage = decimal.NewFromInt(10)
	return New(cfg, decimal.NewFromFloat(equity), nil)
}

func TestMarketEntryFillsAtNextOpen(t *testing.T) {
	ex := newTestExchange(1000)
	ex.SubmitOrder(NewOrder(SideLong, OrderMarket, TIFGTC, decimal.NewFromFloat(0.01), 0))
	bars := []bar.Bar{mkBar(0, 100, 101, 99, 100.5)}
	res, err := ex.ProcessBar(0, bars)
	if err != nil {
		t.Fatalf("ProcessBar: %v", err)
	}
	if len(res.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(res.Fills))
	}
	if ex.Account().Position.Side != SideLong {
		t.Fatalf("expected long position, got %s", ex.Account().Position.Side)
	}
}

func TestStopLossWinsOverTakeProfitSameBar(t *testing.T) {
	ex := newTestExchange(1000)
	ex.SubmitOrder(NewOrder(SideLong, OrderMarket, TIFGTC, decimal.NewFromFloat(0.01), 0))
	if _, err := ex.ProcessBar(0, []bar.Bar{mkBar(0, 100, 100, 100, 100)}); err != nil {
		t.Fatalf("entry bar: %v", err)
	}
	sl := decimal.NewFromFloat(95)
	tp := decimal.NewFromFloat(110)
	ex.SetStopLoss(sl)
	ex.SetTakeProfit(tp)

	// a bar whose range touches both SL and TP; SL must win.
	res, err := ex.ProcessBar(1, []bar.Bar{mkBar(60_000, 100, 115, 90, 100)})
	if err != nil {
		t.Fatalf("ProcessBar: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("expected exactly 1 trade, got %d", len(res.Trades))
	}
	if res.Trades[0].ExitReason != ExitSL {
		t.Fatalf("expected sl exit, got %s", res.Trades[0].ExitReason)
	}
}

func TestFundingSettlementChargesLongs(t *testing.T) {
	ex := newTestExchange(1000)
	ex.SubmitOrder(NewOrder(SideLong, OrderMarket, TIFGTC, decimal.NewFromFloat(0.01), 0))
	if _, err := ex.ProcessBar(0, []bar.Bar{mkBar(0, 100, 100, 100, 100)}); err != nil {
		t.Fatalf("entry bar: %v", err)
	}
	cashBefore := ex.Account().CashBalance
	fundingTs := int64(86_400_000 - 60_000) // 1m bar whose ts_close is 00:00 UTC
	res, err := ex.ProcessBar(1, []bar.Bar{mkBar(fundingTs, 100, 100, 100, 100)})
	if err != nil {
		t.Fatalf("ProcessBar: %v", err)
	}
	if len(res.FundingEvents) != 1 {
		t.Fatalf("expected exactly 1 funding event, got %d", len(res.FundingEvents))
	}
	if !ex.Account().CashBalance.LessThan(cashBefore) {
		t.Fatalf("expected long position to pay funding, cash did not decrease")
	}
}

func TestLiquidationClosesPositionAndTransitionsFlat(t *testing.T) {
	ex := newTestExchange(100)
	ex.acct.Cfg.Leverage = decimal.NewFromInt(10)
	// 0.9 units at 1000 stays under the 10x cap once the entry fee is paid
	ex.SubmitOrder(NewOrder(SideLong, OrderMarket, TIFGTC, decimal.NewFromFloat(0.9), 0))
	if _, err := ex.ProcessBar(0, []bar.Bar{mkBar(0, 1000, 1000, 1000, 1000)}); err != nil {
		t.Fatalf("entry bar: %v", err)
	}
	// crash the mark far enough to blow through maintenance margin
	res, err := ex.ProcessBar(1, []bar.Bar{mkBar(60_000, 1000, 1000, 700, 700)})
	if err != nil {
		t.Fatalf("ProcessBar: %v", err)
	}
	if len(res.Liquidations) != 1 {
		t.Fatalf("expected exactly 1 liquidation event, got %d", len(res.Liquidations))
	}
	if !ex.Account().Position.IsFlat() {
		t.Fatal("expected position to be flat after liquidation")
	}
}

func TestInvariantCashNeverNegativeOutsideLiquidation(t *testing.T) {
	ex := newTestExchange(1000)
	ex.SubmitOrder(NewOrder(SideLong, OrderMarket, TIFGTC, decimal.NewFromFloat(0.01), 0))
	if _, err := ex.ProcessBar(0, []bar.Bar{mkBar(0, 100, 100, 100, 100)}); err != nil {
		t.Fatalf("ProcessBar: %v", err)
	}
	if ex.Account().CashBalance.LessThan(decimal.Zero) {
		t.Fatal("cash_balance went negative on a simple entry")
	}
}
