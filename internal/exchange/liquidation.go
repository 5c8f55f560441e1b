package exchange

import (
	"github.com/shopspring/decimal"
)

// LiquidationPrice computes the Bybit-style bankruptcy price for the
// account's current position: the mark at which initial margin is fully
// consumed by the maintenance margin requirement.
//
//	long:  entry * (1 - 1/leverage + mmr)
//	short: entry * (1 + 1/leverage - mmr)
func (a *Account) LiquidationPrice() decimal.Decimal {
	if a.Position.IsFlat() {
		return decimal.Zero
	}
	one := decimal.NewFromInt(1)
	invLev := one.Div(a.Cfg.Leverage)
	if a.Position.Side == SideLong {
		return a.Position.EntryPrice.Mul(one.Sub(invLev).Add(a.Cfg.MaintenanceMarginRate))
	}
	return a.Position.EntryPrice.Mul(one.Add(invLev).Sub(a.Cfg.MaintenanceMarginRate))
}

// checkLiquidation evaluates equity against the maintenance margin
// requirement after the mark has been updated for this 1m bar. It closes
// the entire position at the bankruptcy price minus a liquidation fee and
// emits a LiquidationEvent.
func (ex *Exchange) checkLiquidation(tsMs int64) *LiquidationEvent {
	p := ex.acct.Position
	if p.IsFlat() {
		return nil
	}
	if ex.acct.Equity().GreaterThan(ex.acct.MaintenanceMarginRequirement()) {
		return nil
	}
	liqPrice := ex.acct.LiquidationPrice()
	fee := bps(ex.acct.Cfg.LiquidationFeeBps).Mul(p.Size.Abs()).Mul(liqPrice)
	ex.closePartial(p.Size, liqPrice, fee, ExitLiquidation, tsMs)
	return &LiquidationEvent{TsMs: tsMs, LiquidationPrice: liqPrice, Fee: fee}
}
