package exchange

import (
	"github.com/shopspring/decimal"
)

// FundingRateSource supplies the historical (or fallback constant) funding
// rate in effect at a settlement timestamp: funding is derived from a
// declared historical funding-rate series when available, falling back to
// Config.FundingRate.
type FundingRateSource interface {
	RateAt(tsMs int64) (decimal.Decimal, bool)
}

// ConstantFundingSource always returns the same rate; used when no
// historical series was supplied to the run.
type ConstantFundingSource struct {
	Rate decimal.Decimal
}

func (c ConstantFundingSource) RateAt(int64) (decimal.Decimal, bool) { return c.Rate, true }

// settleFunding applies a funding payment if tsMs lands on a settlement
// boundary and a position is open. Longs pay positive funding (standard
// perp convention: positive rate -> longs pay shorts).
func (ex *Exchange) settleFunding(tsMs int64) *FundingEvent {
	if ex.acct.Position.IsFlat() {
		return nil
	}
	rate, ok := ex.funding.RateAt(tsMs)
	if !ok {
		rate = ex.acct.Cfg.FundingRate
	}
	notional := ex.acct.PositionNotional()
	sign := decimal.NewFromInt(1)
	if ex.acct.Position.Side == SideShort {
		sign = decimal.NewFromInt(-1)
	}
	payment := notional.Mul(rate).Mul(sign)
	ex.acct.CashBalance = ex.acct.CashBalance.Sub(payment)
	ex.acct.Position.FundingAccrued = ex.acct.Position.FundingAccrued.Add(payment)
	return &FundingEvent{TsMs: tsMs, Rate: rate, PositionNotional: notional, Payment: payment}
}
