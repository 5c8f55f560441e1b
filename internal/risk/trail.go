package risk

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/exchange"
)

// Trail recomputes a trailing stop from a caller-supplied high-water mark,
// ratcheting only in the favorable direction: a trailing stop never
// loosens. The engine does not call Trail and tracks no high-water mark,
// so during a run a trailing stop keeps its initial placement.
func (p Policy) Trail(side exchange.Side, highWaterMark, atr, currentStop decimal.Decimal) decimal.Decimal {
	var candidate decimal.Decimal
	switch p.StopLoss.Type {
	case "trailing_atr":
		offset := atr.Mul(decimal.NewFromFloat(p.StopLoss.Value))
		if side == exchange.SideLong {
			candidate = highWaterMark.Sub(offset)
		} else {
			candidate = highWaterMark.Add(offset)
		}
	case "trailing_pct":
		offset := highWaterMark.Mul(decimal.NewFromFloat(p.StopLoss.Value)).Div(decimal.NewFromInt(100))
		if side == exchange.SideLong {
			candidate = highWaterMark.Sub(offset)
		} else {
			candidate = highWaterMark.Add(offset)
		}
	default:
		return currentStop
	}
	if side == exchange.SideLong && candidate.GreaterThan(currentStop) {
		return candidate
	}
	if side == exchange.SideShort && candidate.LessThan(currentStop) {
		return candidate
	}
	return currentStop
}
