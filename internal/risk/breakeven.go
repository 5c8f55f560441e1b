package risk

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/exchange"
)

// BreakevenStop: once price has moved trigger_pct in the position's favor,
// the stop is moved to
// entry*(1 + offset_pct/100) for longs and entry*(1 - offset_pct/100) for
// shorts — offset_pct is a favorable-direction offset from entry, not a
// magnitude-only percent, so a positive offset always locks in profit
// rather than merely reducing loss.
//
// It returns (newStop, moved); moved is false if the trigger hasn't been
// reached yet or the policy has no breakeven rule.
func (p Policy) BreakevenStop(side exchange.Side, entry, mark decimal.Decimal) (decimal.Decimal, bool) {
	if !p.Breakeven.Enabled {
		return decimal.Zero, false
	}
	trigger := decimal.NewFromFloat(p.Breakeven.TriggerPct).Div(decimal.NewFromInt(100))
	offset := decimal.NewFromFloat(p.Breakeven.OffsetPct).Div(decimal.NewFromInt(100))

	favorableMove := mark.Sub(entry).Div(entry)
	sign := decimal.NewFromInt(1)
	if side == exchange.SideShort {
		favorableMove = favorableMove.Neg()
		sign = decimal.NewFromInt(-1)
	}
	if favorableMove.LessThan(trigger) {
		return decimal.Zero, false
	}
	return entry.Mul(decimal.NewFromInt(1).Add(sign.Mul(offset))), true
}
