package exchange

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/bar"
)

// ExitMode decides how a signal-driven exit intent interacts with a
// same-exec-bar SL/TP trigger.
type ExitMode string

const (
	ExitModeSLTPOnly ExitMode = "sl_tp_only" // ignore signal exits entirely
	ExitModeSignal   ExitMode = "signal"     // signal always wins over SL/TP
	ExitModeFirstHit ExitMode = "first_hit"  // whichever occurred first by 1m ts
)

// SetStopLoss/SetTakeProfit are set by the risk policy when an entry fills.
func (ex *Exchange) SetStopLoss(price decimal.Decimal) {
	ex.acct.Position.StopLoss = &price
}

func (ex *Exchange) SetTakeProfit(price decimal.Decimal) {
	ex.acct.Position.TakeProfit = &price
}

// FiredExit records the SL or TP exit that checkTPSL fired on one 1m bar.
// StepMinute uses it only to detect that the position was closed; it is
// not passed on to the engine, which applies exit_mode on its own.
type FiredExit struct {
	TsMs   int64
	Reason ExitReason
}

// checkTPSL inspects bar b's [low, high] path against the open position's
// SL/TP, applying the deterministic intrabar rule: if both would trigger in
// the same 1m bar, SL (the worst case) wins.
func (ex *Exchange) checkTPSL(b bar.Bar) *FiredExit {
	p := &ex.acct.Position
	if p.IsFlat() {
		return nil
	}
	hi := decimal.NewFromFloat(b.High)
	lo := decimal.NewFromFloat(b.Low)

	slHit := p.StopLoss != nil && slTriggered(p.Side, *p.StopLoss, hi, lo)
	tpHit := p.TakeProfit != nil && tpTriggered(p.Side, *p.TakeProfit, hi, lo)

	switch {
	case slHit:
		ex.closeAtPrice(*p.StopLoss, ExitSL, b.TsClose)
		return &FiredExit{TsMs: b.TsClose, Reason: ExitSL}
	case tpHit:
		ex.closeAtPrice(*p.TakeProfit, ExitTP, b.TsClose)
		return &FiredExit{TsMs: b.TsClose, Reason: ExitTP}
	default:
		return nil
	}
}

func slTriggered(side Side, sl decimal.Decimal, hi, lo decimal.Decimal) bool {
	if side == SideLong {
		return lo.LessThanOrEqual(sl)
	}
	return hi.GreaterThanOrEqual(sl)
}

func tpTriggered(side Side, tp decimal.Decimal, hi, lo decimal.Decimal) bool {
	if side == SideLong {
		return hi.GreaterThanOrEqual(tp)
	}
	return lo.LessThanOrEqual(tp)
}

func (ex *Exchange) closeAtPrice(price decimal.Decimal, reason ExitReason, tsMs int64) {
	p := ex.acct.Position
	fee := bps(ex.acct.Cfg.TakerFeeBps).Mul(p.Size.Abs()).Mul(price)
	ex.closePartial(p.Size.Abs(), price, fee, reason, tsMs)
}

// CloseSignal closes the entire position in response to a strategy exit
// intent, at the given 1m bar's open (the next-open execution rule), used
// by the engine when exit_mode resolves in the signal's favor.
func (ex *Exchange) CloseSignal(b bar.Bar) {
	p := ex.acct.Position
	if p.IsFlat() {
		return
	}
	price := ex.slippageAdjust(oppositeSide(p.Side), decimal.NewFromFloat(b.Open))
	fee := bps(ex.acct.Cfg.TakerFeeBps).Mul(p.Size.Abs()).Mul(price)
	ex.closePartial(p.Size.Abs(), price, fee, ExitSignal, b.TsClose)
}

func oppositeSide(s Side) Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}
