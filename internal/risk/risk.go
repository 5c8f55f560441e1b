// Package risk translates a Play's declarative risk block into concrete
// order parameters: position size, stop-loss/take-profit prices, and the
// leverage/drawdown guards applied before an intent reaches the exchange.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/errs"
	"github.com/sawpanic/backtest-engine/internal/exchange"
	"github.com/sawpanic/backtest-engine/internal/play"
)

// Policy is a compiled, ready-to-evaluate risk configuration for one Play.
type Policy struct {
	Sizing      play.RawSizing
	StopLoss    play.RawStopLoss
	TakeProfit  play.RawTakeProfit
	Breakeven   play.RawBreakeven
	MaxDrawdownPct decimal.Decimal
	LeverageCap    decimal.Decimal
}

func FromRaw(r play.RawRisk, accountMaxLeverage float64) Policy {
	leverageCap := r.LeverageCap
	if leverageCap <= 0 {
		leverageCap = accountMaxLeverage
	}
	return Policy{
		Sizing:         r.Sizing,
		StopLoss:       r.StopLoss,
		TakeProfit:     r.TakeProfit,
		Breakeven:      r.Breakeven,
		MaxDrawdownPct: decimal.NewFromFloat(r.MaxDrawdownPct),
		LeverageCap:    decimal.NewFromFloat(leverageCap),
	}
}

// Intent is what the bar processor hands to the risk policy after an entry
// action evaluates true.
type Intent struct {
	Side       exchange.Side
	EntryPrice decimal.Decimal
	ATR        decimal.Decimal // zero if no ATR-based feature is wired
	StructureLevel decimal.Decimal // zero unless stop_loss.type == structure
	HasStructureLevel bool
}

// Sized is the risk policy's output: a concrete order size plus SL/TP
// prices ready to hand to the exchange.
type Sized struct {
	Quantity   decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
}

// Evaluate computes size and SL/TP for one entry intent against the
// account's current equity, applying the leverage cap and drawdown guard.
func (p Policy) Evaluate(in Intent, equity decimal.Decimal, peakEquity decimal.Decimal, leverage decimal.Decimal) (Sized, error) {
	if err := p.checkDrawdownGuard(equity, peakEquity); err != nil {
		return Sized{}, err
	}

	sl, err := p.resolveStopLoss(in)
	if err != nil {
		return Sized{}, err
	}
	tp, err := p.resolveTakeProfit(in, sl)
	if err != nil {
		return Sized{}, err
	}

	qty, err := p.resolveSize(in, sl, equity, leverage)
	if err != nil {
		return Sized{}, err
	}

	return Sized{Quantity: qty, StopLoss: sl, TakeProfit: tp}, nil
}

func (p Policy) checkDrawdownGuard(equity, peakEquity decimal.Decimal) error {
	if p.MaxDrawdownPct.IsZero() || peakEquity.IsZero() {
		return nil
	}
	drawdownPct := peakEquity.Sub(equity).Div(peakEquity).Mul(decimal.NewFromInt(100))
	if drawdownPct.GreaterThanOrEqual(p.MaxDrawdownPct) {
		return errs.New(errs.InvariantError, "max_drawdown_pct guard triggered: drawdown %s%% >= limit %s%%", drawdownPct.StringFixed(2), p.MaxDrawdownPct.StringFixed(2))
	}
	return nil
}

// resolveSize applies the declared sizing model, then clamps notional to
// the effective leverage cap: min(Play leverage_cap, account max_leverage).
func (p Policy) resolveSize(in Intent, sl decimal.Decimal, equity decimal.Decimal, leverage decimal.Decimal) (decimal.Decimal, error) {
	effectiveLev := leverage
	if p.LeverageCap.GreaterThan(decimal.Zero) && p.LeverageCap.LessThan(effectiveLev) {
		effectiveLev = p.LeverageCap
	}

	var notional decimal.Decimal
	switch p.Sizing.Model {
	case "fixed_usdt":
		notional = decimal.NewFromFloat(p.Sizing.FixedUSDT)
	case "risk_based":
		riskAmount := equity.Mul(decimal.NewFromFloat(p.Sizing.RiskPct)).Div(decimal.NewFromInt(100))
		stopDistance := in.EntryPrice.Sub(sl).Abs()
		if stopDistance.IsZero() {
			return decimal.Zero, errs.New(errs.SchemaError, "risk_based sizing requires a non-zero stop distance")
		}
		qty := riskAmount.Div(stopDistance)
		if !in.EntryPrice.IsZero() {
			if maxQty := equity.Mul(effectiveLev).Div(in.EntryPrice); qty.GreaterThan(maxQty) {
				qty = maxQty
			}
		}
		return qty, nil
	case "percent_equity", "":
		pct := p.Sizing.PercentPct
		if pct == 0 {
			pct = 100
		}
		notional = equity.Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100)).Mul(effectiveLev)
	default:
		return decimal.Zero, errs.New(errs.SchemaError, "unknown sizing model %q", p.Sizing.Model)
	}
	maxNotional := equity.Mul(effectiveLev)
	if notional.GreaterThan(maxNotional) {
		notional = maxNotional
	}
	if in.EntryPrice.IsZero() {
		return decimal.Zero, errs.New(errs.SchemaError, "entry price must be positive to derive size from notional")
	}
	return notional.Div(in.EntryPrice), nil
}

func (p Policy) resolveStopLoss(in Intent) (decimal.Decimal, error) {
	sign := decimal.NewFromInt(1)
	if in.Side == exchange.SideShort {
		sign = decimal.NewFromInt(-1)
	}
	switch p.StopLoss.Type {
	case "percent", "":
		pct := p.StopLoss.Value
		if pct == 0 {
			pct = 2
		}
		offset := in.EntryPrice.Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100))
		return in.EntryPrice.Sub(sign.Mul(offset)), nil
	case "fixed_points":
		return in.EntryPrice.Sub(sign.Mul(decimal.NewFromFloat(p.StopLoss.Value))), nil
	case "atr_multiple":
		if in.ATR.IsZero() {
			return decimal.Zero, errs.New(errs.DependencyError, "stop_loss.type=atr_multiple requires an ATR-based feature on this Play")
		}
		offset := in.ATR.Mul(decimal.NewFromFloat(p.StopLoss.Value))
		return in.EntryPrice.Sub(sign.Mul(offset)), nil
	case "structure":
		if !in.HasStructureLevel {
			return decimal.Zero, errs.New(errs.DependencyError, "stop_loss.type=structure requires structure_ref %q to resolve", p.StopLoss.StructureRef)
		}
		return in.StructureLevel, nil
	case "trailing_atr", "trailing_pct":
		// initial placement matches the non-trailing variant; the engine
		// does not call Trail(), so this stop is not ratcheted afterwards.
		if p.StopLoss.Type == "trailing_atr" {
			if in.ATR.IsZero() {
				return decimal.Zero, errs.New(errs.DependencyError, "stop_loss.type=trailing_atr requires an ATR-based feature")
			}
			return in.EntryPrice.Sub(sign.Mul(in.ATR.Mul(decimal.NewFromFloat(p.StopLoss.Value)))), nil
		}
		offset := in.EntryPrice.Mul(decimal.NewFromFloat(p.StopLoss.Value)).Div(decimal.NewFromInt(100))
		return in.EntryPrice.Sub(sign.Mul(offset)), nil
	default:
		return decimal.Zero, errs.New(errs.SchemaError, "unknown stop_loss type %q", p.StopLoss.Type)
	}
}

func (p Policy) resolveTakeProfit(in Intent, sl decimal.Decimal) (decimal.Decimal, error) {
	sign := decimal.NewFromInt(1)
	if in.Side == exchange.SideShort {
		sign = decimal.NewFromInt(-1)
	}
	switch p.TakeProfit.Type {
	case "percent", "":
		pct := p.TakeProfit.Value
		if pct == 0 {
			pct = 4
		}
		offset := in.EntryPrice.Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100))
		return in.EntryPrice.Add(sign.Mul(offset)), nil
	case "fixed_points":
		return in.EntryPrice.Add(sign.Mul(decimal.NewFromFloat(p.TakeProfit.Value))), nil
	case "atr_multiple":
		if in.ATR.IsZero() {
			return decimal.Zero, errs.New(errs.DependencyError, "take_profit.type=atr_multiple requires an ATR-based feature on this Play")
		}
		offset := in.ATR.Mul(decimal.NewFromFloat(p.TakeProfit.Value))
		return in.EntryPrice.Add(sign.Mul(offset)), nil
	case "rr_ratio":
		stopDistance := in.EntryPrice.Sub(sl).Abs()
		offset := stopDistance.Mul(decimal.NewFromFloat(p.TakeProfit.Value))
		return in.EntryPrice.Add(sign.Mul(offset)), nil
	default:
		return decimal.Zero, errs.New(errs.SchemaError, "unknown take_profit type %q", p.TakeProfit.Type)
	}
}
