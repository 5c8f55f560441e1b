// Package engine implements the bar processor: the per-exec-bar,
// per-1-minute-step loop that settles the exchange, builds a Snapshot,
// evaluates a Play's compiled actions, and routes resulting intents
// through the Risk Policy into the Simulated Exchange.
package engine

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/bar"
	"github.com/sawpanic/backtest-engine/internal/dsl/eval"
	"github.com/sawpanic/backtest-engine/internal/exchange"
	"github.com/sawpanic/backtest-engine/internal/feed"
	"github.com/sawpanic/backtest-engine/internal/play"
	"github.com/sawpanic/backtest-engine/internal/risk"
	"github.com/sawpanic/backtest-engine/internal/snapshot"
)

// Processor drives one backtest run for one compiled Play against one
// pre-built Feed Store.
type Processor struct {
	play       *play.Compiled
	set        *feed.Set
	ex         *exchange.Exchange
	riskPolicy risk.Policy
	warmupBars int
	atrFeature string // "" if the Play declares no ATR-typed feature

	structures    map[string]builtStructure
	lastPushedIdx map[feed.Role]int

	history       []*snapshot.Snapshot
	currentExecIdx int

	pendingRisk map[string]risk.Sized // order id -> sized SL/TP awaiting fill
	peakEquity  decimal.Decimal

	result Result
}

// NewProcessor wires a compiled Play to a populated Feed Store, an exchange
// seeded with the Play's account block, and the derived risk policy.
// warmupBars is resolved upstream by internal/preflight (sim_start_idx);
// exec bars before it advance structures only, with entries and exits held
// off until the count satisfies warmup.
func NewProcessor(p *play.Compiled, set *feed.Set, ex *exchange.Exchange, pol risk.Policy, warmupBars int) (*Processor, error) {
	structures, err := buildStructures(p.Raw.Structures)
	if err != nil {
		return nil, err
	}
	proc := &Processor{
		play:          p,
		set:           set,
		ex:            ex,
		riskPolicy:    pol,
		warmupBars:    warmupBars,
		structures:    structures,
		lastPushedIdx: map[feed.Role]int{feed.RoleMed: -1, feed.RoleHigh: -1},
		history:       make([]*snapshot.Snapshot, set.Exec.Len()),
		pendingRisk:   map[string]risk.Sized{},
		peakEquity:    ex.Account().StartingEquity,
	}
	for id, f := range p.Raw.Features {
		if f.IndicatorType == "atr" {
			proc.atrFeature = id
			break
		}
	}
	return proc, nil
}

// Run walks every exec bar in the Feed Store, advancing structures on every
// bar and, once warmup is satisfied, stepping the exchange minute-by-minute
// and evaluating the Play's actions against each resulting snapshot.
func (p *Processor) Run() (*Result, error) {
	for execIdx := 0; execIdx < p.set.Exec.Len(); execIdx++ {
		execBar := p.set.Exec.Bar(execIdx)
		p.advanceStructures(execIdx, execBar)

		if execIdx < p.warmupBars {
			continue
		}

		p.currentExecIdx = execIdx
		oneMin := p.set.Quote.Range(execBar.TsOpen, execBar.TsClose)
		terminal := false
		for _, b1m := range oneMin {
			step, err := p.ex.StepMinute(execIdx, b1m)
			if err != nil {
				return nil, err
			}
			p.recordStep(step)
			p.applyPendingRisk(step)

			if len(step.Liquidations) > 0 {
				terminal = true
			}
			if terminal {
				break
			}

			snap := p.buildSnapshot(execIdx, b1m)
			p.history[execIdx] = snap
			p.evaluateAndAct(execIdx, b1m, snap)
		}

		p.recordEquityPoint(execBar.TsClose)
	}
	return &p.result, nil
}

// advanceStructures pushes every live Detector whose own timeframe role has
// closed a new bar as of execBar. This runs regardless of warmup, so
// structures are fully formed by the time entries and exits become active.
func (p *Processor) advanceStructures(execIdx int, execBar bar.Bar) {
	medIdx, medOK := p.set.HTFIdxForExec(feed.RoleMed, execBar.TsClose)
	medAdvanced := medOK && medIdx > p.lastPushedIdx[feed.RoleMed]
	highIdx, highOK := p.set.HTFIdxForExec(feed.RoleHigh, execBar.TsClose)
	highAdvanced := highOK && highIdx > p.lastPushedIdx[feed.RoleHigh]

	for _, bs := range p.structures {
		switch bs.Role {
		case feed.RoleExec:
			bs.Detector.Push(execBar)
		case feed.RoleMed:
			if medAdvanced {
				bs.Detector.Push(p.set.Med.Bar(medIdx))
			}
		case feed.RoleHigh:
			if highAdvanced {
				bs.Detector.Push(p.set.High.Bar(highIdx))
			}
		}
	}
	if medAdvanced {
		p.lastPushedIdx[feed.RoleMed] = medIdx
	}
	if highAdvanced {
		p.lastPushedIdx[feed.RoleHigh] = highIdx
	}
}

func (p *Processor) buildSnapshot(execIdx int, b1m bar.Bar) *snapshot.Snapshot {
	acct := p.ex.Account()
	mark, _ := acct.Position.Mark.Float64()
	snap := snapshot.New(p.set, execIdx, b1m, mark, b1m.Close)
	for id, bs := range p.structures {
		if bs.IsZoned {
			snap.SetZoneFields(id, zoneSlotValues(bs))
			continue
		}
		snap.SetStructureFields(id, structureFieldValues(bs))
	}
	return snap
}

func (p *Processor) recordStep(step exchange.StepResult) {
	p.result.Trades = append(p.result.Trades, step.Trades...)
	for _, fe := range step.FundingEvents {
		p.result.Events = append(p.result.Events, Event{TsMs: fe.TsMs, Kind: "funding", Detail: fe})
	}
	for _, le := range step.Liquidations {
		p.result.Events = append(p.result.Events, Event{TsMs: le.TsMs, Kind: "liquidation", Detail: le})
	}
	for _, t := range step.Trades {
		if t.ExitReason == exchange.ExitSL || t.ExitReason == exchange.ExitTP {
			p.result.Events = append(p.result.Events, Event{TsMs: t.ExitTs, Kind: string(t.ExitReason), Detail: t})
		}
	}
}

// applyPendingRisk wires the risk-computed SL/TP onto the exchange once an
// entry order this step's settlement actually filled; exit_mode "signal"
// deliberately leaves SL/TP unset so only a signal action can ever close
// the position (see DESIGN.md).
func (p *Processor) applyPendingRisk(step exchange.StepResult) {
	for _, f := range step.Fills {
		sized, ok := p.pendingRisk[f.OrderID]
		if !ok || !f.IsEntry {
			continue
		}
		delete(p.pendingRisk, f.OrderID)
		if exchange.ExitMode(p.play.Raw.ExitMode) == exchange.ExitModeSignal {
			continue
		}
		p.ex.SetStopLoss(sized.StopLoss)
		p.ex.SetTakeProfit(sized.TakeProfit)
	}
}

func (p *Processor) recordEquityPoint(tsClose int64) {
	acct := p.ex.Account()
	equity := acct.Equity()
	if equity.GreaterThan(p.peakEquity) {
		p.peakEquity = equity
	}
	drawdown := decimal.Zero
	if p.peakEquity.GreaterThan(decimal.Zero) {
		drawdown = p.peakEquity.Sub(equity).Div(p.peakEquity).Mul(decimal.NewFromInt(100))
	}
	liqPrice := decimal.Zero
	leverage := decimal.Zero
	if !acct.Position.IsFlat() {
		liqPrice = acct.LiquidationPrice()
		if equity.GreaterThan(decimal.Zero) {
			leverage = acct.PositionNotional().Div(equity)
		}
	}
	p.result.Equity = append(p.result.Equity, EquityPoint{
		TsClose:          tsClose,
		Equity:           equity,
		Cash:             acct.CashBalance,
		Unrealized:       acct.Position.UnrealizedPnL,
		Drawdown:         drawdown,
		Mark:             acct.Position.Mark,
		LiquidationPrice: liqPrice,
		Leverage:         leverage,
	})
}

// evaluateAndAct evaluates exits before entries, long/short per
// position_policy, then routes any fired entry through the risk policy and
// submits a market order.
func (p *Processor) evaluateAndAct(execIdx int, b1m bar.Bar, snap *snapshot.Snapshot) {
	cache := eval.NewSetupCache(execIdx)
	pos := p.ex.Account().Position

	if !pos.IsFlat() && exchange.ExitMode(p.play.Raw.ExitMode) != exchange.ExitModeSLTPOnly {
		exitKey := "long_exit"
		if pos.Side == exchange.SideShort {
			exitKey = "short_exit"
		}
		if expr, ok := p.play.Actions[exitKey]; ok {
			res := eval.Evaluate(expr, snap, p, cache)
			if res.Ok && res.Value {
				p.ex.CloseSignal(b1m)
				p.result.Events = append(p.result.Events, Event{TsMs: b1m.TsClose, Kind: "signal_exit"})
			}
		}
	}

	pos = p.ex.Account().Position
	if !pos.IsFlat() {
		return
	}

	policy := p.play.Raw.PositionPolicy
	allowLong := policy == "" || policy == "long_only" || policy == "both"
	allowShort := policy == "short_only" || policy == "both"

	if allowLong {
		if expr, ok := p.play.Actions["long_entry"]; ok {
			res := eval.Evaluate(expr, snap, p, cache)
			if res.Ok && res.Value {
				p.submitEntry(exchange.SideLong, execIdx, b1m, snap)
				return
			}
		}
	}
	if allowShort {
		if expr, ok := p.play.Actions["short_entry"]; ok {
			res := eval.Evaluate(expr, snap, p, cache)
			if res.Ok && res.Value {
				p.submitEntry(exchange.SideShort, execIdx, b1m, snap)
			}
		}
	}
}

func (p *Processor) submitEntry(side exchange.Side, execIdx int, b1m bar.Bar, snap *snapshot.Snapshot) {
	entryEstimate := decimal.NewFromFloat(b1m.Close)
	intent := risk.Intent{Side: side, EntryPrice: entryEstimate}

	if p.atrFeature != "" {
		v := snap.Resolve(snapshot.Ref{NS: snapshot.NSIndicator, ID: p.atrFeature, TFRole: feed.RoleExec})
		if !v.Missing {
			intent.ATR = decimal.NewFromFloat(v.Num)
		}
	}
	if p.riskPolicy.StopLoss.Type == "structure" {
		id, field := splitStructureRef(p.riskPolicy.StopLoss.StructureRef)
		v := snap.Resolve(snapshot.Ref{NS: snapshot.NSStructure, ID: id, Field: field, ZoneIdx: -1})
		if !v.Missing {
			intent.HasStructureLevel = true
			intent.StructureLevel = decimal.NewFromFloat(v.Num)
		}
	}

	acct := p.ex.Account()
	sized, err := p.riskPolicy.Evaluate(intent, acct.Equity(), p.peakEquity, acct.Cfg.Leverage)
	if err != nil || sized.Quantity.LessThanOrEqual(decimal.Zero) {
		return
	}

	order := exchange.NewOrder(side, exchange.OrderMarket, exchange.TIFGTC, sized.Quantity, execIdx)
	p.ex.SubmitOrder(order)
	p.pendingRisk[order.ID] = sized
}

func splitStructureRef(ref string) (id, field string) {
	parts := strings.SplitN(ref, ".", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return ref, ""
}
