package exchange

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/bar"
	"github.com/sawpanic/backtest-engine/internal/errs"
)

// Exchange is the stepping simulated venue: one account, one symbol,
// isolated margin. It consumes the 1-minute quote stream bar by bar and
// produces a StepResult per exec bar via process_bar(bar,
// mark_price_1m_stream) -> StepResult.
type Exchange struct {
	acct         *Account
	funding      FundingRateSource
	execBarIdx   int
	closedTrades []Trade
}

func New(cfg Config, startingEquity decimal.Decimal, funding FundingRateSource) *Exchange {
	if funding == nil {
		funding = ConstantFundingSource{Rate: cfg.FundingRate}
	}
	return &Exchange{acct: NewAccount(cfg, startingEquity), funding: funding}
}

func (ex *Exchange) Account() *Account { return ex.acct }

func (ex *Exchange) newID() string { return uuid.NewString() }

// ProcessBar steps the exchange across every 1-minute bar that makes up one
// exec bar, in order: mark update, TP/SL, working-order matching, funding,
// liquidation. Settlement always precedes the caller's strategy evaluation
// for the same 1m bar. It is a thin loop over StepMinute for callers (tests,
// and any batch replay) that don't need to interleave strategy evaluation
// between individual 1m bars; the bar processor calls StepMinute directly so
// it can build a Snapshot and submit orders between each settlement step.
func (ex *Exchange) ProcessBar(execIdx int, oneMinBars []bar.Bar) (StepResult, error) {
	var res StepResult
	for _, b := range oneMinBars {
		step, err := ex.StepMinute(execIdx, b)
		res.Fills = append(res.Fills, step.Fills...)
		res.FundingEvents = append(res.FundingEvents, step.FundingEvents...)
		res.Liquidations = append(res.Liquidations, step.Liquidations...)
		res.Trades = append(res.Trades, step.Trades...)
		res.MarkUpdates = append(res.MarkUpdates, step.MarkUpdates...)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// StepMinute settles exactly one 1-minute bar against the account: mark
// update, TP/SL, working-order matching, funding, liquidation, followed by
// the invariant check. The bar processor calls this once per 1m bar and
// evaluates strategy actions against the resulting state before the next
// call.
func (ex *Exchange) StepMinute(execIdx int, b bar.Bar) (StepResult, error) {
	ex.execBarIdx = execIdx
	var res StepResult

	mark := decimal.NewFromFloat(b.Close)
	ex.acct.UpdateMark(mark)
	res.MarkUpdates = append(res.MarkUpdates, mark)

	if fired := ex.checkTPSL(b); fired != nil {
		res.Trades = append(res.Trades, ex.closedTrades[len(ex.closedTrades)-1])
		if err := ex.checkInvariants(); err != nil {
			return res, err
		}
		return res, nil
	}

	tradesBefore := len(ex.closedTrades)
	fills := ex.stepOrders(b)
	res.Fills = append(res.Fills, fills...)
	res.Trades = append(res.Trades, ex.closedTrades[tradesBefore:]...)

	if bar.IsFundingSettlement(b.TsClose) {
		if fe := ex.settleFunding(b.TsClose); fe != nil {
			res.FundingEvents = append(res.FundingEvents, *fe)
		}
	}

	if le := ex.checkLiquidation(b.TsClose); le != nil {
		res.Liquidations = append(res.Liquidations, *le)
		res.Trades = append(res.Trades, ex.closedTrades[len(ex.closedTrades)-1])
	}

	if err := ex.checkInvariants(); err != nil {
		return res, err
	}
	return res, nil
}

// DrainTrades returns and clears every trade closed since the last call.
// The bar processor does not call it; it collects closed trades from each
// StepResult's Trades instead.
func (ex *Exchange) DrainTrades() []Trade {
	t := ex.closedTrades
	ex.closedTrades = nil
	return t
}

func wrapInvariant(execIdx int, tsClose int64, format string, args ...any) error {
	return errs.New(errs.InvariantError, format, args...).At(execIdx, tsClose, "")
}
