package exchange

import (
	"github.com/shopspring/decimal"
)

// Config is the margin model: isolated-USDT, one-way, leverage >= 1,
// configurable maintenance margin rate.
type Config struct {
	Leverage             decimal.Decimal
	MaintenanceMarginRate decimal.Decimal // default 0.005
	TakerFeeBps          decimal.Decimal
	MakerFeeBps          decimal.Decimal
	SlippageBps          decimal.Decimal
	LiquidationFeeBps    decimal.Decimal
	FundingRate          decimal.Decimal // fallback constant rate; overridden per-event by a provider series
}

func DefaultConfig() Config {
	return Config{
		Leverage:              decimal.NewFromInt(1),
		MaintenanceMarginRate: decimal.NewFromFloat(0.005),
		TakerFeeBps:           decimal.NewFromFloat(5.5),
		MakerFeeBps:           decimal.NewFromFloat(2.0),
		SlippageBps:           decimal.NewFromFloat(2.0),
		LiquidationFeeBps:     decimal.NewFromFloat(7.5),
		FundingRate:           decimal.NewFromFloat(0.0001),
	}
}

// Account is the single-symbol isolated-margin ledger: cash balance, the
// one open position, and working orders. Exchange owns state transitions;
// Account is the book of record the invariants in invariants.go check.
type Account struct {
	Cfg            Config
	CashBalance    decimal.Decimal
	StartingEquity decimal.Decimal
	RealizedPnL    decimal.Decimal // cumulative, across closed trades
	Position       Position
	Orders         []*Order
	ClosedTrades   []Trade
}

func NewAccount(cfg Config, startingEquity decimal.Decimal) *Account {
	return &Account{
		Cfg:            cfg,
		CashBalance:    startingEquity,
		StartingEquity: startingEquity,
		Position:       Position{Side: SideFlat},
	}
}

// Equity is cash_balance + unrealized_pnl, which makes the first ledger
// invariant hold by construction; checkInvariants does not test it.
func (a *Account) Equity() decimal.Decimal {
	return a.CashBalance.Add(a.Position.UnrealizedPnL)
}

// PositionNotional is |size| * mark.
func (a *Account) PositionNotional() decimal.Decimal {
	return a.Position.Size.Abs().Mul(a.Position.Mark)
}

// MaintenanceMarginRequirement is MMR * |notional|, the Bybit-style bar
// against which equity is compared for liquidation.
func (a *Account) MaintenanceMarginRequirement() decimal.Decimal {
	return a.PositionNotional().Mul(a.Cfg.MaintenanceMarginRate)
}

// UpdateMark recomputes unrealized PnL and MAE/MFE continuously from the 1m
// path, independent of whether anything triggers this bar.
func (a *Account) UpdateMark(mark decimal.Decimal) {
	a.Position.Mark = mark
	if a.Position.IsFlat() {
		a.Position.UnrealizedPnL = decimal.Zero
		return
	}
	diff := mark.Sub(a.Position.EntryPrice)
	if a.Position.Side == SideShort {
		diff = diff.Neg()
	}
	pnl := diff.Mul(a.Position.Size.Abs())
	a.Position.UnrealizedPnL = pnl

	pnlPct := decimal.Zero
	if !a.Position.EntryPrice.IsZero() {
		pnlPct = pnl.Div(a.Position.EntryPrice.Mul(a.Position.Size.Abs())).Mul(decimal.NewFromInt(100))
	}
	if pnl.LessThan(a.Position.MAE) {
		a.Position.MAE = pnl
		a.Position.MAEPct = pnlPct
	}
	if pnl.GreaterThan(a.Position.MFE) {
		a.Position.MFE = pnl
		a.Position.MFEPct = pnlPct
	}
}
