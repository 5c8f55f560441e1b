// Package exchange implements the simulated isolated-margin USDT-perpetual
// exchange: order matching, fees, funding settlement, Bybit-style
// liquidation, and the ledger invariants that must hold after every
// 1-minute step.
package exchange

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/bar"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
	SideFlat  Side = "flat"
)

type OrderType string

const (
	OrderMarket      OrderType = "market"
	OrderLimit       OrderType = "limit"
	OrderStopMarket  OrderType = "stop_market"
	OrderStopLimit   OrderType = "stop_limit"
)

type TIF string

const (
	TIFGTC      TIF = "GTC"
	TIFIOC      TIF = "IOC"
	TIFFOK      TIF = "FOK"
	TIFPostOnly TIF = "PostOnly"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderWorking   OrderStatus = "working"
	OrderFilled    OrderStatus = "filled"
	OrderPartial   OrderStatus = "partial"
	OrderCancelled OrderStatus = "cancelled"
	OrderRejected  OrderStatus = "rejected"
	OrderExpired   OrderStatus = "expired"
)

type ExitReason string

const (
	ExitSL          ExitReason = "sl"
	ExitTP          ExitReason = "tp"
	ExitSignal      ExitReason = "signal"
	ExitLiquidation ExitReason = "liquidation"
	ExitEquityFloor ExitReason = "equity_floor"
)

// Order is a submitted instruction, tracked until terminal.
type Order struct {
	ID             string
	Side           Side // the side being opened/closed by this order
	Type           OrderType
	TIF            TIF
	Quantity       decimal.Decimal
	Price          *decimal.Decimal // nil for market
	Trigger        *decimal.Decimal // nil unless stop
	ReduceOnly     bool
	Status         OrderStatus
	SubmittedBar   int
	BarsActive     int
	ExpireAfterBars int // 0 = no expiry
}

func NewOrder(side Side, typ OrderType, tif TIF, qty decimal.Decimal, submittedBar int) *Order {
	return &Order{ID: uuid.NewString(), Side: side, Type: typ, TIF: tif, Quantity: qty, Status: OrderPending, SubmittedBar: submittedBar}
}

// Position is the account's single open isolated-margin position.
type Position struct {
	Side            Side
	Size            decimal.Decimal // signed base units; 0 when flat
	EntryPrice      decimal.Decimal // VWAP of fills
	EntryFee        decimal.Decimal
	EntrySlippage   decimal.Decimal
	MAE             decimal.Decimal // max adverse excursion, USDT
	MFE             decimal.Decimal // max favorable excursion, USDT
	MAEPct          decimal.Decimal
	MFEPct          decimal.Decimal
	FundingAccrued  decimal.Decimal
	StopLoss        *decimal.Decimal
	TakeProfit      *decimal.Decimal
	Mark            decimal.Decimal
	UnrealizedPnL   decimal.Decimal
	EntryBar        int
}

func (p *Position) IsFlat() bool { return p.Side == SideFlat || p.Size.IsZero() }

// Trade is an append-only closed-position record.
type Trade struct {
	ID             string
	EntryPrice     decimal.Decimal
	ExitPrice      decimal.Decimal
	Side           Side
	Size           decimal.Decimal
	EntryTs        int64
	ExitTs         int64
	DurationBars   int
	EntryFee       decimal.Decimal
	ExitFee        decimal.Decimal
	Funding        decimal.Decimal
	RealizedPnLUSDT decimal.Decimal
	MAE            decimal.Decimal
	MFE            decimal.Decimal
	ExitReason     ExitReason
}

// FundingEvent records one funding settlement charge/credit.
type FundingEvent struct {
	TsMs           int64
	Rate           decimal.Decimal
	PositionNotional decimal.Decimal
	Payment        decimal.Decimal // positive = paid out of cash
}

// LiquidationEvent records a forced full-position close.
type LiquidationEvent struct {
	TsMs             int64
	LiquidationPrice decimal.Decimal
	Fee              decimal.Decimal
}

// Fill is a single execution against an order.
type Fill struct {
	OrderID  string
	TsMs     int64
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Fee      decimal.Decimal
	IsEntry  bool
}

// StepResult is the exchange's per-exec-bar output.
type StepResult struct {
	Fills         []Fill
	FundingEvents []FundingEvent
	Liquidations  []LiquidationEvent
	Trades        []Trade
	MarkUpdates   []decimal.Decimal
}

func tfBarStart(b bar.Bar) int64 { return b.TsOpen }
