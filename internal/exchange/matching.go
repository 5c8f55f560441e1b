package exchange

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/bar"
)

const bpsDiv = 10000

func bps(v decimal.Decimal) decimal.Decimal { return v.Div(decimal.NewFromInt(bpsDiv)) }

// SubmitOrder queues an order; it takes effect starting the next 1m open —
// orders submitted by the strategy never fill on the bar that submitted them.
func (ex *Exchange) SubmitOrder(o *Order) {
	o.Status = OrderWorking
	ex.acct.Orders = append(ex.acct.Orders, o)
}

// stepOrders advances every working order against one 1m bar, producing
// fills and mutating the position/cash ledger in place.
func (ex *Exchange) stepOrders(b bar.Bar) []Fill {
	var fills []Fill
	remaining := ex.acct.Orders[:0]
	for _, o := range ex.acct.Orders {
		if o.Status != OrderWorking {
			continue
		}
		o.BarsActive++
		fill, done := ex.tryFill(o, b)
		if fill != nil {
			fills = append(fills, *fill)
			ex.applyFill(o, *fill)
		}
		switch {
		case done && o.Status == OrderWorking:
			o.Status = OrderCancelled
		case o.ExpireAfterBars > 0 && o.BarsActive >= o.ExpireAfterBars && o.Status == OrderWorking:
			o.Status = OrderExpired
		case o.TIF == TIFIOC && fill == nil && o.Status == OrderWorking:
			o.Status = OrderCancelled
		}
		if o.Status == OrderWorking {
			remaining = append(remaining, o)
		}
	}
	ex.acct.Orders = remaining
	return fills
}

// tryFill attempts to execute o against bar b. done reports the order has
// reached a terminal non-working outcome this call (filled, or a FOK/
// PostOnly immediate rejection already applied to o.Status).
func (ex *Exchange) tryFill(o *Order, b bar.Bar) (*Fill, bool) {
	switch o.Type {
	case OrderMarket:
		price := ex.slippageAdjust(o.Side, decimal.NewFromFloat(b.Open))
		return ex.fillAt(o, price, b), true
	case OrderLimit:
		if o.Price == nil {
			o.Status = OrderRejected
			return nil, true
		}
		fillable := decimal.NewFromFloat(b.Low).LessThanOrEqual(*o.Price) && o.Price.LessThanOrEqual(decimal.NewFromFloat(b.High))
		if o.TIF == TIFPostOnly && ex.wouldCross(o, b) {
			o.Status = OrderRejected
			return nil, true
		}
		if !fillable {
			if o.TIF == TIFFOK {
				o.Status = OrderCancelled
				return nil, true
			}
			return nil, false
		}
		return ex.fillAt(o, *o.Price, b), true
	case OrderStopMarket, OrderStopLimit:
		if o.Trigger == nil {
			o.Status = OrderRejected
			return nil, true
		}
		if !ex.triggered(o, b) {
			return nil, false
		}
		if o.Type == OrderStopMarket {
			price := ex.slippageAdjust(o.Side, *o.Trigger)
			return ex.fillAt(o, price, b), true
		}
		if o.Price == nil {
			o.Status = OrderRejected
			return nil, true
		}
		return ex.fillAt(o, *o.Price, b), true
	default:
		o.Status = OrderRejected
		return nil, true
	}
}

func (ex *Exchange) wouldCross(o *Order, b bar.Bar) bool {
	if o.Price == nil {
		return false
	}
	if o.Side == SideLong {
		return o.Price.GreaterThanOrEqual(decimal.NewFromFloat(b.Open))
	}
	return o.Price.LessThanOrEqual(decimal.NewFromFloat(b.Open))
}

func (ex *Exchange) triggered(o *Order, b bar.Bar) bool {
	hi := decimal.NewFromFloat(b.High)
	lo := decimal.NewFromFloat(b.Low)
	if o.Side == SideLong {
		return hi.GreaterThanOrEqual(*o.Trigger)
	}
	return lo.LessThanOrEqual(*o.Trigger)
}

func (ex *Exchange) slippageAdjust(side Side, price decimal.Decimal) decimal.Decimal {
	adj := bps(ex.acct.Cfg.SlippageBps).Mul(price)
	if side == SideLong {
		return price.Add(adj)
	}
	return price.Sub(adj)
}

func (ex *Exchange) fillAt(o *Order, price decimal.Decimal, b bar.Bar) *Fill {
	isEntry := ex.acct.Position.IsFlat() || ex.acct.Position.Side == o.Side
	fee := bps(ex.acct.Cfg.TakerFeeBps).Mul(o.Quantity).Mul(price)
	o.Status = OrderFilled
	return &Fill{OrderID: o.ID, TsMs: b.TsClose, Price: price, Quantity: o.Quantity, Fee: fee, IsEntry: isEntry}
}

// applyFill mutates position and cash for a single fill, handling entry
// VWAP averaging, reduction, and flip-through-flat as two fills.
func (ex *Exchange) applyFill(o *Order, f Fill) {
	p := &ex.acct.Position
	if p.IsFlat() {
		p.Side = o.Side
		p.Size = f.Quantity
		p.EntryPrice = f.Price
		p.EntryFee = f.Fee
		p.EntryBar = ex.execBarIdx
		ex.acct.CashBalance = ex.acct.CashBalance.Sub(f.Fee)
		return
	}
	if p.Side == o.Side {
		totalNotional := p.EntryPrice.Mul(p.Size).Add(f.Price.Mul(f.Quantity))
		p.Size = p.Size.Add(f.Quantity)
		p.EntryPrice = totalNotional.Div(p.Size)
		p.EntryFee = p.EntryFee.Add(f.Fee)
		ex.acct.CashBalance = ex.acct.CashBalance.Sub(f.Fee)
		return
	}
	// closing or reducing an opposite-side fill
	closeQty := decimal.Min(f.Quantity, p.Size)
	ex.closePartial(closeQty, f.Price, f.Fee.Mul(closeQty).Div(f.Quantity), ExitSignal, f.TsMs)
	leftover := f.Quantity.Sub(closeQty)
	if leftover.GreaterThan(decimal.Zero) {
		// flipped through flat: remainder opens a new position on o.Side
		p.Side = o.Side
		p.Size = leftover
		p.EntryPrice = f.Price
		p.EntryFee = f.Fee.Mul(leftover).Div(f.Quantity)
		p.EntryBar = ex.execBarIdx
		ex.acct.CashBalance = ex.acct.CashBalance.Sub(p.EntryFee)
	}
}

// closePartial realizes PnL on closeQty of the open position at exitPrice,
// pro-rating entry_fee, and appends a Trade.
func (ex *Exchange) closePartial(closeQty, exitPrice, exitFee decimal.Decimal, reason ExitReason, tsMs int64) {
	p := &ex.acct.Position
	if closeQty.IsZero() {
		return
	}
	diff := exitPrice.Sub(p.EntryPrice)
	if p.Side == SideShort {
		diff = diff.Neg()
	}
	realized := diff.Mul(closeQty)
	proRatedEntryFee := p.EntryFee.Mul(closeQty).Div(p.Size)

	ex.acct.CashBalance = ex.acct.CashBalance.Add(realized).Sub(exitFee)

	trade := Trade{
		ID:              ex.newID(),
		EntryPrice:      p.EntryPrice,
		ExitPrice:       exitPrice,
		Side:            p.Side,
		Size:            closeQty,
		EntryTs:         int64(p.EntryBar),
		ExitTs:          tsMs,
		DurationBars:    ex.execBarIdx - p.EntryBar,
		EntryFee:        proRatedEntryFee,
		ExitFee:         exitFee,
		Funding:         p.FundingAccrued.Mul(closeQty).Div(p.Size),
		RealizedPnLUSDT: realized.Sub(proRatedEntryFee).Sub(exitFee),
		MAE:             p.MAE,
		MFE:             p.MFE,
		ExitReason:      reason,
	}
	ex.closedTrades = append(ex.closedTrades, trade)
	ex.acct.ClosedTrades = append(ex.acct.ClosedTrades, trade)
	ex.acct.RealizedPnL = ex.acct.RealizedPnL.Add(trade.RealizedPnLUSDT)

	p.Size = p.Size.Sub(closeQty)
	p.EntryFee = p.EntryFee.Sub(proRatedEntryFee)
	p.FundingAccrued = p.FundingAccrued.Sub(trade.Funding)
	if p.Size.LessThanOrEqual(decimal.Zero) {
		*p = Position{Side: SideFlat}
	}
}
