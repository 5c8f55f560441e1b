// Package perf computes the deterministic metrics.json record from a
// finished internal/engine.Result: equity/drawdown, trade stats,
// risk-adjusted and tail-risk measures, leverage, MAE/MFE, entry friction,
// funding, margin stress, liquidation proximity, and holding periods.
package perf

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/engine"
	"github.com/sawpanic/backtest-engine/internal/exchange"
)

// Report is the metrics.json record. Every field is a plain float64 or int
// so json.Marshal with sorted keys (Go's default for maps; struct field
// order is fixed here) produces byte-identical output for two runs of the
// same Play over the same data.
type Report struct {
	// Equity
	StartingEquity float64 `json:"starting_equity"`
	EndingEquity   float64 `json:"ending_equity"`
	PeakEquity     float64 `json:"peak_equity"`
	TotalReturnPct float64 `json:"total_return_pct"`
	BarsTotal      int     `json:"bars_total"`

	// Drawdown
	MaxDrawdownPct         float64 `json:"max_drawdown_pct"`
	MaxDrawdownDurationBars int    `json:"max_drawdown_duration_bars"`
	AvgDrawdownPct         float64 `json:"avg_drawdown_pct"`
	RecoveryFactor         float64 `json:"recovery_factor"`

	// Trades
	TotalTrades        int     `json:"total_trades"`
	WinningTrades       int    `json:"winning_trades"`
	LosingTrades        int    `json:"losing_trades"`
	WinRatePct          float64 `json:"win_rate_pct"`
	AvgWinUSDT          float64 `json:"avg_win_usdt"`
	AvgLossUSDT         float64 `json:"avg_loss_usdt"`
	LargestWinUSDT      float64 `json:"largest_win_usdt"`
	LargestLossUSDT     float64 `json:"largest_loss_usdt"`
	ProfitFactor        float64 `json:"profit_factor"`
	ExpectancyUSDT      float64 `json:"expectancy_usdt"`
	GrossProfitUSDT     float64 `json:"gross_profit_usdt"`
	GrossLossUSDT       float64 `json:"gross_loss_usdt"`

	// Exit reason breakdown
	ExitsSL          int `json:"exits_sl"`
	ExitsTP          int `json:"exits_tp"`
	ExitsSignal      int `json:"exits_signal"`
	ExitsLiquidation int `json:"exits_liquidation"`
	ExitsEquityFloor int `json:"exits_equity_floor"`

	// Risk-adjusted
	SharpeRatio float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`
	CalmarRatio float64 `json:"calmar_ratio"`

	// Tail risk, computed over per-exec-bar equity returns
	ReturnSkewness float64 `json:"return_skewness"`
	ReturnKurtosis float64 `json:"return_kurtosis"`
	VaR95Pct       float64 `json:"var_95_pct"`
	CVaR95Pct      float64 `json:"cvar_95_pct"`

	// Leverage
	AvgLeverage        float64 `json:"avg_leverage"`
	MaxLeverageUsed    float64 `json:"max_leverage_used"`
	BarsWithPosition   int     `json:"bars_with_position"`
	PctBarsWithPosition float64 `json:"pct_bars_with_position"`

	// MAE / MFE (averaged in ROI percent terms over closed trades)
	AvgMAEPct   float64 `json:"avg_mae_pct"`
	AvgMFEPct   float64 `json:"avg_mfe_pct"`
	MAEMFERatio float64 `json:"mae_mfe_ratio"`

	// Entry friction
	TotalEntryFeesUSDT float64 `json:"total_entry_fees_usdt"`
	TotalExitFeesUSDT  float64 `json:"total_exit_fees_usdt"`
	TotalFeesUSDT      float64 `json:"total_fees_usdt"`
	AvgFeePerTradeUSDT float64 `json:"avg_fee_per_trade_usdt"`

	// Funding
	TotalFundingPaidUSDT     float64 `json:"total_funding_paid_usdt"`
	TotalFundingReceivedUSDT float64 `json:"total_funding_received_usdt"`
	NetFundingUSDT           float64 `json:"net_funding_usdt"`
	FundingEventCount        int     `json:"funding_event_count"`
	FundingAsPctOfPnL        float64 `json:"funding_as_pct_of_pnl"`

	// Margin stress / liquidation proximity, sampled per exec bar while in
	// a position
	MinLiqDistancePct  float64 `json:"min_liq_distance_pct"`
	AvgLiqDistancePct  float64 `json:"avg_liq_distance_pct"`
	BarsNearLiquidation int    `json:"bars_near_liquidation"`
	LiquidationCount    int    `json:"liquidation_count"`

	// Holding periods (bars)
	AvgHoldingBars    float64 `json:"avg_holding_bars"`
	MedianHoldingBars float64 `json:"median_holding_bars"`
	MaxHoldingBars    int     `json:"max_holding_bars"`
	MinHoldingBars    int     `json:"min_holding_bars"`
}

// nearLiquidationThresholdPct marks a bar "near liquidation" once the mark
// price is within this percent of the account's bankruptcy price.
const nearLiquidationThresholdPct = 10.0

// Compute derives the full Report from a finished Run and the account's
// configured starting equity.
func Compute(res *engine.Result, startingEquity decimal.Decimal) Report {
	var r Report
	r.BarsTotal = len(res.Equity)
	r.TotalTrades = len(res.Trades)
	r.StartingEquity, _ = startingEquity.Float64()

	computeEquity(&r, res.Equity)
	computeTrades(&r, res.Trades)
	computeFunding(&r, res)
	computeLiquidationProximity(&r, res.Equity)
	return r
}

func computeEquity(r *Report, eq []engine.EquityPoint) {
	if len(eq) == 0 {
		return
	}
	end, _ := eq[len(eq)-1].Equity.Float64()
	r.EndingEquity = end

	peak := 0.0
	maxDD := 0.0
	ddBars, maxDDBars, curDDBars := 0, 0, 0
	sumDD := 0.0
	returns := make([]float64, 0, len(eq))
	prevEquity := r.StartingEquity
	barsWithPos := 0
	sumLev, maxLev := 0.0, 0.0

	for _, pt := range eq {
		e, _ := pt.Equity.Float64()
		if e > peak {
			peak = e
		}
		dd, _ := pt.Drawdown.Float64()
		sumDD += dd
		if dd > maxDD {
			maxDD = dd
		}
		if dd > 0 {
			curDDBars++
			if curDDBars > maxDDBars {
				maxDDBars = curDDBars
			}
		} else {
			curDDBars = 0
		}
		ddBars++

		if prevEquity != 0 {
			returns = append(returns, (e-prevEquity)/prevEquity)
		}
		prevEquity = e

		lev, _ := pt.Leverage.Float64()
		if lev > 0 {
			barsWithPos++
			sumLev += lev
			if lev > maxLev {
				maxLev = lev
			}
		}
	}

	r.PeakEquity = peak
	r.MaxDrawdownPct = maxDD
	r.MaxDrawdownDurationBars = maxDDBars
	if ddBars > 0 {
		r.AvgDrawdownPct = sumDD / float64(ddBars)
	}
	if r.StartingEquity != 0 {
		r.TotalReturnPct = (r.EndingEquity - r.StartingEquity) / r.StartingEquity * 100
	}
	if maxDD > 0 {
		r.RecoveryFactor = r.TotalReturnPct / maxDD
	}
	r.BarsWithPosition = barsWithPos
	if len(eq) > 0 {
		r.PctBarsWithPosition = float64(barsWithPos) / float64(len(eq)) * 100
	}
	if barsWithPos > 0 {
		r.AvgLeverage = sumLev / float64(barsWithPos)
	}
	r.MaxLeverageUsed = maxLev

	computeReturnStats(r, returns)
}

// computeReturnStats derives Sharpe/Sortino/Calmar plus the tail-risk
// moments (skewness, excess kurtosis, historical VaR-95/CVaR-95) from the
// per-exec-bar return series. No third-party statistics library appears
// anywhere in the example pack (grepped; none found), so these are plain
// math/sort — see DESIGN.md for the justification this silence requires.
func computeReturnStats(r *Report, returns []float64) {
	n := len(returns)
	if n == 0 {
		return
	}
	mean := 0.0
	for _, x := range returns {
		mean += x
	}
	mean /= float64(n)

	var variance, m3, m4 float64
	for _, x := range returns {
		d := x - mean
		variance += d * d
		m3 += d * d * d
		m4 += d * d * d * d
	}
	variance /= float64(n)
	stddev := math.Sqrt(variance)

	if stddev > 0 {
		r.SharpeRatio = mean / stddev * math.Sqrt(float64(n))
		r.ReturnSkewness = (m3 / float64(n)) / math.Pow(stddev, 3)
		r.ReturnKurtosis = (m4/float64(n))/math.Pow(variance, 2) - 3
	}

	var downside float64
	downCount := 0
	for _, x := range returns {
		if x < 0 {
			downside += x * x
			downCount++
		}
	}
	if downCount > 0 {
		downDev := math.Sqrt(downside / float64(downCount))
		if downDev > 0 {
			r.SortinoRatio = mean / downDev * math.Sqrt(float64(n))
		}
	}
	if r.MaxDrawdownPct > 0 {
		r.CalmarRatio = r.TotalReturnPct / r.MaxDrawdownPct
	}

	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	idx95 := int(float64(n) * 0.05)
	if idx95 >= n {
		idx95 = n - 1
	}
	r.VaR95Pct = -sorted[idx95] * 100
	tailSum, tailCount := 0.0, 0
	for i := 0; i <= idx95; i++ {
		tailSum += sorted[i]
		tailCount++
	}
	if tailCount > 0 {
		r.CVaR95Pct = -tailSum / float64(tailCount) * 100
	}
}

func computeTrades(r *Report, trades []exchange.Trade) {
	if len(trades) == 0 {
		return
	}
	var grossProfit, grossLoss, sumEntryFee, sumExitFee, sumMAE, sumMFE float64
	var holdBars []int
	largestWin, largestLoss := math.Inf(-1), math.Inf(1)

	for _, t := range trades {
		pnl, _ := t.RealizedPnLUSDT.Float64()
		entryFee, _ := t.EntryFee.Float64()
		exitFee, _ := t.ExitFee.Float64()
		mae, _ := t.MAE.Float64()
		mfe, _ := t.MFE.Float64()

		sumEntryFee += entryFee
		sumExitFee += exitFee
		sumMAE += mae
		sumMFE += mfe
		holdBars = append(holdBars, t.DurationBars)

		if pnl >= 0 {
			r.WinningTrades++
			grossProfit += pnl
			if pnl > largestWin {
				largestWin = pnl
			}
		} else {
			r.LosingTrades++
			grossLoss += -pnl
			if pnl < largestLoss {
				largestLoss = pnl
			}
		}

		switch t.ExitReason {
		case exchange.ExitSL:
			r.ExitsSL++
		case exchange.ExitTP:
			r.ExitsTP++
		case exchange.ExitSignal:
			r.ExitsSignal++
		case exchange.ExitLiquidation:
			r.ExitsLiquidation++
		case exchange.ExitEquityFloor:
			r.ExitsEquityFloor++
		}
	}

	n := float64(len(trades))
	r.GrossProfitUSDT = grossProfit
	r.GrossLossUSDT = grossLoss
	if n > 0 {
		r.WinRatePct = float64(r.WinningTrades) / n * 100
	}
	if r.WinningTrades > 0 {
		r.AvgWinUSDT = grossProfit / float64(r.WinningTrades)
	}
	if r.LosingTrades > 0 {
		r.AvgLossUSDT = grossLoss / float64(r.LosingTrades)
	}
	if largestWin != math.Inf(-1) {
		r.LargestWinUSDT = largestWin
	}
	if largestLoss != math.Inf(1) {
		r.LargestLossUSDT = largestLoss
	}
	if grossLoss > 0 {
		r.ProfitFactor = grossProfit / grossLoss
	}
	r.ExpectancyUSDT = (grossProfit - grossLoss) / n
	r.TotalEntryFeesUSDT = sumEntryFee
	r.TotalExitFeesUSDT = sumExitFee
	r.TotalFeesUSDT = sumEntryFee + sumExitFee
	r.AvgFeePerTradeUSDT = r.TotalFeesUSDT / n
	r.AvgMAEPct = sumMAE / n
	r.AvgMFEPct = sumMFE / n
	if r.AvgMFEPct != 0 {
		r.MAEMFERatio = r.AvgMAEPct / r.AvgMFEPct
	}

	sort.Ints(holdBars)
	sum := 0
	for _, b := range holdBars {
		sum += b
	}
	r.AvgHoldingBars = float64(sum) / n
	r.MedianHoldingBars = median(holdBars)
	if len(holdBars) > 0 {
		r.MinHoldingBars = holdBars[0]
		r.MaxHoldingBars = holdBars[len(holdBars)-1]
	}
}

func median(sorted []int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

func computeFunding(r *Report, res *engine.Result) {
	var paid, received float64
	count := 0
	for _, ev := range res.Events {
		if ev.Kind != "funding" {
			continue
		}
		fe, ok := ev.Detail.(exchange.FundingEvent)
		if !ok {
			continue
		}
		count++
		p, _ := fe.Payment.Float64()
		if p >= 0 {
			paid += p
		} else {
			received += -p
		}
	}
	r.TotalFundingPaidUSDT = paid
	r.TotalFundingReceivedUSDT = received
	r.NetFundingUSDT = received - paid
	r.FundingEventCount = count

	totalPnL := r.GrossProfitUSDT - r.GrossLossUSDT
	if totalPnL != 0 {
		r.FundingAsPctOfPnL = r.NetFundingUSDT / totalPnL * 100
	}

	for _, ev := range res.Events {
		if ev.Kind == "liquidation" {
			r.LiquidationCount++
		}
	}
}

func computeLiquidationProximity(r *Report, eq []engine.EquityPoint) {
	minDist := math.Inf(1)
	sumDist := 0.0
	sampled := 0
	nearCount := 0
	for _, pt := range eq {
		lev, _ := pt.Leverage.Float64()
		if lev <= 0 {
			continue
		}
		mark, _ := pt.Mark.Float64()
		liq, _ := pt.LiquidationPrice.Float64()
		if mark == 0 || liq == 0 {
			continue
		}
		dist := math.Abs(mark-liq) / mark * 100
		sampled++
		sumDist += dist
		if dist < minDist {
			minDist = dist
		}
		if dist <= nearLiquidationThresholdPct {
			nearCount++
		}
	}
	if sampled > 0 {
		r.MinLiqDistancePct = minDist
		r.AvgLiqDistancePct = sumDist / float64(sampled)
		r.BarsNearLiquidation = nearCount
	}
}
