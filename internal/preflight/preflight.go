package preflight

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/bar"
	"github.com/sawpanic/backtest-engine/internal/feed"
	"github.com/sawpanic/backtest-engine/internal/play"
)

// Result is everything Preflight resolves ahead of a run: the populated Feed
// Store, the funding-rate source backing the exchange, and sim_start_idx.
type Result struct {
	Set          *feed.Set
	Funding      HistoricalFundingSource
	SimStartIdx  int
	Warmup       Warmup
}

// Run executes preflight end to end for one compiled Play: resolve
// warmup, extend the query window, fetch every declared timeframe plus 1m
// and funding, detect coverage gaps, build the Feed Store, and resolve
// sim_start_idx.
func Run(ctx context.Context, p Provider, compiled *play.Compiled, startMs, endMs int64, allowGaps bool) (*Result, error) {
	warmup := Compute(compiled)
	execMin, err := bar.Minutes(compiled.ExecTF)
	if err != nil {
		return nil, err
	}
	extStart := ExtendStart(startMs, execMin, warmup.Max())

	execBars, err := fetchAndCheck(ctx, p, compiled.Raw.Symbol, compiled.ExecTF, extStart, endMs, allowGaps)
	if err != nil {
		return nil, err
	}
	var medBars, highBars []bar.Bar
	if compiled.MedTF != "" {
		if medBars, err = fetchAndCheck(ctx, p, compiled.Raw.Symbol, compiled.MedTF, extStart, endMs, allowGaps); err != nil {
			return nil, err
		}
	}
	if compiled.HighTF != "" {
		if highBars, err = fetchAndCheck(ctx, p, compiled.Raw.Symbol, compiled.HighTF, extStart, endMs, allowGaps); err != nil {
			return nil, err
		}
	}
	quoteBars, err := fetchAndCheck(ctx, p, compiled.Raw.Symbol, bar.Timeframe("1m"), extStart, endMs, allowGaps)
	if err != nil {
		return nil, err
	}

	fundingPts, err := p.GetFunding(ctx, compiled.Raw.Symbol, extStart, endMs)
	if err != nil {
		return nil, err
	}

	set, err := feed.Build(compiled, feed.RoleBars{Exec: execBars, Med: medBars, High: highBars, Quote: quoteBars})
	if err != nil {
		return nil, err
	}

	return &Result{
		Set:         set,
		Funding:     NewHistoricalFundingSource(fundingPts),
		SimStartIdx: SimStartIdx(set.Exec.Len(), warmup),
		Warmup:      warmup,
	}, nil
}

func fetchAndCheck(ctx context.Context, p Provider, symbol string, tf bar.Timeframe, startMs, endMs int64, allowGaps bool) ([]bar.Bar, error) {
	bars, err := p.GetOHLCV(ctx, symbol, tf, startMs, endMs)
	if err != nil {
		return nil, err
	}
	gaps, err := DetectGaps(tf, bars)
	if err != nil {
		return nil, err
	}
	if len(gaps) > 0 && !allowGaps {
		return nil, CoverageError(symbol, gaps)
	}
	return bars, nil
}

// HistoricalFundingSource implements exchange.FundingRateSource over a
// provider-fetched funding series, forward-filling the last known rate at
// or before a settlement timestamp the same way feed.Store.IdxAtOrBefore
// forward-fills a slower timeframe role.
type HistoricalFundingSource struct {
	tsMs []int64
	rate []decimal.Decimal
}

func NewHistoricalFundingSource(points []FundingPoint) HistoricalFundingSource {
	h := HistoricalFundingSource{tsMs: make([]int64, len(points)), rate: make([]decimal.Decimal, len(points))}
	for i, pt := range points {
		h.tsMs[i] = pt.TsMs
		h.rate[i] = decimal.NewFromFloat(pt.Rate)
	}
	return h
}

func (h HistoricalFundingSource) RateAt(tsMs int64) (decimal.Decimal, bool) {
	lo, hi := 0, len(h.tsMs)
	for lo < hi {
		mid := (lo + hi) / 2
		if h.tsMs[mid] <= tsMs {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return decimal.Zero, false
	}
	return h.rate[lo-1], true
}
