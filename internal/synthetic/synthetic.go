// Package synthetic implements a deterministic test-data generator: given a
// Play's `synthetic:` block (pattern, seed, bar count, timeframe, start
// price), produce OHLCV the core consumes identically to historical bars.
// Every bar is derived from a seed-keyed *rand.Rand so two runs of the same
// pattern+seed are byte-identical.
package synthetic

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/sawpanic/backtest-engine/internal/bar"
	"github.com/sawpanic/backtest-engine/internal/play"
	"github.com/sawpanic/backtest-engine/internal/preflight"
)

// Pattern names a supported generation profile; further patterns can be
// added without changing the block's shape.
type Pattern string

const (
	PatternTrendUpClean  Pattern = "trend_up_clean"
	PatternRangeTight    Pattern = "range_tight"
	PatternBreakoutFalse Pattern = "breakout_false"
)

// Generator implements preflight.Provider over a Play's declared synthetic
// block instead of a real Data Store: one rand.New(rand.NewSource(...))
// per bar, seeded from the base seed plus the bar index, so any single
// bar's randomness is reproducible in isolation and independent of how
// many bars were generated before it.
type Generator struct {
	cfg play.RawSynthetic
}

var _ preflight.Provider = Generator{}

func New(cfg play.RawSynthetic) Generator { return Generator{cfg: cfg} }

// GetOHLCV ignores symbol/tf/startMs/endMs and returns exactly cfg.Bars
// bars of cfg.Pattern starting at cfg.StartPrice — a synthetic Play
// declares its own bar count and timeframe up front, unlike a real
// provider that is queried over an externally-resolved window.
func (g Generator) GetOHLCV(_ context.Context, _ string, _ bar.Timeframe, _, _ int64) ([]bar.Bar, error) {
	n := g.cfg.Bars
	if n <= 0 {
		return nil, fmt.Errorf("synthetic block declares no bars")
	}
	tfMin, err := bar.Minutes(bar.Timeframe(g.cfg.TF))
	if err != nil {
		return nil, fmt.Errorf("synthetic block: %w", err)
	}
	stepMs := int64(tfMin) * 60_000

	gen, ok := patterns[Pattern(g.cfg.Pattern)]
	if !ok {
		return nil, fmt.Errorf("unsupported synthetic pattern %q", g.cfg.Pattern)
	}

	bars := make([]bar.Bar, n)
	price := g.cfg.StartPrice
	if price <= 0 {
		price = 100
	}
	start := price
	for i := 0; i < n; i++ {
		rng := rand.New(rand.NewSource(g.cfg.Seed + int64(i)))
		open := price
		close := gen(rng, i, n, open, start)
		high := math.Max(open, close) * (1 + rng.Float64()*0.002)
		low := math.Min(open, close) * (1 - rng.Float64()*0.002)
		volume := 100 + math.Abs(close-open)/open*5000 + rng.Float64()*50

		tsOpen := int64(i) * stepMs
		bars[i] = bar.Bar{
			TsOpen: tsOpen, TsClose: tsOpen + stepMs,
			Open: open, High: high, Low: low, Close: close, Volume: volume,
		}
		price = close
	}
	return bars, nil
}

// GetFunding returns a flat, zero-rate funding series; a synthetic Play
// studies signal/exit/exchange mechanics, not funding drift, so there is
// no pattern-specific funding profile to model.
func (g Generator) GetFunding(_ context.Context, _ string, startMs, endMs int64) ([]preflight.FundingPoint, error) {
	return []preflight.FundingPoint{{TsMs: startMs, Rate: 0}}, nil
}

type patternFn func(rng *rand.Rand, i, n int, open, start float64) (close float64)

var patterns = map[Pattern]patternFn{
	PatternTrendUpClean: func(rng *rand.Rand, i, n int, open, start float64) float64 {
		drift := 0.0015 + rng.Float64()*0.0005 // steady 0.15-0.2% per bar, no reversals
		return open * (1 + drift)
	},
	PatternRangeTight: func(rng *rand.Rand, i, n int, open, start float64) float64 {
		// mean-reverts around the start price within a tight band
		center := start
		pull := (center - open) * 0.05
		noise := (rng.Float64() - 0.5) * 0.004
		return open + pull + open*noise
	},
	PatternBreakoutFalse: func(rng *rand.Rand, i, n int, open, start float64) float64 {
		// a clean push through the first third of the series, then a hard
		// reversal back toward the start price for the remainder, exercising
		// a stop-loss/signal-exit path that the other two patterns don't.
		third := n / 3
		if i < third {
			return open * (1 + 0.003 + rng.Float64()*0.001)
		}
		return open * (1 - 0.004 - rng.Float64()*0.001)
	},
}
