// Package preflight resolves a Play's warmup requirement, extends the query
// window backward to cover it, fetches historical OHLCV/funding through the
// Historical Data Provider collaborator, detects coverage gaps, and finds
// sim_start_idx — the first exec bar where every indicator and structure
// is ready.
package preflight

import (
	"context"

	"github.com/sawpanic/backtest-engine/internal/bar"
)

// Provider is the Historical Data Provider contract. An implementation must
// return bars in monotonic, gap-free-or-honestly-gapped order with no
// forward-looking data beyond [startMs, endMs); the core never fabricates
// bars to fill a hole.
type Provider interface {
	GetOHLCV(ctx context.Context, symbol string, tf bar.Timeframe, startMs, endMs int64) ([]bar.Bar, error)
	GetFunding(ctx context.Context, symbol string, startMs, endMs int64) ([]FundingPoint, error)
}

// FundingPoint is one funding-rate observation from the provider, the raw
// material backing internal/exchange.FundingRateSource.
type FundingPoint struct {
	TsMs int64
	Rate float64
}
