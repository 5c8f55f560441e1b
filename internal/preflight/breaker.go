package preflight

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/backtest-engine/internal/bar"
)

// GuardedProvider wraps a Provider with a circuit breaker (gobreaker.Settings
// with a named breaker and a ReadyToTrip on consecutive failures) and a
// token-bucket rate limiter (one rate.Limiter per collaborator). Repeated
// CoverageError-class failures from the Data Store trip the breaker
// instead of hammering it during warmup-window extension.
type GuardedProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewGuardedProvider wraps inner with a breaker that opens after
// consecutiveFailures and a limiter admitting at most rps requests per
// second (burst 1, since historical-data fetches are not bursty workloads).
func NewGuardedProvider(inner Provider, consecutiveFailures uint32, rps float64) *GuardedProvider {
	settings := gobreaker.Settings{
		Name:    "historical-data-provider",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
	}
	return &GuardedProvider{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (g *GuardedProvider) GetOHLCV(ctx context.Context, symbol string, tf bar.Timeframe, startMs, endMs int64) ([]bar.Bar, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.GetOHLCV(ctx, symbol, tf, startMs, endMs)
	})
	if err != nil {
		return nil, err
	}
	return res.([]bar.Bar), nil
}

func (g *GuardedProvider) GetFunding(ctx context.Context, symbol string, startMs, endMs int64) ([]FundingPoint, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.GetFunding(ctx, symbol, startMs, endMs)
	})
	if err != nil {
		return nil, err
	}
	return res.([]FundingPoint), nil
}
