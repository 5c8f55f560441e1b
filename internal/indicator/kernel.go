// Package indicator implements incremental (push-per-bar) indicator kernels,
// plus the registry that is the single source of truth for supported
// types, parameter schemas, output keys, and warmup formulas. Most kernels
// update in O(1) per bar; those that rescan their window on every push
// (WMA, KAMA, CCI, LINREG, STDDEV, ZSCORE, BBANDS, HISTORICAL_VOL, AROON)
// cost O(length) per bar.
//
// Every kernel satisfies: incremental output at bar i equals the vectorized
// computation over bars[0..=i] within absolute tolerance 1e-9 or relative
// 1e-6. Outputs are NaN until they can be computed; a multi-output kernel
// can emit its already-formed components before IsReady() (e.g. MACD's
// macd line before its signal line, ADX's plus_di/minus_di before adx).
package indicator

import "github.com/sawpanic/backtest-engine/internal/bar"

// Kernel is a stateful, push-driven indicator. Multi-output indicators
// return a map with a fixed set of keys (e.g. macd -> {macd, signal,
// histogram}); single-output indicators return {"value": x}.
type Kernel interface {
	Push(b bar.Bar) map[string]float64
	IsReady() bool
	WarmupBars() int
	Reset()
}

// recomputeInterval is how often linearly-accumulated running sums (SMA,
// BBANDS middle) are rebuilt from their maintained window to bound
// floating point drift.
const recomputeInterval = 4096
