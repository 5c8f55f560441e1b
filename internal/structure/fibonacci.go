package structure

import "github.com/sawpanic/backtest-engine/internal/bar"

// FibAnchorMode selects what the fibonacci levels are measured against.
type FibAnchorMode int

const (
	FibAnchorPair FibAnchorMode = iota // most recent confirmed high/low pivot pair
	FibAnchorWave                      // last completed trend wave
)

// FibonacciKernel emits retracement/extension levels against an anchor range
// derived from a swing (pair mode) or trend (wave mode) detector.
type FibonacciKernel struct {
	swing  *SwingKernel
	trend  *TrendKernel
	mode   FibAnchorMode
	ratios []float64

	AnchorHigh     float64
	AnchorLow      float64
	AnchorDirection Direction
	AnchorHash     int64
	Levels         map[float64]float64
	version        int
}

func NewFibonacci(swing *SwingKernel, trend *TrendKernel, mode FibAnchorMode, ratios []float64) *FibonacciKernel {
	return &FibonacciKernel{swing: swing, trend: trend, mode: mode, ratios: ratios, Levels: map[float64]float64{}}
}

func (k *FibonacciKernel) Push(b bar.Bar) map[string]any {
	var delta map[string]any
	if k.mode == FibAnchorWave && k.trend != nil {
		delta = k.trend.Push(b)
	} else {
		delta = k.swing.Push(b)
	}
	changed := false
	if hl, ok := delta["high_level"]; ok {
		k.AnchorHigh = hl.(float64)
		changed = true
	}
	if ll, ok := delta["low_level"]; ok {
		k.AnchorLow = ll.(float64)
		changed = true
	}
	if !changed {
		return map[string]any{}
	}
	if k.AnchorHigh > k.AnchorLow {
		k.AnchorDirection = DirUp
	} else if k.AnchorLow > k.AnchorHigh {
		k.AnchorDirection = DirDown
	}
	rng := k.AnchorHigh - k.AnchorLow
	for _, r := range k.ratios {
		k.Levels[r] = k.AnchorHigh - r*rng
	}
	k.AnchorHash = int64(k.AnchorHigh*1e6) ^ int64(k.AnchorLow*1e6)
	k.version++
	return map[string]any{"levels": k.Levels}
}

func (k *FibonacciKernel) Version() int { return k.version }
func (k *FibonacciKernel) Reset() {
	if k.trend != nil {
		k.trend.Reset()
	} else {
		k.swing.Reset()
	}
	*k = *NewFibonacci(k.swing, k.trend, k.mode, k.ratios)
}
