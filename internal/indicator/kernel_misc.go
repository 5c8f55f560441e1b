package indicator

import (
	"math"

	"github.com/sawpanic/backtest-engine/internal/bar"
)

// MomentumKernel: raw price change over `length` bars.
type MomentumKernel struct {
	length int
	src    bar.Source
	hist   *ringBuffer
}

func NewMomentum(length int, src bar.Source) *MomentumKernel {
	return &MomentumKernel{length: length, src: src, hist: newRingBuffer(length + 1)}
}

func (k *MomentumKernel) Push(b bar.Bar) map[string]float64 {
	k.hist.Push(b.Value(k.src))
	if !k.hist.Full() {
		return map[string]float64{"value": math.NaN()}
	}
	vals := k.hist.Values()
	return map[string]float64{"value": vals[len(vals)-1] - vals[0]}
}
func (k *MomentumKernel) IsReady() bool   { return k.hist.Full() }
func (k *MomentumKernel) WarmupBars() int { return k.length + 1 }
func (k *MomentumKernel) Reset()          { k.hist = newRingBuffer(k.length + 1) }

// ZScoreKernel: (value - rolling mean) / rolling sample stddev.
type ZScoreKernel struct {
	length int
	src    bar.Source
	win    *ringBuffer
}

func NewZScore(length int, src bar.Source) *ZScoreKernel {
	return &ZScoreKernel{length: length, src: src, win: newRingBuffer(length)}
}

func (k *ZScoreKernel) Push(b bar.Bar) map[string]float64 {
	v := b.Value(k.src)
	k.win.Push(v)
	if !k.win.Full() {
		return map[string]float64{"value": math.NaN()}
	}
	sd := k.win.StdDev(true)
	if sd == 0 {
		return map[string]float64{"value": 0}
	}
	return map[string]float64{"value": (v - k.win.Mean()) / sd}
}
func (k *ZScoreKernel) IsReady() bool   { return k.win.Full() }
func (k *ZScoreKernel) WarmupBars() int { return k.length }
func (k *ZScoreKernel) Reset()          { k.win = newRingBuffer(k.length) }

// LinRegKernel: linear-regression endpoint value and slope over `length` bars.
type LinRegKernel struct {
	length int
	src    bar.Source
	win    *ringBuffer
}

func NewLinReg(length int, src bar.Source) *LinRegKernel {
	return &LinRegKernel{length: length, src: src, win: newRingBuffer(length)}
}

func (k *LinRegKernel) Push(b bar.Bar) map[string]float64 {
	k.win.Push(b.Value(k.src))
	if !k.win.Full() {
		return map[string]float64{"value": math.NaN(), "slope": math.NaN()}
	}
	vals := k.win.Values()
	n := float64(len(vals))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range vals {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return map[string]float64{"value": vals[len(vals)-1], "slope": 0}
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	endpoint := intercept + slope*(n-1)
	return map[string]float64{"value": endpoint, "slope": slope}
}
func (k *LinRegKernel) IsReady() bool   { return k.win.Full() }
func (k *LinRegKernel) WarmupBars() int { return k.length }
func (k *LinRegKernel) Reset()          { k.win = newRingBuffer(k.length) }

// PivotPointsKernel: standard floor-trader pivots, recomputed once per closed
// "anchor" bar (e.g. the prior daily bar) and held constant until the next.
type PivotPointsKernel struct {
	haveAnchor bool
	pivot, r1, r2, s1, s2 float64
}

func NewPivotPoints() *PivotPointsKernel { return &PivotPointsKernel{} }

// Push treats each bar it receives as a closed anchor period (the caller is
// expected to feed this kernel a higher-timeframe bar stream, e.g. daily).
func (k *PivotPointsKernel) Push(b bar.Bar) map[string]float64 {
	p := (b.High + b.Low + b.Close) / 3
	k.pivot = p
	k.r1 = 2*p - b.Low
	k.s1 = 2*p - b.High
	k.r2 = p + (b.High - b.Low)
	k.s2 = p - (b.High - b.Low)
	k.haveAnchor = true
	return map[string]float64{"pivot": k.pivot, "r1": k.r1, "r2": k.r2, "s1": k.s1, "s2": k.s2}
}
func (k *PivotPointsKernel) IsReady() bool   { return k.haveAnchor }
func (k *PivotPointsKernel) WarmupBars() int { return 1 }
func (k *PivotPointsKernel) Reset()          { *k = *NewPivotPoints() }

// TrueRangeKernel: Wilder's true range, the max of three candle-to-candle spans.
type TrueRangeKernel struct {
	prevClose float64
	n         int
}

func NewTrueRange() *TrueRangeKernel { return &TrueRangeKernel{} }

func (k *TrueRangeKernel) Push(b bar.Bar) map[string]float64 {
	k.n++
	if k.n == 1 {
		k.prevClose = b.Close
		return map[string]float64{"value": b.High - b.Low}
	}
	tr := trueRange(b.High, b.Low, k.prevClose)
	k.prevClose = b.Close
	return map[string]float64{"value": tr}
}
func (k *TrueRangeKernel) IsReady() bool   { return k.n >= 1 }
func (k *TrueRangeKernel) WarmupBars() int { return 1 }
func (k *TrueRangeKernel) Reset()          { *k = *NewTrueRange() }

// TypicalPriceKernel: (high + low + close) / 3, a stateless passthrough
// kernel kept for DSL path-resolution uniformity — compiled refs treat
// every feature as a Kernel, including zero-warmup ones.
type TypicalPriceKernel struct{}

func NewTypicalPrice() *TypicalPriceKernel { return &TypicalPriceKernel{} }

func (k *TypicalPriceKernel) Push(b bar.Bar) map[string]float64 {
	return map[string]float64{"value": b.Value(bar.SourceHLC3)}
}
func (k *TypicalPriceKernel) IsReady() bool   { return true }
func (k *TypicalPriceKernel) WarmupBars() int { return 0 }
func (k *TypicalPriceKernel) Reset()          {}
