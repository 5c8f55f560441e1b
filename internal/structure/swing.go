package structure

import "github.com/sawpanic/backtest-engine/internal/bar"

// PairDirection describes the bias formed by the most recently confirmed
// high/low pivot pair.
type PairDirection int

const (
	PairNone    PairDirection = 0
	PairBullish PairDirection = 1
	PairBearish PairDirection = -1
)

// SwingKernel is an O(1)-amortized swing-pivot detector. A high at bar i is
// confirmed `right` bars later only if high[i] exceeds every high in
// [i-left, i+right]; symmetric for lows. Confirmation is checked against a
// small sliding buffer of recent bars rather than rescanning history.
type SwingKernel struct {
	left, right int
	minATRMove  float64 // 0 disables the ATR-move filter
	atr         atrSource

	bars []bar.Bar // ring of the last left+right+1 bars, index-aligned to idx
	idx  int       // absolute index of the most recently pushed bar

	HighLevel float64
	HighIdx   int
	LowLevel  float64
	LowIdx    int
	hasHigh   bool
	hasLow    bool

	HighVersion int
	LowVersion  int
	version     int

	PairHigh      float64
	PairLow       float64
	PairDirection PairDirection
	PairVersion   int
	PairAnchorHash int64
}

// atrSource lets the swing detector optionally gate pivots by minimum ATR
// move without importing internal/indicator (avoids a structure->indicator
// dependency the registry doesn't need elsewhere).
type atrSource interface {
	Value() float64
}

func NewSwing(left, right int, minATRMove float64, atr atrSource) *SwingKernel {
	return &SwingKernel{left: left, right: right, minATRMove: minATRMove, atr: atr, idx: -1}
}

func (k *SwingKernel) Push(b bar.Bar) map[string]any {
	k.idx++
	k.bars = append(k.bars, b)
	window := k.left + k.right + 1
	if len(k.bars) > window {
		k.bars = k.bars[len(k.bars)-window:]
	}
	delta := map[string]any{}
	if len(k.bars) < window {
		return delta
	}
	// candidate is the bar `right` positions before the end of the window.
	candPos := len(k.bars) - 1 - k.right
	cand := k.bars[candPos]
	candIdx := k.idx - k.right

	isHigh, isLow := true, true
	for i, ob := range k.bars {
		if i == candPos {
			continue
		}
		if ob.High >= cand.High {
			isHigh = false
		}
		if ob.Low <= cand.Low {
			isLow = false
		}
	}
	if k.minATRMove > 0 && k.atr != nil {
		move := k.atr.Value()
		if isHigh && move > 0 {
			if !sufficientMove(cand.High, k.HighLevel, k.hasHigh, move, k.minATRMove) {
				isHigh = false
			}
		}
		if isLow && move > 0 {
			if !sufficientMove(cand.Low, k.LowLevel, k.hasLow, move, k.minATRMove) {
				isLow = false
			}
		}
	}
	if isHigh {
		k.HighLevel, k.HighIdx, k.hasHigh = cand.High, candIdx, true
		k.HighVersion++
		k.version++
		delta["high_level"] = k.HighLevel
		delta["high_idx"] = k.HighIdx
		k.updatePair(true, cand.High, candIdx)
	}
	if isLow {
		k.LowLevel, k.LowIdx, k.hasLow = cand.Low, candIdx, true
		k.LowVersion++
		k.version++
		delta["low_level"] = k.LowLevel
		delta["low_idx"] = k.LowIdx
		k.updatePair(false, cand.Low, candIdx)
	}
	return delta
}

func sufficientMove(level, prevLevel float64, hasPrev bool, atrVal, minMult float64) bool {
	if !hasPrev {
		return true
	}
	diff := level - prevLevel
	if diff < 0 {
		diff = -diff
	}
	return diff >= minMult*atrVal
}

func (k *SwingKernel) updatePair(isHigh bool, level float64, idx int) {
	if isHigh {
		k.PairHigh = level
	} else {
		k.PairLow = level
	}
	if k.hasHigh && k.hasLow {
		if k.PairHigh > k.PairLow {
			k.PairDirection = PairBullish
		} else {
			k.PairDirection = PairBearish
		}
		k.PairVersion++
		k.PairAnchorHash = int64(k.HighIdx)*1_000_003 + int64(k.LowIdx)
	}
}

func (k *SwingKernel) Version() int { return k.version }
func (k *SwingKernel) Reset()       { *k = *NewSwing(k.left, k.right, k.minATRMove, k.atr) }
