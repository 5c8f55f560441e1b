package structure

import "github.com/sawpanic/backtest-engine/internal/bar"

// MarketStructureKernel implements ICT-style break-of-structure (BOS) and
// change-of-character (CHoCH) detection against a source swing detector.
// BOS is a break in the direction of the existing bias (continuation);
// CHoCH is a break against it (reversal), and only fires against the
// specific level that produced the last BOS.
type MarketStructureKernel struct {
	swing             *SwingKernel
	confirmationClose bool

	Bias           Direction
	BreakLevelHigh float64
	BreakLevelLow  float64
	hasBreakHigh   bool
	hasBreakLow    bool

	LastBreakLevel float64
	LastBreakIdx   int
	lastBreakWasBOS bool

	BOSThisBar   bool
	CHOCHThisBar bool
	version      int
	idx          int
}

func NewMarketStructure(swing *SwingKernel, confirmationClose bool) *MarketStructureKernel {
	return &MarketStructureKernel{swing: swing, confirmationClose: confirmationClose}
}

func (k *MarketStructureKernel) Push(b bar.Bar) map[string]any {
	k.idx++
	k.BOSThisBar = false
	k.CHOCHThisBar = false

	delta := k.swing.Push(b)
	if hl, ok := delta["high_level"]; ok {
		k.BreakLevelHigh = hl.(float64)
		k.hasBreakHigh = true
	}
	if ll, ok := delta["low_level"]; ok {
		k.BreakLevelLow = ll.(float64)
		k.hasBreakLow = true
	}

	breachHigh := k.breaches(b, k.BreakLevelHigh, true) && k.hasBreakHigh
	breachLow := k.breaches(b, k.BreakLevelLow, false) && k.hasBreakLow

	out := map[string]any{}
	switch k.Bias {
	case DirUp, DirFlat:
		if breachHigh {
			k.BOSThisBar = true
			k.Bias = DirUp
			k.LastBreakLevel, k.LastBreakIdx, k.lastBreakWasBOS = k.BreakLevelHigh, k.idx, true
			k.hasBreakHigh = false
			k.version++
			out["bos"] = true
		} else if breachLow && k.Bias == DirUp {
			k.CHOCHThisBar = true
			k.Bias = DirDown
			k.LastBreakLevel, k.LastBreakIdx, k.lastBreakWasBOS = k.BreakLevelLow, k.idx, false
			k.hasBreakLow = false
			k.version++
			out["choch"] = true
		}
	case DirDown:
		if breachLow {
			k.BOSThisBar = true
			k.Bias = DirDown
			k.LastBreakLevel, k.LastBreakIdx, k.lastBreakWasBOS = k.BreakLevelLow, k.idx, true
			k.hasBreakLow = false
			k.version++
			out["bos"] = true
		} else if breachHigh {
			k.CHOCHThisBar = true
			k.Bias = DirUp
			k.LastBreakLevel, k.LastBreakIdx, k.lastBreakWasBOS = k.BreakLevelHigh, k.idx, false
			k.hasBreakHigh = false
			k.version++
			out["choch"] = true
		}
	}
	return out
}

func (k *MarketStructureKernel) breaches(b bar.Bar, level float64, above bool) bool {
	if above {
		if k.confirmationClose {
			return b.Close > level
		}
		return b.High > level
	}
	if k.confirmationClose {
		return b.Close < level
	}
	return b.Low < level
}

func (k *MarketStructureKernel) Version() int { return k.version }
func (k *MarketStructureKernel) Reset() {
	k.swing.Reset()
	*k = *NewMarketStructure(k.swing, k.confirmationClose)
}
