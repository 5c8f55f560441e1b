package structure

import "github.com/sawpanic/backtest-engine/internal/bar"

// ZoneState is the lifecycle of a supply/demand zone.
type ZoneState int

const (
	ZoneNone ZoneState = iota
	ZoneActive
	ZoneBroken
)

// zoneATRSource mirrors atrSource; kept distinct so callers needn't import
// the swing file's unexported type.
type zoneATRSource interface {
	Value() float64
}

// ZoneKernel tracks a single demand (from a swing low) or supply (from a
// swing high) zone whose width is either a fixed percent or ATR-derived.
type ZoneKernel struct {
	swing    *SwingKernel
	isDemand bool
	widthPct float64
	atr      zoneATRSource
	atrMult  float64

	State    ZoneState
	Upper    float64
	Lower    float64
	AnchorIdx int
	version  int
}

func NewZone(swing *SwingKernel, isDemand bool, widthPct float64, atr zoneATRSource, atrMult float64) *ZoneKernel {
	return &ZoneKernel{swing: swing, isDemand: isDemand, widthPct: widthPct, atr: atr, atrMult: atrMult}
}

func (k *ZoneKernel) Push(b bar.Bar) map[string]any {
	delta := k.swing.Push(b)
	out := map[string]any{}

	if k.State == ZoneActive {
		if k.isDemand {
			if b.Low < k.Lower {
				k.State = ZoneBroken
				k.version++
				out["broken"] = true
			}
		} else {
			if b.High > k.Upper {
				k.State = ZoneBroken
				k.version++
				out["broken"] = true
			}
		}
	}

	if k.isDemand {
		if ll, ok := delta["low_level"]; ok {
			level := ll.(float64)
			width := k.zoneWidth(level)
			k.Lower = level - width
			k.Upper = level
			k.AnchorIdx = delta["low_idx"].(int)
			k.State = ZoneActive
			k.version++
			out["formed"] = true
		}
	} else {
		if hl, ok := delta["high_level"]; ok {
			level := hl.(float64)
			width := k.zoneWidth(level)
			k.Upper = level + width
			k.Lower = level
			k.AnchorIdx = delta["high_idx"].(int)
			k.State = ZoneActive
			k.version++
			out["formed"] = true
		}
	}
	return out
}

func (k *ZoneKernel) zoneWidth(level float64) float64 {
	if k.atr != nil && k.atrMult > 0 {
		if v := k.atr.Value(); v > 0 {
			return v * k.atrMult
		}
	}
	return level * k.widthPct / 100
}

func (k *ZoneKernel) Version() int { return k.version }
func (k *ZoneKernel) Reset() {
	k.swing.Reset()
	*k = *NewZone(k.swing, k.isDemand, k.widthPct, k.atr, k.atrMult)
}
