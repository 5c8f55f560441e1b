package indicator

import (
	"math"

	"github.com/sawpanic/backtest-engine/internal/bar"
)

// OBVKernel: on-balance volume, cumulative signed volume by close direction.
type OBVKernel struct {
	prevClose float64
	value     float64
	n         int
}

func NewOBV() *OBVKernel { return &OBVKernel{} }

func (k *OBVKernel) Push(b bar.Bar) map[string]float64 {
	k.n++
	if k.n == 1 {
		k.prevClose = b.Close
		return map[string]float64{"value": 0}
	}
	if b.Close > k.prevClose {
		k.value += b.Volume
	} else if b.Close < k.prevClose {
		k.value -= b.Volume
	}
	k.prevClose = b.Close
	return map[string]float64{"value": k.value}
}
func (k *OBVKernel) IsReady() bool   { return k.n >= 1 }
func (k *OBVKernel) WarmupBars() int { return 1 }
func (k *OBVKernel) Reset()          { *k = *NewOBV() }

// VWAPKernel: cumulative (or rolling, if length > 0) volume-weighted average
// price over typical price.
type VWAPKernel struct {
	length       int
	cumPV, cumV  float64
	rollPV, rollV *ringBuffer
}

// NewVWAP: length == 0 means session/cumulative (never resets, matching a
// single-run backtest); length > 0 is a rolling-window variant.
func NewVWAP(length int) *VWAPKernel {
	k := &VWAPKernel{length: length}
	if length > 0 {
		k.rollPV = newRingBuffer(length)
		k.rollV = newRingBuffer(length)
	}
	return k
}

func (k *VWAPKernel) Push(b bar.Bar) map[string]float64 {
	tp := b.Value(bar.SourceHLC3)
	pv := tp * b.Volume
	if k.length == 0 {
		k.cumPV += pv
		k.cumV += b.Volume
		if k.cumV == 0 {
			return map[string]float64{"value": math.NaN()}
		}
		return map[string]float64{"value": k.cumPV / k.cumV}
	}
	k.rollPV.Push(pv)
	k.rollV.Push(b.Volume)
	if !k.rollPV.Full() || k.rollV.Sum() == 0 {
		return map[string]float64{"value": math.NaN()}
	}
	return map[string]float64{"value": k.rollPV.Sum() / k.rollV.Sum()}
}
func (k *VWAPKernel) IsReady() bool {
	if k.length == 0 {
		return k.cumV > 0
	}
	return k.rollPV.Full()
}
func (k *VWAPKernel) WarmupBars() int {
	if k.length == 0 {
		return 1
	}
	return k.length
}
func (k *VWAPKernel) Reset() { *k = *NewVWAP(k.length) }

// ADKernel: Chaikin accumulation/distribution line.
type ADKernel struct {
	value float64
	n     int
}

func NewAD() *ADKernel { return &ADKernel{} }

func (k *ADKernel) Push(b bar.Bar) map[string]float64 {
	k.n++
	rng := b.High - b.Low
	mfm := 0.0
	if rng != 0 {
		mfm = ((b.Close - b.Low) - (b.High - b.Close)) / rng
	}
	k.value += mfm * b.Volume
	return map[string]float64{"value": k.value}
}
func (k *ADKernel) IsReady() bool   { return k.n >= 1 }
func (k *ADKernel) WarmupBars() int { return 1 }
func (k *ADKernel) Reset()          { *k = *NewAD() }

// CMFKernel: Chaikin money flow, rolling-window money-flow-volume over volume.
type CMFKernel struct {
	length int
	mfv, vol *ringBuffer
}

func NewCMF(length int) *CMFKernel {
	return &CMFKernel{length: length, mfv: newRingBuffer(length), vol: newRingBuffer(length)}
}

func (k *CMFKernel) Push(b bar.Bar) map[string]float64 {
	rng := b.High - b.Low
	mfm := 0.0
	if rng != 0 {
		mfm = ((b.Close - b.Low) - (b.High - b.Close)) / rng
	}
	k.mfv.Push(mfm * b.Volume)
	k.vol.Push(b.Volume)
	if !k.mfv.Full() || k.vol.Sum() == 0 {
		return map[string]float64{"value": math.NaN()}
	}
	return map[string]float64{"value": k.mfv.Sum() / k.vol.Sum()}
}
func (k *CMFKernel) IsReady() bool   { return k.mfv.Full() }
func (k *CMFKernel) WarmupBars() int { return k.length }
func (k *CMFKernel) Reset()          { *k = *NewCMF(k.length) }
