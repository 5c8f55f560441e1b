package indicator

import (
	"math"

	"github.com/sawpanic/backtest-engine/internal/bar"
)

// SMAKernel: simple moving average over `length` bars of `src`.
type SMAKernel struct {
	length int
	src    bar.Source
	win    *ringBuffer
}

func NewSMA(length int, src bar.Source) *SMAKernel {
	return &SMAKernel{length: length, src: src, win: newRingBuffer(length)}
}

func (k *SMAKernel) Push(b bar.Bar) map[string]float64 {
	k.win.Push(b.Value(k.src))
	if !k.IsReady() {
		return map[string]float64{"value": math.NaN()}
	}
	return map[string]float64{"value": k.win.Mean()}
}
func (k *SMAKernel) IsReady() bool  { return k.win.Full() }
func (k *SMAKernel) WarmupBars() int { return k.length }
func (k *SMAKernel) Reset()         { k.win = newRingBuffer(k.length) }

// EMAKernel: exponential moving average, seeded by an SMA of the first
// `length` bars, smoothing factor alpha = 2/(length+1).
type EMAKernel struct {
	length  int
	src     bar.Source
	alpha   float64
	seed    *ringBuffer
	value   float64
	seeded  bool
	n       int
}

func NewEMA(length int, src bar.Source) *EMAKernel {
	return &EMAKernel{length: length, src: src, alpha: 2.0 / (float64(length) + 1.0), seed: newRingBuffer(length)}
}

func (k *EMAKernel) Push(b bar.Bar) map[string]float64 {
	v := b.Value(k.src)
	k.n++
	if !k.seeded {
		k.seed.Push(v)
		if k.seed.Full() {
			k.value = k.seed.Mean()
			k.seeded = true
		} else {
			return map[string]float64{"value": math.NaN()}
		}
	} else {
		k.value = k.value + k.alpha*(v-k.value)
	}
	return map[string]float64{"value": k.value}
}
func (k *EMAKernel) IsReady() bool   { return k.seeded }
func (k *EMAKernel) WarmupBars() int { return k.length }
func (k *EMAKernel) Reset()          { *k = *NewEMA(k.length, k.src) }

// Last returns the current EMA value without pushing (used by MACD/TRIX/etc).
func (k *EMAKernel) Last() float64 { return k.value }

// WMAKernel: linearly weighted moving average, most recent bar weighted `length`.
type WMAKernel struct {
	length int
	src    bar.Source
	win    *ringBuffer
}

func NewWMA(length int, src bar.Source) *WMAKernel {
	return &WMAKernel{length: length, src: src, win: newRingBuffer(length)}
}

func (k *WMAKernel) Push(b bar.Bar) map[string]float64 {
	k.win.Push(b.Value(k.src))
	if !k.IsReady() {
		return map[string]float64{"value": math.NaN()}
	}
	vals := k.win.Values()
	var num, den float64
	for i, v := range vals {
		w := float64(i + 1)
		num += v * w
		den += w
	}
	return map[string]float64{"value": num / den}
}
func (k *WMAKernel) IsReady() bool   { return k.win.Full() }
func (k *WMAKernel) WarmupBars() int { return k.length }
func (k *WMAKernel) Reset()          { k.win = newRingBuffer(k.length) }

// DEMAKernel: double exponential moving average, 2*EMA - EMA(EMA).
type DEMAKernel struct {
	length int
	src    bar.Source
	ema1   *EMAKernel
	ema2   *EMAKernel
}

func NewDEMA(length int, src bar.Source) *DEMAKernel {
	return &DEMAKernel{length: length, src: src, ema1: NewEMA(length, src), ema2: NewEMA(length, src)}
}

func (k *DEMAKernel) Push(b bar.Bar) map[string]float64 {
	o1 := k.ema1.Push(b)["value"]
	if math.IsNaN(o1) {
		return map[string]float64{"value": math.NaN()}
	}
	o2 := k.ema2.Push(bar.Bar{Close: o1, Open: o1, High: o1, Low: o1})["value"]
	if math.IsNaN(o2) {
		return map[string]float64{"value": math.NaN()}
	}
	return map[string]float64{"value": 2*o1 - o2}
}
func (k *DEMAKernel) IsReady() bool   { return k.ema1.IsReady() && k.ema2.IsReady() }
func (k *DEMAKernel) WarmupBars() int { return 2 * k.length }
func (k *DEMAKernel) Reset()          { *k = *NewDEMA(k.length, k.src) }

// TEMAKernel: triple exponential moving average, 3*e1 - 3*e2 + e3.
type TEMAKernel struct {
	length         int
	src            bar.Source
	ema1, ema2, ema3 *EMAKernel
}

func NewTEMA(length int, src bar.Source) *TEMAKernel {
	return &TEMAKernel{length: length, src: src, ema1: NewEMA(length, src), ema2: NewEMA(length, src), ema3: NewEMA(length, src)}
}

func (k *TEMAKernel) Push(b bar.Bar) map[string]float64 {
	o1 := k.ema1.Push(b)["value"]
	if math.IsNaN(o1) {
		return map[string]float64{"value": math.NaN()}
	}
	o2 := k.ema2.Push(constBar(o1))["value"]
	if math.IsNaN(o2) {
		return map[string]float64{"value": math.NaN()}
	}
	o3 := k.ema3.Push(constBar(o2))["value"]
	if math.IsNaN(o3) {
		return map[string]float64{"value": math.NaN()}
	}
	return map[string]float64{"value": 3*o1 - 3*o2 + o3}
}
func (k *TEMAKernel) IsReady() bool   { return k.ema3.IsReady() }
func (k *TEMAKernel) WarmupBars() int { return 3 * k.length }
func (k *TEMAKernel) Reset()          { *k = *NewTEMA(k.length, k.src) }

func constBar(v float64) bar.Bar { return bar.Bar{Open: v, High: v, Low: v, Close: v} }

// HullKernel: Hull moving average, WMA(2*WMA(n/2) - WMA(n), sqrt(n)).
type HullKernel struct {
	length   int
	src      bar.Source
	half     *WMAKernel
	full     *WMAKernel
	smoothed *WMAKernel
	sqrtLen  int
}

func NewHull(length int, src bar.Source) *HullKernel {
	sqrtLen := int(math.Round(math.Sqrt(float64(length))))
	if sqrtLen < 1 {
		sqrtLen = 1
	}
	return &HullKernel{
		length:   length,
		src:      src,
		half:     NewWMA(max(1, length/2), src),
		full:     NewWMA(length, src),
		smoothed: NewWMA(sqrtLen, bar.SourceClose),
		sqrtLen:  sqrtLen,
	}
}

func (k *HullKernel) Push(b bar.Bar) map[string]float64 {
	h := k.half.Push(b)["value"]
	f := k.full.Push(b)["value"]
	if math.IsNaN(h) || math.IsNaN(f) {
		return map[string]float64{"value": math.NaN()}
	}
	raw := 2*h - f
	out := k.smoothed.Push(constBar(raw))["value"]
	return map[string]float64{"value": out}
}
func (k *HullKernel) IsReady() bool   { return k.full.IsReady() && k.smoothed.IsReady() }
func (k *HullKernel) WarmupBars() int { return k.length + k.sqrtLen }
func (k *HullKernel) Reset()          { *k = *NewHull(k.length, k.src) }

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// VWMAKernel: volume-weighted moving average over `length` bars.
type VWMAKernel struct {
	length  int
	src     bar.Source
	priceV  *ringBuffer
	vol     *ringBuffer
}

func NewVWMA(length int, src bar.Source) *VWMAKernel {
	return &VWMAKernel{length: length, src: src, priceV: newRingBuffer(length), vol: newRingBuffer(length)}
}

func (k *VWMAKernel) Push(b bar.Bar) map[string]float64 {
	k.priceV.Push(b.Value(k.src) * b.Volume)
	k.vol.Push(b.Volume)
	if !k.IsReady() || k.vol.Sum() == 0 {
		return map[string]float64{"value": math.NaN()}
	}
	return map[string]float64{"value": k.priceV.Sum() / k.vol.Sum()}
}
func (k *VWMAKernel) IsReady() bool   { return k.priceV.Full() }
func (k *VWMAKernel) WarmupBars() int { return k.length }
func (k *VWMAKernel) Reset()          { k.priceV = newRingBuffer(k.length); k.vol = newRingBuffer(k.length) }

// TRIMAKernel: triangular moving average, an SMA of an SMA.
type TRIMAKernel struct {
	length int
	src    bar.Source
	inner  *SMAKernel
	outer  *SMAKernel
}

func NewTRIMA(length int, src bar.Source) *TRIMAKernel {
	n1 := (length + 1) / 2
	n2 := length - n1 + 1
	return &TRIMAKernel{length: length, src: src, inner: NewSMA(n1, src), outer: NewSMA(n2, bar.SourceClose)}
}

func (k *TRIMAKernel) Push(b bar.Bar) map[string]float64 {
	i := k.inner.Push(b)["value"]
	if math.IsNaN(i) {
		return map[string]float64{"value": math.NaN()}
	}
	o := k.outer.Push(constBar(i))["value"]
	return map[string]float64{"value": o}
}
func (k *TRIMAKernel) IsReady() bool   { return k.outer.IsReady() }
func (k *TRIMAKernel) WarmupBars() int { return k.length }
func (k *TRIMAKernel) Reset()          { *k = *NewTRIMA(k.length, k.src) }

// KAMAKernel: Kaufman's adaptive moving average.
type KAMAKernel struct {
	length  int
	fast    float64
	slow    float64
	src     bar.Source
	prices  *ringBuffer // last `length`+1 prices, to compute direction/volatility
	value   float64
	seeded  bool
}

func NewKAMA(length int, fastPeriod, slowPeriod int, src bar.Source) *KAMAKernel {
	return &KAMAKernel{
		length: length,
		fast:   2.0 / (float64(fastPeriod) + 1.0),
		slow:   2.0 / (float64(slowPeriod) + 1.0),
		src:    src,
		prices: newRingBuffer(length + 1),
	}
}

func (k *KAMAKernel) Push(b bar.Bar) map[string]float64 {
	v := b.Value(k.src)
	k.prices.Push(v)
	if !k.prices.Full() {
		return map[string]float64{"value": math.NaN()}
	}
	vals := k.prices.Values() // oldest..newest, length+1 entries
	direction := math.Abs(vals[len(vals)-1] - vals[0])
	volatility := 0.0
	for i := 1; i < len(vals); i++ {
		volatility += math.Abs(vals[i] - vals[i-1])
	}
	er := 0.0
	if volatility != 0 {
		er = direction / volatility
	}
	sc := math.Pow(er*(k.fast-k.slow)+k.slow, 2)
	if !k.seeded {
		k.value = v
		k.seeded = true
	} else {
		k.value = k.value + sc*(v-k.value)
	}
	return map[string]float64{"value": k.value}
}

func (k *KAMAKernel) IsReady() bool   { return k.prices.Full() }
func (k *KAMAKernel) WarmupBars() int { return k.length + 1 }
func (k *KAMAKernel) Reset()          { *k = *NewKAMA(k.length, 2, 30, k.src) }

// T3Kernel: Tillson's T3, a cascade of 6 EMAs blended with volume factor.
type T3Kernel struct {
	length int
	vf     float64
	src    bar.Source
	e      [6]*EMAKernel
}

func NewT3(length int, volumeFactor float64, src bar.Source) *T3Kernel {
	var e [6]*EMAKernel
	for i := range e {
		e[i] = NewEMA(length, bar.SourceClose)
	}
	e[0] = NewEMA(length, src)
	return &T3Kernel{length: length, vf: volumeFactor, src: src, e: e}
}

func (k *T3Kernel) Push(b bar.Bar) map[string]float64 {
	v := k.e[0].Push(b)["value"]
	for i := 1; i < 6; i++ {
		if math.IsNaN(v) {
			return map[string]float64{"value": math.NaN()}
		}
		v = k.e[i].Push(constBar(v))["value"]
	}
	if math.IsNaN(v) {
		return map[string]float64{"value": math.NaN()}
	}
	e1, e2, e3, e4, e5, e6 := k.e[0].Last(), k.e[1].Last(), k.e[2].Last(), k.e[3].Last(), k.e[4].Last(), k.e[5].Last()
	c1 := -math.Pow(k.vf, 3)
	c2 := 3*math.Pow(k.vf, 2) + 3*math.Pow(k.vf, 3)
	c3 := -6*math.Pow(k.vf, 2) - 3*k.vf - 3*math.Pow(k.vf, 3)
	c4 := 1 + 3*k.vf + math.Pow(k.vf, 3) + 3*math.Pow(k.vf, 2)
	out := c1*e6 + c2*e5 + c3*e4 + c4*e3
	_ = e1
	_ = e2
	return map[string]float64{"value": out}
}
func (k *T3Kernel) IsReady() bool   { return k.e[5].IsReady() }
func (k *T3Kernel) WarmupBars() int { return 6 * k.length }
func (k *T3Kernel) Reset()          { *k = *NewT3(k.length, k.vf, k.src) }
