package indicator

import (
	"math"

	"github.com/sawpanic/backtest-engine/internal/bar"
)

// RSIKernel: Wilder's relative strength index.
type RSIKernel struct {
	length       int
	src          bar.Source
	prev         float64
	avgGain      float64
	avgLoss      float64
	n            int
	seededSum    float64
	gains, losses []float64
}

func NewRSI(length int, src bar.Source) *RSIKernel {
	return &RSIKernel{length: length, src: src}
}

func (k *RSIKernel) Push(b bar.Bar) map[string]float64 {
	v := b.Value(k.src)
	k.n++
	if k.n == 1 {
		k.prev = v
		return map[string]float64{"value": math.NaN()}
	}
	change := v - k.prev
	k.prev = v
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}
	if k.n-1 <= k.length {
		k.gains = append(k.gains, gain)
		k.losses = append(k.losses, loss)
		if k.n-1 == k.length {
			for _, g := range k.gains {
				k.avgGain += g
			}
			for _, l := range k.losses {
				k.avgLoss += l
			}
			k.avgGain /= float64(k.length)
			k.avgLoss /= float64(k.length)
		} else {
			return map[string]float64{"value": math.NaN()}
		}
	} else {
		alpha := 1.0 / float64(k.length)
		k.avgGain = k.avgGain*(1-alpha) + gain*alpha
		k.avgLoss = k.avgLoss*(1-alpha) + loss*alpha
	}
	if k.avgLoss == 0 {
		return map[string]float64{"value": 100}
	}
	rs := k.avgGain / k.avgLoss
	return map[string]float64{"value": 100 - 100/(1+rs)}
}
func (k *RSIKernel) IsReady() bool   { return k.n > k.length }
func (k *RSIKernel) WarmupBars() int { return k.length + 1 }
func (k *RSIKernel) Reset()          { *k = *NewRSI(k.length, k.src) }

// StochKernel: %K/%D stochastic oscillator.
type StochKernel struct {
	kPeriod, dPeriod, smoothK int
	highDeque, lowDeque       *monoDeque
	rawK                      *ringBuffer
	smoothedK                 *ringBuffer
	dBuf                      *ringBuffer
}

func NewStoch(kPeriod, smoothK, dPeriod int) *StochKernel {
	return &StochKernel{
		kPeriod: kPeriod, dPeriod: dPeriod, smoothK: smoothK,
		highDeque: newMonoDeque(kPeriod, false),
		lowDeque:  newMonoDeque(kPeriod, true),
		rawK:      newRingBuffer(smoothK),
		dBuf:      newRingBuffer(dPeriod),
	}
}

func (k *StochKernel) Push(b bar.Bar) map[string]float64 {
	hi := k.highDeque.Push(b.High)
	lo := k.lowDeque.Push(b.Low)
	if !k.highDeque.Ready() {
		return map[string]float64{"k": math.NaN(), "d": math.NaN()}
	}
	raw := 50.0
	if hi != lo {
		raw = (b.Close - lo) / (hi - lo) * 100
	}
	k.rawK.Push(raw)
	if !k.rawK.Full() {
		return map[string]float64{"k": math.NaN(), "d": math.NaN()}
	}
	kVal := k.rawK.Mean()
	k.dBuf.Push(kVal)
	d := math.NaN()
	if k.dBuf.Full() {
		d = k.dBuf.Mean()
	}
	return map[string]float64{"k": kVal, "d": d}
}
func (k *StochKernel) IsReady() bool   { return k.dBuf.Full() }
func (k *StochKernel) WarmupBars() int { return k.kPeriod + k.smoothK + k.dPeriod }
func (k *StochKernel) Reset()          { *k = *NewStoch(k.kPeriod, k.smoothK, k.dPeriod) }

// StochRSIKernel: stochastic oscillator applied to RSI instead of price.
type StochRSIKernel struct {
	rsi    *RSIKernel
	period int
	deque  *monoDeque
	loDeque *monoDeque
	smooth *ringBuffer
}

func NewStochRSI(rsiLength, stochLength, smoothK int) *StochRSIKernel {
	return &StochRSIKernel{
		rsi:     NewRSI(rsiLength, bar.SourceClose),
		period:  stochLength,
		deque:   newMonoDeque(stochLength, false),
		loDeque: newMonoDeque(stochLength, true),
		smooth:  newRingBuffer(smoothK),
	}
}

func (k *StochRSIKernel) Push(b bar.Bar) map[string]float64 {
	r := k.rsi.Push(b)["value"]
	if math.IsNaN(r) {
		return map[string]float64{"value": math.NaN()}
	}
	hi := k.deque.Push(r)
	lo := k.loDeque.Push(r)
	if !k.deque.Ready() {
		return map[string]float64{"value": math.NaN()}
	}
	raw := 50.0
	if hi != lo {
		raw = (r - lo) / (hi - lo) * 100
	}
	k.smooth.Push(raw)
	if !k.smooth.Full() {
		return map[string]float64{"value": math.NaN()}
	}
	return map[string]float64{"value": k.smooth.Mean()}
}
func (k *StochRSIKernel) IsReady() bool   { return k.smooth.Full() }
func (k *StochRSIKernel) WarmupBars() int { return k.rsi.WarmupBars() + k.period }
func (k *StochRSIKernel) Reset()          { *k = *NewStochRSI(k.rsi.length, k.period, k.smooth.cap) }

// CCIKernel: Commodity Channel Index over typical price.
type CCIKernel struct {
	length int
	win    *ringBuffer
}

func NewCCI(length int) *CCIKernel {
	return &CCIKernel{length: length, win: newRingBuffer(length)}
}

func (k *CCIKernel) Push(b bar.Bar) map[string]float64 {
	tp := b.Value(bar.SourceHLC3)
	k.win.Push(tp)
	if !k.win.Full() {
		return map[string]float64{"value": math.NaN()}
	}
	mean := k.win.Mean()
	meanDev := 0.0
	for _, v := range k.win.Values() {
		meanDev += math.Abs(v - mean)
	}
	meanDev /= float64(k.length)
	if meanDev == 0 {
		return map[string]float64{"value": 0}
	}
	return map[string]float64{"value": (tp - mean) / (0.015 * meanDev)}
}
func (k *CCIKernel) IsReady() bool   { return k.win.Full() }
func (k *CCIKernel) WarmupBars() int { return k.length }
func (k *CCIKernel) Reset()          { k.win = newRingBuffer(k.length) }

// WilliamsRKernel: Williams %R.
type WilliamsRKernel struct {
	length int
	hi, lo *monoDeque
}

func NewWilliamsR(length int) *WilliamsRKernel {
	return &WilliamsRKernel{length: length, hi: newMonoDeque(length, false), lo: newMonoDeque(length, true)}
}

func (k *WilliamsRKernel) Push(b bar.Bar) map[string]float64 {
	hi := k.hi.Push(b.High)
	lo := k.lo.Push(b.Low)
	if !k.hi.Ready() {
		return map[string]float64{"value": math.NaN()}
	}
	if hi == lo {
		return map[string]float64{"value": -50}
	}
	return map[string]float64{"value": (hi - b.Close) / (hi - lo) * -100}
}
func (k *WilliamsRKernel) IsReady() bool   { return k.hi.Ready() }
func (k *WilliamsRKernel) WarmupBars() int { return k.length }
func (k *WilliamsRKernel) Reset()          { *k = *NewWilliamsR(k.length) }

// ROCKernel: rate of change, percent, over `length` bars.
type ROCKernel struct {
	length int
	src    bar.Source
	hist   *ringBuffer
}

func NewROC(length int, src bar.Source) *ROCKernel {
	return &ROCKernel{length: length, src: src, hist: newRingBuffer(length + 1)}
}

func (k *ROCKernel) Push(b bar.Bar) map[string]float64 {
	k.hist.Push(b.Value(k.src))
	if !k.hist.Full() {
		return map[string]float64{"value": math.NaN()}
	}
	vals := k.hist.Values()
	old, cur := vals[0], vals[len(vals)-1]
	if old == 0 {
		return map[string]float64{"value": math.NaN()}
	}
	return map[string]float64{"value": (cur - old) / old * 100}
}
func (k *ROCKernel) IsReady() bool   { return k.hist.Full() }
func (k *ROCKernel) WarmupBars() int { return k.length + 1 }
func (k *ROCKernel) Reset()          { k.hist = newRingBuffer(k.length + 1) }

// MFIKernel: money flow index.
type MFIKernel struct {
	length             int
	prevTP             float64
	posFlow, negFlow   *ringBuffer
	n                  int
}

func NewMFI(length int) *MFIKernel {
	return &MFIKernel{length: length, posFlow: newRingBuffer(length), negFlow: newRingBuffer(length)}
}

func (k *MFIKernel) Push(b bar.Bar) map[string]float64 {
	tp := b.Value(bar.SourceHLC3)
	rawFlow := tp * b.Volume
	k.n++
	pos, neg := 0.0, 0.0
	if k.n > 1 {
		if tp > k.prevTP {
			pos = rawFlow
		} else if tp < k.prevTP {
			neg = rawFlow
		}
	}
	k.prevTP = tp
	k.posFlow.Push(pos)
	k.negFlow.Push(neg)
	if !k.posFlow.Full() || k.n == 1 {
		return map[string]float64{"value": math.NaN()}
	}
	if k.negFlow.Sum() == 0 {
		return map[string]float64{"value": 100}
	}
	ratio := k.posFlow.Sum() / k.negFlow.Sum()
	return map[string]float64{"value": 100 - 100/(1+ratio)}
}
func (k *MFIKernel) IsReady() bool   { return k.posFlow.Full() && k.n > 1 }
func (k *MFIKernel) WarmupBars() int { return k.length + 1 }
func (k *MFIKernel) Reset()          { *k = *NewMFI(k.length) }

// CMOKernel: Chande momentum oscillator.
type CMOKernel struct {
	length int
	src    bar.Source
	prev   float64
	n      int
	gains, losses *ringBuffer
}

func NewCMO(length int, src bar.Source) *CMOKernel {
	return &CMOKernel{length: length, src: src, gains: newRingBuffer(length), losses: newRingBuffer(length)}
}

func (k *CMOKernel) Push(b bar.Bar) map[string]float64 {
	v := b.Value(k.src)
	k.n++
	if k.n == 1 {
		k.prev = v
		return map[string]float64{"value": math.NaN()}
	}
	change := v - k.prev
	k.prev = v
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}
	k.gains.Push(gain)
	k.losses.Push(loss)
	if !k.gains.Full() {
		return map[string]float64{"value": math.NaN()}
	}
	sumGain, sumLoss := k.gains.Sum(), k.losses.Sum()
	if sumGain+sumLoss == 0 {
		return map[string]float64{"value": 0}
	}
	return map[string]float64{"value": (sumGain - sumLoss) / (sumGain + sumLoss) * 100}
}
func (k *CMOKernel) IsReady() bool   { return k.gains.Full() }
func (k *CMOKernel) WarmupBars() int { return k.length + 1 }
func (k *CMOKernel) Reset()          { *k = *NewCMO(k.length, k.src) }

// TSIKernel: true strength index, double-smoothed momentum ratio.
type TSIKernel struct {
	long, short int
	prev        float64
	n           int
	momEMA1, momEMA2 *EMAKernel
	absEMA1, absEMA2 *EMAKernel
}

func NewTSI(long, short int) *TSIKernel {
	return &TSIKernel{
		long: long, short: short,
		momEMA1: NewEMA(long, bar.SourceClose), momEMA2: NewEMA(short, bar.SourceClose),
		absEMA1: NewEMA(long, bar.SourceClose), absEMA2: NewEMA(short, bar.SourceClose),
	}
}

func (k *TSIKernel) Push(b bar.Bar) map[string]float64 {
	k.n++
	if k.n == 1 {
		k.prev = b.Close
		return map[string]float64{"value": math.NaN()}
	}
	mom := b.Close - k.prev
	k.prev = b.Close
	m1 := k.momEMA1.Push(constBar(mom))["value"]
	a1 := k.absEMA1.Push(constBar(math.Abs(mom)))["value"]
	if math.IsNaN(m1) || math.IsNaN(a1) {
		return map[string]float64{"value": math.NaN()}
	}
	m2 := k.momEMA2.Push(constBar(m1))["value"]
	a2 := k.absEMA2.Push(constBar(a1))["value"]
	if math.IsNaN(m2) || math.IsNaN(a2) || a2 == 0 {
		return map[string]float64{"value": math.NaN()}
	}
	return map[string]float64{"value": 100 * m2 / a2}
}
func (k *TSIKernel) IsReady() bool   { return k.momEMA2.IsReady() }
func (k *TSIKernel) WarmupBars() int { return k.long + k.short + 1 }
func (k *TSIKernel) Reset()          { *k = *NewTSI(k.long, k.short) }

// UltimateOscKernel: Williams' ultimate oscillator blending 3 BP/TR windows.
type UltimateOscKernel struct {
	p1, p2, p3     int
	prevClose      float64
	n              int
	bp1, tr1       *ringBuffer
	bp2, tr2       *ringBuffer
	bp3, tr3       *ringBuffer
}

func NewUltimateOsc(p1, p2, p3 int) *UltimateOscKernel {
	return &UltimateOscKernel{
		p1: p1, p2: p2, p3: p3,
		bp1: newRingBuffer(p1), tr1: newRingBuffer(p1),
		bp2: newRingBuffer(p2), tr2: newRingBuffer(p2),
		bp3: newRingBuffer(p3), tr3: newRingBuffer(p3),
	}
}

func (k *UltimateOscKernel) Push(b bar.Bar) map[string]float64 {
	k.n++
	if k.n == 1 {
		k.prevClose = b.Close
		return map[string]float64{"value": math.NaN()}
	}
	low := math.Min(b.Low, k.prevClose)
	high := math.Max(b.High, k.prevClose)
	bp := b.Close - low
	tr := high - low
	k.prevClose = b.Close
	k.bp1.Push(bp)
	k.tr1.Push(tr)
	k.bp2.Push(bp)
	k.tr2.Push(tr)
	k.bp3.Push(bp)
	k.tr3.Push(tr)
	if !k.bp3.Full() {
		return map[string]float64{"value": math.NaN()}
	}
	avg1 := safeDiv(k.bp1.Sum(), k.tr1.Sum())
	avg2 := safeDiv(k.bp2.Sum(), k.tr2.Sum())
	avg3 := safeDiv(k.bp3.Sum(), k.tr3.Sum())
	uo := 100 * (4*avg1 + 2*avg2 + avg3) / 7
	return map[string]float64{"value": uo}
}
func (k *UltimateOscKernel) IsReady() bool   { return k.bp3.Full() }
func (k *UltimateOscKernel) WarmupBars() int { return k.p3 + 1 }
func (k *UltimateOscKernel) Reset()          { *k = *NewUltimateOsc(k.p1, k.p2, k.p3) }

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
