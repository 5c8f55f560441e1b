package indicator

import (
	"math"

	"github.com/sawpanic/backtest-engine/internal/bar"
)

// MACDKernel: moving average convergence/divergence.
type MACDKernel struct {
	fast, slow, signal int
	fastEMA, slowEMA    *EMAKernel
	signalEMA           *EMAKernel
}

func NewMACD(fast, slow, signal int, src bar.Source) *MACDKernel {
	return &MACDKernel{
		fast: fast, slow: slow, signal: signal,
		fastEMA: NewEMA(fast, src), slowEMA: NewEMA(slow, src),
		signalEMA: NewEMA(signal, bar.SourceClose),
	}
}

func (k *MACDKernel) Push(b bar.Bar) map[string]float64 {
	f := k.fastEMA.Push(b)["value"]
	s := k.slowEMA.Push(b)["value"]
	if math.IsNaN(f) || math.IsNaN(s) {
		return map[string]float64{"macd": math.NaN(), "signal": math.NaN(), "histogram": math.NaN()}
	}
	macd := f - s
	sig := k.signalEMA.Push(constBar(macd))["value"]
	hist := math.NaN()
	if !math.IsNaN(sig) {
		hist = macd - sig
	}
	return map[string]float64{"macd": macd, "signal": sig, "histogram": hist}
}
func (k *MACDKernel) IsReady() bool   { return k.signalEMA.IsReady() }
func (k *MACDKernel) WarmupBars() int { return k.slow + k.signal }
func (k *MACDKernel) Reset()          { *k = *NewMACD(k.fast, k.slow, k.signal, k.fastEMA.src) }

// ADXKernel: Wilder's average directional index, plus +DI/-DI.
type ADXKernel struct {
	length    int
	prevHigh  float64
	prevLow   float64
	prevClose float64
	n         int
	atr       float64
	plusDM    float64
	minusDM   float64
	dxBuf     *ringBuffer
	adx       float64
	seededADX bool
}

func NewADX(length int) *ADXKernel {
	return &ADXKernel{length: length, dxBuf: newRingBuffer(length)}
}

func (k *ADXKernel) Push(b bar.Bar) map[string]float64 {
	k.n++
	if k.n == 1 {
		k.prevHigh, k.prevLow, k.prevClose = b.High, b.Low, b.Close
		return map[string]float64{"adx": math.NaN(), "plus_di": math.NaN(), "minus_di": math.NaN()}
	}
	upMove := b.High - k.prevHigh
	downMove := k.prevLow - b.Low
	plusDM, minusDM := 0.0, 0.0
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}
	tr := trueRange(b.High, b.Low, k.prevClose)
	k.prevHigh, k.prevLow, k.prevClose = b.High, b.Low, b.Close

	alpha := 1.0 / float64(k.length)
	if k.n-1 <= k.length {
		k.atr += tr
		k.plusDM += plusDM
		k.minusDM += minusDM
		if k.n-1 < k.length {
			return map[string]float64{"adx": math.NaN(), "plus_di": math.NaN(), "minus_di": math.NaN()}
		}
	} else {
		k.atr = k.atr*(1-alpha) + tr
		k.plusDM = k.plusDM*(1-alpha) + plusDM
		k.minusDM = k.minusDM*(1-alpha) + minusDM
	}
	plusDI, minusDI := 0.0, 0.0
	if k.atr != 0 {
		plusDI = 100 * k.plusDM / k.atr
		minusDI = 100 * k.minusDM / k.atr
	}
	dx := 0.0
	if plusDI+minusDI != 0 {
		dx = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}
	k.dxBuf.Push(dx)
	adx := math.NaN()
	if k.dxBuf.Full() {
		if !k.seededADX {
			k.adx = k.dxBuf.Mean()
			k.seededADX = true
		} else {
			k.adx = (k.adx*float64(k.length-1) + dx) / float64(k.length)
		}
		adx = k.adx
	}
	return map[string]float64{"adx": adx, "plus_di": plusDI, "minus_di": minusDI}
}
func (k *ADXKernel) IsReady() bool   { return k.dxBuf.Full() }
func (k *ADXKernel) WarmupBars() int { return 2 * k.length }
func (k *ADXKernel) Reset()          { *k = *NewADX(k.length) }

func trueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}

// AroonKernel: Aroon up/down/oscillator.
type AroonKernel struct {
	length       int
	highs, lows  []float64
	idx          int
	n            int
}

func NewAroon(length int) *AroonKernel {
	return &AroonKernel{length: length, highs: make([]float64, length+1), lows: make([]float64, length+1)}
}

func (k *AroonKernel) Push(b bar.Bar) map[string]float64 {
	k.highs[k.idx] = b.High
	k.lows[k.idx] = b.Low
	k.idx = (k.idx + 1) % len(k.highs)
	k.n++
	if k.n < len(k.highs) {
		return map[string]float64{"up": math.NaN(), "down": math.NaN(), "oscillator": math.NaN()}
	}
	hiIdxAgo, loIdxAgo := 0, 0
	hiVal, loVal := math.Inf(-1), math.Inf(1)
	for i := 0; i < len(k.highs); i++ {
		pos := (k.idx + i) % len(k.highs) // oldest..newest
		agoFromNewest := len(k.highs) - 1 - i
		if k.highs[pos] >= hiVal {
			hiVal = k.highs[pos]
			hiIdxAgo = agoFromNewest
		}
		if k.lows[pos] <= loVal {
			loVal = k.lows[pos]
			loIdxAgo = agoFromNewest
		}
	}
	up := float64(k.length-hiIdxAgo) / float64(k.length) * 100
	down := float64(k.length-loIdxAgo) / float64(k.length) * 100
	return map[string]float64{"up": up, "down": down, "oscillator": up - down}
}
func (k *AroonKernel) IsReady() bool   { return k.n >= len(k.highs) }
func (k *AroonKernel) WarmupBars() int { return k.length + 1 }
func (k *AroonKernel) Reset()          { *k = *NewAroon(k.length) }

// PSARKernel: Wilder's parabolic stop-and-reverse.
type PSARKernel struct {
	step, maxStep float64
	n             int
	bullish       bool
	sar, ep, af   float64
	prevHigh, prevLow float64
}

func NewPSAR(step, maxStep float64) *PSARKernel {
	return &PSARKernel{step: step, maxStep: maxStep, af: step, bullish: true}
}

func (k *PSARKernel) Push(b bar.Bar) map[string]float64 {
	k.n++
	if k.n == 1 {
		k.sar = b.Low
		k.ep = b.High
		k.prevHigh, k.prevLow = b.High, b.Low
		return map[string]float64{"value": math.NaN()}
	}
	prevSAR := k.sar
	k.sar = prevSAR + k.af*(k.ep-prevSAR)

	if k.bullish {
		k.sar = math.Min(k.sar, k.prevLow)
		if b.Low < k.sar {
			k.bullish = false
			k.sar = k.ep
			k.ep = b.Low
			k.af = k.step
		} else {
			if b.High > k.ep {
				k.ep = b.High
				k.af = math.Min(k.af+k.step, k.maxStep)
			}
		}
	} else {
		k.sar = math.Max(k.sar, k.prevHigh)
		if b.High > k.sar {
			k.bullish = true
			k.sar = k.ep
			k.ep = b.High
			k.af = k.step
		} else {
			if b.Low < k.ep {
				k.ep = b.Low
				k.af = math.Min(k.af+k.step, k.maxStep)
			}
		}
	}
	k.prevHigh, k.prevLow = b.High, b.Low
	return map[string]float64{"value": k.sar}
}
func (k *PSARKernel) IsReady() bool   { return k.n >= 2 }
func (k *PSARKernel) WarmupBars() int { return 2 }
func (k *PSARKernel) Reset()          { *k = *NewPSAR(k.step, k.maxStep) }

// SupertrendKernel: ATR-banded trend-following overlay.
type SupertrendKernel struct {
	length     int
	multiplier float64
	atr        *ATRKernel
	prevClose  float64
	upperBand, lowerBand float64
	trendUp    bool
	n          int
}

func NewSupertrend(length int, multiplier float64) *SupertrendKernel {
	return &SupertrendKernel{length: length, multiplier: multiplier, atr: NewATR(length), trendUp: true}
}

func (k *SupertrendKernel) Push(b bar.Bar) map[string]float64 {
	atrVal := k.atr.Push(b)["value"]
	k.n++
	if math.IsNaN(atrVal) {
		k.prevClose = b.Close
		return map[string]float64{"value": math.NaN(), "direction": math.NaN()}
	}
	mid := (b.High + b.Low) / 2
	basicUpper := mid + k.multiplier*atrVal
	basicLower := mid - k.multiplier*atrVal
	if k.n == k.atr.WarmupBars()+1 {
		k.upperBand = basicUpper
		k.lowerBand = basicLower
	} else {
		if basicUpper < k.upperBand || k.prevClose > k.upperBand {
			k.upperBand = basicUpper
		}
		if basicLower > k.lowerBand || k.prevClose < k.lowerBand {
			k.lowerBand = basicLower
		}
	}
	if k.trendUp {
		if b.Close < k.lowerBand {
			k.trendUp = false
		}
	} else {
		if b.Close > k.upperBand {
			k.trendUp = true
		}
	}
	k.prevClose = b.Close
	dir := -1.0
	value := k.upperBand
	if k.trendUp {
		dir = 1.0
		value = k.lowerBand
	}
	return map[string]float64{"value": value, "direction": dir}
}
func (k *SupertrendKernel) IsReady() bool   { return k.atr.IsReady() }
func (k *SupertrendKernel) WarmupBars() int { return k.atr.WarmupBars() + 1 }
func (k *SupertrendKernel) Reset()          { *k = *NewSupertrend(k.length, k.multiplier) }

// IchimokuKernel: tenkan/kijun/senkou A/B cloud lines.
type IchimokuKernel struct {
	tenkanLen, kijunLen, senkouBLen int
	tenkanHi, tenkanLo *monoDeque
	kijunHi, kijunLo   *monoDeque
	senkouHi, senkouLo *monoDeque
}

func NewIchimoku(tenkanLen, kijunLen, senkouBLen int) *IchimokuKernel {
	return &IchimokuKernel{
		tenkanLen: tenkanLen, kijunLen: kijunLen, senkouBLen: senkouBLen,
		tenkanHi: newMonoDeque(tenkanLen, false), tenkanLo: newMonoDeque(tenkanLen, true),
		kijunHi: newMonoDeque(kijunLen, false), kijunLo: newMonoDeque(kijunLen, true),
		senkouHi: newMonoDeque(senkouBLen, false), senkouLo: newMonoDeque(senkouBLen, true),
	}
}

func (k *IchimokuKernel) Push(b bar.Bar) map[string]float64 {
	tHi, tLo := k.tenkanHi.Push(b.High), k.tenkanLo.Push(b.Low)
	kHi, kLo := k.kijunHi.Push(b.High), k.kijunLo.Push(b.Low)
	sHi, sLo := k.senkouHi.Push(b.High), k.senkouLo.Push(b.Low)
	out := map[string]float64{"tenkan": math.NaN(), "kijun": math.NaN(), "senkou_a": math.NaN(), "senkou_b": math.NaN()}
	if k.tenkanHi.Ready() {
		out["tenkan"] = (tHi + tLo) / 2
	}
	if k.kijunHi.Ready() {
		out["kijun"] = (kHi + kLo) / 2
	}
	if !math.IsNaN(out["tenkan"]) && !math.IsNaN(out["kijun"]) {
		out["senkou_a"] = (out["tenkan"] + out["kijun"]) / 2
	}
	if k.senkouHi.Ready() {
		out["senkou_b"] = (sHi + sLo) / 2
	}
	return out
}
func (k *IchimokuKernel) IsReady() bool   { return k.senkouHi.Ready() }
func (k *IchimokuKernel) WarmupBars() int { return k.senkouBLen }
func (k *IchimokuKernel) Reset()          { *k = *NewIchimoku(k.tenkanLen, k.kijunLen, k.senkouBLen) }

// VortexKernel: positive/negative vortex movement indicator.
type VortexKernel struct {
	length            int
	prevHigh, prevLow, prevClose float64
	n                 int
	vmPlus, vmMinus, trBuf *ringBuffer
}

func NewVortex(length int) *VortexKernel {
	return &VortexKernel{length: length, vmPlus: newRingBuffer(length), vmMinus: newRingBuffer(length), trBuf: newRingBuffer(length)}
}

func (k *VortexKernel) Push(b bar.Bar) map[string]float64 {
	k.n++
	if k.n == 1 {
		k.prevHigh, k.prevLow, k.prevClose = b.High, b.Low, b.Close
		return map[string]float64{"plus": math.NaN(), "minus": math.NaN()}
	}
	vmPlus := math.Abs(b.High - k.prevLow)
	vmMinus := math.Abs(b.Low - k.prevHigh)
	tr := trueRange(b.High, b.Low, k.prevClose)
	k.prevHigh, k.prevLow, k.prevClose = b.High, b.Low, b.Close
	k.vmPlus.Push(vmPlus)
	k.vmMinus.Push(vmMinus)
	k.trBuf.Push(tr)
	if !k.vmPlus.Full() || k.trBuf.Sum() == 0 {
		return map[string]float64{"plus": math.NaN(), "minus": math.NaN()}
	}
	return map[string]float64{"plus": k.vmPlus.Sum() / k.trBuf.Sum(), "minus": k.vmMinus.Sum() / k.trBuf.Sum()}
}
func (k *VortexKernel) IsReady() bool   { return k.vmPlus.Full() }
func (k *VortexKernel) WarmupBars() int { return k.length + 1 }
func (k *VortexKernel) Reset()          { *k = *NewVortex(k.length) }
