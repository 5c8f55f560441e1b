package indicator

import (
	"math"

	"github.com/sawpanic/backtest-engine/internal/bar"
)

// ATRKernel: Wilder's average true range.
type ATRKernel struct {
	length    int
	prevClose float64
	n         int
	atr       float64
	seeded    bool
	seedSum   float64
}

func NewATR(length int) *ATRKernel {
	return &ATRKernel{length: length}
}

func (k *ATRKernel) Push(b bar.Bar) map[string]float64 {
	k.n++
	if k.n == 1 {
		k.prevClose = b.Close
		return map[string]float64{"value": math.NaN()}
	}
	tr := trueRange(b.High, b.Low, k.prevClose)
	k.prevClose = b.Close
	if !k.seeded {
		k.seedSum += tr
		if k.n-1 == k.length {
			k.atr = k.seedSum / float64(k.length)
			k.seeded = true
		} else {
			return map[string]float64{"value": math.NaN()}
		}
	} else {
		k.atr = (k.atr*float64(k.length-1) + tr) / float64(k.length)
	}
	return map[string]float64{"value": k.atr}
}
func (k *ATRKernel) IsReady() bool   { return k.seeded }
func (k *ATRKernel) WarmupBars() int { return k.length + 1 }
func (k *ATRKernel) Reset()          { *k = *NewATR(k.length) }

// BBandsKernel: Bollinger bands, SMA middle +/- stdDevMult * population stddev.
type BBandsKernel struct {
	length  int
	mult    float64
	src     bar.Source
	win     *ringBuffer
}

func NewBBands(length int, mult float64, src bar.Source) *BBandsKernel {
	return &BBandsKernel{length: length, mult: mult, src: src, win: newRingBuffer(length)}
}

func (k *BBandsKernel) Push(b bar.Bar) map[string]float64 {
	k.win.Push(b.Value(k.src))
	if !k.win.Full() {
		return map[string]float64{"middle": math.NaN(), "upper": math.NaN(), "lower": math.NaN()}
	}
	mid := k.win.Mean()
	sd := k.win.StdDev(false)
	return map[string]float64{"middle": mid, "upper": mid + k.mult*sd, "lower": mid - k.mult*sd}
}
func (k *BBandsKernel) IsReady() bool   { return k.win.Full() }
func (k *BBandsKernel) WarmupBars() int { return k.length }
func (k *BBandsKernel) Reset()          { k.win = newRingBuffer(k.length) }

// KeltnerKernel: EMA middle +/- multiplier * ATR.
type KeltnerKernel struct {
	length int
	mult   float64
	ema    *EMAKernel
	atr    *ATRKernel
}

func NewKeltner(length int, mult float64) *KeltnerKernel {
	return &KeltnerKernel{length: length, mult: mult, ema: NewEMA(length, bar.SourceClose), atr: NewATR(length)}
}

func (k *KeltnerKernel) Push(b bar.Bar) map[string]float64 {
	mid := k.ema.Push(b)["value"]
	atrVal := k.atr.Push(b)["value"]
	if math.IsNaN(mid) || math.IsNaN(atrVal) {
		return map[string]float64{"middle": math.NaN(), "upper": math.NaN(), "lower": math.NaN()}
	}
	return map[string]float64{"middle": mid, "upper": mid + k.mult*atrVal, "lower": mid - k.mult*atrVal}
}
func (k *KeltnerKernel) IsReady() bool   { return k.ema.IsReady() && k.atr.IsReady() }
func (k *KeltnerKernel) WarmupBars() int { return max(k.ema.WarmupBars(), k.atr.WarmupBars()) }
func (k *KeltnerKernel) Reset()          { *k = *NewKeltner(k.length, k.mult) }

// DonchianKernel: highest-high / lowest-low channel.
type DonchianKernel struct {
	length int
	hi, lo *monoDeque
}

func NewDonchian(length int) *DonchianKernel {
	return &DonchianKernel{length: length, hi: newMonoDeque(length, false), lo: newMonoDeque(length, true)}
}

func (k *DonchianKernel) Push(b bar.Bar) map[string]float64 {
	hi := k.hi.Push(b.High)
	lo := k.lo.Push(b.Low)
	if !k.hi.Ready() {
		return map[string]float64{"upper": math.NaN(), "lower": math.NaN(), "middle": math.NaN()}
	}
	return map[string]float64{"upper": hi, "lower": lo, "middle": (hi + lo) / 2}
}
func (k *DonchianKernel) IsReady() bool   { return k.hi.Ready() }
func (k *DonchianKernel) WarmupBars() int { return k.length }
func (k *DonchianKernel) Reset()          { *k = *NewDonchian(k.length) }

// StdDevKernel: rolling sample standard deviation of a source series.
type StdDevKernel struct {
	length int
	src    bar.Source
	win    *ringBuffer
}

func NewStdDev(length int, src bar.Source) *StdDevKernel {
	return &StdDevKernel{length: length, src: src, win: newRingBuffer(length)}
}

func (k *StdDevKernel) Push(b bar.Bar) map[string]float64 {
	k.win.Push(b.Value(k.src))
	if !k.win.Full() {
		return map[string]float64{"value": math.NaN()}
	}
	return map[string]float64{"value": k.win.StdDev(true)}
}
func (k *StdDevKernel) IsReady() bool   { return k.win.Full() }
func (k *StdDevKernel) WarmupBars() int { return k.length }
func (k *StdDevKernel) Reset()          { k.win = newRingBuffer(k.length) }

// HistoricalVolKernel: annualized stddev of log returns over `length` bars.
type HistoricalVolKernel struct {
	length        int
	annualFactor  float64
	prevClose     float64
	n             int
	returns       *ringBuffer
}

// NewHistoricalVol: annualFactor is sqrt(bars-per-year) for the bar's timeframe,
// e.g. sqrt(525600) for 1m bars.
func NewHistoricalVol(length int, annualFactor float64) *HistoricalVolKernel {
	return &HistoricalVolKernel{length: length, annualFactor: annualFactor, returns: newRingBuffer(length)}
}

func (k *HistoricalVolKernel) Push(b bar.Bar) map[string]float64 {
	k.n++
	if k.n == 1 {
		k.prevClose = b.Close
		return map[string]float64{"value": math.NaN()}
	}
	ret := 0.0
	if k.prevClose > 0 && b.Close > 0 {
		ret = math.Log(b.Close / k.prevClose)
	}
	k.prevClose = b.Close
	k.returns.Push(ret)
	if !k.returns.Full() {
		return map[string]float64{"value": math.NaN()}
	}
	return map[string]float64{"value": k.returns.StdDev(true) * k.annualFactor}
}
func (k *HistoricalVolKernel) IsReady() bool   { return k.returns.Full() }
func (k *HistoricalVolKernel) WarmupBars() int { return k.length + 1 }
func (k *HistoricalVolKernel) Reset()          { *k = *NewHistoricalVol(k.length, k.annualFactor) }
