package structure

import "github.com/sawpanic/backtest-engine/internal/bar"

type wave struct {
	high, low float64
	isHighWave bool // true if this wave's defining extreme was a new high pivot
}

// TrendKernel tracks the last waveHistorySize completed swing waves and
// derives a direction/strength/streak.
type TrendKernel struct {
	swing           *SwingKernel
	waveHistorySize int
	waves           []wave
	lastHighIdx     int
	lastLowIdx      int
	haveLastHigh    bool
	haveLastLow     bool

	Direction   Direction
	Strength    int // 0 ranging, 1 single confirmation, 2 double confirmation
	BarsInTrend int
	WaveCount   int
	LastHH, LastHL, LastLH, LastLL bool
	version int
}

func NewTrend(swing *SwingKernel, waveHistorySize int) *TrendKernel {
	if waveHistorySize <= 0 {
		waveHistorySize = 4
	}
	return &TrendKernel{swing: swing, waveHistorySize: waveHistorySize}
}

func (k *TrendKernel) Push(b bar.Bar) map[string]any {
	delta := k.swing.Push(b)
	k.BarsInTrend++
	changed := false

	if hl, ok := delta["high_level"]; ok {
		level := hl.(float64)
		k.pushWave(wave{high: level, isHighWave: true})
		k.haveLastHigh = true
		k.lastHighIdx = delta["high_idx"].(int)
		changed = k.recompute() || changed
	}
	if ll, ok := delta["low_level"]; ok {
		level := ll.(float64)
		k.pushWave(wave{low: level, isHighWave: false})
		k.haveLastLow = true
		k.lastLowIdx = delta["low_idx"].(int)
		changed = k.recompute() || changed
	}
	if changed {
		k.version++
	}
	return delta
}

func (k *TrendKernel) pushWave(w wave) {
	k.waves = append(k.waves, w)
	if len(k.waves) > k.waveHistorySize {
		k.waves = k.waves[len(k.waves)-k.waveHistorySize:]
	}
	k.WaveCount++
}

// recompute derives HH/HL/LH/LL flags and direction/strength from the last
// two pairs of (high,low) waves; returns whether the public fields changed.
func (k *TrendKernel) recompute() bool {
	highs, lows := k.splitWaves()
	prevDir := k.Direction
	prevStrength := k.Strength

	if len(highs) < 2 || len(lows) < 2 {
		k.Direction = DirFlat
		k.Strength = 0
		k.LastHH, k.LastHL, k.LastLH, k.LastLL = false, false, false, false
		return prevDir != k.Direction || prevStrength != k.Strength
	}

	hh := highs[len(highs)-1] > highs[len(highs)-2]
	hl := lows[len(lows)-1] > lows[len(lows)-2]
	lh := highs[len(highs)-1] < highs[len(highs)-2]
	ll := lows[len(lows)-1] < lows[len(lows)-2]
	k.LastHH, k.LastHL, k.LastLH, k.LastLL = hh, hl, lh, ll

	upPair := hh && hl
	downPair := ll && lh

	newDir := DirFlat
	if upPair {
		newDir = DirUp
	} else if downPair {
		newDir = DirDown
	}
	if newDir != k.Direction {
		k.BarsInTrend = 0
	}
	k.Direction = newDir

	strength := 0
	if (upPair && newDir == DirUp) || (downPair && newDir == DirDown) {
		strength = 1
		if len(highs) >= 3 && len(lows) >= 3 {
			hh2 := highs[len(highs)-2] > highs[len(highs)-3]
			hl2 := lows[len(lows)-2] > lows[len(lows)-3]
			lh2 := highs[len(highs)-2] < highs[len(highs)-3]
			ll2 := lows[len(lows)-2] < lows[len(lows)-3]
			if (newDir == DirUp && hh2 && hl2) || (newDir == DirDown && ll2 && lh2) {
				strength = 2
			}
		}
	}
	k.Strength = strength
	return prevDir != k.Direction || prevStrength != k.Strength
}

func (k *TrendKernel) splitWaves() (highs, lows []float64) {
	for _, w := range k.waves {
		if w.isHighWave {
			highs = append(highs, w.high)
		} else {
			lows = append(lows, w.low)
		}
	}
	return
}

func (k *TrendKernel) Version() int { return k.version }
func (k *TrendKernel) Reset() {
	k.swing.Reset()
	*k = *NewTrend(k.swing, k.waveHistorySize)
}
