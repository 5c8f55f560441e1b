package structure

import "github.com/sawpanic/backtest-engine/internal/bar"

// DerivedZoneSlot is one K-slot zone spawned around a confirmed swing pivot
// at a fibonacci ratio offset.
type DerivedZoneSlot struct {
	Lower, Upper   float64
	State          ZoneState
	AnchorIdx      int
	AgeBars        int
	TouchedThisBar bool
	TouchCount     int
	LastTouchAge   int
	Inside         bool
	InstanceID     int64
}

// DerivedZoneKernel maintains up to max_active fibonacci-ratio zones around
// each newly-confirmed swing pivot from a source swing detector. Eviction is
// FIFO by creation order: when a K+1-th zone would form, the oldest ACTIVE
// slot is evicted regardless of its own state.
type DerivedZoneKernel struct {
	swing     *SwingKernel
	maxActive int
	ratio     float64 // offset ratio applied to the pivot's ATR-free range estimate
	widthPct  float64

	slots     []DerivedZoneSlot
	nextID    int64
	version   int
}

func NewDerivedZone(swing *SwingKernel, maxActive int, ratio, widthPct float64) *DerivedZoneKernel {
	return &DerivedZoneKernel{swing: swing, maxActive: maxActive, ratio: ratio, widthPct: widthPct}
}

func (k *DerivedZoneKernel) Push(b bar.Bar) map[string]any {
	delta := k.swing.Push(b)

	for i := range k.slots {
		s := &k.slots[i]
		if s.State != ZoneActive {
			continue
		}
		s.AgeBars++
		s.TouchedThisBar = false
		s.Inside = b.Low <= s.Upper && b.High >= s.Lower
		touched := b.Low <= s.Upper && b.Low >= s.Lower || b.High >= s.Lower && b.High <= s.Upper
		if touched {
			s.TouchedThisBar = true
			s.TouchCount++
			s.LastTouchAge = 0
		} else {
			s.LastTouchAge++
		}
		broken := b.Low < s.Lower-1e-12 && b.High > s.Upper+1e-12
		if broken {
			s.State = ZoneBroken
		}
	}

	out := map[string]any{}
	if hl, ok := delta["high_level"]; ok {
		k.spawn(hl.(float64), delta["high_idx"].(int), false)
		out["spawned_high"] = true
	}
	if ll, ok := delta["low_level"]; ok {
		k.spawn(ll.(float64), delta["low_idx"].(int), true)
		out["spawned_low"] = true
	}
	if len(out) > 0 {
		k.version++
	}
	return out
}

func (k *DerivedZoneKernel) spawn(level float64, anchorIdx int, isDemand bool) {
	width := level * k.widthPct / 100
	var lower, upper float64
	offset := level * k.ratio
	if isDemand {
		lower = level - width - offset
		upper = level - offset
	} else {
		lower = level + offset
		upper = level + width + offset
	}
	slot := DerivedZoneSlot{Lower: lower, Upper: upper, State: ZoneActive, AnchorIdx: anchorIdx, InstanceID: k.nextID}
	k.nextID++

	activeCount := 0
	oldestIdx := -1
	for i, s := range k.slots {
		if s.State == ZoneActive {
			activeCount++
			if oldestIdx == -1 {
				oldestIdx = i
			}
		}
	}
	if activeCount >= k.maxActive && oldestIdx != -1 {
		k.slots = append(k.slots[:oldestIdx], k.slots[oldestIdx+1:]...)
	}
	k.slots = append(k.slots, slot)
}

// ActiveCount returns how many slots are currently ACTIVE.
func (k *DerivedZoneKernel) ActiveCount() int {
	n := 0
	for _, s := range k.slots {
		if s.State == ZoneActive {
			n++
		}
	}
	return n
}

func (k *DerivedZoneKernel) AnyActive() bool  { return k.ActiveCount() > 0 }
func (k *DerivedZoneKernel) AnyTouched() bool {
	for _, s := range k.slots {
		if s.State == ZoneActive && s.TouchedThisBar {
			return true
		}
	}
	return false
}
func (k *DerivedZoneKernel) AnyInside() bool {
	for _, s := range k.slots {
		if s.State == ZoneActive && s.Inside {
			return true
		}
	}
	return false
}

// Newest returns the most recently spawned ACTIVE slot, if any.
func (k *DerivedZoneKernel) Newest() (DerivedZoneSlot, bool) {
	for i := len(k.slots) - 1; i >= 0; i-- {
		if k.slots[i].State == ZoneActive {
			return k.slots[i], true
		}
	}
	return DerivedZoneSlot{}, false
}

// Slots returns the compacted slot list, indices 0..len-1, compacted when
// broken — broken slots are dropped here rather than retained as holes.
func (k *DerivedZoneKernel) Slots() []DerivedZoneSlot {
	out := make([]DerivedZoneSlot, 0, len(k.slots))
	for _, s := range k.slots {
		if s.State == ZoneActive {
			out = append(out, s)
		}
	}
	return out
}

func (k *DerivedZoneKernel) Version() int { return k.version }
func (k *DerivedZoneKernel) Reset() {
	k.swing.Reset()
	*k = *NewDerivedZone(k.swing, k.maxActive, k.ratio, k.widthPct)
}
