package structure

import (
	"testing"

	"github.com/sawpanic/backtest-engine/internal/bar"
)

func mkBar(i int, o, h, l, c, v float64) bar.Bar {
	return bar.Bar{TsOpen: int64(i * 60000), TsClose: int64((i + 1) * 60000), Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestSwingConfirmsHighAfterRightBars(t *testing.T) {
	s := NewSwing(2, 2, 0, nil)
	bars := []bar.Bar{
		mkBar(0, 10, 11, 9, 10, 1),
		mkBar(1, 10, 12, 9, 11, 1),
		mkBar(2, 11, 20, 10, 15, 1), // candidate peak
		mkBar(3, 15, 14, 13, 13, 1),
		mkBar(4, 13, 13, 12, 12, 1), // confirms bar 2 as a swing high
	}
	var lastDelta map[string]any
	for _, b := range bars {
		lastDelta = s.Push(b)
	}
	if _, ok := lastDelta["high_level"]; !ok {
		t.Fatalf("expected a confirmed high on the final bar, got %v", lastDelta)
	}
	if s.HighLevel != 20 || s.HighIdx != 2 {
		t.Fatalf("high_level=%v high_idx=%v, want 20 @ 2", s.HighLevel, s.HighIdx)
	}
}

func TestMarketStructureBOSThenCHOCH(t *testing.T) {
	swing := NewSwing(1, 1, 0, nil)
	ms := NewMarketStructure(swing, false)
	bars := []bar.Bar{
		mkBar(0, 10, 10, 10, 10, 1),
		mkBar(1, 10, 15, 9, 12, 1), // candidate high (idx1) pending confirm
		mkBar(2, 12, 11, 8, 9, 1),  // confirms idx1 high=15; also sets up low watch
		mkBar(3, 9, 20, 9, 19, 1),  // breaches high level 15 -> BOS, bias up
	}
	for _, b := range bars {
		ms.Push(b)
	}
	if ms.Bias != DirUp {
		t.Fatalf("expected bullish bias after BOS, got %v", ms.Bias)
	}
}

func TestDerivedZoneFIFOEviction(t *testing.T) {
	swing := NewSwing(1, 1, 0, nil)
	dz := NewDerivedZone(swing, 2, 0.0, 1.0)
	// Feed enough alternating-extreme bars to spawn more than max_active=2 zones.
	prices := []float64{100, 105, 95, 110, 90, 115, 85}
	for i, p := range prices {
		dz.Push(mkBar(i, p, p+1, p-1, p, 1))
	}
	if dz.ActiveCount() > 2 {
		t.Fatalf("expected at most 2 active slots after eviction, got %d", dz.ActiveCount())
	}
}

func TestRollingWindowMinMax(t *testing.T) {
	rw := NewRollingWindow(3, false, bar.SourceHigh)
	bars := []bar.Bar{
		mkBar(0, 1, 5, 1, 3, 1),
		mkBar(1, 1, 9, 1, 3, 1),
		mkBar(2, 1, 2, 1, 3, 1),
		mkBar(3, 1, 1, 1, 3, 1), // window [9,2,1] -> max 9 still in window
	}
	var last map[string]any
	for _, b := range bars {
		last = rw.Push(b)
	}
	if last["value"].(float64) != 9 {
		t.Fatalf("expected rolling max 9, got %v", last["value"])
	}
}
