package bar

import "testing"

func TestMinutes(t *testing.T) {
	cases := map[Timeframe]int{
		TF1m: 1, TF15m: 15, TF1h: 60, TF4h: 240, TF1d: 1440, TF1w: 10080, TF1M: 43200,
	}
	for tf, want := range cases {
		got, err := Minutes(tf)
		if err != nil {
			t.Fatalf("Minutes(%s): %v", tf, err)
		}
		if got != want {
			t.Errorf("Minutes(%s) = %d, want %d", tf, got, want)
		}
	}

	if _, err := Minutes("7m"); err == nil {
		t.Error("expected error for unsupported timeframe")
	}
}

func TestFloorAndCeil(t *testing.T) {
	// 2024-01-01T00:07:30Z in ms, on a 15m timeframe should floor to :00:00
	// and ceil-close to :15:00.
	ts := int64(1704067650000) // 00:07:30
	floor := FloorToBarBoundary(ts, TF15m)
	if floor%int64(15*msPerMinute) != 0 {
		t.Errorf("floor %d not aligned to 15m boundary", floor)
	}
	close := CeilToTFClose(ts, TF15m)
	if close-floor != 15*msPerMinute {
		t.Errorf("close-floor = %d, want %d", close-floor, 15*msPerMinute)
	}
}

func TestIsFundingSettlement(t *testing.T) {
	const dayMs = 24 * 60 * msPerMinute
	base := int64(1704067200000) // 2024-01-01T00:00:00Z
	if !IsFundingSettlement(base) {
		t.Error("midnight UTC should be a funding settlement")
	}
	if !IsFundingSettlement(base + 8*60*msPerMinute) {
		t.Error("08:00 UTC should be a funding settlement")
	}
	if !IsFundingSettlement(base + 16*60*msPerMinute) {
		t.Error("16:00 UTC should be a funding settlement")
	}
	if IsFundingSettlement(base + 1*60*msPerMinute) {
		t.Error("00:01 UTC should not be a funding settlement")
	}
	if IsFundingSettlement(base + dayMs + 1) {
		t.Error("off-boundary timestamp on a later day should not be a funding settlement")
	}
}

func TestBarValid(t *testing.T) {
	b := Bar{TsOpen: 0, TsClose: 60000, Open: 10, High: 12, Low: 9, Close: 11, Volume: 5}
	if !b.Valid() {
		t.Error("expected bar to be valid")
	}
	bad := b
	bad.Low = 10.5 // above min(open, close)
	if bad.Valid() {
		t.Error("expected bar with low above min(open,close) to be invalid")
	}
}
