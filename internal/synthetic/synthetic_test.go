package synthetic

import (
	"context"
	"testing"

	"github.com/sawpanic/backtest-engine/internal/bar"
	"github.com/sawpanic/backtest-engine/internal/play"
)

func TestGetOHLCVIsDeterministicForSameSeed(t *testing.T) {
	cfg := play.RawSynthetic{Pattern: "trend_up_clean", Seed: 42, Bars: 50, TF: "15m", StartPrice: 100}
	g := New(cfg)

	a, err := g.GetOHLCV(context.Background(), "BTCUSDT", bar.Timeframe("15m"), 0, 0)
	if err != nil {
		t.Fatalf("GetOHLCV: %v", err)
	}
	b, err := New(cfg).GetOHLCV(context.Background(), "BTCUSDT", bar.Timeframe("15m"), 0, 0)
	if err != nil {
		t.Fatalf("GetOHLCV (second run): %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("expected matching lengths, got %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bar %d differs between identically-seeded runs: %+v vs %+v", i, a[i], b[i])
		}
		if !a[i].Valid() {
			t.Fatalf("bar %d violates OHLCV invariants: %+v", i, a[i])
		}
	}
	if a[len(a)-1].Close <= a[0].Open {
		t.Fatal("expected trend_up_clean to close higher than it opened")
	}
}

func TestGetOHLCVRejectsUnknownPattern(t *testing.T) {
	cfg := play.RawSynthetic{Pattern: "not_a_real_pattern", Seed: 1, Bars: 10, TF: "1m", StartPrice: 100}
	if _, err := New(cfg).GetOHLCV(context.Background(), "BTCUSDT", bar.Timeframe("1m"), 0, 0); err == nil {
		t.Fatal("expected an error for an unsupported pattern")
	}
}
