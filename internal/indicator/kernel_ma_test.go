package indicator

import (
	"math"
	"testing"

	"github.com/sawpanic/backtest-engine/internal/bar"
)

func synthBars(n int, seedPrice float64) []bar.Bar {
	bars := make([]bar.Bar, n)
	price := seedPrice
	for i := 0; i < n; i++ {
		// deterministic pseudo-walk, no randomness per spec determinism rules
		delta := math.Sin(float64(i)*0.17) * 0.8
		open := price
		close := price + delta
		high := math.Max(open, close) + 0.3
		low := math.Min(open, close) - 0.3
		bars[i] = bar.Bar{
			TsOpen: int64(i * 60000), TsClose: int64((i + 1) * 60000),
			Open: open, High: high, Low: low, Close: close,
			Volume: 100 + float64(i%7),
		}
		price = close
	}
	return bars
}

func vectorizedSMA(vals []float64, length, i int) float64 {
	if i+1 < length {
		return math.NaN()
	}
	sum := 0.0
	for j := i - length + 1; j <= i; j++ {
		sum += vals[j]
	}
	return sum / float64(length)
}

func TestSMAParityWithVectorized(t *testing.T) {
	bars := synthBars(200, 100)
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	k := NewSMA(20, bar.SourceClose)
	for i, b := range bars {
		out := k.Push(b)["value"]
		want := vectorizedSMA(closes, 20, i)
		if math.IsNaN(want) {
			if !math.IsNaN(out) {
				t.Fatalf("bar %d: expected NaN before warmup, got %v", i, out)
			}
			continue
		}
		if math.Abs(out-want) > 1e-9 {
			t.Fatalf("bar %d: SMA incremental=%v vectorized=%v diverge", i, out, want)
		}
	}
}

func TestEMASeedsFromSMA(t *testing.T) {
	bars := synthBars(50, 50)
	k := NewEMA(10, bar.SourceClose)
	var last float64
	for i, b := range bars {
		out := k.Push(b)["value"]
		if i < 9 {
			if !math.IsNaN(out) {
				t.Fatalf("bar %d: expected NaN, got %v", i, out)
			}
		} else if i == 9 {
			sum := 0.0
			for j := 0; j <= 9; j++ {
				sum += bars[j].Close
			}
			want := sum / 10
			if math.Abs(out-want) > 1e-9 {
				t.Fatalf("EMA seed = %v, want SMA seed %v", out, want)
			}
		}
		last = out
	}
	if math.IsNaN(last) {
		t.Fatal("EMA should be ready by the end")
	}
}

func TestKAMABoundedByPriceRange(t *testing.T) {
	bars := synthBars(100, 100)
	k := NewKAMA(10, 2, 30, bar.SourceClose)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, b := range bars {
		lo, hi = math.Min(lo, b.Close), math.Max(hi, b.Close)
		out := k.Push(b)["value"]
		if k.IsReady() && (math.IsNaN(out) || math.IsInf(out, 0)) {
			t.Fatalf("KAMA produced invalid value %v once ready", out)
		}
		if k.IsReady() && (out < lo || out > hi) {
			t.Fatalf("KAMA %v outside the price range seen so far [%v, %v]", out, lo, hi)
		}
	}
}

func TestRegistryBuildsAllTypes(t *testing.T) {
	cases := []struct {
		typ    string
		params map[string]any
	}{
		{"sma", map[string]any{"length": 10}},
		{"ema", map[string]any{"length": 10}},
		{"wma", map[string]any{"length": 10}},
		{"dema", map[string]any{"length": 10}},
		{"tema", map[string]any{"length": 10}},
		{"hull", map[string]any{"length": 10}},
		{"vwma", map[string]any{"length": 10}},
		{"trima", map[string]any{"length": 10}},
		{"kama", map[string]any{"length": 10}},
		{"t3", map[string]any{"length": 5}},
		{"rsi", map[string]any{"length": 14}},
		{"stoch", map[string]any{"k_period": 14}},
		{"stochrsi", map[string]any{"rsi_length": 14}},
		{"cci", map[string]any{"length": 20}},
		{"williams_r", map[string]any{"length": 14}},
		{"roc", map[string]any{"length": 10}},
		{"mfi", map[string]any{"length": 14}},
		{"cmo", map[string]any{"length": 14}},
		{"tsi", map[string]any{}},
		{"ultimate_osc", map[string]any{}},
		{"macd", map[string]any{}},
		{"adx", map[string]any{"length": 14}},
		{"aroon", map[string]any{"length": 14}},
		{"psar", map[string]any{}},
		{"supertrend", map[string]any{"length": 10}},
		{"ichimoku", map[string]any{}},
		{"vortex", map[string]any{"length": 14}},
		{"atr", map[string]any{"length": 14}},
		{"bbands", map[string]any{"length": 20}},
		{"keltner", map[string]any{"length": 20}},
		{"donchian", map[string]any{"length": 20}},
		{"stddev", map[string]any{"length": 20}},
		{"historical_vol", map[string]any{"length": 20}},
		{"obv", map[string]any{}},
		{"vwap", map[string]any{}},
		{"ad", map[string]any{}},
		{"cmf", map[string]any{"length": 20}},
		{"momentum", map[string]any{"length": 10}},
		{"zscore", map[string]any{"length": 20}},
		{"linreg", map[string]any{"length": 20}},
		{"pivot_points", map[string]any{}},
		{"true_range", map[string]any{}},
		{"typical_price", map[string]any{}},
	}
	if len(cases) != 43 {
		t.Fatalf("expected 43 registered indicator types, test table has %d", len(cases))
	}
	bars := synthBars(60, 100)
	for _, c := range cases {
		k, err := New(c.typ, c.params)
		if err != nil {
			t.Fatalf("%s: New failed: %v", c.typ, err)
		}
		for _, b := range bars {
			k.Push(b)
		}
		if !k.IsReady() {
			t.Errorf("%s: expected ready after %d bars (warmup %d)", c.typ, len(bars), k.WarmupBars())
		}
		k.Reset()
	}
}
