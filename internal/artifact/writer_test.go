package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/engine"
	"github.com/sawpanic/backtest-engine/internal/exchange"
	"github.com/sawpanic/backtest-engine/internal/perf"
)

func TestWriterFlushWritesEveryArtifact(t *testing.T) {
	compiled := mustCompile(t)
	m, err := BuildManifest(compiled, 0, 1_000_000, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("BuildManifest: %v", err)
	}

	result := &engine.Result{
		Equity: []engine.EquityPoint{
			{TsClose: 1000, Equity: decimal.NewFromInt(10000), Cash: decimal.NewFromInt(10000)},
		},
		Trades: []exchange.Trade{
			{ID: "t1", Side: exchange.SideLong, EntryPrice: decimal.NewFromInt(100), ExitPrice: decimal.NewFromInt(110),
				RealizedPnLUSDT: decimal.NewFromInt(10), ExitReason: exchange.ExitTP},
		},
		Events: []engine.Event{
			{TsMs: 500, Kind: "signal_exit"},
		},
	}
	report := perf.Compute(result, decimal.NewFromInt(10000))

	runsRoot := t.TempDir()
	w := NewWriter(runsRoot)
	for _, ev := range result.Events {
		if err := w.AppendEvent(ev); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	dir, err := w.Flush(m, report, result)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}

	wantDir := filepath.Join(runsRoot, "ema_cross_test", "BTCUSDT", m.RunID)
	if dir != wantDir {
		t.Fatalf("Flush dir = %q, want %q", dir, wantDir)
	}

	for _, name := range []string{"manifest.json", "metrics.json", "events.jsonl", "trades.parquet", "equity.parquet"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected artifact %s: %v", name, err)
		}
	}

	if _, err := os.Stat(dir + ".staging"); !os.IsNotExist(err) {
		t.Fatalf("expected staging dir to be renamed away, stat err = %v", err)
	}
}

func TestWriterFlushIsIdempotentOnRepeat(t *testing.T) {
	compiled := mustCompile(t)
	m, err := BuildManifest(compiled, 0, 1_000_000, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("BuildManifest: %v", err)
	}
	result := &engine.Result{}
	report := perf.Compute(result, decimal.NewFromInt(10000))

	runsRoot := t.TempDir()
	w := NewWriter(runsRoot)
	if _, err := w.Flush(m, report, result); err != nil {
		t.Fatalf("first Flush: %v", err)
	}
	if _, err := w.Flush(m, report, result); err != nil {
		t.Fatalf("second Flush into the same run dir: %v", err)
	}
}
