package parquet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/backtest-engine/internal/engine"
	"github.com/sawpanic/backtest-engine/internal/exchange"
)

func TestWriteTradesProducesNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "trades.parquet")

	trades := []exchange.Trade{
		{
			ID: "t1", Side: exchange.SideLong,
			EntryPrice: decimal.NewFromInt(100), ExitPrice: decimal.NewFromInt(110),
			Size: decimal.NewFromInt(1), EntryTs: 1000, ExitTs: 2000, DurationBars: 5,
			EntryFee: decimal.NewFromFloat(0.1), ExitFee: decimal.NewFromFloat(0.1),
			RealizedPnLUSDT: decimal.NewFromInt(10), ExitReason: exchange.ExitTP,
		},
	}
	if err := WriteTrades(dest, trades); err != nil {
		t.Fatalf("WriteTrades: %v", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat output file: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected a non-empty trades.parquet")
	}
}

func TestWriteEquityProducesNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "equity.parquet")

	points := []engine.EquityPoint{
		{TsClose: 1000, Equity: decimal.NewFromInt(1000), Cash: decimal.NewFromInt(1000)},
		{TsClose: 2000, Equity: decimal.NewFromInt(1100), Cash: decimal.NewFromInt(1100)},
	}
	if err := WriteEquity(dest, points); err != nil {
		t.Fatalf("WriteEquity: %v", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat output file: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected a non-empty equity.parquet")
	}
}

func TestWriteTradesEmptySliceStillProducesValidFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "trades.parquet")
	if err := WriteTrades(dest, nil); err != nil {
		t.Fatalf("WriteTrades with no trades: %v", err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("stat output file: %v", err)
	}
}
