package verify

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/sawpanic/backtest-engine/internal/engine"
	"github.com/sawpanic/backtest-engine/internal/exchange"
	"github.com/sawpanic/backtest-engine/internal/perf"
)

func hashReport(r perf.Report) (string, error) {
	return hashJSON(r)
}

func hashTrades(trades []exchange.Trade) (string, error) {
	return hashJSON(trades)
}

func hashEquity(points []engine.EquityPoint) (string, error) {
	return hashJSON(points)
}

func hashJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("hashing artifact for comparison: %w", err)
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum), nil
}
