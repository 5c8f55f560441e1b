package artifact

import (
	"testing"
	"time"

	"github.com/sawpanic/backtest-engine/internal/play"
)

const fixturePlay = `
version: 1
name: ema_cross_test
symbol: BTCUSDT
timeframes:
  exec: 15m
account:
  starting_equity: 10000
  max_leverage: 1
  taker_fee_bps: 5.5
  slippage_bps: 2
features:
  fast_ema:
    indicator_type: ema
    params: { length: 9, source: close }
position_policy: long_only
actions:
  long_entry: ["close", ">", 100]
`

func mustCompile(t *testing.T) *play.Compiled {
	t.Helper()
	c, err := play.Parse([]byte(fixturePlay))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return c
}

func TestBuildManifestIsDeterministicAcrossGeneratedAt(t *testing.T) {
	compiled := mustCompile(t)

	m1, err := BuildManifest(compiled, 0, 1_000_000, time.Unix(100, 0))
	if err != nil {
		t.Fatalf("BuildManifest: %v", err)
	}
	m2, err := BuildManifest(compiled, 0, 1_000_000, time.Unix(999, 0))
	if err != nil {
		t.Fatalf("BuildManifest (second): %v", err)
	}

	if m1.RunID == "" {
		t.Fatal("expected a non-empty RunID")
	}
	if m1.RunID != m2.RunID {
		t.Fatalf("RunID must be stable across GeneratedAt: %q vs %q", m1.RunID, m2.RunID)
	}
	if m1.PlayHash != m2.PlayHash {
		t.Fatal("PlayHash must be stable for the same compiled Play")
	}
}

func TestBuildManifestChangesHashOnDifferentWindow(t *testing.T) {
	compiled := mustCompile(t)

	m1, err := BuildManifest(compiled, 0, 1_000_000, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("BuildManifest: %v", err)
	}
	m2, err := BuildManifest(compiled, 0, 2_000_000, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("BuildManifest (different window): %v", err)
	}

	if m1.Inputs.BarRangeHash == m2.Inputs.BarRangeHash {
		t.Fatal("expected different bar-range hashes for different windows")
	}
	if m1.RunID == m2.RunID {
		t.Fatal("expected different RunIDs for different windows")
	}
}

func TestComputeRunIDIgnoresRunIDAndGeneratedAtFields(t *testing.T) {
	m := Manifest{PlayHash: "abc", RunID: "will-be-overwritten", GeneratedAt: time.Now()}
	id1, err := ComputeRunID(m)
	if err != nil {
		t.Fatalf("ComputeRunID: %v", err)
	}
	m.RunID = "different-stale-value"
	m.GeneratedAt = time.Unix(0, 0)
	id2, err := ComputeRunID(m)
	if err != nil {
		t.Fatalf("ComputeRunID (second): %v", err)
	}
	if id1 != id2 {
		t.Fatalf("ComputeRunID must ignore RunID/GeneratedAt fields: %q vs %q", id1, id2)
	}
}
