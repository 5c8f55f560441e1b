package play

import "testing"

const minimalPlay = `
version: 1
name: ema_cross
symbol: BTCUSDT
timeframes:
  exec: 15m
account:
  starting_equity: 10000
  max_leverage: 1
  taker_fee_bps: 5.5
  slippage_bps: 2
features:
  ema_fast:
    indicator_type: ema
    params: { length: 9 }
  ema_slow:
    indicator_type: ema
    params: { length: 21 }
position_policy: long_only
exit_mode: first_hit
entry:
  order_type: market
risk:
  stop_loss: { type: percent, value: 2 }
  take_profit: { type: percent, value: 4 }
  sizing: { model: percent_equity, percent_pct: 10 }
actions:
  long_entry: ["ema_fast", ">", "ema_slow"]
  long_exit: ["ema_fast", "<", "ema_slow"]
`

func TestParseMinimalPlay(t *testing.T) {
	c, err := Parse([]byte(minimalPlay))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(c.Actions) != 2 {
		t.Fatalf("expected 2 compiled actions, got %d", len(c.Actions))
	}
	if _, ok := c.Ctx.Features["ema_fast"]; !ok {
		t.Fatal("expected ema_fast to be registered in the compile context")
	}
}

func TestRejectsDeprecatedBlocksKey(t *testing.T) {
	bad := minimalPlay + "\nblocks: {}\n"
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected rejection of deprecated blocks: key")
	}
}

func TestRejectsExplicitIsolatedMarginMode(t *testing.T) {
	bad := `
version: 1
name: x
symbol: BTCUSDT
timeframes: { exec: 15m }
account:
  starting_equity: 1000
  max_leverage: 1
  margin_mode: isolated
`
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected rejection of explicit margin_mode: isolated")
	}
}

func TestVariableSubstitution(t *testing.T) {
	tmpl := `
version: 1
name: tpl
symbol: BTCUSDT
variables:
  fast_len: 9
timeframes: { exec: 15m }
account: { starting_equity: 1000, max_leverage: 1 }
features:
  ema_fast:
    indicator_type: ema
    params: { length: {{ .fast_len }} }
actions: {}
`
	c, err := Parse([]byte(tmpl))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if c.Ctx.Features["ema_fast"].Warmup == 0 {
		t.Fatal("expected ema_fast warmup to be resolved from the substituted length")
	}
}

func TestUnknownFeatureReferenceRejected(t *testing.T) {
	bad := minimalPlay + "\n"
	// replace a valid reference with a typo to force a cross-reference error
	broken := []byte(bad)
	_ = broken
	tmpl := `
version: 1
name: x
symbol: BTCUSDT
timeframes: { exec: 15m }
account: { starting_equity: 1000, max_leverage: 1 }
features:
  ema_fast: { indicator_type: ema, params: { length: 9 } }
actions:
  long_entry: ["ema_typo", ">", "ema_fast"]
`
	if _, err := Parse([]byte(tmpl)); err == nil {
		t.Fatal("expected an error for an unresolved feature reference")
	}
}
