package riskprofile

import (
	"path/filepath"
	"testing"

	"github.com/sawpanic/backtest-engine/internal/play"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	path := filepath.Join(t.TempDir(), "risk_profiles.yaml")

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Active != cfg.Active {
		t.Fatalf("Active = %q, want %q", loaded.Active, cfg.Active)
	}
	if len(loaded.Profiles) != len(cfg.Profiles) {
		t.Fatalf("Profiles length = %d, want %d", len(loaded.Profiles), len(cfg.Profiles))
	}
}

func TestActiveProfileReturnsConfiguredProfile(t *testing.T) {
	cfg := DefaultConfig()
	p, err := cfg.ActiveProfile()
	if err != nil {
		t.Fatalf("ActiveProfile: %v", err)
	}
	if p.Name != "Baseline" {
		t.Fatalf("Name = %q, want Baseline", p.Name)
	}
}

func TestActiveProfileErrorsOnUnknownActive(t *testing.T) {
	cfg := &Config{Active: "does_not_exist", Profiles: map[string]Profile{}}
	if _, err := cfg.ActiveProfile(); err == nil {
		t.Fatal("expected an error for an unknown active_profile")
	}
}

func TestApplyOnlyOverridesNonZeroFields(t *testing.T) {
	base := play.RawRisk{
		StopLoss:       play.RawStopLoss{Type: "percent", Value: 5},
		MaxDrawdownPct: 20,
		LeverageCap:    5,
	}
	p := Profile{MaxDrawdownPct: 10}

	out := Apply(base, p)
	if out.MaxDrawdownPct != 10 {
		t.Fatalf("MaxDrawdownPct = %v, want 10 (overridden)", out.MaxDrawdownPct)
	}
	if out.LeverageCap != 5 {
		t.Fatalf("LeverageCap = %v, want 5 (untouched)", out.LeverageCap)
	}
	if out.StopLoss.Value != 5 {
		t.Fatalf("StopLoss.Value = %v, want 5 (untouched, no override supplied)", out.StopLoss.Value)
	}
}

func TestApplyOverridesStopLossWhenSupplied(t *testing.T) {
	base := play.RawRisk{StopLoss: play.RawStopLoss{Type: "percent", Value: 5}}
	override := play.RawStopLoss{Type: "atr_multiple", Value: 2}
	p := Profile{StopLoss: &override}

	out := Apply(base, p)
	if out.StopLoss.Type != "atr_multiple" || out.StopLoss.Value != 2 {
		t.Fatalf("StopLoss = %+v, want overridden to %+v", out.StopLoss, override)
	}
}
