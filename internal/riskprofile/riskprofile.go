// Package riskprofile loads a mutable, operator-editable set of named risk
// overrides from disk, independent of any single Play's own `risk:` block —
// so a stop-loss/sizing preset can be swapped at the command line without
// editing every Play file that should use it.
//
// A yaml.v2 Load/Save round trip over a Config{Profiles map[string]Profile,
// Active string} shape: a named-profile-plus-active-selector pattern over
// risk parameters.
package riskprofile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/sawpanic/backtest-engine/internal/play"
)

// Config is the on-disk shape of a risk-profile file: a named set of
// risk overrides plus which one is active.
type Config struct {
	Profiles map[string]Profile `yaml:"profiles"`
	Active   string             `yaml:"active_profile"`
}

// Profile overrides the subset of a Play's risk: block an operator wants
// to tune without touching the Play file. Zero-value fields leave the
// Play's own setting untouched — see Apply.
type Profile struct {
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description"`
	StopLoss       *play.RawStopLoss `yaml:"stop_loss,omitempty"`
	TakeProfit     *play.RawTakeProfit `yaml:"take_profit,omitempty"`
	MaxDrawdownPct float64           `yaml:"max_drawdown_pct"`
	LeverageCap    float64           `yaml:"leverage_cap"`
}

// Load reads a risk-profile file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading risk profile %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing risk profile %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes a risk-profile file to disk, round-tripping whatever was
// loaded (or constructed) back into the same YAML shape.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling risk profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing risk profile %s: %w", path, err)
	}
	return nil
}

// ActiveProfile returns the profile named by Config.Active.
func (c *Config) ActiveProfile() (*Profile, error) {
	if c.Active == "" {
		return nil, fmt.Errorf("risk profile config has no active_profile set")
	}
	p, ok := c.Profiles[c.Active]
	if !ok {
		return nil, fmt.Errorf("active_profile %q not found among configured profiles", c.Active)
	}
	return &p, nil
}

// Apply overlays a profile's non-zero overrides onto a compiled Play's
// risk block, returning a new RawRisk (the Play's own AST/compiled form
// is left untouched).
func Apply(base play.RawRisk, p Profile) play.RawRisk {
	out := base
	if p.StopLoss != nil {
		out.StopLoss = *p.StopLoss
	}
	if p.TakeProfit != nil {
		out.TakeProfit = *p.TakeProfit
	}
	if p.MaxDrawdownPct != 0 {
		out.MaxDrawdownPct = p.MaxDrawdownPct
	}
	if p.LeverageCap != 0 {
		out.LeverageCap = p.LeverageCap
	}
	return out
}

// DefaultConfig returns a safe starting set of profiles for a fresh
// install.
func DefaultConfig() *Config {
	return &Config{
		Active: "baseline",
		Profiles: map[string]Profile{
			"baseline": {
				Name:        "Baseline",
				Description: "Leaves every Play's own risk block untouched",
			},
			"conservative": {
				Name:           "Conservative",
				Description:    "Tighter drawdown guard and leverage cap for volatile symbols",
				MaxDrawdownPct: 10,
				LeverageCap:    2,
			},
		},
	}
}
