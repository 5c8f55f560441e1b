package preflight

import (
	"github.com/sawpanic/backtest-engine/internal/indicator"
	"github.com/sawpanic/backtest-engine/internal/play"
)

// Warmup is the worst-case warmup span per timeframe role, resolved from
// the registry formulas of every declared Feature and Structure.
type Warmup struct {
	ExecBars int
	MedBars  int
	HighBars int
}

// Max returns the largest of the three role warmups, the span the query
// window must be extended backward by (step 2) before any role-specific
// forward-fill narrows it back down.
func (w Warmup) Max() int {
	m := w.ExecBars
	if w.MedBars > m {
		m = w.MedBars
	}
	if w.HighBars > m {
		m = w.HighBars
	}
	return m
}

// Compute walks a compiled Play's Features and raw Structures, resolving
// each one's warmup_bars() against the indicator registry (features) or a
// param-derived heuristic (structures, which carry no registry formula —
// see DESIGN.md).
func Compute(compiled *play.Compiled) Warmup {
	var w Warmup
	for id, info := range compiled.Ctx.Features {
		raw := compiled.Raw.Features[id]
		bump := info.Warmup
		if k, err := indicator.New(raw.IndicatorType, raw.Params); err == nil {
			bump = k.WarmupBars()
		}
		addByRole(&w, info.TFRole, bump)
	}
	for role, structs := range compiled.Raw.Structures {
		byID := make(map[string]play.NamedStructure, len(structs))
		for _, s := range structs {
			byID[s.ID] = s
		}
		for _, s := range structs {
			addByRole(&w, roleFromYAML(role), structureWarmup(s, byID))
		}
	}
	return w
}

func addByRole(w *Warmup, role roleLike, bars int) {
	switch role {
	case roleExec:
		if bars > w.ExecBars {
			w.ExecBars = bars
		}
	case roleMed:
		if bars > w.MedBars {
			w.MedBars = bars
		}
	case roleHigh:
		if bars > w.HighBars {
			w.HighBars = bars
		}
	}
}

type roleLike int

const (
	roleExec roleLike = iota
	roleMed
	roleHigh
)

func roleFromYAML(role string) roleLike {
	switch role {
	case "med":
		return roleMed
	case "high":
		return roleHigh
	default:
		return roleExec
	}
}

// structureWarmup approximates a structure detector's ready-bars count from
// the same length-like parameters internal/engine/structures.go's
// newDetector reads to build the kernel; structures carry no registry
// formula analogous to internal/indicator's WarmupBars(). A swing pivot
// needs left+right+1 bars either side of a candidate pivot before it can
// confirm one; every non-swing, non-rolling_window type is defined on top
// of a swing dependency (via "uses") so it inherits that swing's span
// instead of reading left/right off its own (unrelated) params.
func structureWarmup(s play.NamedStructure, byID map[string]play.NamedStructure) int {
	switch s.Type {
	case "swing":
		left := intParamOr(s.Params, "left", 2)
		right := intParamOr(s.Params, "right", 2)
		return left + right + 1
	case "trend", "market_structure", "zone", "derived_zone", "fibonacci":
		if len(s.Uses) == 0 {
			return 0
		}
		sw, ok := byID[s.Uses[0]]
		if !ok {
			return 0
		}
		return structureWarmup(sw, byID)
	case "rolling_window":
		return intParamOr(s.Params, "size", 20)
	default:
		return 0
	}
}

func intParamOr(p map[string]any, key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}
