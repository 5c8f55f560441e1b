package engine

import (
	"fmt"

	"github.com/sawpanic/backtest-engine/internal/bar"
	"github.com/sawpanic/backtest-engine/internal/feed"
	"github.com/sawpanic/backtest-engine/internal/play"
	"github.com/sawpanic/backtest-engine/internal/structure"
)

// builtStructure pairs a live Detector with the timeframe role it advances
// on and the declared type, needed to shape its field map back into the
// Snapshot (internal/structure's Detector interface carries no type tag of
// its own).
type builtStructure struct {
	Detector structure.Detector
	Role     feed.Role
	Type     string
	IsZoned  bool
}

// buildStructures instantiates one live Detector per declared structure, in
// the declaration order internal/play/loader.go already validated as an
// acyclic "uses" DAG — a structure's dependency is always built before it.
func buildStructures(raw map[string][]play.NamedStructure) (map[string]builtStructure, error) {
	out := map[string]builtStructure{}
	for roleName, structs := range raw {
		role := roleFromName(roleName)
		for _, s := range structs {
			det, err := newDetector(s, out)
			if err != nil {
				return nil, fmt.Errorf("structure %q: %w", s.ID, err)
			}
			out[s.ID] = builtStructure{Detector: det, Role: role, Type: s.Type, IsZoned: s.Type == "derived_zone"}
		}
	}
	return out, nil
}

func roleFromName(name string) feed.Role {
	switch name {
	case "med":
		return feed.RoleMed
	case "high":
		return feed.RoleHigh
	default:
		return feed.RoleExec
	}
}

// swingDep resolves a structure's first "uses" entry to an already-built
// swing detector; every non-swing structure type here is defined in terms
// of one.
func swingDep(s play.NamedStructure, built map[string]builtStructure) (*structure.SwingKernel, bool) {
	if len(s.Uses) == 0 {
		return nil, false
	}
	b, ok := built[s.Uses[0]]
	if !ok {
		return nil, false
	}
	sw, ok := b.Detector.(*structure.SwingKernel)
	return sw, ok
}

func newDetector(s play.NamedStructure, built map[string]builtStructure) (structure.Detector, error) {
	switch s.Type {
	case "swing":
		left := intParam(s.Params, "left", 2)
		right := intParam(s.Params, "right", 2)
		minMove := floatParam(s.Params, "min_atr_move", 0)
		return structure.NewSwing(left, right, minMove, nil), nil
	case "trend":
		sw, ok := swingDep(s, built)
		if !ok {
			return nil, fmt.Errorf("type trend requires uses: [<swing id>]")
		}
		return structure.NewTrend(sw, intParam(s.Params, "wave_history", 4)), nil
	case "market_structure":
		sw, ok := swingDep(s, built)
		if !ok {
			return nil, fmt.Errorf("type market_structure requires uses: [<swing id>]")
		}
		return structure.NewMarketStructure(sw, boolParam(s.Params, "confirmation_close", false)), nil
	case "zone":
		sw, ok := swingDep(s, built)
		if !ok {
			return nil, fmt.Errorf("type zone requires uses: [<swing id>]")
		}
		isDemand := stringParam(s.Params, "side", "demand") == "demand"
		return structure.NewZone(sw, isDemand, floatParam(s.Params, "width_pct", 0.5), nil, 0), nil
	case "derived_zone":
		sw, ok := swingDep(s, built)
		if !ok {
			return nil, fmt.Errorf("type derived_zone requires uses: [<swing id>]")
		}
		return structure.NewDerivedZone(sw, intParam(s.Params, "max_active", 3), floatParam(s.Params, "ratio", 0), floatParam(s.Params, "width_pct", 0.5)), nil
	case "fibonacci":
		sw, ok := swingDep(s, built)
		if !ok {
			return nil, fmt.Errorf("type fibonacci requires uses: [<swing id>]")
		}
		ratios := floatSliceParam(s.Params, "ratios", []float64{0.382, 0.5, 0.618})
		return structure.NewFibonacci(sw, nil, structure.FibAnchorPair, ratios), nil
	case "rolling_window":
		size := intParam(s.Params, "size", 20)
		invert := stringParam(s.Params, "mode", "max") == "min"
		src := bar.Source(stringParam(s.Params, "source", "close"))
		return structure.NewRollingWindow(size, invert, src), nil
	default:
		return nil, fmt.Errorf("unknown structure type %q", s.Type)
	}
}

func intParam(p map[string]any, key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func floatParam(p map[string]any, key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

func boolParam(p map[string]any, key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

func stringParam(p map[string]any, key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

func floatSliceParam(p map[string]any, key string, def []float64) []float64 {
	raw, ok := p[key].([]any)
	if !ok {
		return def
	}
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		switch n := v.(type) {
		case float64:
			out = append(out, n)
		case int:
			out = append(out, float64(n))
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
