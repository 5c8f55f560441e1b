package engine

import "github.com/sawpanic/backtest-engine/internal/structure"

func boolToF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// structureFieldValues shapes one structure Detector's public state into
// the flat field map the Snapshot resolves structure refs against, keyed
// the same way internal/play/loader.go's structureFields() declared them
// at compile time.
func structureFieldValues(bs builtStructure) map[string]float64 {
	switch k := bs.Detector.(type) {
	case *structure.SwingKernel:
		return map[string]float64{
			"high_level":     k.HighLevel,
			"low_level":      k.LowLevel,
			"pair_direction": float64(k.PairDirection),
		}
	case *structure.TrendKernel:
		return map[string]float64{
			"direction":     float64(k.Direction),
			"strength":      float64(k.Strength),
			"bars_in_trend": float64(k.BarsInTrend),
		}
	case *structure.MarketStructureKernel:
		return map[string]float64{
			"bias":           float64(k.Bias),
			"bos_this_bar":   boolToF(k.BOSThisBar),
			"choch_this_bar": boolToF(k.CHOCHThisBar),
		}
	case *structure.FibonacciKernel:
		// "level" addresses the lowest declared ratio; finer-grained ratio
		// access would need a dedicated Field-per-ratio compiled Ref, which
		// the Play DSL does not expose today.
		level, lowest, found := 0.0, 0.0, false
		for r, v := range k.Levels {
			if !found || r < lowest {
				level, lowest, found = v, r, true
			}
		}
		return map[string]float64{"level": level}
	case *structure.ZoneKernel:
		// inside/touched_this_bar are tracked only by derived (K-slot)
		// zones; a plain zone resolves those fields as MISSING.
		return map[string]float64{
			"upper": k.Upper,
			"lower": k.Lower,
			"state": float64(k.State),
		}
	case *structure.RollingWindowKernel:
		fields := map[string]float64{}
		if bs.Type == "rolling_window" {
			fields["min"] = k.Value
			fields["max"] = k.Value
		}
		return fields
	default:
		return nil
	}
}

// zoneSlotValues shapes a DerivedZoneKernel's compacted, active slots into
// the per-index field maps a K-slot structure ref resolves against.
func zoneSlotValues(bs builtStructure) []map[string]float64 {
	k, ok := bs.Detector.(*structure.DerivedZoneKernel)
	if !ok {
		return nil
	}
	slots := k.Slots()
	out := make([]map[string]float64, len(slots))
	for i, s := range slots {
		out[i] = map[string]float64{
			"upper":            s.Upper,
			"lower":            s.Lower,
			"state":            float64(s.State),
			"inside":           boolToF(s.Inside),
			"touched_this_bar": boolToF(s.TouchedThisBar),
		}
	}
	return out
}
