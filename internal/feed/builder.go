package feed

import (
	"github.com/sawpanic/backtest-engine/internal/bar"
	"github.com/sawpanic/backtest-engine/internal/indicator"
	"github.com/sawpanic/backtest-engine/internal/play"
)

// RoleBars supplies the raw, already-aligned closed-bar history for one
// timeframe role, keyed the same way a compiled Play's Ctx.Features/
// Ctx.Structures address roles.
type RoleBars struct {
	Exec  []bar.Bar
	Med   []bar.Bar
	High  []bar.Bar
	Quote []bar.Bar // 1-minute bars driving StepMinute; Exec when exec tf is 1m
}

// Build populates a fresh Feed Store from raw OHLCV history and runs every
// declared Feature's indicator kernel forward across its role's bars,
// pushing one output array per feature output. This is the bulk,
// whole-history counterpart to the bar processor's per-step StepMinute
// loop: indicators here are warmed up once, up front, against the full
// available history (including the warmup window resolved by
// internal/preflight), not recomputed per exec bar.
func Build(compiled *play.Compiled, bars RoleBars) (*Set, error) {
	set := &Set{
		Exec:  NewStore(RoleExec, compiled.ExecTF),
		Med:   NewStore(RoleMed, compiled.MedTF),
		High:  NewStore(RoleHigh, compiled.HighTF),
		Quote: NewQuoteFeed(),
	}
	for _, b := range bars.Exec {
		set.Exec.Append(b)
	}
	for _, b := range bars.Med {
		set.Med.Append(b)
	}
	for _, b := range bars.High {
		set.High.Append(b)
	}
	quote := bars.Quote
	if quote == nil {
		quote = bars.Exec
	}
	for _, b := range quote {
		set.Quote.Append(b)
	}

	for id, info := range compiled.Ctx.Features {
		raw := compiled.Raw.Features[id]
		kernel, err := indicator.New(raw.IndicatorType, raw.Params)
		if err != nil {
			return nil, err
		}
		store := set.storeForRole(info.TFRole)
		outputs := make(map[string][]float64, len(info.Outputs))
		for _, out := range info.Outputs {
			outputs[out] = make([]float64, 0, store.Len())
		}
		for i := 0; i < store.Len(); i++ {
			vals := kernel.Push(store.Bar(i))
			for _, out := range info.Outputs {
				outputs[out] = append(outputs[out], vals[out])
			}
		}
		for out, vals := range outputs {
			store.SetFeatureOutput(id, out, vals)
		}
	}
	return set, nil
}

func (s *Set) storeForRole(role Role) *Store {
	switch role {
	case RoleMed:
		return s.Med
	case RoleHigh:
		return s.High
	default:
		return s.Exec
	}
}
