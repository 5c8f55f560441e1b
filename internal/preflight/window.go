package preflight

import (
	"fmt"

	"github.com/sawpanic/backtest-engine/internal/bar"
	"github.com/sawpanic/backtest-engine/internal/errs"
)

// Gap is one missing span within an otherwise fetched bar series, part of
// the actionable error listing missing ranges.
type Gap struct {
	TF           bar.Timeframe
	StartMs      int64
	EndMs        int64
	MissingCount int
}

// ExtendStart pushes a query start backward by the worst-case warmup span
// at execMinutes resolution.
func ExtendStart(startMs int64, execMinutes int, warmupBars int) int64 {
	return startMs - int64(warmupBars)*int64(execMinutes)*60_000
}

// DetectGaps walks a monotonic, already-fetched bar series for the
// declared timeframe and reports every hole wider than one bar interval, so
// Preflight can fail with an actionable error (or hand the list to an
// auto-sync collaborator) instead of silently accepting missing history —
// the core never fabricates bars.
func DetectGaps(tf bar.Timeframe, bars []bar.Bar) ([]Gap, error) {
	stepMin, err := bar.Minutes(tf)
	if err != nil {
		return nil, errs.New(errs.TimeframeError, "%v", err)
	}
	stepMs := int64(stepMin) * 60_000

	var gaps []Gap
	for i := 1; i < len(bars); i++ {
		want := bars[i-1].TsClose
		got := bars[i].TsOpen
		if got == want {
			continue
		}
		if got < want {
			return nil, errs.New(errs.CoverageError,
				"non-monotonic or duplicate bar at ts_open=%d (expected >= %d) for tf %q", got, want, tf)
		}
		missing := int((got - want) / stepMs)
		gaps = append(gaps, Gap{TF: tf, StartMs: want, EndMs: got, MissingCount: missing})
	}
	return gaps, nil
}

// CoverageError renders a Gap slice into the actionable error required
// when no auto-sync was requested.
func CoverageError(symbol string, gaps []Gap) error {
	if len(gaps) == 0 {
		return nil
	}
	msg := fmt.Sprintf("%s: %d coverage gap(s):", symbol, len(gaps))
	for _, g := range gaps {
		msg += fmt.Sprintf(" [%s %d..%d, missing=%d]", g.TF, g.StartMs, g.EndMs, g.MissingCount)
	}
	return errs.New(errs.CoverageError, "%s", msg)
}

// ReadySeries bundles the exec-bar count and per-role warmup that
// SimStartIdx takes as its two arguments.
type ReadySeries struct {
	ExecLen int
	Warmup  Warmup
}

// SimStartIdx returns the exec-role warmup (w.ExecBars) clamped to
// execLen: the first exec bar after the exec role's warmup bars. Med/high
// role warmups are counted in their own bar units (Compute) and are not
// converted to exec bars here, so they do not move sim_start_idx; a
// slower role's features and structures can still be MISSING at that bar.
func SimStartIdx(execLen int, w Warmup) int {
	idx := w.ExecBars
	if idx > execLen {
		idx = execLen
	}
	return idx
}
