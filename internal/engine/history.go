package engine

import "github.com/sawpanic/backtest-engine/internal/snapshot"

// At implements dsl/eval.History. Window and cross operators address prior
// bars in exec-bar units; the Processor keeps one Snapshot per exec bar —
// the last one built during that bar's 1m sub-loop, i.e. its closed state —
// since feature/structure values only change at exec-bar boundaries within
// a single exec bar's own 1m steps.
func (p *Processor) At(offset int) (*snapshot.Snapshot, bool) {
	idx := p.currentExecIdx - offset
	if idx < 0 || idx >= len(p.history) || p.history[idx] == nil {
		return nil, false
	}
	return p.history[idx], true
}
