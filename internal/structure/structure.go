// Package structure implements the incremental market-structure detectors:
// swing pivots, trend waves, BOS/CHoCH market structure, fibonacci levels,
// zones, derived (K-slot) zones, and rolling min/max windows. Every
// detector follows the same contract as internal/indicator's Kernel:
// push-driven, a version counter that increments whenever the detector's
// notion of truth changes, and a clean Reset().
package structure

import "github.com/sawpanic/backtest-engine/internal/bar"

// Detector is the common contract every structure type satisfies.
type Detector interface {
	Push(b bar.Bar) map[string]any
	Version() int
	Reset()
}

// Direction is a three-state trend/bias direction.
type Direction int

const (
	DirDown Direction = -1
	DirFlat Direction = 0
	DirUp   Direction = 1
)
