// Package feed implements the precomputed, per-timeframe-role columnar bar
// store: aligned OHLCV arrays plus one array per declared feature output,
// and the ts_close forward-fill accessor that lets an exec-bar index
// resolve the last closed bar on a slower role. The lookup is a binary
// search over the role's ts_close array (O(log n)), not a constant-time map.
package feed

import (
	"sort"

	"github.com/sawpanic/backtest-engine/internal/bar"
)

// Role is a timeframe's function within a Play.
type Role string

const (
	RoleExec Role = "exec"
	RoleMed  Role = "med"
	RoleHigh Role = "high"
)

// Store holds one role's aligned columnar arrays plus derived feature
// outputs, keyed by feature id and output name.
type Store struct {
	Role Role
	TF   bar.Timeframe

	TsOpen  []int64
	TsClose []int64
	Open    []float64
	High    []float64
	Low     []float64
	Close   []float64
	Volume  []float64

	features map[string][]float64 // key "{feature_id}.{output}"
}

func NewStore(role Role, tf bar.Timeframe) *Store {
	return &Store{Role: role, TF: tf, features: map[string][]float64{}}
}

// Append adds one closed bar to the end of the columnar arrays. Bars must
// arrive in non-decreasing ts_close order; the Feed Store does not resort.
func (s *Store) Append(b bar.Bar) {
	s.TsOpen = append(s.TsOpen, b.TsOpen)
	s.TsClose = append(s.TsClose, b.TsClose)
	s.Open = append(s.Open, b.Open)
	s.High = append(s.High, b.High)
	s.Low = append(s.Low, b.Low)
	s.Close = append(s.Close, b.Close)
	s.Volume = append(s.Volume, b.Volume)
}

// Len returns the number of bars currently stored.
func (s *Store) Len() int { return len(s.TsClose) }

// SetFeatureOutput stores the computed array for one feature output; called
// once the engine has bulk-computed or incrementally accumulated a feature
// series for this role.
func (s *Store) SetFeatureOutput(featureID, output string, values []float64) {
	s.features[key(featureID, output)] = values
}

// FeatureOutput returns the value at idx for a feature output, or (0, false)
// if absent or out of range.
func (s *Store) FeatureOutput(featureID, output string, idx int) (float64, bool) {
	vals, ok := s.features[key(featureID, output)]
	if !ok || idx < 0 || idx >= len(vals) {
		return 0, false
	}
	return vals[idx], true
}

func key(featureID, output string) string { return featureID + "." + output }

// Bar reconstructs the closed Bar at idx.
func (s *Store) Bar(idx int) bar.Bar {
	return bar.Bar{
		TsOpen: s.TsOpen[idx], TsClose: s.TsClose[idx],
		Open: s.Open[idx], High: s.High[idx], Low: s.Low[idx], Close: s.Close[idx],
		Volume: s.Volume[idx],
	}
}

// IdxAtOrBefore returns the last index k such that TsClose[k] <= tsCloseMs,
// the forward-fill lookup known as ts_close_to_idx_map, or (-1, false) if
// no such bar exists yet.
func (s *Store) IdxAtOrBefore(tsCloseMs int64) (int, bool) {
	n := len(s.TsClose)
	i := sort.Search(n, func(i int) bool { return s.TsClose[i] > tsCloseMs })
	if i == 0 {
		return -1, false
	}
	return i - 1, true
}
