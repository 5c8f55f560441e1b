// Package snapshot implements the immutable per-1-minute-step view used by
// DSL evaluation: compile-time path resolution into a (namespace, ref)
// tuple, O(1) lookup at evaluation time (close_htf refs excepted: they use
// the feed's O(log n) binary-search forward-fill), and three-valued
// MISSING propagation.
package snapshot

import (
	"math"

	"github.com/sawpanic/backtest-engine/internal/bar"
	"github.com/sawpanic/backtest-engine/internal/feed"
)

// Namespace is the compiled reference's source.
type Namespace int

const (
	NSPrice Namespace = iota
	NSIndicator
	NSStructure
	NSLiteral
)

// Ref is a compiled path: resolved once by the DSL compiler, evaluated in
// constant time for every 1m step thereafter.
type Ref struct {
	NS      Namespace
	Path    string // e.g. "mark", "close", "close_1h" for PRICE
	ID      string // feature_id or structure key
	Field   string // output name / structure field ("" for single-output)
	Offset  int    // exec bars back (indicators/price only)
	TFRole  feed.Role
	ZoneIdx int  // -1 unless the ref addresses a derived-zone slot
	Literal float64
	// Float marks a continuous-valued reference (price, indicator output, or
	// a float-typed structure field) as opposed to a discrete one (enum,
	// bool, or count). The compiler uses this to decide whether ==/!=/in are
	// allowed on the reference, or whether near_pct/near_abs are required.
	Float bool
}

// Value is a three-valued result: a float64 payload, or Missing set when the
// underlying data is NaN, absent, or out of history range. Consumers must
// check Missing before using Num — comparisons against a MISSING value
// always evaluate to false, never error.
type Value struct {
	Num     float64
	Missing bool
}

func Num(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{Missing: true}
	}
	return Value{Num: v}
}

var Missing = Value{Missing: true}

// Snapshot is built once per 1-minute step within an exec bar.
type Snapshot struct {
	Set       *feed.Set
	ExecIdx   int
	Bar1m     bar.Bar
	MarkPrice float64
	LastPrice float64

	// structureFields holds the latest field->value map per structure key,
	// refreshed every push by the engine before the snapshot is built.
	structureFields map[string]map[string]float64
	// zoneFields holds per-structure, per-slot-index field maps for K-slot
	// derived-zone structures.
	zoneFields map[string][]map[string]float64
}

func New(set *feed.Set, execIdx int, bar1m bar.Bar, mark, last float64) *Snapshot {
	return &Snapshot{Set: set, ExecIdx: execIdx, Bar1m: bar1m, MarkPrice: mark, LastPrice: last}
}

// SetStructureFields installs the current field map for a structure key,
// called by the engine once per bar after pushing each structure detector.
func (s *Snapshot) SetStructureFields(key string, fields map[string]float64) {
	if s.structureFields == nil {
		s.structureFields = map[string]map[string]float64{}
	}
	s.structureFields[key] = fields
}

// SetZoneFields installs the per-slot field maps for a K-slot structure.
func (s *Snapshot) SetZoneFields(key string, slots []map[string]float64) {
	if s.zoneFields == nil {
		s.zoneFields = map[string][]map[string]float64{}
	}
	s.zoneFields[key] = slots
}

// Resolve returns the value for a compiled Ref in O(1), except close_htf
// refs, which go through the feed's O(log n) forward-fill lookup.
func (s *Snapshot) Resolve(r Ref) Value {
	switch r.NS {
	case NSLiteral:
		return Num(r.Literal)
	case NSPrice:
		return s.resolvePrice(r)
	case NSIndicator:
		return s.resolveIndicator(r)
	case NSStructure:
		return s.resolveStructure(r)
	default:
		return Missing
	}
}

func (s *Snapshot) resolvePrice(r Ref) Value {
	switch r.Path {
	case "mark":
		return Num(s.MarkPrice)
	case "last":
		return Num(s.LastPrice)
	case "open":
		return Num(s.currentExecBar().Open)
	case "high":
		return Num(s.currentExecBar().High)
	case "low":
		return Num(s.currentExecBar().Low)
	case "close":
		return Num(s.currentExecBar().Close)
	case "volume":
		return Num(s.currentExecBar().Volume)
	case "close_htf":
		return s.resolveForwardFilledClose(r.TFRole)
	default:
		return Missing
	}
}

func (s *Snapshot) currentExecBar() bar.Bar {
	idx := s.ExecIdx - 0
	if idx < 0 || idx >= s.Set.Exec.Len() {
		return bar.Bar{}
	}
	return s.Set.Exec.Bar(idx)
}

func (s *Snapshot) resolveForwardFilledClose(role feed.Role) Value {
	execBar := s.currentExecBar()
	idx, ok := s.Set.HTFIdxForExec(role, execBar.TsClose)
	if !ok {
		return Missing
	}
	var store *feed.Store
	switch role {
	case feed.RoleMed:
		store = s.Set.Med
	case feed.RoleHigh:
		store = s.Set.High
	default:
		store = s.Set.Exec
	}
	if idx < 0 || idx >= store.Len() {
		return Missing
	}
	return Num(store.Close[idx])
}

func (s *Snapshot) resolveIndicator(r Ref) Value {
	idx := s.ExecIdx - r.Offset
	var store *feed.Store
	switch r.TFRole {
	case feed.RoleMed:
		store = s.Set.Med
	case feed.RoleHigh:
		store = s.Set.High
	default:
		store = s.Set.Exec
	}
	field := r.Field
	if field == "" {
		field = "value"
	}
	v, ok := store.FeatureOutput(r.ID, field, idx)
	if !ok {
		return Missing
	}
	return Num(v)
}

func (s *Snapshot) resolveStructure(r Ref) Value {
	if r.ZoneIdx >= 0 {
		slots, ok := s.zoneFields[r.ID]
		if !ok || r.ZoneIdx >= len(slots) {
			return Missing
		}
		v, ok := slots[r.ZoneIdx][r.Field]
		if !ok {
			return Missing
		}
		return Num(v)
	}
	fields, ok := s.structureFields[r.ID]
	if !ok {
		return Missing
	}
	v, ok := fields[r.Field]
	if !ok {
		return Missing
	}
	return Num(v)
}
