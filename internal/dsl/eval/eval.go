// Package eval implements the DSL evaluator: a pure function from
// (CompiledExpr, Snapshot, History, SetupCache) to a three-valued result,
// with short-circuiting all/any, setup memoization, and a ReasonCode for
// debug artifacts.
package eval

import (
	"math"

	"github.com/sawpanic/backtest-engine/internal/dsl/ast"
	"github.com/sawpanic/backtest-engine/internal/snapshot"
)

// ReasonCode explains why an expression evaluated the way it did, used for
// state tracking and debug artifacts.
type ReasonCode string

const (
	ReasonOK            ReasonCode = "OK"
	ReasonNotReady      ReasonCode = "NOT_READY"
	ReasonMissing       ReasonCode = "MISSING"
	ReasonThreshold     ReasonCode = "THRESHOLD"
	ReasonWindow        ReasonCode = "WINDOW"
	ReasonCross         ReasonCode = "CROSS"
	ReasonInternalError ReasonCode = "INTERNAL_ERROR"
)

// Result is a three-valued outcome plus its reason.
type Result struct {
	Value  bool
	Ok     bool // false means MISSING/indeterminate, distinct from Value=false
	Reason ReasonCode
}

func trueResult() Result  { return Result{Value: true, Ok: true, Reason: ReasonOK} }
func falseResult(r ReasonCode) Result { return Result{Value: false, Ok: true, Reason: r} }

// History gives the evaluator access to a bounded number of prior exec-bar
// snapshots, needed by window operators and cross_above/cross_below.
type History interface {
	// At returns the Snapshot `offset` exec bars before the current one, or
	// (nil, false) if out of range.
	At(offset int) (*snapshot.Snapshot, bool)
}

// SetupCache memoizes setup evaluation within a single 1m step, keyed by
// (setup_name, bar_idx).
type SetupCache struct {
	barIdx int
	cache  map[string]Result
	visiting map[string]bool
}

func NewSetupCache(barIdx int) *SetupCache {
	return &SetupCache{barIdx: barIdx, cache: map[string]Result{}, visiting: map[string]bool{}}
}

// Evaluate runs a compiled expression against the current snapshot/history.
func Evaluate(e ast.Expr, snap *snapshot.Snapshot, hist History, cache *SetupCache) Result {
	switch n := e.(type) {
	case ast.All:
		return evalAll(n, snap, hist, cache)
	case ast.Any:
		return evalAny(n, snap, hist, cache)
	case ast.Not:
		r := Evaluate(n.Of, snap, hist, cache)
		if !r.Ok {
			return r
		}
		return Result{Value: !r.Value, Ok: true, Reason: ReasonOK}
	case ast.Cond:
		if n.Op == ast.OpCrossUp || n.Op == ast.OpCrossDown {
			return EvaluateCross(n, snap, hist)
		}
		return evalCond(n, snap)
	case ast.SetupRef:
		return evalSetup(n, snap, hist, cache)
	case ast.Window:
		return evalWindow(n, snap, hist, cache)
	default:
		return Result{Ok: false, Reason: ReasonInternalError}
	}
}

func evalAll(n ast.All, snap *snapshot.Snapshot, hist History, cache *SetupCache) Result {
	for _, sub := range n.Of {
		r := Evaluate(sub, snap, hist, cache)
		if !r.Ok || !r.Value {
			if !r.Ok {
				return falseResult(ReasonMissing)
			}
			return falseResult(r.Reason)
		}
	}
	return trueResult()
}

func evalAny(n ast.Any, snap *snapshot.Snapshot, hist History, cache *SetupCache) Result {
	sawMissing := false
	for _, sub := range n.Of {
		r := Evaluate(sub, snap, hist, cache)
		if r.Ok && r.Value {
			return trueResult()
		}
		if !r.Ok {
			sawMissing = true
		}
	}
	if sawMissing {
		return falseResult(ReasonMissing)
	}
	return falseResult(ReasonThreshold)
}

func evalSetup(n ast.SetupRef, snap *snapshot.Snapshot, hist History, cache *SetupCache) Result {
	if r, ok := cache.cache[n.Name]; ok {
		return r
	}
	if cache.visiting[n.Name] {
		return Result{Ok: false, Reason: ReasonInternalError}
	}
	cache.visiting[n.Name] = true
	r := Evaluate(n.Expr, snap, hist, cache)
	delete(cache.visiting, n.Name)
	cache.cache[n.Name] = r
	return r
}

func evalCond(n ast.Cond, snap *snapshot.Snapshot) Result {
	switch n.Op {
	case ast.OpCrossUp, ast.OpCrossDown:
		return Result{Ok: false, Reason: ReasonInternalError} // cross needs History; see EvaluateCross
	}
	lhs := resolveNumeric(n.Lhs, snap)
	if lhs.Missing {
		return falseResult(ReasonMissing)
	}
	switch n.Op {
	case ast.OpGT:
		return numCompare(lhs.Num > resolveOrNaN(n.Rhs, snap))
	case ast.OpLT:
		return numCompare(lhs.Num < resolveOrNaN(n.Rhs, snap))
	case ast.OpGTE:
		return numCompare(lhs.Num >= resolveOrNaN(n.Rhs, snap))
	case ast.OpLTE:
		return numCompare(lhs.Num <= resolveOrNaN(n.Rhs, snap))
	case ast.OpBetween:
		lo := resolveOrNaN(n.Rhs, snap)
		hi := resolveOrNaN(n.RhsHigh, snap)
		if math.IsNaN(lo) || math.IsNaN(hi) {
			return falseResult(ReasonMissing)
		}
		return numCompare(lhs.Num >= lo && lhs.Num <= hi)
	case ast.OpNearPct:
		rhs := resolveOrNaN(n.Rhs, snap)
		if math.IsNaN(rhs) {
			return falseResult(ReasonMissing)
		}
		tol := rhs * n.Tolerance / 100
		return numCompare(math.Abs(lhs.Num-rhs) <= math.Abs(tol))
	case ast.OpNearAbs:
		rhs := resolveOrNaN(n.Rhs, snap)
		if math.IsNaN(rhs) {
			return falseResult(ReasonMissing)
		}
		return numCompare(math.Abs(lhs.Num-rhs) <= n.Tolerance)
	case ast.OpEq:
		return numCompare(lhs.Num == resolveOrNaN(n.Rhs, snap))
	case ast.OpNeq:
		return numCompare(lhs.Num != resolveOrNaN(n.Rhs, snap))
	case ast.OpIn:
		for _, v := range n.InSet {
			if lhs.Num == v {
				return trueResult()
			}
		}
		return falseResult(ReasonThreshold)
	default:
		return Result{Ok: false, Reason: ReasonInternalError}
	}
}

func numCompare(b bool) Result {
	if b {
		return trueResult()
	}
	return falseResult(ReasonThreshold)
}

func resolveNumeric(e ast.Expr, snap *snapshot.Snapshot) snapshot.Value {
	switch n := e.(type) {
	case ast.RefNode:
		return snap.Resolve(n.Ref)
	case ast.LiteralNode:
		return snapshot.Num(n.Value)
	case ast.Arith:
		return evalArith(n, snap)
	default:
		return snapshot.Missing
	}
}

func resolveOrNaN(e ast.Expr, snap *snapshot.Snapshot) float64 {
	v := resolveNumeric(e, snap)
	if v.Missing {
		return math.NaN()
	}
	return v.Num
}

func evalArith(n ast.Arith, snap *snapshot.Snapshot) snapshot.Value {
	lhs := resolveNumeric(n.Lhs, snap)
	rhs := resolveNumeric(n.Rhs, snap)
	if lhs.Missing || rhs.Missing {
		return snapshot.Missing
	}
	switch n.Op {
	case ast.ArithAdd:
		return snapshot.Num(lhs.Num + rhs.Num)
	case ast.ArithSub:
		return snapshot.Num(lhs.Num - rhs.Num)
	case ast.ArithMul:
		return snapshot.Num(lhs.Num * rhs.Num)
	case ast.ArithDiv:
		if rhs.Num == 0 {
			return snapshot.Missing
		}
		return snapshot.Num(lhs.Num / rhs.Num)
	case ast.ArithMod:
		if rhs.Num == 0 {
			return snapshot.Missing
		}
		return snapshot.Num(math.Mod(lhs.Num, rhs.Num))
	default:
		return snapshot.Missing
	}
}

// evalWindow evaluates holds_for/occurred_within/count_true by replaying the
// inner expression against History's last `Bars` snapshots (current one
// inclusive). History is expected to carry the same SetupCache semantics
// are re-scoped per visited bar, i.e. each historical bar gets its own
// fresh cache, since setup memoization is defined per bar_idx.
func evalWindow(n ast.Window, snap *snapshot.Snapshot, hist History, cache *SetupCache) Result {
	trueCount := 0
	sawAny := false
	for offset := 0; offset < n.Bars; offset++ {
		var s *snapshot.Snapshot
		if offset == 0 {
			s = snap
		} else {
			var ok bool
			s, ok = hist.At(offset)
			if !ok {
				break
			}
		}
		r := Evaluate(n.Inner, s, hist, NewSetupCache(cache.barIdx-offset))
		if r.Ok {
			sawAny = true
			if r.Value {
				trueCount++
				if n.Kind == ast.WindowOccurredWithin {
					return trueResult()
				}
			}
		}
	}
	switch n.Kind {
	case ast.WindowHoldsFor:
		if trueCount == n.Bars {
			return trueResult()
		}
		return falseResult(ReasonWindow)
	case ast.WindowOccurredWithin:
		if !sawAny {
			return falseResult(ReasonMissing)
		}
		return falseResult(ReasonWindow)
	case ast.WindowCountTrue:
		return numCompare(trueCount >= n.MinTrue)
	default:
		return Result{Ok: false, Reason: ReasonInternalError}
	}
}

// EvaluateCross handles cross_above/cross_below, which need History for the
// previous bar's values and so cannot go through the generic evalCond path.
func EvaluateCross(n ast.Cond, snap *snapshot.Snapshot, hist History) Result {
	prevSnap, ok := hist.At(1)
	if !ok {
		return falseResult(ReasonMissing)
	}
	curLhs := resolveNumeric(n.Lhs, snap)
	curRhs := resolveNumeric(n.Rhs, snap)
	prevLhs := resolveNumeric(n.Lhs, prevSnap)
	prevRhs := resolveNumeric(n.Rhs, prevSnap)
	if curLhs.Missing || curRhs.Missing || prevLhs.Missing || prevRhs.Missing {
		return falseResult(ReasonCross)
	}
	switch n.Op {
	case ast.OpCrossUp:
		return numCompare(prevLhs.Num <= prevRhs.Num && curLhs.Num > curRhs.Num)
	case ast.OpCrossDown:
		return numCompare(prevLhs.Num >= prevRhs.Num && curLhs.Num < curRhs.Num)
	default:
		return Result{Ok: false, Reason: ReasonInternalError}
	}
}
