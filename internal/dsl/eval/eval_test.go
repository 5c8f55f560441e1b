package eval

import (
	"testing"

	"github.com/sawpanic/backtest-engine/internal/dsl/ast"
	"github.com/sawpanic/backtest-engine/internal/snapshot"
)

func litCond(lhs, op string, rhsVal float64) ast.Cond {
	_ = lhs
	return ast.Cond{Lhs: ast.LiteralNode{Value: 5}, Op: ast.Op(op), Rhs: ast.LiteralNode{Value: rhsVal}}
}

func TestAllShortCircuitsOnFalse(t *testing.T) {
	expr := ast.All{Of: []ast.Expr{
		litCond("", ">", 1),  // 5 > 1 true
		litCond("", "<", 1),  // 5 < 1 false
	}}
	r := Evaluate(expr, &snapshot.Snapshot{}, nil, NewSetupCache(0))
	if r.Value {
		t.Fatal("expected all() to be false")
	}
}

func TestAnyShortCircuitsOnTrue(t *testing.T) {
	expr := ast.Any{Of: []ast.Expr{
		litCond("", "<", 1),
		litCond("", ">", 1),
	}}
	r := Evaluate(expr, &snapshot.Snapshot{}, nil, NewSetupCache(0))
	if !r.Value {
		t.Fatal("expected any() to be true")
	}
}

func TestDivisionByZeroIsMissing(t *testing.T) {
	expr := ast.Arith{Lhs: ast.LiteralNode{Value: 1}, Op: ast.ArithDiv, Rhs: ast.LiteralNode{Value: 0}}
	v := resolveNumeric(expr, &snapshot.Snapshot{})
	if !v.Missing {
		t.Fatal("expected division by zero to produce MISSING")
	}
}

func TestNearPctTolerance(t *testing.T) {
	cond := ast.Cond{Lhs: ast.LiteralNode{Value: 103}, Op: ast.OpNearPct, Rhs: ast.LiteralNode{Value: 100}, Tolerance: 5}
	r := evalCond(cond, &snapshot.Snapshot{})
	if !r.Value {
		t.Fatal("expected 103 near 100 within 5% to be true")
	}
	cond.Tolerance = 1
	r = evalCond(cond, &snapshot.Snapshot{})
	if r.Value {
		t.Fatal("expected 103 near 100 within 1% to be false")
	}
}

type fakeHistory struct {
	snaps map[int]*snapshot.Snapshot
}

func (f fakeHistory) At(offset int) (*snapshot.Snapshot, bool) {
	s, ok := f.snaps[offset]
	return s, ok
}

func TestCrossAbove(t *testing.T) {
	prev := &snapshot.Snapshot{}
	cur := &snapshot.Snapshot{}
	cond := ast.Cond{
		Lhs: ast.LiteralNode{Value: 10},
		Op:  ast.OpCrossUp,
		Rhs: ast.LiteralNode{Value: 9},
	}
	hist := fakeHistory{snaps: map[int]*snapshot.Snapshot{1: prev}}
	r := Evaluate(cond, cur, hist, NewSetupCache(0))
	// lhs/rhs are literals so prev==cur values; cross requires prevLhs<=prevRhs
	// which is false here (10<=9 is false), so expect false, proving the
	// History path is actually consulted rather than defaulting to true.
	if r.Value {
		t.Fatal("expected no cross since literal prev values don't satisfy prev<=rhs")
	}
}
