// Package ast defines the compiled expression tree for Play conditions.
// Every leaf Ref has already been resolved to a snapshot.Ref tuple by the
// compiler; evaluation never parses a string path.
package ast

import "github.com/sawpanic/backtest-engine/internal/snapshot"

// Op is a comparison, proximity, equality, or crossover operator.
type Op string

const (
	OpGT        Op = ">"
	OpLT        Op = "<"
	OpGTE       Op = ">="
	OpLTE       Op = "<="
	OpBetween   Op = "between"
	OpNearPct   Op = "near_pct"
	OpNearAbs   Op = "near_abs"
	OpEq        Op = "=="
	OpNeq       Op = "!="
	OpIn        Op = "in"
	OpCrossUp   Op = "cross_above"
	OpCrossDown Op = "cross_below"
)

// ArithOp is a binary arithmetic operator; division by zero yields MISSING.
type ArithOp string

const (
	ArithAdd ArithOp = "+"
	ArithSub ArithOp = "-"
	ArithMul ArithOp = "*"
	ArithDiv ArithOp = "/"
	ArithMod ArithOp = "%"
)

// Expr is any node in the compiled expression tree.
type Expr interface{ exprNode() }

type All struct{ Of []Expr }
type Any struct{ Of []Expr }
type Not struct{ Of Expr }

// Cond is a leaf comparison: Lhs OP Rhs, with an optional tolerance for the
// near_pct/near_abs proximity operators and a literal list for `in`.
type Cond struct {
	Lhs       Expr
	Op        Op
	Rhs       Expr
	RhsHigh   Expr // only for OpBetween (Rhs = low, RhsHigh = high)
	Tolerance float64
	InSet     []float64
}

// Arith is a binary arithmetic expression evaluating to a numeric Value.
type Arith struct {
	Lhs Expr
	Op  ArithOp
	Rhs Expr
}

// RefNode wraps a compiled snapshot.Ref as an expression leaf.
type RefNode struct{ Ref snapshot.Ref }

// LiteralNode is a constant numeric value.
type LiteralNode struct{ Value float64 }

// WindowKind distinguishes the three window operator families.
type WindowKind int

const (
	WindowHoldsFor WindowKind = iota
	WindowOccurredWithin
	WindowCountTrue
)

// Window implements holds_for / occurred_within / count_true, already
// normalized to an exec-bar lookback count by the compiler (anchor_tf and
// duration both collapse to `Bars` at compile time, capped at 500).
type Window struct {
	Kind    WindowKind
	Bars    int
	MinTrue int // only used by WindowCountTrue
	Inner   Expr
}

// SetupRef references a named, memoized Setup by its compiled expression.
type SetupRef struct {
	Name string
	Expr Expr
}

func (All) exprNode()         {}
func (Any) exprNode()         {}
func (Not) exprNode()         {}
func (Cond) exprNode()        {}
func (Arith) exprNode()       {}
func (RefNode) exprNode()     {}
func (LiteralNode) exprNode() {}
func (Window) exprNode()      {}
func (SetupRef) exprNode()    {}
