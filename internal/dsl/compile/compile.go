// Package compile turns a Play's YAML-decoded expression trees into a
// compiled ast.Expr: every "string_path" or {feature_id:..} leaf becomes a
// snapshot.Ref; every window operator's bars/duration collapses to a
// single exec-bar count capped at 500; setup references are validated
// acyclic and resolved to their compiled expression.
package compile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sawpanic/backtest-engine/internal/bar"
	"github.com/sawpanic/backtest-engine/internal/dsl/ast"
	"github.com/sawpanic/backtest-engine/internal/errs"
	"github.com/sawpanic/backtest-engine/internal/feed"
	"github.com/sawpanic/backtest-engine/internal/snapshot"
)

const (
	maxWindowBars     = 500
	maxWindowDuration = 1440 // minutes
)

// FeatureInfo is what the compiler needs to know about one declared Feature.
type FeatureInfo struct {
	ID      string
	Outputs []string // e.g. {"value"} or {"macd","signal","histogram"}
	TFRole  feed.Role
	Warmup  int
}

// FieldType classifies a structure's output field as continuous
// (float-valued, requires near_pct/near_abs for fuzzy comparison) or
// discrete (enum, bool, or count, where exact equality is meaningful).
type FieldType int

const (
	FieldFloat FieldType = iota
	FieldDiscrete
)

// StructureField names one output field of a declared Structure and its type.
type StructureField struct {
	Name string
	Type FieldType
}

// StructureInfo is what the compiler needs to know about one declared
// Structure.
type StructureInfo struct {
	ID       string
	Fields   []StructureField
	TFRole   feed.Role
	IsZoned  bool
	MaxSlots int
}

// fieldIsFloat reports whether the named output field is continuous.
// A field absent from Fields defaults to float, the conservative choice.
func (si StructureInfo) fieldIsFloat(field string) bool {
	for _, f := range si.Fields {
		if f.Name == field {
			return f.Type == FieldFloat
		}
	}
	return true
}

// Context carries the Play's registries and timeframe minutes, shared
// across every expression compiled for that Play.
type Context struct {
	Features      map[string]FeatureInfo
	Structures    map[string]StructureInfo
	RawSetups     map[string]any // setup name -> raw expression
	compiledSetup map[string]ast.Expr
	visiting      map[string]bool

	ExecTFMinutes int
	MedTFMinutes  int
	HighTFMinutes int

	MaxFeatureWarmup int // tracked as refs are resolved, read back after Compile
}

func NewContext(execTF, medTF, highTF int) *Context {
	return &Context{
		Features: map[string]FeatureInfo{}, Structures: map[string]StructureInfo{},
		RawSetups: map[string]any{}, compiledSetup: map[string]ast.Expr{}, visiting: map[string]bool{},
		ExecTFMinutes: execTF, MedTFMinutes: medTF, HighTFMinutes: highTF,
	}
}

// Compile turns one raw (YAML-decoded) expression into a compiled ast.Expr.
func Compile(raw any, ctx *Context) (ast.Expr, error) {
	switch v := raw.(type) {
	case string:
		return compileRef(v, ctx)
	case float64:
		return ast.LiteralNode{Value: v}, nil
	case int:
		return ast.LiteralNode{Value: float64(v)}, nil
	case []any:
		return compileCond(v, ctx)
	case map[string]any:
		return compileMap(v, ctx)
	default:
		return nil, errs.New(errs.SchemaError, "unsupported expression node of type %T", raw)
	}
}

func compileMap(m map[string]any, ctx *Context) (ast.Expr, error) {
	if of, ok := m["all"]; ok {
		return compileList(of, ctx, func(es []ast.Expr) ast.Expr { return ast.All{Of: es} })
	}
	if of, ok := m["any"]; ok {
		return compileList(of, ctx, func(es []ast.Expr) ast.Expr { return ast.Any{Of: es} })
	}
	if of, ok := m["not"]; ok {
		inner, err := compileImplicitAll(of, ctx)
		if err != nil {
			return nil, err
		}
		return ast.Not{Of: inner}, nil
	}
	if hf, ok := m["holds_for"]; ok {
		return compileWindow(ast.WindowHoldsFor, hf, ctx)
	}
	if ow, ok := m["occurred_within"]; ok {
		return compileWindow(ast.WindowOccurredWithin, ow, ctx)
	}
	if ct, ok := m["count_true"]; ok {
		return compileWindow(ast.WindowCountTrue, ct, ctx)
	}
	if s, ok := m["setup"]; ok {
		name, ok := s.(string)
		if !ok {
			return nil, errs.New(errs.SchemaError, "setup reference must be a string name")
		}
		return compileSetupRef(name, ctx)
	}
	if _, ok := m["feature_id"]; ok {
		return compileRefMap(m, ctx)
	}
	if lhs, ok := m["lhs"]; ok {
		return compileVerboseCond(m, lhs, ctx)
	}
	for _, op := range []ast.ArithOp{ast.ArithAdd, ast.ArithSub, ast.ArithMul, ast.ArithDiv, ast.ArithMod} {
		if operands, ok := m[string(op)]; ok {
			return compileArithPair(operands, op, ctx)
		}
	}
	return nil, errs.New(errs.SchemaError, "unrecognized expression map keys: %v", keysOf(m))
}

func keysOf(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func compileList(raw any, ctx *Context, wrap func([]ast.Expr) ast.Expr) (ast.Expr, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, errs.New(errs.SchemaError, "expected a list of expressions")
	}
	out := make([]ast.Expr, 0, len(items))
	for _, it := range items {
		e, err := Compile(it, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return wrap(out), nil
}

func compileImplicitAll(raw any, ctx *Context) (ast.Expr, error) {
	if items, ok := raw.([]any); ok {
		out := make([]ast.Expr, 0, len(items))
		for _, it := range items {
			e, err := Compile(it, ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return ast.All{Of: out}, nil
	}
	return Compile(raw, ctx)
}

// compileCond handles the 3- and 4-element shorthand forms:
// [lhs, op, rhs] or [lhs, near_pct|near_abs, rhs, tolerance].
func compileCond(items []any, ctx *Context) (ast.Expr, error) {
	if len(items) == 3 {
		if opStr, ok := isArithOp(items[1]); ok {
			lhs, err := Compile(items[0], ctx)
			if err != nil {
				return nil, err
			}
			rhs, err := Compile(items[2], ctx)
			if err != nil {
				return nil, err
			}
			return ast.Arith{Lhs: lhs, Op: opStr, Rhs: rhs}, nil
		}
		return compileCondTriple(items[0], items[1], items[2], 0, ctx)
	}
	if len(items) == 4 {
		opStr, _ := items[1].(string)
		tol, err := numberOf(items[3])
		if err != nil {
			return nil, errs.New(errs.SchemaError, "proximity tolerance must be numeric: %v", err)
		}
		if ast.Op(opStr) != ast.OpNearPct && ast.Op(opStr) != ast.OpNearAbs {
			return nil, errs.New(errs.SchemaError, "4-element condition requires near_pct or near_abs, got %q", opStr)
		}
		return compileCondTriple(items[0], opStr, items[2], tol, ctx)
	}
	return nil, errs.New(errs.SchemaError, "condition array must have 3 or 4 elements, got %d", len(items))
}

func isArithOp(v any) (ast.ArithOp, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	switch ast.ArithOp(s) {
	case ast.ArithAdd, ast.ArithSub, ast.ArithMul, ast.ArithDiv, ast.ArithMod:
		return ast.ArithOp(s), true
	}
	return "", false
}

func compileCondTriple(lhsRaw any, opRaw any, rhsRaw any, tolerance float64, ctx *Context) (ast.Expr, error) {
	opStr, ok := opRaw.(string)
	if !ok {
		return nil, errs.New(errs.SchemaError, "condition operator must be a string")
	}
	lhs, err := Compile(lhsRaw, ctx)
	if err != nil {
		return nil, err
	}
	if opStr == "between" {
		pair, ok := rhsRaw.([]any)
		if !ok || len(pair) != 2 {
			return nil, errs.New(errs.SchemaError, "between requires a [lo, hi] pair")
		}
		lo, err := Compile(pair[0], ctx)
		if err != nil {
			return nil, err
		}
		hi, err := Compile(pair[1], ctx)
		if err != nil {
			return nil, err
		}
		return ast.Cond{Lhs: lhs, Op: ast.OpBetween, Rhs: lo, RhsHigh: hi}, nil
	}
	if opStr == "in" {
		list, ok := rhsRaw.([]any)
		if !ok {
			return nil, errs.New(errs.SchemaError, "in requires a list")
		}
		if isFloatRef(lhs) {
			return nil, errs.New(errs.SchemaError, "== / in is not allowed on float-typed refs; use near_pct/near_abs")
		}
		vals := make([]float64, 0, len(list))
		for _, v := range list {
			n, err := numberOf(v)
			if err != nil {
				return nil, err
			}
			vals = append(vals, n)
		}
		return ast.Cond{Lhs: lhs, Op: ast.OpIn, InSet: vals}, nil
	}
	if (opStr == "==" || opStr == "!=") && isFloatRef(lhs) {
		return nil, errs.New(errs.SchemaError, "== / != is not allowed on float-typed refs; use near_pct/near_abs")
	}
	rhs, err := Compile(rhsRaw, ctx)
	if err != nil {
		return nil, err
	}
	return ast.Cond{Lhs: lhs, Op: ast.Op(opStr), Rhs: rhs, Tolerance: tolerance}, nil
}

// isFloatRef reports whether an expression yields a continuous value, in
// which case ==/!=/in are rejected in favor of near_pct/near_abs. A
// RefNode carries the field-type decision made when it was compiled
// (snapshot.Ref.Float); arithmetic always produces a float.
func isFloatRef(e ast.Expr) bool {
	switch v := e.(type) {
	case ast.RefNode:
		return v.Ref.Float
	case ast.Arith:
		return true
	default:
		return false
	}
}

func compileVerboseCond(m map[string]any, lhs any, ctx *Context) (ast.Expr, error) {
	opRaw, ok := m["op"]
	if !ok {
		return nil, errs.New(errs.SchemaError, "verbose condition missing \"op\"")
	}
	rhs := m["rhs"]
	tol := 0.0
	if t, ok := m["tolerance"]; ok {
		n, err := numberOf(t)
		if err != nil {
			return nil, err
		}
		tol = n
	}
	return compileCondTriple(lhs, opRaw, rhs, tol, ctx)
}

func compileArithPair(raw any, op ast.ArithOp, ctx *Context) (ast.Expr, error) {
	pair, ok := raw.([]any)
	if !ok || len(pair) != 2 {
		return nil, errs.New(errs.SchemaError, "arithmetic operator %q requires a 2-element operand list", op)
	}
	lhs, err := Compile(pair[0], ctx)
	if err != nil {
		return nil, err
	}
	rhs, err := Compile(pair[1], ctx)
	if err != nil {
		return nil, err
	}
	return ast.Arith{Lhs: lhs, Op: op, Rhs: rhs}, nil
}

func numberOf(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, errs.New(errs.SchemaError, "expected a number, got string %q", n)
		}
		return f, nil
	default:
		return 0, errs.New(errs.SchemaError, "expected a number, got %T", v)
	}
}

func compileWindow(kind ast.WindowKind, raw any, ctx *Context) (ast.Expr, error) {
	spec, ok := raw.(map[string]any)
	if !ok {
		return nil, errs.New(errs.SchemaError, "window operator requires an object")
	}
	innerRaw, ok := spec["expr"]
	if !ok {
		return nil, errs.New(errs.SchemaError, "window operator missing \"expr\"")
	}
	inner, err := Compile(innerRaw, ctx)
	if err != nil {
		return nil, err
	}
	anchorMinutes := ctx.ExecTFMinutes
	if tf, ok := spec["anchor_tf"].(string); ok && tf != "" {
		anchorMinutes = minutesForTFString(tf, ctx)
	}
	var bars int
	if d, ok := spec["duration"]; ok {
		durMinutes, err := parseDurationMinutes(d)
		if err != nil {
			return nil, err
		}
		if durMinutes > maxWindowDuration {
			return nil, errs.New(errs.SchemaError, "window duration %dm exceeds the %dm cap", durMinutes, maxWindowDuration)
		}
		bars = durMinutes / ctx.ExecTFMinutes
	} else {
		b, err := intField(spec, "bars")
		if err != nil {
			return nil, err
		}
		// effective_lookback = bars * (anchor_tf / exec_tf)
		bars = b * anchorMinutes / ctx.ExecTFMinutes
	}
	if bars > maxWindowBars {
		return nil, errs.New(errs.SchemaError, "window bars %d exceeds the %d cap", bars, maxWindowBars)
	}
	w := ast.Window{Kind: kind, Bars: bars, Inner: inner}
	if kind == ast.WindowCountTrue {
		minTrue, err := intField(spec, "min_true")
		if err != nil {
			return nil, err
		}
		w.MinTrue = minTrue
	}
	return w, nil
}

func parseDurationMinutes(v any) (int, error) {
	s, ok := v.(string)
	if !ok {
		return 0, errs.New(errs.SchemaError, "duration must be a string like \"30m\"")
	}
	unit := s[len(s)-1:]
	numStr := s[:len(s)-1]
	n, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, errs.New(errs.SchemaError, "invalid duration %q", s)
	}
	switch unit {
	case "m":
		return n, nil
	case "h":
		return n * 60, nil
	case "d":
		return n * 1440, nil
	default:
		return 0, errs.New(errs.SchemaError, "unsupported duration unit in %q", s)
	}
}

func intField(m map[string]any, key string) (int, error) {
	v, ok := m[key]
	if !ok {
		return 0, errs.New(errs.SchemaError, "missing required field %q", key)
	}
	n, err := numberOf(v)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func minutesForTFString(tf string, ctx *Context) int {
	m, err := bar.Minutes(bar.Timeframe(tf))
	if err != nil {
		return ctx.ExecTFMinutes
	}
	return m
}

func compileSetupRef(name string, ctx *Context) (ast.Expr, error) {
	if compiled, ok := ctx.compiledSetup[name]; ok {
		return ast.SetupRef{Name: name, Expr: compiled}, nil
	}
	if ctx.visiting[name] {
		return nil, errs.New(errs.SchemaError, "cyclic setup reference involving %q", name)
	}
	raw, ok := ctx.RawSetups[name]
	if !ok {
		return nil, errs.New(errs.SchemaError, "unknown setup %q", name)
	}
	ctx.visiting[name] = true
	compiled, err := Compile(raw, ctx)
	delete(ctx.visiting, name)
	if err != nil {
		return nil, err
	}
	ctx.compiledSetup[name] = compiled
	return ast.SetupRef{Name: name, Expr: compiled}, nil
}

// compileRef parses a bare string path into a RefNode.
func compileRef(path string, ctx *Context) (ast.Expr, error) {
	if strings.HasPrefix(path, "price.") {
		return ast.RefNode{Ref: snapshot.Ref{NS: snapshot.NSPrice, Path: strings.TrimPrefix(path, "price."), Float: true}}, nil
	}
	switch path {
	case "open", "high", "low", "close", "volume":
		return ast.RefNode{Ref: snapshot.Ref{NS: snapshot.NSPrice, Path: path, Float: true}}, nil
	}
	if strings.HasPrefix(path, "close_") {
		tfRole := roleForTFSuffix(strings.TrimPrefix(path, "close_"), ctx)
		return ast.RefNode{Ref: snapshot.Ref{NS: snapshot.NSPrice, Path: "close_htf", TFRole: tfRole, Float: true}}, nil
	}
	if strings.HasPrefix(path, "fib.level[") {
		ratioStr := path[len("fib.level[") : len(path)-1]
		ratio, err := strconv.ParseFloat(ratioStr, 64)
		if err != nil {
			return nil, errs.New(errs.SchemaError, "invalid fibonacci ratio in %q", path)
		}
		return ast.RefNode{Ref: snapshot.Ref{NS: snapshot.NSStructure, ID: "fib", Field: strconv.FormatFloat(ratio, 'g', -1, 64), ZoneIdx: -1, Float: true}}, nil
	}
	path = strings.TrimPrefix(path, "structure.")
	zoneIdx, rest, isZone := extractZoneIdx(path)
	id, field, offset := splitIDFieldOffset(rest)
	if isZone {
		float := true
		if info, ok := ctx.Structures[id]; ok {
			float = info.fieldIsFloat(field)
		}
		return ast.RefNode{Ref: snapshot.Ref{NS: snapshot.NSStructure, ID: id, Field: field, ZoneIdx: zoneIdx, Float: float}}, nil
	}
	if info, ok := ctx.Structures[id]; ok {
		return ast.RefNode{Ref: snapshot.Ref{NS: snapshot.NSStructure, ID: id, Field: field, ZoneIdx: -1, Float: info.fieldIsFloat(field)}}, nil
	}
	if info, ok := ctx.Features[id]; ok {
		if field == "" {
			field = "value"
		}
		if info.Warmup > ctx.MaxFeatureWarmup {
			ctx.MaxFeatureWarmup = info.Warmup
		}
		return ast.RefNode{Ref: snapshot.Ref{NS: snapshot.NSIndicator, ID: id, Field: field, Offset: offset, TFRole: info.TFRole, Float: true}}, nil
	}
	return nil, errs.New(errs.SchemaError, "reference %q does not resolve to a declared feature or structure", path)
}

func compileRefMap(m map[string]any, ctx *Context) (ast.Expr, error) {
	id, _ := m["feature_id"].(string)
	field, _ := m["field"].(string)
	offset := 0
	if o, ok := m["offset"]; ok {
		n, err := numberOf(o)
		if err != nil {
			return nil, err
		}
		offset = int(n)
	}
	if info, ok := ctx.Features[id]; ok {
		if field == "" {
			field = "value"
		}
		if info.Warmup > ctx.MaxFeatureWarmup {
			ctx.MaxFeatureWarmup = info.Warmup
		}
		return ast.RefNode{Ref: snapshot.Ref{NS: snapshot.NSIndicator, ID: id, Field: field, Offset: offset, TFRole: info.TFRole, Float: true}}, nil
	}
	if info, ok := ctx.Structures[id]; ok {
		return ast.RefNode{Ref: snapshot.Ref{NS: snapshot.NSStructure, ID: id, Field: field, ZoneIdx: -1, Float: info.fieldIsFloat(field)}}, nil
	}
	return nil, errs.New(errs.SchemaError, "feature_id %q not found in this Play's feature or structure registry", id)
}

func roleForTFSuffix(tf string, ctx *Context) feed.Role {
	m, err := bar.Minutes(bar.Timeframe(tf))
	if err != nil {
		return feed.RoleExec
	}
	switch {
	case m == ctx.MedTFMinutes:
		return feed.RoleMed
	case m == ctx.HighTFMinutes:
		return feed.RoleHigh
	default:
		return feed.RoleExec
	}
}

func extractZoneIdx(path string) (idx int, rest string, isZone bool) {
	start := strings.Index(path, ".zone[")
	if start == -1 {
		return -1, path, false
	}
	end := strings.Index(path[start:], "]")
	if end == -1 {
		return -1, path, false
	}
	idxStr := path[start+len(".zone[") : start+end]
	n, err := strconv.Atoi(idxStr)
	if err != nil {
		return -1, path, false
	}
	key := path[:start]
	fieldStart := start + end + 1
	field := strings.TrimPrefix(path[fieldStart:], ".")
	return n, key + "." + field, true
}

func splitIDFieldOffset(path string) (id, field string, offset int) {
	offset = 0
	if i := strings.Index(path, "["); i != -1 && strings.HasSuffix(path, "]") {
		offStr := path[i+1 : len(path)-1]
		if n, err := strconv.Atoi(offStr); err == nil {
			offset = n
		}
		path = path[:i]
	}
	parts := strings.SplitN(path, ".", 2)
	id = parts[0]
	if len(parts) == 2 {
		field = parts[1]
	}
	return
}
