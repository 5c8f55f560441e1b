package compile

import (
	"testing"

	"github.com/sawpanic/backtest-engine/internal/dsl/ast"
	"github.com/sawpanic/backtest-engine/internal/feed"
)

func baseCtx() *Context {
	ctx := NewContext(15, 60, 1440)
	ctx.Features["rsi14"] = FeatureInfo{ID: "rsi14", Outputs: []string{"value"}, TFRole: feed.RoleExec, Warmup: 14}
	return ctx
}

func TestCompileSimpleCond(t *testing.T) {
	ctx := baseCtx()
	raw := []any{"rsi14", ">", 70.0}
	e, err := Compile(raw, ctx)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	cond, ok := e.(ast.Cond)
	if !ok {
		t.Fatalf("expected Cond, got %T", e)
	}
	if cond.Op != ast.OpGT {
		t.Fatalf("expected > operator, got %s", cond.Op)
	}
	if ctx.MaxFeatureWarmup != 14 {
		t.Fatalf("expected warmup tracking to record 14, got %d", ctx.MaxFeatureWarmup)
	}
}

func TestCompileAllAny(t *testing.T) {
	ctx := baseCtx()
	raw := map[string]any{
		"all": []any{
			[]any{"rsi14", ">", 30.0},
			[]any{"rsi14", "<", 70.0},
		},
	}
	e, err := Compile(raw, ctx)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	all, ok := e.(ast.All)
	if !ok || len(all.Of) != 2 {
		t.Fatalf("expected All with 2 members, got %#v", e)
	}
}

func TestWindowBarsCapRejected(t *testing.T) {
	ctx := baseCtx()
	raw := map[string]any{
		"holds_for": map[string]any{
			"bars": 501,
			"expr": []any{"rsi14", ">", 50.0},
		},
	}
	if _, err := Compile(raw, ctx); err == nil {
		t.Fatal("expected an error for bars exceeding the 500 cap")
	}
}

func TestEqualityRejectedOnFloatRef(t *testing.T) {
	ctx := baseCtx()
	raw := []any{"rsi14", "==", 50.0}
	if _, err := Compile(raw, ctx); err == nil {
		t.Fatal("expected == on a float-typed ref to be rejected")
	}
}

func TestEqualityAllowedOnDiscreteStructureField(t *testing.T) {
	ctx := baseCtx()
	ctx.Structures["trend"] = StructureInfo{
		ID:     "trend",
		Fields: []StructureField{{Name: "direction", Type: FieldDiscrete}, {Name: "strength", Type: FieldDiscrete}},
		TFRole: feed.RoleExec,
	}
	raw := []any{"structure.trend.direction", "==", 1.0}
	e, err := Compile(raw, ctx)
	if err != nil {
		t.Fatalf("expected == on a discrete structure field to compile, got: %v", err)
	}
	cond, ok := e.(ast.Cond)
	if !ok || cond.Op != ast.OpEq {
		t.Fatalf("expected an OpEq Cond, got %#v", e)
	}
}

func TestInAllowedOnDiscreteStructureField(t *testing.T) {
	ctx := baseCtx()
	ctx.Structures["ms"] = StructureInfo{
		ID:     "ms",
		Fields: []StructureField{{Name: "bias", Type: FieldDiscrete}},
		TFRole: feed.RoleExec,
	}
	raw := []any{"structure.ms.bias", "in", []any{-1.0, 1.0}}
	if _, err := Compile(raw, ctx); err != nil {
		t.Fatalf("expected in on a discrete structure field to compile, got: %v", err)
	}
}

func TestEqualityStillRejectedOnFloatStructureField(t *testing.T) {
	ctx := baseCtx()
	ctx.Structures["swing"] = StructureInfo{
		ID:     "swing",
		Fields: []StructureField{{Name: "high_level", Type: FieldFloat}},
		TFRole: feed.RoleExec,
	}
	raw := []any{"structure.swing.high_level", "==", 100.0}
	if _, err := Compile(raw, ctx); err == nil {
		t.Fatal("expected == on a float-typed structure field to be rejected")
	}
}

func TestUnknownFeatureRejected(t *testing.T) {
	ctx := baseCtx()
	raw := []any{"nonexistent", ">", 1.0}
	if _, err := Compile(raw, ctx); err == nil {
		t.Fatal("expected an error for an unresolved reference")
	}
}
