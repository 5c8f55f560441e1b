package play

import (
	"bytes"
	"os"
	"regexp"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/backtest-engine/internal/bar"
	"github.com/sawpanic/backtest-engine/internal/dsl/ast"
	"github.com/sawpanic/backtest-engine/internal/dsl/compile"
	"github.com/sawpanic/backtest-engine/internal/errs"
	"github.com/sawpanic/backtest-engine/internal/feed"
	"github.com/sawpanic/backtest-engine/internal/indicator"
)

// Compiled is the normalized, validated, AST-compiled form of a Play, ready
// for the bar processor.
type Compiled struct {
	Raw RawPlay

	ExecTF, MedTF, HighTF bar.Timeframe
	ExecRole              feed.Role

	Actions map[string]ast.Expr
	Ctx     *compile.Context
}

// Load reads a Play YAML file from disk, substitutes declared variables,
// validates it, and compiles every expression into an ast.Expr.
func Load(path string) (*Compiled, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New(errs.SchemaError, "reading play file %q: %v", path, err)
	}
	return Parse(data)
}

// Parse compiles Play YAML already held in memory; Load is a thin wrapper
// over this for the CLI's file-path case.
var templatePlaceholder = regexp.MustCompile(`\{\{[^}]*\}\}`)

func Parse(data []byte) (*Compiled, error) {
	// Probe with every {{ var }} placeholder blanked to a YAML-safe literal:
	// the probe only needs `variables:` and the deprecated-key shape, neither
	// of which is ever itself templated, but a templated *value* elsewhere in
	// the document (e.g. `length: {{ .fast_len }}`) would otherwise break
	// this first, pre-substitution parse.
	probeData := templatePlaceholder.ReplaceAll(data, []byte("0"))
	var probe map[string]any
	if err := yaml.Unmarshal(probeData, &probe); err != nil {
		return nil, errs.New(errs.SchemaError, "invalid YAML: %v", err)
	}
	if err := rejectDeprecatedKeys(probe); err != nil {
		return nil, err
	}

	substituted, err := substituteVariables(data, probe)
	if err != nil {
		return nil, err
	}

	var raw RawPlay
	if err := yaml.Unmarshal(substituted, &raw); err != nil {
		return nil, errs.New(errs.SchemaError, "invalid Play schema: %v", err)
	}

	return compilePlay(raw)
}

// rejectDeprecatedKeys enforces a rejection list before any other
// validation runs.
func rejectDeprecatedKeys(probe map[string]any) error {
	if _, ok := probe["blocks"]; ok {
		return errs.New(errs.SchemaError, "\"blocks:\" is a deprecated Play key; use \"actions:\"")
	}
	if _, ok := probe["signal_rules"]; ok {
		return errs.New(errs.SchemaError, "\"signal_rules:\" is a deprecated Play key; use \"actions:\"")
	}
	if account, ok := probe["account"].(map[string]any); ok {
		if mm, ok := account["margin_mode"].(string); ok && mm == "isolated" {
			return errs.New(errs.SchemaError, "\"margin_mode: isolated\" is implicit and must be omitted; isolated-USDT is the only supported mode")
		}
	}
	return nil
}

// substituteVariables replaces {{ var }} placeholders using the top-level
// `variables:` map, via Go's text/template.
func substituteVariables(data []byte, probe map[string]any) ([]byte, error) {
	vars, _ := probe["variables"].(map[string]any)
	if len(vars) == 0 {
		return data, nil
	}
	tmpl, err := template.New("play").Option("missingkey=error").Parse(string(data))
	if err != nil {
		return nil, errs.New(errs.SchemaError, "invalid {{ var }} template syntax: %v", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, errs.New(errs.SchemaError, "unresolved Play variable: %v", err)
	}
	return buf.Bytes(), nil
}

func compilePlay(raw RawPlay) (*Compiled, error) {
	if err := validateEnums(raw); err != nil {
		return nil, err
	}
	execTFStr, ok := raw.Timeframes["exec"]
	if !ok {
		return nil, errs.New(errs.SchemaError, "Play must declare timeframes.exec")
	}
	lowTFStr := raw.Timeframes["low_tf"]
	medTFStr := raw.Timeframes["med_tf"]
	highTFStr := raw.Timeframes["high_tf"]

	execMin, err := bar.Minutes(bar.Timeframe(execTFStr))
	if err != nil {
		return nil, errs.New(errs.TimeframeError, "%v", err)
	}
	medMin := execMin
	if medTFStr != "" {
		if medMin, err = bar.Minutes(bar.Timeframe(medTFStr)); err != nil {
			return nil, errs.New(errs.TimeframeError, "%v", err)
		}
	}
	highMin := medMin
	if highTFStr != "" {
		if highMin, err = bar.Minutes(bar.Timeframe(highTFStr)); err != nil {
			return nil, errs.New(errs.TimeframeError, "%v", err)
		}
	}
	if lowTFStr != "" {
		lowMin, err := bar.Minutes(bar.Timeframe(lowTFStr))
		if err != nil {
			return nil, errs.New(errs.TimeframeError, "%v", err)
		}
		if !(lowMin <= medMin && medMin <= highMin) {
			return nil, errs.New(errs.TimeframeError, "timeframe roles must satisfy low_tf <= med_tf <= high_tf")
		}
	}

	ctx := compile.NewContext(execMin, medMin, highMin)

	for id, f := range raw.Features {
		spec, ok := indicator.Lookup(f.IndicatorType)
		if !ok {
			return nil, errs.New(errs.RegistryError, "feature %q references unknown indicator_type %q", id, f.IndicatorType)
		}
		kernel, err := indicator.New(f.IndicatorType, f.Params)
		if err != nil {
			return nil, errs.New(errs.SchemaError, "feature %q: %v", id, err)
		}
		role := feed.RoleExec
		if f.TF != "" {
			role = roleForTF(f.TF, execMin, medMin, highMin)
		}
		ctx.Features[id] = compile.FeatureInfo{ID: id, Outputs: spec.Outputs, TFRole: role, Warmup: kernel.WarmupBars()}
	}

	for role, structs := range raw.Structures {
		r := feed.RoleExec
		switch role {
		case "med":
			r = feed.RoleMed
		case "high":
			r = feed.RoleHigh
		}
		seen := map[string]bool{}
		for _, s := range structs {
			for _, dep := range s.Uses {
				if !seen[dep] {
					return nil, errs.New(errs.DependencyError, "structure %q depends on %q, which is not declared earlier in role %q", s.ID, dep, role)
				}
			}
			seen[s.ID] = true
			isZoned := s.Type == "derived_zone"
			maxSlots := 0
			if isZoned {
				maxSlots = intFromParams(s.Params, "max_active", 3)
			}
			ctx.Structures[s.ID] = compile.StructureInfo{ID: s.ID, Fields: structureFields(s.Type), TFRole: r, IsZoned: isZoned, MaxSlots: maxSlots}
		}
	}

	for name, expr := range raw.Setups {
		ctx.RawSetups[name] = expr
	}

	actions := map[string]ast.Expr{}
	for kind, expr := range raw.Actions {
		compiled, err := compile.Compile(expr, ctx)
		if err != nil {
			return nil, errs.New(errs.SchemaError, "action %q: %v", kind, err)
		}
		actions[kind] = compiled
	}

	return &Compiled{
		Raw:      raw,
		ExecTF:   bar.Timeframe(execTFStr),
		MedTF:    bar.Timeframe(medTFStr),
		HighTF:   bar.Timeframe(highTFStr),
		ExecRole: feed.RoleExec,
		Actions:  actions,
		Ctx:      ctx,
	}, nil
}

func roleForTF(tf string, execMin, medMin, highMin int) feed.Role {
	m, err := bar.Minutes(bar.Timeframe(tf))
	if err != nil {
		return feed.RoleExec
	}
	switch {
	case m == highMin:
		return feed.RoleHigh
	case m == medMin:
		return feed.RoleMed
	default:
		return feed.RoleExec
	}
}

// structureFields lists a structure type's output fields and tags each as
// float (continuous, compared with near_pct/near_abs) or discrete (enum,
// bool, or count, compared with ==/!=/in).
func structureFields(typ string) []compile.StructureField {
	float := func(name string) compile.StructureField {
		return compile.StructureField{Name: name, Type: compile.FieldFloat}
	}
	discrete := func(name string) compile.StructureField {
		return compile.StructureField{Name: name, Type: compile.FieldDiscrete}
	}
	switch typ {
	case "swing":
		return []compile.StructureField{float("high_level"), float("low_level"), discrete("pair_direction")}
	case "trend":
		return []compile.StructureField{discrete("direction"), discrete("strength"), discrete("bars_in_trend")}
	case "market_structure":
		return []compile.StructureField{discrete("bias"), discrete("bos_this_bar"), discrete("choch_this_bar")}
	case "fibonacci":
		return []compile.StructureField{float("level")}
	case "zone", "derived_zone":
		return []compile.StructureField{float("upper"), float("lower"), discrete("state"), discrete("inside"), discrete("touched_this_bar")}
	case "rolling_window":
		return []compile.StructureField{float("min"), float("max")}
	default:
		return nil
	}
}

func intFromParams(p map[string]any, key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}
