// Package errs defines the error taxonomy used across the backtesting
// engine. Each Kind carries a fixed propagation policy: SchemaError through
// InvariantError abort the run; ComputationMissing never becomes an error at
// all (it resolves to a three-valued MISSING in the DSL evaluator).
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a hard failure.
type Kind string

const (
	SchemaError     Kind = "SchemaError"
	RegistryError   Kind = "RegistryError"
	DependencyError Kind = "DependencyError"
	TimeframeError  Kind = "TimeframeError"
	CoverageError   Kind = "CoverageError"
	InvariantError  Kind = "InvariantError"
	EquityFloor     Kind = "EquityFloor"
)

// Error wraps a Kind with the failing bar location and an optional Play path
// (e.g. "actions.long_entry" or "setups.pullback"), so user-visible output
// always identifies the failing bar and the offending Play path.
type Error struct {
	Kind      Kind
	Msg       string
	ExecIndex int
	TsClose   int64
	PlayPath  string
	Cause     error
}

func (e *Error) Error() string {
	loc := fmt.Sprintf("exec_idx=%d ts_close=%d", e.ExecIndex, e.TsClose)
	if e.PlayPath != "" {
		loc = fmt.Sprintf("%s path=%q", loc, e.PlayPath)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Msg, loc, e.Cause)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Msg, loc)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, errs.SchemaError) style matching against a bare Kind.
func (e *Error) Is(target error) bool {
	var k kindSentinel
	if errors.As(target, &k) {
		return e.Kind == Kind(k)
	}
	return false
}

type kindSentinel Kind

func (k kindSentinel) Error() string { return string(k) }

// Sentinel returns a comparable error value for a Kind, usable with errors.Is.
func Sentinel(k Kind) error { return kindSentinel(k) }

// New constructs an Error with no bar location, for compile-time failures
// (schema/registry/dependency/timeframe) that happen before simulation starts.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// At attaches a bar location to a compile-time Error, producing the runtime
// variant required for InvariantError/EquityFloor/CoverageError reporting.
func (e *Error) At(execIndex int, tsClose int64, playPath string) *Error {
	e2 := *e
	e2.ExecIndex = execIndex
	e2.TsClose = tsClose
	e2.PlayPath = playPath
	return &e2
}

// Wrap attaches a Kind and bar location to an underlying error.
func Wrap(kind Kind, execIndex int, tsClose int64, playPath string, cause error) *Error {
	return &Error{Kind: kind, Msg: cause.Error(), ExecIndex: execIndex, TsClose: tsClose, PlayPath: playPath, Cause: cause}
}
