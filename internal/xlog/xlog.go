// Package xlog wraps zerolog for the backtester CLI's structured run logs
// and pipeline step progress: structured step timing without an
// interactive spinner animation, since a backtest run's steps complete in
// milliseconds to seconds, not the minutes a live scan pipeline spends per
// step.
package xlog

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Configure sets the global zerolog logger's output format and level.
// pretty selects a human-readable console writer; false keeps structured
// JSON lines, the shape a supervised/batch run should emit.
func Configure(pretty bool, level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// StepLogger reports structured start/complete/fail events for one named
// pipeline stage (preflight, process, compute, write), mirroring the
// teacher's StepLogger but logging instead of animating a spinner.
type StepLogger struct {
	steps       []string
	currentStep int
	startTime   time.Time
	stepStarted time.Time
	stepTimes   []time.Duration
}

// NewStepLogger names every step of a pipeline run up front, so a
// dropped or reordered step is visible in the log even if it never runs.
func NewStepLogger(steps []string) *StepLogger {
	return &StepLogger{
		steps:       steps,
		currentStep: -1,
		startTime:   time.Now(),
		stepTimes:   make([]time.Duration, len(steps)),
	}
}

// StartStep logs the beginning of a named step. Passing a name not
// present in steps logs a warning rather than panicking, since a CLI
// misconfiguration shouldn't crash a run that is otherwise succeeding.
func (sl *StepLogger) StartStep(stepName string) {
	idx := -1
	for i, s := range sl.steps {
		if s == stepName {
			idx = i
			break
		}
	}
	if idx == -1 {
		log.Warn().Str("step", stepName).Msg("unknown pipeline step")
		return
	}
	sl.currentStep = idx
	sl.stepStarted = time.Now()
	log.Info().
		Str("step", stepName).
		Int("step_number", idx+1).
		Int("total_steps", len(sl.steps)).
		Msg("starting pipeline step")
}

// CompleteStep logs the end of the current step and records its duration.
func (sl *StepLogger) CompleteStep() {
	if sl.currentStep < 0 {
		return
	}
	d := time.Since(sl.stepStarted)
	sl.stepTimes[sl.currentStep] = d
	log.Info().
		Str("step", sl.steps[sl.currentStep]).
		Dur("duration", d).
		Msg("pipeline step completed")
}

// Finish logs a run-level summary across every completed step.
func (sl *StepLogger) Finish() {
	total := time.Since(sl.startTime)
	evt := log.Info().Dur("total_duration", total)
	for i, step := range sl.steps {
		evt = evt.Dur(step, sl.stepTimes[i])
	}
	evt.Msg("pipeline completed")
}

// Fail logs the run as failed at whatever step was in progress.
func (sl *StepLogger) Fail(err error) {
	name := "unknown"
	if sl.currentStep >= 0 && sl.currentStep < len(sl.steps) {
		name = sl.steps[sl.currentStep]
	}
	log.Error().
		Err(err).
		Str("failed_step", name).
		Int("completed_steps", sl.currentStep).
		Int("total_steps", len(sl.steps)).
		Msg("pipeline failed")
}
