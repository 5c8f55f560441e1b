package xlog

import (
	"errors"
	"testing"
)

func TestStepLoggerTracksCompletedSteps(t *testing.T) {
	sl := NewStepLogger([]string{"preflight", "process", "compute", "write"})

	sl.StartStep("preflight")
	sl.CompleteStep()
	sl.StartStep("process")
	sl.CompleteStep()

	if sl.currentStep != 1 {
		t.Fatalf("currentStep = %d, want 1 (process)", sl.currentStep)
	}
	if sl.stepTimes[0] < 0 {
		t.Fatalf("expected a non-negative duration for step 0")
	}
}

func TestStepLoggerIgnoresUnknownStepName(t *testing.T) {
	sl := NewStepLogger([]string{"preflight"})
	sl.StartStep("not_a_real_step")
	if sl.currentStep != -1 {
		t.Fatalf("expected currentStep to remain -1 for an unknown step name, got %d", sl.currentStep)
	}
}

func TestFailDoesNotPanicWithoutAStartedStep(t *testing.T) {
	sl := NewStepLogger([]string{"preflight"})
	sl.Fail(errors.New("boom"))
}
