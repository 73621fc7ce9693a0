package engine

import (
	"errors"
	"strings"
	"testing"
)

func TestStageExtractionError_SummarizesBeyondFour(t *testing.T) {
	errs := []string{"e1", "e2", "e3", "e4", "e5", "e6"}
	e := &StageExtractionError{Stage: "memory_extract", Errors: errs}
	msg := e.Error()
	if !strings.Contains(msg, "+2 more") {
		t.Fatalf("expected overflow suffix in %q", msg)
	}
	if strings.Contains(msg, "e5") {
		t.Fatalf("expected only first 4 errors rendered, got %q", msg)
	}
}

func TestStageExtractionError_NoOverflowUnderFour(t *testing.T) {
	e := &StageExtractionError{Stage: "persona_observation", Errors: []string{"e1", "e2"}}
	msg := e.Error()
	if strings.Contains(msg, "more") {
		t.Fatalf("did not expect overflow suffix in %q", msg)
	}
}

func TestProviderPreflightError_Unwraps(t *testing.T) {
	inner := errors.New("connection refused")
	e := &ProviderPreflightError{Err: inner}
	if !errors.Is(e, inner) {
		t.Fatal("expected ProviderPreflightError to unwrap to inner error")
	}
}

func TestSynthesisError_Unwraps(t *testing.T) {
	inner := errors.New("bad json")
	e := &SynthesisError{Stage: "memory", Err: inner}
	if !errors.Is(e, inner) {
		t.Fatal("expected SynthesisError to unwrap to inner error")
	}
}

func TestAborted_IsDistinctSentinel(t *testing.T) {
	if errors.Is(Aborted, errors.New("generation run aborted")) {
		t.Fatal("Aborted must be identity-compared, not message-compared")
	}
	wrapped := errors.Join(Aborted)
	if !errors.Is(wrapped, Aborted) {
		t.Fatal("expected wrapped Aborted to satisfy errors.Is")
	}
}
