package engine

import (
	"testing"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

func TestTotalCalls_FullModeFormula(t *testing.T) {
	got := totalCalls(false, 5, 5, true)
	want := 1 + 5 + 1 + 5 + 1
	if got != want {
		t.Fatalf("totalCalls = %d, want %d", got, want)
	}
}

func TestTotalCalls_AppendModeSkipsPersona(t *testing.T) {
	got := totalCalls(true, 0, 5, true)
	want := 1 + 5 + 1
	if got != want {
		t.Fatalf("totalCalls = %d, want %d", got, want)
	}
}

func TestTotalCalls_NoCandidatesSkipsMemorySynthesis(t *testing.T) {
	got := totalCalls(false, 3, 3, false)
	want := 1 + 3 + 1 + 3
	if got != want {
		t.Fatalf("totalCalls = %d, want %d", got, want)
	}
}

func TestProgressTracker_EmitsActiveCallsSnapshot(t *testing.T) {
	var events []models.ProgressEvent
	tracker := newProgressTracker(3, func(ev models.ProgressEvent) { events = append(events, ev) })

	tracker.setPhase(models.PhasePersonaObservation, "starting")
	tracker.callStarted()
	tracker.callStarted()
	tracker.callCompleted()
	tracker.callFailed()

	last := events[len(events)-1]
	if last.StartedCalls != 2 || last.CompletedCalls != 1 || last.FailedCalls != 1 {
		t.Fatalf("unexpected counters: %+v", last)
	}
	if last.ActiveCalls != 0 {
		t.Fatalf("expected 0 active calls, got %d", last.ActiveCalls)
	}
	if last.TotalCalls != 3 {
		t.Fatalf("expected total calls 3, got %d", last.TotalCalls)
	}
}

func TestProgressTracker_NilCallbackIsSafe(t *testing.T) {
	tracker := newProgressTracker(1, nil)
	tracker.callStarted()
	tracker.callCompleted()
}

func TestProgressTracker_CallAbortedDropsOutOfActiveWithoutCountingAsFailed(t *testing.T) {
	var events []models.ProgressEvent
	tracker := newProgressTracker(2, func(ev models.ProgressEvent) { events = append(events, ev) })

	tracker.callStarted()
	tracker.callStarted()
	tracker.callCompleted()
	tracker.callAborted()

	last := events[len(events)-1]
	if last.FailedCalls != 0 {
		t.Fatalf("expected an aborted call not to count as failed, got FailedCalls=%d", last.FailedCalls)
	}
	if last.ActiveCalls != 0 {
		t.Fatalf("expected aborted call to drop out of active count, got %d", last.ActiveCalls)
	}
}
