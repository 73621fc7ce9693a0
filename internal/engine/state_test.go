package engine

import (
	"testing"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

func newTestState(t *testing.T) (*runState, string) {
	t.Helper()
	dir := t.TempDir()
	cp := emptyCheckpoint("sig")
	sm := &models.ScanManifest{ScannedFiles: map[string]models.ScannedFileInfo{}}
	return newRunState(dir, cp, sm), dir
}

func TestRunState_RecordAndCheckPersonaObservation(t *testing.T) {
	state, _ := newTestState(t)
	if state.hasObservation("conv-1") {
		t.Fatal("expected no observation before recording")
	}
	obs := models.PersonaObservation{ConversationID: "conv-1", ObservedTraits: []string{"curious"}}
	if err := state.recordPersonaObservation("conv-1", obs); err != nil {
		t.Fatalf("recordPersonaObservation: %v", err)
	}
	if !state.hasObservation("conv-1") {
		t.Fatal("expected observation to be recorded")
	}
}

func TestRunState_RecordAndCheckMemoryCandidates(t *testing.T) {
	state, _ := newTestState(t)
	if state.hasMemoryResult("file-a") {
		t.Fatal("expected no memory result before recording")
	}
	candidates := []models.MemoryCandidate{{Name: "likes-tea", Keys: []string{"tea"}, Content: "likes tea"}}
	if err := state.recordMemoryCandidates("file-a", 100, 1000, candidates); err != nil {
		t.Fatalf("recordMemoryCandidates: %v", err)
	}
	if !state.hasMemoryResult("file-a") {
		t.Fatal("expected memory result to be recorded")
	}
}

func TestRunState_ObservationsInOrder_MatchesRequestedOrderAndSkipsMissing(t *testing.T) {
	state, _ := newTestState(t)
	_ = state.recordPersonaObservation("b", models.PersonaObservation{ConversationID: "b", ObservedTraits: []string{"b-trait"}})
	_ = state.recordPersonaObservation("a", models.PersonaObservation{ConversationID: "a", ObservedTraits: []string{"a-trait"}})

	ordered := state.observationsInOrder([]string{"a", "missing", "b"})
	if len(ordered) != 2 {
		t.Fatalf("expected 2 observations (missing skipped), got %d", len(ordered))
	}
	if ordered[0].ConversationID != "a" || ordered[1].ConversationID != "b" {
		t.Fatalf("expected order [a, b], got [%s, %s]", ordered[0].ConversationID, ordered[1].ConversationID)
	}
}

func TestRunState_CandidatesInOrder_MatchesRequestedOrder(t *testing.T) {
	state, _ := newTestState(t)
	_ = state.recordMemoryCandidates("file-b", 1, 1, []models.MemoryCandidate{{Name: "from-b"}})
	_ = state.recordMemoryCandidates("file-a", 1, 1, []models.MemoryCandidate{{Name: "from-a"}})

	ordered := state.candidatesInOrder([]string{"file-a", "file-b"})
	if len(ordered) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(ordered))
	}
	if ordered[0].Name != "from-a" || ordered[1].Name != "from-b" {
		t.Fatalf("expected order [from-a, from-b], got [%s, %s]", ordered[0].Name, ordered[1].Name)
	}
}

func TestRunState_HasObservation_FalseForEmptyObservation(t *testing.T) {
	state, _ := newTestState(t)
	_ = state.recordPersonaObservation("empty", models.PersonaObservation{})
	if state.hasObservation("empty") {
		t.Fatal("expected an all-empty observation to not count as recorded for resume purposes")
	}
}
