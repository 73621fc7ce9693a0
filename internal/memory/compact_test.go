package memory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

func TestCompact_MergesDuplicateSignatures(t *testing.T) {
	candidates := []models.MemoryCandidate{
		{Name: "loves coffee", Keys: []string{"coffee"}, Content: "Loves coffee  in the morning", Priority: 2},
		{Name: "coffee", Keys: []string{"Coffee", "morning"}, Content: "loves coffee in the morning, always dark roast", Priority: 5},
	}

	out := Compact(candidates)
	require.Len(t, out, 1)
	require.Equal(t, 5, out[0].Priority, "expected priority=5 (max)")
	require.Len(t, out[0].Keys, 2, "expected 2 unioned keys")
	require.Equal(t, "loves coffee in the morning, always dark roast", out[0].Content, "expected longer content to win")
}

func TestCompact_Idempotent(t *testing.T) {
	candidates := []models.MemoryCandidate{
		{Name: "a", Keys: []string{"x"}, Content: "same content", Priority: 1},
		{Name: "b", Keys: []string{"y"}, Content: "same   content", Priority: 3},
		{Name: "c", Keys: []string{"z"}, Content: "different content entirely", Priority: 2},
	}

	once := Compact(candidates)
	twice := Compact(once)

	if len(once) != len(twice) {
		t.Fatalf("expected idempotent length, got %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if Signature(once[i].Content, once[i].Keys) != Signature(twice[i].Content, twice[i].Keys) {
			t.Errorf("signature mismatch at %d", i)
		}
	}
}

func TestToLorebook_CapsAtMaxEntriesByPriority(t *testing.T) {
	candidates := []models.MemoryCandidate{
		{Name: "low", Content: "low priority memory", Priority: 1},
		{Name: "high", Content: "high priority memory", Priority: 9},
		{Name: "mid", Content: "mid priority memory", Priority: 5},
	}

	out := ToLorebook(candidates, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if out[0].Name != "high" || out[1].Name != "mid" {
		t.Errorf("expected highest-priority entries first, got %+v", out)
	}
}

// S6: existing memory + newly extracted candidate with equal content
// modulo whitespace compact into one entry with unioned keys and max
// priority.
func TestScenario_S6_AppendModeCompaction(t *testing.T) {
	existing := []models.LorebookEntry{
		{Name: "likes hiking", Keys: []string{"hiking"}, Content: "Enjoys   hiking on weekends", Priority: 4},
	}
	existingCandidates := ExistingMemoriesToCandidates(existing, 0)

	newCandidate := models.MemoryCandidate{
		Name:    "hiking",
		Keys:    []string{"weekends", "Hiking"},
		Content: "enjoys hiking on weekends",
		Priority: 6,
	}

	merged := Compact(append(existingCandidates, newCandidate))
	if len(merged) != 1 {
		t.Fatalf("expected compaction to 1 entry, got %d", len(merged))
	}
	if merged[0].Priority != 6 {
		t.Errorf("expected priority=6 (max), got %d", merged[0].Priority)
	}
	if len(merged[0].Keys) != 2 {
		t.Errorf("expected 2 unioned keys, got %v", merged[0].Keys)
	}
}
