package card

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

func TestRepairMarkdown_FlatFieldGetsNewlines(t *testing.T) {
	flat := "# Overview This is about them - likes tea - likes rain <b>bold</b>"
	repaired := RepairMarkdown(flat)
	if !strings.Contains(repaired, "\n") {
		t.Fatal("expected repaired field to contain newlines")
	}
}

func TestRepairMarkdown_FieldWithNewlinesUnchanged(t *testing.T) {
	withNewlines := "# Overview\nAlready has newlines\n- item"
	if got := RepairMarkdown(withNewlines); got != withNewlines {
		t.Errorf("expected field to be left unchanged, got %q", got)
	}
}

func TestRepairMesExample_NormalizesTokensOntoOwnLines(t *testing.T) {
	flat := "<START>{{user}}: hi{{char}}: hello there"
	repaired := RepairMesExample(flat)

	lines := strings.Split(repaired, "\n")
	if len(lines) < 3 {
		t.Fatalf("expected at least 3 lines, got %d: %q", len(lines), repaired)
	}
	if !strings.HasPrefix(lines[0], "<START>") {
		t.Errorf("expected first line to start with <START>, got %q", lines[0])
	}
}

func TestShapeCard_EmptyFirstMesFallsBackToDefault(t *testing.T) {
	draft := models.CharacterCardDraft{Name: "Aria"}
	result := ShapeCard(draft, ShapeOptions{CreatedAt: time.Unix(0, 0), ModifiedAt: time.Unix(0, 0)})

	if result.Data.FirstMes != defaultFirstMes {
		t.Errorf("expected default first_mes, got %q", result.Data.FirstMes)
	}
	if result.Data.Personality != "" {
		t.Errorf("expected personality to be emitted empty, got %q", result.Data.Personality)
	}
	if result.Spec != "chara_card_v3" || result.SpecVersion != "3.0" {
		t.Errorf("unexpected envelope: %+v", result)
	}
}

func TestShapeCard_EmbedsLorebook(t *testing.T) {
	draft := models.CharacterCardDraft{Name: "Aria", FirstMes: "hello"}
	entries := []models.LorebookEntry{{Name: "likes tea", Keys: []string{"tea"}, Content: "drinks tea daily"}}

	result := ShapeCard(draft, ShapeOptions{LorebookName: "Aria Lorebook", Lorebook: entries, CreatedAt: time.Unix(0, 0), ModifiedAt: time.Unix(0, 0)})
	if result.Data.CharacterBook == nil {
		t.Fatal("expected embedded character book")
	}
	if len(result.Data.CharacterBook.Entries) != 1 {
		t.Errorf("expected 1 embedded entry, got %d", len(result.Data.CharacterBook.Entries))
	}
}

func TestShapeCard_JSONRoundTripPreservesEmbeddedLorebook(t *testing.T) {
	draft := models.CharacterCardDraft{Name: "Aria", FirstMes: "hello", Personality: "curious, warm"}
	entries := []models.LorebookEntry{
		{Name: "likes tea", Keys: []string{"tea", "morning"}, Content: "drinks tea every morning", Priority: 4},
	}
	original := ShapeCard(draft, ShapeOptions{LorebookName: "Aria Lorebook", Lorebook: entries, CreatedAt: time.Unix(0, 0), ModifiedAt: time.Unix(0, 0)})

	raw, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal card: %v", err)
	}

	var roundtrip CharacterCardV3
	if err := json.Unmarshal(raw, &roundtrip); err != nil {
		t.Fatalf("unmarshal card: %v", err)
	}

	if diff := cmp.Diff(original, roundtrip); diff != "" {
		t.Errorf("round-trip mismatch (-original +roundtrip):\n%s", diff)
	}
}
