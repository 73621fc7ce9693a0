// Package card shapes synthesis output into the Character Card V3 and
// Lorebook V3 wire formats, applying the markdown and mes_example repair
// heuristics described in §4.6.12.
package card

import "github.com/axAilotl/companion-keeper/pkg/models"

// CharacterBook is the embedded lorebook inside a Character Card V3 (§6).
type CharacterBook struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Entries     []WireLorebookEntry `json:"entries"`
}

// CardData is the "data" payload of a Character Card V3 envelope.
type CardData struct {
	Name                    string   `json:"name"`
	Description             string   `json:"description"`
	Personality             string   `json:"personality"`
	Scenario                string   `json:"scenario"`
	FirstMes                string   `json:"first_mes"`
	MesExample              string   `json:"mes_example"`
	CreatorNotes            string   `json:"creator_notes"`
	Tags                    []string `json:"tags"`
	SystemPrompt            string   `json:"system_prompt"`
	PostHistoryInstructions string   `json:"post_history_instructions"`
	AlternateGreetings      []string `json:"alternate_greetings"`
	GroupOnlyGreetings      []string `json:"group_only_greetings"`
	Creator                 string   `json:"creator"`
	CharacterVersion        string   `json:"character_version"`
	CreationDate            int64    `json:"creation_date"`
	ModificationDate        int64    `json:"modification_date"`
	Extensions              map[string]interface{} `json:"extensions"`
	CharacterBook           *CharacterBook `json:"character_book,omitempty"`
}

// CharacterCardV3 is the top-level envelope written to
// runDir/character_card_v3.json (§6).
type CharacterCardV3 struct {
	Spec        string   `json:"spec"`
	SpecVersion string   `json:"spec_version"`
	Data        CardData `json:"data"`
}

// WireLorebookEntry is one entry of a Lorebook V3 payload.
type WireLorebookEntry struct {
	Keys           []string               `json:"keys"`
	Content        string                 `json:"content"`
	Enabled        bool                   `json:"enabled"`
	InsertionOrder int                    `json:"insertion_order"`
	Name           string                 `json:"name"`
	Priority       int                    `json:"priority"`
	Position       string                 `json:"position"`
	Extensions     map[string]interface{} `json:"extensions"`
}

// LorebookData is the "data" payload of a Lorebook V3 envelope.
type LorebookData struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Entries     []WireLorebookEntry `json:"entries"`
}

// LorebookV3 is the top-level envelope written to runDir/lorebook_v3.json
// (§6).
type LorebookV3 struct {
	Spec string       `json:"spec"`
	Data LorebookData `json:"data"`
}

// ShapeLorebookEntries converts compacted lorebook entries into the wire
// format, assigning insertion order and default position/extensions.
func ShapeLorebookEntries(entries []models.LorebookEntry) []WireLorebookEntry {
	out := make([]WireLorebookEntry, 0, len(entries))
	for i, e := range entries {
		out = append(out, WireLorebookEntry{
			Keys:           e.Keys,
			Content:        e.Content,
			Enabled:        true,
			InsertionOrder: i,
			Name:           e.Name,
			Priority:       e.Priority,
			Position:       "before_char",
			Extensions:     map[string]interface{}{},
		})
	}
	return out
}

// ShapeLorebook builds the full Lorebook V3 envelope.
func ShapeLorebook(name, description string, entries []models.LorebookEntry) LorebookV3 {
	return LorebookV3{
		Spec: "lorebook_v3",
		Data: LorebookData{
			Name:        name,
			Description: description,
			Entries:     ShapeLorebookEntries(entries),
		},
	}
}
