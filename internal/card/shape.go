package card

import (
	"time"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

const defaultFirstMes = "Hi. I'm here with you."

// ShapeOptions carries the metadata fields a CharacterCardDraft alone does
// not determine.
type ShapeOptions struct {
	Creator          string
	CharacterVersion string
	CreatedAt        time.Time
	ModifiedAt       time.Time
	Lorebook         []models.LorebookEntry
	LorebookName     string
	LorebookDescription string
}

// ShapeCard maps a synthesized draft into the Character Card V3 envelope,
// applying markdown and mes_example repairs and falling back to
// conservative defaults for empty fields (§4.6.12).
func ShapeCard(draft models.CharacterCardDraft, opts ShapeOptions) CharacterCardV3 {
	firstMes := draft.FirstMes
	if firstMes == "" {
		firstMes = defaultFirstMes
	}

	var book *CharacterBook
	if len(opts.Lorebook) > 0 {
		book = &CharacterBook{
			Name:        opts.LorebookName,
			Description: opts.LorebookDescription,
			Entries:     ShapeLorebookEntries(opts.Lorebook),
		}
	}

	return CharacterCardV3{
		Spec:        "chara_card_v3",
		SpecVersion: "3.0",
		Data: CardData{
			Name:                    draft.Name,
			Description:             RepairMarkdown(draft.Description),
			Personality:             "",
			Scenario:                RepairMarkdown(draft.Scenario),
			FirstMes:                firstMes,
			MesExample:              RepairMesExample(draft.MesExample),
			CreatorNotes:            draft.CreatorNotes,
			Tags:                    draft.Tags,
			SystemPrompt:            draft.SystemPrompt,
			PostHistoryInstructions: draft.PostHistoryInstructions,
			AlternateGreetings:      draft.AlternateGreetings,
			GroupOnlyGreetings:      []string{},
			Creator:                 opts.Creator,
			CharacterVersion:        opts.CharacterVersion,
			CreationDate:            opts.CreatedAt.Unix(),
			ModificationDate:        opts.ModifiedAt.Unix(),
			Extensions:              map[string]interface{}{},
			CharacterBook:           book,
		},
	}
}
