package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/axAilotl/companion-keeper/internal/card"
	"github.com/axAilotl/companion-keeper/pkg/models"
)

func marshalCompact(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// writeRunArtifacts writes the end-of-run output files for one completed
// run: the shaped card and lorebook (character_card_v3.json,
// lorebook_v3.json), the raw synthesis payloads (persona_payload.json,
// memories_payload.json), a plain transcript of every conversation used
// (analysis_transcript.txt), one combined source list
// (sampled_sources.txt), and a small report (generation_report.json). It
// writes no separate persona or memory source lists and no processing
// manifest. The checkpoint and scan manifest are written incrementally by
// runState as the run progresses, not here.
func writeRunArtifacts(runDir string, shapedCard card.CharacterCardV3, shapedLorebook card.LorebookV3, draft models.CharacterCardDraft, lorebook []models.LorebookEntry, packets []models.ConversationPacket, runErrors []string) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}

	if err := atomicWriteJSON(filepath.Join(runDir, "character_card_v3.json"), shapedCard); err != nil {
		return err
	}
	if err := atomicWriteJSON(filepath.Join(runDir, "lorebook_v3.json"), shapedLorebook); err != nil {
		return err
	}
	if err := atomicWriteJSON(filepath.Join(runDir, "persona_payload.json"), draft); err != nil {
		return err
	}
	if err := atomicWriteJSON(filepath.Join(runDir, "memories_payload.json"), lorebook); err != nil {
		return err
	}

	if err := writeAnalysisTranscript(runDir, packets); err != nil {
		return err
	}
	if err := writeSourcesList(filepath.Join(runDir, "sampled_sources.txt"), packets); err != nil {
		return err
	}

	report := map[string]interface{}{
		"conversationsSampled": len(packets),
		"memoriesWritten":      len(lorebook),
		"errors":               runErrors,
	}
	return atomicWriteJSON(filepath.Join(runDir, "generation_report.json"), report)
}

func writeAnalysisTranscript(runDir string, packets []models.ConversationPacket) error {
	var b strings.Builder
	for _, p := range packets {
		b.WriteString("=== ")
		b.WriteString(p.ConversationID)
		b.WriteString(" (")
		b.WriteString(p.SourceFile)
		b.WriteString(") ===\n")
		b.WriteString(p.Transcript)
		b.WriteString("\n\n")
	}
	return os.WriteFile(filepath.Join(runDir, "analysis_transcript.txt"), []byte(b.String()), 0o644)
}

func writeSourcesList(path string, packets []models.ConversationPacket) error {
	var b strings.Builder
	for _, p := range packets {
		b.WriteString(p.SourceFile)
		b.WriteString("\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// appendMemoryHistory records one append-memories run's newly added entries
// as a JSON-lines log, so a companion's memory growth over time stays
// auditable independent of the always-overwritten memories_payload.json.
func appendMemoryHistory(runDir string, added []models.LorebookEntry) error {
	if len(added) == 0 {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(runDir, "memory_append_history.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, entry := range added {
		line, err := marshalCompact(entry)
		if err != nil {
			return err
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return nil
}
