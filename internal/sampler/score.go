// Package sampler scores extracted conversations, selects a deterministic
// subset under a sampling policy, and builds token-budgeted transcript
// packets (§4.5).
package sampler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

// LoadMessages reads a JSONL cleaned-conversation file written by the cache
// component.
func LoadMessages(path string) ([]models.CleanedMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sampler: open %s: %w", path, err)
	}
	defer f.Close()

	var messages []models.CleanedMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var m models.CleanedMessage
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, fmt.Errorf("sampler: parse message in %s: %w", path, err)
		}
		messages = append(messages, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("sampler: scan %s: %w", path, err)
	}
	return messages, nil
}

// ScoreFile computes the §3 ConversationScore for one cleaned conversation
// file.
func ScoreFile(path string) (models.ConversationScore, error) {
	messages, err := LoadMessages(path)
	if err != nil {
		return models.ConversationScore{}, err
	}
	return ScoreMessages(filepath.Base(path), path, messages), nil
}

// ScoreMessages computes a ConversationScore from an already-loaded message
// list.
func ScoreMessages(fileName, filePath string, messages []models.CleanedMessage) models.ConversationScore {
	score := models.ConversationScore{FileName: fileName, FilePath: filePath, Turns: len(messages)}
	for _, m := range messages {
		if m.Role == models.RoleAssistant {
			score.AssistantChars += len(m.Text)
			score.AssistantTurns++
		}
	}
	return score
}
