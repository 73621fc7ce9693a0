package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/axAilotl/companion-keeper/internal/sampler"
	"github.com/axAilotl/companion-keeper/pkg/models"
)

// selectAndBuildPackets scores every available conversation file, applies
// the configured sampling policy, and builds one token-budgeted packet per
// selected conversation (§4.5). In unified mode the same packet set serves
// both the persona and memory stages, matching the source's
// "persona_chunks and memory_chunks are the same set" behavior.
func selectAndBuildPackets(availableFiles []string, sampling models.SamplingRequest) ([]models.ConversationPacket, []models.ConversationScore, error) {
	scores := make([]models.ConversationScore, 0, len(availableFiles))
	messagesByFile := make(map[string][]models.CleanedMessage, len(availableFiles))

	for _, path := range availableFiles {
		messages, err := sampler.LoadMessages(path)
		if err != nil {
			return nil, nil, fmt.Errorf("loading conversation %s: %w", path, err)
		}
		if len(messages) == 0 {
			continue
		}
		fileName := filepath.Base(path)
		messagesByFile[path] = messages
		scores = append(scores, sampler.ScoreMessages(fileName, path, messages))
	}

	selected := sampler.Select(scores, sampling)
	if len(selected) == 0 {
		return nil, selected, nil
	}

	charBudget := sampler.EffectivePerConversationCharBudget(sampling.MaxCharsPerConversation, sampling.MaxTotalChars, len(selected))

	packets := make([]models.ConversationPacket, 0, len(selected))
	for _, score := range selected {
		messages := messagesByFile[score.FilePath]
		conversationID := conversationIDFromPath(score.FilePath)
		packet, ok := sampler.BuildPacket(conversationID, score.FilePath, messages, charBudget, sampling.MaxMessagesPerConversation)
		if !ok {
			continue
		}
		packets = append(packets, packet)
	}

	return packets, selected, nil
}

func conversationIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
